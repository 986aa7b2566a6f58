// 本文件用于定义采集器契约与公共辅助函数
package collectors

import (
	"context"

	"home-pulse/internal/alert"
)

// Collector 表示一类检查项的采集器
// 采集失败时返回错误 由调度器转换为 FAIL 样本
type Collector interface {
	Name() string
	Collect(ctx context.Context) ([]alert.Sample, error)
}

// thresholdStatus 根据告警与故障阈值判定状态 值越大越差
func thresholdStatus(value, warn, fail float64) alert.Status {
	switch {
	case fail > 0 && value >= fail:
		return alert.StatusFail
	case warn > 0 && value >= warn:
		return alert.StatusWarn
	default:
		return alert.StatusOK
	}
}
