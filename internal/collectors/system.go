// 本文件用于系统资源采集 CPU 与内存使用率
package collectors

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"home-pulse/internal/alert"
	"home-pulse/internal/models"
)

// SystemCollector 采集 CPU 与内存使用率并按阈值判级
type SystemCollector struct {
	cpuWarn float64
	cpuFail float64
	memWarn float64
	memFail float64
}

// NewSystemCollector 创建系统资源采集器
func NewSystemCollector(cfg *models.Config) *SystemCollector {
	return &SystemCollector{
		cpuWarn: cfg.CPUWarnPercent,
		cpuFail: cfg.CPUFailPercent,
		memWarn: cfg.MemWarnPercent,
		memFail: cfg.MemFailPercent,
	}
}

func (c *SystemCollector) Name() string {
	return "system"
}

// Collect 采集 CPU 与内存样本
// CPU 使用 0 间隔读取 取自上次调用以来的平均值 首轮返回 0 属预期
func (c *SystemCollector) Collect(ctx context.Context) ([]alert.Sample, error) {
	samples := make([]alert.Sample, 0, 2)

	cpuPercents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("读取 CPU 使用率失败: %w", err)
	}
	if len(cpuPercents) > 0 {
		usage := cpuPercents[0]
		sample := alert.NewSample(alert.CategorySystem, "CPU", thresholdStatus(usage, c.cpuWarn, c.cpuFail))
		sample.ValueNum = &usage
		sample.ValueText = fmt.Sprintf("%.1f%%", usage)
		sample.Details = map[string]interface{}{
			"使用率": fmt.Sprintf("%.1f%%", usage),
		}
		samples = append(samples, sample)
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取内存使用率失败: %w", err)
	}
	usage := vm.UsedPercent
	sample := alert.NewSample(alert.CategorySystem, "Memory", thresholdStatus(usage, c.memWarn, c.memFail))
	sample.ValueNum = &usage
	sample.ValueText = fmt.Sprintf("%.1f%%", usage)
	sample.Details = map[string]interface{}{
		"使用率": fmt.Sprintf("%.1f%%", usage),
		"已用":  fmt.Sprintf("%.1f GB", float64(vm.Used)/1024/1024/1024),
		"总量":  fmt.Sprintf("%.1f GB", float64(vm.Total)/1024/1024/1024),
	}
	samples = append(samples, sample)

	return samples, nil
}
