// 本文件用于磁盘空间与只读挂载检测
// 只读重挂载是存储设备故障的典型前兆 单独判为 FAIL
package collectors

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/sys/unix"

	"home-pulse/internal/alert"
	"home-pulse/internal/models"
)

// DiskCollector 采集挂载点的剩余空间与读写状态
type DiskCollector struct {
	targets []models.DiskTarget
}

// NewDiskCollector 创建磁盘采集器
func NewDiskCollector(cfg *models.Config) *DiskCollector {
	return &DiskCollector{targets: cfg.Disks}
}

func (c *DiskCollector) Name() string {
	return "disk"
}

// Collect 逐个挂载点采集样本 单个挂载点失败不影响其余
func (c *DiskCollector) Collect(ctx context.Context) ([]alert.Sample, error) {
	samples := make([]alert.Sample, 0, len(c.targets))
	for _, target := range c.targets {
		samples = append(samples, c.collectOne(ctx, target))
	}
	return samples, nil
}

func (c *DiskCollector) collectOne(ctx context.Context, target models.DiskTarget) alert.Sample {
	usage, err := disk.UsageWithContext(ctx, target.Path)
	if err != nil {
		sample := alert.NewSample(alert.CategorySystem, "Disk "+target.Path, alert.StatusFail)
		sample.ValueText = fmt.Sprintf("读取失败: %v", err)
		return sample
	}

	freeGB := float64(usage.Free) / 1024 / 1024 / 1024
	status := alert.StatusOK
	switch {
	case target.FailFreeGB > 0 && freeGB <= target.FailFreeGB:
		status = alert.StatusFail
	case target.WarnFreeGB > 0 && freeGB <= target.WarnFreeGB:
		status = alert.StatusWarn
	case target.WarnUsedPct > 0 && usage.UsedPercent >= target.WarnUsedPct:
		status = alert.StatusWarn
	}

	readOnly := mountReadOnly(target.Path)
	if readOnly {
		status = alert.StatusFail
	}

	sample := alert.NewSample(alert.CategorySystem, "Disk "+target.Path, status)
	sample.ValueNum = &freeGB
	sample.ValueText = fmt.Sprintf("剩余 %.1f GB", freeGB)
	sample.Details = map[string]interface{}{
		"剩余": fmt.Sprintf("%.1f GB", freeGB),
		"已用": fmt.Sprintf("%.1f%%", usage.UsedPercent),
	}
	if readOnly {
		sample.Details["只读"] = "挂载点已被重挂载为只读"
	}
	return sample
}

// mountReadOnly 通过 statfs 标志位判断挂载点是否只读
func mountReadOnly(path string) bool {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return false
	}
	return stat.Flags&unix.ST_RDONLY != 0
}
