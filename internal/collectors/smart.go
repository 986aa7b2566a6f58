// 本文件用于 SMART 磁盘健康采集
// 通过 smartctl 的 JSON 输出读取整体健康与关键属性
package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"home-pulse/internal/alert"
	"home-pulse/internal/logger"
)

// SmartCollector 枚举物理磁盘并读取 SMART 健康状态
type SmartCollector struct {
	smartctlPath string
}

type smartScanOutput struct {
	Devices []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"devices"`
}

type smartDeviceOutput struct {
	SmartStatus struct {
		Passed bool `json:"passed"`
	} `json:"smart_status"`
	Temperature struct {
		Current int `json:"current"`
	} `json:"temperature"`
	AtaSmartAttributes struct {
		Table []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
			Raw  struct {
				Value int64 `json:"value"`
			} `json:"raw"`
		} `json:"table"`
	} `json:"ata_smart_attributes"`
}

// NewSmartCollector 创建 SMART 采集器
func NewSmartCollector() *SmartCollector {
	return &SmartCollector{smartctlPath: "smartctl"}
}

func (c *SmartCollector) Name() string {
	return "smart"
}

// Collect 扫描磁盘并逐块读取健康状态
// smartctl 不存在或无权限时返回错误 由调度器统一处理
func (c *SmartCollector) Collect(ctx context.Context) ([]alert.Sample, error) {
	scanRaw, err := exec.CommandContext(ctx, c.smartctlPath, "--scan", "-j").Output()
	if err != nil {
		return nil, fmt.Errorf("执行 smartctl 扫描失败: %w", err)
	}
	var scan smartScanOutput
	if err := json.Unmarshal(scanRaw, &scan); err != nil {
		return nil, fmt.Errorf("解析 smartctl 扫描输出失败: %w", err)
	}

	samples := make([]alert.Sample, 0, len(scan.Devices))
	for _, device := range scan.Devices {
		sample, err := c.collectDevice(ctx, device.Name)
		if err != nil {
			logger.Warn("读取 %s SMART 数据失败: %v", device.Name, err)
			failed := alert.NewSample(alert.CategorySmart, deviceDisplayName(device.Name), alert.StatusFail)
			failed.ValueText = fmt.Sprintf("读取失败: %v", err)
			samples = append(samples, failed)
			continue
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

func (c *SmartCollector) collectDevice(ctx context.Context, device string) (alert.Sample, error) {
	// smartctl 在属性超阈值时返回非零退出码 但 JSON 输出仍然完整
	raw, err := exec.CommandContext(ctx, c.smartctlPath, "-a", "-j", device).Output()
	if err != nil && len(raw) == 0 {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return alert.Sample{}, fmt.Errorf("%s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return alert.Sample{}, err
	}
	var out smartDeviceOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return alert.Sample{}, fmt.Errorf("解析 SMART 输出失败: %w", err)
	}
	return ParseSmartDevice(deviceDisplayName(device), out), nil
}

// ParseSmartDevice 把 smartctl 输出转换为状态样本
// 整体健康未通过判 FAIL 重映射或待定扇区非零判 WARN
func ParseSmartDevice(name string, out smartDeviceOutput) alert.Sample {
	status := alert.StatusOK
	details := map[string]interface{}{}

	if !out.SmartStatus.Passed {
		status = alert.StatusFail
		details["整体健康"] = "未通过"
	}
	for _, attr := range out.AtaSmartAttributes.Table {
		switch attr.ID {
		case 5: // Reallocated_Sector_Ct
			if attr.Raw.Value > 0 && status == alert.StatusOK {
				status = alert.StatusWarn
			}
			details["重映射扇区"] = attr.Raw.Value
		case 197: // Current_Pending_Sector
			if attr.Raw.Value > 0 && status == alert.StatusOK {
				status = alert.StatusWarn
			}
			details["待定扇区"] = attr.Raw.Value
		case 187: // Reported_Uncorrect
			if attr.Raw.Value > 0 && status == alert.StatusOK {
				status = alert.StatusWarn
			}
		}
	}
	if out.Temperature.Current > 0 {
		details["温度"] = fmt.Sprintf("%d°C", out.Temperature.Current)
	}

	sample := alert.NewSample(alert.CategorySmart, name, status)
	sample.Details = details
	if status == alert.StatusOK {
		sample.ValueText = "健康"
	} else {
		sample.ValueText = "异常"
	}
	return sample
}

// deviceDisplayName 设备路径转展示名 /dev/sda → sda
func deviceDisplayName(device string) string {
	if idx := strings.LastIndex(device, "/"); idx >= 0 {
		return device[idx+1:]
	}
	return device
}
