// 本文件用于 RAID 阵列状态采集 解析 /proc/mdstat
package collectors

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"home-pulse/internal/alert"
)

// RaidCollector 读取 mdstat 并逐个阵列判级
type RaidCollector struct {
	mdstatPath string
}

// NewRaidCollector 创建 RAID 采集器
func NewRaidCollector(mdstatPath string) *RaidCollector {
	path := strings.TrimSpace(mdstatPath)
	if path == "" {
		path = "/proc/mdstat"
	}
	return &RaidCollector{mdstatPath: path}
}

func (c *RaidCollector) Name() string {
	return "raid"
}

// Collect 读取并解析 mdstat
func (c *RaidCollector) Collect(ctx context.Context) ([]alert.Sample, error) {
	raw, err := os.ReadFile(c.mdstatPath)
	if err != nil {
		return nil, fmt.Errorf("读取 %s 失败: %w", c.mdstatPath, err)
	}
	return ParseMdstat(string(raw)), nil
}

var (
	mdDeviceLine = regexp.MustCompile(`^(md\d+)\s*:\s*(\S+)\s+(\S+)\s+(.*)$`)
	mdStatusPair = regexp.MustCompile(`\[(\d+)/(\d+)\]\s*\[([U_]+)\]`)
	mdFailedDisk = regexp.MustCompile(`(\S+)\[\d+\]\(F\)`)
	mdRebuild    = regexp.MustCompile(`(recovery|resync|reshape)\s*=\s*([\d.]+)%`)
)

// ParseMdstat 解析 mdstat 文本
// 缺盘判 FAIL 重建中判 WARN 成员带 (F) 标记也判 FAIL
func ParseMdstat(content string) []alert.Sample {
	samples := make([]alert.Sample, 0)
	lines := strings.Split(content, "\n")
	for idx, line := range lines {
		match := mdDeviceLine.FindStringSubmatch(strings.TrimSpace(line))
		if match == nil {
			continue
		}
		name := match[1]
		state := match[2]
		level := match[3]
		members := match[4]

		status := alert.StatusOK
		details := map[string]interface{}{
			"级别": level,
			"状态": state,
		}

		if state != "active" {
			status = alert.StatusFail
		}
		if failed := mdFailedDisk.FindAllStringSubmatch(members, -1); len(failed) > 0 {
			status = alert.StatusFail
			names := make([]string, 0, len(failed))
			for _, f := range failed {
				names = append(names, f[1])
			}
			details["故障成员"] = strings.Join(names, ",")
		}

		// 阵列详情在后续行 [n/m] [UU..] 与重建进度
		for _, follow := range followingLines(lines, idx) {
			if pair := mdStatusPair.FindStringSubmatch(follow); pair != nil {
				details["成员"] = fmt.Sprintf("[%s/%s]", pair[1], pair[2])
				if pair[1] != pair[2] || strings.Contains(pair[3], "_") {
					status = alert.StatusFail
				}
			}
			if rebuild := mdRebuild.FindStringSubmatch(follow); rebuild != nil {
				details["重建"] = fmt.Sprintf("%s %s%%", rebuild[1], rebuild[2])
				// 重建中的降级阵列仍判 WARN 盘已回来只是在同步
				if status == alert.StatusFail {
					status = alert.StatusWarn
				}
			}
		}

		sample := alert.NewSample(alert.CategoryRaid, name, status)
		sample.Details = details
		sample.ValueText = fmt.Sprintf("%s %s", level, state)
		samples = append(samples, sample)
	}
	return samples
}

// followingLines 返回设备行之后到空行为止的详情行
func followingLines(lines []string, start int) []string {
	out := make([]string, 0, 3)
	for i := start + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" || mdDeviceLine.MatchString(trimmed) {
			break
		}
		out = append(out, trimmed)
	}
	return out
}
