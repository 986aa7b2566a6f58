// 本文件用于维护窗口的解析与命中判定
// 配置解析失败一律按未配置处理 只在启动时告警 不中断进程
package alert

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"home-pulse/internal/logger"
	"home-pulse/internal/models"
)

// Window 表示一个每日重复的时间窗口 起点包含 终点不包含
// start > end 表示窗口跨越午夜
type Window struct {
	start  int // 当日分钟数
	end    int
	days   [7]bool // 0=周一 6=周日
	source string  // global 或服务名
}

// Contains 判断时刻是否落在窗口内
func (w *Window) Contains(at time.Time) bool {
	if w == nil {
		return false
	}
	day := mondayWeekday(at)
	if !w.days[day] {
		return false
	}
	minute := at.Hour()*60 + at.Minute()
	if w.start <= w.end {
		return minute >= w.start && minute < w.end
	}
	// 跨午夜
	return minute >= w.start || minute < w.end
}

// Label 输出窗口的展示文本
func (w *Window) Label() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.start/60, w.start%60, w.end/60, w.end%60)
}

// MaintenancePolicy 维护窗口策略 服务级配置优先于全局配置
type MaintenancePolicy struct {
	global     *Window
	perService map[string]*Window
}

// NewMaintenancePolicy 从配置构建维护窗口策略
func NewMaintenancePolicy(cfg *models.Config) *MaintenancePolicy {
	policy := &MaintenancePolicy{
		perService: make(map[string]*Window),
	}
	if cfg == nil {
		return policy
	}
	if strings.TrimSpace(cfg.GlobalMaintenanceWindow) != "" {
		window, err := parseWindow(cfg.GlobalMaintenanceWindow, cfg.GlobalMaintenanceDays, "global")
		if err != nil {
			logger.Warn("全局维护窗口配置无效 按未配置处理: %v", err)
		} else {
			policy.global = window
		}
	}
	for name, entry := range cfg.MaintenanceWindows {
		window, err := parseWindow(entry.Window, entry.Days, name)
		if err != nil {
			logger.Warn("服务 %s 的维护窗口配置无效 按未配置处理: %v", name, err)
			continue
		}
		policy.perService[strings.ToLower(name)] = window
	}
	return policy
}

// WindowFor 返回对指定名称生效的窗口 服务级优先 名称不区分大小写
func (p *MaintenancePolicy) WindowFor(name string) *Window {
	if p == nil {
		return nil
	}
	if window, ok := p.perService[strings.ToLower(strings.TrimSpace(name))]; ok {
		return window
	}
	return p.global
}

// InWindow 判断指定名称在 at 时刻是否处于维护窗口
func (p *MaintenancePolicy) InWindow(name string, at time.Time) (bool, string) {
	window := p.WindowFor(name)
	if window == nil {
		return false, "未配置维护窗口"
	}
	if !window.Contains(at) {
		return false, "不在维护窗口内"
	}
	scope := "全局"
	if window.source != "global" {
		scope = "服务级"
	}
	return true, fmt.Sprintf("%s维护窗口 %s", scope, window.Label())
}

// parseWindow 解析 HH:MM-HH:MM 与可选的星期过滤
func parseWindow(raw, daysRaw, source string) (*Window, error) {
	parts := strings.Split(strings.TrimSpace(raw), "-")
	if len(parts) != 2 {
		return nil, fmt.Errorf("窗口格式应为 HH:MM-HH:MM: %s", raw)
	}
	start, err := parseClock(parts[0])
	if err != nil {
		return nil, err
	}
	end, err := parseClock(parts[1])
	if err != nil {
		return nil, err
	}
	days, err := parseDays(daysRaw)
	if err != nil {
		return nil, err
	}
	return &Window{start: start, end: end, days: days, source: source}, nil
}

// parseClock 解析 HH:MM 为当日分钟数
func parseClock(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("时间格式应为 HH:MM: %s", raw)
	}
	hour, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, fmt.Errorf("无效小时: %s", raw)
	}
	minute, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, fmt.Errorf("无效分钟: %s", raw)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("时间超出范围: %s", raw)
	}
	return hour*60 + minute, nil
}

// parseDays 解析逗号分隔的星期列表 0=周一 留空表示每天
func parseDays(raw string) ([7]bool, error) {
	var days [7]bool
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		for i := range days {
			days[i] = true
		}
		return days, nil
	}
	any := false
	for _, part := range strings.Split(trimmed, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		day, err := strconv.Atoi(part)
		if err != nil || day < 0 || day > 6 {
			return days, fmt.Errorf("无效星期: %s", part)
		}
		days[day] = true
		any = true
	}
	if !any {
		return days, fmt.Errorf("星期列表为空: %s", raw)
	}
	return days, nil
}

// mondayWeekday 把 Go 的周日起算转换为周一起算
func mondayWeekday(at time.Time) int {
	return (int(at.Weekday()) + 6) % 7
}
