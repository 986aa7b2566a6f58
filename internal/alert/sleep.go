// 本文件用于睡眠时段判定
// 与维护窗口不同 睡眠时段面向整夜静默 事件排队到晨间摘要统一送达
package alert

import (
	"fmt"
	"time"

	"home-pulse/internal/logger"
	"home-pulse/internal/models"
)

// SleepSchedule 进程级睡眠时段 半开区间 [start, end)
// 终点不包含 意味着告警在醒来时刻准点恢复
type SleepSchedule struct {
	enabled       bool
	start         int // 当日分钟数
	end           int
	allowCritical bool
}

// NewSleepSchedule 从配置构建睡眠时段 解析失败时视为未启用
func NewSleepSchedule(cfg *models.Config) *SleepSchedule {
	schedule := &SleepSchedule{}
	if cfg == nil || !cfg.SleepScheduleEnabled {
		return schedule
	}
	start, err := parseClock(cfg.SleepScheduleStart)
	if err != nil {
		logger.Warn("睡眠起始时间无效 睡眠时段未启用: %v", err)
		return schedule
	}
	end, err := parseClock(cfg.SleepScheduleEnd)
	if err != nil {
		logger.Warn("睡眠结束时间无效 睡眠时段未启用: %v", err)
		return schedule
	}
	schedule.enabled = true
	schedule.start = start
	schedule.end = end
	schedule.allowCritical = cfg.SleepAllowCriticalAlerts
	return schedule
}

// Enabled 返回睡眠时段是否启用
func (s *SleepSchedule) Enabled() bool {
	return s != nil && s.enabled
}

// AllowCritical 返回关键基础设施是否豁免睡眠抑制
// 标志位用于开启豁免 默认关闭 即 SMART/RAID 也进入晨间摘要
func (s *SleepSchedule) AllowCritical() bool {
	return s != nil && s.allowCritical
}

// Active 判断 at 时刻是否处于睡眠时段内
func (s *SleepSchedule) Active(at time.Time) bool {
	if !s.Enabled() {
		return false
	}
	minute := at.Hour()*60 + at.Minute()
	if s.start <= s.end {
		return minute >= s.start && minute < s.end
	}
	// 跨午夜 例如 23:00-07:00
	return minute >= s.start || minute < s.end
}

// Label 输出睡眠时段的展示文本
func (s *SleepSchedule) Label() string {
	if !s.Enabled() {
		return ""
	}
	return fmt.Sprintf("%02d:%02d-%02d:%02d", s.start/60, s.start%60, s.end/60, s.end%60)
}
