// 本文件用于晨间摘要的组装与发送
// 睡眠时段排队的事件在醒来时刻合并为一条 Discord 消息
package alert

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"home-pulse/internal/logger"
	"home-pulse/internal/metrics"
	"home-pulse/internal/models"
)

const (
	// 醒来时刻前后调度可能各触发一次 5 分钟窗口内只发送一次
	summaryResendWindow = 5 * time.Minute
	// 与摘要时间的允许偏差 调度周期通常为 60 秒
	summaryTimeTolerance = 1
	// 摘要正文最多展示的事件条数
	summaryMaxLines = 10
)

// DigestSender 表示晨间摘要发送器
type DigestSender interface {
	SendDigest(ctx context.Context, digest Digest) error
}

// DigestLine 表示摘要中的一条事件
type DigestLine struct {
	Time       string // 本地时间 12 小时制
	Name       string
	PrevStatus Status
	NewStatus  Status
}

// Digest 表示晨间摘要内容
type Digest struct {
	Period        string
	QuietNight    bool
	EventCount    int
	ExcludedCount int // 落在维护窗口内被剔除的事件数
	Lines         []DigestLine
	Ongoing       []string // 醒来时仍未恢复的对象
	GeneratedAt   time.Time
}

// Summarizer 负责晨间摘要的触发判定与组装
// 去重状态由实例持有 进程重启后重置
type Summarizer struct {
	mu          sync.Mutex
	store       EventStore
	sender      DigestSender
	maintenance *MaintenancePolicy
	sleep       *SleepSchedule
	enabled     bool
	summaryAt   int // 当日分钟数 -1 表示未配置
	lastSent    time.Time
}

// NewSummarizer 创建晨间摘要组件
func NewSummarizer(cfg *models.Config, store EventStore, sender DigestSender, maintenance *MaintenancePolicy, sleep *SleepSchedule) *Summarizer {
	summarizer := &Summarizer{
		store:       store,
		sender:      sender,
		maintenance: maintenance,
		sleep:       sleep,
		summaryAt:   -1,
	}
	if cfg == nil || !cfg.SummaryOn() || !sleep.Enabled() {
		return summarizer
	}
	at, err := parseClock(cfg.SleepSummaryTime)
	if err != nil {
		logger.Warn("摘要时间配置无效 晨间摘要未启用: %v", err)
		return summarizer
	}
	summarizer.enabled = true
	summarizer.summaryAt = at
	return summarizer
}

// UpdatePolicies 运行时更新维护窗口 供配置热加载使用
func (s *Summarizer) UpdatePolicies(maintenance *MaintenancePolicy) {
	s.mu.Lock()
	if maintenance != nil {
		s.maintenance = maintenance
	}
	s.mu.Unlock()
}

// MaybeSend 在醒来时刻触发摘要 其余时刻为空操作
// 返回是否实际发送了摘要
func (s *Summarizer) MaybeSend(ctx context.Context, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled || s.summaryAt < 0 {
		return false, nil
	}
	minute := now.Hour()*60 + now.Minute()
	diff := minute - s.summaryAt
	if diff < 0 {
		diff = -diff
	}
	if diff > summaryTimeTolerance {
		return false, nil
	}
	if !s.lastSent.IsZero() && now.Sub(s.lastSent) < summaryResendWindow {
		logger.Debug("晨间摘要 %s 前已发送 跳过重复触发", now.Sub(s.lastSent))
		return false, nil
	}

	events, err := s.store.SleepEvents(ctx)
	if err != nil {
		return false, fmt.Errorf("读取睡眠事件队列失败: %w", err)
	}
	metrics.Global().SetSleepQueueLength(len(events))

	digest := s.assembleLocked(events, now)

	// 无论是否发送成功 队列都要清空 避免次日重放同一批事件
	if err := s.store.ClearSleepEvents(ctx); err != nil {
		logger.Error("清空睡眠事件队列失败: %v", err)
	} else {
		metrics.Global().SetSleepQueueLength(0)
	}

	// 重发窗口在队列清空后立即生效 发送失败不补发
	// 队列已空 下一周期再触发只会生成自相矛盾的平安夜摘要
	s.lastSent = now

	if s.sender == nil {
		return false, nil
	}
	if err := s.sender.SendDigest(ctx, digest); err != nil {
		return false, fmt.Errorf("发送晨间摘要失败: %w", err)
	}
	logger.Info("晨间摘要已发送 事件 %d 条 剔除 %d 条", digest.EventCount, digest.ExcludedCount)
	return true, nil
}

// assembleLocked 组装摘要内容
// 维护窗口在组装时刻重新判定 事后补配的窗口同样生效
func (s *Summarizer) assembleLocked(events []Event, now time.Time) Digest {
	digest := Digest{
		Period:      s.sleep.Label(),
		GeneratedAt: now,
	}

	included := make([]Event, 0, len(events))
	for _, event := range events {
		local := event.OccurredAt.In(time.Local)
		if in, _ := s.maintenance.InWindow(event.Name, local); in && event.NewStatus != StatusOK {
			digest.ExcludedCount++
			continue
		}
		included = append(included, event)
	}

	if len(included) == 0 {
		digest.QuietNight = true
		return digest
	}

	sort.Slice(included, func(i, j int) bool {
		return included[i].OccurredAt.Before(included[j].OccurredAt)
	})

	digest.EventCount = len(included)
	start := 0
	if len(included) > summaryMaxLines {
		start = len(included) - summaryMaxLines
	}
	for _, event := range included[start:] {
		digest.Lines = append(digest.Lines, DigestLine{
			// 库里存 UTC 展示转本地时间 直接渲染 UTC 是历史缺陷
			Time:       event.OccurredAt.In(time.Local).Format("3:04 PM"),
			Name:       event.Name,
			PrevStatus: event.PrevStatus,
			NewStatus:  event.NewStatus,
		})
	}

	// 每个键取时间最晚的状态 仍未恢复的列入持续问题
	latestByKey := make(map[string]Event, len(included))
	for _, event := range included {
		if existing, ok := latestByKey[event.Key]; !ok || event.OccurredAt.After(existing.OccurredAt) {
			latestByKey[event.Key] = event
		}
	}
	keys := make([]string, 0, len(latestByKey))
	for key := range latestByKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		event := latestByKey[key]
		if event.NewStatus != StatusOK {
			digest.Ongoing = append(digest.Ongoing, fmt.Sprintf("%s: %s", event.Name, event.NewStatus))
		}
	}
	return digest
}
