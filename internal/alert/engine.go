// 本文件用于告警引擎的状态变更编排
// 文件职责：实现当前模块的核心业务逻辑与数据流转
// 关键路径：入口参数先校验再执行业务处理 最后返回统一结果
// 边界与容错：异常场景显式返回错误 由上层决定重试或降级

package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"home-pulse/internal/logger"
	"home-pulse/internal/metrics"
)

// Outcome 表示单个样本经过引擎后的处理结果
type Outcome string

const (
	// OutcomeNoChange 表示状态与已确认状态一致
	OutcomeNoChange Outcome = "no_change"
	// OutcomePending 表示变更处于宽限期 完全静默
	OutcomePending Outcome = "pending"
	// OutcomeSent 表示事件已落库且通知已发送
	OutcomeSent Outcome = "sent"
	// OutcomeSleepQueued 表示事件已落库并排队到晨间摘要
	OutcomeSleepQueued Outcome = "sleep_queued"
	// OutcomeMaintenanceSuppressed 表示事件已落库但因维护窗口未通知
	OutcomeMaintenanceSuppressed Outcome = "maintenance_suppressed"
	// OutcomeCooldown 表示事件已落库但处于通知冷却期
	OutcomeCooldown Outcome = "cooldown"
	// OutcomeNotifyFailed 表示事件已落库但通知发送失败
	OutcomeNotifyFailed Outcome = "notify_failed"
	// OutcomeDisabled 表示告警总开关关闭
	OutcomeDisabled Outcome = "disabled"
)

// EventStore 表示引擎依赖的事件存储契约
// 事件日志只追加 同一个键允许多行历史 最新一行即当前已确认状态
type EventStore interface {
	InsertEvent(ctx context.Context, event *Event) error
	LatestEventByKey(ctx context.Context, key string) (*Event, error)
	LatestEvents(ctx context.Context, limit int) ([]Event, error)
	MarkEventNotified(ctx context.Context, key string, at time.Time) error
	EnqueueSleepEvent(ctx context.Context, event Event) error
	SleepEvents(ctx context.Context) ([]Event, error)
	ClearSleepEvents(ctx context.Context) error
}

// Notifier 表示告警通知发送器
type Notifier interface {
	Notify(ctx context.Context, payload NotifyPayload) error
}

// Options 表示引擎的可调参数
type Options struct {
	Enabled     bool
	GraceChecks int
	Cooldown    time.Duration
	Maintenance *MaintenancePolicy
	Sleep       *SleepSchedule
}

// Engine 按键驱动状态机 把观测样本流转换为有限数量的通知
type Engine struct {
	mu          sync.Mutex
	store       EventStore
	notifier    Notifier
	grace       *GraceTracker
	maintenance *MaintenancePolicy
	sleep       *SleepSchedule
	cooldown    time.Duration
	enabled     bool
	onConfirmed func(Event) // 确认事件的旁路回调 用于推送面板
}

// NewEngine 创建告警引擎
func NewEngine(store EventStore, notifier Notifier, opts Options) *Engine {
	maintenance := opts.Maintenance
	if maintenance == nil {
		maintenance = &MaintenancePolicy{perService: map[string]*Window{}}
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = &SleepSchedule{}
	}
	return &Engine{
		store:       store,
		notifier:    notifier,
		grace:       NewGraceTracker(opts.GraceChecks),
		maintenance: maintenance,
		sleep:       sleep,
		cooldown:    opts.Cooldown,
		enabled:     opts.Enabled,
	}
}

// SetOnConfirmed 注册确认事件回调
func (e *Engine) SetOnConfirmed(fn func(Event)) {
	e.mu.Lock()
	e.onConfirmed = fn
	e.mu.Unlock()
}

// UpdatePolicies 运行时更新抑制策略 供配置热加载使用
func (e *Engine) UpdatePolicies(maintenance *MaintenancePolicy, sleep *SleepSchedule, cooldown time.Duration, enabled bool) {
	e.mu.Lock()
	if maintenance != nil {
		e.maintenance = maintenance
	}
	if sleep != nil {
		e.sleep = sleep
	}
	if cooldown > 0 {
		e.cooldown = cooldown
	}
	e.enabled = enabled
	e.mu.Unlock()
}

// Grace 返回宽限期跟踪器 用于调试接口
func (e *Engine) Grace() *GraceTracker {
	return e.grace
}

// ProcessSample 处理单个观测样本
// 持引擎锁执行 调度路径与手动触发路径由同一把锁串行化
func (e *Engine) ProcessSample(ctx context.Context, sample Sample) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled {
		return OutcomeDisabled
	}

	now := sample.ObservedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	// 抑制窗口配置按本地墙钟理解 观测时间戳是 UTC 必须先转换
	// 事件时间仍以 UTC 落库
	wall := now.In(time.Local)

	// 最近一条事件即当前已确认状态 未见过的键默认 OK
	prev := StatusOK
	var lastNotifiedAt *time.Time
	latest, err := e.store.LatestEventByKey(ctx, sample.Key)
	if err != nil {
		logger.Error("查询 %s 最近事件失败 按 OK 处理: %v", sample.Key, err)
		metrics.Global().IncStoreFailure()
	} else if latest != nil {
		prev = latest.NewStatus
		lastNotifiedAt = latest.NotifiedAt
	}

	decision, reason := e.grace.Evaluate(sample.Key, prev, sample.Status, now)
	switch decision {
	case DecisionNoChange:
		return OutcomeNoChange
	case DecisionPending:
		logger.Debug("%s: %s", sample.Key, reason)
		metrics.Global().IncGracePending()
		metrics.Global().SetPendingTransitions(len(e.grace.Pending()))
		return OutcomePending
	}
	metrics.Global().SetPendingTransitions(len(e.grace.Pending()))

	logger.Info("%s 状态变更确认: %s → %s (%s)", sample.Key, prev, sample.Status, reason)
	metrics.Global().IncEventConfirmed()

	event := Event{
		Key:        sample.Key,
		Category:   sample.Category,
		Name:       sample.Name,
		PrevStatus: prev,
		NewStatus:  sample.Status,
		Message:    buildEventMessage(sample.Name, prev, sample.Status),
		OccurredAt: now.UTC(),
	}

	outcome := e.dispatchLocked(ctx, &event, sample, lastNotifiedAt, now, wall)
	if e.onConfirmed != nil {
		e.onConfirmed(event)
	}
	return outcome
}

// dispatchLocked 执行抑制判定并完成落库与通知 顺序匹配即停
// wall 是 now 对应的本地墙钟时间 只用于窗口判定
func (e *Engine) dispatchLocked(ctx context.Context, event *Event, sample Sample, lastNotifiedAt *time.Time, now, wall time.Time) Outcome {
	// 睡眠时段优先于维护窗口 事件不会被双重计数
	// 关键基础设施仅在显式开启豁免时绕过睡眠抑制
	criticalExempt := sample.Category.Critical() && e.sleep.AllowCritical()
	if e.sleep.Active(wall) && !criticalExempt {
		event.SleepSuppressed = true
		e.persistLocked(ctx, event)
		if err := e.store.EnqueueSleepEvent(ctx, *event); err != nil {
			logger.Error("睡眠事件排队失败: %v", err)
			metrics.Global().IncStoreFailure()
		}
		logger.Info("%s 处于睡眠时段 %s 事件已排队到晨间摘要", event.Key, e.sleep.Label())
		metrics.Global().IncSuppressed("sleep")
		return OutcomeSleepQueued
	}

	// 关键基础设施无条件豁免维护抑制 恢复事件也不做维护抑制
	if !sample.Category.Critical() && event.NewStatus != StatusOK {
		if in, why := e.maintenance.InWindow(sample.Name, wall); in {
			event.MaintenanceSuppressed = true
			e.persistLocked(ctx, event)
			logger.Info("%s 命中维护窗口 不发送通知: %s", event.Key, why)
			metrics.Global().IncSuppressed("maintenance")
			return OutcomeMaintenanceSuppressed
		}
	}

	// 冷却期只作用于好转但未回到 OK 的过渡 例如 FAIL → WARN
	if event.NewStatus != StatusOK && event.PrevStatus.WorseThan(event.NewStatus) &&
		lastNotifiedAt != nil && e.cooldown > 0 && now.Sub(*lastNotifiedAt) < e.cooldown {
		e.persistLocked(ctx, event)
		logger.Info("%s 处于通知冷却期 (%.1f 分钟前已通知)", event.Key, now.Sub(*lastNotifiedAt).Minutes())
		metrics.Global().IncSuppressed("cooldown")
		return OutcomeCooldown
	}

	persisted := e.persistLocked(ctx, event)
	if err := e.notifyLocked(ctx, event, sample); err != nil {
		logger.Error("发送告警通知失败: %v", err)
		metrics.Global().IncNotifyFailure()
		return OutcomeNotifyFailed
	}
	metrics.Global().IncAlertSent()
	if persisted {
		notifiedAt := time.Now().UTC()
		if err := e.store.MarkEventNotified(ctx, event.Key, notifiedAt); err != nil {
			logger.Error("更新通知标记失败: %v", err)
			metrics.Global().IncStoreFailure()
		} else {
			event.Notified = true
			event.NotifiedAt = &notifiedAt
		}
	}
	return OutcomeSent
}

// persistLocked 落库失败只记日志 事件在本周期视为丢失 不回滚宽限期状态
func (e *Engine) persistLocked(ctx context.Context, event *Event) bool {
	if err := e.store.InsertEvent(ctx, event); err != nil {
		logger.Error("事件落库失败 本周期事件丢失: %v", err)
		metrics.Global().IncStoreFailure()
		return false
	}
	return true
}

// notifyLocked 用于发送通知并处理异常回退
func (e *Engine) notifyLocked(ctx context.Context, event *Event, sample Sample) error {
	if e.notifier == nil {
		return nil
	}
	return e.notifier.Notify(ctx, NotifyPayload{
		Key:        event.Key,
		Name:       event.Name,
		Category:   event.Category,
		PrevStatus: event.PrevStatus,
		NewStatus:  event.NewStatus,
		Message:    event.Message,
		Details:    sample.Details,
		Time:       event.OccurredAt,
	})
}

// buildEventMessage 用于构建事件的展示文本
func buildEventMessage(name string, prev, next Status) string {
	return fmt.Sprintf("%s: %s → %s", name, prev, next)
}
