// 本文件用于采集调度与每日维护任务编排
// 文件职责：实现当前模块的核心业务逻辑与数据流转
// 关键路径：入口参数先校验再执行业务处理 最后返回统一结果
// 边界与容错：异常场景显式返回错误 由上层决定重试或降级

package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"home-pulse/internal/alert"
	"home-pulse/internal/collectors"
	"home-pulse/internal/logger"
	"home-pulse/internal/metrics"
	"home-pulse/internal/models"
)

const (
	// 每日清理的执行小时 避开采集高峰与晨间摘要
	cleanupHour = 3
	// 单轮采集的总超时
	cycleTimeout = 45 * time.Second
)

// SampleSink 表示样本的消费方 生产环境为告警引擎
type SampleSink interface {
	ProcessSample(ctx context.Context, sample alert.Sample) alert.Outcome
}

// SummaryTrigger 表示晨间摘要的触发入口
type SummaryTrigger interface {
	MaybeSend(ctx context.Context, now time.Time) (bool, error)
}

// SampleRecorder 表示样本的旁路持久化 趋势图与状态快照
type SampleRecorder interface {
	InsertMetricSample(ctx context.Context, sample alert.Sample) error
	UpsertServiceStatus(ctx context.Context, sample alert.Sample) error
	DeleteOldSamples(ctx context.Context, before time.Time) (int64, error)
}

// Archiver 表示每日事件归档能力
type Archiver interface {
	ExportDay(ctx context.Context, day time.Time) error
}

// Scheduler 驱动采集周期 并承担每日清理与归档
type Scheduler struct {
	mu             sync.Mutex
	cfg            *models.Config
	sink           SampleSink
	summary        SummaryTrigger
	recorder       SampleRecorder
	archiver       Archiver
	base           []collectors.Collector
	smart          collectors.Collector
	raid           collectors.Collector
	smartEvery     int // 每 N 个基础周期执行一次
	raidEvery      int
	cycleCount     int
	lastCleanupDay string

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// New 创建调度器
// SMART 与 RAID 周期按基础周期的整数倍向上取整
func New(cfg *models.Config, sink SampleSink, summary SummaryTrigger, recorder SampleRecorder) *Scheduler {
	smartEvery := intervalMultiple(cfg.SmartPollInterval, cfg.PollInterval)
	raidEvery := intervalMultiple(cfg.RaidPollInterval, cfg.PollInterval)
	return &Scheduler{
		cfg:        cfg,
		sink:       sink,
		summary:    summary,
		recorder:   recorder,
		smartEvery: smartEvery,
		raidEvery:  raidEvery,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Register 注册基础周期采集器
func (s *Scheduler) Register(collector collectors.Collector) {
	s.base = append(s.base, collector)
}

// RegisterSmart 注册 SMART 采集器 按独立周期执行
func (s *Scheduler) RegisterSmart(collector collectors.Collector) {
	s.smart = collector
}

// RegisterRaid 注册 RAID 采集器 按独立周期执行
func (s *Scheduler) RegisterRaid(collector collectors.Collector) {
	s.raid = collector
}

// SetArchiver 注册每日归档器 可选
func (s *Scheduler) SetArchiver(archiver Archiver) {
	s.archiver = archiver
}

// Start 启动调度循环 立即执行首轮采集
func (s *Scheduler) Start() {
	go s.run()
}

// Stop 停止调度并等待当前周期完成
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		close(s.stop)
	})
	<-s.done
}

func (s *Scheduler) run() {
	defer close(s.done)

	interval := time.Duration(s.cfg.PollInterval) * time.Second
	logger.Info("调度器启动 基础周期 %v SMART 每 %d 轮 RAID 每 %d 轮", interval, s.smartEvery, s.raidEvery)

	// 启动后立即执行首轮 尽快建立各键的基线状态
	s.RunCycle(context.Background())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			logger.Info("调度器停止")
			return
		case <-ticker.C:
			s.RunCycle(context.Background())
		}
	}
}

// RunCycle 执行一轮完整的采集与处理
// 手动触发与定时触发共用同一把锁 不会出现并发周期
func (s *Scheduler) RunCycle(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	cycleCtx, cancel := context.WithTimeout(ctx, cycleTimeout)
	defer cancel()

	s.cycleCount++
	due := make([]collectors.Collector, 0, len(s.base)+2)
	due = append(due, s.base...)
	// 首轮即执行 之后每 N 轮执行一次
	if s.smart != nil && s.smartEvery > 0 && (s.cycleCount-1)%s.smartEvery == 0 {
		due = append(due, s.smart)
	}
	if s.raid != nil && s.raidEvery > 0 && (s.cycleCount-1)%s.raidEvery == 0 {
		due = append(due, s.raid)
	}

	samples := s.collectAll(cycleCtx, due)

	// 采集并发 处理串行 保证事件顺序与存储写入稳定
	for _, sample := range samples {
		outcome := s.sink.ProcessSample(cycleCtx, sample)
		logger.Debug("样本 %s 状态 %s 处理结果 %s", sample.Key, sample.Status, outcome)
		metrics.Global().IncSample(string(sample.Category))
		s.recordSample(cycleCtx, sample)
	}

	if s.summary != nil {
		if _, err := s.summary.MaybeSend(cycleCtx, time.Now()); err != nil {
			logger.Error("晨间摘要触发失败: %v", err)
		}
	}
	s.maybeCleanup(cycleCtx, time.Now())

	metrics.Global().ObserveCycle(time.Since(started))
	logger.Debug("采集周期完成 %d 个样本 耗时 %v", len(samples), time.Since(started))
}

// collectAll 并发执行到期的采集器 汇总全部样本
// 采集器返回错误时 以采集器名记一条 FAIL 样本 让故障走同一条告警链路
func (s *Scheduler) collectAll(ctx context.Context, due []collectors.Collector) []alert.Sample {
	type result struct {
		index   int
		name    string
		samples []alert.Sample
		err     error
	}

	results := make(chan result, len(due))
	var wg sync.WaitGroup
	for idx, collector := range due {
		wg.Add(1)
		go func(idx int, collector collectors.Collector) {
			defer wg.Done()
			samples, err := collector.Collect(ctx)
			results <- result{index: idx, name: collector.Name(), samples: samples, err: err}
		}(idx, collector)
	}
	wg.Wait()
	close(results)

	ordered := make([]result, len(due))
	for item := range results {
		ordered[item.index] = item
	}

	out := make([]alert.Sample, 0, 16)
	for _, item := range ordered {
		if item.err != nil {
			logger.Error("采集器 %s 执行失败: %v", item.name, item.err)
			failed := alert.NewSample(categoryForCollector(item.name), item.name, alert.StatusFail)
			failed.ValueText = fmt.Sprintf("采集失败: %v", item.err)
			out = append(out, failed)
			continue
		}
		out = append(out, item.samples...)
	}
	return out
}

// recordSample 样本旁路落库 失败只记日志 不影响告警链路
func (s *Scheduler) recordSample(ctx context.Context, sample alert.Sample) {
	if s.recorder == nil {
		return
	}
	if sample.ValueNum != nil {
		if err := s.recorder.InsertMetricSample(ctx, sample); err != nil {
			logger.Error("样本落库失败: %v", err)
			metrics.Global().IncStoreFailure()
		}
	}
	if err := s.recorder.UpsertServiceStatus(ctx, sample); err != nil {
		logger.Error("状态快照写入失败: %v", err)
		metrics.Global().IncStoreFailure()
	}
}

// maybeCleanup 每日凌晨执行一次保留期清理 清理前先归档前一天事件
func (s *Scheduler) maybeCleanup(ctx context.Context, now time.Time) {
	if s.recorder == nil {
		return
	}
	if now.Hour() != cleanupHour {
		return
	}
	day := now.Format("2006-01-02")
	if s.lastCleanupDay == day {
		return
	}
	s.lastCleanupDay = day

	if s.archiver != nil {
		if err := s.archiver.ExportDay(ctx, now.AddDate(0, 0, -1)); err != nil {
			logger.Error("事件归档失败: %v", err)
		}
	}

	cutoff := now.AddDate(0, 0, -s.cfg.RetentionDays())
	deleted, err := s.recorder.DeleteOldSamples(ctx, cutoff)
	if err != nil {
		logger.Error("保留期清理失败: %v", err)
		metrics.Global().IncStoreFailure()
		return
	}
	logger.Info("保留期清理完成 删除 %d 行 截止 %s", deleted, cutoff.Format("2006-01-02"))
}

// intervalMultiple 把独立周期换算成基础周期的整数倍 向上取整
func intervalMultiple(interval, base int) int {
	if interval <= 0 || base <= 0 {
		return 0
	}
	multiple := interval / base
	if interval%base != 0 {
		multiple++
	}
	if multiple < 1 {
		multiple = 1
	}
	return multiple
}

// categoryForCollector 采集器整体失败时的兜底类别
func categoryForCollector(name string) alert.Category {
	switch name {
	case "docker":
		return alert.CategoryDocker
	case "smart":
		return alert.CategorySmart
	case "raid":
		return alert.CategoryRaid
	case "services":
		return alert.CategoryService
	case "apps":
		return alert.CategoryApp
	default:
		return alert.CategorySystem
	}
}
