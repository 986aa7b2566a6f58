// 本文件用于 Prometheus 指标聚合与导出 将运行时指标统一收口便于监控接入

package metrics

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector 聚合运行期指标，并以 Prometheus 文本格式输出。
type Collector struct {
	eventsConfirmedTotal atomic.Uint64
	alertsSentTotal      atomic.Uint64
	gracePendingTotal    atomic.Uint64
	notifyFailureTotal   atomic.Uint64
	storeFailureTotal    atomic.Uint64
	cyclesTotal          atomic.Uint64

	pendingTransitions atomic.Int64
	sleepQueueLength   atomic.Int64

	mu                 sync.RWMutex
	samplesByCategory  map[string]uint64
	suppressedByReason map[string]uint64
	cycleDurationSec   *histogram
}

type histogram struct {
	buckets []float64
	counts  []uint64 // 累计桶计数
	count   uint64
	sum     float64
}

var (
	globalCollector = NewCollector()
)

// Global 返回进程级全局指标收集器。
func Global() *Collector {
	return globalCollector
}

// NewCollector 创建指标收集器。
func NewCollector() *Collector {
	return &Collector{
		samplesByCategory:  make(map[string]uint64),
		suppressedByReason: make(map[string]uint64),
		cycleDurationSec:   newHistogram([]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}),
	}
}

func newHistogram(buckets []float64) *histogram {
	clean := make([]float64, 0, len(buckets))
	for _, bucket := range buckets {
		if bucket <= 0 {
			continue
		}
		clean = append(clean, bucket)
	}
	sort.Float64s(clean)
	return &histogram{
		buckets: clean,
		counts:  make([]uint64, len(clean)),
	}
}

func (h *histogram) observe(v float64) {
	if h == nil {
		return
	}
	for idx, bound := range h.buckets {
		if v <= bound {
			h.counts[idx]++
		}
	}
	h.count++
	h.sum += v
}

func (h *histogram) writePrometheus(builder *strings.Builder, metric string, labels map[string]string) {
	if h == nil {
		return
	}
	for idx, bound := range h.buckets {
		bucketLabels := mergeLabels(labels, map[string]string{
			"le": trimFloat(bound),
		})
		builder.WriteString(metric)
		builder.WriteString("_bucket")
		writeLabels(builder, bucketLabels)
		builder.WriteByte(' ')
		builder.WriteString(strconv.FormatUint(h.counts[idx], 10))
		builder.WriteByte('\n')
	}
	infLabels := mergeLabels(labels, map[string]string{
		"le": "+Inf",
	})
	builder.WriteString(metric)
	builder.WriteString("_bucket")
	writeLabels(builder, infLabels)
	builder.WriteByte(' ')
	builder.WriteString(strconv.FormatUint(h.count, 10))
	builder.WriteByte('\n')

	builder.WriteString(metric)
	builder.WriteString("_sum")
	writeLabels(builder, labels)
	builder.WriteByte(' ')
	builder.WriteString(trimFloat(h.sum))
	builder.WriteByte('\n')

	builder.WriteString(metric)
	builder.WriteString("_count")
	writeLabels(builder, labels)
	builder.WriteByte(' ')
	builder.WriteString(strconv.FormatUint(h.count, 10))
	builder.WriteByte('\n')
}

// IncSample 记录一次观测样本入库。
func (c *Collector) IncSample(category string) {
	if c == nil {
		return
	}
	key := normalizeMetricLabel(category)
	c.mu.Lock()
	c.samplesByCategory[key]++
	c.mu.Unlock()
}

// IncEventConfirmed 记录一次已确认的状态变更事件。
func (c *Collector) IncEventConfirmed() {
	if c == nil {
		return
	}
	c.eventsConfirmedTotal.Add(1)
}

// IncAlertSent 记录一次成功发出的告警通知。
func (c *Collector) IncAlertSent() {
	if c == nil {
		return
	}
	c.alertsSentTotal.Add(1)
}

// IncSuppressed 记录一次被抑制的通知及其原因。
func (c *Collector) IncSuppressed(reason string) {
	if c == nil {
		return
	}
	key := normalizeMetricLabel(reason)
	c.mu.Lock()
	c.suppressedByReason[key]++
	c.mu.Unlock()
}

// IncGracePending 记录一次宽限期内的静默样本。
func (c *Collector) IncGracePending() {
	if c == nil {
		return
	}
	c.gracePendingTotal.Add(1)
}

// IncNotifyFailure 记录一次通知发送失败。
func (c *Collector) IncNotifyFailure() {
	if c == nil {
		return
	}
	c.notifyFailureTotal.Add(1)
}

// IncStoreFailure 记录一次存储读写失败。
func (c *Collector) IncStoreFailure() {
	if c == nil {
		return
	}
	c.storeFailureTotal.Add(1)
}

// ObserveCycle 记录一次采集周期与耗时。
func (c *Collector) ObserveCycle(elapsed time.Duration) {
	if c == nil {
		return
	}
	c.cyclesTotal.Add(1)
	c.mu.Lock()
	c.cycleDurationSec.observe(elapsed.Seconds())
	c.mu.Unlock()
}

// SetPendingTransitions 刷新宽限期待确认数量。
func (c *Collector) SetPendingTransitions(n int) {
	if c == nil {
		return
	}
	c.pendingTransitions.Store(int64(n))
}

// SetSleepQueueLength 刷新睡眠事件队列长度。
func (c *Collector) SetSleepQueueLength(n int) {
	if c == nil {
		return
	}
	c.sleepQueueLength.Store(int64(n))
}

// RenderPrometheus 输出 Prometheus 文本格式的全部指标。
func (c *Collector) RenderPrometheus() string {
	if c == nil {
		return ""
	}
	var builder strings.Builder

	samplesByCategory := make(map[string]uint64)
	suppressedByReason := make(map[string]uint64)
	var cycleDurationCopy histogram
	c.mu.RLock()
	for category, count := range c.samplesByCategory {
		samplesByCategory[category] = count
	}
	for reason, count := range c.suppressedByReason {
		suppressedByReason[reason] = count
	}
	cycleDurationCopy = cloneHistogram(c.cycleDurationSec)
	c.mu.RUnlock()

	writeMetricHeader(&builder, "hp_samples_total", "counter", "Total status samples processed, grouped by category.")
	for _, category := range sortedStringKeysFromUintMap(samplesByCategory) {
		writeCounter(&builder, "hp_samples_total", samplesByCategory[category], map[string]string{
			"category": category,
		})
	}

	writeMetricHeader(&builder, "hp_events_confirmed_total", "counter", "Total confirmed state-change events.")
	writeCounter(&builder, "hp_events_confirmed_total", c.eventsConfirmedTotal.Load(), nil)

	writeMetricHeader(&builder, "hp_alerts_sent_total", "counter", "Total alert notifications delivered.")
	writeCounter(&builder, "hp_alerts_sent_total", c.alertsSentTotal.Load(), nil)

	writeMetricHeader(&builder, "hp_alerts_suppressed_total", "counter", "Suppressed notifications grouped by reason.")
	// 始终输出三个原因，避免零流量时缺失时序导致巡检误报
	for _, reason := range []string{"sleep", "maintenance", "cooldown"} {
		if _, ok := suppressedByReason[reason]; !ok {
			suppressedByReason[reason] = 0
		}
	}
	for _, reason := range sortedStringKeysFromUintMap(suppressedByReason) {
		writeCounter(&builder, "hp_alerts_suppressed_total", suppressedByReason[reason], map[string]string{
			"reason": reason,
		})
	}

	writeMetricHeader(&builder, "hp_grace_pending_total", "counter", "Samples silenced inside the grace period.")
	writeCounter(&builder, "hp_grace_pending_total", c.gracePendingTotal.Load(), nil)

	writeMetricHeader(&builder, "hp_notify_failure_total", "counter", "Total notification delivery failures.")
	writeCounter(&builder, "hp_notify_failure_total", c.notifyFailureTotal.Load(), nil)

	writeMetricHeader(&builder, "hp_store_failure_total", "counter", "Total event store read/write failures.")
	writeCounter(&builder, "hp_store_failure_total", c.storeFailureTotal.Load(), nil)

	writeMetricHeader(&builder, "hp_collect_cycles_total", "counter", "Total collection cycles executed.")
	writeCounter(&builder, "hp_collect_cycles_total", c.cyclesTotal.Load(), nil)

	writeMetricHeader(&builder, "hp_pending_transitions", "gauge", "Current pending grace-period transitions.")
	writeGaugeInt(&builder, "hp_pending_transitions", c.pendingTransitions.Load(), nil)

	writeMetricHeader(&builder, "hp_sleep_queue_length", "gauge", "Events queued for the morning digest.")
	writeGaugeInt(&builder, "hp_sleep_queue_length", c.sleepQueueLength.Load(), nil)

	writeMetricHeader(&builder, "hp_cycle_duration_seconds", "histogram", "Collection cycle latency distribution in seconds.")
	cycleDurationCopy.writePrometheus(&builder, "hp_cycle_duration_seconds", nil)

	return builder.String()
}

func cloneHistogram(h *histogram) histogram {
	if h == nil {
		return histogram{}
	}
	copyHist := histogram{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		count:   h.count,
		sum:     h.sum,
	}
	return copyHist
}

func writeMetricHeader(builder *strings.Builder, metric, metricType, help string) {
	builder.WriteString("# HELP ")
	builder.WriteString(metric)
	builder.WriteByte(' ')
	builder.WriteString(help)
	builder.WriteByte('\n')
	builder.WriteString("# TYPE ")
	builder.WriteString(metric)
	builder.WriteByte(' ')
	builder.WriteString(metricType)
	builder.WriteByte('\n')
}

func writeCounter(builder *strings.Builder, metric string, value uint64, labels map[string]string) {
	builder.WriteString(metric)
	writeLabels(builder, labels)
	builder.WriteByte(' ')
	builder.WriteString(strconv.FormatUint(value, 10))
	builder.WriteByte('\n')
}

func writeGaugeInt(builder *strings.Builder, metric string, value int64, labels map[string]string) {
	builder.WriteString(metric)
	writeLabels(builder, labels)
	builder.WriteByte(' ')
	builder.WriteString(strconv.FormatInt(value, 10))
	builder.WriteByte('\n')
}

func writeLabels(builder *strings.Builder, labels map[string]string) {
	if len(labels) == 0 {
		return
	}
	keys := make([]string, 0, len(labels))
	for key := range labels {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	builder.WriteByte('{')
	for idx, key := range keys {
		if idx > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(key)
		builder.WriteString("=\"")
		builder.WriteString(escapeLabelValue(labels[key]))
		builder.WriteByte('"')
	}
	builder.WriteByte('}')
}

func mergeLabels(base, ext map[string]string) map[string]string {
	if len(base) == 0 && len(ext) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(ext))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range ext {
		merged[key] = value
	}
	return merged
}

func normalizeMetricLabel(value string) string {
	clean := strings.TrimSpace(strings.ToLower(value))
	if clean == "" {
		return "unknown"
	}
	clean = strings.ReplaceAll(clean, "\n", " ")
	clean = strings.ReplaceAll(clean, "\r", " ")
	clean = strings.ReplaceAll(clean, "\t", " ")
	clean = strings.Join(strings.Fields(clean), " ")
	if len(clean) > 120 {
		clean = clean[:120]
	}
	return clean
}

func escapeLabelValue(value string) string {
	replacer := strings.NewReplacer(
		`\\`, `\\\\`,
		`"`, `\"`,
		"\n", `\n`,
	)
	return replacer.Replace(value)
}

func sortedStringKeysFromUintMap(items map[string]uint64) []string {
	keys := make([]string, 0, len(items))
	for key := range items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func trimFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// ResetForTest 仅用于测试，避免跨用例污染。
func (c *Collector) ResetForTest() {
	if c == nil {
		return
	}
	c.eventsConfirmedTotal.Store(0)
	c.alertsSentTotal.Store(0)
	c.gracePendingTotal.Store(0)
	c.notifyFailureTotal.Store(0)
	c.storeFailureTotal.Store(0)
	c.cyclesTotal.Store(0)
	c.pendingTransitions.Store(0)
	c.sleepQueueLength.Store(0)

	c.mu.Lock()
	c.samplesByCategory = make(map[string]uint64)
	c.suppressedByReason = make(map[string]uint64)
	c.cycleDurationSec = newHistogram([]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30})
	c.mu.Unlock()
}

// MustGlobalPrometheus 返回全局指标文本，便于在 handler 中直接输出。
func MustGlobalPrometheus() string {
	return Global().RenderPrometheus()
}
