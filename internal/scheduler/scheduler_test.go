// 本文件用于调度器测试
package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"home-pulse/internal/alert"
	"home-pulse/internal/models"
)

type fakeSink struct {
	mu      sync.Mutex
	samples []alert.Sample
}

func (f *fakeSink) ProcessSample(_ context.Context, sample alert.Sample) alert.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, sample)
	return alert.OutcomeNoChange
}

func (f *fakeSink) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.samples))
	for _, sample := range f.samples {
		out = append(out, sample.Key)
	}
	return out
}

type fakeCollector struct {
	name    string
	samples []alert.Sample
	err     error
	calls   int
}

func (f *fakeCollector) Name() string {
	return f.name
}

func (f *fakeCollector) Collect(_ context.Context) ([]alert.Sample, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.samples, nil
}

func testConfig() *models.Config {
	return &models.Config{
		PollInterval:      60,
		SmartPollInterval: 600,
		RaidPollInterval:  120,
	}
}

func TestScheduler_CycleProcessesAllSamples(t *testing.T) {
	sink := &fakeSink{}
	sched := New(testConfig(), sink, nil, nil)
	sched.Register(&fakeCollector{
		name: "services",
		samples: []alert.Sample{
			alert.NewSample(alert.CategoryService, "Plex", alert.StatusOK),
			alert.NewSample(alert.CategoryService, "Jellyfin", alert.StatusFail),
		},
	})

	sched.RunCycle(context.Background())

	keys := sink.keys()
	if len(keys) != 2 {
		t.Fatalf("expected 2 samples processed, got %d", len(keys))
	}
	if keys[0] != "service_plex" || keys[1] != "service_jellyfin" {
		t.Fatalf("unexpected order: %v", keys)
	}
}

func TestScheduler_CollectorErrorBecomesFailSample(t *testing.T) {
	sink := &fakeSink{}
	sched := New(testConfig(), sink, nil, nil)
	sched.Register(&fakeCollector{name: "docker", err: errors.New("daemon unreachable")})

	sched.RunCycle(context.Background())

	if len(sink.samples) != 1 {
		t.Fatalf("expected 1 synthetic sample, got %d", len(sink.samples))
	}
	sample := sink.samples[0]
	if sample.Status != alert.StatusFail {
		t.Fatalf("collector error expected FAIL sample, got %s", sample.Status)
	}
	if sample.Category != alert.CategoryDocker {
		t.Fatalf("expected docker category, got %s", sample.Category)
	}
}

func TestScheduler_SlowCadenceCollectors(t *testing.T) {
	sink := &fakeSink{}
	sched := New(testConfig(), sink, nil, nil)
	smart := &fakeCollector{name: "smart"}
	raid := &fakeCollector{name: "raid"}
	sched.RegisterSmart(smart)
	sched.RegisterRaid(raid)

	// 基础周期 60s SMART 每 10 轮 RAID 每 2 轮
	for i := 0; i < 10; i++ {
		sched.RunCycle(context.Background())
	}
	if smart.calls != 1 {
		t.Fatalf("smart expected 1 call in 10 cycles, got %d", smart.calls)
	}
	if raid.calls != 5 {
		t.Fatalf("raid expected 5 calls in 10 cycles, got %d", raid.calls)
	}

	sched.RunCycle(context.Background())
	if smart.calls != 2 {
		t.Fatalf("smart expected to run again on cycle 11, got %d", smart.calls)
	}
}

type fakeSummary struct {
	calls int
}

func (f *fakeSummary) MaybeSend(_ context.Context, _ time.Time) (bool, error) {
	f.calls++
	return false, nil
}

func TestScheduler_SummaryCheckedEveryCycle(t *testing.T) {
	sink := &fakeSink{}
	summary := &fakeSummary{}
	sched := New(testConfig(), sink, summary, nil)

	for i := 0; i < 3; i++ {
		sched.RunCycle(context.Background())
	}
	if summary.calls != 3 {
		t.Fatalf("summary expected checked each cycle, got %d", summary.calls)
	}
}

func TestIntervalMultiple(t *testing.T) {
	cases := []struct {
		interval int
		base     int
		want     int
	}{
		{interval: 600, base: 60, want: 10},
		{interval: 120, base: 60, want: 2},
		{interval: 90, base: 60, want: 2},
		{interval: 30, base: 60, want: 1},
		{interval: 0, base: 60, want: 0},
	}
	for _, tc := range cases {
		if got := intervalMultiple(tc.interval, tc.base); got != tc.want {
			t.Fatalf("intervalMultiple(%d, %d) expected %d, got %d", tc.interval, tc.base, tc.want, got)
		}
	}
}

func TestCategoryForCollector(t *testing.T) {
	cases := map[string]alert.Category{
		"docker":   alert.CategoryDocker,
		"smart":    alert.CategorySmart,
		"raid":     alert.CategoryRaid,
		"services": alert.CategoryService,
		"apps":     alert.CategoryApp,
		"system":   alert.CategorySystem,
	}
	for name, want := range cases {
		if got := categoryForCollector(name); got != want {
			t.Fatalf("categoryForCollector(%s) expected %s, got %s", name, want, got)
		}
	}
}
