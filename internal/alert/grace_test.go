// 本文件用于宽限期判定测试
package alert

import (
	"testing"
	"time"
)

func TestGraceTracker_TransientBlipSilenced(t *testing.T) {
	tracker := NewGraceTracker(3)
	now := time.Now()

	decision, _ := tracker.Evaluate("service_plex", StatusOK, StatusFail, now)
	if decision != DecisionPending {
		t.Fatalf("first FAIL expected pending, got %v", decision)
	}
	decision, _ = tracker.Evaluate("service_plex", StatusOK, StatusOK, now.Add(time.Minute))
	if decision != DecisionNoChange {
		t.Fatalf("recovery during grace expected no change, got %v", decision)
	}
	if len(tracker.Pending()) != 0 {
		t.Fatalf("pending record expected dropped after recovery, got %d", len(tracker.Pending()))
	}
}

func TestGraceTracker_ConfirmAfterThreshold(t *testing.T) {
	tracker := NewGraceTracker(3)
	now := time.Now()

	for i := 0; i < 2; i++ {
		decision, _ := tracker.Evaluate("service_plex", StatusOK, StatusFail, now)
		if decision != DecisionPending {
			t.Fatalf("check %d expected pending, got %v", i+1, decision)
		}
	}
	decision, _ := tracker.Evaluate("service_plex", StatusOK, StatusFail, now)
	if decision != DecisionConfirm {
		t.Fatalf("third consecutive FAIL expected confirm, got %v", decision)
	}
	if len(tracker.Pending()) != 0 {
		t.Fatalf("pending record expected cleared after confirm")
	}
}

func TestGraceTracker_RecoveryImmediate(t *testing.T) {
	tracker := NewGraceTracker(3)
	decision, _ := tracker.Evaluate("service_plex", StatusFail, StatusOK, time.Now())
	if decision != DecisionConfirm {
		t.Fatalf("recovery to OK expected immediate confirm, got %v", decision)
	}
}

func TestGraceTracker_DifferentCandidateRestartsCount(t *testing.T) {
	tracker := NewGraceTracker(3)
	now := time.Now()

	tracker.Evaluate("system_cpu", StatusOK, StatusWarn, now)
	tracker.Evaluate("system_cpu", StatusOK, StatusWarn, now)
	// 候选从 WARN 换成 FAIL 计数重新从 1 开始
	decision, _ := tracker.Evaluate("system_cpu", StatusOK, StatusFail, now)
	if decision != DecisionPending {
		t.Fatalf("candidate switch expected pending, got %v", decision)
	}
	pending := tracker.Pending()
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending record, got %d", len(pending))
	}
	if pending[0].Candidate != "FAIL" || pending[0].Consecutive != 1 {
		t.Fatalf("expected FAIL count 1, got %s count %d", pending[0].Candidate, pending[0].Consecutive)
	}

	// 继续两次 FAIL 即确认 之前的 WARN 计数不计入
	tracker.Evaluate("system_cpu", StatusOK, StatusFail, now)
	decision, _ = tracker.Evaluate("system_cpu", StatusOK, StatusFail, now)
	if decision != DecisionConfirm {
		t.Fatalf("third consecutive FAIL expected confirm, got %v", decision)
	}
}

func TestGraceTracker_SameAsConfirmedDropsPending(t *testing.T) {
	tracker := NewGraceTracker(3)
	now := time.Now()

	tracker.Evaluate("system_memory", StatusWarn, StatusFail, now)
	decision, _ := tracker.Evaluate("system_memory", StatusWarn, StatusWarn, now)
	if decision != DecisionNoChange {
		t.Fatalf("return to confirmed status expected no change, got %v", decision)
	}
	if len(tracker.Pending()) != 0 {
		t.Fatalf("pending record expected dropped")
	}
}

func TestGraceTracker_ThresholdOneImmediate(t *testing.T) {
	tracker := NewGraceTracker(1)
	decision, _ := tracker.Evaluate("service_plex", StatusOK, StatusFail, time.Now())
	if decision != DecisionConfirm {
		t.Fatalf("threshold 1 expected immediate confirm, got %v", decision)
	}
}

func TestGraceTracker_KeysIndependent(t *testing.T) {
	tracker := NewGraceTracker(2)
	now := time.Now()

	tracker.Evaluate("service_a", StatusOK, StatusFail, now)
	decision, _ := tracker.Evaluate("service_b", StatusOK, StatusFail, now)
	if decision != DecisionPending {
		t.Fatalf("key b first FAIL expected pending, got %v", decision)
	}
	decision, _ = tracker.Evaluate("service_a", StatusOK, StatusFail, now)
	if decision != DecisionConfirm {
		t.Fatalf("key a second FAIL expected confirm, got %v", decision)
	}
}

func TestGraceTracker_DefaultThreshold(t *testing.T) {
	tracker := NewGraceTracker(0)
	if tracker.threshold != defaultGraceChecks {
		t.Fatalf("expected default threshold %d, got %d", defaultGraceChecks, tracker.threshold)
	}
}
