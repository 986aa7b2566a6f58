// 本文件用于状态变更的宽限期判定
// 短暂抖动（单次失败随后恢复）不产生事件也不产生通知
package alert

import (
	"fmt"
	"sync"
	"time"
)

const defaultGraceChecks = 3

// Decision 表示宽限期判定结果
type Decision int

const (
	// DecisionNoChange 表示状态与已确认状态一致 无需处理
	DecisionNoChange Decision = iota
	// DecisionPending 表示变更尚在宽限期内 完全静默
	DecisionPending
	// DecisionConfirm 表示变更已确认 应落库并进入抑制判定
	DecisionConfirm
)

type pendingTransition struct {
	candidate   Status
	consecutive int
	firstSeen   time.Time
}

// PendingView 表示对外暴露的宽限期快照 用于调试接口
type PendingView struct {
	Key         string    `json:"key"`
	Candidate   string    `json:"candidate"`
	Consecutive int       `json:"consecutive"`
	Threshold   int       `json:"threshold"`
	FirstSeen   time.Time `json:"firstSeen"`
}

// GraceTracker 持有按键索引的待确认状态表
// 该表仅存在于内存 进程重启后丢失 属于可接受的设计取舍
type GraceTracker struct {
	mu        sync.Mutex
	threshold int
	pending   map[string]*pendingTransition
}

// NewGraceTracker 创建宽限期跟踪器
func NewGraceTracker(threshold int) *GraceTracker {
	if threshold <= 0 {
		threshold = defaultGraceChecks
	}
	return &GraceTracker{
		threshold: threshold,
		pending:   make(map[string]*pendingTransition),
	}
}

// Evaluate 根据上次已确认状态与本次观测状态给出判定
// 恢复到 OK 永远立即确认 坏消息需要连续 threshold 次才确认
func (t *GraceTracker) Evaluate(key string, prev, incoming Status, now time.Time) (Decision, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if incoming == prev {
		// 回到已确认状态 丢弃可能存在的待确认记录
		if _, ok := t.pending[key]; ok {
			delete(t.pending, key)
			return DecisionNoChange, "状态回落 丢弃宽限期记录"
		}
		return DecisionNoChange, "状态未变化"
	}

	if incoming == StatusOK {
		// 恢复不设宽限期 好消息立即送达
		delete(t.pending, key)
		return DecisionConfirm, "恢复到 OK 立即确认"
	}

	p, ok := t.pending[key]
	if !ok || p.candidate != incoming {
		// 新的候选状态从 1 开始计数 不同候选状态各自重新计数
		if t.threshold <= 1 {
			delete(t.pending, key)
			return DecisionConfirm, "宽限期阈值为 1 直接确认"
		}
		t.pending[key] = &pendingTransition{
			candidate:   incoming,
			consecutive: 1,
			firstSeen:   now,
		}
		return DecisionPending, fmt.Sprintf("进入宽限期 (1/%d)", t.threshold)
	}

	p.consecutive++
	if p.consecutive >= t.threshold {
		delete(t.pending, key)
		return DecisionConfirm, fmt.Sprintf("宽限期通过 (%d 次连续 %s)", p.consecutive, incoming)
	}
	return DecisionPending, fmt.Sprintf("宽限期进行中 (%d/%d)", p.consecutive, t.threshold)
}

// Clear 丢弃指定键的待确认记录
func (t *GraceTracker) Clear(key string) {
	t.mu.Lock()
	delete(t.pending, key)
	t.mu.Unlock()
}

// Pending 返回当前所有待确认记录的快照
func (t *GraceTracker) Pending() []PendingView {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]PendingView, 0, len(t.pending))
	for key, p := range t.pending {
		out = append(out, PendingView{
			Key:         key,
			Candidate:   p.candidate.String(),
			Consecutive: p.consecutive,
			Threshold:   t.threshold,
			FirstSeen:   p.firstSeen,
		})
	}
	return out
}

// Reset 清空全部待确认记录
func (t *GraceTracker) Reset() {
	t.mu.Lock()
	t.pending = make(map[string]*pendingTransition)
	t.mu.Unlock()
}
