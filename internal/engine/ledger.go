package engine

import (
	"context"
	"sort"
	"time"
)

// entry is the transient execution record for one task. It exists from the
// moment a due time is known until the last run completes; a task with no
// entry is Idle.
//
// ver guards timer callbacks: it is bumped whenever the timer is (re)armed
// or invalidated, so a stale time.AfterFunc callback from a replaced or
// cancelled timer is ignored.
type entry struct {
	ver   uint64
	next  time.Time
	timer *time.Timer
	runs  map[uint64]*run
}

// run tracks one in-flight invocation of the external runner. The cancel
// func aborts the run's context; overrun/killed record that the MaxRuntime
// report (or forced cancellation) already happened for this run.
type run struct {
	id      uint64
	started time.Time
	cancel  context.CancelFunc
	overrun bool
	killed  bool
}

func (e *entry) state() State {
	if len(e.runs) > 0 {
		return Running
	}
	if e.timer != nil {
		return Pending
	}
	return Idle
}

// disarmLocked cancels a pending timer and invalidates outstanding timer
// callbacks. Engine mutex must be held.
func (e *entry) disarmLocked() {
	e.ver++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.next = time.Time{}
}

// appendHistoryLocked appends rec to the task's bounded history.
// Engine mutex must be held.
func (g *Engine) appendHistoryLocked(rec HistoryRecord) {
	h := append(g.history[rec.Task], rec)
	if n := g.cfg.HistorySize; len(h) > n {
		h = h[len(h)-n:]
	}
	g.history[rec.Task] = h
}

// historyLocked merges all tasks' records, most recent first, capped at
// limit (<=0 means no cap beyond the per-task bounds).
func (g *Engine) historyLocked(limit int) []HistoryRecord {
	out := make([]HistoryRecord, 0, 32)
	for _, h := range g.history {
		out = append(out, h...)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Started.Equal(out[j].Started) {
			return out[i].Started.After(out[j].Started)
		}
		return out[i].Task < out[j].Task
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
