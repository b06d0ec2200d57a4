package engine

import (
	"time"
)

// Config controls the scheduler engine.
type Config struct {
	Enabled bool

	// HistorySize bounds the per-task run history.
	HistorySize int

	// ReconcileEvery is the cadence of the periodic sweep that re-arms
	// tasks that were not schedulable and checks for overrunning runs.
	ReconcileEvery time.Duration

	// KillOverruns cancels runs that exceed their task's MaxRuntime.
	// When false (the default) overruns are only reported.
	KillOverruns bool
}

func (c Config) withDefaults() Config {
	if c.HistorySize <= 0 {
		c.HistorySize = 50
	}
	if c.ReconcileEvery <= 0 {
		c.ReconcileEvery = 30 * time.Second
	}
	return c
}

// State is the execution state of a task.
type State int

const (
	// Idle: no entry; nothing armed, nothing running.
	Idle State = iota
	// Pending: a due time is known and a timer is armed.
	Pending
	// Running: at least one run is in flight.
	Running
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	default:
		return "idle"
	}
}

// RunStatus is the terminal outcome of one run.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// HistoryRecord is an immutable log entry for one finished run. Records are
// owned by the task: they survive definition edits and are discarded when
// the task is removed.
type HistoryRecord struct {
	Task    string
	Started time.Time
	Ended   time.Time
	Status  RunStatus
	Message string
}

// TaskStatus is the per-task view exposed to callers.
type TaskStatus struct {
	Name    string
	Summary string
	State   State
	// NextRun is set while a timer is armed.
	NextRun time.Time
	// LastRun is the completion time of the most recent run.
	LastRun time.Time
	// Runs is the number of in-flight runs (can exceed 1 with AllowOverlap).
	Runs int
}

// Snapshot is a point-in-time view of the engine for status surfaces.
type Snapshot struct {
	Enabled bool
	Started bool
	Tasks   []TaskStatus
	// History is most-recent-first across all tasks.
	History []HistoryRecord
}

// RunEvent is the payload published on the event bus for run lifecycle
// events (run.started, run.completed, run.failed, run.skipped, run.overrun).
type RunEvent struct {
	Task    string    `json:"task"`
	Agent   string    `json:"agent,omitempty"`
	Started time.Time `json:"started"`
	Ended   time.Time `json:"ended"`
	Status  string    `json:"status,omitempty"`
	Message string    `json:"message,omitempty"`
}
