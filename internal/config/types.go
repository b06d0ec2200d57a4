package config

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`

	// Storage controls the optional run-log sink. Nil means disabled.
	Storage *StorageConfig `json:"storage,omitempty"`

	// Notify controls the optional alerting pipeline. Nil means disabled.
	Notify *NotifyConfig `json:"notify,omitempty"`

	// Agent configures the runner subprocess. An empty command selects the
	// no-op runner (useful for dry runs and tests).
	Agent AgentConfig `json:"agent"`

	Tasks []TaskConfig `json:"tasks"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig controls the scheduler engine.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
//
// Defaults (when fields are omitted/zero):
//   - history_size: 50
//   - reconcile_every: "30s"
type SchedulerConfig struct {
	Enabled     bool `json:"enabled"`
	HistorySize int  `json:"history_size,omitempty"`

	// ReconcileEvery is the cadence of the sweep that retries
	// not-schedulable tasks and checks max_runtime overruns.
	ReconcileEvery string `json:"reconcile_every,omitempty"`

	// KillOverruns cancels runs exceeding their task's max_runtime instead
	// of only reporting them.
	KillOverruns bool `json:"kill_overruns,omitempty"`
}

// StorageConfig controls the append-only run log.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./schedbot-runs.jsonl" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type NotifyConfig struct {
	Telegram TelegramNotify `json:"telegram"`
}

type TelegramNotify struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  int64  `json:"chat_id"`
	// RatePerMin caps alert messages per minute (default 6).
	RatePerMin int `json:"rate_per_min,omitempty"`
}

type AgentConfig struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
	Workdir string   `json:"workdir,omitempty"`
}

// TaskConfig is the on-disk shape of one task definition.
//
// Exactly one of `every` / `daily` should be set; a task with neither stays
// registered but never becomes due.
type TaskConfig struct {
	Name    string `json:"name"`
	Agent   string `json:"agent"`
	Message string `json:"message"`

	// Every is a human interval like "5 minutes" or "2 hours".
	Every string `json:"every,omitempty"`
	// Daily runs the task once per eligible day.
	Daily bool `json:"daily,omitempty"`

	// After/Before bound the time-of-day window, "HH:MM" in the task zone.
	After  string `json:"after,omitempty"`
	Before string `json:"before,omitempty"`

	Weekdays   []string `json:"weekdays,omitempty"`
	DayOfMonth int      `json:"day_of_month,omitempty"`
	Timezone   string   `json:"timezone,omitempty"`

	// MaxRuntime is a Go duration string; "0s" or omitted means unlimited.
	MaxRuntime   string `json:"max_runtime,omitempty"`
	AllowOverlap bool   `json:"allow_overlap,omitempty"`
}
