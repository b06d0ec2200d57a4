package config

import (
	"reflect"
	"sort"
	"strings"

	logx "schedbot/pkg/logx"
)

// SummarizeChange returns (1) a compact list of changed sections,
// (2) safe structured attrs for logging (never includes secrets like tokens),
// and (3) the names of tasks that were added, removed, or modified.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	// Logging
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Scheduler
	if !reflect.DeepEqual(oldCfg.Scheduler, newCfg.Scheduler) {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.Int("scheduler.history_size", newCfg.Scheduler.HistorySize),
			logx.String("scheduler.reconcile_every", strings.TrimSpace(newCfg.Scheduler.ReconcileEvery)),
			logx.Bool("scheduler.kill_overruns", newCfg.Scheduler.KillOverruns),
		)
	}

	// Storage. Nil means disabled.
	oldS, newS := derefStorage(oldCfg.Storage), derefStorage(newCfg.Storage)
	if (oldCfg.Storage != nil) != (newCfg.Storage != nil) || !reflect.DeepEqual(oldS, newS) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newS.Path) != ""),
		)
	}

	// Notify (never log token)
	oldN, newN := derefNotify(oldCfg.Notify), derefNotify(newCfg.Notify)
	if (oldCfg.Notify != nil) != (newCfg.Notify != nil) || !reflect.DeepEqual(oldN, newN) {
		changed = append(changed, "notify")
		attrs = append(attrs,
			logx.Bool("notify.telegram_enabled", newN.Telegram.Enabled),
			logx.Bool("notify.token_set", strings.TrimSpace(newN.Telegram.Token) != ""),
			logx.Int("notify.rate_per_min", newN.Telegram.RatePerMin),
		)
	}

	// Agent
	if !reflect.DeepEqual(oldCfg.Agent, newCfg.Agent) {
		changed = append(changed, "agent")
		attrs = append(attrs,
			logx.Bool("agent.command_set", strings.TrimSpace(newCfg.Agent.Command) != ""),
			logx.Int("agent.args", len(newCfg.Agent.Args)),
		)
	}

	// Tasks (summarize only; details at debug)
	taskChanged := diffTasks(oldCfg.Tasks, newCfg.Tasks)
	if len(taskChanged) > 0 {
		changed = append(changed, "tasks")
		attrs = append(attrs,
			logx.Int("tasks.changed_count", len(taskChanged)),
			logx.Int("tasks.total", len(newCfg.Tasks)),
		)
	}

	sort.Strings(changed)
	return changed, attrs, taskChanged
}

func derefStorage(s *StorageConfig) StorageConfig {
	if s == nil {
		return StorageConfig{}
	}
	return *s
}

func derefNotify(n *NotifyConfig) NotifyConfig {
	if n == nil {
		return NotifyConfig{}
	}
	return *n
}

// diffTasks returns the names of tasks present in only one side or whose
// definition differs. Unnamed tasks are skipped here; they are rejected by
// validation anyway.
func diffTasks(oldT, newT []TaskConfig) []string {
	oldM := make(map[string]TaskConfig, len(oldT))
	for _, t := range oldT {
		if name := strings.TrimSpace(t.Name); name != "" {
			oldM[name] = t
		}
	}
	newM := make(map[string]TaskConfig, len(newT))
	for _, t := range newT {
		if name := strings.TrimSpace(t.Name); name != "" {
			newM[name] = t
		}
	}

	set := map[string]struct{}{}
	for k := range oldM {
		set[k] = struct{}{}
	}
	for k := range newM {
		set[k] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		o, okO := oldM[name]
		n, okN := newM[name]
		if okO != okN || !reflect.DeepEqual(o, n) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
