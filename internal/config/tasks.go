package config

import (
	"fmt"
	"strings"

	"schedbot/internal/schedule"
	"schedbot/internal/task"
)

// Definition converts the on-disk task shape into a validated runtime
// definition. All parse failures wrap task.ErrConfig so callers can treat
// them uniformly as rejected configuration.
func (t TaskConfig) Definition() (task.Definition, error) {
	name := strings.TrimSpace(t.Name)
	def := task.Definition{
		Name:         name,
		Agent:        strings.TrimSpace(t.Agent),
		Message:      t.Message,
		DayOfMonth:   t.DayOfMonth,
		Timezone:     strings.TrimSpace(t.Timezone),
		AllowOverlap: t.AllowOverlap,
	}

	if s := strings.TrimSpace(t.Every); s != "" {
		d, err := schedule.ParseInterval(s)
		if err != nil {
			return task.Definition{}, fmt.Errorf("%w: task %q: every: %v", task.ErrConfig, name, err)
		}
		def.Recur.Every = d
	}
	def.Recur.Daily = t.Daily

	if s := strings.TrimSpace(t.After); s != "" {
		tod, err := task.ParseTimeOfDay(s)
		if err != nil {
			return task.Definition{}, fmt.Errorf("%w: task %q: after: %v", task.ErrConfig, name, err)
		}
		def.After = &tod
	}
	if s := strings.TrimSpace(t.Before); s != "" {
		tod, err := task.ParseTimeOfDay(s)
		if err != nil {
			return task.Definition{}, fmt.Errorf("%w: task %q: before: %v", task.ErrConfig, name, err)
		}
		def.Before = &tod
	}

	for _, w := range t.Weekdays {
		wd, err := task.ParseWeekday(w)
		if err != nil {
			return task.Definition{}, fmt.Errorf("%w: task %q: weekdays: %v", task.ErrConfig, name, err)
		}
		def.Weekdays = def.Weekdays.With(wd)
	}

	if s := strings.TrimSpace(t.MaxRuntime); s != "" {
		d, err := ParseDurationField(fmt.Sprintf("tasks[%s].max_runtime", name), s)
		if err != nil {
			return task.Definition{}, fmt.Errorf("%w: %v", task.ErrConfig, err)
		}
		def.MaxRuntime = d
	}

	if err := def.Validate(); err != nil {
		return task.Definition{}, err
	}
	return def, nil
}

// Definitions converts and validates every configured task, rejecting
// duplicate names. Order is preserved.
func (c *Config) Definitions() ([]task.Definition, error) {
	if c == nil || len(c.Tasks) == 0 {
		return nil, nil
	}
	out := make([]task.Definition, 0, len(c.Tasks))
	seen := make(map[string]struct{}, len(c.Tasks))
	for i, tc := range c.Tasks {
		def, err := tc.Definition()
		if err != nil {
			return nil, fmt.Errorf("tasks[%d]: %w", i, err)
		}
		if _, dup := seen[def.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate task name %q", task.ErrConfig, def.Name)
		}
		seen[def.Name] = struct{}{}
		out = append(out, def)
	}
	return out, nil
}
