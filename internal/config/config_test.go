package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"schedbot/internal/task"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseYAML(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.yaml", `
logging:
  level: debug
  console: true
scheduler:
  enabled: true
  history_size: 10
  reconcile_every: 15s
agent:
  command: /usr/local/bin/agent
  args: ["--queue", "default"]
tasks:
  - name: health-check
    agent: ops
    message: check all systems
    every: 5 minutes
    after: "09:00"
    before: "17:00"
    weekdays: [mon, tue, wed, thu, fri]
  - name: nightly-report
    agent: report
    message: generate report
    daily: true
    timezone: UTC
    max_runtime: 30m
`)

	m := NewManager(path)
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if !cfg.Scheduler.Enabled || cfg.Scheduler.HistorySize != 10 {
		t.Fatalf("scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Agent.Command != "/usr/local/bin/agent" || len(cfg.Agent.Args) != 2 {
		t.Fatalf("agent = %+v", cfg.Agent)
	}
	if len(cfg.Tasks) != 2 {
		t.Fatalf("tasks = %d, want 2", len(cfg.Tasks))
	}

	defs, err := cfg.Definitions()
	if err != nil {
		t.Fatalf("Definitions: %v", err)
	}

	hc := defs[0]
	if hc.Name != "health-check" || hc.Recur.Every != 5*time.Minute {
		t.Fatalf("health-check = %+v", hc)
	}
	if hc.After == nil || hc.After.Hour != 9 || hc.Before == nil || hc.Before.Hour != 17 {
		t.Fatalf("window = %v..%v", hc.After, hc.Before)
	}
	if hc.Weekdays.Has(time.Saturday) || !hc.Weekdays.Has(time.Wednesday) {
		t.Fatalf("weekdays = %v", hc.Weekdays)
	}

	nr := defs[1]
	if !nr.Recur.Daily || nr.MaxRuntime != 30*time.Minute || nr.Timezone != "UTC" {
		t.Fatalf("nightly-report = %+v", nr)
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.json", `{
  "logging": {"level": "info", "console": true, "file": {"enabled": false, "path": ""}},
  "scheduler": {"enabled": true},
  "agent": {"command": "/bin/true"},
  "tasks": []
}`)

	m := NewManager(path)
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.yaml", `
scheduler:
  enabled: true
  wrokers: 4
`)
	m := NewManager(path)
	if _, err := m.Parse(); err == nil {
		t.Fatal("unknown field must be rejected")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.json", `{"scheduler": {"enabled": true}}{"extra": 1}`)
	m := NewManager(path)
	if _, err := m.Parse(); err == nil {
		t.Fatal("trailing JSON must be rejected")
	}
}

func TestTaskConfigDefinitionRejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		tc   TaskConfig
	}{
		{"bad interval", TaskConfig{Name: "t", Every: "5 weeks"}},
		{"bad after", TaskConfig{Name: "t", Daily: true, After: "25:00"}},
		{"bad weekday", TaskConfig{Name: "t", Daily: true, Weekdays: []string{"someday"}}},
		{"bad max runtime", TaskConfig{Name: "t", Daily: true, MaxRuntime: "fast"}},
		{"both modes", TaskConfig{Name: "t", Every: "5 minutes", Daily: true}},
		{"no name", TaskConfig{Daily: true}},
		{"inverted window", TaskConfig{Name: "t", Daily: true, After: "17:00", Before: "09:00"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.tc.Definition(); !errors.Is(err, task.ErrConfig) {
				t.Fatalf("want ErrConfig, got %v", err)
			}
		})
	}
}

func TestDefinitionsRejectsDuplicates(t *testing.T) {
	t.Parallel()

	cfg := &Config{Tasks: []TaskConfig{
		{Name: "dup", Daily: true},
		{Name: "dup", Every: "5 minutes"},
	}}
	if _, err := cfg.Definitions(); !errors.Is(err, task.ErrConfig) {
		t.Fatalf("want ErrConfig for duplicate names, got %v", err)
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()

	oldCfg := &Config{
		Scheduler: SchedulerConfig{Enabled: true},
		Tasks: []TaskConfig{
			{Name: "keep", Daily: true},
			{Name: "edit", Every: "5 minutes"},
			{Name: "drop", Daily: true},
		},
	}
	newCfg := &Config{
		Scheduler: SchedulerConfig{Enabled: true, KillOverruns: true},
		Tasks: []TaskConfig{
			{Name: "keep", Daily: true},
			{Name: "edit", Every: "10 minutes"},
			{Name: "new", Daily: true},
		},
	}

	sections, _, taskChanged := SummarizeChange(oldCfg, newCfg)

	wantSections := map[string]bool{"scheduler": true, "tasks": true}
	if len(sections) != len(wantSections) {
		t.Fatalf("sections = %v", sections)
	}
	for _, s := range sections {
		if !wantSections[s] {
			t.Fatalf("unexpected section %q in %v", s, sections)
		}
	}

	want := []string{"drop", "edit", "new"}
	if len(taskChanged) != len(want) {
		t.Fatalf("taskChanged = %v, want %v", taskChanged, want)
	}
	for i := range want {
		if taskChanged[i] != want[i] {
			t.Fatalf("taskChanged = %v, want %v", taskChanged, want)
		}
	}
}

func TestLoadCommitGet(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "config.yaml", `
scheduler:
  enabled: true
`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get must return the committed config")
	}
}
