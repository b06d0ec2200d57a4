package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "schedbot/pkg/logx"
)

func rec(taskName string, at time.Time, status string) RunRecord {
	return RunRecord{
		Task:    taskName,
		Started: at,
		Ended:   at.Add(time.Second),
		Status:  status,
		TookMS:  1000,
	}
}

func TestFileStoreAppendAndQuery(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "runs.db")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	base := time.Date(2026, time.August, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		name := "a"
		if i%2 == 1 {
			name = "b"
		}
		if err := st.AppendRun(ctx, rec(name, base.Add(time.Duration(i)*time.Minute), "completed")); err != nil {
			t.Fatalf("AppendRun: %v", err)
		}
	}

	all, err := st.RecentRuns(ctx, "", 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("got %d records, want 5", len(all))
	}
	// Newest first.
	if !all[0].Started.After(all[4].Started) {
		t.Fatalf("records not newest-first: %v .. %v", all[0].Started, all[4].Started)
	}

	onlyA, err := st.RecentRuns(ctx, "a", 10)
	if err != nil {
		t.Fatalf("RecentRuns(a): %v", err)
	}
	if len(onlyA) != 3 {
		t.Fatalf("got %d records for task a, want 3", len(onlyA))
	}
	for _, r := range onlyA {
		if r.Task != "a" {
			t.Fatalf("filter leaked record for %q", r.Task)
		}
	}

	capped, err := st.RecentRuns(ctx, "", 2)
	if err != nil {
		t.Fatalf("RecentRuns(limit): %v", err)
	}
	if len(capped) != 2 {
		t.Fatalf("limit not applied: got %d", len(capped))
	}
}

func TestFileStoreReplayOnReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()
	base := time.Date(2026, time.August, 10, 12, 0, 0, 0, time.UTC)

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.AppendRun(ctx, rec("persisted", base, "failed")); err != nil {
		t.Fatalf("AppendRun: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()

	got, err := st2.RecentRuns(ctx, "persisted", 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(got) != 1 || got[0].Status != "failed" {
		t.Fatalf("replayed records = %+v", got)
	}
}

func TestOpenDisabledAndUnknown(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = %v, %v; want nil, nil", driver, st, err)
		}
	}

	if _, err := Open(Config{Driver: "etcd"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver must be rejected")
	}
}
