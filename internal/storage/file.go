package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "schedbot/pkg/logx"
)

// ringSize bounds the in-memory tail of the run log. The file itself is
// append-only and unbounded; queries are served from memory.
const ringSize = 256

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.runs.jsonl (append-only JSON Lines)
//
// At open the tail of the log is replayed into a bounded in-memory ring so
// RecentRuns works without rescanning the file.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	runsFile *os.File

	// recent holds up to ringSize newest records, oldest first.
	recent []RunRecord
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	runsPath := prefix + ".runs.jsonl"

	recent, err := replayRunLog(runsPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("run log replay failed; starting empty", logx.Any("err", err), logx.String("path", runsPath))
		recent = nil
	}

	f, err := os.OpenFile(runsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{
		log:      log,
		runsFile: f,
		recent:   recent,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runsFile == nil {
		return nil
	}
	err := s.runsFile.Close()
	s.runsFile = nil
	return err
}

func (s *fileStore) AppendRun(ctx context.Context, r RunRecord) error {
	_ = ctx
	if strings.TrimSpace(r.Task) == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runsFile == nil {
		return errors.New("run log closed")
	}
	enc := json.NewEncoder(s.runsFile)
	if err := enc.Encode(r); err != nil {
		return err
	}
	s.recent = append(s.recent, r)
	if len(s.recent) > ringSize {
		s.recent = s.recent[len(s.recent)-ringSize:]
	}
	return nil
}

// RecentRuns returns up to limit records, newest first. Empty task matches
// all tasks.
func (s *fileStore) RecentRuns(ctx context.Context, task string, limit int) ([]RunRecord, error) {
	_ = ctx
	task = strings.TrimSpace(task)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RunRecord, 0, limit)
	for i := len(s.recent) - 1; i >= 0; i-- {
		r := s.recent[i]
		if task != "" && r.Task != task {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func replayRunLog(path string) ([]RunRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var recent []RunRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var r RunRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		if r.Task == "" {
			continue
		}
		recent = append(recent, r)
		if len(recent) > ringSize {
			recent = recent[len(recent)-ringSize:]
		}
	}
	return recent, sc.Err()
}
