package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	logx "onfly/pkg/logx"
)

// fileStore appends one JSON object per line. Once the file holds twice the
// retain limit it is rewritten with only the newest records.
type fileStore struct {
	log    logx.Logger
	path   string
	retain int

	mu     sync.Mutex
	f      *os.File
	lines  int
	closed bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create history dir")
	}

	lines, err := countLines(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "scan history")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "open history")
	}
	return &fileStore{log: log, path: path, retain: cfg.retain(), f: f, lines: lines}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}

func (s *fileStore) AppendRun(_ context.Context, r RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("history file closed")
	}
	if err := json.NewEncoder(s.f).Encode(r); err != nil {
		return errors.Wrap(err, "append run")
	}
	s.lines++
	if s.lines >= 2*s.retain {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("history compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) RecentRuns(ctx context.Context, q Query) ([]RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := q.limit()
	ring := make([]RunRecord, 0, limit)
	err := scanRecords(s.path, func(r RunRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if q.Job != "" && r.Job != q.Job {
			return nil
		}
		if len(ring) == limit {
			copy(ring, ring[1:])
			ring = ring[:limit-1]
		}
		ring = append(ring, r)
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for i, j := 0, len(ring)-1; i < j; i, j = i+1, j-1 {
		ring[i], ring[j] = ring[j], ring[i]
	}
	return ring, nil
}

// compactLocked keeps the newest retain records via a temp file and rename.
func (s *fileStore) compactLocked() error {
	var keep []RunRecord
	err := scanRecords(s.path, func(r RunRecord) error {
		keep = append(keep, r)
		if len(keep) > s.retain {
			keep = keep[1:]
		}
		return nil
	})
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	for _, r := range keep {
		if err := enc.Encode(r); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return err
	}

	_ = s.f.Close()
	nf, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		s.closed = true
		return err
	}
	s.f = nf
	s.lines = len(keep)
	return nil
}

func scanRecords(path string, fn func(RunRecord) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		var r RunRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			// Torn writes from a crash are skipped.
			continue
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return sc.Err()
}

func countLines(path string) (int, error) {
	n := 0
	err := scanRecords(path, func(RunRecord) error { n++; return nil })
	return n, err
}
