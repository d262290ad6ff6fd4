package catalog

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	logx "github.com/bareos/bareos-sub019/pkg/logx"
)

// fileStore keeps the catalog in one append-only JSON Lines journal,
// <prefix>.jobs.jsonl. The journal is replayed on open to rebuild the
// last start time per job and client.
type fileStore struct {
	log logx.Logger
	loc *time.Location

	mu        sync.Mutex
	journal   *os.File
	lastStart map[jobKey]string
}

type jobKey struct{ job, client string }

type journalRecord struct {
	Op        string `json:"op"`
	ID        string `json:"jobid"`
	Job       string `json:"job,omitempty"`
	Client    string `json:"client,omitempty"`
	Level     string `json:"level,omitempty"`
	Reason    string `json:"reason,omitempty"`
	SchedTime string `json:"schedtime,omitempty"`
	StartTime string `json:"starttime,omitempty"`
	EndTime   string `json:"endtime,omitempty"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"err,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("catalog.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	journalPath := filepath.Join(dir, base) + ".jobs.jsonl"

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create catalog dir")
	}

	last := map[jobKey]string{}
	if err := replayJournal(journalPath, last); err != nil && !os.IsNotExist(err) {
		log.Warn("catalog journal replay incomplete", logx.Err(err))
	}

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog journal")
	}
	log.Info("catalog opened", logx.String("path", journalPath), logx.Int("jobs", len(last)))
	return &fileStore{log: log, loc: cfg.Location, journal: jf, lastStart: last}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	err := s.journal.Close()
	s.journal = nil
	return err
}

func (s *fileStore) FindLastJobStartTime(ctx context.Context, job, client string) (string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return "", ErrClosed
	}
	v, ok := s.lastStart[jobKey{job, client}]
	if !ok {
		return "", ErrEmptyResultSet
	}
	return v, nil
}

func (s *fileStore) RecordJobStart(ctx context.Context, rec JobRecord) error {
	_ = ctx
	if rec.StartTime.IsZero() {
		rec.StartTime = time.Now()
	}
	r := journalRecord{
		Op:        "start",
		ID:        rec.ID,
		Job:       rec.Job,
		Client:    rec.Client,
		Level:     rec.Level,
		Reason:    rec.Reason,
		SchedTime: formatTime(rec.SchedTime, s.loc),
		StartTime: formatTime(rec.StartTime, s.loc),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.appendLocked(r); err != nil {
		return err
	}
	s.noteStartLocked(r)
	return nil
}

func (s *fileStore) RecordJobEnd(ctx context.Context, id string, end time.Time, status JobStatus, errMsg string) error {
	_ = ctx
	if end.IsZero() {
		end = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(journalRecord{
		Op:      "end",
		ID:      id,
		EndTime: formatTime(end, s.loc),
		Status:  string(status),
		Error:   errMsg,
	})
}

func (s *fileStore) appendLocked(r journalRecord) error {
	if s.journal == nil {
		return ErrClosed
	}
	return errors.Wrap(json.NewEncoder(s.journal).Encode(r), "append catalog journal")
}

func (s *fileStore) noteStartLocked(r journalRecord) {
	k := jobKey{r.Job, r.Client}
	// TimeLayout sorts lexicographically.
	if cur, ok := s.lastStart[k]; !ok || r.StartTime > cur {
		s.lastStart[k] = r.StartTime
	}
}

func replayJournal(path string, last map[jobKey]string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r journalRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		if r.Op != "start" || r.Job == "" {
			continue
		}
		k := jobKey{r.Job, r.Client}
		if cur, ok := last[k]; !ok || r.StartTime > cur {
			last[k] = r.StartTime
		}
	}
	return sc.Err()
}
