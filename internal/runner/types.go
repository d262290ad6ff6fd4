package runner

import (
	"strings"
	"sync"
	"time"
)

// Event types published on the bus.
const (
	EventJobStarted  = "job.started"
	EventJobFinished = "job.finished"
	EventJobFailed   = "job.failed"
	EventJobSkipped  = "job.skipped"
	EventJobDropped  = "job.dropped"
)

type Config struct {
	Workers     int
	QueueSize   int
	HistorySize int

	// DefaultTimeout applies to jobs without their own timeout; 0 means
	// no limit.
	DefaultTimeout time.Duration

	// AllowDuplicateJobs lets a job be queued while an earlier run of the
	// same job is still queued or running.
	AllowDuplicateJobs bool
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 100
	}
	return c
}

type HistoryItem struct {
	ID         string
	Job        string
	Client     string
	Level      string
	Reason     string
	Scheduled  time.Time
	Started    time.Time
	QueueDelay time.Duration
	Duration   time.Duration
	Status     string
	Error      string
}

// Snapshot is a lightweight view for status output.
type Snapshot struct {
	Started  bool
	Workers  int
	QueueLen int
	QueueCap int
	Active   []string
	Dropped  uint64
	Skipped  uint64
	History  []HistoryItem
}

// runState tracks whether a job is queued or running. Queued counts as
// running so a schedule that fires faster than the job completes does not
// pile up copies in the queue.
type runState struct {
	mu       sync.Mutex
	inflight int
}

func (s *runState) tryAcquire(exclusive bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if exclusive && s.inflight > 0 {
		return false
	}
	s.inflight++
	return true
}

func (s *runState) release() {
	s.mu.Lock()
	if s.inflight > 0 {
		s.inflight--
	}
	s.mu.Unlock()
}

func (s *runState) busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

func stateKey(job string) string { return strings.ToLower(job) }
