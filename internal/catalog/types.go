package catalog

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// TimeLayout is the fixed-width format start and end times are stored in.
// Values are written in the director's configured location.
const TimeLayout = "2006-01-02 15:04:05"

var (
	// ErrEmptyResultSet means the query ran but found nothing, for example
	// a job that never started.
	ErrEmptyResultSet = errors.New("empty result set")
	ErrClosed         = errors.New("catalog closed")
)

// Config configures the catalog.
//
// Driver values:
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//   - "file": JSON Lines journal replayed on open
//
// If Driver is empty or "none", the catalog is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default

	// Location formats stored timestamps. Nil means time.Local.
	Location *time.Location
}

// JobStatus uses the single-letter codes operators know from job listings.
type JobStatus string

const (
	JobStatusRunning  JobStatus = "R"
	JobStatusOK       JobStatus = "T"
	JobStatusError    JobStatus = "E"
	JobStatusCanceled JobStatus = "A"
)

// JobRecord describes one job run.
type JobRecord struct {
	ID        string
	Job       string
	Client    string
	Level     string
	Reason    string
	SchedTime time.Time
	StartTime time.Time
}

// Store is the catalog API used by the scheduler and the runner.
type Store interface {
	// FindLastJobStartTime returns the start time of the most recent run of
	// job on client, formatted with TimeLayout. It returns ErrEmptyResultSet
	// when the job never ran.
	FindLastJobStartTime(ctx context.Context, job, client string) (string, error)
	RecordJobStart(ctx context.Context, rec JobRecord) error
	RecordJobEnd(ctx context.Context, id string, end time.Time, status JobStatus, errMsg string) error
	Close() error
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(TimeLayout)
}
