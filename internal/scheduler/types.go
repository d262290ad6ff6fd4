package scheduler

import (
	"time"

	"github.com/google/uuid"

	"github.com/bareos/bareos-sub019/internal/calendar"
	"github.com/bareos/bareos-sub019/internal/resource"
)

// TriggerReason tells why a job was queued.
type TriggerReason string

const (
	ReasonSchedule        TriggerReason = "schedule"
	ReasonConnectInterval TriggerReason = "connect-interval"
	ReasonManual          TriggerReason = "manual"
)

// Event types published on the bus.
const (
	EventJobQueued     = "job.queued"
	EventJobDispatched = "job.dispatched"
	EventQueueCleared  = "queue.cleared"
)

const (
	// DefaultMaxWait bounds a single sleep so clock jumps are noticed.
	DefaultMaxWait = 60 * time.Second

	// pastGrace keeps runtimes that passed less than a minute ago, so a
	// scan that lands just after a runtime still dispatches it.
	pastGrace = 59 * time.Second
)

// Config controls the scheduler.
type Config struct {
	Timezone string // IANA TZ, e.g. "Europe/Berlin"; empty means Local
	MaxWait  time.Duration
}

// Resources is the read side of the configuration the loop needs.
type Resources interface {
	Jobs() []*resource.Job
	Job(name string) (*resource.Job, bool)
	JobsForClient(name string) []*resource.Job
}

// Enqueuer accepts jobs that bypass calendar matching.
type Enqueuer interface {
	AddJobWithNoRunResourceToQueue(job *resource.Job, reason TriggerReason) error
}

// ExecuteFunc is called synchronously on the loop goroutine for every due
// item. It should hand the work off and return quickly.
type ExecuteFunc func(JobContext)

// JobContext is minted for every dispatch.
type JobContext struct {
	ID            uuid.UUID
	Job           *resource.Job
	Run           *calendar.Clause // nil for manual and connect-interval runs
	Priority      int
	Reason        TriggerReason
	ScheduledTime time.Time
	DispatchedAt  time.Time
}

// Level resolves the backup level: the run override wins over the job.
func (jc JobContext) Level() string {
	if jc.Run != nil && jc.Run.Override != nil && jc.Run.Override.Level != "" {
		return jc.Run.Override.Level
	}
	if jc.Job != nil && jc.Job.Level != "" {
		return jc.Job.Level
	}
	return "Incremental"
}

// Snapshot is a point-in-time view for status output.
type Snapshot struct {
	Running  bool
	Location string
	Now      time.Time
	Queue    []Item
}

func jobPriority(j *resource.Job) int {
	if j == nil || j.Priority <= 0 {
		return resource.DefaultPriority
	}
	return j.Priority
}
