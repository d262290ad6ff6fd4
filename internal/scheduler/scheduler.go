package scheduler

import (
	"context"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/bareos/bareos-sub019/internal/eventbus"
	"github.com/bareos/bareos-sub019/internal/resource"
	logx "github.com/bareos/bareos-sub019/pkg/logx"
)

var ErrAlreadyRunning = errors.New("scheduler already running")

type seenKey struct {
	job     string
	clause  int
	runtime int64
}

// Scheduler owns the queue and the control loop. Create one per process
// and pass it to whatever needs to enqueue jobs.
type Scheduler struct {
	cfg  Config
	loc  *time.Location
	log  logx.Logger
	bus  eventbus.Bus
	res  Resources
	exec ExecuteFunc
	ts   TimeSource

	queue *Queue

	// scanMu serializes scans against ClearQueue and Reload.
	scanMu sync.Mutex
	seen   map[seenKey]struct{}

	running    atomic.Bool
	terminated atomic.Bool
	dispatched atomic.Uint64
}

func New(cfg Config, res Resources, exec ExecuteFunc, ts TimeSource, log logx.Logger, bus eventbus.Bus) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	if ts == nil {
		ts = NewSystemTimeSource()
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWait
	}
	if exec == nil {
		exec = func(JobContext) {}
	}
	s := &Scheduler{
		cfg:   cfg,
		log:   log.With(logx.String("comp", "scheduler")),
		bus:   bus,
		res:   res,
		exec:  exec,
		ts:    ts,
		queue: NewQueue(),
		seen:  map[seenKey]struct{}{},
	}
	s.loc = s.loadLocation()
	return s
}

func (s *Scheduler) loadLocation() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// Location is the zone schedules are evaluated in.
func (s *Scheduler) Location() *time.Location { return s.loc }

// Queue exposes the pending items.
func (s *Scheduler) Queue() *Queue { return s.queue }

func (s *Scheduler) now() time.Time { return s.ts.SystemTime().In(s.loc) }

// Run executes the control loop until Terminate is called or ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			s.Terminate()
		case <-stop:
		}
	}()

	s.log.Info("scheduler started", logx.String("tz", s.loc.String()), logx.Duration("max_wait", s.cfg.MaxWait))
	for !s.terminated.Load() {
		s.scan()
		s.executeDue()
		if s.terminated.Load() {
			break
		}
		s.ts.SleepFor(s.nextDelay())
	}
	s.log.Info("scheduler stopped", logx.Uint64("dispatched", s.dispatched.Load()))
	return nil
}

// scan queues every runtime of today and tomorrow that was not queued yet.
// Runtimes that passed more than pastGrace ago are ignored.
func (s *Scheduler) scan() {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	now := s.now()
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 0, 2)
	cutoff := now.Add(-pastGrace)

	for k := range s.seen {
		if k.runtime <= cutoff.UnixNano() {
			delete(s.seen, k)
		}
	}

	if s.res == nil {
		return
	}
	for _, job := range s.res.Jobs() {
		if job == nil || !job.Enabled || job.Schedule == nil {
			continue
		}
		for _, occ := range job.Schedule.Occurrences(start, end) {
			if !occ.Time.After(cutoff) {
				continue
			}
			k := seenKey{job: job.Name, clause: occ.Clause, runtime: occ.Time.UnixNano()}
			if _, ok := s.seen[k]; ok {
				continue
			}
			run := job.Schedule.Clauses[occ.Clause]
			prio := jobPriority(job)
			if p := run.Priority(); p > 0 {
				prio = p
			}
			if err := s.queue.Emplace(job, run, occ.Time, prio, ReasonSchedule); err != nil {
				s.log.Warn("queue rejected item", logx.String("job", job.Name), logx.Err(err))
				continue
			}
			s.seen[k] = struct{}{}
			s.log.Debug("job queued",
				logx.String("job", job.Name),
				logx.Time("runtime", occ.Time),
				logx.Int("priority", prio),
			)
			s.publish(EventJobQueued, map[string]any{
				"job":      job.Name,
				"runtime":  occ.Time,
				"priority": prio,
				"reason":   string(ReasonSchedule),
			})
		}
	}
}

func (s *Scheduler) executeDue() {
	for {
		it, ok := s.queue.takeDue(s.now())
		if !ok {
			return
		}
		s.dispatch(it)
	}
}

func (s *Scheduler) dispatch(it Item) {
	jc := JobContext{
		ID:            uuid.New(),
		Job:           it.Job,
		Run:           it.Run,
		Priority:      it.Priority,
		Reason:        it.Reason,
		ScheduledTime: it.Runtime,
		DispatchedAt:  s.now(),
	}
	s.dispatched.Add(1)
	s.log.Info("job dispatched",
		logx.String("job", it.Job.Name),
		logx.String("id", jc.ID.String()),
		logx.String("reason", string(it.Reason)),
		logx.String("level", jc.Level()),
		logx.Int("priority", it.Priority),
		logx.Time("scheduled", it.Runtime),
	)
	s.publish(EventJobDispatched, map[string]any{
		"job":    it.Job.Name,
		"id":     jc.ID.String(),
		"reason": string(it.Reason),
	})

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("execute callback panicked",
				logx.String("job", it.Job.Name),
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())),
			)
		}
	}()
	s.exec(jc)
}

// nextDelay is the time until the top item is due, capped at MaxWait.
func (s *Scheduler) nextDelay() time.Duration {
	top := s.queue.TopItem()
	if !top.Valid {
		return s.cfg.MaxWait
	}
	d := top.Runtime.Sub(s.now())
	if d <= 0 {
		return 0
	}
	if d > s.cfg.MaxWait {
		return s.cfg.MaxWait
	}
	return d
}

// AddJobWithNoRunResourceToQueue queues job to run now with its default
// priority and wakes the loop.
func (s *Scheduler) AddJobWithNoRunResourceToQueue(job *resource.Job, reason TriggerReason) error {
	if job == nil {
		return errors.Wrap(ErrInvalidArgument, "job is nil")
	}
	now := s.now()
	prio := jobPriority(job)
	if err := s.queue.Emplace(job, nil, now, prio, reason); err != nil {
		return err
	}
	s.log.Info("job queued", logx.String("job", job.Name), logx.String("reason", string(reason)))
	s.publish(EventJobQueued, map[string]any{
		"job":      job.Name,
		"runtime":  now,
		"priority": prio,
		"reason":   string(reason),
	})
	s.ts.Wake()
	return nil
}

// Terminate stops the loop at its next sleep boundary. Safe to call more
// than once and from any goroutine.
func (s *Scheduler) Terminate() {
	if s.terminated.CompareAndSwap(false, true) {
		s.log.Debug("scheduler terminating")
	}
	s.ts.Terminate()
}

// ClearQueue drops every pending item. The next scan queues dropped
// scheduled runtimes again; runtimes already dispatched are not repeated.
func (s *Scheduler) ClearQueue() {
	s.scanMu.Lock()
	n := s.clearLocked()
	s.scanMu.Unlock()
	s.log.Info("queue cleared", logx.Int("dropped", n))
}

// Reload runs apply (typically a resource swap) with scanning blocked,
// then clears the queue and wakes the loop for a fresh scan.
func (s *Scheduler) Reload(apply func()) {
	s.scanMu.Lock()
	if apply != nil {
		apply()
	}
	n := s.clearLocked()
	s.scanMu.Unlock()
	s.log.Info("scheduler reloaded", logx.Int("dropped", n))
	s.ts.Wake()
}

// clearLocked drops the pending items and forgets their seen keys, so the
// next scan queues them again. Keys of runtimes that were already taken out
// of the queue stay, which keeps a dispatched runtime from firing twice.
func (s *Scheduler) clearLocked() int {
	dropped := s.queue.drain()
	for _, it := range dropped {
		if it.Reason != ReasonSchedule || it.Job == nil || it.Job.Schedule == nil {
			continue
		}
		for i, c := range it.Job.Schedule.Clauses {
			if c == it.Run {
				delete(s.seen, seenKey{job: it.Job.Name, clause: i, runtime: it.Runtime.UnixNano()})
			}
		}
	}
	n := len(dropped)
	s.publish(EventQueueCleared, map[string]any{"dropped": n})
	return n
}

func (s *Scheduler) Snapshot() Snapshot {
	return Snapshot{
		Running:  s.running.Load() && !s.terminated.Load(),
		Location: s.loc.String(),
		Now:      s.now(),
		Queue:    s.queue.Snapshot(),
	}
}

func (s *Scheduler) publish(typ string, data map[string]any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.now(), Data: data})
}
