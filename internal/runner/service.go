package runner

import (
	"context"
	"os/exec"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/bareos/bareos-sub019/internal/catalog"
	"github.com/bareos/bareos-sub019/internal/eventbus"
	rtsup "github.com/bareos/bareos-sub019/internal/runtime/supervisor"
	"github.com/bareos/bareos-sub019/internal/scheduler"
	logx "github.com/bareos/bareos-sub019/pkg/logx"
)

const warnThrottleEvery = 5 * time.Second

var ErrNotStarted = errors.New("runner not started")

// CommandFunc runs argv and returns its combined output.
type CommandFunc func(ctx context.Context, argv []string) ([]byte, error)

func execCommand(ctx context.Context, argv []string) ([]byte, error) {
	return exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
}

type Option func(*Service)

// WithCommandFunc replaces os/exec, mostly for tests.
func WithCommandFunc(fn CommandFunc) Option {
	return func(s *Service) {
		if fn != nil {
			s.command = fn
		}
	}
}

type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger
	bus eventbus.Bus
	cat catalog.Store

	command CommandFunc

	q      chan queuedJob
	sup    *rtsup.Supervisor
	stopCh chan struct{}

	stateMu sync.Mutex
	states  map[string]*runState

	hmu     sync.Mutex
	history []HistoryItem

	dropped atomic.Uint64
	skipped atomic.Uint64

	lastDropWarnAt int64
}

type queuedJob struct {
	jc         scheduler.JobContext
	enqueuedAt time.Time
	state      *runState
}

// New creates a stopped runner. cat may be nil, in which case runs are not
// recorded.
func New(cfg Config, cat catalog.Store, log logx.Logger, bus eventbus.Bus, opts ...Option) *Service {
	s := &Service{
		cfg:     cfg.withDefaults(),
		log:     log.With(logx.String("comp", "runner")),
		bus:     bus,
		cat:     cat,
		command: execCommand,
		states:  make(map[string]*runState),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start launches the workers. It is idempotent.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	cfg := s.cfg
	s.q = make(chan queuedJob, cfg.QueueSize)
	s.stopCh = make(chan struct{})
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log))

	queue, stopCh := s.q, s.stopCh
	for i := 0; i < cfg.Workers; i++ {
		s.sup.GoRestart("runner.worker", func(c context.Context) error {
			s.worker(c, stopCh, queue)
			return nil
		})
	}
	s.log.Info("runner started", logx.Int("workers", cfg.Workers), logx.Int("queue", cfg.QueueSize))
}

// Stop cancels running jobs and waits for the workers. Queued jobs are
// discarded.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	sup, stopCh, queue := s.sup, s.stopCh, s.q
	s.sup, s.stopCh, s.q = nil, nil, nil
	s.mu.Unlock()
	if sup == nil {
		return
	}
	close(stopCh)
	if err := sup.Stop(ctx); err != nil {
		s.log.Warn("runner stop incomplete", logx.Err(err))
	}
	for {
		select {
		case qj := <-queue:
			qj.state.release()
		default:
			s.log.Info("runner stopped")
			return
		}
	}
}

// Apply swaps the configuration and restarts the pool when its shape
// changed.
func (s *Service) Apply(ctx context.Context, cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	prev := s.cfg
	s.cfg = cfg
	running := s.stopCh != nil
	s.mu.Unlock()

	if running && (prev.Workers != cfg.Workers || prev.QueueSize != cfg.QueueSize) {
		s.Stop(ctx)
		s.Start(ctx)
	}
}

// Execute queues jc for a worker. It never blocks; it is the scheduler's
// ExecuteFunc.
func (s *Service) Execute(jc scheduler.JobContext) {
	_ = s.Submit(jc)
}

// Submit is Execute with the outcome: nil when queued, otherwise why not.
func (s *Service) Submit(jc scheduler.JobContext) error {
	if jc.Job == nil {
		return errors.New("job context without job")
	}
	now := time.Now()

	s.mu.Lock()
	queue := s.q
	allowDup := s.cfg.AllowDuplicateJobs
	s.mu.Unlock()
	if queue == nil {
		s.onDropped(now, jc, "not_started")
		return ErrNotStarted
	}

	st := s.stateFor(jc.Job.Name)
	if !st.tryAcquire(!allowDup) {
		s.skipped.Add(1)
		s.log.Info("job skipped: already queued or running",
			logx.String("job", jc.Job.Name),
			logx.String("reason", string(jc.Reason)),
		)
		s.publish(EventJobSkipped, now, jc, nil)
		return errors.Newf("job %q already queued or running", jc.Job.Name)
	}

	select {
	case queue <- queuedJob{jc: jc, enqueuedAt: now, state: st}:
		return nil
	default:
		st.release()
		s.onDropped(now, jc, "queue_full")
		return errors.Newf("runner queue full, job %q dropped", jc.Job.Name)
	}
}

func (s *Service) stateFor(job string) *runState {
	k := stateKey(job)
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	st, ok := s.states[k]
	if !ok {
		st = &runState{}
		s.states[k] = st
	}
	return st
}

func (s *Service) onDropped(now time.Time, jc scheduler.JobContext, why string) {
	s.dropped.Add(1)
	s.publish(EventJobDropped, now, jc, map[string]any{"error": why})
	if s.shouldWarn(&s.lastDropWarnAt, now) {
		s.log.Warn("job dropped",
			logx.String("job", jc.Job.Name),
			logx.String("why", why),
			logx.Uint64("dropped_total", s.dropped.Load()),
		)
	}
}

func (s *Service) shouldWarn(last *int64, now time.Time) bool {
	prev := atomic.LoadInt64(last)
	n := now.UnixNano()
	if prev != 0 && (n-prev) < int64(warnThrottleEvery) {
		return false
	}
	return atomic.CompareAndSwapInt64(last, prev, n)
}

func (s *Service) addHistory(h HistoryItem) {
	s.mu.Lock()
	limit := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.history = append(s.history, h)
	if len(s.history) > limit {
		s.history = append([]HistoryItem(nil), s.history[len(s.history)-limit:]...)
	}
}

// History returns finished runs, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Started: s.stopCh != nil,
		Workers: s.cfg.Workers,
	}
	if s.q != nil {
		snap.QueueLen = len(s.q)
		snap.QueueCap = cap(s.q)
	}
	s.mu.Unlock()

	s.stateMu.Lock()
	for k, st := range s.states {
		if st.busy() {
			snap.Active = append(snap.Active, k)
		}
	}
	s.stateMu.Unlock()
	sort.Strings(snap.Active)

	snap.Dropped = s.dropped.Load()
	snap.Skipped = s.skipped.Load()
	snap.History = s.History()
	return snap
}

func (s *Service) publish(typ string, now time.Time, jc scheduler.JobContext, extra map[string]any) {
	if s.bus == nil {
		return
	}
	data := map[string]any{
		"id":     jc.ID.String(),
		"job":    jc.Job.Name,
		"client": jc.Job.Client,
		"reason": string(jc.Reason),
	}
	for k, v := range extra {
		data[k] = v
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: data})
}
