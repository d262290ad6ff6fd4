package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/bareos/bareos-sub019/internal/catalog"
	logx "github.com/bareos/bareos-sub019/pkg/logx"
)

// StartTimeFinder is the slice of the catalog the trigger needs.
type StartTimeFinder interface {
	FindLastJobStartTime(ctx context.Context, job, client string) (string, error)
}

// ConnectTrigger queues a client's connect-interval jobs when the client
// connects and the last run is older than the job's interval.
//
// A job that never ran is queued. A start time that cannot be parsed is
// not: without a reliable elapsed time the job is left alone rather than
// risking a double run.
type ConnectTrigger struct {
	res   Resources
	cat   StartTimeFinder
	sched Enqueuer
	ts    TimeSource
	loc   *time.Location
	log   logx.Logger

	mu       sync.Mutex
	every    time.Duration
	limiters map[string]*rate.Limiter
}

func NewConnectTrigger(res Resources, cat StartTimeFinder, sched Enqueuer, ts TimeSource, loc *time.Location, log logx.Logger) *ConnectTrigger {
	if log.IsZero() {
		log = logx.Nop()
	}
	if ts == nil {
		ts = NewSystemTimeSource()
	}
	if loc == nil {
		loc = time.Local
	}
	return &ConnectTrigger{
		res:      res,
		cat:      cat,
		sched:    sched,
		ts:       ts,
		loc:      loc,
		log:      log.With(logx.String("comp", "connect")),
		limiters: map[string]*rate.Limiter{},
	}
}

// SetRateLimit allows one evaluation per client every d. Zero disables the
// limit.
func (c *ConnectTrigger) SetRateLimit(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.every = d
	c.limiters = map[string]*rate.Limiter{}
}

func (c *ConnectTrigger) allow(client string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.every <= 0 {
		return true
	}
	key := strings.ToLower(client)
	l, ok := c.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(c.every), 1)
		c.limiters[key] = l
	}
	return l.AllowN(c.ts.SystemTime(), 1)
}

// OnClientConnected evaluates every connect-interval job of client and
// returns the names of the jobs it queued.
func (c *ConnectTrigger) OnClientConnected(ctx context.Context, client string) []string {
	if c.res == nil || c.sched == nil {
		return nil
	}
	if !c.allow(client) {
		c.log.Debug("connect ignored, rate limited", logx.String("client", client))
		return nil
	}

	var queued []string
	for _, job := range c.res.JobsForClient(client) {
		if job == nil || !job.Enabled || job.ConnectInterval <= 0 {
			continue
		}
		run, err := c.due(ctx, job.Name, job.Client, job.ConnectInterval)
		if err != nil {
			c.log.Warn("connect-interval check failed",
				logx.String("job", job.Name),
				logx.String("client", client),
				logx.Err(err),
			)
			continue
		}
		if !run {
			continue
		}
		if err := c.sched.AddJobWithNoRunResourceToQueue(job, ReasonConnectInterval); err != nil {
			c.log.Warn("enqueue failed", logx.String("job", job.Name), logx.Err(err))
			continue
		}
		queued = append(queued, job.Name)
	}
	if len(queued) > 0 {
		c.log.Info("client connected, jobs queued", logx.String("client", client), logx.Strings("jobs", queued))
	}
	return queued
}

func (c *ConnectTrigger) due(ctx context.Context, job, client string, interval time.Duration) (bool, error) {
	if c.cat == nil {
		return false, errors.New("no catalog configured")
	}
	raw, err := c.cat.FindLastJobStartTime(ctx, job, client)
	if errors.Is(err, catalog.ErrEmptyResultSet) {
		return true, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "find last start time")
	}
	last, err := time.ParseInLocation(catalog.TimeLayout, raw, c.loc)
	if err != nil {
		return false, errors.Wrapf(err, "unparsable last start time %q", raw)
	}
	return c.ts.SystemTime().Sub(last) > interval, nil
}
