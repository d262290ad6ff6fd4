package listener

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"

	"github.com/bareos/bareos-sub019/internal/resource"
	"github.com/bareos/bareos-sub019/internal/runner"
	"github.com/bareos/bareos-sub019/internal/scheduler"
)

type Trigger interface {
	OnClientConnected(ctx context.Context, client string) []string
}

type Scheduler interface {
	scheduler.Enqueuer
	Snapshot() scheduler.Snapshot
}

type Resources interface {
	Job(name string) (*resource.Job, bool)
	Client(name string) (*resource.Client, bool)
}

type RunnerStatus interface {
	Snapshot() runner.Snapshot
}

// Deps are the collaborators of the built-in commands. Runner may be nil.
type Deps struct {
	Resources Resources
	Scheduler Scheduler
	Trigger   Trigger
	Runner    RunnerStatus
}

// RegisterCommands installs hello, run and status.
func (s *Server) RegisterCommands(d Deps) {
	s.RegisterHandler("hello", func(ctx context.Context, _ io.Writer, args []string) (string, error) {
		if len(args) != 1 {
			return "", errors.New("usage: hello <client>")
		}
		c, ok := d.Resources.Client(args[0])
		if !ok {
			return "", errors.Newf("unknown client %q", args[0])
		}
		if !c.Enabled {
			return "", errors.Newf("client %q is disabled", c.Name)
		}
		queued := d.Trigger.OnClientConnected(ctx, c.Name)
		if len(queued) == 0 {
			return "hello " + c.Name, nil
		}
		return fmt.Sprintf("hello %s queued %s", c.Name, strings.Join(queued, ",")), nil
	})

	s.RegisterHandler("run", func(_ context.Context, _ io.Writer, args []string) (string, error) {
		if len(args) != 1 {
			return "", errors.New("usage: run <job>")
		}
		job, ok := d.Resources.Job(args[0])
		if !ok {
			return "", errors.Newf("unknown job %q", args[0])
		}
		if err := d.Scheduler.AddJobWithNoRunResourceToQueue(job, scheduler.ReasonManual); err != nil {
			return "", err
		}
		return "queued " + job.Name, nil
	})

	s.RegisterHandler("status", func(_ context.Context, w io.Writer, _ []string) (string, error) {
		snap := d.Scheduler.Snapshot()
		writeStatus(w, snap)
		if d.Runner != nil {
			rs := d.Runner.Snapshot()
			for _, name := range rs.Active {
				writeLine(w, "active "+name)
			}
			writeLine(w, fmt.Sprintf("runner queue=%d/%d dropped=%d skipped=%d", rs.QueueLen, rs.QueueCap, rs.Dropped, rs.Skipped))
		}
		return fmt.Sprintf("status %d queued", len(snap.Queue)), nil
	})
}

func writeStatus(w io.Writer, snap scheduler.Snapshot) {
	state := "stopped"
	if snap.Running {
		state = "running"
	}
	writeLine(w, fmt.Sprintf("scheduler %s tz=%s now=%s", state, snap.Location, snap.Now.Format(time.DateTime)))
	for _, it := range snap.Queue {
		name := "?"
		if it.Job != nil {
			name = it.Job.Name
		}
		writeLine(w, fmt.Sprintf("queued %s at=%s (%s) priority=%d reason=%s",
			name,
			it.Runtime.Format(time.DateTime),
			humanize.RelTime(it.Runtime, snap.Now, "ago", "from now"),
			it.Priority,
			it.Reason,
		))
	}
}
