package runner

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kballard/go-shellquote"

	"github.com/bareos/bareos-sub019/internal/catalog"
	logx "github.com/bareos/bareos-sub019/pkg/logx"
)

// catalogTimeout bounds catalog writes so a stuck database cannot hold a
// worker forever.
const catalogTimeout = 10 * time.Second

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue chan queuedJob) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case qj := <-queue:
			s.execOne(ctx, qj)
		}
	}
}

func (s *Service) execOne(ctx context.Context, qj queuedJob) {
	defer qj.state.release()

	jc := qj.jc
	job := jc.Job
	started := time.Now()
	id := jc.ID.String()
	log := s.log.With(
		logx.String("job", job.Name),
		logx.String("client", job.Client),
		logx.String("jobid", id),
	)

	s.recordStart(log, catalog.JobRecord{
		ID:        id,
		Job:       job.Name,
		Client:    job.Client,
		Level:     jc.Level(),
		Reason:    string(jc.Reason),
		SchedTime: jc.ScheduledTime,
		StartTime: started,
	})
	s.publish(EventJobStarted, started, jc, map[string]any{"level": jc.Level()})

	err := s.runCommand(ctx, log, job.Command, s.timeoutFor(job.Timeout))
	dur := time.Since(started)
	status := statusFor(err)

	s.recordEnd(log, id, started.Add(dur), status, err)

	h := HistoryItem{
		ID:         id,
		Job:        job.Name,
		Client:     job.Client,
		Level:      jc.Level(),
		Reason:     string(jc.Reason),
		Scheduled:  jc.ScheduledTime,
		Started:    started,
		QueueDelay: started.Sub(qj.enqueuedAt),
		Duration:   dur,
		Status:     string(status),
	}
	if err != nil {
		h.Error = err.Error()
		log.Warn("job failed", logx.String("status", string(status)), logx.Duration("took", dur), logx.Err(err))
		s.publish(EventJobFailed, time.Now(), jc, map[string]any{"status": string(status), "error": h.Error})
	} else {
		log.Info("job finished", logx.Duration("took", dur))
		s.publish(EventJobFinished, time.Now(), jc, map[string]any{"status": string(status)})
	}
	s.addHistory(h)
}

func (s *Service) timeoutFor(jobTimeout time.Duration) time.Duration {
	if jobTimeout > 0 {
		return jobTimeout
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.DefaultTimeout
}

func (s *Service) runCommand(ctx context.Context, log logx.Logger, command string, timeout time.Duration) error {
	if strings.TrimSpace(command) == "" {
		log.Info("job dispatched (no command)")
		return nil
	}
	argv, err := shellquote.Split(command)
	if err != nil {
		return errors.Wrap(err, "split command")
	}
	if len(argv) == 0 {
		return errors.New("empty command")
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log.Debug("running command", logx.Strings("argv", argv))
	out, err := s.command(ctx, argv)
	if len(out) > 0 {
		log.Debug("command output", logx.String("output", truncate(string(out), 4096)))
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrap(ctxErr, argv[0])
		}
		return errors.Wrap(err, argv[0])
	}
	return nil
}

func statusFor(err error) catalog.JobStatus {
	switch {
	case err == nil:
		return catalog.JobStatusOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return catalog.JobStatusCanceled
	default:
		return catalog.JobStatusError
	}
}

func (s *Service) recordStart(log logx.Logger, rec catalog.JobRecord) {
	if s.cat == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), catalogTimeout)
	defer cancel()
	if err := s.cat.RecordJobStart(ctx, rec); err != nil {
		log.Error("catalog: record job start failed", logx.Err(err))
	}
}

func (s *Service) recordEnd(log logx.Logger, id string, end time.Time, status catalog.JobStatus, runErr error) {
	if s.cat == nil {
		return
	}
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	ctx, cancel := context.WithTimeout(context.Background(), catalogTimeout)
	defer cancel()
	if err := s.cat.RecordJobEnd(ctx, id, end, status, msg); err != nil {
		log.Error("catalog: record job end failed", logx.Err(err))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
