// Package app wires the director daemon together: configuration, catalog,
// runner, scheduler loop, connect trigger and listener.
package app

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/bareos/bareos-sub019/internal/catalog"
	"github.com/bareos/bareos-sub019/internal/config"
	"github.com/bareos/bareos-sub019/internal/eventbus"
	"github.com/bareos/bareos-sub019/internal/listener"
	"github.com/bareos/bareos-sub019/internal/resource"
	"github.com/bareos/bareos-sub019/internal/runner"
	"github.com/bareos/bareos-sub019/internal/runtime/supervisor"
	"github.com/bareos/bareos-sub019/internal/scheduler"
	logx "github.com/bareos/bareos-sub019/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store catalog.Store
	sd    sdNotifier

	settings config.Settings
	res      *resource.Holder
	ts       scheduler.TimeSource

	runner  *runner.Service
	sched   *scheduler.Scheduler
	trigger *scheduler.ConnectTrigger
	lsn     *listener.Server
}

// Option adjusts NewApp; tests use it to inject a time source.
type Option func(*App)

func WithTimeSource(ts scheduler.TimeSource) Option {
	return func(a *App) { a.ts = ts }
}

func NewApp(cfgPath string, opts ...Option) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	st, err := config.Resolve(cfg)
	if err != nil {
		return nil, err
	}
	set, warns, err := config.BuildResources(cfg)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(st.Log)
	for _, w := range warns {
		log.Warn("config warning", logx.String("resource", w.Resource), logx.String("msg", w.Message))
	}

	a := &App{
		cfgm:     cfgm,
		log:      log.With(logx.String("comp", "app")),
		logs:     logSvc,
		bus:      eventbus.New(),
		sd:       sdNotifier{log: log.With(logx.String("comp", "systemd"))},
		settings: st,
		res:      resource.NewHolder(set),
	}
	for _, o := range opts {
		o(a)
	}
	if a.ts == nil {
		a.ts = scheduler.NewSystemTimeSource()
	}

	a.sched = scheduler.New(st.Scheduler, a.res, a.execute, a.ts, log, a.bus)

	// Catalog times are written in the scheduler's zone so the connect
	// trigger reads back what it compares against.
	catCfg := st.Catalog
	catCfg.Location = a.sched.Location()
	store, err := catalog.Open(catCfg, log)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	a.store = store

	a.runner = runner.New(st.Runner, store, log, a.bus)
	a.trigger = scheduler.NewConnectTrigger(a.res, store, a.sched, a.ts, a.sched.Location(), log)
	a.trigger.SetRateLimit(st.ConnectRate)

	if st.Listen != "" {
		a.lsn = listener.New(listener.Config{Addr: st.Listen}, log)
		a.lsn.RegisterCommands(listener.Deps{
			Resources: a.res,
			Scheduler: a.sched,
			Trigger:   a.trigger,
			Runner:    a.runner,
		})
	}

	a.log.Info("director configured",
		logx.Int("jobs", len(set.Jobs())),
		logx.Int("clients", len(set.Clients())),
		logx.String("timezone", a.sched.Location().String()),
		logx.String("catalog", catCfg.Driver),
	)
	return a, nil
}

func (a *App) execute(jc scheduler.JobContext) { a.runner.Execute(jc) }

func (a *App) Scheduler() *scheduler.Scheduler { return a.sched }
func (a *App) Runner() *runner.Service { return a.runner }
func (a *App) Resources() *resource.Holder { return a.res }
func (a *App) Bus() eventbus.Bus { return a.bus }

// ListenAddr is the bound listener address, or "" when not listening.
func (a *App) ListenAddr() string {
	if a.lsn == nil || a.lsn.Addr() == nil {
		return ""
	}
	return a.lsn.Addr().String()
}

// Done is closed when the app supervisor is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(config.Validate)

	a.runner.Start(a.sup.Context())

	a.sup.Go("scheduler", func(c context.Context) error {
		err := a.sched.Run(c)
		if c.Err() != nil {
			return nil
		}
		return err
	})

	if a.lsn != nil {
		a.sup.GoRestart("listener", a.lsn.ListenAndServe,
			supervisor.WithRestartBackoff(time.Second, 30*time.Second),
			supervisor.WithMaxRestarts(5),
		)
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.String("job", e.Str("job")), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case newCfg, ok := <-sub:
				if !ok {
					return nil
				}
				newCfg = latest(sub, newCfg)
				a.sd.reloading()
				a.applyConfig(c, last, newCfg)
				last = newCfg
				a.sd.ready()
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go("systemd.watchdog", func(c context.Context) error {
		a.sd.watchdog(c)
		return nil
	})

	a.sd.ready()
	a.log.Info("director started")
	return nil
}

// latest drains queued configs and keeps the newest.
func latest(sub chan *config.Config, cfg *config.Config) *config.Config {
	for {
		select {
		case newer, ok := <-sub:
			if !ok {
				return cfg
			}
			if newer != nil {
				cfg = newer
			}
		default:
			return cfg
		}
	}
}

// applyConfig applies a validated config. Resources are swapped under
// the scheduler's reload so no scan sees a half-applied state.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs, jobs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("applying config change", fields...)

	st, err := config.Resolve(newCfg)
	if err != nil {
		a.log.Warn("invalid config; keeping previous", logx.Err(err))
		return
	}
	set, warns, err := config.BuildResources(newCfg)
	if err != nil {
		a.log.Warn("invalid resources; keeping previous", logx.Err(err))
		return
	}
	for _, w := range warns {
		a.log.Warn("config warning", logx.String("resource", w.Resource), logx.String("msg", w.Message))
	}

	a.logs.Apply(st.Log)

	prev := a.settings
	if st.Scheduler != prev.Scheduler || st.Catalog != prev.Catalog || st.Listen != prev.Listen {
		a.log.Warn("scheduler, catalog or listener settings changed; restart required for them to take effect")
	}
	st.Scheduler, st.Catalog, st.Listen = prev.Scheduler, prev.Catalog, prev.Listen

	a.runner.Apply(ctx, st.Runner)
	a.trigger.SetRateLimit(st.ConnectRate)
	a.sched.Reload(func() { a.res.Store(set) })
	a.settings = st

	if len(jobs) > 0 {
		a.log.Info("jobs changed", logx.Strings("jobs", jobs))
	}
}

// Stop shuts the daemon down: no new dispatches, running jobs are
// canceled, then the catalog and log sinks are closed.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		var err error
		if a.store != nil {
			err = a.store.Close()
		}
		_ = a.logs.Close()
		return err
	}
	a.sd.stopping()
	a.log.Info("director stopping", logx.String("reason", string(reason)))

	a.sched.Terminate()
	a.sup.Cancel()
	a.runner.Stop(ctx)

	var errs error
	if err := a.sup.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
		errs = errors.CombineErrors(errs, err)
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrap(err, "close catalog"))
		}
	}
	a.log.Info("director stopped")
	_ = a.logs.Close()
	return errs
}
