package config

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/bareos/bareos-sub019/internal/catalog"
	"github.com/bareos/bareos-sub019/internal/runner"
	"github.com/bareos/bareos-sub019/internal/scheduler"
	logx "github.com/bareos/bareos-sub019/pkg/logx"
)

// Settings is the service configuration with durations parsed.
type Settings struct {
	Log         logx.Config
	Scheduler   scheduler.Config
	Runner      runner.Config
	Catalog     catalog.Config
	Listen      string
	ConnectRate time.Duration
}

// Resolve converts the service sections. Resources are built separately by
// BuildResources.
func Resolve(cfg *Config) (Settings, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	var st Settings

	if !logx.ValidLevel(cfg.Logging.Level) {
		return st, errors.Newf("logging.level: unknown level %q", cfg.Logging.Level)
	}
	st.Log = logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	}

	tz := strings.TrimSpace(cfg.Scheduler.Timezone)
	if tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return st, errors.Wrapf(err, "scheduler.timezone %q", tz)
		}
	}
	maxWait, err := ParseDurationOrDefault("scheduler.max_wait", cfg.Scheduler.MaxWait, scheduler.DefaultMaxWait)
	if err != nil {
		return st, err
	}
	st.Scheduler = scheduler.Config{Timezone: tz, MaxWait: maxWait}

	if st.Listen = strings.TrimSpace(cfg.Scheduler.Listen); st.Listen != "" {
		if _, _, err := net.SplitHostPort(st.Listen); err != nil {
			return st, errors.Wrapf(err, "scheduler.listen %q", st.Listen)
		}
	}
	if st.ConnectRate, err = ParseDurationField("scheduler.connect_rate", cfg.Scheduler.ConnectRate); err != nil {
		return st, err
	}

	rc := cfg.Runner
	if rc.Workers < 0 || rc.QueueSize < 0 || rc.HistorySize < 0 {
		return st, errors.New("runner: workers, queue_size and history_size must be >= 0")
	}
	defTimeout, err := ParseDurationField("runner.default_timeout", rc.DefaultTimeout)
	if err != nil {
		return st, err
	}
	st.Runner = runner.Config{
		Workers:            rc.Workers,
		QueueSize:          rc.QueueSize,
		HistorySize:        rc.HistorySize,
		DefaultTimeout:     defTimeout,
		AllowDuplicateJobs: rc.AllowDuplicateJobs,
	}

	busy, err := ParseDurationField("catalog.busy_timeout", cfg.Catalog.BusyTimeout)
	if err != nil {
		return st, err
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Catalog.Driver))
	switch driver {
	case "", "none", "file", "sqlite", "sqlite3":
	default:
		return st, errors.Newf("catalog.driver: unknown driver %q", cfg.Catalog.Driver)
	}
	st.Catalog = catalog.Config{Driver: driver, Path: strings.TrimSpace(cfg.Catalog.Path), BusyTimeout: busy}
	return st, nil
}

// Validate checks everything a reload would need. It is the validator the
// daemon installs on its ConfigManager.
func Validate(_ context.Context, cfg *Config) error {
	if _, err := Resolve(cfg); err != nil {
		return err
	}
	_, _, err := BuildResources(cfg)
	return err
}
