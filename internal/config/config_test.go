package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bareos/bareos-sub019/internal/calendar"
	"github.com/bareos/bareos-sub019/internal/resource"
)

const sampleYAML = `
logging:
  level: debug
  console: true
scheduler:
  timezone: UTC
  max_wait: 30s
  listen: 127.0.0.1:9101
  connect_rate: 10s
runner:
  workers: 4
  default_timeout: 2h
catalog:
  driver: sqlite
  path: /var/lib/dird/catalog.db
clients:
  - name: web-fd
  - name: laptop-fd
  - name: old-fd
    enabled: false
schedules:
  - name: WeeklyCycle
    run:
      - "Level=Full 1st sun at 23:05"
      - "Level=Differential 2nd-5th sun at 23:05"
      - "Level=Incremental mon-sat at 23:05"
  - name: Hourly
    run: ["hourly at :15"]
jobs:
  - name: backup-web
    client: web-fd
    schedule: weeklycycle
    command: /usr/local/bin/backup --host web
  - name: backup-laptop
    client: laptop-fd
    level: incremental
    priority: 5
    run_on_incoming_connect_interval: 24h
  - name: backup-old
    client: old-fd
    schedule: Hourly
`

func decodeSample(t *testing.T) *Config {
	t.Helper()
	cfg, err := Decode("dird.yaml", []byte(sampleYAML))
	require.NoError(t, err)
	return cfg
}

func TestDecodeYAMLAndJSON(t *testing.T) {
	t.Parallel()
	cfg := decodeSample(t)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 4, cfg.Runner.Workers)
	require.Len(t, cfg.Schedules, 2)
	assert.Len(t, cfg.Schedules[0].Run, 3)
	require.Len(t, cfg.Jobs, 3)
	assert.Equal(t, "24h", cfg.Jobs[1].RunOnIncomingConnectInterval)

	js, err := Decode("dird.json", []byte(`{"clients":[{"name":"a-fd"}],"jobs":[]}`))
	require.NoError(t, err)
	assert.Equal(t, "a-fd", js.Clients[0].Name)

	empty, err := Decode("empty.yml", nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Jobs)
}

func TestDecodeRunBlock(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("dird.yml", []byte("schedules:\n  - name: Cycle\n    run: |\n      Level=Full 1st sun at 23:05\n\n      Level=Incremental mon-sat at 23:05\n"))
	require.NoError(t, err)
	require.Len(t, cfg.Schedules, 1)
	assert.Equal(t, []string{"Level=Full 1st sun at 23:05", "Level=Incremental mon-sat at 23:05"}, cfg.Schedules[0].Run)
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()
	cases := map[string]struct {
		name string
		data string
	}{
		"unknown yaml field": {"c.yaml", "scheduler:\n  tz: UTC\n"},
		"unknown json field": {"c.json", `{"jobz":[]}`},
		"trailing json":      {"c.json", `{} {}`},
		"bad yaml":           {"c.yaml", "jobs: [\n"},
	}
	for name, tc := range cases {

		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(tc.name, []byte(tc.data))
			assert.Error(t, err)
		})
	}
}

func TestBuildResources(t *testing.T) {
	t.Parallel()
	set, warns, err := BuildResources(decodeSample(t))
	require.NoError(t, err)

	web, ok := set.Job("BACKUP-WEB")
	require.True(t, ok)
	assert.Equal(t, resource.DefaultPriority, web.Priority)
	assert.True(t, web.Enabled)
	require.NotNil(t, web.Schedule)
	assert.Equal(t, "WeeklyCycle", web.Schedule.Name)
	assert.Len(t, web.Schedule.Clauses, 3)

	// First Sunday of March 2015 at 23:05 is a Full run.
	first := time.Date(2015, 3, 1, 23, 5, 0, 0, time.UTC)
	assert.True(t, web.Schedule.Matches(first))
	assert.Equal(t, "Full", web.Schedule.Clauses[0].Override.Level)

	laptop, ok := set.Job("backup-laptop")
	require.True(t, ok)
	assert.Equal(t, 5, laptop.Priority)
	assert.Equal(t, "Incremental", laptop.Level)
	assert.Equal(t, 24*time.Hour, laptop.ConnectInterval)
	assert.Nil(t, laptop.Schedule)

	assert.Len(t, set.JobsForClient("web-fd"), 1)

	require.Len(t, warns, 1)
	assert.Contains(t, warns[0].String(), `job "backup-old"`)
	assert.Contains(t, warns[0].Message, "disabled")
}

func TestBuildResourcesWarnings(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		Clients:   []ClientConfig{{Name: "fd"}},
		Schedules: []ScheduleConfig{{Name: "Empty"}, {Name: "Old", Run: []string{"on mon at 1:00"}}},
		Jobs:      []JobConfig{{Name: "manual", Client: "fd"}},
	}
	set, warns, err := BuildResources(cfg)
	require.NoError(t, err)
	sc, ok := set.Schedule("empty")
	require.True(t, ok)
	assert.Empty(t, sc.Clauses)

	var msgs []string
	for _, w := range warns {
		msgs = append(msgs, w.String())
	}
	assert.Len(t, msgs, 3)
	assert.Contains(t, msgs[0], "never fires")
	assert.Contains(t, msgs[1], `schedule "Old" run[0]`)
	assert.Contains(t, msgs[2], "only runs on demand")
}

func TestBuildResourcesErrors(t *testing.T) {
	t.Parallel()
	base := func() *Config {
		return &Config{
			Clients:   []ClientConfig{{Name: "fd"}},
			Schedules: []ScheduleConfig{{Name: "Nightly", Run: []string{"at 23:00"}}},
			Jobs:      []JobConfig{{Name: "j", Client: "fd", Schedule: "Nightly"}},
		}
	}
	cases := []struct {
		name   string
		mutate func(*Config)
		check  func(t *testing.T, err error)
	}{
		{"bad run entry", func(c *Config) { c.Schedules[0].Run = []string{"at 23:00", "mon at 25:00"} }, func(t *testing.T, err error) {
			var pe *calendar.ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, "25:00", pe.Token)
			assert.Contains(t, err.Error(), `schedule "Nightly" run[1]`)
			assert.NotEmpty(t, errors.GetAllHints(err))
		}},
		{"unknown schedule", func(c *Config) { c.Jobs[0].Schedule = "Weekly" }, func(t *testing.T, err error) {
			assert.Contains(t, err.Error(), `unknown schedule "Weekly"`)
			assert.NotEmpty(t, errors.GetAllHints(err))
		}},
		{"unknown client", func(c *Config) { c.Jobs[0].Client = "other" }, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, resource.ErrUnknownClient)
		}},
		{"duplicate job", func(c *Config) { c.Jobs = append(c.Jobs, JobConfig{Name: "J", Client: "fd"}) }, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, resource.ErrDuplicate)
		}},
		{"duplicate schedule", func(c *Config) { c.Schedules = append(c.Schedules, ScheduleConfig{Name: "nightly"}) }, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, resource.ErrDuplicate)
		}},
		{"bad level", func(c *Config) { c.Jobs[0].Level = "weekly" }, func(t *testing.T, err error) {
			assert.Contains(t, err.Error(), "unknown level")
		}},
		{"negative priority", func(c *Config) { c.Jobs[0].Priority = -1 }, func(t *testing.T, err error) {
			assert.Contains(t, err.Error(), "priority")
		}},
		{"bad timeout", func(c *Config) { c.Jobs[0].Timeout = "soon" }, func(t *testing.T, err error) {
			assert.Contains(t, err.Error(), `job "j".timeout`)
		}},
		{"missing client name", func(c *Config) { c.Clients[0].Name = " " }, func(t *testing.T, err error) {
			assert.Contains(t, err.Error(), "clients[0]")
		}},
	}
	for _, tc := range cases {

		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tc.mutate(cfg)
			set, warns, err := BuildResources(cfg)
			require.Error(t, err)
			assert.Nil(t, set)
			assert.Nil(t, warns)
			tc.check(t, err)
		})
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()
	st, err := Resolve(decodeSample(t))
	require.NoError(t, err)
	assert.Equal(t, "UTC", st.Scheduler.Timezone)
	assert.Equal(t, 30*time.Second, st.Scheduler.MaxWait)
	assert.Equal(t, "127.0.0.1:9101", st.Listen)
	assert.Equal(t, 10*time.Second, st.ConnectRate)
	assert.Equal(t, 2*time.Hour, st.Runner.DefaultTimeout)
	assert.Equal(t, "sqlite", st.Catalog.Driver)
	assert.True(t, st.Log.Console)

	def, err := Resolve(&Config{})
	require.NoError(t, err)
	assert.Equal(t, time.Minute, def.Scheduler.MaxWait)
	assert.Empty(t, def.Listen)

	bad := []Config{
		{Logging: LoggingConfig{Level: "loud"}},
		{Scheduler: SchedulerConfig{Timezone: "Mars/Olympus"}},
		{Scheduler: SchedulerConfig{MaxWait: "-1s"}},
		{Scheduler: SchedulerConfig{Listen: "9101"}},
		{Runner: RunnerConfig{Workers: -1}},
		{Catalog: CatalogConfig{Driver: "postgres"}},
	}
	for i := range bad {
		_, err := Resolve(&bad[i])
		assert.Error(t, err, "case %d", i)
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := decodeSample(t)
	newCfg := decodeSample(t)

	changed, _, jobs := SummarizeConfigChange(oldCfg, newCfg)
	assert.Empty(t, changed)
	assert.Empty(t, jobs)

	newCfg.Runner.Workers = 8
	newCfg.Schedules[1].Run = []string{"hourly at :45"}
	newCfg.Jobs = newCfg.Jobs[:2]
	changed, attrs, jobs := SummarizeConfigChange(oldCfg, newCfg)
	assert.Equal(t, []string{"jobs", "runner", "schedules"}, changed)
	assert.NotEmpty(t, attrs)
	// backup-old was removed; no remaining job uses the Hourly schedule.
	assert.Equal(t, []string{"backup-old"}, jobs)

	newCfg.Schedules[0].Run = []string{"at 01:00"}
	_, _, jobs = SummarizeConfigChange(oldCfg, newCfg)
	assert.Equal(t, []string{"backup-old", "backup-web"}, jobs)
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationField("x", " 90s ")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	d, err = ParseDurationField("x", "")
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = ParseDurationField("runner.default_timeout", "ten")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runner.default_timeout")

	d, err = ParseDurationOrDefault("x", "0s", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)

	for raw, want := range map[string]time.Duration{
		"1d":      24 * time.Hour,
		"1w2d":    9 * 24 * time.Hour,
		"1d12h":   36 * time.Hour,
		"2d30m5s": 48*time.Hour + 30*time.Minute + 5*time.Second,
	} {
		d, err := ParseDurationField("x", raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, d, raw)
	}

	for _, raw := range []string{"d", "1.5d", "-1d", "1dd"} {
		_, err := ParseDurationField("x", raw)
		assert.Error(t, err, raw)
	}
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
}

func TestManagerLoadAndWatch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "dird.yaml")
	writeFile(t, path, sampleYAML)

	m := NewConfigManager(path)
	m.SetValidator(Validate)
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Same(t, cfg, m.Get())

	updates := m.Subscribe(1)
	defer m.Unsubscribe(updates)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()
	// Give the watcher time to register before writing.
	time.Sleep(200 * time.Millisecond)

	// A config that fails validation is not published.
	writeFile(t, path, sampleYAML+"  - name: broken\n    client: nobody\n")
	select {
	case got := <-updates:
		t.Fatalf("invalid config published: %d jobs", len(got.Jobs))
	case <-time.After(time.Second):
	}
	assert.Same(t, cfg, m.Get())

	writeFile(t, path, sampleYAML+"  - name: backup-new\n    client: web-fd\n")
	select {
	case got := <-updates:
		require.Len(t, got.Jobs, 4)
		assert.Same(t, got, m.Get())
	case <-time.After(5 * time.Second):
		t.Fatal("config update not published")
	}
}

func TestPublishKeepsNewest(t *testing.T) {
	t.Parallel()
	m := NewConfigManager("unused.yaml")
	ch := m.Subscribe(1)
	a, b := &Config{}, &Config{}
	m.publish(a)
	m.publish(b)
	assert.Same(t, b, <-ch)
	m.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)
}
