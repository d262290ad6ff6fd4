package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
scheduler:
  timezone: UTC
clients:
  - name: web-fd
schedules:
  - name: WeeklyCycle
    run:
      - "Level=Full 1st sun at 23:05"
      - "Level=Incremental mon-sat at 23:05"
jobs:
  - name: backup-web
    client: web-fd
    schedule: WeeklyCycle
  - name: manual-only
    client: web-fd
`

func runCmd(t *testing.T, cfg string, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dird.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", path}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestCheck(t *testing.T) {
	t.Parallel()
	out, err := runCmd(t, testConfig, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "schedule WeeklyCycle\n")
	assert.Contains(t, out, "  run Level=Full 1st sun at 23:05\n")
	assert.Contains(t, out, "  run Level=Incremental mon-sat at 23:05\n")
	assert.Contains(t, out, `warning: job "manual-only"`)
	assert.Contains(t, out, "ok: 1 clients, 1 schedules, 2 jobs")
}

func TestCheckReportsParseErrorWithHint(t *testing.T) {
	t.Parallel()
	bad := strings.Replace(testConfig, "mon-sat at 23:05", "mon-sat at 23:65", 1)
	out, err := runCmd(t, bad, "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "23:65")
	assert.Contains(t, out, "hint:")
}

func TestForecast(t *testing.T) {
	t.Parallel()
	// 2015-03-01 is the first Sunday of March.
	out, err := runCmd(t, testConfig, "forecast", "--job", "backup-web", "--days", "3", "--from", "2015-02-28 12:00:00")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Sat 2015-02-28 23:05  Incremental"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Sun 2015-03-01 23:05  Full"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "Mon 2015-03-02 23:05  Incremental"), lines[2])
	assert.Contains(t, lines[0], "from now")
}

func TestForecastErrors(t *testing.T) {
	t.Parallel()
	_, err := runCmd(t, testConfig, "forecast", "--job", "nope")
	assert.Error(t, err)
	_, err = runCmd(t, testConfig, "forecast", "--days", "0")
	assert.Error(t, err)

	out, err := runCmd(t, testConfig, "forecast", "--job", "manual-only")
	require.NoError(t, err)
	assert.Equal(t, "no scheduled runs\n", out)
}
