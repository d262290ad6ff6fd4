package app

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseConfig = `
logging:
  level: error
scheduler:
  timezone: UTC
  listen: 127.0.0.1:0
catalog:
  driver: file
  path: %CATALOG%
clients:
  - name: web-fd
schedules:
  - name: Nightly
    run: ["at 23:00"]
jobs:
  - name: backup-web
    client: web-fd
`

func writeConfig(t *testing.T, path, extra string) {
	t.Helper()
	data := strings.ReplaceAll(baseConfig, "%CATALOG%", filepath.Join(filepath.Dir(path), "catalog"))
	require.NoError(t, os.WriteFile(path, []byte(data+extra), 0o600))
}

func TestAppRunsManualJobAndReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dird.yaml")
	writeConfig(t, path, "")

	a, err := NewApp(path)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, a.Stop(ctx, StopAppStop))
	}()

	require.Eventually(t, func() bool { return a.ListenAddr() != "" }, 5*time.Second, 10*time.Millisecond)
	conn, err := net.Dial("tcp", a.ListenAddr())
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	_, err = conn.Write([]byte("run backup-web\n"))
	require.NoError(t, err)
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "OK queued backup-web\n", line)

	require.Eventually(t, func() bool {
		h := a.Runner().History()
		return len(h) == 1 && h[0].Status == "T" && h[0].Reason == "manual"
	}, 5*time.Second, 10*time.Millisecond)

	// Hot reload adds a job and schedules it.
	time.Sleep(300 * time.Millisecond)
	writeConfig(t, path, "  - name: backup-db\n    client: web-fd\n    schedule: nightly\n")
	require.Eventually(t, func() bool {
		_, ok := a.Resources().Job("backup-db")
		return ok
	}, 5*time.Second, 20*time.Millisecond)
}

func TestNewAppRejectsBadConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, err := NewApp(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(dir, "dird.yaml")
	writeConfig(t, path, "  - name: orphan\n    client: nobody\n")
	_, err = NewApp(path)
	assert.Error(t, err)
}

func TestStopBeforeStart(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "dird.yaml")
	writeConfig(t, path, "")
	a, err := NewApp(path)
	require.NoError(t, err)
	assert.NoError(t, a.Stop(context.Background(), StopAppStop))
	select {
	case <-a.Done():
	default:
		t.Fatal("Done should be closed before Start")
	}
}
