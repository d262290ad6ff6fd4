package scheduler

import (
	"testing"
	"time"
)

func TestSystemTimeSourceWake(t *testing.T) {
	t.Parallel()
	ts := NewSystemTimeSource()
	go func() {
		time.Sleep(10 * time.Millisecond)
		ts.Wake()
	}()
	start := time.Now()
	if !ts.SleepFor(time.Minute) {
		t.Fatal("expected early wake")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("wake took too long")
	}
	if ts.SleepFor(time.Millisecond) {
		t.Fatal("short sleep without wake should not report early return")
	}
}

func TestSystemTimeSourceTerminate(t *testing.T) {
	t.Parallel()
	ts := NewSystemTimeSource()
	ts.Terminate()
	ts.Terminate()
	if !ts.SleepFor(time.Hour) {
		t.Fatal("sleep after terminate must return early")
	}
	if !ts.SleepFor(0) {
		t.Fatal("zero sleep after terminate must report termination")
	}
}

func TestSimulatedTimeSource(t *testing.T) {
	t.Parallel()
	ts := NewSimulatedTimeSource(t0)
	if ts.SleepFor(time.Hour) {
		t.Fatal("unexpected early return")
	}
	if got := ts.SystemTime(); !got.Equal(t0.Add(time.Hour)) {
		t.Fatalf("SystemTime = %s", got)
	}

	ts.Wake()
	if !ts.SleepFor(time.Hour) {
		t.Fatal("pending wake must end the sleep")
	}
	if got := ts.SystemTime(); !got.Equal(t0.Add(time.Hour)) {
		t.Fatalf("woken sleep must not advance the clock, got %s", got)
	}

	ts.Advance(time.Minute)
	if got := ts.SystemTime(); !got.Equal(t0.Add(61 * time.Minute)) {
		t.Fatalf("SystemTime = %s", got)
	}

	ts.Terminate()
	if !ts.SleepFor(time.Hour) {
		t.Fatal("terminated source must return early")
	}
}
