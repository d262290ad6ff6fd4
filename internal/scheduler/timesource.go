package scheduler

import (
	"sync"
	"time"
)

// TimeSource abstracts the clock and the loop's only blocking point.
type TimeSource interface {
	SystemTime() time.Time
	// SleepFor blocks for d and reports whether it returned early because
	// of Wake or Terminate.
	SleepFor(d time.Duration) bool
	// Wake interrupts the current or next sleep.
	Wake()
	// Terminate interrupts every sleep from now on.
	Terminate()
}

// SystemTimeSource is the wall clock.
type SystemTimeSource struct {
	wake chan struct{}
	done chan struct{}
	once sync.Once
}

func NewSystemTimeSource() *SystemTimeSource {
	return &SystemTimeSource{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (s *SystemTimeSource) SystemTime() time.Time { return time.Now() }

func (s *SystemTimeSource) SleepFor(d time.Duration) bool {
	if d <= 0 {
		select {
		case <-s.done:
			return true
		default:
			return false
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return false
	case <-s.wake:
		return true
	case <-s.done:
		return true
	}
}

func (s *SystemTimeSource) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *SystemTimeSource) Terminate() { s.once.Do(func() { close(s.done) }) }

// SimulatedTimeSource is a deterministic clock for tests. SleepFor advances
// the clock by d and returns at once, or returns early without advancing
// when a wake is pending or the source was terminated.
type SimulatedTimeSource struct {
	mu         sync.Mutex
	now        time.Time
	woken      bool
	terminated bool
}

func NewSimulatedTimeSource(start time.Time) *SimulatedTimeSource {
	return &SimulatedTimeSource{now: start}
}

func (s *SimulatedTimeSource) SystemTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *SimulatedTimeSource) SleepFor(d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return true
	}
	if s.woken {
		s.woken = false
		return true
	}
	if d > 0 {
		s.now = s.now.Add(d)
	}
	return false
}

// Advance moves the clock forward without sleeping.
func (s *SimulatedTimeSource) Advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	s.mu.Unlock()
}

func (s *SimulatedTimeSource) Wake() {
	s.mu.Lock()
	s.woken = true
	s.mu.Unlock()
}

func (s *SimulatedTimeSource) Terminate() {
	s.mu.Lock()
	s.terminated = true
	s.mu.Unlock()
}
