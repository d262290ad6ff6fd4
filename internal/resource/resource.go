// Package resource holds the immutable snapshot of configured clients, schedules
// and jobs. A new Set is built on every reload and swapped into a Holder.
package resource

import (
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/bareos/bareos-sub019/internal/calendar"
)

var (
	ErrDuplicate     = errors.New("duplicate resource")
	ErrUnknownClient = errors.New("unknown client")
)

// DefaultPriority is used for jobs that leave Priority unset.
const DefaultPriority = 10

// Job is a configured backup job.
type Job struct {
	Name     string
	Client   string
	Schedule *calendar.Schedule
	Priority int
	Enabled  bool
	Level    string
	Command  string
	Timeout  time.Duration

	// ConnectInterval > 0 makes the job run when its client connects and
	// the last run started more than ConnectInterval ago.
	ConnectInterval time.Duration
}

// Client is a file daemon the director backs up.
type Client struct {
	Name    string
	Enabled bool
}

// Set is one consistent view of all resources. It is never mutated after
// NewSet returns.
type Set struct {
	jobs      []*Job
	jobByName map[string]*Job
	byClient  map[string][]*Job

	clients      []*Client
	clientByName map[string]*Client

	schedules map[string]*calendar.Schedule
}

func key(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// NewSet indexes the given resources. Names are compared case-insensitively.
// Every job must reference a known client.
func NewSet(clients []*Client, schedules []*calendar.Schedule, jobs []*Job) (*Set, error) {
	s := &Set{
		jobByName:    make(map[string]*Job, len(jobs)),
		byClient:     map[string][]*Job{},
		clientByName: make(map[string]*Client, len(clients)),
		schedules:    make(map[string]*calendar.Schedule, len(schedules)),
	}
	for _, c := range clients {
		k := key(c.Name)
		if _, ok := s.clientByName[k]; ok {
			return nil, errors.Wrapf(ErrDuplicate, "client %q", c.Name)
		}
		s.clientByName[k] = c
		s.clients = append(s.clients, c)
	}
	for _, sc := range schedules {
		k := key(sc.Name)
		if _, ok := s.schedules[k]; ok {
			return nil, errors.Wrapf(ErrDuplicate, "schedule %q", sc.Name)
		}
		s.schedules[k] = sc
	}
	for _, j := range jobs {
		k := key(j.Name)
		if _, ok := s.jobByName[k]; ok {
			return nil, errors.Wrapf(ErrDuplicate, "job %q", j.Name)
		}
		ck := key(j.Client)
		if _, ok := s.clientByName[ck]; !ok {
			return nil, errors.Wrapf(ErrUnknownClient, "job %q references client %q", j.Name, j.Client)
		}
		s.jobByName[k] = j
		s.byClient[ck] = append(s.byClient[ck], j)
		s.jobs = append(s.jobs, j)
	}
	return s, nil
}

// Empty returns a Set without resources.
func Empty() *Set {
	s, _ := NewSet(nil, nil, nil)
	return s
}

// Jobs returns all jobs in configuration order.
func (s *Set) Jobs() []*Job {
	if s == nil {
		return nil
	}
	return append([]*Job(nil), s.jobs...)
}

func (s *Set) Job(name string) (*Job, bool) {
	if s == nil {
		return nil, false
	}
	j, ok := s.jobByName[key(name)]
	return j, ok
}

// JobsForClient returns the jobs that back up the named client.
func (s *Set) JobsForClient(name string) []*Job {
	if s == nil {
		return nil
	}
	return append([]*Job(nil), s.byClient[key(name)]...)
}

func (s *Set) Client(name string) (*Client, bool) {
	if s == nil {
		return nil, false
	}
	c, ok := s.clientByName[key(name)]
	return c, ok
}

func (s *Set) Clients() []*Client {
	if s == nil {
		return nil
	}
	return append([]*Client(nil), s.clients...)
}

// Schedules returns the schedules sorted by name.
func (s *Set) Schedules() []*calendar.Schedule {
	if s == nil {
		return nil
	}
	out := make([]*calendar.Schedule, 0, len(s.schedules))
	for _, sc := range s.schedules {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Set) Schedule(name string) (*calendar.Schedule, bool) {
	if s == nil {
		return nil, false
	}
	sc, ok := s.schedules[key(name)]
	return sc, ok
}

// Holder publishes the current Set. Readers never block writers.
type Holder struct {
	cur atomic.Pointer[Set]
}

func NewHolder(s *Set) *Holder {
	h := &Holder{}
	h.Store(s)
	return h
}

func (h *Holder) Load() *Set { return h.cur.Load() }

func (h *Holder) Store(s *Set) {
	if s == nil {
		s = Empty()
	}
	h.cur.Store(s)
}

func (h *Holder) Jobs() []*Job { return h.Load().Jobs() }
func (h *Holder) Job(name string) (*Job, bool) { return h.Load().Job(name) }
func (h *Holder) JobsForClient(name string) []*Job { return h.Load().JobsForClient(name) }
func (h *Holder) Client(name string) (*Client, bool) { return h.Load().Client(name) }
