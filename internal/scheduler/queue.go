package scheduler

import (
	"container/heap"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/bareos/bareos-sub019/internal/calendar"
	"github.com/bareos/bareos-sub019/internal/resource"
)

var ErrInvalidArgument = errors.New("invalid argument")

// Item is one pending trigger. The zero Item has Valid == false and is what
// TopItem and TakeOutTopItem return on an empty queue.
type Item struct {
	Job      *resource.Job
	Run      *calendar.Clause
	Runtime  time.Time
	Priority int
	Reason   TriggerReason
	Valid    bool

	seq uint64
}

// itemHeap implements container/heap.Interface, most urgent first.
type itemHeap []Item

func (h itemHeap) Len() int           { return len(h) }
func (h itemHeap) Less(i, j int) bool { return before(h[i], h[j]) }
func (h itemHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(Item)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// before orders by runtime, then priority (lower value wins), then
// insertion order.
func before(a, b Item) bool {
	if !a.Runtime.Equal(b.Runtime) {
		return a.Runtime.Before(b.Runtime)
	}
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.seq < b.seq
}

// Queue is a mutex-guarded priority queue. No operation blocks.
type Queue struct {
	mu  sync.Mutex
	h   itemHeap
	seq uint64
}

func NewQueue() *Queue { return &Queue{} }

// Emplace inserts an item. A nil job or a zero runtime is rejected.
func (q *Queue) Emplace(job *resource.Job, run *calendar.Clause, runtime time.Time, priority int, reason TriggerReason) error {
	if job == nil {
		return errors.Wrap(ErrInvalidArgument, "job is nil")
	}
	if runtime.IsZero() {
		return errors.Wrapf(ErrInvalidArgument, "job %s: runtime is zero", job.Name)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	heap.Push(&q.h, Item{
		Job:      job,
		Run:      run,
		Runtime:  runtime,
		Priority: priority,
		Reason:   reason,
		Valid:    true,
		seq:      q.seq,
	})
	return nil
}

func (q *Queue) TakeOutTopItem() Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.h.Len() == 0 {
		return Item{}
	}
	return heap.Pop(&q.h).(Item)
}

func (q *Queue) TopItem() Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.h.Len() == 0 {
		return Item{}
	}
	return q.h[0]
}

// takeDue pops the top item if its runtime is not after now.
func (q *Queue) takeDue(now time.Time) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.h.Len() == 0 || q.h[0].Runtime.After(now) {
		return Item{}, false
	}
	return heap.Pop(&q.h).(Item), true
}

func (q *Queue) Empty() bool { return q.Len() == 0 }

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.h.Len()
}

// Clear drops every item and returns how many were dropped.
func (q *Queue) Clear() int {
	return len(q.drain())
}

// drain empties the queue and returns what it held, in no particular order.
func (q *Queue) drain() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := []Item(q.h)
	q.h = nil
	return out
}

// Snapshot returns the items in pop order without modifying the queue.
func (q *Queue) Snapshot() []Item {
	q.mu.Lock()
	out := append([]Item(nil), q.h...)
	q.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return before(out[i], out[j]) })
	return out
}
