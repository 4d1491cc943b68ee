package cart

import (
	"sort"
	"sync"
	"time"
)

// Scheduler runs deferred tasks. The returned stop function cancels the task
// and reports whether it was cancelled before it ran.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// RealScheduler runs tasks on time.AfterFunc goroutines.
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// ManualScheduler runs tasks only when Advance moves its clock past their due
// time. Tasks run on the goroutine calling Advance.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	next  int
	tasks map[int]*manualTask
}

type manualTask struct {
	id  int
	due time.Duration
	f   func()
}

// NewManualScheduler creates a scheduler at time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{tasks: make(map[int]*manualTask)}
}

func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.tasks[id] = &manualTask{id: id, due: s.now + d, f: f}
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.tasks[id]; !ok {
			return false
		}
		delete(s.tasks, id)
		return true
	}
}

// Advance moves the clock forward by d and runs every task that became due,
// earliest first.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	now := s.now
	s.mu.Unlock()

	for {
		s.mu.Lock()
		var due []*manualTask
		for _, t := range s.tasks {
			if t.due <= now {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			s.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].due == due[j].due {
				return due[i].id < due[j].id
			}
			return due[i].due < due[j].due
		})
		t := due[0]
		delete(s.tasks, t.id)
		s.mu.Unlock()

		t.f()
	}
}

// Pending returns the number of scheduled tasks that have not run.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
