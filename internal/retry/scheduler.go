package retry

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Scheduler runs tasks after a delay measured on an injected clock, so retry
// timing can be driven by a mock clock in tests.
type Scheduler struct {
	clock clock.Clock
}

func NewScheduler(c clock.Clock) *Scheduler {
	if c == nil {
		c = clock.New()
	}
	return &Scheduler{clock: c}
}

// Clock exposes the scheduler's clock.
func (s *Scheduler) Clock() clock.Clock {
	return s.clock
}

// Task is a scheduled unit of work that may be cancelled before it fires.
type Task struct {
	mu        sync.Mutex
	timer     *clock.Timer
	cancelled bool
	Delay     time.Duration
}

// Schedule runs fn once d has elapsed on the scheduler clock.
func (s *Scheduler) Schedule(d time.Duration, fn func()) *Task {
	t := &Task{Delay: d}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timer = s.clock.AfterFunc(d, func() {
		t.mu.Lock()
		cancelled := t.cancelled
		t.mu.Unlock()
		if !cancelled {
			fn()
		}
	})
	return t
}

// Cancel stops the task. It is safe to call on a nil or already fired task.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled = true
	if t.timer != nil {
		t.timer.Stop()
	}
}
