package cache

import (
	"sync"
	"time"
)

// DefaultFrame approximates one display frame at 60Hz.
const DefaultFrame = 16 * time.Millisecond

// Scheduler runs fn once at the next scheduling tick. Schedule must not run
// fn synchronously: the cache calls it while admitting a request.
type Scheduler interface {
	Schedule(fn func())
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(fn func())

// Schedule implements Scheduler.
func (f SchedulerFunc) Schedule(fn func()) { f(fn) }

// FrameScheduler runs each callback once after Frame has elapsed.
// A non-positive Frame uses DefaultFrame.
type FrameScheduler struct {
	Frame time.Duration
}

// Schedule implements Scheduler.
func (s FrameScheduler) Schedule(fn func()) {
	d := s.Frame
	if d <= 0 {
		d = DefaultFrame
	}
	time.AfterFunc(d, fn)
}

// ManualScheduler queues callbacks until Flush is called. It lets tests and
// embedders with their own event loop decide exactly when a tick happens.
type ManualScheduler struct {
	mu    sync.Mutex
	queue []func()
}

// Schedule implements Scheduler.
func (s *ManualScheduler) Schedule(fn func()) {
	s.mu.Lock()
	s.queue = append(s.queue, fn)
	s.mu.Unlock()
}

// Pending returns the number of queued callbacks.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Flush runs the callbacks queued so far and returns how many ran.
// Callbacks scheduled while flushing wait for the next Flush.
func (s *ManualScheduler) Flush() int {
	s.mu.Lock()
	q := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, fn := range q {
		fn()
	}
	return len(q)
}

var (
	_ Scheduler = FrameScheduler{}
	_ Scheduler = (*ManualScheduler)(nil)
	_ Scheduler = SchedulerFunc(nil)
)
