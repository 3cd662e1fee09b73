package dispatch

import (
	"fmt"
	"sync"
	"time"
)

// DefaultDrainLimit is the wall-clock ceiling a single main-loop drain task
// may spend invoking consumers before it reposts itself and yields.
const DefaultDrainLimit = 10 * time.Millisecond

// Main serializes deliveries onto the host main loop. At most one drain task
// is scheduled at a time.
type Main struct {
	loop   MainLoop
	invoke InvokeFunc
	limit  time.Duration

	// mu guards active; it is always taken before the queue's own lock.
	mu     sync.Mutex
	queue  *Queue
	active bool
}

// NewMain creates a main-loop dispatcher. A non-positive limit selects
// DefaultDrainLimit.
func NewMain(loop MainLoop, invoke InvokeFunc, limit time.Duration) *Main {
	if limit <= 0 {
		limit = DefaultDrainLimit
	}
	return &Main{
		loop:   loop,
		invoke: invoke,
		limit:  limit,
		queue:  NewQueue(),
	}
}

// Enqueue appends the delivery and schedules a drain task unless one is
// already in flight.
func (m *Main) Enqueue(sub, event any) error {
	d := Obtain(sub, event)
	m.mu.Lock()
	m.queue.Enqueue(d)
	schedule := !m.active
	if schedule {
		m.active = true
	}
	m.mu.Unlock()
	if !schedule {
		return nil
	}
	if err := m.loop.Post(m.drain); err != nil {
		m.mu.Lock()
		m.active = false
		m.mu.Unlock()
		return fmt.Errorf("%w: main loop refused drain task: %v", ErrSubmit, err)
	}
	return nil
}

// drain runs on the main loop. It invokes queued deliveries until the queue
// empties or the drain limit elapses, in which case it reposts itself so the
// loop can process other work.
func (m *Main) drain() {
	started := time.Now()
	for {
		d := m.queue.Poll()
		if d == nil {
			m.mu.Lock()
			d = m.queue.Poll()
			if d == nil {
				m.active = false
				m.mu.Unlock()
				return
			}
			m.mu.Unlock()
		}
		m.invoke(d)
		if time.Since(started) >= m.limit {
			if err := m.loop.Post(m.drain); err != nil {
				m.mu.Lock()
				m.active = false
				m.mu.Unlock()
			}
			return
		}
	}
}
