package dispatch

import (
	"fmt"
	"sync"
	"time"
)

// backgroundPoll is how long the shared worker waits for a new delivery
// before rechecking and releasing its executor slot.
const backgroundPoll = time.Second

// Background serializes deliveries onto one shared executor worker. The
// worker exists only while deliveries are pending or recently drained.
type Background struct {
	invoke InvokeFunc
	exec   Executor
	poll   time.Duration

	// mu guards running; always taken before the queue's own lock.
	mu      sync.Mutex
	queue   *Queue
	running bool
}

// NewBackground creates a background dispatcher on the given executor.
func NewBackground(exec Executor, invoke InvokeFunc) *Background {
	return &Background{
		invoke: invoke,
		exec:   exec,
		poll:   backgroundPoll,
		queue:  NewQueue(),
	}
}

// Enqueue appends the delivery and starts the shared worker if none is
// running.
func (b *Background) Enqueue(sub, event any) error {
	d := Obtain(sub, event)
	b.mu.Lock()
	b.queue.Enqueue(d)
	start := !b.running
	if start {
		b.running = true
	}
	b.mu.Unlock()
	if !start {
		return nil
	}
	if err := b.exec.Execute(b.run); err != nil {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
		return fmt.Errorf("%w: executor rejected background worker: %v", ErrSubmit, err)
	}
	return nil
}

// run drains the queue on the executor worker. A null poll after the timeout
// is rechecked under the lock so a concurrent Enqueue either lands before the
// recheck or observes running == false and starts a fresh worker.
func (b *Background) run() {
	for {
		d := b.queue.PollWait(b.poll)
		if d == nil {
			b.mu.Lock()
			d = b.queue.Poll()
			if d == nil {
				b.running = false
				b.mu.Unlock()
				return
			}
			b.mu.Unlock()
		}
		b.invoke(d)
	}
}
