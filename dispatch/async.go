package dispatch

import "fmt"

// Async submits one executor task per delivery. Deliveries for the same event
// may run concurrently on distinct workers; no ordering is guaranteed.
type Async struct {
	invoke InvokeFunc
	exec   Executor
	queue  *Queue
}

// NewAsync creates an async dispatcher on the given executor.
func NewAsync(exec Executor, invoke InvokeFunc) *Async {
	return &Async{
		invoke: invoke,
		exec:   exec,
		queue:  NewQueue(),
	}
}

// Enqueue appends the delivery and submits a task that will consume exactly
// one queue entry.
func (a *Async) Enqueue(sub, event any) error {
	a.queue.Enqueue(Obtain(sub, event))
	if err := a.exec.Execute(a.runOne); err != nil {
		return fmt.Errorf("%w: executor rejected async task: %v", ErrSubmit, err)
	}
	return nil
}

func (a *Async) runOne() {
	if d := a.queue.Poll(); d != nil {
		a.invoke(d)
	}
}
