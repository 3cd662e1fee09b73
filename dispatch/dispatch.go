package dispatch

import "sync"

// Delivery is one pending (consumer, event) pair. Sub is opaque to this
// package; the bus resolves it back to a registration inside its InvokeFunc.
type Delivery struct {
	Sub   any
	Event any
	next  *Delivery
}

// InvokeFunc invokes a pending delivery. Implementations must release the
// Delivery, must not panic, and report failures through their own policy;
// the returned error is only surfaced by the inline Posting dispatcher.
type InvokeFunc func(d *Delivery) error

// Dispatcher is the common contract of the four delivery strategies.
type Dispatcher interface {
	// Enqueue accepts a (consumer, event) pair for delivery. Depending on
	// the strategy it may invoke inline or queue for later execution.
	Enqueue(sub, event any) error
}

// Executor runs delivery tasks for the Background and Async dispatchers.
// Implementations must either run the task or return an error; they must not
// drop tasks silently.
type Executor interface {
	Execute(task func()) error
}

// goExecutor runs each task on its own goroutine. The Go runtime already
// multiplexes goroutines onto a cached thread pool, so this is the direct
// equivalent of an unbounded task executor.
type goExecutor struct{}

func (goExecutor) Execute(task func()) error {
	go task()
	return nil
}

// DefaultExecutor is the executor used when the bus is not configured with
// a custom one.
var DefaultExecutor Executor = goExecutor{}

// MainLoop abstracts the host platform's main thread. IsMain reports whether
// the calling goroutine is the loop; Post schedules a task onto it.
type MainLoop interface {
	IsMain() bool
	Post(task func()) error
}

// maxPooled bounds the delivery freelist so bursts cannot pin memory forever.
const maxPooled = 10000

var (
	poolMu sync.Mutex
	pool   *Delivery
	pooled int
)

// Obtain returns a Delivery for the given pair, recycling a pooled node
// when one is available.
func Obtain(sub, event any) *Delivery {
	poolMu.Lock()
	d := pool
	if d != nil {
		pool = d.next
		pooled--
	}
	poolMu.Unlock()
	if d == nil {
		return &Delivery{Sub: sub, Event: event}
	}
	d.Sub = sub
	d.Event = event
	d.next = nil
	return d
}

// Release clears a Delivery and returns it to the freelist.
func Release(d *Delivery) {
	d.Sub = nil
	d.Event = nil
	poolMu.Lock()
	if pooled < maxPooled {
		d.next = pool
		pool = d
		pooled++
	}
	poolMu.Unlock()
}

// Posting invokes deliveries inline on the calling goroutine.
type Posting struct {
	invoke InvokeFunc
}

// NewPosting creates the inline dispatcher.
func NewPosting(invoke InvokeFunc) *Posting {
	return &Posting{invoke: invoke}
}

// Enqueue invokes the consumer before returning.
func (p *Posting) Enqueue(sub, event any) error {
	return p.invoke(Obtain(sub, event))
}
