package relay

import (
	"sync"

	"github.com/petermattis/goid"
)

// postingState is the per-goroutine record of an in-flight drain: the
// pending queue, the posting flag, and the fields cancellation reads.
type postingState struct {
	queue     []any
	isPosting bool
	isMain    bool
	canceled  bool

	// event and current identify the delivery in flight, for cancel checks.
	event   any
	current *registration
}

// postingStates tracks one channel's posting state per goroutine, keyed by
// goroutine id. Entries exist only while a goroutine has work queued or a
// drain running; completed drains remove their entry.
type postingStates struct {
	mu          sync.Mutex
	byGoroutine map[int64]*postingState
}

func newPostingStates() *postingStates {
	return &postingStates{byGoroutine: make(map[int64]*postingState)}
}

// current returns the calling goroutine's posting state, creating it on
// first use.
func (p *postingStates) current() *postingState {
	gid := goid.Get()
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.byGoroutine[gid]
	if st == nil {
		st = &postingState{}
		p.byGoroutine[gid] = st
	}
	return st
}

// peek returns the calling goroutine's posting state without creating one.
func (p *postingStates) peek() *postingState {
	gid := goid.Get()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.byGoroutine[gid]
}

// cleanup drops the calling goroutine's entry once it is idle, so the map
// does not grow with every goroutine that ever posted.
func (p *postingStates) cleanup() {
	gid := goid.Get()
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.byGoroutine[gid]
	if st != nil && !st.isPosting && len(st.queue) == 0 {
		delete(p.byGoroutine, gid)
	}
}
