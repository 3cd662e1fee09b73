package relay

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// registration binds one consumer method to a target instance.
type registration struct {
	id     string
	target any
	method Method

	// active flips to false exactly once, on unregister. Queued deliveries
	// recheck it immediately before invocation, which closes the race
	// between unregister and a pending dispatch.
	active atomic.Bool
}

func newRegistration(target any, m Method) *registration {
	r := &registration{
		id:     uuid.NewString(),
		target: target,
		method: m,
	}
	r.active.Store(true)
	return r
}

// registry holds one channel's consumer lists and sticky cache.
//
// mu is the channel's bus-level lock: all list mutation happens under it, and
// reads take it only to snapshot. The per-type lists are copy-on-write, so a
// snapshot may be iterated without the lock while registration and
// unregistration proceed concurrently.
type registry struct {
	mu            sync.Mutex
	byEventType   map[reflect.Type][]*registration
	typesByTarget map[any][]reflect.Type

	stickyMu sync.Mutex
	sticky   map[reflect.Type]any
}

func newRegistry() *registry {
	return &registry{
		byEventType:   make(map[reflect.Type][]*registration),
		typesByTarget: make(map[any][]reflect.Type),
		sticky:        make(map[reflect.Type]any),
	}
}

// containsLocked reports whether target already has a registration for t.
func (r *registry) containsLocked(target any, t reflect.Type) bool {
	for _, existing := range r.byEventType[t] {
		if existing.target == target {
			return true
		}
	}
	return false
}

// insertLocked adds reg at the first index whose priority is lower than
// reg's, keeping the list non-increasing and stable for ties. The list is
// replaced, never mutated, so concurrent snapshot iteration stays safe.
func (r *registry) insertLocked(reg *registration) {
	t := reg.method.EventType
	list := r.byEventType[t]
	idx := len(list)
	for i, existing := range list {
		if reg.method.Priority > existing.method.Priority {
			idx = i
			break
		}
	}
	next := make([]*registration, 0, len(list)+1)
	next = append(next, list[:idx]...)
	next = append(next, reg)
	next = append(next, list[idx:]...)
	r.byEventType[t] = next
	r.typesByTarget[reg.target] = append(r.typesByTarget[reg.target], t)
}

// removeTargetLocked deactivates and removes all of target's registrations.
// Returns false when the target was never registered.
func (r *registry) removeTargetLocked(target any) bool {
	types, ok := r.typesByTarget[target]
	if !ok {
		return false
	}
	for _, t := range types {
		list := r.byEventType[t]
		next := make([]*registration, 0, len(list))
		for _, reg := range list {
			if reg.target == target {
				reg.active.Store(false)
				continue
			}
			next = append(next, reg)
		}
		if len(next) == 0 {
			delete(r.byEventType, t)
		} else {
			r.byEventType[t] = next
		}
	}
	delete(r.typesByTarget, target)
	return true
}

// snapshot returns the current registration list for t. The returned slice
// is immutable by convention; iteration requires no lock.
func (r *registry) snapshot(t reflect.Type) []*registration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byEventType[t]
}

func (r *registry) hasRegistrations(t reflect.Type) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byEventType[t]) > 0
}

func (r *registry) isRegistered(target any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.typesByTarget[target]
	return ok
}

func (r *registry) setSticky(event any) {
	r.stickyMu.Lock()
	defer r.stickyMu.Unlock()
	r.sticky[reflect.TypeOf(event)] = event
}

func (r *registry) stickyFor(t reflect.Type) any {
	r.stickyMu.Lock()
	defer r.stickyMu.Unlock()
	return r.sticky[t]
}

// stickyPairs returns a snapshot of the sticky cache for inheritance-aware
// replay scans.
func (r *registry) stickyPairs() map[reflect.Type]any {
	r.stickyMu.Lock()
	defer r.stickyMu.Unlock()
	pairs := make(map[reflect.Type]any, len(r.sticky))
	for t, ev := range r.sticky {
		pairs[t] = ev
	}
	return pairs
}

func (r *registry) removeSticky(t reflect.Type) any {
	r.stickyMu.Lock()
	defer r.stickyMu.Unlock()
	ev := r.sticky[t]
	delete(r.sticky, t)
	return ev
}

// removeStickyIf removes the cached sticky of event's type when the stored
// value compares equal to event. The lookup is by type; the comparison is by
// value.
func (r *registry) removeStickyIf(event any) bool {
	t := reflect.TypeOf(event)
	r.stickyMu.Lock()
	defer r.stickyMu.Unlock()
	existing, ok := r.sticky[t]
	if !ok || !reflect.DeepEqual(existing, event) {
		return false
	}
	delete(r.sticky, t)
	return true
}

func (r *registry) clearSticky() {
	r.stickyMu.Lock()
	defer r.stickyMu.Unlock()
	r.sticky = make(map[reflect.Type]any)
}
