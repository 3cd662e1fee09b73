package relay

import (
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"sync/atomic"

	"github.com/dshills/relay/dispatch"
	"github.com/dshills/relay/hierarchy"
)

// channelNames carries the vocabulary differences between the two channels,
// for log and error text.
type channelNames struct {
	consumer string // "subscriber" or "handler"
	event    string // "event" or "exceptional event"
}

// channel implements one complete delivery domain. The bus owns two: the
// events channel and the structurally identical exceptional-events channel.
type channel struct {
	names  channelNames
	cfg    channelConfig
	logger *slog.Logger

	registry *registry
	hier     *hierarchy.Cache
	posting  *postingStates

	introspect func(target any) ([]Method, error)

	inline     *dispatch.Posting
	main       *dispatch.Main // nil without a main loop
	background *dispatch.Background
	async      *dispatch.Async
	mainLoop   dispatch.MainLoop

	// newNoConsumerEvent and newExceptionEvent build the channel's internal
	// rebroadcast events; isInternalEvent guards against recursion on them.
	newNoConsumerEvent func(event any) any
	newExceptionEvent  func(err error, event, target any) any
	isInternalEvent    func(t reflect.Type) bool

	posted          atomic.Uint64
	delivered       atomic.Uint64
	droppedInactive atomic.Uint64
	failed          atomic.Uint64
	noConsumer      atomic.Uint64
}

func newChannel(names channelNames, cfg channelConfig, shared *busConfig) *channel {
	c := &channel{
		names:    names,
		cfg:      cfg,
		logger:   shared.logger,
		registry: newRegistry(),
		hier:     hierarchy.New(),
		posting:  newPostingStates(),
		mainLoop: shared.mainLoop,
	}
	c.inline = dispatch.NewPosting(c.invokePending)
	if shared.mainLoop != nil {
		c.main = dispatch.NewMain(shared.mainLoop, c.invokePending, shared.drainLimit)
	}
	c.background = dispatch.NewBackground(shared.executor, c.invokePending)
	c.async = dispatch.NewAsync(shared.executor, c.invokePending)
	return c
}

// isMain reports whether the caller runs on the main loop. Without main-loop
// support every goroutine counts as main: main-thread modes degrade to
// inline invocation and ModeBackground always hops to a worker.
func (c *channel) isMain() bool {
	if c.mainLoop == nil {
		return true
	}
	return c.mainLoop.IsMain()
}

// register discovers the target's consumer methods and subscribes them all,
// or none on failure. Sticky replays are dispatched after the registry lock
// is released so a replayed consumer may call back into the bus.
func (c *channel) register(target any) error {
	methods, err := c.introspect(target)
	if err != nil {
		return err
	}
	for _, m := range methods {
		if m.EventType == nil || m.Invoke == nil {
			return fmt.Errorf("%w: %q has no event type or invoker", ErrInvalidMethod, m.Name)
		}
	}

	type replay struct {
		reg   *registration
		event any
	}
	var replays []replay

	c.registry.mu.Lock()
	for _, m := range methods {
		if c.registry.containsLocked(target, m.EventType) {
			c.registry.mu.Unlock()
			return fmt.Errorf("%w: %s already registered for %s %s",
				ErrAlreadyRegistered, describeTarget(target), c.names.event, m.EventType)
		}
	}
	for _, m := range methods {
		reg := newRegistration(target, m)
		c.registry.insertLocked(reg)
		c.hier.AddDeclared(m.EventType)
		if !m.Sticky {
			continue
		}
		if c.cfg.inheritance {
			for t, ev := range c.registry.stickyPairs() {
				if c.widensTo(t, m.EventType) {
					replays = append(replays, replay{reg, ev})
				}
			}
		} else if ev := c.registry.stickyFor(m.EventType); ev != nil {
			replays = append(replays, replay{reg, ev})
		}
	}
	c.registry.mu.Unlock()

	// A replayed consumer cannot cancel delivery: the sticky event is not
	// tracked in any posting state.
	isMain := c.isMain()
	for _, rp := range replays {
		if err := c.dispatchTo(rp.reg, rp.event, isMain); err != nil {
			return err
		}
	}
	return nil
}

// unregister removes all of the target's registrations. Unknown targets log
// a warning.
func (c *channel) unregister(target any) {
	c.registry.mu.Lock()
	found := c.registry.removeTargetLocked(target)
	c.registry.mu.Unlock()
	if !found {
		c.logger.Warn(c.names.consumer+" to unregister was not registered before",
			"target", describeTarget(target))
	}
}

// post runs the per-goroutine state machine: enqueue, and drain unless a
// drain is already running higher up this goroutine's call stack.
func (c *channel) post(event any) error {
	if event == nil {
		return ErrNilEvent
	}
	c.posted.Add(1)
	st := c.posting.current()
	st.queue = append(st.queue, event)
	if st.isPosting {
		return nil
	}

	st.isMain = c.isMain()
	st.isPosting = true
	if st.canceled {
		panic("relay: internal error: cancel state was not reset")
	}
	defer func() {
		st.isPosting = false
		st.isMain = false
		c.posting.cleanup()
	}()

	for len(st.queue) > 0 {
		event := st.queue[0]
		st.queue = st.queue[1:]
		if err := c.postSingle(event, st); err != nil {
			return err
		}
	}
	return nil
}

func (c *channel) postSingle(event any, st *postingState) error {
	et := reflect.TypeOf(event)
	found := false
	if c.cfg.inheritance {
		for _, t := range c.hier.Lookup(et) {
			ok, err := c.postForType(event, st, t)
			if err != nil {
				return err
			}
			found = found || ok
		}
	} else {
		ok, err := c.postForType(event, st, et)
		if err != nil {
			return err
		}
		found = ok
	}
	if found {
		return nil
	}

	c.noConsumer.Add(1)
	if c.cfg.logNoConsumer {
		c.logger.Debug("no "+c.names.consumer+" registered",
			"event_type", et.String())
	}
	if c.cfg.sendNoConsumerEvent && !c.isInternalEvent(et) {
		return c.post(c.newNoConsumerEvent(event))
	}
	return nil
}

// postForType delivers event to the snapshot of consumers declared for t.
// Returns whether any consumer list existed; a cancellation stops traversal
// of the remaining lower-priority consumers for this type.
func (c *channel) postForType(event any, st *postingState, t reflect.Type) (bool, error) {
	regs := c.registry.snapshot(t)
	if len(regs) == 0 {
		return false, nil
	}
	for _, reg := range regs {
		st.event = event
		st.current = reg
		err := c.dispatchTo(reg, event, st.isMain)
		canceled := st.canceled
		st.event = nil
		st.current = nil
		st.canceled = false
		if err != nil {
			return true, err
		}
		if canceled {
			break
		}
	}
	return true, nil
}

// dispatchTo routes one delivery through the consumer's thread mode.
func (c *channel) dispatchTo(reg *registration, event any, isMain bool) error {
	switch reg.method.Mode {
	case ModePosting:
		return c.inline.Enqueue(reg, event)
	case ModeMain:
		if isMain {
			return c.inline.Enqueue(reg, event)
		}
		return c.main.Enqueue(reg, event)
	case ModeMainOrdered:
		if c.main == nil {
			// Degraded mode: without a main loop ordering cannot be deferred.
			return c.inline.Enqueue(reg, event)
		}
		return c.main.Enqueue(reg, event)
	case ModeBackground:
		if isMain {
			return c.background.Enqueue(reg, event)
		}
		return c.inline.Enqueue(reg, event)
	case ModeAsync:
		return c.async.Enqueue(reg, event)
	default:
		return fmt.Errorf("%w: unknown thread mode %d", ErrInvalidMethod, reg.method.Mode)
	}
}

// invokePending resolves a queued delivery and invokes it. This is the
// InvokeFunc handed to every dispatcher.
func (c *channel) invokePending(d *dispatch.Delivery) error {
	reg := d.Sub.(*registration)
	event := d.Event
	dispatch.Release(d)
	return c.invoke(reg, event)
}

func (c *channel) invoke(reg *registration, event any) error {
	if !reg.active.Load() {
		c.droppedInactive.Add(1)
		return nil
	}
	err := safeInvoke(reg, event)
	if err == nil {
		c.delivered.Add(1)
		return nil
	}
	c.failed.Add(1)
	return c.handleConsumerError(reg, event, err)
}

// safeInvoke runs the consumer method, converting panics into errors.
func safeInvoke(reg *registration, event any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &InvocationError{
				RegistrationID: reg.id,
				Method:         reg.method.Name,
				Event:          event,
				Err:            fmt.Errorf("panic: %v", r),
				Stack:          debug.Stack(),
			}
		}
	}()
	arg := event
	// A payload widened through a Relate edge arrives as the subtype; it is
	// converted to the consumer's declared concrete type when Go allows it.
	if et := reg.method.EventType; et.Kind() != reflect.Interface {
		if v := reflect.ValueOf(event); v.Type() != et && v.Type().ConvertibleTo(et) {
			arg = v.Convert(et).Interface()
		}
	}
	return reg.method.Invoke(reg.target, arg)
}

// handleConsumerError applies the channel's failure policy. For the
// channel's own exception event type it only logs, so a failing exception
// consumer can never cause an unbounded rebroadcast loop.
func (c *channel) handleConsumerError(reg *registration, event any, err error) error {
	ie, ok := err.(*InvocationError)
	if !ok {
		ie = &InvocationError{
			RegistrationID: reg.id,
			Method:         reg.method.Name,
			Event:          event,
			Err:            err,
		}
	}

	et := reflect.TypeOf(event)
	if c.isInternalEvent(et) {
		if c.cfg.logExceptions {
			c.logger.Error(c.names.consumer+" failed while handling an internal "+c.names.event,
				"event_type", et.String(),
				"method", reg.method.Name,
				"registration", reg.id,
				"error", ie.Err)
		}
		return nil
	}
	if c.cfg.throwExceptions {
		return ie
	}
	if c.cfg.logExceptions {
		attrs := []any{
			"event_type", et.String(),
			"method", reg.method.Name,
			"registration", reg.id,
			"error", ie.Err,
		}
		if ie.Stack != nil {
			attrs = append(attrs, "stack", string(ie.Stack))
		}
		c.logger.Error(c.names.consumer+" failed", attrs...)
	}
	if c.cfg.sendExceptionEvent {
		// Rebroadcast failures cannot propagate here; throwExceptions is
		// false on this path and internal events are never rebroadcast.
		_ = c.post(c.newExceptionEvent(ie, event, reg.target))
	}
	return nil
}

// cancel aborts further delivery of the in-flight event. Valid only from a
// ModePosting consumer of that exact event on the posting goroutine.
func (c *channel) cancel(event any) error {
	st := c.posting.peek()
	switch {
	case st == nil || !st.isPosting:
		return fmt.Errorf("%w: only callable from a %s method on the posting goroutine",
			ErrInvalidCancel, c.names.consumer)
	case event == nil:
		return fmt.Errorf("%w: %s cannot be nil", ErrInvalidCancel, c.names.event)
	case !sameEvent(st.event, event):
		return fmt.Errorf("%w: only the %s in flight may be canceled", ErrInvalidCancel, c.names.event)
	case st.current == nil || st.current.method.Mode != ModePosting:
		return fmt.Errorf("%w: only posting-mode %ss may cancel", ErrInvalidCancel, c.names.consumer)
	}
	st.canceled = true
	return nil
}

func (c *channel) postSticky(event any) error {
	if event == nil {
		return ErrNilEvent
	}
	// Store before posting, so a consumer may remove the sticky immediately.
	c.registry.setSticky(event)
	return c.post(event)
}

// hasConsumerFor reports whether any registration matches t through the
// widened type list.
func (c *channel) hasConsumerFor(t reflect.Type) bool {
	if t == nil {
		return false
	}
	for _, candidate := range c.hier.Lookup(t) {
		if c.registry.hasRegistrations(candidate) {
			return true
		}
	}
	return false
}

// widensTo reports whether payload type t reaches consumers declared for
// declared, using the same widening as posting.
func (c *channel) widensTo(t, declared reflect.Type) bool {
	for _, candidate := range c.hier.Lookup(t) {
		if candidate == declared {
			return true
		}
	}
	return false
}

func (c *channel) stats() Stats {
	return Stats{
		Posted:          c.posted.Load(),
		Delivered:       c.delivered.Load(),
		DroppedInactive: c.droppedInactive.Load(),
		Failed:          c.failed.Load(),
		NoConsumer:      c.noConsumer.Load(),
	}
}

// sameEvent reports whether a and b are the same posted event. Events of
// non-comparable types cannot be identified and never match.
func sameEvent(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || ta == nil || !ta.Comparable() {
		return false
	}
	return a == b
}

func describeTarget(target any) string {
	if target == nil {
		return "<nil>"
	}
	return reflect.TypeOf(target).String()
}
