package relay

import (
	"log/slog"
	"reflect"
	"sync"
)

// Bus is the central publish/subscribe event bus. It carries two structurally
// identical channels: plain events (Register/Post) and exceptional events
// (RegisterHandler/Throw), with independent registries, sticky caches, and
// posting state.
//
// All methods are safe for concurrent use.
type Bus struct {
	cfg         busConfig
	events      *channel
	exceptional *channel
}

var (
	defaultOnce sync.Once
	defaultBus  *Bus
)

// Default returns the process-wide bus, created on first use with default
// options. Applications that want configuration construct their own bus with
// New and thread it through.
func Default() *Bus {
	defaultOnce.Do(func() {
		defaultBus = New()
	})
	return defaultBus
}

// New creates a bus with the given options.
func New(opts ...Option) *Bus {
	cfg := defaultBusConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.introspector == nil {
		cfg.introspector = NewReflective(DefaultEventPrefix, cfg.strict)
	}
	if cfg.exceptionalIntrospector == nil {
		cfg.exceptionalIntrospector = NewReflective(DefaultExceptionalPrefix, cfg.strict)
	}

	b := &Bus{cfg: cfg}

	b.events = newChannel(channelNames{consumer: "subscriber", event: "event"}, cfg.events, &cfg)
	b.events.introspect = func(target any) ([]Method, error) {
		if si, ok := target.(SelfIntrospector); ok {
			return ownMethods(si.EventMethods())
		}
		return cfg.introspector.Methods(target)
	}
	b.events.newNoConsumerEvent = func(event any) any {
		return NoSubscriberEvent{Bus: b, Event: event}
	}
	b.events.newExceptionEvent = func(err error, event, target any) any {
		return SubscriberExceptionEvent{Bus: b, Err: err, Event: event, Target: target}
	}
	b.events.isInternalEvent = func(t reflect.Type) bool {
		return t == noSubscriberEventType || t == subscriberExceptionEventType
	}

	b.exceptional = newChannel(channelNames{consumer: "handler", event: "exceptional event"}, cfg.exceptional, &cfg)
	b.exceptional.introspect = func(target any) ([]Method, error) {
		if si, ok := target.(ExceptionalSelfIntrospector); ok {
			return ownMethods(si.ExceptionalEventMethods())
		}
		return cfg.exceptionalIntrospector.Methods(target)
	}
	b.exceptional.newNoConsumerEvent = func(event any) any {
		return NoHandlerEvent{Bus: b, Event: event}
	}
	b.exceptional.newExceptionEvent = func(err error, event, target any) any {
		return HandlerExceptionEvent{Bus: b, Err: err, Event: event, Target: target}
	}
	b.exceptional.isInternalEvent = func(t reflect.Type) bool {
		return t == noHandlerEventType || t == handlerExceptionEventType
	}

	return b
}

var (
	noSubscriberEventType        = reflect.TypeOf(NoSubscriberEvent{})
	subscriberExceptionEventType = reflect.TypeOf(SubscriberExceptionEvent{})
	noHandlerEventType           = reflect.TypeOf(NoHandlerEvent{})
	handlerExceptionEventType    = reflect.TypeOf(HandlerExceptionEvent{})
)

func ownMethods(methods []Method) ([]Method, error) {
	if len(methods) == 0 {
		return nil, ErrNoMethods
	}
	return methods, nil
}

// Register subscribes all of the target's event methods. Targets must be
// comparable values, normally pointers.
func (b *Bus) Register(target any) error {
	return b.events.register(target)
}

// Unregister removes all of the target's subscriptions. Events already
// queued for the target are dropped before invocation.
func (b *Bus) Unregister(target any) {
	b.events.unregister(target)
}

// IsRegistered reports whether the target has any subscription.
func (b *Bus) IsRegistered(target any) bool {
	return b.events.registry.isRegistered(target)
}

// Post delivers the event to all matching subscribers. Posting-mode
// subscribers run before Post returns; other modes are queued. Post blocks
// only on synchronous deliveries and task submission.
func (b *Bus) Post(event any) error {
	return b.events.post(event)
}

// PostSticky caches the event as the most recent of its type, then posts it.
func (b *Bus) PostSticky(event any) error {
	return b.events.postSticky(event)
}

// CancelEventDelivery stops delivery of the in-flight event to its remaining
// lower-priority subscribers. Only valid from a ModePosting subscriber of
// that event.
func (b *Bus) CancelEventDelivery(event any) error {
	return b.events.cancel(event)
}

// HasSubscriberForType reports whether any subscription matches the type
// through widening.
func (b *Bus) HasSubscriberForType(t reflect.Type) bool {
	return b.events.hasConsumerFor(t)
}

// HasSubscriberFor reports whether any subscription matches the event's
// runtime type through widening.
func (b *Bus) HasSubscriberFor(event any) bool {
	if event == nil {
		return false
	}
	return b.events.hasConsumerFor(reflect.TypeOf(event))
}

// StickyEvent returns the cached sticky event of exactly type t, or nil.
func (b *Bus) StickyEvent(t reflect.Type) any {
	return b.events.registry.stickyFor(t)
}

// RemoveStickyEvent removes and returns the cached sticky event of exactly
// type t, or nil.
func (b *Bus) RemoveStickyEvent(t reflect.Type) any {
	return b.events.registry.removeSticky(t)
}

// RemoveStickyEventIf removes the cached sticky of event's type when the
// cached value equals event. Reports whether a removal happened.
func (b *Bus) RemoveStickyEventIf(event any) bool {
	if event == nil {
		return false
	}
	return b.events.registry.removeStickyIf(event)
}

// RemoveAllStickyEvents clears the events channel's sticky cache.
func (b *Bus) RemoveAllStickyEvents() {
	b.events.registry.clearSticky()
}

// Relate records an explicit widening edge on the events channel: payloads
// of type sub also reach subscribers declared for super. A concrete super
// receives the payload converted to its type, so sub must be convertible to
// super (for example, struct types with identical fields); otherwise the
// delivery fails like a failing subscriber.
func (b *Bus) Relate(sub, super reflect.Type) {
	b.events.hier.Relate(sub, super)
}

// Stats returns the events channel's delivery counters.
func (b *Bus) Stats() Stats {
	return b.events.stats()
}

// RegisterHandler subscribes all of the target's exceptional-event methods.
func (b *Bus) RegisterHandler(target any) error {
	return b.exceptional.register(target)
}

// UnregisterHandler removes all of the target's handler registrations.
func (b *Bus) UnregisterHandler(target any) {
	b.exceptional.unregister(target)
}

// IsHandlerRegistered reports whether the target has any handler
// registration.
func (b *Bus) IsHandlerRegistered(target any) bool {
	return b.exceptional.registry.isRegistered(target)
}

// Throw delivers the exceptional event to all matching handlers. The
// exceptional channel mirrors the events channel exactly; only the intended
// domain (error signalling) differs.
func (b *Bus) Throw(event any) error {
	return b.exceptional.post(event)
}

// ThrowSticky caches the exceptional event as the most recent of its type,
// then throws it.
func (b *Bus) ThrowSticky(event any) error {
	return b.exceptional.postSticky(event)
}

// CancelExceptionalDelivery stops delivery of the in-flight exceptional
// event to its remaining lower-priority handlers. Only valid from a
// ModePosting handler of that event.
func (b *Bus) CancelExceptionalDelivery(event any) error {
	return b.exceptional.cancel(event)
}

// HasHandlerForType reports whether any handler registration matches the
// type through widening.
func (b *Bus) HasHandlerForType(t reflect.Type) bool {
	return b.exceptional.hasConsumerFor(t)
}

// HasHandlerFor reports whether any handler registration matches the
// event's runtime type through widening.
func (b *Bus) HasHandlerFor(event any) bool {
	if event == nil {
		return false
	}
	return b.exceptional.hasConsumerFor(reflect.TypeOf(event))
}

// StickyExceptionalEvent returns the cached sticky exceptional event of
// exactly type t, or nil.
func (b *Bus) StickyExceptionalEvent(t reflect.Type) any {
	return b.exceptional.registry.stickyFor(t)
}

// RemoveStickyExceptionalEvent removes and returns the cached sticky
// exceptional event of exactly type t, or nil.
func (b *Bus) RemoveStickyExceptionalEvent(t reflect.Type) any {
	return b.exceptional.registry.removeSticky(t)
}

// RemoveStickyExceptionalEventIf removes the cached sticky of event's type
// when the cached value equals event. Reports whether a removal happened.
func (b *Bus) RemoveStickyExceptionalEventIf(event any) bool {
	if event == nil {
		return false
	}
	return b.exceptional.registry.removeStickyIf(event)
}

// RemoveAllStickyExceptionalEvents clears the exceptional channel's sticky
// cache.
func (b *Bus) RemoveAllStickyExceptionalEvents() {
	b.exceptional.registry.clearSticky()
}

// RelateExceptional records an explicit widening edge on the exceptional
// channel.
func (b *Bus) RelateExceptional(sub, super reflect.Type) {
	b.exceptional.hier.Relate(sub, super)
}

// ExceptionalStats returns the exceptional channel's delivery counters.
func (b *Bus) ExceptionalStats() Stats {
	return b.exceptional.stats()
}
