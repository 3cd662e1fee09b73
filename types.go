package relay

import "reflect"

// ThreadMode controls which dispatcher delivers events to a consumer method.
type ThreadMode int

const (
	// ModePosting invokes the consumer synchronously on the posting
	// goroutine, before Post returns. This is the default and the only mode
	// from which delivery may be canceled. On the exceptional channel this
	// mode runs on the throwing goroutine.
	ModePosting ThreadMode = iota

	// ModeMain invokes on the host main loop. When the producer is already
	// on the main loop the consumer runs inline, nested in the current tick.
	ModeMain

	// ModeMainOrdered always enqueues onto the main loop, so the consumer
	// runs strictly after the current tick returns.
	ModeMainOrdered

	// ModeBackground invokes on one shared background worker, serialized
	// FIFO. Producers already off the main loop invoke inline.
	ModeBackground

	// ModeAsync invokes on a fresh executor task per event; deliveries run
	// in parallel.
	ModeAsync
)

// String returns a human-readable mode name.
func (m ThreadMode) String() string {
	switch m {
	case ModePosting:
		return "posting"
	case ModeMain:
		return "main"
	case ModeMainOrdered:
		return "main-ordered"
	case ModeBackground:
		return "background"
	case ModeAsync:
		return "async"
	default:
		return "unknown"
	}
}

// DeliveryOptions configure how a single consumer method receives events.
type DeliveryOptions struct {
	// Mode selects the delivery strategy. Zero value is ModePosting.
	Mode ThreadMode

	// Priority orders consumers sharing an event type; higher runs earlier.
	// Ties keep registration order.
	Priority int

	// Sticky consumers receive the cached most-recent event of a matching
	// type immediately on registration.
	Sticky bool
}

// Method describes one event-handling method on a target.
type Method struct {
	// Name identifies the method in logs and errors.
	Name string

	// EventType is the declared payload type. Interface types match any
	// payload implementing them when inheritance is enabled.
	EventType reflect.Type

	// Mode, Priority and Sticky mirror DeliveryOptions.
	Mode     ThreadMode
	Priority int
	Sticky   bool

	// Invoke calls the method on target with the event payload.
	Invoke func(target, event any) error
}

// Introspector discovers the event-handling methods declared by a target.
type Introspector interface {
	// Methods returns the target's consumer descriptors. It fails when the
	// target declares none.
	Methods(target any) ([]Method, error)
}

// SelfIntrospector is implemented by targets that carry their own event
// descriptors, such as Parts or code-generated registrations. It takes
// precedence over the configured Introspector.
type SelfIntrospector interface {
	EventMethods() []Method
}

// ExceptionalSelfIntrospector is the exceptional-channel counterpart of
// SelfIntrospector.
type ExceptionalSelfIntrospector interface {
	ExceptionalEventMethods() []Method
}

// DeliveryOptionsProvider lets a reflectively-scanned target configure its
// methods. The map is keyed by method name; methods absent from the map use
// the zero DeliveryOptions.
type DeliveryOptionsProvider interface {
	EventDeliveryOptions() map[string]DeliveryOptions
}

// EventType returns the reflect.Type of T. It is the way to name interface
// event types, where reflect.TypeOf on a value would yield the dynamic type:
//
//	bus.HasSubscriberForType(relay.EventType[fmt.Stringer]())
func EventType[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Stats is a snapshot of one channel's delivery counters.
type Stats struct {
	// Posted is the number of events handed to Post or Throw, including the
	// no-consumer and consumer-exception events the bus posts itself.
	Posted uint64

	// Delivered is the number of completed consumer invocations.
	Delivered uint64

	// DroppedInactive is the number of queued deliveries skipped because the
	// consumer unregistered before invocation.
	DroppedInactive uint64

	// Failed is the number of invocations that returned an error or panicked.
	Failed uint64

	// NoConsumer is the number of posted events that matched no registration.
	NoConsumer uint64
}
