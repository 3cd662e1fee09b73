package relay

import (
	"fmt"
	"reflect"
	"strings"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Method name prefixes recognized by the default reflective introspectors.
// Subscriber methods look like OnUserCreated(e UserCreated); handler methods
// on the exceptional channel look like CatchDiskFull(e DiskFull). The
// prefixes must not overlap so one method never registers on both channels.
const (
	DefaultEventPrefix       = "On"
	DefaultExceptionalPrefix = "Catch"
)

// Reflective discovers consumer methods by scanning a target's method set
// for exported methods whose name carries the configured prefix and whose
// signature is func(Event) or func(Event) error.
//
// Per-method delivery options come from the target's optional
// DeliveryOptionsProvider implementation, keyed by method name.
type Reflective struct {
	prefix string
	strict bool
}

// NewReflective creates a reflective introspector for the given method name
// prefix. With strict set, a prefixed method with a wrong signature fails
// discovery instead of being skipped.
func NewReflective(prefix string, strict bool) *Reflective {
	return &Reflective{prefix: prefix, strict: strict}
}

// Methods implements Introspector.
func (ri *Reflective) Methods(target any) ([]Method, error) {
	v := reflect.ValueOf(target)
	if !v.IsValid() {
		return nil, fmt.Errorf("%w: nil target", ErrNoMethods)
	}
	t := v.Type()

	var opts map[string]DeliveryOptions
	if p, ok := target.(DeliveryOptionsProvider); ok {
		opts = p.EventDeliveryOptions()
	}

	var methods []Method
	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if !strings.HasPrefix(m.Name, ri.prefix) {
			continue
		}
		mt := m.Type
		// In(0) is the receiver.
		ok := mt.NumIn() == 2 &&
			(mt.NumOut() == 0 || (mt.NumOut() == 1 && mt.Out(0) == errorType))
		if !ok {
			if ri.strict {
				return nil, fmt.Errorf("%w: %s.%s must take one event parameter and return nothing or error",
					ErrInvalidMethod, t, m.Name)
			}
			continue
		}

		fn := m.Func
		hasErr := mt.NumOut() == 1
		do := opts[m.Name]
		methods = append(methods, Method{
			Name:      t.String() + "." + m.Name,
			EventType: mt.In(1),
			Mode:      do.Mode,
			Priority:  do.Priority,
			Sticky:    do.Sticky,
			Invoke: func(target, event any) error {
				out := fn.Call([]reflect.Value{reflect.ValueOf(target), reflect.ValueOf(event)})
				if hasErr && !out[0].IsNil() {
					return out[0].Interface().(error)
				}
				return nil
			},
		})
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("%w: %s has no %s* methods", ErrNoMethods, t, ri.prefix)
	}
	return methods, nil
}

// MethodOption configures one consumer registered through Parts.
type MethodOption func(*DeliveryOptions)

// WithMode sets the thread mode.
func WithMode(m ThreadMode) MethodOption {
	return func(o *DeliveryOptions) {
		o.Mode = m
	}
}

// WithPriority sets the priority; higher runs earlier.
func WithPriority(p int) MethodOption {
	return func(o *DeliveryOptions) {
		o.Priority = p
	}
}

// Sticky requests replay of the cached sticky event on registration.
func Sticky() MethodOption {
	return func(o *DeliveryOptions) {
		o.Sticky = true
	}
}

// Parts assembles consumer methods explicitly, for callers that prefer typed
// functions over reflective scanning:
//
//	p := relay.NewParts()
//	relay.On(p, func(e UserCreated) error { ... }, relay.WithPriority(5))
//	relay.Catch(p, func(e DiskFull) error { ... }, relay.WithMode(relay.ModeAsync))
//	bus.Register(p)
//	bus.RegisterHandler(p)
//
// A Parts value is the registration target; keep it to unregister later.
type Parts struct {
	events      []Method
	exceptional []Method
}

// NewParts creates an empty Parts target.
func NewParts() *Parts {
	return &Parts{}
}

// EventMethods implements SelfIntrospector.
func (p *Parts) EventMethods() []Method {
	return p.events
}

// ExceptionalEventMethods implements ExceptionalSelfIntrospector.
func (p *Parts) ExceptionalEventMethods() []Method {
	return p.exceptional
}

// On adds a subscriber for events of type T.
func On[T any](p *Parts, fn func(T) error, opts ...MethodOption) *Parts {
	p.events = append(p.events, funcMethod(fn, opts))
	return p
}

// Catch adds a handler for exceptional events of type T.
func Catch[T any](p *Parts, fn func(T) error, opts ...MethodOption) *Parts {
	p.exceptional = append(p.exceptional, funcMethod(fn, opts))
	return p
}

func funcMethod[T any](fn func(T) error, opts []MethodOption) Method {
	var do DeliveryOptions
	for _, opt := range opts {
		opt(&do)
	}
	et := EventType[T]()
	return Method{
		Name:      "func(" + et.String() + ")",
		EventType: et,
		Mode:      do.Mode,
		Priority:  do.Priority,
		Sticky:    do.Sticky,
		Invoke: func(_, event any) error {
			return fn(event.(T))
		},
	}
}
