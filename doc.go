// Package relay is an in-process publish/subscribe event bus.
//
// Producers post events; registered consumers whose declared parameter type
// matches the payload's runtime type receive them. Matching optionally widens
// through the type hierarchy (declared interfaces and explicit Relate edges),
// so a subscriber for an interface sees every payload implementing it.
//
// # Architecture
//
//	                  ┌───────────────────────────────────────────┐
//	                  │                   Bus                      │
//	                  │  events channel     exceptional channel    │
//	                  │  (Post/Register)    (Throw/RegisterHandler)│
//	                  └───────────────────────────────────────────┘
//	                                      │
//	         ┌────────────────────────────┼────────────────────────────┐
//	         ▼                            ▼                            ▼
//	┌─────────────────┐         ┌──────────────────┐         ┌─────────────────┐
//	│    registry     │         │  posting state   │         │   dispatchers   │
//	│ - per-type COW  │         │ - per-goroutine  │         │ - posting (in-  │
//	│   consumer list │         │   FIFO queue     │         │   line), main,  │
//	│ - sticky cache  │         │ - cancellation   │         │   background,   │
//	└─────────────────┘         └──────────────────┘         │   async         │
//	                                                         └─────────────────┘
//
// The two channels are structurally identical; the exceptional channel exists
// for error signalling, with handler vocabulary in place of subscriber.
//
// # Thread modes
//
// Each consumer method declares a ThreadMode:
//
//   - ModePosting: inline on the producer's goroutine, before Post returns.
//   - ModeMain / ModeMainOrdered: serialized onto the host MainLoop; Main
//     invokes inline when the producer is already on the loop, MainOrdered
//     always defers past the current tick.
//   - ModeBackground: serialized FIFO on one shared executor worker.
//   - ModeAsync: one executor task per delivery, parallel.
//
// Consumers sharing an event type run in descending priority order, stable
// on ties. A ModePosting consumer may stop traversal for the current event
// with CancelEventDelivery.
//
// # Declaring consumers
//
// The default introspector scans a target's method set reflectively:
//
//	type AuditLog struct{ ... }
//
//	// Subscribed to every UserCreated event.
//	func (a *AuditLog) OnUserCreated(e UserCreated) error { ... }
//
//	// Exceptional channel: subscribed by bus.RegisterHandler, invoked
//	// through bus.Throw.
//	func (a *AuditLog) CatchStoreFailure(e StoreFailure) { ... }
//
//	bus := relay.New()
//	if err := bus.Register(audit); err != nil { ... }
//	bus.Post(UserCreated{ID: id})
//
// Delivery options come from an optional EventDeliveryOptions method, keyed
// by method name. Callers preferring explicit registration use Parts:
//
//	p := relay.NewParts()
//	relay.On(p, func(e UserCreated) error { ... },
//	    relay.WithMode(relay.ModeBackground), relay.WithPriority(10))
//	bus.Register(p)
//
// # Sticky events
//
// PostSticky caches the most recent event per exact type. A consumer
// declared sticky receives the matching cached event during registration,
// through its own thread mode, so late registrants observe current state.
//
// # Ordering guarantees
//
// Within one goroutine and channel, posted events drain FIFO; recursive
// posts from a ModePosting consumer run after that consumer returns but
// before the outer Post returns. There is no ordering across channels or
// across thread modes.
package relay
