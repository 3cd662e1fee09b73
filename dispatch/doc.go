// Package dispatch provides the delivery strategies for the event bus.
//
// Four dispatchers implement the same Enqueue(consumer, event) contract:
//
//   - Posting: invokes inline on the calling goroutine before Enqueue returns.
//   - Main: serializes deliveries onto a host MainLoop. A single drain task
//     is in flight at a time; the drain yields and reposts itself after a
//     configurable time ceiling so it cannot starve the loop.
//   - Background: serializes deliveries onto one shared executor worker at a
//     time. The worker polls with a timeout and releases its slot when the
//     queue stays empty.
//   - Async: submits one executor task per delivery; deliveries run in
//     parallel.
//
// Dispatchers do not invoke consumers themselves. They hand each pending
// Delivery to an InvokeFunc supplied by the bus, which owns the active check,
// panic recovery, and error policy. Pending deliveries flow through a
// singly-linked FIFO Queue and are recycled through a bounded freelist.
package dispatch
