package relay

import (
	"errors"
	"fmt"
)

// Sentinel errors for the bus.
var (
	// ErrNilEvent is returned when a nil event is posted or thrown.
	ErrNilEvent = errors.New("event cannot be nil")

	// ErrNoMethods is returned by registration when the target declares no
	// event handling methods for the channel.
	ErrNoMethods = errors.New("target declares no event handling methods")

	// ErrAlreadyRegistered is returned when a target registers twice for the
	// same event type on the same channel.
	ErrAlreadyRegistered = errors.New("target already registered for event type")

	// ErrInvalidMethod is returned for a descriptor with a missing event type
	// or invoker, or, under strict verification, for a scanned method with a
	// wrong signature.
	ErrInvalidMethod = errors.New("invalid event handling method")

	// ErrInvalidCancel is returned when delivery cancellation is requested
	// outside a posting-mode consumer, or for an event other than the one in
	// flight.
	ErrInvalidCancel = errors.New("delivery cancellation not allowed here")

	// ErrInvocation matches InvocationError via errors.Is.
	ErrInvocation = errors.New("consumer invocation failed")
)

// InvocationError wraps a failure inside a consumer method, either a returned
// error or a recovered panic.
type InvocationError struct {
	// RegistrationID identifies the failing registration.
	RegistrationID string

	// Method is the consumer method name.
	Method string

	// Event is the payload being delivered.
	Event any

	// Err is the returned error, or a panic description.
	Err error

	// Stack is the stack trace when the method panicked, nil otherwise.
	Stack []byte
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoking %s (registration %s): %v", e.Method, e.RegistrationID, e.Err)
}

// Unwrap returns the underlying error.
func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is to match InvocationError with ErrInvocation.
func (e *InvocationError) Is(target error) bool {
	return target == ErrInvocation
}
