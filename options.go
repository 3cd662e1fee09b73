package relay

import (
	"log/slog"
	"time"

	"github.com/dshills/relay/dispatch"
)

// channelConfig holds the per-channel policy flags. The events and
// exceptional channels carry independent copies.
type channelConfig struct {
	// logExceptions logs consumer failures.
	logExceptions bool

	// logNoConsumer logs events that matched no registration.
	logNoConsumer bool

	// sendExceptionEvent rebroadcasts consumer failures as
	// SubscriberExceptionEvent / HandlerExceptionEvent.
	sendExceptionEvent bool

	// sendNoConsumerEvent rebroadcasts unmatched events as
	// NoSubscriberEvent / NoHandlerEvent.
	sendNoConsumerEvent bool

	// throwExceptions propagates consumer failures to the Post/Throw caller.
	throwExceptions bool

	// inheritance widens event matching through the type hierarchy.
	inheritance bool
}

// busConfig contains configuration for a Bus.
type busConfig struct {
	events      channelConfig
	exceptional channelConfig

	logger                  *slog.Logger
	executor                dispatch.Executor
	mainLoop                dispatch.MainLoop
	drainLimit              time.Duration
	strict                  bool
	introspector            Introspector
	exceptionalIntrospector Introspector
}

// defaultBusConfig returns the default configuration.
func defaultBusConfig() busConfig {
	defaults := channelConfig{
		logExceptions:       true,
		logNoConsumer:       true,
		sendExceptionEvent:  true,
		sendNoConsumerEvent: true,
		throwExceptions:     false,
		inheritance:         true,
	}
	return busConfig{
		events:      defaults,
		exceptional: defaults,
		executor:    dispatch.DefaultExecutor,
		drainLimit:  dispatch.DefaultDrainLimit,
	}
}

// Option configures a Bus.
type Option func(*busConfig)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *busConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithExecutor sets the executor backing the background and async
// dispatchers of both channels.
func WithExecutor(e dispatch.Executor) Option {
	return func(c *busConfig) {
		if e != nil {
			c.executor = e
		}
	}
}

// WithMainLoop sets the host main loop. Without one, main-thread modes
// degrade to inline invocation and ModeBackground always hops to a worker.
func WithMainLoop(l dispatch.MainLoop) Option {
	return func(c *busConfig) {
		c.mainLoop = l
	}
}

// WithMainDrainLimit sets the wall-clock ceiling for a single main-loop
// drain task before it yields.
func WithMainDrainLimit(d time.Duration) Option {
	return func(c *busConfig) {
		if d > 0 {
			c.drainLimit = d
		}
	}
}

// WithIntrospector replaces the default reflective introspector on the
// events channel.
func WithIntrospector(i Introspector) Option {
	return func(c *busConfig) {
		if i != nil {
			c.introspector = i
		}
	}
}

// WithExceptionalIntrospector replaces the default reflective introspector
// on the exceptional channel.
func WithExceptionalIntrospector(i Introspector) Option {
	return func(c *busConfig) {
		if i != nil {
			c.exceptionalIntrospector = i
		}
	}
}

// WithStrictMethodVerification makes the default reflective introspectors
// fail registration on a prefixed method with a wrong signature instead of
// skipping it.
func WithStrictMethodVerification(strict bool) Option {
	return func(c *busConfig) {
		c.strict = strict
	}
}

// WithEventInheritance toggles widening on the events channel.
func WithEventInheritance(enabled bool) Option {
	return func(c *busConfig) {
		c.events.inheritance = enabled
	}
}

// WithExceptionalEventInheritance toggles widening on the exceptional
// channel.
func WithExceptionalEventInheritance(enabled bool) Option {
	return func(c *busConfig) {
		c.exceptional.inheritance = enabled
	}
}

// WithLogSubscriberExceptions toggles logging of subscriber failures.
func WithLogSubscriberExceptions(enabled bool) Option {
	return func(c *busConfig) {
		c.events.logExceptions = enabled
	}
}

// WithLogNoSubscriberMessages toggles logging of events with no subscriber.
func WithLogNoSubscriberMessages(enabled bool) Option {
	return func(c *busConfig) {
		c.events.logNoConsumer = enabled
	}
}

// WithSendSubscriberExceptionEvent toggles rebroadcast of subscriber
// failures as SubscriberExceptionEvent.
func WithSendSubscriberExceptionEvent(enabled bool) Option {
	return func(c *busConfig) {
		c.events.sendExceptionEvent = enabled
	}
}

// WithSendNoSubscriberEvent toggles rebroadcast of unmatched events as
// NoSubscriberEvent.
func WithSendNoSubscriberEvent(enabled bool) Option {
	return func(c *busConfig) {
		c.events.sendNoConsumerEvent = enabled
	}
}

// WithThrowSubscriberExceptions makes Post return subscriber failures to the
// caller instead of applying the log/rebroadcast policy.
func WithThrowSubscriberExceptions(enabled bool) Option {
	return func(c *busConfig) {
		c.events.throwExceptions = enabled
	}
}

// WithLogHandlerExceptions toggles logging of handler failures.
func WithLogHandlerExceptions(enabled bool) Option {
	return func(c *busConfig) {
		c.exceptional.logExceptions = enabled
	}
}

// WithLogNoHandlerMessages toggles logging of exceptional events with no
// handler.
func WithLogNoHandlerMessages(enabled bool) Option {
	return func(c *busConfig) {
		c.exceptional.logNoConsumer = enabled
	}
}

// WithSendHandlerExceptionEvent toggles rebroadcast of handler failures as
// HandlerExceptionEvent.
func WithSendHandlerExceptionEvent(enabled bool) Option {
	return func(c *busConfig) {
		c.exceptional.sendExceptionEvent = enabled
	}
}

// WithSendNoHandlerEvent toggles rebroadcast of unmatched exceptional events
// as NoHandlerEvent.
func WithSendNoHandlerEvent(enabled bool) Option {
	return func(c *busConfig) {
		c.exceptional.sendNoConsumerEvent = enabled
	}
}

// WithThrowHandlerExceptions makes Throw return handler failures to the
// caller. Independent of WithThrowSubscriberExceptions.
func WithThrowHandlerExceptions(enabled bool) Option {
	return func(c *busConfig) {
		c.exceptional.throwExceptions = enabled
	}
}
