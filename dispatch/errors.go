package dispatch

import "errors"

// Sentinel errors for the dispatch package.
var (
	// ErrSubmit is returned when a drain task cannot be handed to the main
	// loop or the executor; the queued delivery stays pending until the next
	// enqueue retries.
	ErrSubmit = errors.New("dispatch task submission failed")
)
