package lifecycle

import "errors"

var (
	// ErrStartTimeout is returned when an instance does not reach running before the deadline.
	ErrStartTimeout = errors.New("timed out waiting for instance to start")
	// ErrStartRequest is returned when the StartInstances call itself fails.
	ErrStartRequest = errors.New("start request failed")
	// ErrStopTimeout is returned when an instance does not reach stopped before the deadline.
	ErrStopTimeout = errors.New("timed out waiting for instance to stop")
	// ErrStopRequest is returned when the StopInstances call itself fails.
	ErrStopRequest = errors.New("stop request failed")
	// ErrInstanceUnavailable is returned for terminated instances. Not retryable.
	ErrInstanceUnavailable = errors.New("instance is terminated")
	// ErrCancelled is returned when the context is cancelled while waiting.
	ErrCancelled = errors.New("cancelled")
)
