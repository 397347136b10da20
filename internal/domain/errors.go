package domain

import "errors"

// Domain errors represent error conditions in the platewatch domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running pipeline.
	ErrAlreadyRunning = errors.New("platewatch: already running")

	// ErrNotRunning is returned when Stop() is called on a pipeline that is not running.
	ErrNotRunning = errors.New("platewatch: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("platewatch: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("platewatch: invalid configuration")

	// ErrEndOfStream is returned by a frame source when no more frames will arrive.
	ErrEndOfStream = errors.New("platewatch: end of stream")

	// ErrLowConfidence is returned by a recognizer when the candidate does not
	// clear the configured confidence threshold.
	ErrLowConfidence = errors.New("platewatch: confidence below threshold")

	// ErrMalformedRegion is returned when a detected region has no overlap with its frame.
	ErrMalformedRegion = errors.New("platewatch: malformed region")

	// ErrFlushExhausted is reported when a window could not be persisted after
	// every retry and its plates were discarded.
	ErrFlushExhausted = errors.New("platewatch: window flush retries exhausted")
)
