package engine

import "errors"

// Sentinel errors for the engine worker.
var (
	// ErrClosed is returned when a request is submitted to, or still queued
	// on, a worker that has been shut down.
	ErrClosed = errors.New("engine: worker closed")

	// ErrPanic wraps a panic raised while a request ran on the worker.
	ErrPanic = errors.New("engine: request panicked")
)
