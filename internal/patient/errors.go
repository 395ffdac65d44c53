package patient

import "errors"

// Sentinel errors for registry operations. Failures are wrapped so that
// errors.Is matches both the operation category and the underlying cause.
var (
	// ErrInitFailure means the engine could not be started or the schema
	// could not be provisioned. Nothing is cached, so the next call retries.
	ErrInitFailure = errors.New("initialisation failure")

	// ErrWriteFailure means a registration was rejected or failed.
	ErrWriteFailure = errors.New("write failure")

	// ErrMissingField is wrapped in ErrWriteFailure when name or age is empty.
	ErrMissingField = errors.New("missing required field")

	// ErrReadFailure means listing patients failed.
	ErrReadFailure = errors.New("read failure")

	// ErrQueryFailure is the category of raw console failures. It only ever
	// surfaces as the message of a failed QueryResult.
	ErrQueryFailure = errors.New("query failure")

	// ErrManagerClosed is returned by Conn after Close.
	ErrManagerClosed = errors.New("connection manager closed")
)
