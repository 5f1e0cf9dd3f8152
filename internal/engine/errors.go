package engine

import "errors"

// Operation failures are local, synchronous and recoverable: the caller
// re-renders with an error banner and the session state is left untouched.
var (
	// ErrNotFound reports a line, session or request id that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState reports an operation that is illegal in the current status.
	ErrInvalidState = errors.New("invalid state")
	// ErrStaleRequest reports a permission response for a request that is no
	// longer current.
	ErrStaleRequest = errors.New("stale permission request")
	// ErrAlreadyRunning reports a submit while a turn is already in flight.
	ErrAlreadyRunning = errors.New("session already running")
)
