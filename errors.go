package room

import "fmt"

// FrameError reports that the peer violated the Room wire format: a field
// failed lexical validation, exceeded its configured cap, or the stream
// ended before a field or the content was complete.
//
// FrameError is terminal for the stream it was raised on: the codec does
// not attempt to resynchronize, and the caller should discard the stream.
type FrameError struct {
	Field  string // "verb", "channel", "count", or "content"
	Reason string // "malformed", "too large", "broken", etc.
}

func newFrameError(field, reason string) *FrameError {
	return &FrameError{Field: field, Reason: reason}
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// TooLarge reports whether the error is a cap-violation framing error.
func (e *FrameError) TooLarge() bool { return e.Reason == "too large" }

// Broken reports whether the error is a premature-EOF framing error.
func (e *FrameError) Broken() bool { return e.Reason == "broken" }

// UseError reports that an operation was attempted on a disposed or
// not-running component.
type UseError struct {
	Op     string // the component or operation, e.g. "codec", "service", "Start"
	Reason string // "disposed", "not running", or "already running"
}

func newUseError(op, reason string) *UseError {
	return &UseError{Op: op, Reason: reason}
}

func (e *UseError) Error() string {
	return fmt.Sprintf("room: %s: %s", e.Op, e.Reason)
}

// Sentinel UseError values for common cases; errors.As still works against
// a *UseError returned directly, these exist for errors.Is convenience on
// the default construction.
var (
	// ErrCodecDisposed is returned by a Codec whose Close has already run.
	ErrCodecDisposed = newUseError("codec", "disposed")
	// ErrServiceDisposed is returned by a Service after Dispose.
	ErrServiceDisposed = newUseError("service", "disposed")
	// ErrServiceNotRunning is returned by Service operations that require
	// Start to have been called.
	ErrServiceNotRunning = newUseError("service", "not running")
)

func (e *UseError) Is(target error) bool {
	other, ok := target.(*UseError)
	if !ok {
		return false
	}
	return e.Op == other.Op && e.Reason == other.Reason
}
