package transport

import (
	"errors"
	"net"
	"os"
	"time"
)

// Transport is an ordered reliable byte connection.
type Transport interface {
	// Read fills p with some available bytes and returns how many were
	// read. There is no message-boundary guarantee of any kind. Clean
	// end of stream is io.EOF; other failures are *Error.
	Read(p []byte) (int, error)

	// Write sends p in order, completely or not at all from the
	// caller's perspective. Losses are transport failures, never
	// silent drops.
	Write(p []byte) error

	// SetReadDeadline bounds the next Read. A zero time clears the
	// deadline. An expired deadline fails the Read with a *Error whose
	// Timeout() is true.
	SetReadDeadline(t time.Time) error

	// Close is idempotent and resolves any outstanding Read.
	Close() error

	// RemoteAddr describes the peer for logging.
	RemoteAddr() string
}

// Error is a transport-level failure: connect, read, or write, including
// read-deadline expiry.
type Error struct {
	Op  string // "dial", "read", "write", "close"
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return "transport: " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline expiry.
func (e *Error) Timeout() bool {
	if errors.Is(e.Err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}
