package stream

import (
	"errors"
	"fmt"
)

// Configuration and allocation errors, fatal at startup.
var (
	ErrCapacityConfig = errors.New("stream: buffer capacity must be positive and at least one message")
	ErrQueueConfig    = errors.New("stream: dispatcher queue depth must be positive")
)

// ProtocolError is a fatal per-connection fault: the byte stream no
// longer matches the wire format and cannot be resynchronized. It
// carries the declared and actual values in conflict so the fault can be
// diagnosed from logs.
type ProtocolError struct {
	// Reason is a short description of the fault.
	Reason string

	// Declared and Actual are the conflicting sizes, when the fault is
	// a length mismatch; zero otherwise.
	Declared uint64
	Actual   uint64

	// Cause is the underlying decode error, if any.
	Cause error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	s := "stream: protocol fault: " + e.Reason
	if e.Declared != 0 || e.Actual != 0 {
		s += fmt.Sprintf(" (declared=%d actual=%d)", e.Declared, e.Actual)
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Unwrap returns the underlying decode error.
func (e *ProtocolError) Unwrap() error {
	return e.Cause
}
