package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// Conn adapts a net.Conn to the Transport interface. TCP and unix-domain
// sockets both satisfy the ordered-reliable contract.
type Conn struct {
	c net.Conn

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps an established net.Conn.
func NewConn(c net.Conn) *Conn {
	return &Conn{c: c}
}

// Dial connects to the given endpoint. Supported networks: "tcp", "unix".
func Dial(network, address string, timeout time.Duration) (*Conn, error) {
	switch network {
	case "tcp", "unix":
	default:
		return nil, &Error{Op: "dial", Err: fmt.Errorf("unsupported network %q", network)}
	}
	c, err := net.DialTimeout(network, address, timeout)
	if err != nil {
		return nil, &Error{Op: "dial", Err: err}
	}
	return NewConn(c), nil
}

// Read reads some available bytes into p.
func (t *Conn) Read(p []byte) (int, error) {
	n, err := t.c.Read(p)
	if err != nil {
		return n, mapReadError(err)
	}
	return n, nil
}

// Write sends p fully ordered. Short writes are failures.
func (t *Conn) Write(p []byte) error {
	for len(p) > 0 {
		n, err := t.c.Write(p)
		if err != nil {
			return &Error{Op: "write", Err: err}
		}
		p = p[n:]
	}
	return nil
}

// SetReadDeadline bounds the next Read.
func (t *Conn) SetReadDeadline(deadline time.Time) error {
	if err := t.c.SetReadDeadline(deadline); err != nil {
		return &Error{Op: "read", Err: err}
	}
	return nil
}

// Close closes the connection. Safe to call more than once; closing an
// already-closing connection is a benign no-op.
func (t *Conn) Close() error {
	t.closeOnce.Do(func() {
		if err := t.c.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			t.closeErr = &Error{Op: "close", Err: err}
		}
	})
	return t.closeErr
}

// RemoteAddr describes the peer.
func (t *Conn) RemoteAddr() string {
	return t.c.RemoteAddr().String()
}

// mapReadError normalizes read failures: EOF and reads racing a local
// Close both mean the stream ended cleanly.
func mapReadError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return io.EOF
	}
	return &Error{Op: "read", Err: err}
}
