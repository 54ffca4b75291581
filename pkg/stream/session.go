package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/framelink-dev/framelink/pkg/transport"
)

// State is the connection lifecycle state. Transitions are one-way:
// Connecting → Open → Closing → Closed.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateOpen:
		return "Open"
	case StateClosing:
		return "Closing"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// EndState reports how a session's read loop finished. Clean means the
// sender closed the stream and every buffered byte was consumed; a
// non-zero TrailingBytes means the stream ended mid message.
type EndState struct {
	Clean         bool
	TrailingBytes int
	Frames        uint64
	Err           error
}

// DefaultBufferCapacity holds two 1080p RGBA frames plus headers; large
// single-frame deployments must raise it to cover their maximum message
// size.
const DefaultBufferCapacity = 32 << 20

// DefaultIdleReadTimeout bounds how long a silent sender can pin a
// connection open.
const DefaultIdleReadTimeout = 30 * time.Second

// SessionConfig configures a receiving session.
type SessionConfig struct {
	// Policy is the sizing policy shared with the sender.
	Policy SizingPolicy

	// BufferCapacity is the connection buffer size in bytes. Must be at
	// least the largest message the sender may emit. Default:
	// DefaultBufferCapacity.
	BufferCapacity int

	// IdleReadTimeout closes the connection when no bytes arrive for
	// this long. Zero means DefaultIdleReadTimeout; negative disables
	// the deadline entirely.
	IdleReadTimeout time.Duration

	// Metrics records session activity. Optional.
	Metrics *Metrics
}

// Session owns one connection end to end: the transport, the
// reassembler and its buffer, and the single read loop. Nothing else
// touches the buffer while the session runs.
type Session struct {
	id    string
	t     transport.Transport
	r     *Reassembler
	d     *Dispatcher
	cfg   SessionConfig
	state atomic.Int32

	logger *slog.Logger
}

// NewSession allocates a session and its connection buffer. A capacity
// or policy misconfiguration fails here, at startup.
func NewSession(t transport.Transport, d *Dispatcher, cfg SessionConfig) (*Session, error) {
	if cfg.BufferCapacity == 0 {
		cfg.BufferCapacity = DefaultBufferCapacity
	}
	if cfg.IdleReadTimeout == 0 {
		cfg.IdleReadTimeout = DefaultIdleReadTimeout
	}
	r, err := NewReassembler(cfg.Policy, cfg.BufferCapacity)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	return &Session{
		id:     id,
		t:      t,
		r:      r,
		d:      d,
		cfg:    cfg,
		logger: slog.Default().With("component", "session", "session_id", id, "remote", t.RemoteAddr()),
	}, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Run drives the read loop until end of stream, a fatal error, or
// context cancellation. Cancellation closes the transport, which
// resolves the outstanding read; there is no mid-read preemption.
func (s *Session) Run(ctx context.Context) EndState {
	s.state.Store(int32(StateOpen))
	s.cfg.Metrics.connOpened()
	s.logger.Info("session open")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-done:
		}
	}()

	end := s.readLoop()

	s.Close()
	s.state.Store(int32(StateClosed))
	s.cfg.Metrics.connClosed()

	end.Frames = s.r.FrameCount()
	if end.Err == nil && end.TrailingBytes == 0 {
		end.Clean = true
		s.logger.Info("session ended cleanly", "frames", end.Frames)
	} else if end.Err == nil {
		s.logger.Warn("stream ended mid message",
			"frames", end.Frames,
			"trailing_bytes", end.TrailingBytes)
	}
	return end
}

func (s *Session) readLoop() EndState {
	for {
		dst, err := s.r.Fill()
		if err != nil {
			return s.fail(err)
		}

		if s.cfg.IdleReadTimeout > 0 {
			if err := s.t.SetReadDeadline(time.Now().Add(s.cfg.IdleReadTimeout)); err != nil {
				return s.fail(err)
			}
		}

		n, err := s.t.Read(dst)
		if n > 0 {
			s.r.Commit(n)
			s.cfg.Metrics.bytesIn(n)

			for {
				frame, err := s.r.Next()
				if err != nil {
					return s.fail(err)
				}
				if frame == nil {
					break
				}
				s.d.Dispatch(frame)
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return EndState{TrailingBytes: s.r.Buffered()}
			}
			return s.fail(err)
		}
	}
}

// fail logs and classifies a fatal loop error.
func (s *Session) fail(err error) EndState {
	var pe *ProtocolError
	var te *transport.Error
	switch {
	case errors.As(err, &pe):
		s.cfg.Metrics.protocolError()
		s.logger.Error("protocol fault, closing connection",
			"reason", pe.Reason,
			"declared", pe.Declared,
			"actual", pe.Actual,
			"error", err)
	case errors.As(err, &te):
		s.cfg.Metrics.transportError()
		if te.Timeout() {
			s.logger.Error("idle read timeout", "timeout", s.cfg.IdleReadTimeout)
		} else {
			s.logger.Error("transport failure", "op", te.Op, "error", err)
		}
	default:
		s.logger.Error("session failure", "error", err)
	}
	return EndState{TrailingBytes: s.r.Buffered(), Err: err}
}

// Close moves the session to Closing and closes the transport. Safe to
// call from any goroutine and more than once; closing an already-closing
// session is a benign no-op.
func (s *Session) Close() {
	if s.state.CompareAndSwap(int32(StateOpen), int32(StateClosing)) ||
		s.state.CompareAndSwap(int32(StateConnecting), int32(StateClosing)) {
		_ = s.t.Close()
	}
}
