package stream

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/framelink-dev/framelink/pkg/pose"
	"github.com/framelink-dev/framelink/pkg/protocol"
	"github.com/framelink-dev/framelink/pkg/transport"
)

func newTestSession(t *testing.T, cfg SessionConfig) (*Session, *Dispatcher, *transport.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })

	d, err := NewDispatcher(pose.NewCorrelator(), DispatcherConfig{QueueDepth: 64})
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	s, err := NewSession(transport.NewConn(b), d, cfg)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return s, d, transport.NewConn(a)
}

func TestSessionCleanEndOfStream(t *testing.T) {
	s, d, sender := newTestSession(t, SessionConfig{
		Policy:         HeaderPrefixed{Variant: protocol.VariantStamped},
		BufferCapacity: 64 << 10,
	})

	want := []*Frame{
		{Width: 12, Height: 12, Pixels: testPixels(12, 12, 1), FrameTimestamp: 1},
		{Width: 12, Height: 12, Pixels: testPixels(12, 12, 2), FrameTimestamp: 2},
	}

	go func() {
		w, err := NewFrameWriter(sender, nil, WriterConfig{Variant: protocol.VariantStamped})
		if err != nil {
			t.Errorf("NewFrameWriter() error = %v", err)
			return
		}
		for _, f := range want {
			if err := w.WriteFrame(f.Pixels, f.Width, f.Height, f.FrameTimestamp); err != nil {
				t.Errorf("WriteFrame() error = %v", err)
				return
			}
		}
		sender.Close()
	}()

	end := s.Run(context.Background())

	if !end.Clean || end.Err != nil {
		t.Errorf("EndState = %+v, want clean", end)
	}
	if end.Frames != 2 {
		t.Errorf("Frames = %d, want 2", end.Frames)
	}
	if s.State() != StateClosed {
		t.Errorf("State() = %v, want Closed", s.State())
	}

	for i, f := range want {
		got := <-d.Frames()
		if !bytes.Equal(got.Pixels, f.Pixels) {
			t.Errorf("frame %d payload differs", i)
		}
	}
}

func TestSessionTrailingBytesNotClean(t *testing.T) {
	s, _, sender := newTestSession(t, SessionConfig{
		Policy:         HeaderPrefixed{Variant: protocol.VariantStamped},
		BufferCapacity: 64 << 10,
	})

	go func() {
		// Half a header, then a clean close: an undecodable trailing
		// message.
		sender.Write(make([]byte, protocol.StampedHeaderSize/2))
		sender.Close()
	}()

	end := s.Run(context.Background())
	if end.Clean {
		t.Error("EndState.Clean = true with trailing bytes")
	}
	if end.TrailingBytes != protocol.StampedHeaderSize/2 {
		t.Errorf("TrailingBytes = %d, want %d", end.TrailingBytes, protocol.StampedHeaderSize/2)
	}
	if end.Err != nil {
		t.Errorf("Err = %v, want nil for clean transport close", end.Err)
	}
}

func TestSessionIdleReadTimeout(t *testing.T) {
	s, _, _ := newTestSession(t, SessionConfig{
		Policy:          HeaderPrefixed{Variant: protocol.VariantStamped},
		BufferCapacity:  4 << 10,
		IdleReadTimeout: 30 * time.Millisecond,
	})

	start := time.Now()
	end := s.Run(context.Background())

	if end.Err == nil {
		t.Fatal("EndState.Err = nil, want timeout")
	}
	var te *transport.Error
	if !errors.As(end.Err, &te) || !te.Timeout() {
		t.Errorf("Err = %v, want transport timeout", end.Err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestSessionProtocolFaultClosesConnection(t *testing.T) {
	s, _, sender := newTestSession(t, SessionConfig{
		Policy:         HeaderPrefixed{Variant: protocol.VariantBasic},
		BufferCapacity: 4 << 10,
	})

	go func() {
		e := protocol.NewEncoder()
		e.WriteUint32(0) // zero width: malformed
		e.WriteUint32(480)
		e.WriteUint32(16)
		e.WriteUint32(1)
		sender.Write(e.Bytes())
		// Keep the connection open; the session must fail on its own.
	}()

	end := s.Run(context.Background())

	var pe *ProtocolError
	if !errors.As(end.Err, &pe) {
		t.Fatalf("Err = %v, want *ProtocolError", end.Err)
	}
	if s.State() != StateClosed {
		t.Errorf("State() = %v, want Closed", s.State())
	}
}

func TestSessionContextCancellation(t *testing.T) {
	s, _, _ := newTestSession(t, SessionConfig{
		Policy:          HeaderPrefixed{Variant: protocol.VariantStamped},
		BufferCapacity:  4 << 10,
		IdleReadTimeout: -1, // no deadline; cancellation must end the read
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan EndState, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
	if s.State() != StateClosed {
		t.Errorf("State() = %v, want Closed", s.State())
	}
}

func TestSessionCloseIdempotent(t *testing.T) {
	s, _, _ := newTestSession(t, SessionConfig{
		Policy:         HeaderPrefixed{Variant: protocol.VariantStamped},
		BufferCapacity: 4 << 10,
	})
	s.Close()
	s.Close()
}
