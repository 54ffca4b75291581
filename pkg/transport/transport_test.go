package transport

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"testing"
	"time"
)

func TestConnReadWrite(t *testing.T) {
	a, b := net.Pipe()
	ta := NewConn(a)
	tb := NewConn(b)
	defer ta.Close()
	defer tb.Close()

	payload := []byte("ordered bytes, no boundaries")
	go func() {
		if err := ta.Write(payload); err != nil {
			t.Errorf("Write() error = %v", err)
		}
		ta.Close()
	}()

	var got bytes.Buffer
	buf := make([]byte, 7) // force several reads
	for {
		n, err := tb.Read(buf)
		got.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
	}

	if !bytes.Equal(got.Bytes(), payload) {
		t.Errorf("received %q, want %q", got.Bytes(), payload)
	}
}

func TestConnReadDeadline(t *testing.T) {
	a, b := net.Pipe()
	tb := NewConn(b)
	defer a.Close()
	defer tb.Close()

	if err := tb.SetReadDeadline(time.Now().Add(20 * time.Millisecond)); err != nil {
		t.Fatalf("SetReadDeadline() error = %v", err)
	}

	_, err := tb.Read(make([]byte, 16))
	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("Read() error = %v, want *transport.Error", err)
	}
	if !te.Timeout() {
		t.Errorf("Timeout() = false, want true (err = %v)", te.Err)
	}
}

func TestConnCloseIdempotent(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()

	tc := NewConn(a)
	if err := tc.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := tc.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
}

func TestConnCloseResolvesRead(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()

	tc := NewConn(a)
	done := make(chan error, 1)
	go func() {
		_, err := tc.Read(make([]byte, 16))
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	tc.Close()

	select {
	case err := <-done:
		// Closing locally ends the stream; either clean EOF or a
		// transport error is acceptable, hanging is not.
		if err == nil {
			t.Error("Read() returned nil error after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Read() did not resolve after Close")
	}
}

func TestErrorTimeout(t *testing.T) {
	e := &Error{Op: "read", Err: os.ErrDeadlineExceeded}
	if !e.Timeout() {
		t.Error("Timeout() = false for deadline exceeded")
	}
	e = &Error{Op: "read", Err: errors.New("broken")}
	if e.Timeout() {
		t.Error("Timeout() = true for generic error")
	}
}

func TestDialUnsupportedNetwork(t *testing.T) {
	_, err := Dial("udp", "127.0.0.1:1", time.Second)
	var te *Error
	if !errors.As(err, &te) || te.Op != "dial" {
		t.Errorf("Dial() error = %v, want dial *transport.Error", err)
	}
}
