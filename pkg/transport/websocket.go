package transport

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSConn adapts a gorilla/websocket connection to the Transport
// interface. WebSocket delivers whole binary messages; Read re-exposes
// them as a byte stream by buffering the remainder of a message that
// didn't fit the caller's slice.
type WSConn struct {
	ws *websocket.Conn

	// remainder of the last binary message not yet handed to Read.
	rem []byte

	closeOnce sync.Once
	closeErr  error
}

// NewWSConn wraps an established websocket connection.
func NewWSConn(ws *websocket.Conn) *WSConn {
	return &WSConn{ws: ws}
}

// DialWebsocket connects to a websocket endpoint (ws:// or wss:// URL).
func DialWebsocket(url string, timeout time.Duration) (*WSConn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	ws, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, &Error{Op: "dial", Err: err}
	}
	return NewWSConn(ws), nil
}

// Read returns some available bytes: the buffered remainder first,
// otherwise as much of the next binary message as fits in p.
func (t *WSConn) Read(p []byte) (int, error) {
	for len(t.rem) == 0 {
		msgType, data, err := t.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			if errors.Is(err, net.ErrClosed) {
				return 0, io.EOF
			}
			return 0, &Error{Op: "read", Err: err}
		}
		if msgType != websocket.BinaryMessage {
			// Text and control payloads are not part of the frame
			// stream.
			continue
		}
		t.rem = data
	}

	n := copy(p, t.rem)
	t.rem = t.rem[n:]
	return n, nil
}

// Write sends p as one binary message.
func (t *WSConn) Write(p []byte) error {
	if err := t.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return &Error{Op: "write", Err: err}
	}
	return nil
}

// SetReadDeadline bounds the next Read.
func (t *WSConn) SetReadDeadline(deadline time.Time) error {
	if err := t.ws.SetReadDeadline(deadline); err != nil {
		return &Error{Op: "read", Err: err}
	}
	return nil
}

// Close sends a close frame on a best-effort basis and closes the
// underlying connection. Safe to call more than once.
func (t *WSConn) Close() error {
	t.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		_ = t.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline)
		if err := t.ws.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			t.closeErr = &Error{Op: "close", Err: err}
		}
	})
	return t.closeErr
}

// RemoteAddr describes the peer.
func (t *WSConn) RemoteAddr() string {
	return t.ws.RemoteAddr().String()
}
