// Package transport abstracts an ordered reliable byte connection.
//
// A Transport guarantees ordered delivery of bytes and nothing else: one
// Read returns some available bytes with no alignment to message
// boundaries, so a message may arrive split across reads or packed
// together with its neighbors. Everything above this package must treat
// the stream accordingly.
//
// Two backings are provided and behave identically from the caller's
// point of view:
//
//   - Conn wraps a net.Conn (TCP socket or unix-domain socket, the local
//     pipe analogue).
//   - WSConn wraps a gorilla/websocket connection, re-exposing its
//     message-based reads as a plain byte stream.
//
// Clean end of stream surfaces as io.EOF; every other failure surfaces as
// a *Error carrying the operation name, with Timeout() reporting deadline
// expiry. Close is idempotent, and closing a transport resolves any
// outstanding Read — that is the only cancellation mechanism.
package transport
