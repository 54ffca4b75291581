// Package stream turns an ordered byte stream into discrete validated
// frames, and encodes frames back onto one.
//
// The receiving side is built from three pieces, each owned by exactly
// one connection handler goroutine:
//
//   - Reassembler: consumes raw bytes from a transport into a
//     fixed-capacity connection buffer and extracts complete frame
//     messages according to a sizing policy (FixedSize or
//     HeaderPrefixed). Payload bytes are always copied out of the shared
//     buffer; emitted frames own their pixels.
//   - Dispatcher: hands frames to the consumer through a bounded queue
//     with a drop-oldest policy, so a slow consumer can never stall the
//     read loop. It also routes side-channel pose messages into the
//     pose correlator.
//   - Session: the connection state machine (Connecting, Open, Closing,
//     Closed) driving a single read loop with an idle-read deadline,
//     and reporting how the connection ended.
//
// The sending side is FrameWriter, which stamps the current pose into
// the header at encode time and splits oversized payloads into
// length-prefixed chunks.
//
// A protocol fault — malformed header, chunk lengths that disagree with
// the declared payload, a message that cannot fit the buffer — is fatal
// for the connection. A byte stream with no message delimiter cannot be
// resynchronized after a corrupt length field, so the reassembler never
// tries; the connection is closed and reported, and reconnecting is the
// caller's policy.
package stream
