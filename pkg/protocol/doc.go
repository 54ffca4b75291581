// Package protocol implements the binary wire format for framelink.
//
// The format carries rendered RGBA frames over an ordered reliable byte
// stream. Messages are self-describing: a fixed-size header declares the
// frame dimensions and payload layout, followed by one or more
// length-prefixed chunks. The header variant is a deployment-wide
// configuration choice shared by both ends; it is never negotiated or
// sniffed on the wire.
//
// # Header Variants
//
// All integers are little-endian.
//
// VariantBasic (16 bytes):
//
//	┌───────────┬───────────┬────────────────┬─────────────┐
//	│ width     │ height    │ payloadLength  │ chunkCount  │
//	│ (u32)     │ (u32)     │ (u32)          │ (u32)       │
//	└───────────┴───────────┴────────────────┴─────────────┘
//
// VariantStamped (32 bytes):
//
//	┌───────────┬───────────┬────────────────┬────────────────┬─────────┐
//	│ width     │ height    │ frameTimestamp │ poseTimestamp  │ poseId  │
//	│ (u32)     │ (u32)     │ (f64)          │ (f64)          │ (f64)   │
//	└───────────┴───────────┴────────────────┴────────────────┴─────────┘
//
// A Stamped header carries no explicit payload length; the payload is
// always width*height*4 bytes of uncompressed RGBA in a single chunk.
//
// VariantFixed has no header at all: every message is exactly N payload
// bytes, with N and the frame dimensions agreed out-of-band.
//
// Each chunk is encoded as a u32 length prefix followed by that many raw
// bytes. The chunk lengths of one message must sum to the declared payload
// length exactly.
//
// # Pose Messages
//
// Pose samples travel on a side channel, independent of the frame stream,
// as JSON objects:
//
//	{"timestamp": 123.456, "id": 42, "transform": [12 numbers]}
//
// The transform is a 3x4 row-major rotation+translation matrix. Messages
// that do not match this shape are surfaced as Unknown with their raw
// bytes so the consumer can decide what to do with them.
//
// # Safety
//
// Decoding never trusts a declared length before checking it against both
// the remaining input and the allocation limits in limits.go. A malformed
// header is a protocol fault; a byte-stream format with no message
// delimiter cannot resynchronize after one, so callers are expected to
// close the connection.
package protocol
