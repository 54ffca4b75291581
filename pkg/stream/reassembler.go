package stream

import (
	"fmt"

	"github.com/framelink-dev/framelink/pkg/protocol"
)

// SizingPolicy determines how the reassembler finds message boundaries
// in the byte stream. The two implementations are FixedSize and
// HeaderPrefixed; both ends of a connection must agree on the policy
// out-of-band.
type SizingPolicy interface {
	// extract parses the next complete message from the unread region,
	// returning the decoded frame and the number of bytes consumed.
	// A nil frame with nil error means more bytes are needed.
	extract(unread []byte, capacity int) (*Frame, int, error)

	// validate checks the policy against the buffer capacity.
	validate(capacity int) error
}

// FixedSize frames the stream as back-to-back messages of exactly Size
// payload bytes, with dimensions agreed out-of-band. Legacy simplified
// mode.
type FixedSize struct {
	// Size is the exact payload size of every message.
	Size int

	// Width and Height describe the out-of-band agreed dimensions.
	// They are stamped onto emitted frames but do not affect framing.
	Width  uint32
	Height uint32
}

func (p FixedSize) validate(capacity int) error {
	if p.Size <= 0 {
		return fmt.Errorf("%w: fixed message size %d", ErrCapacityConfig, p.Size)
	}
	if p.Size > capacity {
		return fmt.Errorf("%w: fixed message size %d exceeds capacity %d",
			ErrCapacityConfig, p.Size, capacity)
	}
	return nil
}

func (p FixedSize) extract(unread []byte, capacity int) (*Frame, int, error) {
	if len(unread) < p.Size {
		return nil, 0, nil
	}
	pixels := make([]byte, p.Size)
	copy(pixels, unread[:p.Size])
	return &Frame{Width: p.Width, Height: p.Height, Pixels: pixels}, p.Size, nil
}

// HeaderPrefixed frames the stream with self-describing headers: each
// message begins with a Variant header whose fields determine the total
// message length.
type HeaderPrefixed struct {
	// Variant is the header layout, VariantBasic or VariantStamped.
	Variant protocol.Variant

	// MaxPayload overrides the default payload ceiling. Zero means
	// protocol.DefaultMaxPayload.
	MaxPayload int
}

func (p HeaderPrefixed) validate(capacity int) error {
	if p.Variant != protocol.VariantBasic && p.Variant != protocol.VariantStamped {
		return fmt.Errorf("%w for header-prefixed framing", protocol.ErrUnknownVariant)
	}
	if capacity < p.Variant.HeaderSize()+protocol.ChunkHeaderSize {
		return fmt.Errorf("%w: capacity %d below minimum message size",
			ErrCapacityConfig, capacity)
	}
	return nil
}

func (p HeaderPrefixed) extract(unread []byte, capacity int) (*Frame, int, error) {
	if len(unread) < p.Variant.HeaderSize() {
		return nil, 0, nil
	}

	hdr, err := protocol.DecodeHeader(p.Variant, unread, p.MaxPayload)
	if err != nil {
		// The header bytes are present, so any failure here is
		// structural, not a short read.
		return nil, 0, &ProtocolError{Reason: "malformed header", Cause: err}
	}

	total := hdr.MessageSize(p.Variant)
	if total > capacity {
		// The message can never fit the negotiated buffer; waiting for
		// more bytes would deadlock the connection.
		return nil, 0, &ProtocolError{
			Reason:   "declared message exceeds buffer capacity",
			Declared: uint64(total),
			Actual:   uint64(capacity),
		}
	}
	if len(unread) < total {
		return nil, 0, nil
	}

	pixels := make([]byte, hdr.PayloadLength)
	d := protocol.NewDecoder(unread[p.Variant.HeaderSize():total])
	filled := uint64(0)
	for i := uint32(0); i < hdr.ChunkCount; i++ {
		clen, err := d.ReadUint32()
		if err != nil {
			return nil, 0, &ProtocolError{
				Reason:   "chunk table truncated",
				Declared: uint64(hdr.ChunkCount),
				Actual:   uint64(i),
				Cause:    err,
			}
		}
		if filled+uint64(clen) > uint64(hdr.PayloadLength) {
			return nil, 0, &ProtocolError{
				Reason:   "chunk lengths exceed declared payload",
				Declared: uint64(hdr.PayloadLength),
				Actual:   filled + uint64(clen),
			}
		}
		data, err := d.ReadBytes(int(clen))
		if err != nil {
			return nil, 0, &ProtocolError{
				Reason:   "chunk data truncated",
				Declared: uint64(clen),
				Actual:   uint64(d.Remaining()),
				Cause:    err,
			}
		}
		copy(pixels[filled:], data)
		filled += uint64(clen)
	}
	if filled != uint64(hdr.PayloadLength) {
		return nil, 0, &ProtocolError{
			Reason:   "chunk lengths disagree with declared payload",
			Declared: uint64(hdr.PayloadLength),
			Actual:   filled,
		}
	}

	return &Frame{
		Width:          hdr.Width,
		Height:         hdr.Height,
		Pixels:         pixels,
		FrameTimestamp: hdr.FrameTimestamp,
		PoseTimestamp:  hdr.PoseTimestamp,
		PoseID:         hdr.PoseID,
	}, total, nil
}

// Reassembler consumes raw bytes from one connection and emits complete,
// validated frames. It is exclusively owned by that connection's handler
// goroutine; nothing else may touch its buffer.
type Reassembler struct {
	policy SizingPolicy
	buf    *connBuffer
	frames uint64
}

// NewReassembler allocates the connection buffer and validates the
// sizing policy against it. Allocation or configuration failures here
// are fatal at startup, not per-frame conditions.
func NewReassembler(policy SizingPolicy, capacity int) (*Reassembler, error) {
	buf, err := newConnBuffer(capacity)
	if err != nil {
		return nil, err
	}
	if err := policy.validate(capacity); err != nil {
		return nil, err
	}
	return &Reassembler{policy: policy, buf: buf}, nil
}

// Fill prepares the buffer for the next read and returns the writable
// region. If the buffer is full even after compaction, no message can
// ever complete: the sender violated the max-message-size contract or
// the capacity was misconfigured, and the connection is unrecoverable.
func (r *Reassembler) Fill() ([]byte, error) {
	r.buf.compact()
	if r.buf.full() {
		return nil, &ProtocolError{
			Reason:   "buffer full with no extractable message",
			Declared: uint64(r.buf.unreadLen()),
			Actual:   uint64(r.buf.capacity()),
		}
	}
	return r.buf.free(), nil
}

// Commit records n bytes written into the region returned by Fill.
func (r *Reassembler) Commit(n int) {
	r.buf.advanceWrite(n)
}

// Next extracts the next complete frame, or returns nil when the unread
// region does not yet hold one. A non-nil error is a fatal protocol
// fault; no further extraction is possible on this connection.
func (r *Reassembler) Next() (*Frame, error) {
	frame, consumed, err := r.policy.extract(r.buf.unread(), r.buf.capacity())
	if err != nil {
		return nil, err
	}
	if frame == nil {
		return nil, nil
	}
	r.buf.advanceRead(consumed)
	r.frames++
	return frame, nil
}

// Push copies data into the buffer and extracts every frame it
// completes. This is the whole per-read cycle for callers that already
// hold the bytes; the session read loop uses Fill/Commit/Next to read
// directly into the buffer instead.
func (r *Reassembler) Push(data []byte) ([]*Frame, error) {
	var out []*Frame
	for len(data) > 0 {
		dst, err := r.Fill()
		if err != nil {
			return out, err
		}
		n := copy(dst, data)
		r.Commit(n)
		data = data[n:]

		for {
			frame, err := r.Next()
			if err != nil {
				return out, err
			}
			if frame == nil {
				break
			}
			out = append(out, frame)
		}
	}
	return out, nil
}

// Buffered returns the number of received bytes not yet consumed. After
// a clean end of stream a non-zero value means the sender stopped mid
// message.
func (r *Reassembler) Buffered() int {
	return r.buf.unreadLen()
}

// FrameCount returns how many frames this reassembler has emitted.
func (r *Reassembler) FrameCount() uint64 {
	return r.frames
}
