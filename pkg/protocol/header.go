package protocol

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Header sizes in bytes.
const (
	BasicHeaderSize   = 16
	StampedHeaderSize = 32
	ChunkHeaderSize   = 4
)

// Variant selects the frame header layout. Both ends of a connection must
// be configured with the same variant; it is never carried on the wire.
type Variant uint8

const (
	// VariantFixed carries no header: every message is exactly N payload
	// bytes, with N and the frame dimensions agreed out-of-band. Legacy
	// simplified mode.
	VariantFixed Variant = iota

	// VariantBasic is the 16-byte header: width, height, payloadLength,
	// chunkCount. The only variant that supports multi-chunk payloads.
	VariantBasic

	// VariantStamped is the canonical 32-byte header: width, height,
	// frameTimestamp, poseTimestamp, poseId. The payload is implied as
	// width*height*BytesPerPixel in a single chunk.
	VariantStamped
)

// String returns the string representation of the variant.
func (v Variant) String() string {
	switch v {
	case VariantFixed:
		return "Fixed"
	case VariantBasic:
		return "Basic"
	case VariantStamped:
		return "Stamped"
	default:
		return "Unknown"
	}
}

// ParseVariant parses a configuration string into a Variant. Matching
// is case-insensitive, so the output of Variant.String round-trips.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(s) {
	case "fixed":
		return VariantFixed, nil
	case "basic":
		return VariantBasic, nil
	case "stamped", "":
		return VariantStamped, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, s)
	}
}

// HeaderSize returns the fixed header size of the variant in bytes.
func (v Variant) HeaderSize() int {
	switch v {
	case VariantBasic:
		return BasicHeaderSize
	case VariantStamped:
		return StampedHeaderSize
	default:
		return 0
	}
}

// Header errors.
var (
	ErrUnknownVariant  = errors.New("protocol: unknown header variant")
	ErrZeroDimension   = errors.New("protocol: frame dimension is zero")
	ErrDimensionRange  = errors.New("protocol: frame dimension exceeds limit")
	ErrPayloadTooLarge = errors.New("protocol: declared payload exceeds allocation limit")
	ErrPayloadOverrun  = errors.New("protocol: declared payload exceeds width*height*4")
	ErrZeroPayload     = errors.New("protocol: declared payload length is zero")
	ErrChunkCountRange = errors.New("protocol: chunk count out of range")
)

// FrameHeader is the decoded form of a frame message header. Fields not
// present in the chosen variant are zero (Basic carries no timestamps;
// Stamped derives PayloadLength and always has ChunkCount == 1).
type FrameHeader struct {
	Width  uint32
	Height uint32

	// PayloadLength is the total payload size summed across chunks.
	PayloadLength uint32

	// ChunkCount is the number of length-prefixed chunks that follow.
	ChunkCount uint32

	// FrameTimestamp is the render time of the frame (source clock,
	// seconds). Stamped variant only.
	FrameTimestamp float64

	// PoseTimestamp and PoseID identify the pose that was current when
	// the frame was encoded. Stamped variant only.
	PoseTimestamp float64
	PoseID        uint64
}

// MessageSize returns the total wire size of the message this header
// describes: header, chunk length prefixes, and payload.
func (h *FrameHeader) MessageSize(v Variant) int {
	return v.HeaderSize() + int(h.ChunkCount)*ChunkHeaderSize + int(h.PayloadLength)
}

// Validate checks the header for structural consistency. maxPayload is the
// deployment's payload ceiling; zero means DefaultMaxPayload.
func (h *FrameHeader) Validate(maxPayload int) error {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	if maxPayload > HardMaxPayload {
		maxPayload = HardMaxPayload
	}
	if h.Width == 0 || h.Height == 0 {
		return ErrZeroDimension
	}
	if h.Width > MaxDimension || h.Height > MaxDimension {
		return ErrDimensionRange
	}
	if h.PayloadLength == 0 {
		return ErrZeroPayload
	}
	if int64(h.PayloadLength) > int64(maxPayload) {
		return ErrPayloadTooLarge
	}
	// The payload is at most one uncompressed RGBA plane. A declared
	// length beyond that is structurally inconsistent, not merely large.
	if uint64(h.PayloadLength) > uint64(h.Width)*uint64(h.Height)*BytesPerPixel {
		return ErrPayloadOverrun
	}
	if h.ChunkCount == 0 || h.ChunkCount > MaxChunkCount {
		return ErrChunkCountRange
	}
	return nil
}

// EncodeHeader encodes the header in the given variant.
// VariantFixed produces no bytes.
func EncodeHeader(v Variant, h *FrameHeader) ([]byte, error) {
	e := NewEncoderWithCap(StampedHeaderSize)
	if err := EncodeHeaderTo(e, v, h); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// EncodeHeaderTo encodes the header using the provided encoder.
func EncodeHeaderTo(e *Encoder, v Variant, h *FrameHeader) error {
	switch v {
	case VariantFixed:
		return nil
	case VariantBasic:
		e.WriteUint32(h.Width)
		e.WriteUint32(h.Height)
		e.WriteUint32(h.PayloadLength)
		e.WriteUint32(h.ChunkCount)
		return nil
	case VariantStamped:
		e.WriteUint32(h.Width)
		e.WriteUint32(h.Height)
		e.WriteFloat64(h.FrameTimestamp)
		e.WriteFloat64(h.PoseTimestamp)
		e.WriteFloat64(float64(h.PoseID))
		return nil
	default:
		return ErrUnknownVariant
	}
}

// DecodeHeader decodes and validates a frame header of the given variant.
// Returns io.ErrUnexpectedEOF when data holds fewer bytes than the
// variant's header size; the caller should read more and retry.
// VariantFixed has no header and always fails with ErrUnknownVariant.
func DecodeHeader(v Variant, data []byte, maxPayload int) (FrameHeader, error) {
	var h FrameHeader
	if v != VariantBasic && v != VariantStamped {
		return h, ErrUnknownVariant
	}
	if len(data) < v.HeaderSize() {
		return h, io.ErrUnexpectedEOF
	}

	d := NewDecoder(data)
	h.Width, _ = d.ReadUint32()
	h.Height, _ = d.ReadUint32()

	switch v {
	case VariantBasic:
		h.PayloadLength, _ = d.ReadUint32()
		h.ChunkCount, _ = d.ReadUint32()
	case VariantStamped:
		h.FrameTimestamp, _ = d.ReadFloat64()
		h.PoseTimestamp, _ = d.ReadFloat64()
		poseID, _ := d.ReadFloat64()
		if poseID >= 0 {
			h.PoseID = uint64(poseID)
		}
		// Stamped payloads are a single uncompressed RGBA plane.
		h.ChunkCount = 1
		h.PayloadLength = h.Width * h.Height * BytesPerPixel
	}

	if err := h.Validate(maxPayload); err != nil {
		return FrameHeader{}, err
	}
	return h, nil
}
