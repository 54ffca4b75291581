package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrPoseShape is returned when encoding a structurally invalid sample.
var ErrPoseShape = errors.New("protocol: pose sample has invalid shape")

// PoseSample is one tracked head pose: a timestamp on the source's
// monotonic clock, an optional monotonic counter, and a 3x4 row-major
// rotation+translation matrix.
type PoseSample struct {
	Timestamp float64
	ID        uint64
	HasID     bool
	Transform [12]float64
}

// NewerThan reports whether s supersedes other. When both samples carry
// an ID the comparison is by ID; otherwise by timestamp. Ties lose: a
// sample equal to the current one is stale.
func (s PoseSample) NewerThan(other PoseSample) bool {
	if s.HasID && other.HasID {
		return s.ID > other.ID
	}
	return s.Timestamp > other.Timestamp
}

// MessageKind tags the closed set of side-channel message variants.
type MessageKind uint8

const (
	// KindPose is a well-formed pose sample.
	KindPose MessageKind = iota

	// KindUnknown is any message that did not parse as a pose sample.
	// Unknown messages are forwarded with their raw bytes, not dropped.
	KindUnknown
)

// String returns the string representation of the message kind.
func (k MessageKind) String() string {
	switch k {
	case KindPose:
		return "Pose"
	case KindUnknown:
		return "Unknown"
	default:
		return "Unknown"
	}
}

// Message is a parsed side-channel message.
type Message struct {
	Kind MessageKind

	// Pose is set when Kind == KindPose.
	Pose *PoseSample

	// Raw holds a copy of the original bytes when Kind == KindUnknown.
	Raw []byte
}

// poseWire is the JSON schema of a pose message. Pointer fields
// distinguish absent from zero.
type poseWire struct {
	Timestamp *float64  `json:"timestamp"`
	ID        *uint64   `json:"id,omitempty"`
	Transform []float64 `json:"transform"`
}

// ParsePoseMessage parses one side-channel message. Input that is not a
// JSON object with a timestamp and a 12-element transform comes back as
// KindUnknown with a copy of the raw bytes.
func ParsePoseMessage(data []byte) Message {
	var w poseWire
	if err := json.Unmarshal(data, &w); err != nil || w.Timestamp == nil || len(w.Transform) != 12 {
		raw := make([]byte, len(data))
		copy(raw, data)
		return Message{Kind: KindUnknown, Raw: raw}
	}

	s := &PoseSample{Timestamp: *w.Timestamp}
	if w.ID != nil {
		s.ID = *w.ID
		s.HasID = true
	}
	copy(s.Transform[:], w.Transform)
	return Message{Kind: KindPose, Pose: s}
}

// EncodePoseMessage encodes a pose sample as a JSON side-channel
// message. Non-finite values have no JSON representation and are
// rejected with ErrPoseShape.
func EncodePoseMessage(s PoseSample) ([]byte, error) {
	if math.IsNaN(s.Timestamp) || math.IsInf(s.Timestamp, 0) {
		return nil, fmt.Errorf("%w: non-finite timestamp", ErrPoseShape)
	}
	for i, v := range s.Transform {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite transform element %d", ErrPoseShape, i)
		}
	}

	w := poseWire{
		Timestamp: &s.Timestamp,
		Transform: s.Transform[:],
	}
	if s.HasID {
		id := s.ID
		w.ID = &id
	}
	return json.Marshal(w)
}
