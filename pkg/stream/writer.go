package stream

import (
	"fmt"
	"sync"

	"github.com/framelink-dev/framelink/pkg/pose"
	"github.com/framelink-dev/framelink/pkg/protocol"
	"github.com/framelink-dev/framelink/pkg/transport"
)

// WriterConfig configures a FrameWriter.
type WriterConfig struct {
	// Variant is the header layout shared with the receiving end.
	Variant protocol.Variant

	// MaxChunkSize splits payloads larger than this into multiple
	// length-prefixed chunks under one Basic header. Zero means never
	// split. Only VariantBasic supports more than one chunk.
	MaxChunkSize int

	// Metrics records frames and bytes written. Optional.
	Metrics *Metrics
}

// FrameWriter encodes raw pixel buffers into wire messages. The current
// pose is read from the correlator at encode time, not at consume time,
// so the receiver can reconstruct which pose was active when the frame
// was rendered even though pose and frame delivery are independent
// streams.
type FrameWriter struct {
	t     transport.Transport
	poses *pose.Correlator
	cfg   WriterConfig

	mu  sync.Mutex
	enc *protocol.Encoder
}

// NewFrameWriter creates a writer for the given transport. The
// correlator may be nil when the deployment has no pose source; Stamped
// headers then carry zero pose fields.
func NewFrameWriter(t transport.Transport, poses *pose.Correlator, cfg WriterConfig) (*FrameWriter, error) {
	if cfg.Variant == protocol.VariantStamped && cfg.MaxChunkSize > 0 {
		return nil, fmt.Errorf("stream: %s headers carry a single chunk; chunking requires %s",
			protocol.VariantStamped, protocol.VariantBasic)
	}
	return &FrameWriter{
		t:     t,
		poses: poses,
		cfg:   cfg,
		enc:   protocol.NewEncoderWithCap(protocol.StampedHeaderSize + protocol.ChunkHeaderSize),
	}, nil
}

// WriteFrame encodes one frame and writes it to the transport as a
// single ordered unit.
func (w *FrameWriter) WriteFrame(pixels []byte, width, height uint32, frameTimestamp float64) error {
	if uint64(len(pixels)) != uint64(width)*uint64(height)*protocol.BytesPerPixel {
		return fmt.Errorf("stream: pixel buffer is %d bytes, want %d for %dx%d RGBA",
			len(pixels), uint64(width)*uint64(height)*protocol.BytesPerPixel, width, height)
	}
	if w.cfg.Variant != protocol.VariantFixed && (width == 0 || height == 0) {
		return fmt.Errorf("stream: cannot encode %s header for zero-sized frame", w.cfg.Variant)
	}

	hdr := protocol.FrameHeader{
		Width:          width,
		Height:         height,
		PayloadLength:  uint32(len(pixels)),
		ChunkCount:     1,
		FrameTimestamp: frameTimestamp,
	}
	if w.poses != nil {
		if sample, ok := w.poses.Current(); ok {
			hdr.PoseTimestamp = sample.Timestamp
			hdr.PoseID = sample.ID
		}
	}

	chunks := [][]byte{pixels}
	if w.cfg.Variant == protocol.VariantBasic && w.cfg.MaxChunkSize > 0 {
		chunks = splitChunks(pixels, w.cfg.MaxChunkSize)
		hdr.ChunkCount = uint32(len(chunks))
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.enc.Reset()
	if err := protocol.EncodeHeaderTo(w.enc, w.cfg.Variant, &hdr); err != nil {
		return err
	}
	if w.cfg.Variant == protocol.VariantFixed {
		w.enc.WriteBytes(pixels)
	} else {
		for _, c := range chunks {
			w.enc.WriteChunk(c)
		}
	}

	msg := w.enc.Bytes()
	if err := w.t.Write(msg); err != nil {
		return err
	}
	w.cfg.Metrics.frameSent(len(msg))
	return nil
}

// splitChunks slices the payload into segments of at most max bytes.
// The segments alias the input; the encoder copies them.
func splitChunks(payload []byte, max int) [][]byte {
	n := (len(payload) + max - 1) / max
	chunks := make([][]byte, 0, n)
	for len(payload) > max {
		chunks = append(chunks, payload[:max])
		payload = payload[max:]
	}
	return append(chunks, payload)
}
