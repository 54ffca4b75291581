package stream

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/framelink-dev/framelink/pkg/pose"
	"github.com/framelink-dev/framelink/pkg/protocol"
)

// sinkTransport collects everything written to it, for encoding frames
// to bytes in tests.
type sinkTransport struct {
	buf bytes.Buffer
}

func (s *sinkTransport) Read(p []byte) (int, error)      { return 0, io.EOF }
func (s *sinkTransport) Write(p []byte) error            { s.buf.Write(p); return nil }
func (s *sinkTransport) SetReadDeadline(time.Time) error { return nil }
func (s *sinkTransport) Close() error                    { return nil }
func (s *sinkTransport) RemoteAddr() string              { return "sink" }

// encodeFrames renders frames to wire bytes using the production writer.
func encodeFrames(t *testing.T, variant protocol.Variant, maxChunk int, poses *pose.Correlator, frames []*Frame) []byte {
	t.Helper()
	sink := &sinkTransport{}
	w, err := NewFrameWriter(sink, poses, WriterConfig{Variant: variant, MaxChunkSize: maxChunk})
	if err != nil {
		t.Fatalf("NewFrameWriter() error = %v", err)
	}
	for _, f := range frames {
		if err := w.WriteFrame(f.Pixels, f.Width, f.Height, f.FrameTimestamp); err != nil {
			t.Fatalf("WriteFrame() error = %v", err)
		}
	}
	return sink.buf.Bytes()
}

func testPixels(w, h uint32, seed byte) []byte {
	p := make([]byte, int(w)*int(h)*protocol.BytesPerPixel)
	for i := range p {
		p[i] = byte(i)*3 + seed
	}
	return p
}

func TestRoundTripIdentity(t *testing.T) {
	tests := []struct {
		name     string
		variant  protocol.Variant
		maxChunk int
	}{
		{"stamped_single_chunk", protocol.VariantStamped, 0},
		{"basic_single_chunk", protocol.VariantBasic, 0},
		{"basic_chunked", protocol.VariantBasic, 1000},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			want := []*Frame{
				{Width: 20, Height: 10, Pixels: testPixels(20, 10, 1), FrameTimestamp: 1.5},
				{Width: 16, Height: 16, Pixels: testPixels(16, 16, 2), FrameTimestamp: 2.5},
			}

			wire := encodeFrames(t, tc.variant, tc.maxChunk, nil, want)

			r, err := NewReassembler(HeaderPrefixed{Variant: tc.variant}, 64<<10)
			if err != nil {
				t.Fatalf("NewReassembler() error = %v", err)
			}
			got, err := r.Push(wire)
			if err != nil {
				t.Fatalf("Push() error = %v", err)
			}
			if len(got) != len(want) {
				t.Fatalf("decoded %d frames, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i].Width != want[i].Width || got[i].Height != want[i].Height {
					t.Errorf("frame %d dims = %dx%d, want %dx%d",
						i, got[i].Width, got[i].Height, want[i].Width, want[i].Height)
				}
				if !bytes.Equal(got[i].Pixels, want[i].Pixels) {
					t.Errorf("frame %d payload differs", i)
				}
				if tc.variant == protocol.VariantStamped && got[i].FrameTimestamp != want[i].FrameTimestamp {
					t.Errorf("frame %d timestamp = %v, want %v",
						i, got[i].FrameTimestamp, want[i].FrameTimestamp)
				}
			}
		})
	}
}

func TestRoundTripPoseStamp(t *testing.T) {
	poses := pose.NewCorrelator()
	poses.Observe(protocol.PoseSample{Timestamp: 99.5, ID: 41, HasID: true})

	in := []*Frame{{Width: 8, Height: 8, Pixels: testPixels(8, 8, 0), FrameTimestamp: 100.0}}
	wire := encodeFrames(t, protocol.VariantStamped, 0, poses, in)

	r, _ := NewReassembler(HeaderPrefixed{Variant: protocol.VariantStamped}, 64<<10)
	got, err := r.Push(wire)
	if err != nil || len(got) != 1 {
		t.Fatalf("Push() = %d frames, %v", len(got), err)
	}
	if got[0].PoseID != 41 || got[0].PoseTimestamp != 99.5 {
		t.Errorf("pose stamp = id %d ts %v, want id 41 ts 99.5", got[0].PoseID, got[0].PoseTimestamp)
	}
}

// Split-read invariance: however a valid byte sequence is fragmented,
// the reassembler emits the identical frame sequence.
func TestSplitReadInvariance(t *testing.T) {
	want := []*Frame{
		{Width: 30, Height: 20, Pixels: testPixels(30, 20, 5), FrameTimestamp: 1},
		{Width: 10, Height: 10, Pixels: testPixels(10, 10, 6), FrameTimestamp: 2},
		{Width: 25, Height: 4, Pixels: testPixels(25, 4, 7), FrameTimestamp: 3},
	}
	wire := encodeFrames(t, protocol.VariantStamped, 0, nil, want)

	for seed := int64(0); seed < 20; seed++ {
		rng := rand.New(rand.NewSource(seed))

		r, err := NewReassembler(HeaderPrefixed{Variant: protocol.VariantStamped}, 16<<10)
		if err != nil {
			t.Fatalf("NewReassembler() error = %v", err)
		}

		var got []*Frame
		rest := wire
		for len(rest) > 0 {
			n := 1 + rng.Intn(len(rest))
			frames, err := r.Push(rest[:n])
			if err != nil {
				t.Fatalf("seed %d: Push() error = %v", seed, err)
			}
			got = append(got, frames...)
			rest = rest[n:]
		}

		if len(got) != len(want) {
			t.Fatalf("seed %d: decoded %d frames, want %d", seed, len(got), len(want))
		}
		for i := range want {
			if !bytes.Equal(got[i].Pixels, want[i].Pixels) {
				t.Errorf("seed %d: frame %d payload differs", seed, i)
			}
		}
		if r.Buffered() != 0 {
			t.Errorf("seed %d: %d bytes left buffered", seed, r.Buffered())
		}
	}
}

// Scenario A: a 6,718,464-byte fixed-size frame delivered across reads
// of random sizes between 1 and 200,000 bytes yields exactly one frame.
func TestFixedSizeLargeFrameAcrossRandomReads(t *testing.T) {
	const frameSize = 6_718_464 // 1296x1296 RGBA

	payload := make([]byte, frameSize)
	rng := rand.New(rand.NewSource(42))
	rng.Read(payload)

	r, err := NewReassembler(FixedSize{Size: frameSize, Width: 1296, Height: 1296}, 8<<20)
	if err != nil {
		t.Fatalf("NewReassembler() error = %v", err)
	}

	var got []*Frame
	rest := payload
	reads := 0
	for len(rest) > 0 {
		n := 1 + rng.Intn(200_000)
		if n > len(rest) {
			n = len(rest)
		}
		frames, err := r.Push(rest[:n])
		if err != nil {
			t.Fatalf("Push() error = %v", err)
		}
		got = append(got, frames...)
		rest = rest[n:]
		reads++
	}
	t.Logf("delivered in %d reads", reads)

	if len(got) != 1 {
		t.Fatalf("decoded %d frames, want exactly 1", len(got))
	}
	if len(got[0].Pixels) != frameSize {
		t.Errorf("frame size = %d, want %d", len(got[0].Pixels), frameSize)
	}
	if !bytes.Equal(got[0].Pixels, payload) {
		t.Error("payload not byte-identical")
	}
	if got[0].Width != 1296 || got[0].Height != 1296 {
		t.Errorf("dims = %dx%d, want 1296x1296", got[0].Width, got[0].Height)
	}
}

// Scenario B: a Basic message for 640x480 with payloadLength 1,228,800
// in one chunk decodes to a pixel buffer of exactly that length.
func TestBasicSingleChunk640x480(t *testing.T) {
	const payloadLen = 640 * 480 * protocol.BytesPerPixel // 1,228,800

	pixels := testPixels(640, 480, 9)
	wire := encodeFrames(t, protocol.VariantBasic, 0, nil, []*Frame{
		{Width: 640, Height: 480, Pixels: pixels},
	})

	r, err := NewReassembler(HeaderPrefixed{Variant: protocol.VariantBasic}, 2<<20)
	if err != nil {
		t.Fatalf("NewReassembler() error = %v", err)
	}
	got, err := r.Push(wire)
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("decoded %d frames, want 1", len(got))
	}
	if len(got[0].Pixels) != payloadLen {
		t.Errorf("pixel buffer length = %d, want %d", len(got[0].Pixels), payloadLen)
	}
}

// Scenario D: a declared message larger than the buffer capacity is a
// protocol fault; frames already extracted from the same buffer are
// unaffected and already delivered.
func TestDeclaredMessageExceedsCapacity(t *testing.T) {
	small := &Frame{Width: 4, Height: 4, Pixels: testPixels(4, 4, 1)}
	wire := encodeFrames(t, protocol.VariantBasic, 0, nil, []*Frame{small})

	// Then a header for a 640x480 frame, far beyond the 4KiB capacity.
	big, err := protocol.EncodeHeader(protocol.VariantBasic, &protocol.FrameHeader{
		Width: 640, Height: 480, PayloadLength: 640 * 480 * protocol.BytesPerPixel, ChunkCount: 1,
	})
	if err != nil {
		t.Fatalf("EncodeHeader() error = %v", err)
	}
	wire = append(wire, big...)

	r, err := NewReassembler(HeaderPrefixed{Variant: protocol.VariantBasic}, 4<<10)
	if err != nil {
		t.Fatalf("NewReassembler() error = %v", err)
	}
	got, err := r.Push(wire)

	if len(got) != 1 || !bytes.Equal(got[0].Pixels, small.Pixels) {
		t.Errorf("earlier frame lost: got %d frames", len(got))
	}
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("Push() error = %v, want *ProtocolError", err)
	}
	if pe.Declared == 0 || pe.Actual != 4<<10 {
		t.Errorf("fault context = declared %d actual %d, want declared>0 actual %d",
			pe.Declared, pe.Actual, 4<<10)
	}
}

func TestChunkLengthMismatch(t *testing.T) {
	// Header declares payload 32 in 2 chunks, but the chunks sum to 24.
	e := protocol.NewEncoder()
	hdr := &protocol.FrameHeader{Width: 4, Height: 2, PayloadLength: 32, ChunkCount: 2}
	if err := protocol.EncodeHeaderTo(e, protocol.VariantBasic, hdr); err != nil {
		t.Fatalf("EncodeHeaderTo() error = %v", err)
	}
	e.WriteChunk(make([]byte, 16))
	e.WriteChunk(make([]byte, 8))
	// Pad so the reassembler sees the full declared message length.
	e.WriteBytes(make([]byte, 8))

	r, _ := NewReassembler(HeaderPrefixed{Variant: protocol.VariantBasic}, 4<<10)
	_, err := r.Push(e.Bytes())

	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("Push() error = %v, want *ProtocolError", err)
	}
}

func TestChunkOverrunDeclaredPayload(t *testing.T) {
	// One chunk longer than the declared payload.
	e := protocol.NewEncoder()
	hdr := &protocol.FrameHeader{Width: 4, Height: 2, PayloadLength: 16, ChunkCount: 1}
	if err := protocol.EncodeHeaderTo(e, protocol.VariantBasic, hdr); err != nil {
		t.Fatalf("EncodeHeaderTo() error = %v", err)
	}
	e.WriteUint32(24)
	e.WriteBytes(make([]byte, 24))

	r, _ := NewReassembler(HeaderPrefixed{Variant: protocol.VariantBasic}, 4<<10)
	_, err := r.Push(e.Bytes()[:hdr.MessageSize(protocol.VariantBasic)])

	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("Push() error = %v, want *ProtocolError", err)
	}
	if pe.Declared != 16 {
		t.Errorf("Declared = %d, want 16", pe.Declared)
	}
}

func TestMalformedHeaderIsFatal(t *testing.T) {
	// Zero width fails structural validation.
	e := protocol.NewEncoder()
	e.WriteUint32(0)   // width
	e.WriteUint32(480) // height
	e.WriteUint32(16)  // payloadLength
	e.WriteUint32(1)   // chunkCount

	r, _ := NewReassembler(HeaderPrefixed{Variant: protocol.VariantBasic}, 4<<10)
	_, err := r.Push(e.Bytes())

	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("Push() error = %v, want *ProtocolError", err)
	}
	if !errors.Is(err, protocol.ErrZeroDimension) {
		t.Errorf("cause = %v, want ErrZeroDimension", err)
	}
}

// Capacity bound: the buffer never grows; filling it without ever
// completing a message is a protocol fault, not a resize or a crash.
func TestBufferFullWithoutMessage(t *testing.T) {
	r, err := NewReassembler(FixedSize{Size: 100}, 100)
	if err != nil {
		t.Fatalf("NewReassembler() error = %v", err)
	}

	// 99 bytes: not yet a message, buffer nearly full.
	if _, err := r.Push(make([]byte, 99)); err != nil {
		t.Fatalf("Push(99) error = %v", err)
	}
	// Two more bytes: the first completes the message, the second
	// starts the next one. No overflow.
	frames, err := r.Push(make([]byte, 2))
	if err != nil {
		t.Fatalf("Push(2) error = %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("decoded %d frames, want 1", len(frames))
	}
}

func TestFixedSizeLargerThanCapacity(t *testing.T) {
	if _, err := NewReassembler(FixedSize{Size: 200}, 100); !errors.Is(err, ErrCapacityConfig) {
		t.Errorf("NewReassembler() error = %v, want ErrCapacityConfig", err)
	}
}

func TestHeaderPrefixedBadVariant(t *testing.T) {
	if _, err := NewReassembler(HeaderPrefixed{Variant: protocol.VariantFixed}, 1024); err == nil {
		t.Error("NewReassembler() accepted VariantFixed for header-prefixed framing")
	}
}
