package stream

import (
	"testing"

	"github.com/framelink-dev/framelink/pkg/protocol"
)

func TestNewFrameWriterRejectsChunkedStamped(t *testing.T) {
	if _, err := NewFrameWriter(&sinkTransport{}, nil, WriterConfig{
		Variant:      protocol.VariantStamped,
		MaxChunkSize: 4096,
	}); err == nil {
		t.Fatal("NewFrameWriter() error = nil for chunked stamped config")
	}
}

func TestWriteFrameValidation(t *testing.T) {
	tests := []struct {
		name   string
		pixels []byte
		width  uint32
		height uint32
	}{
		{name: "short pixel buffer", pixels: make([]byte, 15), width: 2, height: 2},
		{name: "long pixel buffer", pixels: make([]byte, 20), width: 2, height: 2},
		{name: "zero width", pixels: nil, width: 0, height: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &sinkTransport{}
			w, err := NewFrameWriter(sink, nil, WriterConfig{Variant: protocol.VariantBasic})
			if err != nil {
				t.Fatalf("NewFrameWriter() error = %v", err)
			}
			if err := w.WriteFrame(tt.pixels, tt.width, tt.height, 0); err == nil {
				t.Fatal("WriteFrame() error = nil")
			}
			if sink.buf.Len() != 0 {
				t.Errorf("rejected frame wrote %d bytes", sink.buf.Len())
			}
		})
	}
}

func TestSplitChunks(t *testing.T) {
	tests := []struct {
		name    string
		payload int
		max     int
		want    []int
	}{
		{name: "exact multiple", payload: 12, max: 4, want: []int{4, 4, 4}},
		{name: "remainder", payload: 10, max: 4, want: []int{4, 4, 2}},
		{name: "single", payload: 3, max: 4, want: []int{3}},
		{name: "empty", payload: 0, max: 4, want: []int{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := splitChunks(make([]byte, tt.payload), tt.max)
			if len(chunks) != len(tt.want) {
				t.Fatalf("got %d chunks, want %d", len(chunks), len(tt.want))
			}
			total := 0
			for i, c := range chunks {
				if len(c) != tt.want[i] {
					t.Errorf("chunk %d length = %d, want %d", i, len(c), tt.want[i])
				}
				total += len(c)
			}
			if total != tt.payload {
				t.Errorf("chunk total = %d, want %d", total, tt.payload)
			}
		})
	}
}
