package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/framelink-dev/framelink/pkg/stream"
)

// ErrClosed is returned by Put after the store has been closed.
var ErrClosed = errors.New("archive: store closed")

// Record is the metadata written alongside each frame blob.
type Record struct {
	Sequence       uint64  `json:"sequence"`
	Width          uint32  `json:"width"`
	Height         uint32  `json:"height"`
	PayloadBytes   int     `json:"payload_bytes"`
	FrameTimestamp float64 `json:"frame_timestamp"`
	PoseTimestamp  float64 `json:"pose_timestamp,omitempty"`
	PoseID         uint64  `json:"pose_id,omitempty"`
}

// Store persists one frame per call. Implementations must be safe for
// use from a single Sink goroutine; they need not be concurrency-safe.
type Store interface {
	// Put writes the frame's pixels and metadata under the given
	// sequence number. Sequence numbers are unique per store lifetime.
	Put(ctx context.Context, rec Record, pixels []byte) error

	// Close flushes and releases the store.
	Close() error
}

// Sink drains frames from a channel into a Store. Storage errors are
// logged and counted, never propagated back to the producer: a broken
// archive must not take down a live stream.
type Sink struct {
	store  Store
	logger *slog.Logger

	seq    uint64
	failed uint64

	wg   sync.WaitGroup
	done chan struct{}
}

// NewSink creates a sink over the given store.
func NewSink(store Store) *Sink {
	return &Sink{
		store:  store,
		logger: slog.Default().With("component", "archive"),
		done:   make(chan struct{}),
	}
}

// Run consumes frames until the channel closes or the context is
// cancelled. It runs on its own goroutine; use Wait to join it.
func (s *Sink) Run(ctx context.Context, frames <-chan *stream.Frame) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.done)
		for {
			select {
			case <-ctx.Done():
				return
			case f, ok := <-frames:
				if !ok {
					return
				}
				s.put(ctx, f)
			}
		}
	}()
}

func (s *Sink) put(ctx context.Context, f *stream.Frame) {
	rec := Record{
		Sequence:       s.seq,
		Width:          f.Width,
		Height:         f.Height,
		PayloadBytes:   len(f.Pixels),
		FrameTimestamp: f.FrameTimestamp,
		PoseTimestamp:  f.PoseTimestamp,
		PoseID:         f.PoseID,
	}
	s.seq++

	if err := s.store.Put(ctx, rec, f.Pixels); err != nil {
		s.failed++
		s.logger.Error("frame archive failed",
			"sequence", rec.Sequence,
			"error", err)
	}
}

// Wait blocks until the sink's goroutine has exited.
func (s *Sink) Wait() {
	s.wg.Wait()
}

// Stored returns how many frames were handed to the store, and how
// many of those failed. Only valid after Wait returns.
func (s *Sink) Stored() (total, failed uint64) {
	<-s.done
	return s.seq, s.failed
}

// blobName formats the canonical object name for a sequence number.
// Zero-padding keeps lexical and numeric order identical.
func blobName(seq uint64) string {
	return fmt.Sprintf("%08d", seq)
}
