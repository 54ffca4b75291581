package stream

import (
	"testing"

	"github.com/framelink-dev/framelink/pkg/pose"
	"github.com/framelink-dev/framelink/pkg/protocol"
)

func TestDispatchDropOldest(t *testing.T) {
	d, err := NewDispatcher(pose.NewCorrelator(), DispatcherConfig{QueueDepth: 2})
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}

	for i := 1; i <= 5; i++ {
		d.Dispatch(&Frame{PoseID: uint64(i), Pixels: []byte{byte(i)}})
	}

	if d.Dropped() != 3 {
		t.Errorf("Dropped() = %d, want 3", d.Dropped())
	}

	// The two newest frames survive, in order.
	first := <-d.Frames()
	second := <-d.Frames()
	if first.PoseID != 4 || second.PoseID != 5 {
		t.Errorf("surviving frames = %d, %d, want 4, 5", first.PoseID, second.PoseID)
	}

	select {
	case f := <-d.Frames():
		t.Errorf("unexpected extra frame %d", f.PoseID)
	default:
	}
}

func TestDispatchNeverBlocks(t *testing.T) {
	d, _ := NewDispatcher(pose.NewCorrelator(), DispatcherConfig{QueueDepth: 1})

	done := make(chan struct{})
	go func() {
		defer close(done)
		// No consumer at all; every Dispatch must still return.
		for i := 0; i < 1000; i++ {
			d.Dispatch(&Frame{})
		}
	}()
	<-done

	if d.Dropped() != 999 {
		t.Errorf("Dropped() = %d, want 999", d.Dropped())
	}
}

func TestHandlePoseRouting(t *testing.T) {
	correlator := pose.NewCorrelator()
	var unknown [][]byte
	d, _ := NewDispatcher(correlator, DispatcherConfig{
		OnUnknown: func(raw []byte) { unknown = append(unknown, raw) },
	})

	sample, err := protocol.EncodePoseMessage(protocol.PoseSample{Timestamp: 10, ID: 1, HasID: true})
	if err != nil {
		t.Fatalf("EncodePoseMessage() error = %v", err)
	}
	d.HandlePose(sample)

	cur, ok := correlator.Current()
	if !ok || cur.ID != 1 {
		t.Errorf("Current() = %+v, %v, want id 1", cur, ok)
	}

	d.HandlePose([]byte(`{"status":"calibrating"}`))
	if len(unknown) != 1 {
		t.Fatalf("unknown callback invoked %d times, want 1", len(unknown))
	}
	if string(unknown[0]) != `{"status":"calibrating"}` {
		t.Errorf("unknown raw = %q", unknown[0])
	}
}

func TestDispatcherCloseIdempotent(t *testing.T) {
	d, _ := NewDispatcher(pose.NewCorrelator(), DispatcherConfig{})
	d.Close()
	d.Close()

	if _, ok := <-d.Frames(); ok {
		t.Error("Frames() open after Close")
	}
}
