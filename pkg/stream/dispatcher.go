package stream

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"

	"github.com/framelink-dev/framelink/pkg/pose"
	"github.com/framelink-dev/framelink/pkg/protocol"
)

// DefaultQueueDepth is the dispatcher queue depth when none is
// configured. Deep enough to ride out consumer hiccups, shallow enough
// that a stalled consumer sees recent frames, not a backlog.
const DefaultQueueDepth = 16

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// QueueDepth is the bounded frame queue size. Default:
	// DefaultQueueDepth.
	QueueDepth int

	// OnUnknown receives raw bytes of side-channel messages that did
	// not parse as pose samples. Optional.
	OnUnknown func(raw []byte)

	// Metrics records dispatch outcomes. Optional.
	Metrics *Metrics

	// Tracer emits a span per dispatched frame. Optional.
	Tracer trace.Tracer
}

// Dispatcher hands reassembled frames to the consumer through a bounded
// queue and routes side-channel pose messages into the correlator.
//
// Dispatch never blocks: when the consumer cannot keep up, the oldest
// queued frame is discarded to make room. Blocking here would stall the
// read loop and risk transport-level timeouts, and for live video the
// freshest frame is worth more than a complete backlog.
type Dispatcher struct {
	frames     chan *Frame
	correlator *pose.Correlator
	cfg        DispatcherConfig
	logger     *slog.Logger

	dropped   atomic.Uint64
	closeOnce sync.Once
}

// NewDispatcher creates a dispatcher feeding the given correlator.
func NewDispatcher(correlator *pose.Correlator, cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.QueueDepth == 0 {
		cfg.QueueDepth = DefaultQueueDepth
	}
	if cfg.QueueDepth < 0 {
		return nil, ErrQueueConfig
	}
	return &Dispatcher{
		frames:     make(chan *Frame, cfg.QueueDepth),
		correlator: correlator,
		cfg:        cfg,
		logger:     slog.Default().With("component", "dispatcher"),
	}, nil
}

// Frames is the consumer side of the queue. Ownership of each frame's
// pixel buffer transfers to the receiver.
func (d *Dispatcher) Frames() <-chan *Frame {
	return d.frames
}

// Dispatch queues a frame, displacing the oldest queued frame if the
// queue is full.
func (d *Dispatcher) Dispatch(f *Frame) {
	displaced := false
	for {
		select {
		case d.frames <- f:
			d.cfg.Metrics.frameReceived(len(f.Pixels))
			traceDispatch(d.cfg.Tracer, f, displaced)
			return
		default:
		}

		select {
		case <-d.frames:
			displaced = true
			d.dropped.Add(1)
			d.cfg.Metrics.frameDropped()
		default:
			// A consumer drained the queue between the two selects;
			// retry the send.
		}
	}
}

// HandlePose parses one side-channel message and feeds the correlator.
// Unrecognized messages go to the OnUnknown callback when set, otherwise
// they are logged; they are never dropped silently.
func (d *Dispatcher) HandlePose(raw []byte) {
	msg := protocol.ParsePoseMessage(raw)
	switch msg.Kind {
	case protocol.KindPose:
		accepted := d.correlator.Observe(*msg.Pose)
		d.cfg.Metrics.poseObserved(accepted)
	case protocol.KindUnknown:
		d.cfg.Metrics.poseUnknownMsg()
		if d.cfg.OnUnknown != nil {
			d.cfg.OnUnknown(msg.Raw)
			return
		}
		d.logger.Warn("unrecognized side-channel message", "bytes", len(msg.Raw))
	}
}

// Dropped returns how many frames were displaced from the queue.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close closes the frame channel. Call only after every producer
// session has finished; idempotent.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.frames)
	})
}
