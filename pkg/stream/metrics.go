package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "framelink").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for frame payload sizes.
	// Default: exponential from 64KiB.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus collectors.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the frame size histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "framelink",
		Buckets:   prometheus.ExponentialBuckets(64<<10, 2, 12),
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus collectors for the frame pipeline. A nil
// *Metrics is valid and records nothing, so instrumentation stays
// optional without branching at every call site.
type Metrics struct {
	framesReceived  prometheus.Counter
	framesSent      prometheus.Counter
	framesDropped   prometheus.Counter
	bytesReceived   prometheus.Counter
	bytesSent       prometheus.Counter
	protocolErrors  prometheus.Counter
	transportErrors prometheus.Counter
	poseAccepted    prometheus.Counter
	poseRejected    prometheus.Counter
	poseUnknown     prometheus.Counter
	activeConns     prometheus.Gauge
	frameBytes      prometheus.Histogram
}

// NewMetrics registers and returns the frame pipeline collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	cfg := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &Metrics{
		framesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "frames_received_total",
			Help:        "Complete frames reassembled from the wire.",
			ConstLabels: cfg.ConstLabels,
		}),
		framesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "frames_sent_total",
			Help:        "Frames encoded and written to the wire.",
			ConstLabels: cfg.ConstLabels,
		}),
		framesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "frames_dropped_total",
			Help:        "Frames dropped by the dispatcher because the consumer fell behind.",
			ConstLabels: cfg.ConstLabels,
		}),
		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "bytes_received_total",
			Help:        "Raw bytes ingested from the transport.",
			ConstLabels: cfg.ConstLabels,
		}),
		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "bytes_sent_total",
			Help:        "Raw bytes written to the transport.",
			ConstLabels: cfg.ConstLabels,
		}),
		protocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "protocol_errors_total",
			Help:        "Fatal protocol faults that closed a connection.",
			ConstLabels: cfg.ConstLabels,
		}),
		transportErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "transport_errors_total",
			Help:        "Transport failures, including idle-read timeouts.",
			ConstLabels: cfg.ConstLabels,
		}),
		poseAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "pose_samples_accepted_total",
			Help:        "Pose samples accepted as newer than the current one.",
			ConstLabels: cfg.ConstLabels,
		}),
		poseRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "pose_samples_rejected_total",
			Help:        "Pose samples rejected as stale or out of order.",
			ConstLabels: cfg.ConstLabels,
		}),
		poseUnknown: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "pose_messages_unknown_total",
			Help:        "Side-channel messages that did not parse as pose samples.",
			ConstLabels: cfg.ConstLabels,
		}),
		activeConns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Name:        "active_connections",
			Help:        "Connections currently in the Open state.",
			ConstLabels: cfg.ConstLabels,
		}),
		frameBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Name:        "frame_payload_bytes",
			Help:        "Payload size of reassembled frames.",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}),
	}
}

func (m *Metrics) frameReceived(payloadBytes int) {
	if m == nil {
		return
	}
	m.framesReceived.Inc()
	m.frameBytes.Observe(float64(payloadBytes))
}

func (m *Metrics) frameSent(wireBytes int) {
	if m == nil {
		return
	}
	m.framesSent.Inc()
	m.bytesSent.Add(float64(wireBytes))
}

func (m *Metrics) frameDropped() {
	if m == nil {
		return
	}
	m.framesDropped.Inc()
}

func (m *Metrics) bytesIn(n int) {
	if m == nil {
		return
	}
	m.bytesReceived.Add(float64(n))
}

func (m *Metrics) protocolError() {
	if m == nil {
		return
	}
	m.protocolErrors.Inc()
}

func (m *Metrics) transportError() {
	if m == nil {
		return
	}
	m.transportErrors.Inc()
}

func (m *Metrics) poseObserved(accepted bool) {
	if m == nil {
		return
	}
	if accepted {
		m.poseAccepted.Inc()
	} else {
		m.poseRejected.Inc()
	}
}

func (m *Metrics) poseUnknownMsg() {
	if m == nil {
		return
	}
	m.poseUnknown.Inc()
}

func (m *Metrics) connOpened() {
	if m == nil {
		return
	}
	m.activeConns.Inc()
}

func (m *Metrics) connClosed() {
	if m == nil {
		return
	}
	m.activeConns.Dec()
}
