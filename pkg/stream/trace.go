package stream

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Default tracer name for framelink spans.
const defaultTracerName = "framelink"

// TraceOption configures frame dispatch tracing.
type TraceOption func(*traceConfig)

type traceConfig struct {
	tracerName string
}

// WithTracerName sets the tracer name (default: "framelink").
func WithTracerName(name string) TraceOption {
	return func(c *traceConfig) {
		c.tracerName = name
	}
}

// NewDispatchTracer resolves the tracer used for per-frame dispatch
// spans. Pass the result to DispatcherConfig.Tracer; a nil tracer
// disables tracing entirely.
func NewDispatchTracer(opts ...TraceOption) trace.Tracer {
	cfg := traceConfig{tracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&cfg)
	}
	return otel.Tracer(cfg.tracerName)
}

// traceDispatch records one frame hand-off as a span. Spans are cheap
// no-ops unless a real tracer provider is installed.
func traceDispatch(tracer trace.Tracer, f *Frame, dropped bool) {
	if tracer == nil {
		return
	}
	_, span := tracer.Start(context.Background(), "framelink.frame.dispatch")
	span.SetAttributes(
		attribute.Int("frame.width", int(f.Width)),
		attribute.Int("frame.height", int(f.Height)),
		attribute.Int("frame.bytes", len(f.Pixels)),
		attribute.Int64("frame.pose_id", int64(f.PoseID)),
		attribute.Bool("frame.displaced_oldest", dropped),
	)
	span.End()
}
