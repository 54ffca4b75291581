package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/framelink-dev/framelink/internal/config"
	"github.com/framelink-dev/framelink/internal/debugsrv"
	"github.com/framelink-dev/framelink/pkg/archive"
	"github.com/framelink-dev/framelink/pkg/pose"
	"github.com/framelink-dev/framelink/pkg/protocol"
	"github.com/framelink-dev/framelink/pkg/stream"
	"github.com/framelink-dev/framelink/pkg/transport"
)

func recvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Receive and reassemble frame streams",
		Long: `Listen on the configured endpoint, reassemble frames from every
connection, and correlate them with pose samples from the side
channel. Frames are archived when a capture directory or S3 bucket
is configured, otherwise consumed and counted.

The debug HTTP server exposes /metrics, /healthz and /status.

Examples:
  framelink recv
  framelink recv --config /etc/framelink`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runRecv(cfg)
		},
	}
	return cmd
}

// receiver holds the process-wide pipeline shared by all connections.
type receiver struct {
	cfg        *config.Config
	metrics    *stream.Metrics
	correlator *pose.Correlator
	dispatcher *stream.Dispatcher
	policy     stream.SizingPolicy
	logger     *slog.Logger

	activeSessions atomic.Int64
	framesConsumed atomic.Uint64
	sessionsTotal  atomic.Uint64
}

func runRecv(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cfg.Endpoint.Network {
	case "tcp", "unix":
	default:
		return fmt.Errorf("recv supports tcp and unix endpoints, not %q", cfg.Endpoint.Network)
	}

	r := &receiver{
		cfg:        cfg,
		metrics:    stream.NewMetrics(),
		correlator: pose.NewCorrelator(),
		logger:     slog.Default().With("component", "recv"),
	}

	idleTimeout, err := cfg.ParseIdleReadTimeout()
	if err != nil {
		return err
	}
	if cfg.Variant() == protocol.VariantFixed {
		w, h := cfg.Stream.Fixed.Width, cfg.Stream.Fixed.Height
		r.policy = stream.FixedSize{
			Size:   int(uint64(w) * uint64(h) * protocol.BytesPerPixel),
			Width:  w,
			Height: h,
		}
	} else {
		r.policy = stream.HeaderPrefixed{
			Variant:    cfg.Variant(),
			MaxPayload: cfg.Stream.MaxPayload,
		}
	}

	r.dispatcher, err = stream.NewDispatcher(r.correlator, stream.DispatcherConfig{
		QueueDepth: cfg.Stream.QueueDepth,
		Metrics:    r.metrics,
		Tracer:     stream.NewDispatchTracer(),
	})
	if err != nil {
		return err
	}

	// Frame consumer: archive when configured, otherwise drain and count.
	sink, err := r.startConsumer(ctx)
	if err != nil {
		return err
	}

	if cfg.Pose.Broker != "" {
		feed := pose.NewFeed(pose.FeedConfig{
			Broker:   cfg.Pose.Broker,
			Topic:    cfg.Pose.Topic,
			ClientID: cfg.Pose.ClientID,
		}, r.correlator)
		if err := feed.Start(); err != nil {
			return err
		}
		defer feed.Stop()
	}

	var wg sync.WaitGroup
	if cfg.Pose.Address != "" {
		ln, err := net.Listen("tcp", cfg.Pose.Address)
		if err != nil {
			return fmt.Errorf("pose listen: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.servePose(ctx, ln)
		}()
		defer ln.Close()
	}

	if cfg.DebugEnabled() {
		dbg := debugsrv.New(cfg.Debug.Address, nil, r.status)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dbg.Start(); err != nil {
				r.logger.Error("debug server failed", "error", err)
			}
		}()
		defer dbg.Shutdown(context.Background())
	}

	ln, err := net.Listen(cfg.Endpoint.Network, cfg.Endpoint.Address)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	r.logger.Info("listening",
		"network", cfg.Endpoint.Network,
		"address", cfg.Endpoint.Address,
		"variant", cfg.Stream.Variant,
		"buffer_capacity", cfg.Stream.BufferCapacity)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var sessions sync.WaitGroup
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			r.logger.Warn("accept failed", "error", err)
			continue
		}
		sessions.Add(1)
		go func() {
			defer sessions.Done()
			r.serveSession(ctx, c, idleTimeout)
		}()
	}

	sessions.Wait()
	r.dispatcher.Close()
	if sink != nil {
		sink.Wait()
	}
	stop()
	wg.Wait()
	r.logger.Info("shut down", "frames", r.framesConsumed.Load())
	return nil
}

// serveSession runs one connection to completion.
func (r *receiver) serveSession(ctx context.Context, c net.Conn, idleTimeout time.Duration) {
	s, err := stream.NewSession(transport.NewConn(c), r.dispatcher, stream.SessionConfig{
		Policy:          r.policy,
		BufferCapacity:  r.cfg.Stream.BufferCapacity,
		IdleReadTimeout: idleTimeout,
		Metrics:         r.metrics,
	})
	if err != nil {
		r.logger.Error("session setup failed", "error", err)
		c.Close()
		return
	}

	r.activeSessions.Add(1)
	r.sessionsTotal.Add(1)
	end := s.Run(ctx)
	r.activeSessions.Add(-1)

	if end.Err != nil {
		r.logger.Warn("session failed",
			"session_id", s.ID(), "frames", end.Frames, "error", end.Err)
	}
}

// startConsumer wires the frame channel to its consumer and returns
// the archive sink, if any.
func (r *receiver) startConsumer(ctx context.Context) (*archive.Sink, error) {
	store, err := r.buildStore(ctx)
	if err != nil {
		return nil, err
	}
	if store != nil {
		sink := archive.NewSink(store)
		sink.Run(ctx, r.counted(r.dispatcher.Frames()))
		return sink, nil
	}

	go func() {
		for range r.counted(r.dispatcher.Frames()) {
		}
	}()
	return nil, nil
}

// counted re-exposes the frame channel, counting consumed frames for
// the status endpoint.
func (r *receiver) counted(in <-chan *stream.Frame) <-chan *stream.Frame {
	out := make(chan *stream.Frame)
	go func() {
		defer close(out)
		for f := range in {
			r.framesConsumed.Add(1)
			out <- f
		}
	}()
	return out
}

func (r *receiver) buildStore(ctx context.Context) (archive.Store, error) {
	switch {
	case r.cfg.Archive.S3Bucket != "":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("aws config: %w", err)
		}
		return archive.NewS3Store(s3.NewFromConfig(awsCfg),
			r.cfg.Archive.S3Bucket, r.cfg.Archive.S3Prefix), nil
	case r.cfg.Archive.Dir != "":
		return archive.NewDiskStore(r.cfg.Archive.Dir)
	default:
		return nil, nil
	}
}

// servePose accepts side-channel connections carrying newline-delimited
// pose JSON and routes each line through the dispatcher.
func (r *receiver) servePose(ctx context.Context, ln net.Listener) {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		go func() {
			defer c.Close()
			sc := bufio.NewScanner(c)
			sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
			for sc.Scan() {
				line := append([]byte(nil), sc.Bytes()...)
				r.dispatcher.HandlePose(line)
			}
		}()
	}
}

// status is the /status snapshot.
func (r *receiver) status() any {
	accepted, rejected := r.correlator.Stats()
	st := map[string]any{
		"version":         version,
		"active_sessions": r.activeSessions.Load(),
		"sessions_total":  r.sessionsTotal.Load(),
		"frames_consumed": r.framesConsumed.Load(),
		"frames_dropped":  r.dispatcher.Dropped(),
		"pose_accepted":   accepted,
		"pose_rejected":   rejected,
		"endpoint":        r.cfg.Endpoint.Network + "://" + r.cfg.Endpoint.Address,
		"variant":         r.cfg.Stream.Variant,
	}
	if sample, ok := r.correlator.Current(); ok {
		st["pose_id"] = sample.ID
		st["pose_timestamp"] = sample.Timestamp
	}
	return st
}
