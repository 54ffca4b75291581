package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/framelink-dev/framelink/internal/config"
	"github.com/framelink-dev/framelink/internal/testpattern"
	"github.com/framelink-dev/framelink/pkg/pose"
	"github.com/framelink-dev/framelink/pkg/stream"
	"github.com/framelink-dev/framelink/pkg/transport"
)

func sendCmd() *cobra.Command {
	var (
		width  uint32
		height uint32
		fps    int
		count  int
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Stream synthetic frames to a receiver",
		Long: `Connect to the configured endpoint and stream a synthetic test
pattern at a fixed rate. When the connection drops, the sender
redials on a fixed interval until interrupted.

Examples:
  framelink send
  framelink send --width=640 --height=480 --fps=30
  framelink send --count=100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runSend(cfg, width, height, fps, count)
		},
	}

	cmd.Flags().Uint32Var(&width, "width", 1296, "Frame width in pixels")
	cmd.Flags().Uint32Var(&height, "height", 1296, "Frame height in pixels")
	cmd.Flags().IntVar(&fps, "fps", 30, "Frames per second")
	cmd.Flags().IntVar(&count, "count", 0, "Stop after this many frames (0 = run until interrupted)")

	return cmd
}

func runSend(cfg *config.Config, width, height uint32, fps, count int) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("frame geometry must be non-zero, got %dx%d", width, height)
	}
	if fps <= 0 {
		return fmt.Errorf("fps must be positive, got %d", fps)
	}
	if cfg.Variant().HeaderSize() == 0 {
		// Headerless streams carry the geometry out of band; the flags
		// must agree with the receiver's config.
		width, height = cfg.Stream.Fixed.Width, cfg.Stream.Fixed.Height
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.Default().With("component", "send")

	// The sender stamps outgoing frames with the freshest pose, so it
	// subscribes to the same feed a receiver would.
	correlator := pose.NewCorrelator()
	if cfg.Pose.Broker != "" {
		feed := pose.NewFeed(pose.FeedConfig{
			Broker:   cfg.Pose.Broker,
			Topic:    cfg.Pose.Topic,
			ClientID: cfg.Pose.ClientID + "-send",
		}, correlator)
		if err := feed.Start(); err != nil {
			return err
		}
		defer feed.Stop()
	}

	gen := testpattern.New(width, height)
	interval := time.Second / time.Duration(fps)
	redial := cfg.ParseRedialInterval()
	sent := 0

	for {
		t, err := dialEndpoint(cfg)
		if err != nil {
			logger.Warn("dial failed, retrying", "error", err, "redial", redial)
			if !sleepCtx(ctx, redial) {
				return nil
			}
			continue
		}
		logger.Info("connected", "remote", t.RemoteAddr(),
			"variant", cfg.Stream.Variant, "geometry", fmt.Sprintf("%dx%d", width, height))

		w, err := stream.NewFrameWriter(t, correlator, stream.WriterConfig{
			Variant:      cfg.Variant(),
			MaxChunkSize: cfg.Stream.MaxChunkSize,
		})
		if err != nil {
			t.Close()
			return err
		}

		err = sendLoop(ctx, w, gen, interval, count, &sent)
		t.Close()
		if err == nil {
			logger.Info("send finished", "frames", sent)
			return nil
		}
		logger.Warn("connection lost, redialing", "error", err, "frames_sent", sent)
		if !sleepCtx(ctx, redial) {
			return nil
		}
	}
}

// sendLoop streams frames until the context ends, the count is
// reached, or a write fails. A nil return means done; an error means
// redial.
func sendLoop(ctx context.Context, w *stream.FrameWriter, gen *testpattern.Generator,
	interval time.Duration, count int, sent *int) error {

	width, height := gen.Size()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		ts := float64(time.Now().UnixNano()) / float64(time.Second)
		if err := w.WriteFrame(gen.Next(), width, height, ts); err != nil {
			return err
		}
		*sent++
		if count > 0 && *sent >= count {
			return nil
		}
	}
}

// dialEndpoint connects using the configured network.
func dialEndpoint(cfg *config.Config) (transport.Transport, error) {
	timeout := cfg.ParseDialTimeout()
	switch cfg.Endpoint.Network {
	case "ws":
		return transport.DialWebsocket(cfg.Endpoint.Address, timeout)
	default:
		return transport.Dial(cfg.Endpoint.Network, cfg.Endpoint.Address, timeout)
	}
}

// sleepCtx waits for d, returning false when the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
