package pose

import (
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/framelink-dev/framelink/pkg/protocol"
)

// FeedConfig configures an MQTT pose feed.
type FeedConfig struct {
	// Broker is the broker address, host:port.
	Broker string

	// Topic is the topic carrying pose messages.
	Topic string

	// ClientID identifies this subscriber to the broker.
	ClientID string

	// ConnectTimeout bounds the initial connect. Default: 5s.
	ConnectTimeout time.Duration

	// OnUnknown receives raw bytes of messages that did not parse as
	// pose samples. Optional; unknown messages are never dropped
	// silently when it is set.
	OnUnknown func(raw []byte)
}

// Feed subscribes to an MQTT topic and routes pose messages into a
// Correlator.
type Feed struct {
	cfg        FeedConfig
	correlator *Correlator
	client     mqtt.Client
	logger     *slog.Logger
}

// NewFeed creates a feed targeting the given correlator.
func NewFeed(cfg FeedConfig, c *Correlator) *Feed {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	return &Feed{
		cfg:        cfg,
		correlator: c,
		logger:     slog.Default().With("component", "posefeed"),
	}
}

// Start connects to the broker and subscribes. The paho client
// auto-reconnects and re-subscribes after broker outages.
func (f *Feed) Start() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", f.cfg.Broker))
	opts.SetClientID(f.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		f.logger.Info("mqtt connected", "broker", f.cfg.Broker, "topic", f.cfg.Topic)
		token := c.Subscribe(f.cfg.Topic, 0, f.handleMessage)
		go func() {
			token.Wait()
			if err := token.Error(); err != nil {
				f.logger.Error("mqtt subscribe failed", "topic", f.cfg.Topic, "error", err)
			}
		}()
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		f.logger.Warn("mqtt connection lost, auto-reconnecting", "error", err)
	}

	f.client = mqtt.NewClient(opts)

	token := f.client.Connect()
	if !token.WaitTimeout(f.cfg.ConnectTimeout) {
		return fmt.Errorf("pose feed: mqtt connect timeout after %s", f.cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("pose feed: mqtt connect: %w", err)
	}
	return nil
}

// Stop disconnects from the broker.
func (f *Feed) Stop() {
	if f.client != nil && f.client.IsConnected() {
		f.client.Disconnect(250)
	}
}

func (f *Feed) handleMessage(_ mqtt.Client, m mqtt.Message) {
	msg := protocol.ParsePoseMessage(m.Payload())
	switch msg.Kind {
	case protocol.KindPose:
		f.correlator.Observe(*msg.Pose)
	case protocol.KindUnknown:
		if f.cfg.OnUnknown != nil {
			f.cfg.OnUnknown(msg.Raw)
			return
		}
		f.logger.Warn("unrecognized pose message", "bytes", len(msg.Raw))
	}
}
