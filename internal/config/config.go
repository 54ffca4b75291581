package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/framelink-dev/framelink/pkg/protocol"
	"github.com/framelink-dev/framelink/pkg/stream"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "framelink.json"

	// DefaultNetwork is the default endpoint network.
	DefaultNetwork = "tcp"

	// DefaultAddress is the default frame endpoint address.
	DefaultAddress = "127.0.0.1:9877"

	// DefaultPoseAddress is the default pose side-channel address.
	// Empty disables the side channel.
	DefaultPoseAddress = ""

	// DefaultDebugAddress is the default debug HTTP listen address.
	DefaultDebugAddress = "127.0.0.1:9878"
)

// Config represents the complete framelink.json configuration.
type Config struct {
	// Endpoint is the frame stream endpoint.
	Endpoint EndpointConfig `json:"endpoint,omitempty"`

	// Stream contains wire format and buffering settings.
	Stream StreamConfig `json:"stream,omitempty"`

	// Pose contains pose side-channel settings.
	Pose PoseConfig `json:"pose,omitempty"`

	// Archive contains frame persistence settings.
	Archive ArchiveConfig `json:"archive,omitempty"`

	// Debug contains the metrics/status HTTP server settings.
	Debug DebugConfig `json:"debug,omitempty"`

	// configPath stores the path the config was loaded from.
	configPath string
}

// EndpointConfig identifies where frames flow.
type EndpointConfig struct {
	// Network is "tcp", "unix", or "ws".
	Network string `json:"network,omitempty"`

	// Address is the dial or listen address. For "ws" this is a full
	// URL, e.g. "ws://host:port/frames".
	Address string `json:"address,omitempty"`

	// DialTimeout bounds connection attempts (e.g. "5s").
	DialTimeout string `json:"dialTimeout,omitempty"`

	// RedialInterval is the fixed backoff between sender reconnect
	// attempts (e.g. "1s").
	RedialInterval string `json:"redialInterval,omitempty"`
}

// StreamConfig contains wire format and buffering settings.
type StreamConfig struct {
	// Variant is the header layout: "fixed", "basic", or "stamped".
	Variant string `json:"variant,omitempty"`

	// BufferCapacity is the receive buffer size in bytes. Must cover
	// the largest message the sender emits.
	BufferCapacity int `json:"bufferCapacity,omitempty"`

	// MaxPayload rejects frames declaring more payload than this.
	MaxPayload int `json:"maxPayload,omitempty"`

	// MaxChunkSize splits sent payloads into chunks of at most this
	// many bytes. Zero sends one chunk. Basic headers only.
	MaxChunkSize int `json:"maxChunkSize,omitempty"`

	// IdleReadTimeout closes silent connections (e.g. "30s").
	// "off" disables the deadline.
	IdleReadTimeout string `json:"idleReadTimeout,omitempty"`

	// QueueDepth is the dispatcher queue length in frames.
	QueueDepth int `json:"queueDepth,omitempty"`

	// Fixed carries the out-of-band frame geometry for the "fixed"
	// variant. Ignored otherwise.
	Fixed FixedConfig `json:"fixed,omitempty"`
}

// FixedConfig is the agreed geometry for headerless streams.
type FixedConfig struct {
	Width  uint32 `json:"width,omitempty"`
	Height uint32 `json:"height,omitempty"`
}

// PoseConfig contains pose side-channel settings.
type PoseConfig struct {
	// Address is a tcp listen/dial address for newline-delimited pose
	// JSON. Empty disables the socket channel.
	Address string `json:"address,omitempty"`

	// Broker is an MQTT broker address, host:port. Empty disables the
	// MQTT feed.
	Broker string `json:"broker,omitempty"`

	// Topic is the MQTT topic carrying pose messages.
	Topic string `json:"topic,omitempty"`

	// ClientID identifies this process to the broker.
	ClientID string `json:"clientId,omitempty"`
}

// ArchiveConfig contains frame persistence settings.
type ArchiveConfig struct {
	// Dir is a local capture directory. Empty disables disk capture.
	Dir string `json:"dir,omitempty"`

	// S3Bucket archives frames to S3 when set.
	S3Bucket string `json:"s3Bucket,omitempty"`

	// S3Prefix is the key prefix inside the bucket.
	S3Prefix string `json:"s3Prefix,omitempty"`
}

// DebugConfig contains the metrics/status HTTP server settings.
type DebugConfig struct {
	// Address is the listen address for /metrics, /healthz and
	// /status. "off" disables the server.
	Address string `json:"address,omitempty"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Endpoint: EndpointConfig{
			Network:        DefaultNetwork,
			Address:        DefaultAddress,
			DialTimeout:    "5s",
			RedialInterval: "1s",
		},
		Stream: StreamConfig{
			Variant:         protocol.VariantStamped.String(),
			BufferCapacity:  stream.DefaultBufferCapacity,
			MaxPayload:      protocol.DefaultMaxPayload,
			IdleReadTimeout: "30s",
			QueueDepth:      stream.DefaultQueueDepth,
		},
		Pose: PoseConfig{
			Address:  DefaultPoseAddress,
			Topic:    "framelink/pose",
			ClientID: "framelink-recv",
		},
		Debug: DebugConfig{
			Address: DefaultDebugAddress,
		},
	}
}

// Load reads configuration from the specified directory. A missing
// framelink.json yields the defaults.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	cfg := New()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Missing file is fine; run on defaults plus environment.
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.configPath = path
		cfg.applyDefaults()
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveTo writes the configuration as indented JSON.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	c.configPath = path
	return nil
}

// Path returns the path the config was loaded from, if any.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in defaults for fields the file left empty.
func (c *Config) applyDefaults() {
	d := New()
	if c.Endpoint.Network == "" {
		c.Endpoint.Network = d.Endpoint.Network
	}
	if c.Endpoint.Address == "" {
		c.Endpoint.Address = d.Endpoint.Address
	}
	if c.Endpoint.DialTimeout == "" {
		c.Endpoint.DialTimeout = d.Endpoint.DialTimeout
	}
	if c.Endpoint.RedialInterval == "" {
		c.Endpoint.RedialInterval = d.Endpoint.RedialInterval
	}
	if c.Stream.Variant == "" {
		c.Stream.Variant = d.Stream.Variant
	}
	if c.Stream.BufferCapacity == 0 {
		c.Stream.BufferCapacity = d.Stream.BufferCapacity
	}
	if c.Stream.MaxPayload == 0 {
		c.Stream.MaxPayload = d.Stream.MaxPayload
	}
	if c.Stream.IdleReadTimeout == "" {
		c.Stream.IdleReadTimeout = d.Stream.IdleReadTimeout
	}
	if c.Stream.QueueDepth == 0 {
		c.Stream.QueueDepth = d.Stream.QueueDepth
	}
	if c.Pose.Topic == "" {
		c.Pose.Topic = d.Pose.Topic
	}
	if c.Pose.ClientID == "" {
		c.Pose.ClientID = d.Pose.ClientID
	}
	if c.Debug.Address == "" {
		c.Debug.Address = d.Debug.Address
	}
}

// applyEnv overrides deployment-sensitive fields from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("FRAMELINK_ADDR"); v != "" {
		c.Endpoint.Address = v
	}
	if v := os.Getenv("FRAMELINK_NETWORK"); v != "" {
		c.Endpoint.Network = v
	}
	if v := os.Getenv("FRAMELINK_VARIANT"); v != "" {
		c.Stream.Variant = v
	}
	if v := os.Getenv("FRAMELINK_DEBUG_ADDR"); v != "" {
		c.Debug.Address = v
	}
}

// Validate rejects configurations that cannot produce a working
// process. Misconfiguration is a startup failure, never a silent
// fallback at stream time.
func (c *Config) Validate() error {
	switch c.Endpoint.Network {
	case "tcp", "unix", "ws":
	default:
		return fmt.Errorf("config: unsupported endpoint network %q", c.Endpoint.Network)
	}

	variant, err := protocol.ParseVariant(c.Stream.Variant)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if variant == protocol.VariantFixed {
		if c.Stream.Fixed.Width == 0 || c.Stream.Fixed.Height == 0 {
			return fmt.Errorf("config: fixed variant requires stream.fixed.width and height")
		}
	}
	if c.Stream.MaxChunkSize > 0 && variant != protocol.VariantBasic {
		return fmt.Errorf("config: maxChunkSize requires the basic variant")
	}

	if c.Stream.BufferCapacity <= 0 {
		return fmt.Errorf("config: bufferCapacity must be positive, got %d", c.Stream.BufferCapacity)
	}
	if c.Stream.MaxPayload <= 0 || c.Stream.MaxPayload > protocol.HardMaxPayload {
		return fmt.Errorf("config: maxPayload must be in (0, %d], got %d",
			protocol.HardMaxPayload, c.Stream.MaxPayload)
	}
	if c.Stream.QueueDepth <= 0 {
		return fmt.Errorf("config: queueDepth must be positive, got %d", c.Stream.QueueDepth)
	}

	for _, f := range []struct {
		name, value string
	}{
		{"endpoint.dialTimeout", c.Endpoint.DialTimeout},
		{"endpoint.redialInterval", c.Endpoint.RedialInterval},
	} {
		if _, err := time.ParseDuration(f.value); err != nil {
			return fmt.Errorf("config: %s: %w", f.name, err)
		}
	}
	if _, err := c.ParseIdleReadTimeout(); err != nil {
		return err
	}

	if c.Pose.Broker != "" && c.Pose.Topic == "" {
		return fmt.Errorf("config: pose.broker set without pose.topic")
	}
	return nil
}

// Variant returns the parsed header variant. Call Validate first.
func (c *Config) Variant() protocol.Variant {
	v, _ := protocol.ParseVariant(c.Stream.Variant)
	return v
}

// ParseDialTimeout returns the endpoint dial timeout.
func (c *Config) ParseDialTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Endpoint.DialTimeout)
	return d
}

// ParseRedialInterval returns the sender reconnect backoff.
func (c *Config) ParseRedialInterval() time.Duration {
	d, _ := time.ParseDuration(c.Endpoint.RedialInterval)
	return d
}

// ParseIdleReadTimeout returns the idle read timeout; "off" maps to a
// negative duration, which disables the deadline.
func (c *Config) ParseIdleReadTimeout() (time.Duration, error) {
	if c.Stream.IdleReadTimeout == "off" {
		return -1, nil
	}
	d, err := time.ParseDuration(c.Stream.IdleReadTimeout)
	if err != nil {
		return 0, fmt.Errorf("config: stream.idleReadTimeout: %w", err)
	}
	return d, nil
}

// DebugEnabled reports whether the debug HTTP server should run.
func (c *Config) DebugEnabled() bool {
	return c.Debug.Address != "" && c.Debug.Address != "off"
}
