package realtime

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"

	"github.com/teslashibe/go-talk/pkg/audioconv"
)

// Default endpoint and timing values.
const (
	DefaultURL              = "wss://api.openai.com/v1/realtime"
	DefaultModel            = "gpt-4o-realtime-preview"
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultReadTimeout      = 120 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultPingPeriod       = 30 * time.Second
	DefaultConvertTimeout   = 2 * time.Second
)

// Config holds configuration for a Session.
type Config struct {
	// URL is the realtime websocket endpoint. The model is added as a query
	// parameter.
	URL string

	// Model is the realtime model identifier.
	Model string

	// APIKey is used as a static bearer token when TokenSource is nil.
	APIKey string

	// TokenSource supplies the bearer token for each Connect.
	TokenSource oauth2.TokenSource

	// HandshakeTimeout bounds the websocket handshake.
	HandshakeTimeout time.Duration

	// ReadTimeout closes the connection when nothing (including pongs)
	// arrives for this long. Zero disables it.
	ReadTimeout time.Duration

	// WriteTimeout bounds each outbound message.
	WriteTimeout time.Duration

	// PingPeriod is the keepalive interval. Zero disables pings.
	PingPeriod time.Duration

	// ConvertTimeout bounds the conversion of one chunk.
	ConvertTimeout time.Duration

	// MaxQueueChunks caps pending inbound chunks. Zero means unbounded;
	// otherwise the oldest chunk is dropped on overflow.
	MaxQueueChunks int

	// Converter turns realtime audio into the playback format.
	Converter audioconv.Converter

	// Dialer overrides the websocket dialer.
	Dialer *websocket.Dialer

	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		URL:              DefaultURL,
		Model:            DefaultModel,
		HandshakeTimeout: DefaultHandshakeTimeout,
		ReadTimeout:      DefaultReadTimeout,
		WriteTimeout:     DefaultWriteTimeout,
		PingPeriod:       DefaultPingPeriod,
		ConvertTimeout:   DefaultConvertTimeout,
		Converter:        audioconv.NewLinear(),
		Logger:           slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.APIKey == "" && c.TokenSource == nil {
		return ErrMissingCredential
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("realtime: invalid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("realtime: URL scheme must be ws or wss, got %q", u.Scheme)
	}
	if c.Model == "" {
		return fmt.Errorf("realtime: model is required")
	}
	if c.Converter == nil {
		return fmt.Errorf("realtime: converter is required")
	}
	if c.MaxQueueChunks < 0 {
		return fmt.Errorf("realtime: max queue chunks must not be negative")
	}
	if c.ConvertTimeout <= 0 {
		return fmt.Errorf("realtime: convert timeout must be positive")
	}
	return nil
}

func (c *Config) tokenSource() oauth2.TokenSource {
	if c.TokenSource != nil {
		return c.TokenSource
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.APIKey, TokenType: "Bearer"})
}

// endpoint returns the dial URL with the model query parameter.
func (c *Config) endpoint() (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model", c.Model)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Option is a functional option for configuring a Session.
type Option func(*Config)

// WithURL sets the realtime endpoint.
func WithURL(u string) Option {
	return func(c *Config) {
		c.URL = u
	}
}

// WithModel sets the realtime model.
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithAPIKey sets a static API key.
func WithAPIKey(key string) Option {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithTokenSource sets the bearer token source.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Config) {
		c.TokenSource = ts
	}
}

// WithHandshakeTimeout sets the websocket handshake timeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.HandshakeTimeout = d
	}
}

// WithReadTimeout sets the idle read timeout.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ReadTimeout = d
	}
}

// WithPingPeriod sets the keepalive interval.
func WithPingPeriod(d time.Duration) Option {
	return func(c *Config) {
		c.PingPeriod = d
	}
}

// WithConvertTimeout sets the per-chunk conversion timeout.
func WithConvertTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ConvertTimeout = d
	}
}

// WithMaxQueueChunks caps the inbound queue.
func WithMaxQueueChunks(n int) Option {
	return func(c *Config) {
		c.MaxQueueChunks = n
	}
}

// WithConverter sets the format converter.
func WithConverter(conv audioconv.Converter) Option {
	return func(c *Config) {
		c.Converter = conv
	}
}

// WithDialer sets a custom websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Config) {
		c.Dialer = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
