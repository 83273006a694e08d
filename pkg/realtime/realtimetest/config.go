package realtimetest

import (
	"log/slog"
	"time"
)

// Config configures a Server.
type Config struct {
	// APIKey, when set, is required as a bearer token.
	APIKey string

	// RespondOnUpdate streams a response after every session.update.
	RespondOnUpdate bool

	// Chunks is the number of audio deltas per response.
	Chunks int

	// ChunkDuration is the audio length of each delta.
	ChunkDuration time.Duration

	// Pace sleeps ChunkDuration between deltas.
	Pace bool

	// ToneHz and Amplitude (0..1) shape the generated sine wave.
	ToneHz    float64
	Amplitude float64

	// EndAfterResponse sends session.ended once a response is complete.
	EndAfterResponse bool

	Logger *slog.Logger
}

// DefaultConfig returns a one second 440 Hz response, unpaced.
func DefaultConfig() Config {
	return Config{
		RespondOnUpdate: true,
		Chunks:          10,
		ChunkDuration:   100 * time.Millisecond,
		ToneHz:          440,
		Amplitude:       0.3,
	}
}

// Option configures a Server.
type Option func(*Config)

// WithAPIKey requires the given bearer token.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithResponse sets the number and length of audio deltas per response.
func WithResponse(chunks int, chunkDuration time.Duration) Option {
	return func(c *Config) {
		c.Chunks = chunks
		c.ChunkDuration = chunkDuration
	}
}

// WithPacing sleeps one chunk duration between deltas.
func WithPacing(pace bool) Option {
	return func(c *Config) { c.Pace = pace }
}

// WithTone sets the sine frequency and amplitude.
func WithTone(hz, amplitude float64) Option {
	return func(c *Config) {
		c.ToneHz = hz
		c.Amplitude = amplitude
	}
}

// WithRespondOnUpdate toggles the automatic response to session.update.
func WithRespondOnUpdate(respond bool) Option {
	return func(c *Config) { c.RespondOnUpdate = respond }
}

// WithEndAfterResponse sends session.ended after each response.
func WithEndAfterResponse(end bool) Option {
	return func(c *Config) { c.EndAfterResponse = end }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}
