package playback

import (
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-talk/pkg/audioconv"
)

// Backend selects a Player implementation.
type Backend string

const (
	// BackendExec pipes PCM into a local command.
	BackendExec Backend = "exec"
	// BackendRTP sends Opus over RTP/UDP.
	BackendRTP Backend = "rtp"
	// BackendTrack writes Opus to a WebRTC track.
	BackendTrack Backend = "track"
	// BackendMock records audio in memory.
	BackendMock Backend = "mock"
	// BackendDiscord plays into a Discord voice connection (package discord).
	BackendDiscord Backend = "discord"
)

// Config holds playback configuration.
type Config struct {
	// Backend specifies which player to use.
	Backend Backend `mapstructure:"backend"`

	// Command is the program and arguments for BackendExec.
	// Empty uses aplay with the stream format.
	Command []string `mapstructure:"command"`

	// RTPAddr is the UDP destination for BackendRTP.
	RTPAddr string `mapstructure:"rtp_addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend: BackendDiscord,
		RTPAddr: "127.0.0.1:5000",
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendExec, BackendTrack, BackendMock, BackendDiscord:
		return nil
	case BackendRTP:
		if c.RTPAddr == "" {
			return fmt.Errorf("rtp_addr is required for backend %q", c.Backend)
		}
		return nil
	default:
		return fmt.Errorf("unsupported playback backend: %q", c.Backend)
	}
}

// NewPlayer creates a player for every backend except BackendDiscord,
// which needs a live voice connection.
func NewPlayer(cfg Config, logger *slog.Logger) (Player, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("creating playback player", "backend", cfg.Backend)

	switch cfg.Backend {
	case BackendExec:
		return NewExecPlayer(cfg.Command, audioconv.Playback, logger), nil
	case BackendRTP:
		return NewRTPPlayer(cfg.RTPAddr, audioconv.Playback, logger), nil
	case BackendTrack:
		return NewTrackPlayer(audioconv.Playback, logger)
	case BackendMock:
		return NewMockPlayer(), nil
	default:
		return nil, fmt.Errorf("backend %q must be created by its owner", cfg.Backend)
	}
}
