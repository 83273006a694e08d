package discord

import (
	"errors"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/teslashibe/go-talk/pkg/audioconv"
	"github.com/teslashibe/go-talk/pkg/playback"
	"github.com/teslashibe/go-talk/pkg/realtime"
)

// PlayerFactory returns the playback player for a joined voice connection.
type PlayerFactory func(vc *discordgo.VoiceConnection) (playback.Player, error)

// Config holds bot configuration.
type Config struct {
	// Token is the bot token, without the "Bot " prefix.
	Token string

	// ApplicationID is used for command deployment.
	ApplicationID string

	// GuildID limits command deployment to one guild. Empty means global.
	GuildID string

	// Realtime options applied to every session.
	Realtime []realtime.Option

	// Converter converts captured audio to the realtime format.
	Converter audioconv.Converter

	// Player overrides where session audio is played. Default: the voice
	// channel itself.
	Player PlayerFactory

	// SpeakerOnly forwards only the invoking user's audio.
	SpeakerOnly bool

	// OnStateChange is called for every session state transition.
	OnStateChange func(from, to realtime.State)

	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.New("discord: bot token is required")
	}
	return nil
}
