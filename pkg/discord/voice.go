package discord

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/teslashibe/go-talk/pkg/audioconv"
	"github.com/teslashibe/go-talk/pkg/playback"
)

// VoicePlayer plays raw 48kHz stereo PCM into a Discord voice connection.
// discordgo paces OpusSend itself, so frames are pushed unpaced.
type VoicePlayer struct {
	vc     *discordgo.VoiceConnection
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewVoicePlayer creates a player for vc.
func NewVoicePlayer(vc *discordgo.VoiceConnection, logger *slog.Logger) *VoicePlayer {
	if logger == nil {
		logger = slog.Default()
	}
	return &VoicePlayer{
		vc:     vc,
		logger: logger.With("component", "discord.voice"),
	}
}

// Play implements playback.Player.
func (p *VoicePlayer) Play(ctx context.Context, r io.Reader) error {
	framer, err := playback.NewOpusFramer(audioconv.Playback, false)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
	defer cancel()

	p.setSpeaking(true)
	defer p.setSpeaking(false)

	return framer.Pump(ctx, r, func(packet []byte) error {
		select {
		case p.vc.OpusSend <- packet:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func (p *VoicePlayer) setSpeaking(on bool) {
	if err := p.vc.Speaking(on); err != nil {
		p.logger.Debug("speaking update failed", "speaking", on, "error", err)
	}
}

// Stop implements playback.Player.
func (p *VoicePlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

// Name implements playback.Player.
func (p *VoicePlayer) Name() string {
	return "discord"
}

var _ playback.Player = (*VoicePlayer)(nil)
