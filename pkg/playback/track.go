package playback

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"

	"github.com/teslashibe/go-talk/pkg/audioconv"
)

// TrackPlayer writes Opus samples to a WebRTC local track. Any number of
// peer connections may add the track to listen in.
type TrackPlayer struct {
	track  *webrtc.TrackLocalStaticSample
	format audioconv.Format
	logger *slog.Logger
}

// NewTrackPlayer creates a player with a fresh Opus track.
func NewTrackPlayer(format audioconv.Format, logger *slog.Logger) (*TrackPlayer, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  uint16(format.Channels),
		},
		"audio",
		"talk",
	)
	if err != nil {
		return nil, fmt.Errorf("create track: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TrackPlayer{
		track:  track,
		format: format,
		logger: logger.With("component", "playback.track"),
	}, nil
}

// Track returns the local track to add to peer connections.
func (p *TrackPlayer) Track() *webrtc.TrackLocalStaticSample {
	return p.track
}

// Play implements Player.
func (p *TrackPlayer) Play(ctx context.Context, r io.Reader) error {
	framer, err := NewOpusFramer(p.format, true)
	if err != nil {
		return err
	}

	return framer.Pump(ctx, r, func(packet []byte) error {
		return p.track.WriteSample(media.Sample{Data: packet, Duration: FrameDuration})
	})
}

// Stop implements Player. Episodes end via context cancellation.
func (p *TrackPlayer) Stop() error {
	return nil
}

// Name implements Player.
func (p *TrackPlayer) Name() string {
	return "track"
}

var _ Player = (*TrackPlayer)(nil)
