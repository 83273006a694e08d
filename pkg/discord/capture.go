package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"gopkg.in/hraban/opus.v2"

	"github.com/teslashibe/go-talk/pkg/audioconv"
)

// maxFrameSamples is 120ms at 48kHz, the longest Opus frame.
const maxFrameSamples = 5760

// InputSink receives microphone audio in the realtime format.
type InputSink interface {
	AppendInputAudio(pcm []byte)
}

// Capture decodes Opus received on a voice connection and forwards it to an
// InputSink as mono 24kHz PCM. Each speaker (SSRC) has its own decoder.
type Capture struct {
	recv      <-chan *discordgo.Packet
	sink      InputSink
	converter audioconv.Converter
	logger    *slog.Logger

	mu       sync.Mutex
	decoders map[uint32]*opus.Decoder
	speakers map[uint32]string
	only     string
	pcm      []int16
}

// CaptureOption configures a Capture.
type CaptureOption func(*Capture)

// WithSpeaker forwards only audio from userID.
func WithSpeaker(userID string) CaptureOption {
	return func(c *Capture) {
		c.only = userID
	}
}

// WithCaptureLogger sets the logger.
func WithCaptureLogger(logger *slog.Logger) CaptureOption {
	return func(c *Capture) {
		c.logger = logger
	}
}

// NewCapture creates a capture reading from recv.
func NewCapture(recv <-chan *discordgo.Packet, sink InputSink, converter audioconv.Converter, opts ...CaptureOption) *Capture {
	c := &Capture{
		recv:      recv,
		sink:      sink,
		converter: converter,
		logger:    slog.Default(),
		decoders:  make(map[uint32]*opus.Decoder),
		speakers:  make(map[uint32]string),
		pcm:       make([]int16, maxFrameSamples*audioconv.Capture.Channels),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "discord.capture")
	return c
}

// Attach registers a speaking handler on vc so SSRCs map to users.
func (c *Capture) Attach(vc *discordgo.VoiceConnection) {
	vc.AddHandler(func(_ *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
		c.TrackSpeaker(uint32(vs.SSRC), vs.UserID)
	})
}

// TrackSpeaker records which user sends on ssrc.
func (c *Capture) TrackSpeaker(ssrc uint32, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speakers[ssrc] = userID
}

// Run forwards audio until ctx ends or the receive channel closes.
func (c *Capture) Run(ctx context.Context) error {
	c.logger.Debug("capture started", "speaker", c.only)
	defer c.logger.Debug("capture stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pkt, ok := <-c.recv:
			if !ok {
				return nil
			}
			if err := c.handle(ctx, pkt); err != nil {
				c.logger.Debug("dropping captured packet", "ssrc", pkt.SSRC, "error", err)
			}
		}
	}
}

func (c *Capture) handle(ctx context.Context, pkt *discordgo.Packet) error {
	if pkt == nil || len(pkt.Opus) == 0 {
		return nil
	}

	c.mu.Lock()
	if c.only != "" && c.speakers[pkt.SSRC] != c.only {
		c.mu.Unlock()
		return nil
	}
	dec, ok := c.decoders[pkt.SSRC]
	c.mu.Unlock()

	if !ok {
		var err error
		dec, err = opus.NewDecoder(audioconv.Capture.SampleRate, audioconv.Capture.Channels)
		if err != nil {
			return fmt.Errorf("opus decoder: %w", err)
		}
		c.mu.Lock()
		c.decoders[pkt.SSRC] = dec
		c.mu.Unlock()
	}

	n, err := dec.Decode(pkt.Opus, c.pcm)
	if err != nil {
		return fmt.Errorf("opus decode: %w", err)
	}
	if n == 0 {
		return nil
	}

	raw := audioconv.SamplesToBytes(c.pcm[:n*audioconv.Capture.Channels])
	out, err := c.converter.Convert(ctx, raw, audioconv.Capture, audioconv.Realtime)
	if err != nil {
		return err
	}

	c.sink.AppendInputAudio(out)
	return nil
}
