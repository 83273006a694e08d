package playback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"sync"

	"github.com/pion/rtp"

	"github.com/teslashibe/go-talk/pkg/audioconv"
)

// DefaultRTPPayloadType matches the dynamic type used by rtpopuspay.
const DefaultRTPPayloadType = 96

// RTPPlayer sends Opus-encoded audio as RTP over UDP.
type RTPPlayer struct {
	addr        string
	format      audioconv.Format
	payloadType uint8
	ssrc        uint32
	logger      *slog.Logger

	mu       sync.Mutex
	conn     net.Conn
	sequence uint16
	ts       uint32
}

// NewRTPPlayer creates a player sending to addr ("host:port").
func NewRTPPlayer(addr string, format audioconv.Format, logger *slog.Logger) *RTPPlayer {
	if logger == nil {
		logger = slog.Default()
	}
	return &RTPPlayer{
		addr:        addr,
		format:      format,
		payloadType: DefaultRTPPayloadType,
		ssrc:        rand.Uint32(),
		sequence:    uint16(rand.Uint32()),
		logger:      logger.With("component", "playback.rtp", "addr", addr),
	}
}

// Play implements Player.
func (p *RTPPlayer) Play(ctx context.Context, r io.Reader) error {
	framer, err := NewOpusFramer(p.format, true)
	if err != nil {
		return err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", p.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", p.addr, err)
	}

	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.conn = nil
		p.mu.Unlock()
		conn.Close()
	}()

	// RTP timestamps for Opus always advance at 48kHz.
	step := uint32(48000 * FrameDuration.Milliseconds() / 1000)

	return framer.Pump(ctx, r, func(payload []byte) error {
		pkt, err := p.nextPacket(payload, step)
		if err != nil {
			return err
		}
		if _, err := conn.Write(pkt); err != nil {
			return fmt.Errorf("rtp write: %w", err)
		}
		return nil
	})
}

func (p *RTPPlayer) nextPacket(payload []byte, step uint32) ([]byte, error) {
	p.mu.Lock()
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    p.payloadType,
			SequenceNumber: p.sequence,
			Timestamp:      p.ts,
			SSRC:           p.ssrc,
		},
		Payload: payload,
	}
	p.sequence++
	p.ts += step
	p.mu.Unlock()

	return pkt.Marshal()
}

// Stop implements Player.
func (p *RTPPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Name implements Player.
func (p *RTPPlayer) Name() string {
	return "rtp"
}

var _ Player = (*RTPPlayer)(nil)
