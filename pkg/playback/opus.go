package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/hraban/opus.v2"

	"github.com/teslashibe/go-talk/pkg/audioconv"
)

const (
	// FrameDuration is the Opus frame length used by every encoded player.
	FrameDuration = 20 * time.Millisecond

	// IdleFlush is how long Pump holds a partial frame waiting for more
	// audio before padding and sending it.
	IdleFlush = 5 * FrameDuration

	// maxPacketSize is large enough for any 20ms Opus packet.
	maxPacketSize = 4000
)

// OpusFramer slices raw PCM into fixed frames and encodes each as Opus.
// It is not safe for concurrent use.
type OpusFramer struct {
	format       audioconv.Format
	encoder      *opus.Encoder
	frameSamples int
	paced        bool

	raw    []byte
	pcm    []int16
	packet []byte
}

// NewOpusFramer creates a framer for the given format.
// When paced is set, Pump emits at most one frame per FrameDuration.
func NewOpusFramer(format audioconv.Format, paced bool) (*OpusFramer, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	enc, err := opus.NewEncoder(format.SampleRate, format.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}

	frameSamples := format.SampleRate * int(FrameDuration/time.Millisecond) / 1000

	return &OpusFramer{
		format:       format,
		encoder:      enc,
		frameSamples: frameSamples,
		paced:        paced,
		raw:          make([]byte, frameSamples*format.FrameBytes()),
		pcm:          make([]int16, frameSamples*format.Channels),
		packet:       make([]byte, maxPacketSize),
	}, nil
}

// FrameSamples returns samples per channel in one frame.
func (f *OpusFramer) FrameSamples() int {
	return f.frameSamples
}

// FrameBytes returns the raw size of one frame.
func (f *OpusFramer) FrameBytes() int {
	return len(f.raw)
}

// Encode encodes one raw frame. Short input is padded with silence.
func (f *OpusFramer) Encode(frame []byte) ([]byte, error) {
	n := copy(f.raw, frame)
	clear(f.raw[n:])

	for i := range f.pcm {
		f.pcm[i] = int16(uint16(f.raw[i*2]) | uint16(f.raw[i*2+1])<<8)
	}

	size, err := f.encoder.Encode(f.pcm, f.packet)
	if err != nil {
		return nil, fmt.Errorf("opus encode: %w", err)
	}

	out := make([]byte, size)
	copy(out, f.packet[:size])
	return out, nil
}

// Pump reads PCM from r until EOF and hands each encoded packet to send.
// A partial frame is padded with silence and sent once r has been idle for
// IdleFlush, or at EOF, so the end of a response is not held back until
// more audio arrives.
func (f *OpusFramer) Pump(ctx context.Context, r io.Reader, send func(packet []byte) error) error {
	var ticker *time.Ticker
	if f.paced {
		ticker = time.NewTicker(FrameDuration)
		defer ticker.Stop()
	}

	emit := func(frame []byte) error {
		packet, err := f.Encode(frame)
		if err != nil {
			return err
		}
		if ticker != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
		return send(packet)
	}

	done := make(chan struct{})
	defer close(done)
	reads := make(chan pumpRead)
	go func() {
		for {
			buf := make([]byte, len(f.raw))
			n, err := r.Read(buf)
			if n == 0 && err == nil {
				continue
			}
			select {
			case reads <- pumpRead{data: buf[:n], err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	idle := time.NewTimer(IdleFlush)
	idle.Stop()
	defer idle.Stop()

	frameBytes := len(f.raw)
	var pending []byte
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-idle.C:
			if len(pending) > 0 {
				if err := emit(pending); err != nil {
					return err
				}
				pending = pending[:0]
			}

		case rd := <-reads:
			pending = append(pending, rd.data...)
			for len(pending) >= frameBytes {
				if err := emit(pending[:frameBytes]); err != nil {
					return err
				}
				pending = append(pending[:0], pending[frameBytes:]...)
			}

			if rd.err != nil {
				if len(pending) > 0 {
					if err := emit(pending); err != nil {
						return err
					}
				}
				if errors.Is(rd.err, io.EOF) {
					return nil
				}
				return rd.err
			}

			if len(pending) > 0 {
				idle.Reset(IdleFlush)
			} else {
				idle.Stop()
			}
		}
	}
}

type pumpRead struct {
	data []byte
	err  error
}
