package playback

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/teslashibe/go-talk/pkg/audioconv"
)

func TestOpusFramer_FrameSize(t *testing.T) {
	f, err := NewOpusFramer(audioconv.Playback, false)
	if err != nil {
		t.Fatalf("NewOpusFramer error: %v", err)
	}
	if f.FrameSamples() != 960 {
		t.Errorf("expected 960 samples per frame, got %d", f.FrameSamples())
	}
	if f.FrameBytes() != 3840 {
		t.Errorf("expected 3840 bytes per frame, got %d", f.FrameBytes())
	}
}

func TestOpusFramer_PumpPadsTail(t *testing.T) {
	f, err := NewOpusFramer(audioconv.Playback, false)
	if err != nil {
		t.Fatalf("NewOpusFramer error: %v", err)
	}

	raw := make([]byte, f.FrameBytes()*2+100)
	for i := range raw {
		raw[i] = byte(i % 64)
	}

	var packets [][]byte
	err = f.Pump(context.Background(), bytes.NewReader(raw), func(p []byte) error {
		packets = append(packets, p)
		return nil
	})
	if err != nil {
		t.Fatalf("Pump error: %v", err)
	}

	if len(packets) != 3 {
		t.Fatalf("expected 3 packets, got %d", len(packets))
	}
	for i, p := range packets {
		if len(p) == 0 {
			t.Errorf("packet %d is empty", i)
		}
	}
}

func TestOpusFramer_PumpFlushesIdleTail(t *testing.T) {
	f, err := NewOpusFramer(audioconv.Playback, false)
	if err != nil {
		t.Fatalf("NewOpusFramer error: %v", err)
	}

	pr, pw := io.Pipe()
	packets := make(chan []byte, 8)
	pumped := make(chan error, 1)
	go func() {
		pumped <- f.Pump(context.Background(), pr, func(p []byte) error {
			packets <- p
			return nil
		})
	}()

	if _, err := pw.Write(make([]byte, f.FrameBytes()+f.FrameBytes()/2)); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The writer stays open; the half frame must still go out.
	for i := 0; i < 2; i++ {
		select {
		case p := <-packets:
			if len(p) == 0 {
				t.Errorf("packet %d is empty", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("expected packet %d before the stream ended", i)
		}
	}

	pw.Close()
	select {
	case err := <-pumped:
		if err != nil {
			t.Fatalf("Pump error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Pump did not return after EOF")
	}
	if len(packets) != 0 {
		t.Errorf("expected no packets after EOF, got %d", len(packets))
	}
}

func TestOpusFramer_PumpStopsOnCancel(t *testing.T) {
	f, err := NewOpusFramer(audioconv.Playback, true)
	if err != nil {
		t.Fatalf("NewOpusFramer error: %v", err)
	}

	pr, pw := io.Pipe()
	defer pw.Close()
	ctx, cancel := context.WithCancel(context.Background())
	pumped := make(chan error, 1)
	go func() {
		pumped <- f.Pump(ctx, pr, func([]byte) error { return nil })
	}()

	cancel()
	select {
	case err := <-pumped:
		if err != context.Canceled {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Pump did not return after cancel")
	}
}

func TestOpusFramer_PumpEmpty(t *testing.T) {
	f, err := NewOpusFramer(audioconv.Playback, false)
	if err != nil {
		t.Fatalf("NewOpusFramer error: %v", err)
	}

	calls := 0
	err = f.Pump(context.Background(), bytes.NewReader(nil), func(p []byte) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Pump error: %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no packets, got %d", calls)
	}
}

func TestOpusFramer_InvalidFormat(t *testing.T) {
	if _, err := NewOpusFramer(audioconv.Format{SampleRate: 48000, Channels: 3}, false); err == nil {
		t.Error("expected error for 3 channels")
	}
}
