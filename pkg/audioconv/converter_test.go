package audioconv

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func TestLinear_MonoToStereoGolden(t *testing.T) {
	in := SamplesToBytes([]int16{0, 100, 200, 300, 400}) // 10 bytes
	want := []int16{
		0, 0, 50, 50, 100, 100, 150, 150, 200, 200,
		250, 250, 300, 300, 350, 350, 400, 400, 400, 400,
	}

	out, err := NewLinear().Convert(context.Background(), in, Realtime, Playback)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}

	if len(out) != len(in)*4 {
		t.Fatalf("expected %d bytes, got %d", len(in)*4, len(out))
	}

	got := BytesToSamples(out)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestLinear_StereoToMonoDownsample(t *testing.T) {
	// 48kHz stereo, 4 frames
	in := SamplesToBytes([]int16{100, 300, 200, 400, 500, 700, 600, 800})

	out, err := NewLinear().Convert(context.Background(), in, Capture, Realtime)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}

	got := BytesToSamples(out)
	want := []int16{200, 600}
	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestLinear_StereoResampleKeepsChannels(t *testing.T) {
	from := Format{SampleRate: 24000, Channels: 2}
	in := SamplesToBytes([]int16{10, -10, 20, -20})

	out, err := NewLinear().Convert(context.Background(), in, from, Playback)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}

	got := BytesToSamples(out)
	want := []int16{10, -10, 15, -15, 20, -20, 20, -20}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestLinear_EmptyInput(t *testing.T) {
	out, err := NewLinear().Convert(context.Background(), nil, Realtime, Playback)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Errorf("expected empty non-nil buffer, got %v", out)
	}
}

func TestLinear_Errors(t *testing.T) {
	tests := []struct {
		name   string
		pcm    []byte
		from   Format
		to     Format
		target error
	}{
		{"too many channels", []byte{1, 2}, Realtime, Format{SampleRate: 48000, Channels: 6}, ErrUnsupportedFormat},
		{"zero rate", []byte{1, 2}, Format{Channels: 1}, Playback, ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLinear().Convert(context.Background(), tt.pcm, tt.from, tt.to)

			var convErr *ConversionError
			if !errors.As(err, &convErr) {
				t.Fatalf("expected ConversionError, got %v", err)
			}
			if !errors.Is(err, tt.target) {
				t.Errorf("expected %v, got %v", tt.target, err)
			}
		})
	}
}

func TestLinear_TrimsPartialFrame(t *testing.T) {
	l := NewLinear()

	whole, err := l.Convert(context.Background(), []byte{1, 2}, Realtime, Playback)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	odd, err := l.Convert(context.Background(), []byte{1, 2, 3}, Realtime, Playback)
	if err != nil {
		t.Fatalf("odd length should convert, got %v", err)
	}
	if !bytes.Equal(odd, whole) {
		t.Errorf("expected trailing byte to be dropped: got %v, want %v", odd, whole)
	}

	half, err := l.Convert(context.Background(), []byte{1, 2}, Playback, Realtime)
	if err != nil {
		t.Fatalf("half stereo frame should convert, got %v", err)
	}
	if half == nil || len(half) != 0 {
		t.Errorf("expected empty non-nil buffer, got %v", half)
	}

	same, err := l.Convert(context.Background(), []byte{1, 2, 3}, Realtime, Realtime)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !bytes.Equal(same, []byte{1, 2}) {
		t.Errorf("expected [1 2], got %v", same)
	}
}

func TestLinear_SameFormatCopies(t *testing.T) {
	in := []byte{1, 2, 3, 4}
	out, err := NewLinear().Convert(context.Background(), in, Realtime, Realtime)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	out[0] = 9
	if in[0] != 1 {
		t.Error("output must not alias input")
	}
}

func TestFFmpeg_EmptyInputSkipsProcess(t *testing.T) {
	conv := NewFFmpeg(WithFFmpegPath("/nonexistent/ffmpeg"))

	out, err := conv.Convert(context.Background(), []byte{}, Realtime, Playback)
	if err != nil {
		t.Fatalf("empty input must not start a process: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty output, got %d bytes", len(out))
	}
}

func TestFFmpeg_StartFailure(t *testing.T) {
	conv := NewFFmpeg(WithFFmpegPath("/nonexistent/ffmpeg"))

	_, err := conv.Convert(context.Background(), []byte{0, 0}, Realtime, Playback)

	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected ConversionError, got %v", err)
	}
	if convErr.From != Realtime || convErr.To != Playback {
		t.Errorf("unexpected formats in error: %+v", convErr)
	}
}

func TestFFmpeg_Args(t *testing.T) {
	args := NewFFmpeg().Args(Realtime, Playback)

	joined := strings.Join(args, " ")
	for _, want := range []string{"-ar 24000 -ac 1 -i pipe:0", "-ar 48000 -ac 2 pipe:1", "aresample=async=1:first_pts=0", "-f s16le -ar 24000", "-f s16le -ar 48000"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q missing %q", joined, want)
		}
	}
}

func TestFFmpeg_Convert(t *testing.T) {
	if _, err := exec.LookPath(DefaultFFmpegPath); err != nil {
		t.Skip("ffmpeg not installed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	in := make([]byte, 4800) // 100ms of 24kHz mono
	out, err := NewFFmpeg().Convert(ctx, in, Realtime, Playback)
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if len(out)%Playback.FrameBytes() != 0 {
		t.Errorf("output not frame aligned: %d bytes", len(out))
	}
}

