package audioconv

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
)

// DefaultFFmpegPath is the binary looked up on PATH when none is configured.
const DefaultFFmpegPath = "ffmpeg"

// FFmpeg converts buffers by running one ffmpeg process per call.
type FFmpeg struct {
	path   string
	logger *slog.Logger
}

// FFmpegOption configures an FFmpeg converter.
type FFmpegOption func(*FFmpeg)

// WithFFmpegPath overrides the ffmpeg binary.
func WithFFmpegPath(path string) FFmpegOption {
	return func(f *FFmpeg) {
		f.path = path
	}
}

// WithFFmpegLogger sets the logger.
func WithFFmpegLogger(logger *slog.Logger) FFmpegOption {
	return func(f *FFmpeg) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFFmpeg creates an external-process converter.
func NewFFmpeg(opts ...FFmpegOption) *FFmpeg {
	f := &FFmpeg{
		path:   DefaultFFmpegPath,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("component", "audioconv.ffmpeg")
	return f
}

// Args returns the ffmpeg arguments used to convert between the formats.
func (f *FFmpeg) Args(from, to Format) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(from.SampleRate),
		"-ac", strconv.Itoa(from.Channels),
		"-i", "pipe:0",
		"-af", "aresample=async=1:first_pts=0",
		"-f", "s16le",
		"-ar", strconv.Itoa(to.SampleRate),
		"-ac", strconv.Itoa(to.Channels),
		"pipe:1",
	}
}

// Convert implements Converter.
func (f *FFmpeg) Convert(ctx context.Context, pcm []byte, from, to Format) ([]byte, error) {
	if len(pcm) == 0 {
		return []byte{}, nil
	}
	if err := from.Validate(); err != nil {
		return nil, &ConversionError{From: from, To: to, Err: err}
	}
	if err := to.Validate(); err != nil {
		return nil, &ConversionError{From: from, To: to, Err: err}
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.path, f.Args(from, to)...)
	cmd.Stdin = bytes.NewReader(pcm)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		f.logger.Debug("ffmpeg failed", "error", err, "input_bytes", len(pcm))
		return nil, &ConversionError{
			From:   from,
			To:     to,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}

	return stdout.Bytes(), nil
}

var _ Converter = (*FFmpeg)(nil)
