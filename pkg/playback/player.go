package playback

import (
	"context"
	"io"
)

// Player consumes raw s16le PCM and plays it.
type Player interface {
	// Play reads PCM from r until io.EOF, the context ends, or Stop is
	// called. It blocks for the whole playback episode.
	Play(ctx context.Context, r io.Reader) error

	// Stop aborts the current episode.
	// It is safe to call Stop multiple times or when idle.
	Stop() error

	// Name returns the backend name (e.g., "exec", "rtp", "discord").
	Name() string
}
