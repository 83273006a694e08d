package playback

import (
	"errors"
	"fmt"
)

var (
	// ErrStreamClosed indicates a write to a stream that is not open.
	ErrStreamClosed = errors.New("playback: stream closed")

	// ErrPlaybackEnded indicates the player finished before the writer did.
	ErrPlaybackEnded = errors.New("playback: player ended")
)

// SinkWriteError reports a failed write of one buffer to the playback sink.
type SinkWriteError struct {
	Player string
	Bytes  int
	Err    error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("playback: write %d bytes to %s: %v", e.Bytes, e.Player, e.Err)
}

// Unwrap returns the underlying cause.
func (e *SinkWriteError) Unwrap() error {
	return e.Err
}
