package playback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-talk/pkg/audioconv"
)

// DefaultCloseTimeout bounds how long Close waits for the player to finish
// the buffered tail of an episode.
const DefaultCloseTimeout = 2 * time.Second

// Stream is a lazily opened, continuous-write audio output.
// Writes must come from a single goroutine; Close may be called from any.
type Stream struct {
	player       Player
	format       audioconv.Format
	logger       *slog.Logger
	closeTimeout time.Duration

	mu      sync.Mutex
	episode *episode

	episodes     atomic.Int64
	bytesWritten atomic.Int64
}

type episode struct {
	w      *io.PipeWriter
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (e *episode) live() bool {
	select {
	case <-e.done:
		return false
	default:
		return true
	}
}

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) StreamOption {
	return func(s *Stream) {
		s.logger = logger
	}
}

// WithFormat overrides the raw format announced for the stream.
func WithFormat(f audioconv.Format) StreamOption {
	return func(s *Stream) {
		s.format = f
	}
}

// WithCloseTimeout sets how long Close waits for the player.
func WithCloseTimeout(d time.Duration) StreamOption {
	return func(s *Stream) {
		s.closeTimeout = d
	}
}

// NewStream creates a closed stream that plays through player.
func NewStream(player Player, opts ...StreamOption) *Stream {
	s := &Stream{
		player:       player,
		format:       audioconv.Playback,
		logger:       slog.Default(),
		closeTimeout: DefaultCloseTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "playback.stream", "player", player.Name())
	return s
}

// Format returns the raw format the stream expects.
func (s *Stream) Format() audioconv.Format {
	return s.format
}

// EnsureOpen starts a playback episode unless one is already live.
// The episode outlives ctx; only Close ends it.
func (s *Stream) EnsureOpen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.episode != nil && s.episode.live() {
		return nil
	}
	if s.episode != nil {
		s.logger.Warn("playback episode ended early, reopening", "error", s.episode.err)
	}

	pr, pw := io.Pipe()
	playCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ep := &episode{
		w:      pw,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(ep.done)
		err := s.player.Play(playCtx, pr)
		if err == nil {
			err = ErrPlaybackEnded
		}
		ep.err = err
		pr.CloseWithError(err)
	}()

	s.episode = ep
	n := s.episodes.Add(1)
	s.logger.Debug("playback episode started", "episode", n, "format", s.format.String())

	return nil
}

// IsOpen reports whether a playback episode is live.
func (s *Stream) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.episode != nil && s.episode.live()
}

// Write sends converted PCM to the current episode, blocking until the
// player has consumed it.
func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	ep := s.episode
	s.mu.Unlock()

	if ep == nil {
		return 0, &SinkWriteError{Player: s.player.Name(), Bytes: len(p), Err: ErrStreamClosed}
	}

	n, err := ep.w.Write(p)
	s.bytesWritten.Add(int64(n))
	if err != nil {
		if errors.Is(err, io.ErrClosedPipe) {
			err = ErrStreamClosed
		}
		return n, &SinkWriteError{Player: s.player.Name(), Bytes: len(p), Err: err}
	}
	return n, nil
}

// Close signals end-of-data, waits for the player to finish and releases
// the episode. Closing a closed stream is a no-op.
func (s *Stream) Close() error {
	s.mu.Lock()
	ep := s.episode
	s.episode = nil
	s.mu.Unlock()

	if ep == nil {
		return nil
	}

	_ = ep.w.Close()

	select {
	case <-ep.done:
	case <-time.After(s.closeTimeout):
		s.logger.Warn("player did not finish in time, stopping", "timeout", s.closeTimeout)
		_ = s.player.Stop()
	}
	ep.cancel()

	select {
	case <-ep.done:
	case <-time.After(s.closeTimeout):
		s.logger.Error("player did not stop")
	}

	s.logger.Debug("playback episode closed")
	return nil
}

// StreamStats is a snapshot of stream counters.
type StreamStats struct {
	Episodes     int64 `json:"episodes"`
	BytesWritten int64 `json:"bytes_written"`
	Open         bool  `json:"open"`
}

// Stats returns the stream counters.
func (s *Stream) Stats() StreamStats {
	return StreamStats{
		Episodes:     s.episodes.Load(),
		BytesWritten: s.bytesWritten.Load(),
		Open:         s.IsOpen(),
	}
}
