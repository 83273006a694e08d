package playback

import (
	"context"
	"io"
	"sync"
	"time"
)

// MockPlayer records every buffer it reads. Each Write on a Stream arrives
// as exactly one recorded buffer as long as it fits in ReadSize.
type MockPlayer struct {
	// ReadSize is the read buffer size. Default: 64KiB.
	ReadSize int

	// Delay is slept after every read to simulate a slow sink.
	Delay time.Duration

	// PlayFunc replaces the default recording behavior when set.
	PlayFunc func(ctx context.Context, r io.Reader) error

	mu       sync.Mutex
	writes   [][]byte
	episodes int
	stopped  int
}

// NewMockPlayer creates a recording player.
func NewMockPlayer() *MockPlayer {
	return &MockPlayer{ReadSize: 64 * 1024}
}

// Play implements Player.
func (m *MockPlayer) Play(ctx context.Context, r io.Reader) error {
	m.mu.Lock()
	m.episodes++
	m.mu.Unlock()

	if m.PlayFunc != nil {
		return m.PlayFunc(ctx, r)
	}

	size := m.ReadSize
	if size <= 0 {
		size = 64 * 1024
	}
	buf := make([]byte, size)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			m.mu.Lock()
			m.writes = append(m.writes, append([]byte(nil), buf[:n]...))
			m.mu.Unlock()
			if m.Delay > 0 {
				time.Sleep(m.Delay)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Stop implements Player.
func (m *MockPlayer) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped++
	return nil
}

// Name implements Player.
func (m *MockPlayer) Name() string {
	return "mock"
}

// Writes returns a copy of the recorded buffers in arrival order.
func (m *MockPlayer) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.writes...)
}

// Bytes returns all recorded audio concatenated.
func (m *MockPlayer) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []byte
	for _, w := range m.writes {
		out = append(out, w...)
	}
	return out
}

// Episodes returns how many times Play was called.
func (m *MockPlayer) Episodes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.episodes
}

// Reset clears all captured data.
func (m *MockPlayer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = nil
	m.episodes = 0
	m.stopped = 0
}

var _ Player = (*MockPlayer)(nil)
