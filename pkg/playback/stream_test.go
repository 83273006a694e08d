package playback

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestStream_EnsureOpenIdempotent(t *testing.T) {
	player := NewMockPlayer()
	s := NewStream(player)
	ctx := context.Background()

	if s.IsOpen() {
		t.Fatal("stream should start closed")
	}

	for i := 0; i < 3; i++ {
		if err := s.EnsureOpen(ctx); err != nil {
			t.Fatalf("EnsureOpen failed: %v", err)
		}
	}

	waitFor(t, func() bool { return player.Episodes() == 1 })

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if player.Episodes() != 1 {
		t.Errorf("expected 1 episode, got %d", player.Episodes())
	}
}

func TestStream_WritesArriveInOrder(t *testing.T) {
	player := NewMockPlayer()
	s := NewStream(player)

	if err := s.EnsureOpen(context.Background()); err != nil {
		t.Fatalf("EnsureOpen failed: %v", err)
	}

	chunks := [][]byte{{1, 2}, {3, 4, 5, 6}, {7, 8}}
	for _, c := range chunks {
		if _, err := s.Write(c); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	writes := player.Writes()
	if len(writes) != len(chunks) {
		t.Fatalf("expected %d writes, got %d", len(chunks), len(writes))
	}
	for i := range chunks {
		if !bytes.Equal(writes[i], chunks[i]) {
			t.Errorf("write %d: expected %v, got %v", i, chunks[i], writes[i])
		}
	}

	stats := s.Stats()
	if stats.BytesWritten != 8 || stats.Episodes != 1 || stats.Open {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestStream_CloseIsIdempotent(t *testing.T) {
	s := NewStream(NewMockPlayer())

	if err := s.Close(); err != nil {
		t.Errorf("close of never-opened stream failed: %v", err)
	}
	_ = s.EnsureOpen(context.Background())
	if err := s.Close(); err != nil {
		t.Errorf("first close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}
}

func TestStream_WriteAfterClose(t *testing.T) {
	s := NewStream(NewMockPlayer())
	_ = s.EnsureOpen(context.Background())
	_ = s.Close()

	_, err := s.Write([]byte{1, 2})

	var sinkErr *SinkWriteError
	if !errors.As(err, &sinkErr) {
		t.Fatalf("expected SinkWriteError, got %v", err)
	}
	if !errors.Is(err, ErrStreamClosed) {
		t.Errorf("expected ErrStreamClosed, got %v", err)
	}
}

func TestStream_ReopenAfterClose(t *testing.T) {
	player := NewMockPlayer()
	s := NewStream(player)
	ctx := context.Background()

	_ = s.EnsureOpen(ctx)
	_, _ = s.Write([]byte{1, 2})
	_ = s.Close()

	_ = s.EnsureOpen(ctx)
	_, _ = s.Write([]byte{3, 4})
	_ = s.Close()

	if player.Episodes() != 2 {
		t.Errorf("expected 2 episodes, got %d", player.Episodes())
	}
	if !bytes.Equal(player.Bytes(), []byte{1, 2, 3, 4}) {
		t.Errorf("unexpected audio: %v", player.Bytes())
	}
}

func TestStream_PlayerEndsEarly(t *testing.T) {
	player := NewMockPlayer()
	player.PlayFunc = func(ctx context.Context, r io.Reader) error {
		return errors.New("device gone")
	}
	s := NewStream(player)

	_ = s.EnsureOpen(context.Background())

	_, err := s.Write([]byte{1, 2})
	if err == nil {
		t.Fatal("expected write to fail after player exit")
	}

	waitFor(t, func() bool { return !s.IsOpen() })

	player.PlayFunc = nil
	if err := s.EnsureOpen(context.Background()); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if _, err := s.Write([]byte{5, 6}); err != nil {
		t.Errorf("write after reopen failed: %v", err)
	}
	_ = s.Close()
}

func TestStream_CloseUnblocksPendingWrite(t *testing.T) {
	player := NewMockPlayer()
	block := make(chan struct{})
	player.PlayFunc = func(ctx context.Context, r io.Reader) error {
		<-block
		_, err := io.Copy(io.Discard, r)
		return err
	}
	s := NewStream(player, WithCloseTimeout(50*time.Millisecond))
	_ = s.EnsureOpen(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Write([]byte{1, 2, 3, 4})
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	_ = s.Close()
	close(block)

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("expected pending write to fail")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending write never returned")
	}
}
