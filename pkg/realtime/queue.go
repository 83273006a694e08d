package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-talk/pkg/audioconv"
)

// Processor handles one dequeued chunk. A returned error is logged and
// counted; it never stops the drain.
type Processor func(ctx context.Context, chunk audioconv.Chunk) error

// Queue is an ordered buffer of inbound chunks with a single drain loop.
// Chunks are processed in push order and at most one drain runs at a time.
type Queue struct {
	process   Processor
	maxChunks int
	logger    *slog.Logger

	mu       sync.Mutex
	chunks   []audioconv.Chunk
	draining bool
	ctx      context.Context // context of the most recent Drain or Trigger
	changed  chan struct{}
	nextSeq  uint64

	pushed    uint64
	processed uint64
	failed    uint64
	dropped   uint64
}

// QueueStats is a snapshot of queue counters.
type QueueStats struct {
	Pending   int    `json:"pending"`
	Draining  bool   `json:"draining"`
	Pushed    uint64 `json:"pushed"`
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
}

// NewQueue creates a queue that hands chunks to process.
// maxChunks of zero means unbounded; otherwise the oldest chunk is dropped
// when a push would exceed it.
func NewQueue(process Processor, maxChunks int, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		process:   process,
		maxChunks: maxChunks,
		logger:    logger,
		changed:   make(chan struct{}),
	}
}

// Push appends a chunk and assigns its sequence number.
// It reports whether an older chunk was dropped to make room.
func (q *Queue) Push(chunk audioconv.Chunk) (dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	chunk.Seq = q.nextSeq
	q.nextSeq++
	q.pushed++

	if q.maxChunks > 0 && len(q.chunks) >= q.maxChunks {
		old := q.chunks[0]
		q.chunks[0] = audioconv.Chunk{}
		q.chunks = q.chunks[1:]
		q.dropped++
		dropped = true
		chunksDropped.WithLabelValues("overflow").Inc()
		q.logger.Warn("audio queue full, dropping oldest chunk", "seq", old.Seq, "max", q.maxChunks)
	}

	q.chunks = append(q.chunks, chunk)
	queueDepth.Set(float64(len(q.chunks)))
	q.broadcastLocked()
	return dropped
}

// Drain processes chunks until the queue is empty or the drain context ends.
// If another drain is active it returns false immediately; the active drain
// picks up anything pushed meanwhile and continues under ctx.
func (q *Queue) Drain(ctx context.Context) bool {
	if !q.begin(ctx) {
		return false
	}
	q.run()
	return true
}

// Trigger starts a background drain unless one is active or the queue is
// empty. It reports whether a drain was started. When a drain is already
// active it switches to ctx, so a drain started under a cancelled context
// keeps going for chunks pushed under a live one.
func (q *Queue) Trigger(ctx context.Context) bool {
	q.mu.Lock()
	q.ctx = ctx
	if q.draining || len(q.chunks) == 0 {
		q.mu.Unlock()
		return false
	}
	q.draining = true
	q.mu.Unlock()

	go q.run()
	return true
}

func (q *Queue) begin(ctx context.Context) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ctx = ctx
	if q.draining {
		return false
	}
	q.draining = true
	return true
}

func (q *Queue) run() {
	for {
		q.mu.Lock()
		ctx := q.ctx
		// The flag is released together with the emptiness check so a
		// concurrent Push either lands in this pass or triggers a new one.
		if len(q.chunks) == 0 || ctx.Err() != nil {
			q.draining = false
			q.broadcastLocked()
			q.mu.Unlock()
			return
		}
		chunk := q.chunks[0]
		q.chunks[0] = audioconv.Chunk{}
		q.chunks = q.chunks[1:]
		queueDepth.Set(float64(len(q.chunks)))
		q.mu.Unlock()

		err := q.process(ctx, chunk)

		q.mu.Lock()
		q.processed++
		if err != nil {
			q.failed++
		}
		q.mu.Unlock()

		if err != nil {
			q.logger.Warn("dropping audio chunk", "seq", chunk.Seq, "bytes", chunk.Len(), "error", err)
		}
	}
}

// Wait blocks until the queue is empty with no drain active, or ctx ends.
func (q *Queue) Wait(ctx context.Context) error {
	for {
		q.mu.Lock()
		if !q.draining && len(q.chunks) == 0 {
			q.mu.Unlock()
			return nil
		}
		changed := q.changed
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// Reset discards pending chunks and returns how many were discarded.
// An in-flight chunk is not affected.
func (q *Queue) Reset() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.chunks)
	q.chunks = nil
	if n > 0 {
		chunksDropped.WithLabelValues("reset").Add(float64(n))
	}
	queueDepth.Set(0)
	q.broadcastLocked()
	return n
}

// Len returns the number of pending chunks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}

// Stats returns the queue counters.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Pending:   len(q.chunks),
		Draining:  q.draining,
		Pushed:    q.pushed,
		Processed: q.processed,
		Failed:    q.failed,
		Dropped:   q.dropped,
	}
}

func (q *Queue) broadcastLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}
