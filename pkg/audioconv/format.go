package audioconv

import (
	"fmt"
	"time"
)

// BytesPerSample is the width of one s16le sample.
const BytesPerSample = 2

// Format describes a raw s16le PCM layout.
type Format struct {
	// SampleRate is the number of frames per second.
	SampleRate int `json:"sample_rate"`

	// Channels is the number of interleaved channels (1 or 2).
	Channels int `json:"channels"`
}

// Formats used on either side of the bridge.
var (
	// Realtime is the format spoken by the realtime speech service.
	Realtime = Format{SampleRate: 24000, Channels: 1}

	// Playback is the raw format expected by playback sinks.
	Playback = Format{SampleRate: 48000, Channels: 2}

	// Capture is the format produced by decoding voice channel Opus.
	Capture = Format{SampleRate: 48000, Channels: 2}
)

// Validate checks that the format can be converted.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, f.SampleRate)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, f.Channels)
	}
	return nil
}

// FrameBytes returns the size of one frame (one sample per channel).
func (f Format) FrameBytes() int {
	return f.Channels * BytesPerSample
}

// BytesPerSecond returns the byte rate of the format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.FrameBytes()
}

// Duration returns how long n bytes of audio in this format play for.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

func (f Format) String() string {
	return fmt.Sprintf("s16le/%dHz/%dch", f.SampleRate, f.Channels)
}

// Chunk is one unit of raw audio as delivered by a single inbound event.
// Chunks are treated as immutable once created.
type Chunk struct {
	Data   []byte
	Format Format

	// Seq is the arrival position of the chunk within its session.
	Seq uint64
}

// Len returns the payload size in bytes.
func (c Chunk) Len() int {
	return len(c.Data)
}
