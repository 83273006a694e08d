package audioconv

import "context"

// Converter converts a PCM buffer between formats.
// Implementations must be safe for concurrent use and must return an empty
// buffer for empty input without doing any work.
type Converter interface {
	Convert(ctx context.Context, pcm []byte, from, to Format) ([]byte, error)
}

// ConverterFunc adapts a function to the Converter interface.
type ConverterFunc func(ctx context.Context, pcm []byte, from, to Format) ([]byte, error)

// Convert calls f.
func (f ConverterFunc) Convert(ctx context.Context, pcm []byte, from, to Format) ([]byte, error) {
	return f(ctx, pcm, from, to)
}

// Linear is the in-process converter. The zero value is ready to use.
type Linear struct{}

// NewLinear returns an in-process linear interpolation converter.
func NewLinear() *Linear {
	return &Linear{}
}

// Convert implements Converter.
func (l *Linear) Convert(ctx context.Context, pcm []byte, from, to Format) ([]byte, error) {
	if len(pcm) == 0 {
		return []byte{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, &ConversionError{From: from, To: to, Err: err}
	}
	if err := from.Validate(); err != nil {
		return nil, &ConversionError{From: from, To: to, Err: err}
	}
	if err := to.Validate(); err != nil {
		return nil, &ConversionError{From: from, To: to, Err: err}
	}
	// A trailing partial frame is dropped.
	pcm = pcm[:len(pcm)-len(pcm)%from.FrameBytes()]
	if len(pcm) == 0 {
		return []byte{}, nil
	}

	if from == to {
		out := make([]byte, len(pcm))
		copy(out, pcm)
		return out, nil
	}

	samples := BytesToSamples(pcm)

	// Downmix before resampling so only one channel is interpolated.
	if from.Channels == 2 && to.Channels == 1 {
		samples = StereoToMono(samples)
		samples = Resample(samples, from.SampleRate, to.SampleRate)
		return SamplesToBytes(samples), nil
	}

	planes := Deinterleave(samples, from.Channels)
	for i, plane := range planes {
		planes[i] = Resample(plane, from.SampleRate, to.SampleRate)
	}
	samples = Interleave(planes)

	if from.Channels == 1 && to.Channels == 2 {
		samples = MonoToStereo(samples)
	}

	return SamplesToBytes(samples), nil
}

var _ Converter = (*Linear)(nil)
