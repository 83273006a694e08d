package audioconv

import "encoding/binary"

// BytesToSamples converts raw s16le bytes to int16 samples.
// A trailing odd byte is ignored.
func BytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/BytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// SamplesToBytes converts int16 samples to raw s16le bytes.
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}

// MonoToStereo duplicates each mono sample into both output channels.
func MonoToStereo(samples []int16) []int16 {
	stereo := make([]int16, len(samples)*2)
	for i, s := range samples {
		stereo[i*2] = s
		stereo[i*2+1] = s
	}
	return stereo
}

// StereoToMono averages interleaved left/right samples.
func StereoToMono(samples []int16) []int16 {
	mono := make([]int16, len(samples)/2)
	for i := range mono {
		left := int32(samples[i*2])
		right := int32(samples[i*2+1])
		mono[i] = int16((left + right) / 2)
	}
	return mono
}

// Deinterleave splits interleaved samples into one slice per channel.
func Deinterleave(samples []int16, channels int) [][]int16 {
	if channels == 1 {
		return [][]int16{samples}
	}
	frames := len(samples) / channels
	out := make([][]int16, channels)
	for ch := range out {
		out[ch] = make([]int16, frames)
		for i := 0; i < frames; i++ {
			out[ch][i] = samples[i*channels+ch]
		}
	}
	return out
}

// Interleave merges per-channel slices of equal length.
func Interleave(planes [][]int16) []int16 {
	if len(planes) == 1 {
		return planes[0]
	}
	if len(planes) == 0 {
		return nil
	}
	frames := len(planes[0])
	out := make([]int16, frames*len(planes))
	for i := 0; i < frames; i++ {
		for ch, plane := range planes {
			out[i*len(planes)+ch] = plane[i]
		}
	}
	return out
}
