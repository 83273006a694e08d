package audioconv

// Resample converts a single channel from one sample rate to another using
// linear interpolation. This is adequate for speech.
//
// The output holds len(samples)*toRate/fromRate samples. Positions past the
// last input sample repeat it.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}

	newLen := int(int64(len(samples)) * int64(toRate) / int64(fromRate))
	if newLen == 0 {
		return []int16{}
	}

	result := make([]int16, newLen)
	ratio := float64(fromRate) / float64(toRate)
	last := len(samples) - 1

	for i := 0; i < newLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		if srcIdx >= last {
			result[i] = samples[last]
			continue
		}
		frac := srcPos - float64(srcIdx)
		s1 := float64(samples[srcIdx])
		s2 := float64(samples[srcIdx+1])
		result[i] = int16(s1 + frac*(s2-s1))
	}

	return result
}

// ResampleBytes resamples raw mono s16le bytes.
func ResampleBytes(data []byte, fromRate, toRate int) []byte {
	return SamplesToBytes(Resample(BytesToSamples(data), fromRate, toRate))
}
