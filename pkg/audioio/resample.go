package audioio

import "math"

// Resample converts mono PCM16 between sample rates by linear interpolation.
// Good enough for speech.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(samples) == 0 || fromRate <= 0 || toRate <= 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	n := int(float64(len(samples)) / ratio)
	out := make([]int16, n)

	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= last {
			out[i] = samples[last]
			continue
		}
		frac := pos - float64(idx)
		a, b := float64(samples[idx]), float64(samples[idx+1])
		out[i] = int16(a + frac*(b-a))
	}
	return out
}

// BytesToSamples converts little-endian PCM16 bytes to samples.
func BytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}

// SamplesToBytes converts samples to little-endian PCM16 bytes.
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	return data
}

// Downmix averages interleaved frames to mono.
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	mono := make([]int16, len(samples)/channels)
	for i := range mono {
		var sum int32
		for ch := 0; ch < channels; ch++ {
			sum += int32(samples[i*channels+ch])
		}
		mono[i] = int16(sum / int32(channels))
	}
	return mono
}

// RMS returns the normalized root mean square level in [0, 1].
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum/float64(len(samples))) / 32767
}
