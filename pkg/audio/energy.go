package audio

import "math"

// Energy returns the mean absolute amplitude of samples scaled to the 16-bit
// reference range. Normalized float32 input yields the same value the raw
// int16 data would, so configured thresholds keep their familiar scale:
// ambient room noise sits around 0-300, speech typically well above 1000.
func Energy(samples []float32) int {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		if s < 0 {
			s = -s
		}
		sum += float64(s)
	}
	return int(sum / float64(len(samples)) * 32768)
}

// RMS returns the root mean square of samples in the normalized [0, 1] range.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// TrimSilence strips leading and trailing samples whose absolute amplitude
// stays at or below threshold. If no sample exceeds the threshold the input
// is returned unchanged rather than empty, so downstream length checks still
// see the original utterance.
func TrimSilence(samples []float32, threshold float32) []float32 {
	start, end := -1, -1
	for i, s := range samples {
		if s < 0 {
			s = -s
		}
		if s > threshold {
			if start < 0 {
				start = i
			}
			end = i + 1
		}
	}
	if start < 0 {
		return samples
	}
	return samples[start:end]
}
