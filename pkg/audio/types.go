package audio

import "time"

// Frame represents a single block of captured audio flowing through the
// pipeline. Samples are normalized mono float32 in [-1, 1]; segmentation,
// recognition and archiving all share this one representation so no stage
// has to guess at scaling or byte order.
type Frame struct {
	// Samples holds normalized mono PCM in [-1, 1].
	Samples []float32

	// SampleRate in Hz (e.g., 16000 for the default capture config).
	SampleRate int

	// Captured marks the wall-clock time this frame was read from the device.
	Captured time.Time
}

// Duration returns the play time covered by the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}
