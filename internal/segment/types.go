package segment

import "time"

// Utterance is one contiguous stretch of speech cut from the capture
// stream. Samples include the trailing silence that closed the utterance,
// so the recognizer sees a natural decay instead of a hard cut.
type Utterance struct {
	// Samples holds normalized mono PCM in [-1, 1].
	Samples []float32

	// SampleRate in Hz.
	SampleRate int

	// Start is the capture time of the first speech frame.
	Start time.Time

	// End is the capture time at which the closing silence run completed.
	End time.Time
}

// Duration returns the play time of the utterance audio.
func (u Utterance) Duration() time.Duration {
	if u.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(u.Samples)) * time.Second / time.Duration(u.SampleRate)
}
