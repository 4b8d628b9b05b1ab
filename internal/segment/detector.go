package segment

import (
	"math"
	"time"

	"github.com/veilvox/veilvox/pkg/audio"
)

// Detector decides per frame whether the microphone is picking up speech.
//
// Implementations may keep internal state between frames; the segmenter
// calls IsSpeech from a single goroutine in capture order.
type Detector interface {
	IsSpeech(samples []float32) bool
}

// EnergyDetector classifies a frame as speech when its mean absolute
// amplitude, scaled to the 16-bit range, exceeds Threshold. This is the
// default detector: cheap, predictable, and easy to tune against a level
// meter.
type EnergyDetector struct {
	// Threshold on the [audio.Energy] scale. Ambient room noise typically
	// measures 0-300, speech well above 1000.
	Threshold int
}

var _ Detector = EnergyDetector{}

// IsSpeech implements [Detector].
func (d EnergyDetector) IsSpeech(samples []float32) bool {
	return audio.Energy(samples) > d.Threshold
}

// CloseFrames converts the configured silence duration into the number of
// consecutive silent frames that closes an utterance. The division rounds
// up so the observed silence is never shorter than requested.
func CloseFrames(silence time.Duration, sampleRate, frameSize int) int {
	if sampleRate <= 0 || frameSize <= 0 {
		return 1
	}
	n := int(math.Ceil(silence.Seconds() * float64(sampleRate) / float64(frameSize)))
	if n < 1 {
		n = 1
	}
	return n
}
