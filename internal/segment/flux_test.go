package segment

import (
	"math"
	"testing"
)

// sineFrame generates one frame of a pure tone with an integer number of
// cycles, so its energy lands exactly on one FFT bin.
func sineFrame(amplitude float64, cycles, n int) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(amplitude * math.Sin(2*math.Pi*float64(cycles)*float64(i)/float64(n)))
	}
	return samples
}

func TestFluxDetector_SilenceStaysQuiet(t *testing.T) {
	t.Parallel()

	d := NewFluxDetector()
	for i := range 5 {
		if d.IsSpeech(make([]float32, 256)) {
			t.Fatalf("frame %d: IsSpeech(silence) = true, want false", i)
		}
	}
}

func TestFluxDetector_OnsetAndDecay(t *testing.T) {
	t.Parallel()

	d := NewFluxDetector()

	// Warm-up: the first frames only establish the flux baseline.
	if d.IsSpeech(sineFrame(0.010, 3, 256)) {
		t.Error("warm-up frame classified as speech")
	}
	if d.IsSpeech(sineFrame(0.012, 3, 256)) {
		t.Error("baseline frame classified as speech")
	}

	// A loud tone at a new frequency produces a large flux jump.
	if !d.IsSpeech(sineFrame(0.8, 7, 256)) {
		t.Error("speech onset not detected")
	}

	// The identical frame again produces zero flux, which collapses the
	// decision back to silence.
	if d.IsSpeech(sineFrame(0.8, 7, 256)) {
		t.Error("steady tone after onset still classified as speech")
	}
}

func TestFluxDetector_EmptyFrame(t *testing.T) {
	t.Parallel()

	d := NewFluxDetector()
	if d.IsSpeech(nil) {
		t.Error("IsSpeech(nil) = true, want false")
	}
}

func TestWithFluxRatio(t *testing.T) {
	t.Parallel()

	if d := NewFluxDetector(WithFluxRatio(3)); d.ratio != 3 {
		t.Errorf("ratio = %v, want 3", d.ratio)
	}
	if d := NewFluxDetector(WithFluxRatio(0.5)); d.ratio != defaultFluxRatio {
		t.Errorf("ratio = %v, want default %v for out-of-range option", d.ratio, defaultFluxRatio)
	}
}
