package segment

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// defaultFluxRatio is the jump factor between consecutive flux values that
// flips the speech decision. Values near 1 make the detector twitchy;
// values above 2 make it miss soft speech onsets.
const defaultFluxRatio = 1.75

// FluxDetector classifies frames by spectral flux: the rise in magnitude
// between consecutive FFT spectra. Speech onsets produce a sharp flux jump
// relative to the previous frame, steady background hum does not, which
// makes this detector more robust than a plain energy threshold in rooms
// with constant noise (fans, traffic).
//
// The detector is stateful and must only be fed frames from one capture
// stream, in order.
type FluxDetector struct {
	ratio    float64
	prev     []float64
	lastFlux float64
	speaking bool
}

var _ Detector = (*FluxDetector)(nil)

// FluxOption customises a [FluxDetector].
type FluxOption func(*FluxDetector)

// WithFluxRatio overrides the decision ratio. Values <= 1 are ignored.
func WithFluxRatio(r float64) FluxOption {
	return func(d *FluxDetector) {
		if r > 1 {
			d.ratio = r
		}
	}
}

// NewFluxDetector creates a spectral-flux detector with the default ratio.
func NewFluxDetector(opts ...FluxOption) *FluxDetector {
	d := &FluxDetector{ratio: defaultFluxRatio}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// IsSpeech implements [Detector].
func (d *FluxDetector) IsSpeech(samples []float32) bool {
	spectrum := magnitudeSpectrum(samples)

	var flux float64
	if d.prev != nil {
		n := len(spectrum)
		if len(d.prev) < n {
			n = len(d.prev)
		}
		for i := range n {
			if diff := spectrum[i] - d.prev[i]; diff > 0 {
				flux += diff
			}
		}
	}
	d.prev = spectrum

	last := d.lastFlux
	d.lastFlux = flux
	if last == 0 {
		// Warm-up: no reference flux yet.
		return false
	}

	switch {
	case flux >= last*d.ratio:
		d.speaking = true
	case flux*d.ratio <= last:
		d.speaking = false
	}
	return d.speaking
}

// magnitudeSpectrum returns the magnitudes of the positive-frequency half
// of the frame's FFT.
func magnitudeSpectrum(samples []float32) []float64 {
	if len(samples) == 0 {
		return nil
	}
	in := make([]float64, len(samples))
	for i, s := range samples {
		in[i] = float64(s)
	}
	spectrum := fft.FFTReal(in)
	out := make([]float64, len(spectrum)/2+1)
	for i := range out {
		out[i] = cmplx.Abs(spectrum[i])
	}
	return out
}
