package audio_test

import (
	"math"
	"testing"
	"time"

	"github.com/veilvox/veilvox/pkg/audio"
)

func TestEnergy_Empty(t *testing.T) {
	if got := audio.Energy(nil); got != 0 {
		t.Errorf("empty input: got %d, want 0", got)
	}
}

func TestEnergy_Scale(t *testing.T) {
	// A constant amplitude of 0.5 maps to half the int16 range.
	samples := make([]float32, 1024)
	for i := range samples {
		samples[i] = 0.5
		if i%2 == 1 {
			samples[i] = -0.5 // sign must not matter
		}
	}
	got := audio.Energy(samples)
	if got != 16384 {
		t.Errorf("got %d, want 16384", got)
	}
}

func TestEnergy_Silence(t *testing.T) {
	samples := make([]float32, 1024)
	if got := audio.Energy(samples); got != 0 {
		t.Errorf("all-zero frame: got %d, want 0", got)
	}
}

func TestRMS(t *testing.T) {
	samples := []float32{0.5, -0.5, 0.5, -0.5}
	got := audio.RMS(samples)
	if math.Abs(got-0.5) > 1e-6 {
		t.Errorf("got %f, want 0.5", got)
	}
	if audio.RMS(nil) != 0 {
		t.Error("empty input should give 0")
	}
}

func TestTrimSilence(t *testing.T) {
	in := []float32{0, 0.001, 0.5, 0.3, 0.002, 0}
	got := audio.TrimSilence(in, 0.01)
	want := []float32{0.5, 0.3}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %f, want %f", i, got[i], want[i])
		}
	}
}

func TestTrimSilence_AllQuiet(t *testing.T) {
	// When nothing exceeds the threshold the input comes back unchanged so
	// downstream length checks still see the original utterance.
	in := []float32{0.001, 0.002, 0.001}
	got := audio.TrimSilence(in, 0.01)
	if len(got) != len(in) {
		t.Fatalf("expected unchanged input, got %d samples", len(got))
	}
	if &got[0] != &in[0] {
		t.Error("expected same slice for all-quiet input")
	}
}

func TestTrimSilence_NegativeAmplitude(t *testing.T) {
	in := []float32{0, -0.5, 0}
	got := audio.TrimSilence(in, 0.01)
	if len(got) != 1 || got[0] != -0.5 {
		t.Fatalf("got %v, want [-0.5]", got)
	}
}

func TestFrameDuration(t *testing.T) {
	f := audio.Frame{Samples: make([]float32, 1024), SampleRate: 16000}
	got := f.Duration()
	want := 64 * time.Millisecond
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if (audio.Frame{}).Duration() != 0 {
		t.Error("zero frame should have zero duration")
	}
}
