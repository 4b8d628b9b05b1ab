package audio_test

import (
	"encoding/binary"
	"testing"

	"github.com/veilvox/veilvox/pkg/audio"
)

func TestFloat32ToInt16(t *testing.T) {
	got := audio.Float32ToInt16([]float32{0, 0.5, -0.5, 1, -1})
	want := []int16{0, 16383, -16383, 32767, -32767}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestFloat32ToInt16_Clamping(t *testing.T) {
	// Out-of-range input must clamp, not wrap.
	got := audio.Float32ToInt16([]float32{1.5, -1.5})
	if got[0] != 32767 {
		t.Errorf("positive overflow: got %d, want 32767", got[0])
	}
	if got[1] != -32768 {
		t.Errorf("negative overflow: got %d, want -32768", got[1])
	}
}

func TestFloat32ToPCM16(t *testing.T) {
	pcm := audio.Float32ToPCM16([]float32{0.5, -0.25})
	if len(pcm) != 4 {
		t.Fatalf("expected 4 bytes, got %d", len(pcm))
	}
	s0 := int16(binary.LittleEndian.Uint16(pcm[0:]))
	s1 := int16(binary.LittleEndian.Uint16(pcm[2:]))
	if s0 != 16383 {
		t.Errorf("sample 0: got %d, want 16383", s0)
	}
	if s1 != -8191 {
		t.Errorf("sample 1: got %d, want -8191", s1)
	}
}

func TestResample_SameRate(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := audio.Resample(in, 16000, 16000)
	if len(out) != len(in) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(in))
	}
	// Same slice — pointer equality check.
	if &out[0] != &in[0] {
		t.Error("expected same slice (zero allocation) for matching rates")
	}
}

func TestResample_Upsample(t *testing.T) {
	// 2 samples at 16kHz → 6 samples at 48kHz (3x).
	out := audio.Resample([]float32{0.1, 0.2}, 16000, 48000)
	if len(out) != 6 {
		t.Fatalf("expected 6 samples, got %d", len(out))
	}
	if out[0] != 0.1 {
		t.Errorf("first sample: got %f, want 0.1", out[0])
	}
	last := out[len(out)-1]
	if last < 0.15 || last > 0.25 {
		t.Errorf("last sample: got %f, want close to 0.2", last)
	}
}

func TestResample_Downsample(t *testing.T) {
	// 6 samples at 48kHz → 2 samples at 16kHz (1/3x).
	out := audio.Resample([]float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}, 48000, 16000)
	if len(out) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(out))
	}
}

func TestResample_ZeroRate(t *testing.T) {
	in := []float32{0.1, 0.2}
	if out := audio.Resample(in, 0, 48000); len(out) != len(in) {
		t.Errorf("expected unchanged output for zero srcRate, got len %d", len(out))
	}
	if out := audio.Resample(in, 48000, 0); len(out) != len(in) {
		t.Errorf("expected unchanged output for zero dstRate, got len %d", len(out))
	}
	if out := audio.Resample(in, -1, 48000); len(out) != len(in) {
		t.Errorf("expected unchanged output for negative srcRate, got len %d", len(out))
	}
}
