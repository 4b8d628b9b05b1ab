package config_test

import (
	"strings"
	"testing"

	"github.com/veilvox/veilvox/internal/config"
)

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: verbose
recognizer:
  name: mock
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log_level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_InvalidDetector(t *testing.T) {
	t.Parallel()
	yaml := `
audio:
  detector: webrtc
recognizer:
  name: mock
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid detector, got nil")
	}
	if !strings.Contains(err.Error(), "detector") {
		t.Errorf("error should mention detector, got: %v", err)
	}
}

func TestValidate_ZeroSampleRate(t *testing.T) {
	t.Parallel()
	yaml := `
audio:
  sample_rate: 0
recognizer:
  name: mock
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for zero sample_rate, got nil")
	}
	if !strings.Contains(err.Error(), "sample_rate") {
		t.Errorf("error should mention sample_rate, got: %v", err)
	}
}

func TestValidate_NegativeSilenceThreshold(t *testing.T) {
	t.Parallel()
	yaml := `
audio:
  silence_threshold: -1
recognizer:
  name: mock
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative silence_threshold, got nil")
	}
	if !strings.Contains(err.Error(), "silence_threshold") {
		t.Errorf("error should mention silence_threshold, got: %v", err)
	}
}

func TestValidate_WhisperServerRequiresURL(t *testing.T) {
	t.Parallel()
	yaml := `
recognizer:
  name: whisper-server
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for whisper-server without server_url, got nil")
	}
	if !strings.Contains(err.Error(), "server_url") {
		t.Errorf("error should mention server_url, got: %v", err)
	}
}

func TestValidate_CommandSpeakerRequiresArgv(t *testing.T) {
	t.Parallel()
	yaml := `
recognizer:
  name: mock
speaker:
  name: command
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for command speaker without argv, got nil")
	}
	if !strings.Contains(err.Error(), "speaker.command") {
		t.Errorf("error should mention speaker.command, got: %v", err)
	}
}

func TestValidate_VolumeOutOfRange(t *testing.T) {
	t.Parallel()
	yaml := `
recognizer:
  name: mock
speaker:
  volume: 3.5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range volume, got nil")
	}
	if !strings.Contains(err.Error(), "volume") {
		t.Errorf("error should mention volume, got: %v", err)
	}
}

func TestValidate_JoinsAllFailures(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
audio:
  frame_size: 0
recognizer:
  name: mock
speaker:
  volume: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected joined validation errors, got nil")
	}
	for _, want := range []string{"log_level", "frame_size", "volume"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %s, got: %v", want, err)
		}
	}
}
