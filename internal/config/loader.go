package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names; the
// [Registry] is the final authority at construction time.
var ValidProviderNames = map[string][]string{
	"source":     {"portaudio", "mock"},
	"recognizer": {"whisper", "whisper-server", "mock"},
	"speaker":    {"espeak", "say", "command", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. An empty document yields the defaults unchanged.
// Unknown keys are rejected so typos fail loudly instead of silently
// falling back.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found;
// recoverable oddities are logged as warnings instead.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("source", cfg.Audio.Source)
	validateProviderName("recognizer", cfg.Recognizer.Name)
	validateProviderName("speaker", cfg.Speaker.Name)

	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size %d must be positive", cfg.Audio.FrameSize))
	}
	if cfg.Audio.SilenceThreshold < 0 {
		errs = append(errs, fmt.Errorf("audio.silence_threshold %d must not be negative", cfg.Audio.SilenceThreshold))
	}
	if cfg.Audio.SilenceDuration <= 0 {
		errs = append(errs, fmt.Errorf("audio.silence_duration %.2f must be positive", cfg.Audio.SilenceDuration))
	}
	if cfg.Audio.Detector != "" && !cfg.Audio.Detector.IsValid() {
		errs = append(errs, fmt.Errorf("audio.detector %q is invalid; valid values: energy, flux", cfg.Audio.Detector))
	}

	switch cfg.Recognizer.Name {
	case "whisper":
		if cfg.Recognizer.ModelPath == "" {
			errs = append(errs, errors.New("recognizer.model_path is required when recognizer.name is whisper"))
		}
	case "whisper-server":
		if cfg.Recognizer.ServerURL == "" {
			errs = append(errs, errors.New("recognizer.server_url is required when recognizer.name is whisper-server"))
		}
	}

	if cfg.Speaker.Name == "command" && len(cfg.Speaker.Command) == 0 {
		errs = append(errs, errors.New("speaker.command is required when speaker.name is command"))
	}
	if cfg.Speaker.Volume < 0 || cfg.Speaker.Volume > 2 {
		errs = append(errs, fmt.Errorf("speaker.volume %.2f is out of range [0, 2]", cfg.Speaker.Volume))
	}
	if cfg.Speaker.Rate < 0 {
		errs = append(errs, fmt.Errorf("speaker.rate %d must not be negative", cfg.Speaker.Rate))
	}

	// Soft cross-checks. A sample rate the whisper models were not trained
	// on still works (the recognizer resamples) but costs quality.
	if cfg.Audio.SampleRate != 16000 && (cfg.Recognizer.Name == "whisper" || cfg.Recognizer.Name == "whisper-server") {
		slog.Warn("audio.sample_rate differs from the 16 kHz whisper models expect; utterances will be resampled",
			"sample_rate", cfg.Audio.SampleRate,
		)
	}
	if cfg.Listen.Autostart && cfg.Audio.Source == "mock" {
		slog.Warn("listen.autostart with the mock audio source captures nothing; intended for tests only")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
