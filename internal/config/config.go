// Package config provides the configuration schema, loader, and provider
// registry for the VeilVox voice assistant daemon.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity for the daemon.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog maps the level to its log/slog equivalent. Unknown values map to
// Info, matching the default.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Detector selects the speech/silence decision algorithm used by the
// utterance segmenter.
type Detector string

const (
	// DetectorEnergy classifies frames by mean absolute amplitude against
	// audio.silence_threshold. The default.
	DetectorEnergy Detector = "energy"

	// DetectorFlux classifies frames by spectral flux between consecutive
	// FFT spectra. More robust against steady background hum.
	DetectorFlux Detector = "flux"
)

// IsValid reports whether d is a recognised detector name.
func (d Detector) IsValid() bool {
	return d == DetectorEnergy || d == DetectorFlux
}

// Config is the root configuration structure for VeilVox.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader];
// [Default] supplies the values any omitted field falls back to.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Audio      AudioConfig      `yaml:"audio"`
	Recognizer RecognizerConfig `yaml:"recognizer"`
	Speaker    SpeakerConfig    `yaml:"speaker"`
	Listen     ListenConfig     `yaml:"listen"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Chime      ChimeConfig      `yaml:"chime"`
}

// ServerConfig holds network and logging settings for the control surface.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP/WebSocket control surface
	// listens on. The default binds loopback only; widen it deliberately.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig holds microphone capture and segmentation settings.
type AudioConfig struct {
	// Source selects the registered audio source ("portaudio", "mock").
	Source string `yaml:"source"`

	// SampleRate of the capture stream in Hz.
	SampleRate int `yaml:"sample_rate"`

	// FrameSize is the number of samples read from the device per frame.
	FrameSize int `yaml:"frame_size"`

	// SilenceThreshold is the energy level (16-bit amplitude scale) below
	// which a frame counts as silence.
	SilenceThreshold int `yaml:"silence_threshold"`

	// SilenceDuration is the quiet time, in seconds, that closes an
	// utterance once speech has started.
	SilenceDuration float64 `yaml:"silence_duration"`

	// Detector selects the speech detection algorithm.
	Detector Detector `yaml:"detector"`
}

// SilenceWindow returns SilenceDuration as a [time.Duration].
func (a AudioConfig) SilenceWindow() time.Duration {
	return time.Duration(a.SilenceDuration * float64(time.Second))
}

// RecognizerConfig selects and configures the speech-to-text provider.
type RecognizerConfig struct {
	// Name selects the registered recognizer ("whisper", "whisper-server",
	// "mock").
	Name string `yaml:"name"`

	// ModelPath is the whisper.cpp GGML model file loaded by the native
	// "whisper" recognizer.
	ModelPath string `yaml:"model_path"`

	// ServerURL is the whisper.cpp server base URL used by the
	// "whisper-server" recognizer (e.g., "http://localhost:8080").
	ServerURL string `yaml:"server_url"`

	// Language is the ISO 639-1 hint passed to the recognizer.
	Language string `yaml:"language"`
}

// SpeakerConfig selects and configures the text-to-speech output.
type SpeakerConfig struct {
	// Name selects the registered speaker ("espeak", "say", "command",
	// "mock").
	Name string `yaml:"name"`

	// Binary overrides the speech binary probed by the "espeak" speaker.
	Binary string `yaml:"binary"`

	// Voice is the voice identifier passed to the speech binary
	// (e.g., "en-us" for espeak, "Samantha" for say).
	Voice string `yaml:"voice"`

	// Rate is the speaking rate in words per minute.
	Rate int `yaml:"rate"`

	// Volume scales output loudness in [0, 2]; 1.0 is the binary default.
	Volume float64 `yaml:"volume"`

	// Command is the argv template used by the "command" speaker. A "{text}"
	// placeholder is substituted; without one the text is piped to stdin.
	Command []string `yaml:"command"`
}

// ListenConfig controls the initial listening state.
type ListenConfig struct {
	// Autostart begins listening as soon as the daemon is up. When false
	// the daemon starts paused and waits for a start command.
	Autostart bool `yaml:"autostart"`

	// Greeting is spoken once at startup. Empty disables it.
	Greeting string `yaml:"greeting"`
}

// ArchiveConfig controls the optional utterance archive.
type ArchiveConfig struct {
	// Dir is the directory segmented utterances are written to as WAV
	// files. Empty disables archiving.
	Dir string `yaml:"dir"`
}

// ChimeConfig controls acoustic feedback tones.
type ChimeConfig struct {
	// Enabled plays a short earcon when listening starts and stops, so a
	// headless user hears the toggle land.
	Enabled bool `yaml:"enabled"`
}

// Default returns a fully-populated Config carrying every built-in default.
// Loading decodes on top of this, so a partial YAML file only overrides
// what it names.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:8590",
			LogLevel:   LogInfo,
		},
		Audio: AudioConfig{
			Source:           "portaudio",
			SampleRate:       16000,
			FrameSize:        1024,
			SilenceThreshold: 500,
			SilenceDuration:  1.5,
			Detector:         DetectorEnergy,
		},
		Recognizer: RecognizerConfig{
			Name:     "whisper",
			Language: "en",
		},
		Speaker: SpeakerConfig{
			Name:   "espeak",
			Rate:   175,
			Volume: 1.0,
		},
		Listen: ListenConfig{
			Autostart: true,
			Greeting:  "VeilVox is ready. How can I help you?",
		},
		Chime: ChimeConfig{
			Enabled: true,
		},
	}
}
