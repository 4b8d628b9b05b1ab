// Package espeak provides a tts.Speaker backed by a local speech synthesis
// binary. It looks for espeak-ng, espeak, say or flite on PATH and drives
// whichever it finds, so the same provider works on a bare Linux box and on
// macOS without configuration.
//
// Typical usage:
//
//	sp, err := espeak.New(
//	    espeak.WithRate(175),
//	    espeak.WithVoice("en-us"),
//	)
//	if err != nil { ... }
//	defer sp.Close()
//	sp.Speak(ctx, "VeilVox is ready.")
package espeak

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/veilvox/veilvox/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Speaker = (*Speaker)(nil)

const (
	defaultRate   = 175
	defaultVolume = 1.0
)

// candidates are probed in order by New when no binary is forced.
var candidates = []string{"espeak-ng", "espeak", "say", "flite"}

// Runner abstracts process execution so tests can intercept playback
// commands. Run must block until the process exits.
type Runner interface {
	LookPath(name string) (string, error)
	Run(ctx context.Context, name string, args ...string) error
}

// execRunner is the production Runner backed by os/exec.
type execRunner struct{}

func (execRunner) LookPath(name string) (string, error) { return exec.LookPath(name) }

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Option is a functional option for configuring a Speaker.
type Option func(*Speaker)

// WithBinary forces a specific synthesis binary instead of probing the
// candidate list. The value may be a bare name resolved via PATH or an
// absolute path.
func WithBinary(name string) Option {
	return func(s *Speaker) {
		s.binary = name
	}
}

// WithRate sets the speech rate in words per minute. Defaults to 175.
func WithRate(wpm int) Option {
	return func(s *Speaker) {
		if wpm > 0 {
			s.rate = wpm
		}
	}
}

// WithVoice selects a voice by name (e.g., "en-us" for espeak, "Samantha"
// for say, "slt" for flite). Empty means the binary's default voice.
func WithVoice(voice string) Option {
	return func(s *Speaker) {
		s.voice = voice
	}
}

// WithVolume scales the output volume. 1.0 is the backend's default level;
// values are clamped to [0, 2]. Only espeak flavours honour it.
func WithVolume(v float64) Option {
	return func(s *Speaker) {
		if v < 0 {
			v = 0
		}
		if v > 2 {
			v = 2
		}
		s.volume = v
	}
}

// WithRunner replaces the process runner. Intended for tests.
func WithRunner(r Runner) Option {
	return func(s *Speaker) {
		s.run = r
	}
}

// WithLogger sets the logger used for asynchronous speech failures.
func WithLogger(log *slog.Logger) Option {
	return func(s *Speaker) {
		s.log = log
	}
}

// Speaker implements tts.Speaker by shelling out to a synthesis binary for
// each utterance. It is safe for concurrent use; concurrent Speak calls run
// concurrent processes and the audio device arbitrates.
type Speaker struct {
	binary string
	rate   int
	voice  string
	volume float64
	run    Runner
	log    *slog.Logger

	async sync.WaitGroup
}

// New creates a Speaker. Without WithBinary it probes espeak-ng, espeak,
// say and flite in order and uses the first one found on PATH; if none is
// present an error is returned.
func New(opts ...Option) (*Speaker, error) {
	s := &Speaker{
		rate:   defaultRate,
		volume: defaultVolume,
		run:    execRunner{},
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}

	if s.binary == "" {
		for _, c := range candidates {
			if _, err := s.run.LookPath(c); err == nil {
				s.binary = c
				break
			}
		}
		if s.binary == "" {
			return nil, fmt.Errorf("espeak: no speech binary found (tried %s)", strings.Join(candidates, ", "))
		}
	} else if _, err := s.run.LookPath(s.binary); err != nil {
		return nil, fmt.Errorf("espeak: binary %q: %w", s.binary, err)
	}
	return s, nil
}

// Speak blocks until the synthesis process has finished playing text.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	args := s.args(text)
	if err := s.run.Run(ctx, s.binary, args...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("espeak: %s: %w", s.binary, err)
	}
	return nil
}

// SpeakAsync speaks text on a background goroutine. Errors are logged.
func (s *Speaker) SpeakAsync(ctx context.Context, text string) {
	s.async.Add(1)
	go func() {
		defer s.async.Done()
		if err := s.Speak(ctx, text); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("async speech failed", "error", err)
		}
	}()
}

// Close waits for asynchronous speech still in flight.
func (s *Speaker) Close() error {
	s.async.Wait()
	return nil
}

// args builds the argument list for the configured binary flavour.
func (s *Speaker) args(text string) []string {
	switch filepath.Base(s.binary) {
	case "say":
		args := []string{"-r", strconv.Itoa(s.rate)}
		if s.voice != "" {
			args = append(args, "-v", s.voice)
		}
		return append(args, text)
	case "flite":
		args := []string{}
		if s.voice != "" {
			args = append(args, "-voice", s.voice)
		}
		return append(args, "-t", text)
	default:
		// espeak-ng and espeak share their flag surface. Amplitude 100 is
		// the binary's default, so volume 1.0 maps onto it.
		args := []string{
			"-s", strconv.Itoa(s.rate),
			"-a", strconv.Itoa(int(s.volume * 100)),
		}
		if s.voice != "" {
			args = append(args, "-v", s.voice)
		}
		return append(args, text)
	}
}
