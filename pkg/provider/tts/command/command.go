// Package command provides a tts.Speaker that pipes text through a
// user-configured command line. It is the escape hatch for synthesis stacks
// the built-in providers don't know about, e.g.:
//
//	speaker:
//	  kind: command
//	  command: ["piper-tts", "--output-play", "--text", "{text}"]
//
// Each occurrence of "{text}" in the argument list is replaced with the
// utterance. If no argument contains the placeholder the text is written to
// the command's standard input instead, which covers pipelines like
// ["festival", "--tts"].
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/veilvox/veilvox/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Speaker = (*Speaker)(nil)

// placeholder is substituted with the utterance text.
const placeholder = "{text}"

// Runner abstracts process execution so tests can intercept playback
// commands. Run must block until the process exits.
type Runner interface {
	Run(ctx context.Context, stdin io.Reader, name string, args ...string) error
}

// execRunner is the production Runner backed by os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, stdin io.Reader, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	return cmd.Run()
}

// Option is a functional option for configuring a Speaker.
type Option func(*Speaker)

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

// Speaker implements tts.Speaker by running a configured command for each
// utterance.
type Speaker struct {
	argv     []string
	viaStdin bool
	run      Runner
	log      *slog.Logger

	async sync.WaitGroup
}

// New creates a Speaker that runs argv for every utterance. argv[0] is the
// command name; it must be non-empty.
func New(argv []string, opts ...Option) (*Speaker, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("command: speaker command must not be empty")
	}
	s := &Speaker{
		argv:     append([]string(nil), argv...),
		viaStdin: true,
		run:      execRunner{},
		log:      slog.Default(),
	}
	for _, a := range argv[1:] {
		if strings.Contains(a, placeholder) {
			s.viaStdin = false
			break
		}
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Speak runs the configured command and blocks until it exits.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	args := make([]string, len(s.argv)-1)
	for i, a := range s.argv[1:] {
		args[i] = strings.ReplaceAll(a, placeholder, text)
	}

	var stdin io.Reader
	if s.viaStdin {
		stdin = strings.NewReader(text)
	}

	if err := s.run.Run(ctx, stdin, s.argv[0], args...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("command: %s: %w", s.argv[0], err)
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
