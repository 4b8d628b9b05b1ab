// Package mock provides a test double for the tts.Speaker interface.
//
// Use Speaker to verify what the orchestrator speaks and in what order, and
// to simulate slow or failing playback.
//
// Example:
//
//	sp := &mock.Speaker{}
//	assistant := New(..., sp)
//	...
//	if got := sp.SpokenTexts(); got[0] != "Opening the terminal." { ... }
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/veilvox/veilvox/pkg/provider/tts"
)

// SpeakCall records a single invocation of Speaker.Speak or SpeakAsync.
type SpeakCall struct {
	// Text is the utterance passed to the call.
	Text string
	// Async reports whether the call came through SpeakAsync.
	Async bool
}

// Speaker is a mock implementation of tts.Speaker.
type Speaker struct {
	mu sync.Mutex

	// SpeakErr, if non-nil, is returned by every Speak call.
	SpeakErr error

	// SpeakDelay blocks each Speak call to simulate playback time. The
	// block is interrupted by ctx cancellation.
	SpeakDelay time.Duration

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// SpeakCalls records every Speak and SpeakAsync invocation in order.
	SpeakCalls []SpeakCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Speak records the call, waits out SpeakDelay and returns SpeakErr.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	s.record(SpeakCall{Text: text})
	if s.SpeakDelay > 0 {
		select {
		case <-time.After(s.SpeakDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.SpeakErr
}

// SpeakAsync records the call synchronously so tests stay deterministic; no
// goroutine is spawned and SpeakErr is ignored.
func (s *Speaker) SpeakAsync(ctx context.Context, text string) {
	s.record(SpeakCall{Text: text, Async: true})
}

// Close records the call and returns CloseErr.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}

// SpokenTexts returns the text of every recorded call in order. Thread-safe.
func (s *Speaker) SpokenTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.SpeakCalls))
	for i, c := range s.SpeakCalls {
		out[i] = c.Text
	}
	return out
}

// SpeakCallCount returns the number of recorded calls. Thread-safe.
func (s *Speaker) SpeakCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SpeakCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (s *Speaker) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SpeakCalls = nil
	s.CloseCallCount = 0
}

func (s *Speaker) record(c SpeakCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SpeakCalls = append(s.SpeakCalls, c)
}

// Ensure Speaker implements tts.Speaker at compile time.
var _ tts.Speaker = (*Speaker)(nil)
