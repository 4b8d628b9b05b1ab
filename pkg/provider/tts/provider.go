// Package tts defines the Speaker interface for speech output backends.
//
// A speaker wraps a speech synthesis backend (e.g., a local espeak binary or
// a user-configured command pipeline) behind a uniform blocking interface.
// The assistant speaks one response at a time: Speak returns only once
// playback has finished, which is what keeps a spoken reply from overlapping
// the next captured utterance.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Speaker is the abstraction over any speech output backend.
type Speaker interface {
	// Speak renders text as audible speech and blocks until playback has
	// finished or ctx is cancelled. Speaking an empty string is a no-op.
	Speak(ctx context.Context, text string) error

	// SpeakAsync renders text without blocking the caller. It is meant for
	// out-of-band lines such as the startup greeting. Failures are logged
	// by the implementation rather than returned.
	SpeakAsync(ctx context.Context, text string)

	// Close releases resources held by the speaker and waits for any
	// asynchronous speech still in flight. Speak must not be called after
	// Close.
	Close() error
}
