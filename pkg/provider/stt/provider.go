// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a batch transcription engine (a local whisper.cpp
// model, a whisper-server instance, or a test double) behind a uniform
// interface: hand it one utterance of normalized samples, get text back.
// Providers own a potentially expensive model that is loaded lazily; the
// [ModelState] machine makes that first-use cost observable so a caller can
// surface a "loading" status instead of blocking silently.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// ModelState describes where a provider's model is in its lifecycle.
type ModelState int32

const (
	// StateUninitialized means Load has never been attempted.
	StateUninitialized ModelState = iota

	// StateLoading means a Load is in progress. Transcribe calls issued in
	// this state block until the load settles.
	StateLoading

	// StateReady means the model is in memory and transcription is cheap.
	StateReady

	// StateFailed means the last Load attempt failed. A later Load may
	// retry.
	StateFailed
)

// String returns the lowercase state name.
func (s ModelState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Load brings the model into memory. It is idempotent: once the
	// provider is Ready further calls return nil immediately. After a
	// failure, Load may be called again to retry. Transcribe calls Load
	// implicitly, so calling it up front is an optimisation, not a
	// requirement.
	Load(ctx context.Context) error

	// State reports the current model lifecycle state. Safe to call from
	// any goroutine, including while Load or Transcribe is in flight.
	State() ModelState

	// Transcribe converts one utterance into text. samples is normalized
	// mono PCM in [-1, 1] at the given sample rate; providers resample
	// internally when the engine requires a different rate. A transcript of
	// "" with a nil error means the audio contained no recognizable
	// speech — callers should treat it as "nothing was said", not as a
	// failure.
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)

	// Close releases the model and any underlying resources. The provider
	// is unusable afterwards. Calling Close more than once is safe.
	Close() error
}
