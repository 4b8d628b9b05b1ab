// Package audio defines the capture-side types and helpers for the voice
// pipeline.
//
// The two primary abstractions are:
//
//   - [Source] — a microphone or other capture device delivering [Frame] values.
//   - [Frame] — one block of normalized mono float32 samples.
//
// Implementations of [Source] live in device-specific subpackages
// (audio/portaudio for real hardware, audio/mock for tests). The interface is
// intentionally narrow to keep the segmenter decoupled from device details.
package audio

import (
	"context"
	"errors"
)

// ErrSourceClosed is returned by ReadFrame after Close has been called.
var ErrSourceClosed = errors.New("audio: source closed")

// Source is a capture device producing a steady stream of audio frames.
//
// ReadFrame blocks until a full frame is available, ctx is cancelled, or the
// device fails. Device failures are terminal: after a non-nil error that is
// not ctx.Err(), the source is dead and callers must not retry.
// Implementations must tolerate one concurrent reader plus Close from
// another goroutine.
type Source interface {
	// ReadFrame blocks until the next frame of captured audio is available
	// and returns it. Returns ctx.Err() if ctx is cancelled while waiting,
	// ErrSourceClosed after Close, or a device error if capture fails.
	ReadFrame(ctx context.Context) (Frame, error)

	// Close releases the capture device. Safe to call more than once.
	Close() error
}
