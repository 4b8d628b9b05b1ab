// Package mock provides an in-memory implementation of [audio.Source] for
// use in unit tests.
//
// The mock is safe for concurrent use. It plays back a scripted sequence of
// frames, records call counts, and exposes exported fields the test can set
// to control error behaviour.
//
// Typical usage:
//
//	src := &mock.Source{
//	    Frames: []audio.Frame{
//	        {Samples: loud, SampleRate: 16000},
//	        {Samples: quiet, SampleRate: 16000},
//	    },
//	}
//	frame, err := src.ReadFrame(ctx)
package mock

import (
	"context"
	"sync"

	"github.com/veilvox/veilvox/pkg/audio"
)

// Source is a mock implementation of [audio.Source].
//
// ReadFrame returns the scripted Frames in order. Once the script is
// exhausted it returns ReadError if set; otherwise it blocks until ctx is
// cancelled or Close is called, mimicking a healthy but quiet device.
type Source struct {
	mu sync.Mutex

	// Frames is the scripted sequence returned by successive ReadFrame calls.
	Frames []audio.Frame

	// ReadError is returned once the scripted frames are exhausted.
	// Leave nil to block instead (the common "device is idle" case).
	ReadError error

	// CloseError is returned by Close.
	CloseError error

	// CallCountRead records how many times ReadFrame was called.
	CallCountRead int

	// CallCountClose records how many times Close was called.
	CallCountClose int

	next      int
	closed    chan struct{}
	closeOnce sync.Once
}

var _ audio.Source = (*Source)(nil)

// Push appends frames to the playback script. Safe to call while a reader
// is blocked; the frames become visible to the next ReadFrame call.
func (s *Source) Push(frames ...audio.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Frames = append(s.Frames, frames...)
}

// ReadFrame implements [audio.Source].
func (s *Source) ReadFrame(ctx context.Context) (audio.Frame, error) {
	s.mu.Lock()
	s.CallCountRead++
	closed := s.closedChan()
	if s.next < len(s.Frames) {
		frame := s.Frames[s.next]
		s.next++
		s.mu.Unlock()
		return frame, nil
	}
	readErr := s.ReadError
	s.mu.Unlock()

	select {
	case <-closed:
		return audio.Frame{}, audio.ErrSourceClosed
	default:
	}
	if readErr != nil {
		return audio.Frame{}, readErr
	}

	select {
	case <-ctx.Done():
		return audio.Frame{}, ctx.Err()
	case <-closed:
		return audio.Frame{}, audio.ErrSourceClosed
	}
}

// Close implements [audio.Source]. Unblocks any reader waiting for frames.
func (s *Source) Close() error {
	s.mu.Lock()
	s.CallCountClose++
	ch := s.closedChan()
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(ch) })
	return s.CloseError
}

// closedChan lazily initialises the closed channel. Callers must hold mu.
func (s *Source) closedChan() chan struct{} {
	if s.closed == nil {
		s.closed = make(chan struct{})
	}
	return s.closed
}
