// Package portaudio captures microphone audio through the PortAudio library.
//
// The package opens the default input device in mono float32 at the
// configured sample rate, which is the representation the rest of the
// pipeline consumes directly. One process should hold at most one [Source]
// at a time; PortAudio is initialised on New and terminated on Close.
package portaudio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/veilvox/veilvox/pkg/audio"
)

// Source captures mono float32 frames from the default input device.
type Source struct {
	stream *portaudio.Stream
	buf    []float32
	rate   int

	mu     sync.Mutex
	closed bool
}

var _ audio.Source = (*Source)(nil)

// New opens the default capture device at sampleRate Hz, delivering
// frameSize samples per frame. The caller owns the returned Source and must
// Close it to release the device.
func New(sampleRate, frameSize int) (*Source, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	buf := make([]float32, frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), frameSize, buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("portaudio: open default stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("portaudio: start stream: %w", err)
	}
	return &Source{stream: stream, buf: buf, rate: sampleRate}, nil
}

// ReadFrame implements [audio.Source]. The device read itself cannot be
// interrupted mid-frame; cancellation is observed between frames, so the
// worst-case latency is one frame (64 ms at the default 16 kHz / 1024
// configuration).
func (s *Source) ReadFrame(ctx context.Context) (audio.Frame, error) {
	if err := ctx.Err(); err != nil {
		return audio.Frame{}, err
	}
	if err := s.stream.Read(); err != nil {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return audio.Frame{}, audio.ErrSourceClosed
		}
		return audio.Frame{}, fmt.Errorf("portaudio: read: %w", err)
	}
	samples := make([]float32, len(s.buf))
	copy(samples, s.buf)
	return audio.Frame{Samples: samples, SampleRate: s.rate, Captured: time.Now()}, nil
}

// Close implements [audio.Source]. Aborts any in-flight read and releases
// the device. Safe to call more than once.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.stream.Abort()
	err := s.stream.Close()
	_ = portaudio.Terminate()
	if err != nil {
		return fmt.Errorf("portaudio: close stream: %w", err)
	}
	return nil
}
