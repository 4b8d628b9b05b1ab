// Package mock provides a test double for the stt package interfaces.
//
// Use Provider to feed scripted transcripts to the orchestrator and inspect
// which audio was delivered. Each Transcribe call consumes the next Reply;
// once the script is exhausted DefaultText is returned.
//
// Example:
//
//	p := &mock.Provider{
//	    Replies: []mock.Reply{
//	        {Text: "open terminal"},
//	        {Err: errors.New("model crashed")},
//	    },
//	}
//	text, _ := p.Transcribe(ctx, samples, 16000)
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/veilvox/veilvox/pkg/provider/stt"
)

// Reply is one scripted answer for a Transcribe call.
type Reply struct {
	// Text is the transcript to return.
	Text string
	// Err, if non-nil, is returned instead of Text.
	Err error
}

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Samples is a copy of the audio passed to Transcribe.
	Samples []float32
	// SampleRate is the sample rate passed to Transcribe.
	SampleRate int
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Replies are consumed one per Transcribe call, in order.
	Replies []Reply

	// DefaultText is returned once Replies is exhausted.
	DefaultText string

	// LoadErr, if non-nil, is returned by Load and leaves the provider in
	// the failed state.
	LoadErr error

	// LoadDelay stretches Load so tests can observe the loading state.
	LoadDelay time.Duration

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall

	// LoadCallCount is the number of times Load was called.
	LoadCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	state   stt.ModelState
	nextIdx int
}

// Load records the call, applies LoadDelay and settles into the ready or
// failed state depending on LoadErr.
func (p *Provider) Load(ctx context.Context) error {
	p.mu.Lock()
	p.LoadCallCount++
	if p.state == stt.StateReady {
		p.mu.Unlock()
		return nil
	}
	p.state = stt.StateLoading
	delay := p.LoadDelay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			p.mu.Lock()
			p.state = stt.StateFailed
			p.mu.Unlock()
			return ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.LoadErr != nil {
		p.state = stt.StateFailed
		return p.LoadErr
	}
	p.state = stt.StateReady
	return nil
}

// State returns the current model state. Thread-safe.
func (p *Provider) State() stt.ModelState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Transcribe loads the model if needed, records the call and returns the
// next scripted Reply, or DefaultText once the script is exhausted.
func (p *Provider) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if p.State() != stt.StateReady {
		if err := p.Load(ctx); err != nil {
			return "", err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]float32, len(samples))
	copy(cp, samples)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Samples: cp, SampleRate: sampleRate})

	if p.nextIdx < len(p.Replies) {
		r := p.Replies[p.nextIdx]
		p.nextIdx++
		return r.Text, r.Err
	}
	return p.DefaultText, nil
}

// TranscribeCallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) TranscribeCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Close records the call and returns CloseErr.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloseCallCount++
	return p.CloseErr
}

// Reset clears all recorded calls and rewinds the reply script. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
	p.LoadCallCount = 0
	p.CloseCallCount = 0
	p.nextIdx = 0
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
