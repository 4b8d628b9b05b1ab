package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/veilvox/veilvox/pkg/audio"
	"github.com/veilvox/veilvox/pkg/provider/stt"
	"github.com/veilvox/veilvox/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory
// has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider kind. The daemon registers the built-in implementations at
// startup; embedders may add their own. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	sources     map[string]func(AudioConfig) (audio.Source, error)
	recognizers map[string]func(RecognizerConfig) (stt.Provider, error)
	speakers    map[string]func(SpeakerConfig) (tts.Speaker, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		sources:     make(map[string]func(AudioConfig) (audio.Source, error)),
		recognizers: make(map[string]func(RecognizerConfig) (stt.Provider, error)),
		speakers:    make(map[string]func(SpeakerConfig) (tts.Speaker, error)),
	}
}

// RegisterSource registers an audio source factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSource(name string, factory func(AudioConfig) (audio.Source, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = factory
}

// RegisterRecognizer registers a speech-to-text factory under name.
func (r *Registry) RegisterRecognizer(name string, factory func(RecognizerConfig) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recognizers[name] = factory
}

// RegisterSpeaker registers a text-to-speech factory under name.
func (r *Registry) RegisterSpeaker(name string, factory func(SpeakerConfig) (tts.Speaker, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speakers[name] = factory
}

// CreateSource instantiates the audio source named by cfg.Source.
// Returns [ErrProviderNotRegistered] if no factory is registered under
// that name.
func (r *Registry) CreateSource(cfg AudioConfig) (audio.Source, error) {
	r.mu.RLock()
	factory, ok := r.sources[cfg.Source]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: source/%q", ErrProviderNotRegistered, cfg.Source)
	}
	return factory(cfg)
}

// CreateRecognizer instantiates the recognizer named by cfg.Name.
func (r *Registry) CreateRecognizer(cfg RecognizerConfig) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.recognizers[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: recognizer/%q", ErrProviderNotRegistered, cfg.Name)
	}
	return factory(cfg)
}

// CreateSpeaker instantiates the speaker named by cfg.Name.
func (r *Registry) CreateSpeaker(cfg SpeakerConfig) (tts.Speaker, error) {
	r.mu.RLock()
	factory, ok := r.speakers[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: speaker/%q", ErrProviderNotRegistered, cfg.Name)
	}
	return factory(cfg)
}
