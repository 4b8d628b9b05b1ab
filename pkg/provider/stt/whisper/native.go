package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/veilvox/veilvox/pkg/audio"
	"github.com/veilvox/veilvox/pkg/provider/stt"
)

var _ stt.Provider = (*Native)(nil)

// Native implements stt.Provider using the whisper.cpp Go bindings (cgo).
// The model file is loaded lazily on first use — a multi-hundred-megabyte
// read that [Native.Load] makes explicit so callers can announce it.
type Native struct {
	modelPath string
	language  string
	log       *slog.Logger

	state atomic.Int32

	mu     sync.Mutex // serialises Load/Close and guards model
	model  whisperlib.Model
	closed bool
}

// NativeOption is a functional option for configuring a [Native].
type NativeOption func(*Native)

// WithNativeLanguage sets the language code for transcription (e.g. "en",
// "de"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *Native) {
		if lang != "" {
			p.language = lang
		}
	}
}

// WithNativeLogger sets the logger. Defaults to slog.Default().
func WithNativeLogger(l *slog.Logger) NativeOption {
	return func(p *Native) { p.log = l }
}

// NewNative creates a provider that will load the whisper.cpp model from
// modelPath on first use. The file is not touched here, so construction is
// cheap and cannot fail on a missing model — that surfaces from Load.
func NewNative(modelPath string, opts ...NativeOption) (*Native, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: model path must not be empty")
	}
	p := &Native{
		modelPath: modelPath,
		language:  defaultLanguage,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Load implements stt.Provider. The first call reads the model file into
// memory; concurrent callers block until that load settles and then share
// its outcome. After a failure a later call retries.
func (p *Native) Load(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("whisper: provider is closed")
	}
	if p.model != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.state.Store(int32(stt.StateLoading))
	p.log.Info("loading whisper model", "path", p.modelPath)
	start := time.Now()

	model, err := whisperlib.New(p.modelPath)
	if err != nil {
		p.state.Store(int32(stt.StateFailed))
		return fmt.Errorf("whisper: load model %q: %w", p.modelPath, err)
	}

	p.model = model
	p.state.Store(int32(stt.StateReady))
	p.log.Info("whisper model loaded", "took", time.Since(start).Round(time.Millisecond))
	return nil
}

// State implements stt.Provider.
func (p *Native) State() stt.ModelState {
	return stt.ModelState(p.state.Load())
}

// Transcribe implements stt.Provider. Each call creates a fresh whisper
// context from the shared model, so concurrent transcriptions do not
// interfere.
func (p *Native) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if err := p.Load(ctx); err != nil {
		return "", err
	}

	trimmed := audio.TrimSilence(samples, trimThreshold)
	if len(trimmed) < minSamples {
		return "", nil
	}
	if sampleRate > 0 && sampleRate != whisperSampleRate {
		trimmed = audio.Resample(trimmed, sampleRate, whisperSampleRate)
	}

	p.mu.Lock()
	model := p.model
	p.mu.Unlock()
	if model == nil {
		return "", errors.New("whisper: provider is closed")
	}

	wctx, err := model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(p.language); err != nil {
		p.log.Warn("whisper: set language failed, using model default", "language", p.language, "error", err)
	}
	if err := wctx.Process(trimmed, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// Close implements stt.Provider.
func (p *Native) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.model == nil {
		return nil
	}
	err := p.model.Close()
	p.model = nil
	return err
}
