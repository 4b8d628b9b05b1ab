// Package segment turns the raw microphone stream into discrete utterances.
//
// A [Segmenter] reads frames from an [audio.Source], classifies each frame
// as speech or silence through a [Detector], and accumulates speech (plus
// the trailing silence that ends it) into [Utterance] values pushed onto a
// [Queue]. The assistant loop consumes the queue on the other side.
//
// Segmentation is deliberately simple: a frame is speech when the detector
// says so, an utterance closes after a configured run of consecutive silent
// frames, and silence between utterances is discarded outright.
package segment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/veilvox/veilvox/internal/event"
	"github.com/veilvox/veilvox/internal/observe"
	"github.com/veilvox/veilvox/pkg/audio"
)

// Config holds the segmentation parameters.
type Config struct {
	// SampleRate of the capture stream in Hz.
	SampleRate int

	// FrameSize is the number of samples per capture frame.
	FrameSize int

	// SilenceThreshold is the energy level (16-bit scale) separating speech
	// from silence for the default detector.
	SilenceThreshold int

	// SilenceDuration is the quiet time that closes an utterance.
	SilenceDuration time.Duration
}

// Segmenter cuts one capture stream into utterances. Create one per
// listening period with [New] and drive it with [Segmenter.Run].
type Segmenter struct {
	source  audio.Source
	queue   *Queue
	bridge  *event.Bridge
	det     Detector
	log     *slog.Logger
	metrics *observe.Metrics
	tap     func(Utterance)

	closeFrames int
}

// Option customises a [Segmenter].
type Option func(*Segmenter)

// WithDetector replaces the default energy detector.
func WithDetector(d Detector) Option {
	return func(s *Segmenter) { s.det = d }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Segmenter) { s.log = l }
}

// WithMetrics sets the metrics sink. Defaults to observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Segmenter) { s.metrics = m }
}

// WithTap registers a callback invoked with every segmented utterance after
// it has been enqueued. The callback runs on the capture goroutine, so it
// must be quick; the archive writer is the intended consumer.
func WithTap(fn func(Utterance)) Option {
	return func(s *Segmenter) { s.tap = fn }
}

// New creates a segmenter reading from source and delivering into queue.
// Amplitude events for every processed frame are published on bridge.
func New(source audio.Source, queue *Queue, bridge *event.Bridge, cfg Config, opts ...Option) *Segmenter {
	s := &Segmenter{
		source:      source,
		queue:       queue,
		bridge:      bridge,
		det:         EnergyDetector{Threshold: cfg.SilenceThreshold},
		log:         slog.Default(),
		metrics:     observe.DefaultMetrics(),
		closeFrames: CloseFrames(cfg.SilenceDuration, cfg.SampleRate, cfg.FrameSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run reads frames until ctx is cancelled or the capture device fails.
// A device failure is terminal: Run returns the error and must not be
// restarted on the same source. Cancellation and a source closed during
// shutdown return nil.
//
// Any speech buffered when Run stops is discarded; a half-captured
// utterance with no closing silence is not worth recognizing.
func (s *Segmenter) Run(ctx context.Context) error {
	var (
		buffered  []float32
		speaking  bool
		silentRun int
		start     time.Time
	)

	s.log.Debug("segmenter started", "closeFrames", s.closeFrames)

	for {
		frame, err := s.source.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, audio.ErrSourceClosed) {
				s.log.Debug("segmenter stopped")
				return nil
			}
			s.log.Error("audio capture failed", "error", err)
			return fmt.Errorf("segment: capture: %w", err)
		}

		// Loudness is reported for every frame, speech or not, so level
		// meters keep moving while the user is quiet.
		s.bridge.Emit(event.Amplitude(audio.Energy(frame.Samples)))

		switch {
		case s.det.IsSpeech(frame.Samples):
			if !speaking {
				speaking = true
				start = frame.Captured
				s.log.Debug("speech started")
			}
			buffered = append(buffered, frame.Samples...)
			silentRun = 0

		case speaking:
			// Trailing silence stays in the utterance.
			buffered = append(buffered, frame.Samples...)
			silentRun++
			if silentRun >= s.closeFrames {
				utt := Utterance{
					Samples:    buffered,
					SampleRate: frame.SampleRate,
					Start:      start,
					End:        frame.Captured.Add(frame.Duration()),
				}
				s.queue.Enqueue(utt)
				s.metrics.RecordUtteranceSegmented(ctx)
				s.metrics.RecordQueueDepth(ctx, 1)
				s.log.Info("utterance segmented",
					"duration", utt.Duration().Round(time.Millisecond),
					"samples", len(utt.Samples),
				)
				if s.tap != nil {
					s.tap(utt)
				}
				buffered = nil
				speaking = false
				silentRun = 0
			}

		default:
			// Silence while nobody is speaking is dropped.
		}
	}
}
