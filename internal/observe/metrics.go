// Package observe provides application-wide observability primitives for
// VeilVox: OpenTelemetry metrics, tracing helpers, structured logging
// support, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all VeilVox metrics.
const meterName = "github.com/veilvox/veilvox"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	meter metric.Meter

	// --- Latency histograms per pipeline stage ---

	// RecognizeDuration tracks speech-to-text transcription latency.
	RecognizeDuration metric.Float64Histogram

	// SpeakDuration tracks text-to-speech playback latency.
	SpeakDuration metric.Float64Histogram

	// CycleDuration tracks one full assistant cycle: utterance dequeued
	// through response spoken.
	CycleDuration metric.Float64Histogram

	// ModelLoadDuration tracks the one-off lazy recognizer model load.
	ModelLoadDuration metric.Float64Histogram

	// --- Counters ---

	// UtterancesSegmented counts utterances cut from the capture stream.
	UtterancesSegmented metric.Int64Counter

	// IntentMatches counts classified intents. Use with attribute:
	//   attribute.String("intent", ...)
	IntentMatches metric.Int64Counter

	// RecognizerErrors counts recognition failures (each one turns into an
	// empty transcript, never a crash).
	RecognizerErrors metric.Int64Counter

	// --- Gauges ---

	// QueueDepth tracks utterances waiting between segmenter and assistant.
	QueueDepth metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{meter: m}

	// Histograms.
	if met.RecognizeDuration, err = m.Float64Histogram("veilvox.recognize.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SpeakDuration, err = m.Float64Histogram("veilvox.speak.duration",
		metric.WithDescription("Latency of text-to-speech playback."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CycleDuration, err = m.Float64Histogram("veilvox.cycle.duration",
		metric.WithDescription("End-to-end latency of one assistant cycle."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ModelLoadDuration, err = m.Float64Histogram("veilvox.model_load.duration",
		metric.WithDescription("Latency of the lazy recognizer model load."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.UtterancesSegmented, err = m.Int64Counter("veilvox.utterances.segmented",
		metric.WithDescription("Total utterances cut from the capture stream."),
	); err != nil {
		return nil, err
	}
	if met.IntentMatches, err = m.Int64Counter("veilvox.intent.matches",
		metric.WithDescription("Total classified intents by intent name."),
	); err != nil {
		return nil, err
	}
	if met.RecognizerErrors, err = m.Int64Counter("veilvox.recognizer.errors",
		metric.WithDescription("Total recognition failures degraded to empty transcripts."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.QueueDepth, err = m.Int64UpDownCounter("veilvox.queue.depth",
		metric.WithDescription("Utterances waiting between segmenter and assistant."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("veilvox.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordUtteranceSegmented records one segmented utterance.
func (m *Metrics) RecordUtteranceSegmented(ctx context.Context) {
	m.UtterancesSegmented.Add(ctx, 1)
}

// RecordQueueDepth adjusts the queue depth gauge by delta.
func (m *Metrics) RecordQueueDepth(ctx context.Context, delta int64) {
	m.QueueDepth.Add(ctx, delta)
}

// RecordRecognize records transcription latency and, when err is non-nil,
// bumps the recognizer error counter.
func (m *Metrics) RecordRecognize(ctx context.Context, d time.Duration, err error) {
	m.RecognizeDuration.Record(ctx, d.Seconds())
	if err != nil {
		m.RecognizerErrors.Add(ctx, 1)
	}
}

// RecordSpeak records speech playback latency.
func (m *Metrics) RecordSpeak(ctx context.Context, d time.Duration) {
	m.SpeakDuration.Record(ctx, d.Seconds())
}

// RecordCycle records end-to-end cycle latency.
func (m *Metrics) RecordCycle(ctx context.Context, d time.Duration) {
	m.CycleDuration.Record(ctx, d.Seconds())
}

// RecordModelLoad records the lazy recognizer load latency.
func (m *Metrics) RecordModelLoad(ctx context.Context, d time.Duration) {
	m.ModelLoadDuration.Record(ctx, d.Seconds())
}

// RecordIntent records one classified intent by name.
func (m *Metrics) RecordIntent(ctx context.Context, intent string) {
	m.IntentMatches.Add(ctx, 1,
		metric.WithAttributes(attribute.String("intent", intent)),
	)
}

// RegisterEventDrops exposes the UI bridge's drop counter as an observable
// gauge. The read func is called on every metrics collection.
func (m *Metrics) RegisterEventDrops(read func() uint64) error {
	_, err := m.meter.Int64ObservableGauge("veilvox.events.dropped",
		metric.WithDescription("UI events lost to ring eviction or slow subscribers."),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(read()))
			return nil
		}),
	)
	return err
}
