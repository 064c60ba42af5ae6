// Package observe provides application-wide observability primitives for the
// voice input assistant: OpenTelemetry metrics, tracing helpers, and HTTP
// middleware for the local control listener.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/Yuhamixli/voice-input-assistant"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// UtteranceDuration tracks the recorded audio length of each utterance.
	UtteranceDuration metric.Float64Histogram

	// TranscriptionDuration tracks transcription engine latency.
	TranscriptionDuration metric.Float64Histogram

	// RefinementDuration tracks LLM refinement latency.
	RefinementDuration metric.Float64Histogram

	// --- Counters ---

	// Utterances counts completed utterances. Use with attributes:
	//   attribute.String("engine", ...), attribute.String("status", ...)
	Utterances metric.Int64Counter

	// EngineErrors counts transcription engine failures. Use with attribute:
	//   attribute.String("engine", ...)
	EngineErrors metric.Int64Counter

	// RefinerFallbacks counts utterances delivered with the raw transcript
	// because refinement failed or the breaker was open.
	RefinerFallbacks metric.Int64Counter

	// DroppedFrames counts capture frames discarded because the recording
	// worker fell behind.
	DroppedFrames metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live recognition sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks control-listener request time. Use with
	// attributes:
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
	met := &Metrics{}

	// Histograms.
	if met.UtteranceDuration, err = m.Float64Histogram("voiceinput.utterance.duration",
		metric.WithDescription("Recorded audio length of completed utterances."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("voiceinput.transcription.duration",
		metric.WithDescription("Latency of the transcription engine."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RefinementDuration, err = m.Float64Histogram("voiceinput.refinement.duration",
		metric.WithDescription("Latency of LLM transcript refinement."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Utterances, err = m.Int64Counter("voiceinput.utterances",
		metric.WithDescription("Total completed utterances by engine and status."),
	); err != nil {
		return nil, err
	}
	if met.EngineErrors, err = m.Int64Counter("voiceinput.engine.errors",
		metric.WithDescription("Total transcription engine failures by engine."),
	); err != nil {
		return nil, err
	}
	if met.RefinerFallbacks, err = m.Int64Counter("voiceinput.refiner.fallbacks",
		metric.WithDescription("Total utterances delivered with the unrefined transcript."),
	); err != nil {
		return nil, err
	}
	if met.DroppedFrames, err = m.Int64Counter("voiceinput.frames.dropped",
		metric.WithDescription("Total capture frames dropped by a lagging recording worker."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("voiceinput.active_sessions",
		metric.WithDescription("Number of live recognition sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voiceinput.http.request.duration",
		metric.WithDescription("Control listener request latency by method and path."),
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordUtterance records a completed utterance with its recorded audio
// length in seconds and the standard attribute set.
func (m *Metrics) RecordUtterance(ctx context.Context, engine, status string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("engine", engine),
		attribute.String("status", status),
	)
	m.Utterances.Add(ctx, 1, attrs)
	m.UtteranceDuration.Record(ctx, seconds, attrs)
}

// RecordEngineError records a transcription engine failure.
func (m *Metrics) RecordEngineError(ctx context.Context, engine string) {
	m.EngineErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("engine", engine)),
	)
}

// RecordRefinerFallback records an utterance delivered with the raw
// transcript after a refinement failure.
func (m *Metrics) RecordRefinerFallback(ctx context.Context) {
	m.RefinerFallbacks.Add(ctx, 1)
}

// AddDroppedFrames records n capture frames discarded by a lagging worker.
func (m *Metrics) AddDroppedFrames(ctx context.Context, n int64) {
	m.DroppedFrames.Add(ctx, n)
}
