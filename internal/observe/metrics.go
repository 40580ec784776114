// Package observe provides application-wide observability primitives for
// Orato: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
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

// meterName is the instrumentation scope name used for all Orato metrics.
const meterName = "github.com/orato-voice/orato"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// CaptureDuration tracks the audio length of finished recordings.
	CaptureDuration metric.Float64Histogram

	// TranscribeDuration tracks batch re-transcription latency.
	TranscribeDuration metric.Float64Histogram

	// OracleDuration tracks oracle (LLM) request latency. Use with attributes:
	//   attribute.String("op", ...), attribute.String("status", ...)
	OracleDuration metric.Float64Histogram

	// --- Counters ---

	// OracleRequests counts oracle requests. Use with attributes:
	//   attribute.String("op", ...), attribute.String("status", ...)
	OracleRequests metric.Int64Counter

	// StreamFragments counts live transcript fragments by finality. Use with
	// attribute: attribute.Bool("final", ...)
	StreamFragments metric.Int64Counter

	// MilestoneCompletions counts completed milestones by task type.
	MilestoneCompletions metric.Int64Counter

	// UnparseableTargets counts milestone targets the rule parser rejected.
	UnparseableTargets metric.Int64Counter

	// --- Gauges ---

	// ActiveRecordings tracks recordings currently in flight.
	ActiveRecordings metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// transcription and oracle latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// captureBuckets defines histogram bucket boundaries (in seconds) for
// recording lengths, up to the 300 s ceiling.
var captureBuckets = []float64{
	3, 10, 30, 60, 120, 180, 240, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.CaptureDuration, err = m.Float64Histogram("orato.capture.duration",
		metric.WithDescription("Audio length of finished recordings."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(captureBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("orato.transcribe.duration",
		metric.WithDescription("Latency of batch re-transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.OracleDuration, err = m.Float64Histogram("orato.oracle.duration",
		metric.WithDescription("Latency of oracle requests by operation and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.OracleRequests, err = m.Int64Counter("orato.oracle.requests",
		metric.WithDescription("Total oracle requests by operation and status."),
	); err != nil {
		return nil, err
	}
	if met.StreamFragments, err = m.Int64Counter("orato.stream.fragments",
		metric.WithDescription("Total live transcript fragments by finality."),
	); err != nil {
		return nil, err
	}
	if met.MilestoneCompletions, err = m.Int64Counter("orato.journey.milestone_completions",
		metric.WithDescription("Total completed milestones by task type."),
	); err != nil {
		return nil, err
	}
	if met.UnparseableTargets, err = m.Int64Counter("orato.journey.unparseable_targets",
		metric.WithDescription("Total milestone targets rejected by the rule parser."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveRecordings, err = m.Int64UpDownCounter("orato.active_recordings",
		metric.WithDescription("Number of recordings currently in flight."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("orato.http.request.duration",
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordCaptureDuration records the audio length of a finished recording.
func (m *Metrics) RecordCaptureDuration(ctx context.Context, d time.Duration) {
	m.CaptureDuration.Record(ctx, d.Seconds())
}

// RecordTranscribeDuration records one batch re-transcription with its
// outcome status ("ok" or "error").
func (m *Metrics) RecordTranscribeDuration(ctx context.Context, d time.Duration, status string) {
	m.TranscribeDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordOracleRequest records one oracle request's latency and outcome.
func (m *Metrics) RecordOracleRequest(ctx context.Context, op string, d time.Duration, status string) {
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("status", status),
	)
	m.OracleRequests.Add(ctx, 1, attrs)
	m.OracleDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordStreamFragment counts one live transcript fragment.
func (m *Metrics) RecordStreamFragment(ctx context.Context, final bool) {
	m.StreamFragments.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("final", final)),
	)
}

// RecordMilestoneCompletion counts one completed milestone by task type.
func (m *Metrics) RecordMilestoneCompletion(ctx context.Context, taskType string) {
	m.MilestoneCompletions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("task_type", taskType)),
	)
}

// RecordUnparseableTarget counts one milestone target the parser rejected.
func (m *Metrics) RecordUnparseableTarget(ctx context.Context) {
	m.UnparseableTargets.Add(ctx, 1)
}

// AddActiveRecordings moves the in-flight recording gauge by delta.
func (m *Metrics) AddActiveRecordings(ctx context.Context, delta int) {
	m.ActiveRecordings.Add(ctx, int64(delta))
}
