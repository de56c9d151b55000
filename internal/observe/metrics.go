// Package observe provides application-wide observability primitives for
// voterpulse: OpenTelemetry metrics, tracing helpers, and HTTP middleware
// that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. Tests should use [NewMetrics]
// with a custom [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voterpulse metrics.
const meterName = "github.com/anikdutta/voterpulse"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// EngineDuration tracks sentiment-engine call latency. Use with
	// attribute: attribute.String("status", "ok"|"fallback").
	EngineDuration metric.Float64Histogram

	// SaveDuration tracks transcript store insert latency. Use with
	// attribute: attribute.String("op", "save"|"save_batch").
	SaveDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	// RelayEvents counts inbound relay events by kind. Use with attribute:
	//   attribute.String("kind", "transcript"|"status"|"error")
	RelayEvents metric.Int64Counter

	// SavedRecords counts persisted transcript records. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	SavedRecords metric.Int64Counter

	// EngineFallbacks counts sentiment analyses that fell back to the
	// neutral default after every engine failed.
	EngineFallbacks metric.Int64Counter

	// --- Gauges ---

	// ActiveSubscribers tracks currently registered relay subscribers
	// across all event topics.
	ActiveSubscribers metric.Int64UpDownCounter

	// BufferedLines tracks the number of lines currently held in panel
	// display buffers.
	BufferedLines metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// per-line tagging and persistence latencies.
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
	if met.EngineDuration, err = m.Float64Histogram("voterpulse.engine.duration",
		metric.WithDescription("Latency of sentiment engine calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SaveDuration, err = m.Float64Histogram("voterpulse.store.save.duration",
		metric.WithDescription("Latency of transcript store inserts."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("voterpulse.http.request.duration",
		metric.WithDescription("HTTP request processing time by method and path."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.RelayEvents, err = m.Int64Counter("voterpulse.relay.events",
		metric.WithDescription("Inbound relay events by kind."),
	); err != nil {
		return nil, err
	}
	if met.SavedRecords, err = m.Int64Counter("voterpulse.store.records",
		metric.WithDescription("Persisted transcript records by status."),
	); err != nil {
		return nil, err
	}
	if met.EngineFallbacks, err = m.Int64Counter("voterpulse.engine.fallbacks",
		metric.WithDescription("Sentiment analyses that degraded to the neutral default."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.ActiveSubscribers, err = m.Int64UpDownCounter("voterpulse.relay.subscribers",
		metric.WithDescription("Currently registered relay subscribers."),
	); err != nil {
		return nil, err
	}
	if met.BufferedLines, err = m.Int64UpDownCounter("voterpulse.panel.buffered_lines",
		metric.WithDescription("Transcript lines currently held in panel buffers."),
	); err != nil {
		return nil, err
	}

	return met, nil
}
