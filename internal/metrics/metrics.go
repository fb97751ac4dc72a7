// Package metrics defines the Prometheus instrumentation surface for the
// inference server: request outcomes, scheduler queue behavior, circuit
// breaker transitions, job manager terminal states, and feature drift
// signals. Every component takes a *ServerMetrics (or the Noop variant in
// tests) rather than reaching for package-level globals, so instrumentation
// can be exercised in isolation without a live registry.
package metrics

import "time"

// Default histogram bucket boundaries, tuned to the latencies this server
// actually produces: sub-millisecond linear scoring up to multi-second
// batch jobs.
var (
	DefaultLatencyBuckets = []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	DefaultBatchSizeBuckets = []float64{1, 2, 4, 8, 16, 32, 64, 128}
)

// ServerMetrics is the instrumentation surface used by the registry,
// breaker, scheduler, job manager, drift tracker, and HTTP transport.
type ServerMetrics struct {
	RequestsTotal     CounterVec
	PredictionLatency HistogramVec

	SchedulerQueueDepth GaugeVec
	SchedulerBatchSize  HistogramVec

	BreakerStateChanges CounterVec
	BreakerTrips        CounterVec

	JobsTotal CounterVec

	DriftSignals CounterVec
}

// NewServerMetrics registers every metric used by this server against the
// given collector. collector is typically a *prometheusCollector built via
// NewMetricsCollector, but any MetricsCollector (including one backed by a
// test-local prometheus.Registry) works.
func NewServerMetrics(collector MetricsCollector) *ServerMetrics {
	return &ServerMetrics{
		RequestsTotal: collector.RegisterCounter(
			"requests_total",
			"Total inference requests by endpoint, version, and outcome.",
			"endpoint", "version", "outcome",
		),
		PredictionLatency: collector.RegisterHistogram(
			"prediction_latency_seconds",
			"End-to-end prediction latency observed by the caller.",
			DefaultLatencyBuckets,
			"endpoint", "version",
		),
		SchedulerQueueDepth: collector.RegisterGauge(
			"scheduler_queue_depth",
			"Number of requests currently waiting in the scheduler queue.",
			"version",
		),
		SchedulerBatchSize: collector.RegisterHistogram(
			"scheduler_batch_size",
			"Number of rows flushed together in a single scheduler batch.",
			DefaultBatchSizeBuckets,
			"version",
		),
		BreakerStateChanges: collector.RegisterCounter(
			"breaker_state_changes_total",
			"Circuit breaker transitions by resulting state.",
			"version", "state",
		),
		BreakerTrips: collector.RegisterCounter(
			"breaker_trips_total",
			"Times the circuit breaker tripped from closed to open.",
			"version",
		),
		JobsTotal: collector.RegisterCounter(
			"jobs_total",
			"Batch jobs by terminal status.",
			"status",
		),
		DriftSignals: collector.RegisterCounter(
			"drift_signals_total",
			"Feature drift observations exceeding the configured threshold.",
			"feature",
		),
	}
}

// RecordRequest observes a completed request against RequestsTotal and
// PredictionLatency. outcome is a short free-form label; the coordinator
// records "success" or "error".
func (m *ServerMetrics) RecordRequest(endpoint, version, outcome string, latency time.Duration) {
	m.RequestsTotal.WithLabelValues(endpoint, version, outcome).Inc()
	m.PredictionLatency.WithLabelValues(endpoint, version).Observe(latency.Seconds())
}

// RecordBatchFlush observes one scheduler batch flush: the queue depth left
// behind and the size of the batch that was just sent to the model.
func (m *ServerMetrics) RecordBatchFlush(version string, queueDepthAfter, batchSize int) {
	m.SchedulerQueueDepth.WithLabelValues(version).Set(float64(queueDepthAfter))
	m.SchedulerBatchSize.WithLabelValues(version).Observe(float64(batchSize))
}

// RecordBreakerTransition observes a circuit breaker state change, and
// additionally increments BreakerTrips when the new state is "open".
func (m *ServerMetrics) RecordBreakerTransition(version, newState string) {
	m.BreakerStateChanges.WithLabelValues(version, newState).Inc()
	if newState == "open" {
		m.BreakerTrips.WithLabelValues(version).Inc()
	}
}

// RecordJobTerminal observes a job reaching a terminal status
// ("completed" or "failed").
func (m *ServerMetrics) RecordJobTerminal(status string) {
	m.JobsTotal.WithLabelValues(status).Inc()
}

// RecordDriftSignal observes a single feature's drift score crossing the
// configured threshold.
func (m *ServerMetrics) RecordDriftSignal(feature string) {
	m.DriftSignals.WithLabelValues(feature).Inc()
}

// Noop returns a *ServerMetrics wired entirely to no-op vectors, for tests
// and callers that don't want a live registry.
func Noop() *ServerMetrics {
	return &ServerMetrics{
		RequestsTotal:       &noopCounterVec{},
		PredictionLatency:   &noopHistogramVec{},
		SchedulerQueueDepth: &noopGaugeVec{},
		SchedulerBatchSize:  &noopHistogramVec{},
		BreakerStateChanges: &noopCounterVec{},
		BreakerTrips:        &noopCounterVec{},
		JobsTotal:           &noopCounterVec{},
		DriftSignals:        &noopCounterVec{},
	}
}
