package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the synthesis relay service
type Metrics struct {
	// Session lifecycle metrics
	ActiveSessions   prometheus.Gauge
	SessionsStarted  prometheus.Counter
	SessionsComplete prometheus.Counter
	SessionsFailed   *prometheus.CounterVec
	SessionsRejected prometheus.Counter
	SessionDuration  prometheus.Histogram

	// Relay throughput metrics
	FragmentsForwarded prometheus.Counter
	ChunksRelayed      prometheus.Counter
	ChunkSize          prometheus.Histogram

	// Upstream provider metrics
	ProviderConnects       prometheus.Counter
	ProviderConnectErrors  prometheus.Counter
	ProviderStreamFailures prometheus.Counter
}

// NewMetrics creates all Prometheus metrics and registers them with the
// given registerer. Pass prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Session lifecycle metrics
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_sessions",
			Help: "Current number of active synthesis sessions",
		}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_sessions_started_total",
			Help: "Total number of sessions accepted",
		}),
		SessionsComplete: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_sessions_completed_total",
			Help: "Total number of sessions that completed normally",
		}),
		SessionsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_sessions_failed_total",
			Help: "Total number of sessions that terminated with an error",
		}, []string{"kind"}),
		SessionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_sessions_rejected_total",
			Help: "Total number of sessions rejected at the concurrency limit",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_session_duration_seconds",
			Help:    "Duration of synthesis sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~8 minutes
		}),

		// Relay throughput metrics
		FragmentsForwarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_text_fragments_forwarded_total",
			Help: "Total number of text fragments forwarded to the provider",
		}),
		ChunksRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_audio_chunks_relayed_total",
			Help: "Total number of audio chunks relayed back to initiators",
		}),
		ChunkSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_audio_chunk_size_bytes",
			Help:    "Size of relayed audio chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 2, 12), // 256B to ~512KB
		}),

		// Upstream provider metrics
		ProviderConnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_provider_connects_total",
			Help: "Total number of upstream provider connections opened",
		}),
		ProviderConnectErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_provider_connect_errors_total",
			Help: "Total number of failed upstream provider connection attempts",
		}),
		ProviderStreamFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_provider_stream_failures_total",
			Help: "Total number of mid-stream upstream provider failures",
		}),
	}
}

// RecordSessionStarted increments the started counter and the active gauge
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
	m.ActiveSessions.Inc()
}

// RecordSessionCompleted records a normal session completion
func (m *Metrics) RecordSessionCompleted(durationSeconds float64) {
	m.SessionsComplete.Inc()
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordSessionFailed records a failed session by failure kind
func (m *Metrics) RecordSessionFailed(kind string, durationSeconds float64) {
	m.SessionsFailed.WithLabelValues(kind).Inc()
	m.ActiveSessions.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordSessionRejected increments the concurrency rejection counter
func (m *Metrics) RecordSessionRejected() {
	m.SessionsRejected.Inc()
}

// RecordFragmentsForwarded adds to the forwarded fragments counter
func (m *Metrics) RecordFragmentsForwarded(n uint64) {
	m.FragmentsForwarded.Add(float64(n))
}

// RecordChunkRelayed records one relayed audio chunk
func (m *Metrics) RecordChunkRelayed(sizeBytes int) {
	m.ChunksRelayed.Inc()
	m.ChunkSize.Observe(float64(sizeBytes))
}

// RecordProviderConnect increments the provider connections counter
func (m *Metrics) RecordProviderConnect() {
	m.ProviderConnects.Inc()
}

// RecordProviderConnectError increments the provider connect errors counter
func (m *Metrics) RecordProviderConnectError() {
	m.ProviderConnectErrors.Inc()
}

// RecordProviderStreamFailure increments the mid-stream failures counter
func (m *Metrics) RecordProviderStreamFailure() {
	m.ProviderStreamFailures.Inc()
}
