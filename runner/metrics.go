package runner

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the run coordinator.
type Metrics struct {
	Registry             *prometheus.Registry
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      prometheus.Histogram
	ItemsPersistedTotal  prometheus.Counter
	SoftMissesTotal      *prometheus.CounterVec
	BlocksTotal          *prometheus.CounterVec
	RotationsTotal       prometheus.Counter
	TransportErrorsTotal *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_requests_total",
			Help: "Total HTTP requests issued by the collector.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "collector_request_duration_seconds",
			Help:    "Detail-page request latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	itemsPersisted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "collector_items_persisted_total",
			Help: "Total number of product records written to the sink.",
		},
	)
	softMisses := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_soft_misses_total",
			Help: "Total per-item failures that were skipped, by reason.",
		},
		[]string{"reason"},
	)
	blocks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_blocks_total",
			Help: "Total block signals observed, by detection kind.",
		},
		[]string{"kind"},
	)
	rotations := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "collector_session_rotations_total",
			Help: "Total session rotations, scheduled and block-forced.",
		},
	)
	transportErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_transport_errors_total",
			Help: "Total transport-level request failures, by class.",
		},
		[]string{"class"},
	)

	registry.MustRegister(requests, requestDuration, itemsPersisted, softMisses, blocks, rotations, transportErrors)

	return &Metrics{
		Registry:             registry,
		RequestsTotal:        requests,
		RequestDuration:      requestDuration,
		ItemsPersistedTotal:  itemsPersisted,
		SoftMissesTotal:      softMisses,
		BlocksTotal:          blocks,
		RotationsTotal:       rotations,
		TransportErrorsTotal: transportErrors,
	}
}

// IncRequest increments the requests counter for a phase.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records a detail-page request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncPersisted increments the persisted items counter.
func (m *Metrics) IncPersisted() {
	if m == nil {
		return
	}
	m.ItemsPersistedTotal.Inc()
}

// IncSoftMiss increments the soft-miss counter for a reason label.
func (m *Metrics) IncSoftMiss(reason string) {
	if m == nil {
		return
	}
	m.SoftMissesTotal.WithLabelValues(reason).Inc()
}

// IncBlock increments the block counter for a detection kind.
func (m *Metrics) IncBlock(kind string) {
	if m == nil {
		return
	}
	m.BlocksTotal.WithLabelValues(kind).Inc()
}

// IncRotation increments the session rotation counter.
func (m *Metrics) IncRotation() {
	if m == nil {
		return
	}
	m.RotationsTotal.Inc()
}

// IncTransportError increments the transport error counter for a class.
func (m *Metrics) IncTransportError(class string) {
	if m == nil {
		return
	}
	m.TransportErrorsTotal.WithLabelValues(class).Inc()
}
