package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cloudendpoints/service-control-client-go/pkg/metrics"
)

// statsRecorder is the Prometheus implementation of metrics.StatsRecorder.
type statsRecorder struct {
	calls          *prometheus.CounterVec
	cacheResults   *prometheus.CounterVec
	flushed        *prometheus.CounterVec
	flushedOps     *prometheus.CounterVec
	cacheSize      *prometheus.GaugeVec
	evictions      *prometheus.CounterVec
	transportError *prometheus.CounterVec
}

func init() {
	metrics.RegisterStatsRecorderConstructor(newStatsRecorder)
}

// newStatsRecorder creates a new Prometheus-backed StatsRecorder.
// Returns nil if metrics are not enabled (metrics.InitRegistry not called).
func newStatsRecorder() metrics.StatsRecorder {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &statsRecorder{
		calls: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "servicecontrol_client_calls_total",
				Help: "Total number of Check/Quota/Report calls made through the client facade.",
			},
			[]string{"aggregator"},
		),
		cacheResults: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "servicecontrol_client_cache_results_total",
				Help: "Total number of cache lookups by aggregator and result (hit, miss).",
			},
			[]string{"aggregator", "result"},
		),
		flushed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "servicecontrol_client_flushes_total",
				Help: "Total number of flush-triggered dispatches to the transport.",
			},
			[]string{"aggregator"},
		),
		flushedOps: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "servicecontrol_client_flushed_operations_total",
				Help: "Total number of operations carried by flush-triggered dispatches.",
			},
			[]string{"aggregator"},
		),
		cacheSize: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "servicecontrol_client_cache_size",
				Help: "Current number of entries held by an aggregator's cache.",
			},
			[]string{"aggregator"},
		),
		evictions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "servicecontrol_client_cache_evictions_total",
				Help: "Total number of cache evictions by aggregator and reason (capacity, age, shutdown).",
			},
			[]string{"aggregator", "reason"},
		),
		transportError: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "servicecontrol_client_transport_errors_total",
				Help: "Total number of transport-level failures by aggregator.",
			},
			[]string{"aggregator"},
		),
	}
}

func (m *statsRecorder) RecordCall(aggregator string) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(aggregator).Inc()
}

func (m *statsRecorder) RecordCacheHit(aggregator string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheResults.WithLabelValues(aggregator, result).Inc()
}

func (m *statsRecorder) RecordFlush(aggregator string, operations int) {
	if m == nil {
		return
	}
	m.flushed.WithLabelValues(aggregator).Inc()
	if operations > 0 {
		m.flushedOps.WithLabelValues(aggregator).Add(float64(operations))
	}
}

func (m *statsRecorder) RecordCacheSize(aggregator string, size int) {
	if m == nil {
		return
	}
	m.cacheSize.WithLabelValues(aggregator).Set(float64(size))
}

func (m *statsRecorder) RecordEviction(aggregator string, reason string) {
	if m == nil {
		return
	}
	m.evictions.WithLabelValues(aggregator, reason).Inc()
}

func (m *statsRecorder) RecordTransportError(aggregator string) {
	if m == nil {
		return
	}
	m.transportError.WithLabelValues(aggregator).Inc()
}
