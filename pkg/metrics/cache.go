package metrics

// StatsRecorder is the metrics sink backing the Statistics component
// (spec data model: TotalCalled, SendCacheMiss, SendFlush per aggregator,
// plus total operations sent). Implementations must tolerate a nil
// receiver so callers can pass nil when metrics are disabled.
type StatsRecorder interface {
	// RecordCall counts one Check/Quota/Report call into aggregator.
	RecordCall(aggregator string)

	// RecordCacheHit counts a cache hit or miss into aggregator.
	RecordCacheHit(aggregator string, hit bool)

	// RecordFlush counts a flush-triggered dispatch to the transport,
	// along with how many operations it carried.
	RecordFlush(aggregator string, operations int)

	// RecordCacheSize records the current entry count for aggregator's cache.
	RecordCacheSize(aggregator string, size int)

	// RecordEviction counts one cache eviction, tagged with why it happened
	// ("capacity", "age" or "shutdown").
	RecordEviction(aggregator string, reason string)

	// RecordTransportError counts a transport-level failure for aggregator.
	RecordTransportError(aggregator string)
}

// NewStatsRecorder creates a Prometheus-backed StatsRecorder.
//
// Returns nil if metrics are not enabled (InitRegistry not called). Callers
// should pass the nil result straight through to the client facade, which
// treats a nil recorder as zero overhead.
func NewStatsRecorder() StatsRecorder {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusStatsRecorder()
}

// newPrometheusStatsRecorder is implemented in pkg/metrics/prometheus/cache.go.
// This indirection avoids an import cycle between metrics and metrics/prometheus
// while keeping the public constructor in this package.
var newPrometheusStatsRecorder func() StatsRecorder

// RegisterStatsRecorderConstructor registers the Prometheus implementation.
// Called from pkg/metrics/prometheus's package init.
func RegisterStatsRecorderConstructor(constructor func() StatsRecorder) {
	newPrometheusStatsRecorder = constructor
}
