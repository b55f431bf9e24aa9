package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the aggregation engine.
// Use these keys consistently so log lines can be queried and correlated
// across the check, quota, and report caches.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Request Identity
	// ========================================================================
	KeyServiceName      = "service_name"       // Target service name (e.g. "library.googleapis.com")
	KeyServiceConfigID  = "service_config_id"  // Service configuration version id
	KeyOperationID      = "operation_id"       // Operation id from the request
	KeyOperationName    = "operation_name"     // Operation name from the request
	KeyConsumerID       = "consumer_id"        // Consumer identity (API key, project, etc.)
	KeySignature        = "signature"          // Computed aggregation signature
	KeyMetricName       = "metric_name"        // Metric name involved in a merge
	KeyMetricKind       = "metric_kind"        // DELTA / GAUGE / CUMULATIVE
	KeyQuotaMetric      = "quota_metric"       // Quota metric name
	KeyCurrencyExpected = "currency_expected"  // Expected currency code during a money merge
	KeyCurrencyActual   = "currency_actual"    // Actual currency code seen during a money merge

	// ========================================================================
	// Aggregator / Cache Lifecycle
	// ========================================================================
	KeyAggregator    = "aggregator"     // "check", "quota", or "report"
	KeyCacheHit      = "cache_hit"      // Cache hit indicator
	KeyCacheSize     = "cache_size"     // Current cache entry count
	KeyCacheCapacity = "cache_capacity" // Maximum cache entry count
	KeyEvicted       = "evicted"        // Number of entries evicted in this pass
	KeyFlushed       = "flushed"        // Number of entries flushed in this pass
	KeyAgeSeconds    = "age_seconds"    // Age of an entry at eviction time, in seconds

	// ========================================================================
	// Transport & Dispatch
	// ========================================================================
	KeyTransport  = "transport"   // Transport implementation name
	KeyAttempt    = "attempt"     // Retry attempt number
	KeyMaxRetries = "max_retries" // Maximum retry attempts
	KeyAsync      = "async"       // Whether the call was dispatched asynchronously
	KeyStatusCode = "status_code" // Canonical status code of a response

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
)

// ----------------------------------------------------------------------------
// Distributed Tracing
// ----------------------------------------------------------------------------

// TraceID returns a slog.Attr for an OpenTelemetry trace ID.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for an OpenTelemetry span ID.
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// ----------------------------------------------------------------------------
// Request Identity
// ----------------------------------------------------------------------------

// ServiceName returns a slog.Attr for the target service name.
func ServiceName(name string) slog.Attr {
	return slog.String(KeyServiceName, name)
}

// OperationName returns a slog.Attr for the operation name.
func OperationName(name string) slog.Attr {
	return slog.String(KeyOperationName, name)
}

// ConsumerID returns a slog.Attr for the consumer id.
func ConsumerID(id string) slog.Attr {
	return slog.String(KeyConsumerID, id)
}

// Signature returns a slog.Attr for a computed aggregation signature,
// rendered as hex.
func Signature(sig [16]byte) slog.Attr {
	const hextable = "0123456789abcdef"
	buf := make([]byte, 32)
	for i, b := range sig {
		buf[i*2] = hextable[b>>4]
		buf[i*2+1] = hextable[b&0x0f]
	}
	return slog.String(KeySignature, string(buf))
}

// MetricName returns a slog.Attr for a metric name.
func MetricName(name string) slog.Attr {
	return slog.String(KeyMetricName, name)
}

// MetricKind returns a slog.Attr for a metric kind.
func MetricKind(kind string) slog.Attr {
	return slog.String(KeyMetricKind, kind)
}

// Currencies returns the pair of slog.Attrs describing a currency mismatch
// encountered while merging two money metric values.
func Currencies(expected, actual string) []slog.Attr {
	return []slog.Attr{
		slog.String(KeyCurrencyExpected, expected),
		slog.String(KeyCurrencyActual, actual),
	}
}

// ----------------------------------------------------------------------------
// Aggregator / Cache Lifecycle
// ----------------------------------------------------------------------------

// Aggregator returns a slog.Attr naming which aggregator emitted the line.
func Aggregator(name string) slog.Attr {
	return slog.String(KeyAggregator, name)
}

// CacheHit returns a slog.Attr for a cache hit indicator.
func CacheHit(hit bool) slog.Attr {
	return slog.Bool(KeyCacheHit, hit)
}

// CacheSize returns a slog.Attr for the current cache entry count.
func CacheSize(size int) slog.Attr {
	return slog.Int(KeyCacheSize, size)
}

// CacheCapacity returns a slog.Attr for the maximum cache entry count.
func CacheCapacity(capacity int) slog.Attr {
	return slog.Int(KeyCacheCapacity, capacity)
}

// Evicted returns a slog.Attr for the number of entries evicted.
func Evicted(n int) slog.Attr {
	return slog.Int(KeyEvicted, n)
}

// Flushed returns a slog.Attr for the number of entries flushed.
func Flushed(n int) slog.Attr {
	return slog.Int(KeyFlushed, n)
}

// AgeSeconds returns a slog.Attr for an entry's age at eviction.
func AgeSeconds(age float64) slog.Attr {
	return slog.Float64(KeyAgeSeconds, age)
}

// ----------------------------------------------------------------------------
// Transport & Dispatch
// ----------------------------------------------------------------------------

// Transport returns a slog.Attr naming the transport implementation.
func Transport(name string) slog.Attr {
	return slog.String(KeyTransport, name)
}

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for the maximum retry attempts.
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// Async returns a slog.Attr for whether a call was dispatched asynchronously.
func Async(async bool) slog.Attr {
	return slog.Bool(KeyAsync, async)
}

// StatusCode returns a slog.Attr for a canonical status code.
func StatusCode(code string) slog.Attr {
	return slog.String(KeyStatusCode, code)
}

// ----------------------------------------------------------------------------
// Operation Metadata
// ----------------------------------------------------------------------------

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error, or a zero Attr if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
