package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for aggregation-engine operations, following
// OpenTelemetry semantic conventions where applicable.
const (
	// ========================================================================
	// Request identity
	// ========================================================================
	AttrServiceName     = "servicecontrol.service_name"
	AttrServiceConfigID = "servicecontrol.service_config_id"
	AttrOperationID     = "servicecontrol.operation_id"
	AttrOperationName   = "servicecontrol.operation_name"
	AttrConsumerID      = "servicecontrol.consumer_id"

	// ========================================================================
	// Aggregation
	// ========================================================================
	AttrSignature  = "aggregation.signature"
	AttrMetricName = "aggregation.metric_name"
	AttrMetricKind = "aggregation.metric_kind"
	AttrAggregator = "aggregation.aggregator" // check, quota, report

	// ========================================================================
	// Cache
	// ========================================================================
	AttrCacheHit      = "cache.hit"
	AttrCacheSize     = "cache.size"
	AttrCacheCapacity = "cache.capacity"
	AttrEvicted       = "cache.evicted"
	AttrFlushed       = "cache.flushed"

	// ========================================================================
	// Transport & dispatch
	// ========================================================================
	AttrTransport  = "transport.name"
	AttrAttempt    = "transport.attempt"
	AttrAsync      = "dispatch.async"
	AttrStatusCode = "dispatch.status_code"
)

// Span names for engine operations.
const (
	SpanClientCheck  = "scclient.Check"
	SpanClientQuota  = "scclient.Quota"
	SpanClientReport = "scclient.Report"

	SpanCheckLookup  = "check_cache.lookup"
	SpanCheckFlush   = "check_cache.flush"
	SpanQuotaLookup  = "quota_cache.lookup"
	SpanQuotaFlush   = "quota_cache.flush"
	SpanReportMerge  = "report_cache.merge"
	SpanReportFlush  = "report_cache.flush"

	SpanTransportCheck  = "transport.Check"
	SpanTransportQuota  = "transport.AllocateQuota"
	SpanTransportReport = "transport.Report"
)

// ServiceName returns an attribute for the target service name.
func ServiceName(name string) attribute.KeyValue {
	return attribute.String(AttrServiceName, name)
}

// ServiceConfigID returns an attribute for the service configuration id.
func ServiceConfigID(id string) attribute.KeyValue {
	return attribute.String(AttrServiceConfigID, id)
}

// OperationName returns an attribute for the operation name.
func OperationName(name string) attribute.KeyValue {
	return attribute.String(AttrOperationName, name)
}

// ConsumerID returns an attribute for the consumer identity.
func ConsumerID(id string) attribute.KeyValue {
	return attribute.String(AttrConsumerID, id)
}

// Signature returns an attribute for a hex-encoded aggregation signature.
func Signature(hex string) attribute.KeyValue {
	return attribute.String(AttrSignature, hex)
}

// MetricName returns an attribute for a metric name.
func MetricName(name string) attribute.KeyValue {
	return attribute.String(AttrMetricName, name)
}

// Aggregator returns an attribute naming which aggregator emitted the span.
func Aggregator(name string) attribute.KeyValue {
	return attribute.String(AttrAggregator, name)
}

// CacheHit returns an attribute for a cache hit indicator.
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// CacheSize returns an attribute for the current cache entry count.
func CacheSize(size int) attribute.KeyValue {
	return attribute.Int(AttrCacheSize, size)
}

// Evicted returns an attribute for the number of entries evicted.
func Evicted(n int) attribute.KeyValue {
	return attribute.Int(AttrEvicted, n)
}

// Flushed returns an attribute for the number of entries flushed.
func Flushed(n int) attribute.KeyValue {
	return attribute.Int(AttrFlushed, n)
}

// Transport returns an attribute naming the transport implementation.
func Transport(name string) attribute.KeyValue {
	return attribute.String(AttrTransport, name)
}

// Attempt returns an attribute for a retry attempt number.
func Attempt(n int) attribute.KeyValue {
	return attribute.Int(AttrAttempt, n)
}

// Async returns an attribute for whether dispatch was asynchronous.
func Async(async bool) attribute.KeyValue {
	return attribute.Bool(AttrAsync, async)
}

// StatusCode returns an attribute for a canonical status code.
func StatusCode(code string) attribute.KeyValue {
	return attribute.String(AttrStatusCode, code)
}

// StartAggregatorSpan starts a span for an aggregator cache operation,
// tagging it with the aggregator name plus any attrs the caller passes.
func StartAggregatorSpan(ctx context.Context, spanName, aggregatorName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{Aggregator(aggregatorName)}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, spanName, trace.WithAttributes(allAttrs...))
}

// StartTransportSpan starts a span for a dispatch to the transport layer.
func StartTransportSpan(ctx context.Context, spanName, transportName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{Transport(transportName)}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, spanName, trace.WithAttributes(allAttrs...))
}
