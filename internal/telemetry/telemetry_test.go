package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "servicecontrol-client", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// Should be able to call shutdown without error
	err = shutdown(ctx)
	assert.NoError(t, err)

	// Should not be enabled
	assert.False(t, IsEnabled())
}

func TestTracerReturnsNoOp(t *testing.T) {
	// Reset state
	tracer = nil
	enabled = false

	// Without initialization, should return no-op tracer
	tr := Tracer()
	require.NotNil(t, tr)
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	// Even without initialization, StartSpan should work (no-op)
	newCtx, span := StartSpan(ctx, "test.operation")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)

	// Should be able to end the span
	span.End()
}

func TestSpanFromContext(t *testing.T) {
	ctx := context.Background()

	// Should return a span even without active span
	span := SpanFromContext(ctx)
	require.NotNil(t, span)
}

func TestAddEvent(t *testing.T) {
	ctx := context.Background()

	// Should not panic with no active span
	require.NotPanics(t, func() {
		AddEvent(ctx, "test.event")
	})
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()

	// Should not panic with nil error
	require.NotPanics(t, func() {
		RecordError(ctx, nil)
	})

	// Should not panic with error
	require.NotPanics(t, func() {
		RecordError(ctx, errors.New("test error"))
	})
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Ok, "success")
	})

	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Error, "failed")
	})
}

func TestSetAttributes(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetAttributes(ctx, ServiceName("library.googleapis.com"))
	})
}

func TestTraceID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	traceID := TraceID(ctx)
	assert.Equal(t, "", traceID)
}

func TestSpanID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	spanID := SpanID(ctx)
	assert.Equal(t, "", spanID)
}

func TestAttributeHelpers(t *testing.T) {
	t.Run("ServiceName", func(t *testing.T) {
		attr := ServiceName("library.googleapis.com")
		assert.Equal(t, AttrServiceName, string(attr.Key))
		assert.Equal(t, "library.googleapis.com", attr.Value.AsString())
	})

	t.Run("ServiceConfigID", func(t *testing.T) {
		attr := ServiceConfigID("2026-08-06r0")
		assert.Equal(t, AttrServiceConfigID, string(attr.Key))
		assert.Equal(t, "2026-08-06r0", attr.Value.AsString())
	})

	t.Run("OperationName", func(t *testing.T) {
		attr := OperationName("google.api.Check")
		assert.Equal(t, AttrOperationName, string(attr.Key))
		assert.Equal(t, "google.api.Check", attr.Value.AsString())
	})

	t.Run("ConsumerID", func(t *testing.T) {
		attr := ConsumerID("project:my-project")
		assert.Equal(t, AttrConsumerID, string(attr.Key))
		assert.Equal(t, "project:my-project", attr.Value.AsString())
	})

	t.Run("Signature", func(t *testing.T) {
		attr := Signature("deadbeef")
		assert.Equal(t, AttrSignature, string(attr.Key))
		assert.Equal(t, "deadbeef", attr.Value.AsString())
	})

	t.Run("MetricName", func(t *testing.T) {
		attr := MetricName("serviceruntime.googleapis.com/api/consumer/request_count")
		assert.Equal(t, AttrMetricName, string(attr.Key))
	})

	t.Run("Aggregator", func(t *testing.T) {
		attr := Aggregator("check")
		assert.Equal(t, AttrAggregator, string(attr.Key))
		assert.Equal(t, "check", attr.Value.AsString())
	})

	t.Run("CacheHit", func(t *testing.T) {
		attr := CacheHit(true)
		assert.Equal(t, AttrCacheHit, string(attr.Key))
		assert.True(t, attr.Value.AsBool())
	})

	t.Run("CacheSize", func(t *testing.T) {
		attr := CacheSize(42)
		assert.Equal(t, AttrCacheSize, string(attr.Key))
		assert.Equal(t, int64(42), attr.Value.AsInt64())
	})

	t.Run("Evicted", func(t *testing.T) {
		attr := Evicted(3)
		assert.Equal(t, AttrEvicted, string(attr.Key))
		assert.Equal(t, int64(3), attr.Value.AsInt64())
	})

	t.Run("Flushed", func(t *testing.T) {
		attr := Flushed(3)
		assert.Equal(t, AttrFlushed, string(attr.Key))
		assert.Equal(t, int64(3), attr.Value.AsInt64())
	})

	t.Run("Transport", func(t *testing.T) {
		attr := Transport("grpc")
		assert.Equal(t, AttrTransport, string(attr.Key))
		assert.Equal(t, "grpc", attr.Value.AsString())
	})

	t.Run("Attempt", func(t *testing.T) {
		attr := Attempt(2)
		assert.Equal(t, AttrAttempt, string(attr.Key))
		assert.Equal(t, int64(2), attr.Value.AsInt64())
	})

	t.Run("Async", func(t *testing.T) {
		attr := Async(true)
		assert.Equal(t, AttrAsync, string(attr.Key))
		assert.True(t, attr.Value.AsBool())
	})

	t.Run("StatusCode", func(t *testing.T) {
		attr := StatusCode("RESOURCE_EXHAUSTED")
		assert.Equal(t, AttrStatusCode, string(attr.Key))
		assert.Equal(t, "RESOURCE_EXHAUSTED", attr.Value.AsString())
	})
}

func TestStartAggregatorSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartAggregatorSpan(ctx, SpanCheckLookup, "check")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	newCtx2, span2 := StartAggregatorSpan(ctx, SpanQuotaFlush, "quota", Evicted(2))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartTransportSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartTransportSpan(ctx, SpanTransportCheck, "grpc")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	newCtx2, span2 := StartTransportSpan(ctx, SpanTransportReport, "grpc", Attempt(1))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}
