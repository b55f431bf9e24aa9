package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context.
var logContextKey = contextKey{}

// LogContext holds call-scoped logging context threaded through a single
// Check, Quota, or Report call as it flows from the client facade down
// into an aggregator and, on a cache miss, out to a transport.
type LogContext struct {
	TraceID       string    // OpenTelemetry trace ID
	SpanID        string    // OpenTelemetry span ID
	ServiceName   string    // Target service name
	OperationName string    // Operation name from the request
	ConsumerID    string    // Consumer identity
	StartTime     time.Time // For duration calculation
}

// WithContext returns a new context carrying the given LogContext.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from ctx, or nil if not present.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a call against serviceName.
func NewLogContext(serviceName string) *LogContext {
	return &LogContext{
		ServiceName: serviceName,
		StartTime:   time.Now(),
	}
}

// Clone creates a copy of the LogContext.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithOperation returns a copy with the operation name set.
func (lc *LogContext) WithOperation(name string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.OperationName = name
	}
	return clone
}

// WithConsumer returns a copy with the consumer id set.
func (lc *LogContext) WithConsumer(id string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.ConsumerID = id
	}
	return clone
}

// WithTrace returns a copy with trace info set.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
