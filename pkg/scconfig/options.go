// Package scconfig holds the aggregation engine's configuration types
// and the validation/clamping rules applied to them at construction.
package scconfig

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cloudendpoints/service-control-client-go/pkg/scpb"
	"github.com/cloudendpoints/service-control-client-go/pkg/transport"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CheckAggregationOptions configures the Check aggregator's cache.
type CheckAggregationOptions struct {
	// NumEntries is the cache capacity. A value ≤ 0 disables caching:
	// every Check misses and every call reaches the transport.
	NumEntries int
	// FlushIntervalMs is how often Flush evicts refresh-ahead entries.
	FlushIntervalMs int64 `validate:"gte=0"`
	// ExpirationMs is the cache entry TTL. Must exceed FlushIntervalMs;
	// Validate clamps it to flush_interval_ms+1 otherwise.
	ExpirationMs int64 `validate:"gte=0"`
}

// DefaultCheckOptions mirrors the values original_source ships as
// defaults for the Check aggregator.
func DefaultCheckOptions() CheckAggregationOptions {
	return CheckAggregationOptions{
		NumEntries:      10000,
		FlushIntervalMs: 500,
		ExpirationMs:    1000,
	}
}

// QuotaAggregationOptions configures the Quota aggregator's cache.
type QuotaAggregationOptions struct {
	NumEntries int
	// RefreshIntervalMs is both the flush cadence and (after clamping)
	// the basis for the entry expiration the facade derives for it.
	RefreshIntervalMs int64 `validate:"gte=0"`
	// ExpirationMs is the entry TTL, clamped the same way as Check's.
	// Zero means "derive from RefreshIntervalMs" at Validate time.
	ExpirationMs int64 `validate:"gte=0"`
}

func DefaultQuotaOptions() QuotaAggregationOptions {
	return QuotaAggregationOptions{
		NumEntries:        10000,
		RefreshIntervalMs: 1000,
	}
}

// ReportAggregationOptions configures the Report aggregator's cache.
type ReportAggregationOptions struct {
	NumEntries      int
	FlushIntervalMs int64 `validate:"gte=0"`
}

func DefaultReportOptions() ReportAggregationOptions {
	return ReportAggregationOptions{
		NumEntries:      10000,
		FlushIntervalMs: 1000,
	}
}

// ClientOptions configures the Client Facade.
type ClientOptions struct {
	ServiceName string `validate:"required"`

	CheckOptions  CheckAggregationOptions
	QuotaOptions  QuotaAggregationOptions
	ReportOptions ReportAggregationOptions

	// MetricKinds overrides the default DELTA kind per metric name.
	MetricKinds map[string]scpb.MetricKind

	// CheckTransport, QuotaTransport, ReportTransport are the per-call
	// default transports. At least one dispatch path (these three, or
	// GRPCServerAddress below) must be usable.
	CheckTransport  transport.CheckTransport
	QuotaTransport  transport.QuotaTransport
	ReportTransport transport.ReportTransport

	// GRPCServerAddress, when set and the corresponding *Transport
	// field above is nil, causes NewClient to build a default
	// gRPC-backed transport for that call kind.
	GRPCServerAddress string
	GRPCInsecure      bool

	// Timer is the abstract periodic-timer collaborator; if nil,
	// NewClient builds one from internal/scttiming.
	Timer transport.PeriodicTimer
}

// clampExpiration applies the library's expiration/flush-interval
// relationship: expiration must exceed the flush interval, not merely
// equal it, so a refresh-ahead pass and an age-expiration pass can
// never race to evict the same entry in the same tick.
func clampExpiration(flushIntervalMs, expirationMs int64) int64 {
	min := flushIntervalMs + 1
	if expirationMs < min {
		return min
	}
	return expirationMs
}

// Validate checks struct tags, applies the expiration clamp to both
// Check and Quota options, and verifies at least one transport path is
// configured (any one of the three per-call transports, or
// GRPCServerAddress); it does not check each call kind separately. It is the single place construction-time
// invariants are enforced; see DESIGN.md for why this resolves
// spec.md's historical Check/Quota clamp inconsistency in favor of the
// stricter "+1" variant.
func (o *ClientOptions) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("scconfig: %w", err)
	}
	if err := validate.Struct(&o.CheckOptions); err != nil {
		return fmt.Errorf("scconfig: check options: %w", err)
	}
	if err := validate.Struct(&o.QuotaOptions); err != nil {
		return fmt.Errorf("scconfig: quota options: %w", err)
	}
	if err := validate.Struct(&o.ReportOptions); err != nil {
		return fmt.Errorf("scconfig: report options: %w", err)
	}

	o.CheckOptions.ExpirationMs = clampExpiration(o.CheckOptions.FlushIntervalMs, o.CheckOptions.ExpirationMs)

	if o.QuotaOptions.ExpirationMs == 0 {
		o.QuotaOptions.ExpirationMs = o.QuotaOptions.RefreshIntervalMs
	}
	o.QuotaOptions.ExpirationMs = clampExpiration(o.QuotaOptions.RefreshIntervalMs, o.QuotaOptions.ExpirationMs)

	if o.CheckTransport == nil && o.QuotaTransport == nil && o.ReportTransport == nil && o.GRPCServerAddress == "" {
		return fmt.Errorf("scconfig: no transport configured: set Check/Quota/ReportTransport or GRPCServerAddress")
	}
	return nil
}

// FlushInterval returns the configured flush interval as a Duration,
// or -1 if the aggregator's cache is disabled (NumEntries <= 0).
func (o CheckAggregationOptions) FlushInterval() time.Duration {
	if o.NumEntries <= 0 {
		return -1
	}
	return time.Duration(o.FlushIntervalMs) * time.Millisecond
}

func (o QuotaAggregationOptions) FlushInterval() time.Duration {
	if o.NumEntries <= 0 {
		return -1
	}
	return time.Duration(o.RefreshIntervalMs) * time.Millisecond
}

func (o ReportAggregationOptions) FlushInterval() time.Duration {
	if o.NumEntries <= 0 {
		return -1
	}
	return time.Duration(o.FlushIntervalMs) * time.Millisecond
}

// Expiration returns the (already clamped, once Validate has run)
// entry TTL as a Duration.
func (o CheckAggregationOptions) Expiration() time.Duration {
	return time.Duration(o.ExpirationMs) * time.Millisecond
}

func (o QuotaAggregationOptions) Expiration() time.Duration {
	return time.Duration(o.ExpirationMs) * time.Millisecond
}
