// Package scpb defines the wire-shaped message types the aggregation
// engine reads and writes. They are plain structs rather than generated
// protobuf code, but timestamps use the well-known protobuf Timestamp
// type so a real transport can marshal them onto the wire unchanged.
package scpb

import (
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"
)

// MetricKind classifies how a metric's samples combine over time.
type MetricKind int

const (
	// DELTA samples are additive; merging sums values and widens the
	// covering time window. This is the default kind when a metric name
	// is absent from a ClientOptions.MetricKinds map.
	DELTA MetricKind = iota
	// CUMULATIVE samples are monotone counters; merging keeps whichever
	// sample has the later end time.
	CUMULATIVE
	// GAUGE samples are point-in-time; merging keeps whichever sample
	// has the later end time, same as CUMULATIVE.
	GAUGE
)

func (k MetricKind) String() string {
	switch k {
	case CUMULATIVE:
		return "CUMULATIVE"
	case GAUGE:
		return "GAUGE"
	default:
		return "DELTA"
	}
}

// Importance marks whether a Report operation must bypass caching.
type Importance int

const (
	Low Importance = iota
	High
)

// Money is a fixed-point currency amount: units plus nanos, scoped to a
// currency code. Matches google.type.Money's shape.
type Money struct {
	CurrencyCode string
	Units        int64
	Nanos        int32
}

// BucketOption describes how a Distribution's buckets are laid out.
// Exactly one of the three shapes should be populated; Equal compares
// by value so two independently constructed options with identical
// bucketing are considered the same scheme.
type BucketOption struct {
	// Linear: NumBuckets of Width starting at Offset.
	LinearNumBuckets int32
	LinearWidth      float64
	LinearOffset     float64

	// Exponential: NumBuckets growing by GrowthFactor from Scale.
	ExponentialNumBuckets  int32
	ExponentialGrowthFactor float64
	ExponentialScale        float64

	// Explicit: caller-supplied bucket boundaries.
	ExplicitBounds []float64
}

// Equal compares two BucketOptions by value.
func (b BucketOption) Equal(o BucketOption) bool {
	if b.LinearNumBuckets != o.LinearNumBuckets ||
		b.LinearWidth != o.LinearWidth ||
		b.LinearOffset != o.LinearOffset ||
		b.ExponentialNumBuckets != o.ExponentialNumBuckets ||
		b.ExponentialGrowthFactor != o.ExponentialGrowthFactor ||
		b.ExponentialScale != o.ExponentialScale {
		return false
	}
	if len(b.ExplicitBounds) != len(o.ExplicitBounds) {
		return false
	}
	for i := range b.ExplicitBounds {
		if b.ExplicitBounds[i] != o.ExplicitBounds[i] {
			return false
		}
	}
	return true
}

// Distribution carries bucketed sample counts plus running summary
// statistics, combined across merges via Welford's parallel formula.
type Distribution struct {
	Buckets BucketOption
	Counts  []int64

	Count              int64
	Mean               float64
	SumOfSquaredDeviation float64
	Minimum            float64
	Maximum            float64
}

// MetricValueKind selects which payload field of a MetricValue is set.
type MetricValueKind int

const (
	Int64Value MetricValueKind = iota
	DoubleValue
	MoneyValue
	DistributionValue
)

// MetricValue is one sample of a metric: a typed payload scoped by a
// label set and a time window.
type MetricValue struct {
	Labels map[string]string
	StartTime time.Time
	EndTime   time.Time

	Kind         MetricValueKind
	Int64        int64
	Double       float64
	MoneyVal     Money
	Distribution Distribution
}

// MetricValueSet groups all samples observed for a single metric name.
type MetricValueSet struct {
	MetricName string
	Values     []MetricValue
}

// LogEntry is an opaque, concatenation-only unit of log data carried
// alongside an operation; the engine never inspects its contents.
type LogEntry struct {
	Name      string
	Timestamp time.Time
	Severity  string
	Payload   map[string]string
}

// QuotaMode selects how an AllocateQuota request should be interpreted
// by the control plane (best-effort, checked, etc). The engine treats
// it as an opaque passthrough field that participates in neither
// signature nor merge.
type QuotaMode int

const (
	QuotaModeUnspecified QuotaMode = iota
	QuotaModeNormal
	QuotaModeBestEffort
	QuotaModeCheckOnly
)

// Operation is a unit of telemetry: who did what, over what window,
// carrying logs and metric samples. Used both by Report (any MetricValue
// kind) and, restricted to Int64Value, by Quota.
type Operation struct {
	OperationID   string
	ConsumerID    string
	OperationName string
	Labels        map[string]string
	StartTime     time.Time
	EndTime       time.Time
	LogEntries    []LogEntry
	MetricValueSets []MetricValueSet
	Importance    Importance
	QuotaMode     QuotaMode
}

// Clone returns a deep-enough copy of op for use as the seed of a
// pending aggregated operation; slices and maps are copied, not shared.
func (op *Operation) Clone() *Operation {
	if op == nil {
		return nil
	}
	out := *op
	out.Labels = cloneStringMap(op.Labels)
	out.LogEntries = append([]LogEntry(nil), op.LogEntries...)
	out.MetricValueSets = make([]MetricValueSet, len(op.MetricValueSets))
	for i, mvs := range op.MetricValueSets {
		out.MetricValueSets[i] = MetricValueSet{
			MetricName: mvs.MetricName,
			Values:     append([]MetricValue(nil), mvs.Values...),
		}
		for j := range out.MetricValueSets[i].Values {
			out.MetricValueSets[i].Values[j].Labels = cloneStringMap(mvs.Values[j].Labels)
		}
	}
	return &out
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// CheckRequest wraps a single operation under a service name.
type CheckRequest struct {
	ServiceName string
	Operation   Operation
}

// CheckResponse is the control plane's verdict on a CheckRequest.
type CheckResponse struct {
	OperationID string
	Status      *CheckError
}

// CheckError mirrors a rejection reason returned alongside a CheckResponse.
type CheckError struct {
	Code    string
	Detail  string
}

// AllocateQuotaRequest wraps a quota-restricted operation under a
// service name.
type AllocateQuotaRequest struct {
	ServiceName string
	Operation   Operation
}

// QuotaErrorCode enumerates the allocate_errors codes the control plane
// can return; the facade translates the first one into a user-visible
// Status per the table in pkg/status/quota.go.
type QuotaErrorCode int

const (
	QuotaErrorUnspecified QuotaErrorCode = iota
	ResourceExhausted
	ProjectSuspended
	IPAddressBlocked
	RefererBlocked
	ClientAppBlocked
	ServiceNotEnabled
	BillingNotActive
	ProjectDeleted
	ProjectInvalid
	APIKeyInvalid
	APIKeyExpired
	ProjectStatusUnavailable
	ServiceStatusUnavailable
	BillingStatusUnavailable
)

// QuotaError is one entry of AllocateQuotaResponse.AllocateErrors.
type QuotaError struct {
	Code        QuotaErrorCode
	Description string
}

// AllocateQuotaResponse is the control plane's answer to an Allocate
// call. A non-empty AllocateErrors means the request was rejected.
type AllocateQuotaResponse struct {
	OperationID    string
	AllocateErrors []QuotaError
}

// ReportRequest carries one or more operations for telemetry under a
// service name.
type ReportRequest struct {
	ServiceName string
	Operations  []Operation
}

// ReportResponse acknowledges a ReportRequest; the engine does not
// inspect its contents beyond propagating transport failure.
type ReportResponse struct {
	ReportInfos []ReportInfo
}

// ReportInfo is a per-operation acknowledgement slot.
type ReportInfo struct {
	OperationID string
}

// ToTimestamp converts a time.Time to the protobuf well-known Timestamp,
// used when handing operations to a real wire transport.
func ToTimestamp(t time.Time) *timestamppb.Timestamp {
	if t.IsZero() {
		return nil
	}
	return timestamppb.New(t)
}
