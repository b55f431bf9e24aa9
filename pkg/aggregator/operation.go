// Package aggregator implements the merge rules for Report and Quota
// operations that share a signature: combining metric samples across
// time windows according to each metric's kind.
package aggregator

import (
	"fmt"
	"math"
	"time"

	"github.com/cloudendpoints/service-control-client-go/internal/logger"
	"github.com/cloudendpoints/service-control-client-go/pkg/scpb"
	"github.com/cloudendpoints/service-control-client-go/pkg/signature"
)

// KindLookup resolves a metric name to its kind, defaulting to DELTA
// when the metric is unknown to the caller's configuration.
type KindLookup func(metricName string) scpb.MetricKind

type metricKey struct {
	name string
	sig  signature.Signature
}

// OperationAggregator accumulates Report operations that share a
// signature into a single merged operation, draining metric samples
// into a per-(metric name, value signature) map so repeated samples of
// the same series combine instead of piling up as a list.
type OperationAggregator struct {
	op     scpb.Operation
	values map[metricKey]*scpb.MetricValue
	order  []metricKey
}

// NewOperationAggregator returns an empty aggregator ready for Merge.
func NewOperationAggregator() *OperationAggregator {
	return &OperationAggregator{values: make(map[metricKey]*scpb.MetricValue)}
}

// Merge folds op into the aggregator. op is assumed to share the
// aggregator's Report-operation signature; callers are responsible for
// only merging same-signature operations together.
func (a *OperationAggregator) Merge(op *scpb.Operation, kindOf KindLookup) {
	if a.op.ConsumerID == "" && a.op.OperationName == "" {
		a.op.ConsumerID = op.ConsumerID
		a.op.OperationName = op.OperationName
		a.op.Labels = cloneLabels(op.Labels)
		a.op.QuotaMode = op.QuotaMode
	}
	if a.op.OperationID == "" {
		a.op.OperationID = op.OperationID
	}

	a.op.StartTime = earlier(a.op.StartTime, op.StartTime)
	a.op.EndTime = later(a.op.EndTime, op.EndTime)
	a.op.LogEntries = append(a.op.LogEntries, op.LogEntries...)

	for _, mvs := range op.MetricValueSets {
		kind := scpb.DELTA
		if kindOf != nil {
			kind = kindOf(mvs.MetricName)
		}
		for i := range mvs.Values {
			mv := mvs.Values[i]
			sig := signature.GenerateReportMetricValueSignature(&mv)
			key := metricKey{name: mvs.MetricName, sig: sig}

			existing, hit := a.values[key]
			if !hit {
				v := mv
				a.values[key] = &v
				a.order = append(a.order, key)
				continue
			}
			if err := mergeMetricValue(existing, &mv, kind); err != nil {
				logger.Warn("skipping metric sample merge", "metric", mvs.MetricName, "error", err)
			}
		}
	}
}

// Empty reports whether any operation has ever been merged in.
func (a *OperationAggregator) Empty() bool {
	return a.op.ConsumerID == "" && a.op.OperationName == "" && len(a.order) == 0
}

// Export rebuilds a standalone Operation from the aggregator's current
// state, draining the per-metric-name maps back into ordered
// MetricValueSets.
func (a *OperationAggregator) Export() *scpb.Operation {
	out := a.op
	out.Labels = cloneLabels(a.op.Labels)
	out.LogEntries = append([]scpb.LogEntry(nil), a.op.LogEntries...)
	out.MetricValueSets = nil

	var names []string
	byName := make(map[string]*scpb.MetricValueSet)
	for _, key := range a.order {
		mvs, ok := byName[key.name]
		if !ok {
			mvs = &scpb.MetricValueSet{MetricName: key.name}
			byName[key.name] = mvs
			names = append(names, key.name)
		}
		mvs.Values = append(mvs.Values, *a.values[key])
	}
	for _, n := range names {
		out.MetricValueSets = append(out.MetricValueSets, *byName[n])
	}
	return &out
}

func mergeMetricValue(existing, incoming *scpb.MetricValue, kind scpb.MetricKind) error {
	switch kind {
	case scpb.CUMULATIVE, scpb.GAUGE:
		if !incoming.EndTime.Before(existing.EndTime) {
			*existing = *incoming
		}
		return nil
	default: // DELTA
		switch existing.Kind {
		case scpb.Int64Value:
			existing.Int64 += incoming.Int64
		case scpb.DoubleValue:
			existing.Double += incoming.Double
		case scpb.MoneyValue:
			if existing.MoneyVal.CurrencyCode != incoming.MoneyVal.CurrencyCode {
				return fmt.Errorf("currency mismatch: %s vs %s", existing.MoneyVal.CurrencyCode, incoming.MoneyVal.CurrencyCode)
			}
			addMoney(&existing.MoneyVal, incoming.MoneyVal)
		case scpb.DistributionValue:
			if !mergeDistribution(&existing.Distribution, &incoming.Distribution) {
				return fmt.Errorf("bucket options mismatch")
			}
		}
		existing.StartTime = earlier(existing.StartTime, incoming.StartTime)
		existing.EndTime = later(existing.EndTime, incoming.EndTime)
		return nil
	}
}

// addMoney performs a saturated add of incoming into existing,
// carrying nanos into units and clamping to the int64 range rather
// than wrapping on overflow.
func addMoney(existing *scpb.Money, incoming scpb.Money) {
	const nanosPerUnit = int64(1e9)

	totalNanos := int64(existing.Nanos) + int64(incoming.Nanos)
	carry := totalNanos / nanosPerUnit
	nanos := totalNanos % nanosPerUnit

	units, overflowed := addInt64Saturating(existing.Units, incoming.Units)
	if !overflowed {
		units, _ = addInt64Saturating(units, carry)
	}
	existing.Units = units
	existing.Nanos = int32(nanos)
}

func addInt64Saturating(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		if b > 0 {
			return math.MaxInt64, true
		}
		return math.MinInt64, true
	}
	return sum, false
}

func earlier(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	if a.Before(b) {
		return a
	}
	return b
}

func later(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() {
		return a
	}
	if a.After(b) {
		return a
	}
	return b
}

func cloneLabels(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
