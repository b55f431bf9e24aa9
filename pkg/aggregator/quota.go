package aggregator

import (
	"github.com/google/uuid"

	"github.com/cloudendpoints/service-control-client-go/pkg/scpb"
	"github.com/cloudendpoints/service-control-client-go/pkg/signature"
)

// QuotaOperationAggregator merges Quota operations that share a
// signature. Unlike the Report aggregator, every sample is an int64
// DELTA, so the merge is a plain sum per (metric name, label
// signature) with no kind dispatch and no currency or distribution
// handling.
type QuotaOperationAggregator struct {
	op        scpb.Operation
	values    map[metricKey]*scpb.MetricValue
	order     []metricKey
	aggregated bool
}

// NewQuotaOperationAggregator returns an empty aggregator.
func NewQuotaOperationAggregator() *QuotaOperationAggregator {
	return &QuotaOperationAggregator{values: make(map[metricKey]*scpb.MetricValue)}
}

// Merge sums op's int64 samples into the aggregator and unconditionally
// marks it aggregated — the Quota Aggregator consults Aggregated to
// decide whether an eviction should emit a refresh request.
func (a *QuotaOperationAggregator) Merge(op *scpb.Operation) {
	if a.op.ConsumerID == "" && a.op.OperationName == "" {
		a.op.ConsumerID = op.ConsumerID
		a.op.OperationName = op.OperationName
		a.op.Labels = cloneLabels(op.Labels)
		a.op.QuotaMode = op.QuotaMode
	}

	a.op.StartTime = earlier(a.op.StartTime, op.StartTime)
	a.op.EndTime = later(a.op.EndTime, op.EndTime)

	for _, mvs := range op.MetricValueSets {
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
			existing.Int64 += mv.Int64
			existing.StartTime = earlier(existing.StartTime, mv.StartTime)
			existing.EndTime = later(existing.EndTime, mv.EndTime)
		}
	}

	a.aggregated = true
}

// Aggregated reports whether Merge has been called since the last
// ResetAggregated.
func (a *QuotaOperationAggregator) Aggregated() bool {
	return a.aggregated
}

// ResetAggregated clears the dirty flag, used once the pending
// operation has been drained into a refresh request.
func (a *QuotaOperationAggregator) ResetAggregated() {
	a.aggregated = false
}

// Export rebuilds a standalone Operation, same drain-the-map shape as
// OperationAggregator.Export. A refresh request is a logically distinct
// accounting event from the reads that fed it, so unlike Report's
// OperationAggregator, Export always mints a fresh OperationID rather
// than carrying the first merged operation's ID forward.
func (a *QuotaOperationAggregator) Export() *scpb.Operation {
	out := a.op
	out.OperationID = uuid.NewString()
	out.Labels = cloneLabels(a.op.Labels)
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
