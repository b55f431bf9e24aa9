package aggregator

import (
	"math"

	"github.com/cloudendpoints/service-control-client-go/pkg/scpb"
)

// mergeDistribution combines incoming into existing in place, using
// Welford's parallel-variance combination for the running mean and
// sum-of-squared-deviations, and a pointwise sum of bucket counts.
// Returns false (with no mutation) if the two distributions' bucket
// options disagree, which the caller logs and treats as a skip.
func mergeDistribution(existing, incoming *scpb.Distribution) bool {
	if !existing.Buckets.Equal(incoming.Buckets) {
		return false
	}

	if len(existing.Counts) == 0 {
		existing.Counts = make([]int64, len(incoming.Counts))
	}
	for i, c := range incoming.Counts {
		if i < len(existing.Counts) {
			existing.Counts[i] += c
		}
	}

	na, nb := float64(existing.Count), float64(incoming.Count)
	if na == 0 {
		existing.Count = incoming.Count
		existing.Mean = incoming.Mean
		existing.SumOfSquaredDeviation = incoming.SumOfSquaredDeviation
		existing.Minimum = incoming.Minimum
		existing.Maximum = incoming.Maximum
		return true
	}
	if nb == 0 {
		return true
	}

	delta := incoming.Mean - existing.Mean
	total := na + nb
	mean := existing.Mean + delta*nb/total
	m2 := existing.SumOfSquaredDeviation + incoming.SumOfSquaredDeviation +
		delta*delta*na*nb/total

	existing.Count = existing.Count + incoming.Count
	existing.Mean = mean
	existing.SumOfSquaredDeviation = m2
	existing.Minimum = math.Min(existing.Minimum, incoming.Minimum)
	existing.Maximum = math.Max(existing.Maximum, incoming.Maximum)
	return true
}
