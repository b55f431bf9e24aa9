package aggregator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudendpoints/service-control-client-go/pkg/scpb"
)

func TestMergeDistribution_BucketMismatchRejected(t *testing.T) {
	existing := &scpb.Distribution{Buckets: scpb.BucketOption{LinearNumBuckets: 5, LinearWidth: 1}}
	incoming := &scpb.Distribution{Buckets: scpb.BucketOption{LinearNumBuckets: 10, LinearWidth: 1}}
	require.False(t, mergeDistribution(existing, incoming))
}

func TestMergeDistribution_SumsCountsAndCombinesMeanViaWelford(t *testing.T) {
	buckets := scpb.BucketOption{LinearNumBuckets: 2, LinearWidth: 5}
	existing := &scpb.Distribution{
		Buckets: buckets,
		Counts:  []int64{1, 1},
		Count:   2, Mean: 10, Minimum: 5, Maximum: 15,
	}
	incoming := &scpb.Distribution{
		Buckets: buckets,
		Counts:  []int64{0, 2},
		Count:   2, Mean: 20, Minimum: 18, Maximum: 22,
	}

	ok := mergeDistribution(existing, incoming)
	require.True(t, ok)
	require.Equal(t, []int64{1, 3}, existing.Counts)
	require.EqualValues(t, 4, existing.Count)
	require.InDelta(t, 15, existing.Mean, 1e-9)
	require.Equal(t, 5.0, existing.Minimum)
	require.Equal(t, 22.0, existing.Maximum)
}

func TestMergeDistribution_EmptyExistingTakesIncomingWholesale(t *testing.T) {
	buckets := scpb.BucketOption{ExplicitBounds: []float64{1, 2, 3}}
	existing := &scpb.Distribution{Buckets: buckets}
	incoming := &scpb.Distribution{Buckets: buckets, Count: 3, Mean: 7, Minimum: 1, Maximum: 9}

	require.True(t, mergeDistribution(existing, incoming))
	require.EqualValues(t, 3, existing.Count)
	require.Equal(t, 7.0, existing.Mean)
}

func TestMergeDistribution_EmptyIncomingLeavesExistingUnchanged(t *testing.T) {
	buckets := scpb.BucketOption{ExplicitBounds: []float64{1, 2}}
	existing := &scpb.Distribution{Buckets: buckets, Count: 4, Mean: 11}
	incoming := &scpb.Distribution{Buckets: buckets}

	require.True(t, mergeDistribution(existing, incoming))
	require.EqualValues(t, 4, existing.Count)
	require.Equal(t, 11.0, existing.Mean)
}
