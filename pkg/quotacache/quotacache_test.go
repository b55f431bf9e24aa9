package quotacache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cloudendpoints/service-control-client-go/pkg/scconfig"
	"github.com/cloudendpoints/service-control-client-go/pkg/scpb"
	"github.com/cloudendpoints/service-control-client-go/pkg/status"
)

const serviceName = "library.googleapis.com"

func quotaReq(consumer string, sample int64) *scpb.AllocateQuotaRequest {
	return &scpb.AllocateQuotaRequest{
		ServiceName: serviceName,
		Operation: scpb.Operation{
			ConsumerID:    consumer,
			OperationName: "op",
			MetricValueSets: []scpb.MetricValueSet{
				{MetricName: "read_requests", Values: []scpb.MetricValue{{Kind: scpb.Int64Value, Int64: sample}}},
			},
		},
	}
}

// S5 — Quota cold miss installs a placeholder with an empty pending
// operation: the miss request itself is dispatched verbatim by the
// caller (the Client Facade), so merging it into the placeholder too
// would double-count its sample once the placeholder later refreshes.
// A concurrent second caller for the same signature observes OK with
// an empty grant instead of piling up NotFound, and only *that*
// caller's operation is folded into the pending refresh.
func TestQuota_ColdMissInstallsPlaceholderForConcurrentCallers(t *testing.T) {
	a := New(scconfig.DefaultQuotaOptions(), serviceName, nil)

	_, st := a.Quota(quotaReq("project:1", 1))
	require.Equal(t, status.NotFound, st.Code())

	resp, st := a.Quota(quotaReq("project:1", 2))
	require.True(t, st.IsOK())
	require.Empty(t, resp.AllocateErrors)

	var flushed []*scpb.AllocateQuotaRequest
	a.SetFlushCallback(func(r *scpb.AllocateQuotaRequest) { flushed = append(flushed, r) })
	a.FlushAll()

	require.Len(t, flushed, 1)
	require.EqualValues(t, 2, flushed[0].Operation.MetricValueSets[0].Values[0].Int64)
}

// A placeholder that nobody aggregates against before it is flushed
// emits no refresh at all: the cold-miss request that created it was
// already dispatched verbatim, so there is nothing left to account for.
func TestQuota_UnaggregatedPlaceholderFlushesNothing(t *testing.T) {
	a := New(scconfig.DefaultQuotaOptions(), serviceName, nil)

	_, st := a.Quota(quotaReq("project:1", 1))
	require.Equal(t, status.NotFound, st.Code())

	var flushed []*scpb.AllocateQuotaRequest
	a.SetFlushCallback(func(r *scpb.AllocateQuotaRequest) { flushed = append(flushed, r) })
	a.FlushAll()

	require.Empty(t, flushed)
}

// S6 — Quota refresh-in-place: an age-expired entry that was
// aggregated against since its last refresh is re-inserted under the
// same key by Flush (not FlushAll), so reads never observe a gap.
func TestQuota_FlushReinsertsAggregatedEntryKeepingItReadable(t *testing.T) {
	opts := scconfig.DefaultQuotaOptions()
	opts.ExpirationMs = 10
	a := New(opts, serviceName, nil)

	req1 := quotaReq("project:1", 5)
	_, st := a.Quota(req1)
	require.Equal(t, status.NotFound, st.Code())
	a.CacheResponse(req1, &scpb.AllocateQuotaResponse{})

	// Aggregate twice against the now-real entry so the entry is dirty
	// before it ages out. Neither the cold-miss request above nor its
	// verbatim transport dispatch ever reaches the pending aggregator.
	_, st = a.Quota(req1)
	require.True(t, st.IsOK())
	_, st = a.Quota(req1)
	require.True(t, st.IsOK())

	var flushed []*scpb.AllocateQuotaRequest
	a.SetFlushCallback(func(r *scpb.AllocateQuotaRequest) { flushed = append(flushed, r) })

	time.Sleep(20 * time.Millisecond)
	a.Flush()

	require.Len(t, flushed, 1)
	require.EqualValues(t, 10, flushed[0].Operation.MetricValueSets[0].Values[0].Int64)

	resp, st := a.Quota(req1)
	require.True(t, st.IsOK())
	require.NotNil(t, resp)
}

// FlushAll, unlike Flush, never re-inserts: the aggregated entry
// emits one final refresh and the cache is left empty.
func TestQuota_FlushAllDoesNotReinsert(t *testing.T) {
	a := New(scconfig.DefaultQuotaOptions(), serviceName, nil)

	req1 := quotaReq("project:1", 5)
	_, st := a.Quota(req1)
	require.Equal(t, status.NotFound, st.Code())
	a.CacheResponse(req1, &scpb.AllocateQuotaResponse{})
	_, st = a.Quota(req1)
	require.True(t, st.IsOK())

	var flushed []*scpb.AllocateQuotaRequest
	a.SetFlushCallback(func(r *scpb.AllocateQuotaRequest) { flushed = append(flushed, r) })
	a.FlushAll()

	require.Len(t, flushed, 1)
	_, st = a.Quota(req1)
	require.Equal(t, status.NotFound, st.Code())
}

func TestQuota_CacheResponseUnconditionallyCachesRejection(t *testing.T) {
	a := New(scconfig.DefaultQuotaOptions(), serviceName, nil)
	req1 := quotaReq("project:1", 1)

	_, st := a.Quota(req1)
	require.Equal(t, status.NotFound, st.Code())

	a.CacheResponse(req1, &scpb.AllocateQuotaResponse{
		AllocateErrors: []scpb.QuotaError{{Code: scpb.ResourceExhausted}},
	})

	resp, st := a.Quota(req1)
	require.True(t, st.IsOK())
	require.Len(t, resp.AllocateErrors, 1)
}

func TestQuota_ServiceNameMismatchIsInvalidArgument(t *testing.T) {
	a := New(scconfig.DefaultQuotaOptions(), serviceName, nil)
	_, st := a.Quota(&scpb.AllocateQuotaRequest{ServiceName: "other.googleapis.com"})
	require.Equal(t, status.InvalidArgument, st.Code())
}

func TestQuota_DispatchCollapsesSameSignature(t *testing.T) {
	a := New(scconfig.DefaultQuotaOptions(), serviceName, nil)
	sig := a.Signature(quotaReq("project:1", 1))

	// fn blocks until released so the other Dispatch calls overlap the
	// first; singleflight only collapses calls that are in flight together.
	entered := make(chan struct{}, 3)
	release := make(chan struct{})
	calls := 0
	fn := func() (*scpb.AllocateQuotaResponse, *status.Status) {
		calls++
		entered <- struct{}{}
		<-release
		return &scpb.AllocateQuotaResponse{}, nil
	}

	done := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		go func() {
			_, st := a.Dispatch(sig, fn)
			require.True(t, st.IsOK())
			done <- struct{}{}
		}()
	}
	<-entered
	time.Sleep(20 * time.Millisecond)
	close(release)
	<-done
	<-done
	<-done
	require.Equal(t, 1, calls)
}
