package checkcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cloudendpoints/service-control-client-go/pkg/scconfig"
	"github.com/cloudendpoints/service-control-client-go/pkg/scpb"
	"github.com/cloudendpoints/service-control-client-go/pkg/status"
)

const serviceName = "library.googleapis.com"

func deltaKind(string) scpb.MetricKind { return scpb.DELTA }

func req(consumer string) *scpb.CheckRequest {
	return &scpb.CheckRequest{
		ServiceName: serviceName,
		Operation:   scpb.Operation{ConsumerID: consumer, OperationName: "op"},
	}
}

// S1 — Check miss then hit, repeated, with no further transport calls.
func TestCheck_MissThenHitTenTimesWithNoTransport(t *testing.T) {
	a := New(scconfig.DefaultCheckOptions(), serviceName, deltaKind, nil)
	r := req("project:1")

	_, st := a.Check(r)
	require.Equal(t, status.NotFound, st.Code())

	a.CacheResponse(r, &scpb.CheckResponse{OperationID: "op-1"})

	for i := 0; i < 10; i++ {
		resp, st := a.Check(r)
		require.True(t, st.IsOK())
		require.Equal(t, "op-1", resp.OperationID)
	}
}

// S2 — Check LRU eviction with pending: exactly one outbound Check
// carrying req1's signature when req2 displaces it, then the cache
// holds req2.
func TestCheck_CapacityEvictionDispatchesPendingRefreshOnce(t *testing.T) {
	opts := scconfig.DefaultCheckOptions()
	opts.NumEntries = 1
	a := New(opts, serviceName, deltaKind, nil)

	var flushed []*scpb.CheckRequest
	a.SetFlushCallback(func(r *scpb.CheckRequest) { flushed = append(flushed, r) })

	req1 := req("project:1")
	req2 := req("project:2")

	_, st := a.Check(req1)
	require.Equal(t, status.NotFound, st.Code())
	a.CacheResponse(req1, &scpb.CheckResponse{OperationID: "op-1"})

	// Aggregates req1's own operation into the entry's pending refresh.
	_, st = a.Check(req1)
	require.True(t, st.IsOK())

	_, st = a.Check(req2)
	require.Equal(t, status.NotFound, st.Code())
	a.CacheResponse(req2, &scpb.CheckResponse{OperationID: "op-2"}) // evicts req1

	require.Len(t, flushed, 1)
	require.Equal(t, "project:1", flushed[0].Operation.ConsumerID)

	resp, st := a.Check(req2)
	require.True(t, st.IsOK())
	require.Equal(t, "op-2", resp.OperationID)

	_, st = a.Check(req1)
	require.Equal(t, status.NotFound, st.Code())
}

// Invariant 3: a cached error response is served without dispatching,
// and is never pushed back out on eviction.
func TestCheck_CachedErrorResponseServedWithoutRefresh(t *testing.T) {
	opts := scconfig.DefaultCheckOptions()
	opts.NumEntries = 1
	a := New(opts, serviceName, deltaKind, nil)

	var flushed []*scpb.CheckRequest
	a.SetFlushCallback(func(r *scpb.CheckRequest) { flushed = append(flushed, r) })

	r := req("project:1")
	a.CacheResponse(r, &scpb.CheckResponse{Status: &scpb.CheckError{Code: "PERMISSION_DENIED"}})

	resp, st := a.Check(r)
	require.True(t, st.IsOK())
	require.NotNil(t, resp.Status)

	a.FlushAll()
	require.Empty(t, flushed)
}

func TestCheck_ServiceNameMismatchIsInvalidArgument(t *testing.T) {
	a := New(scconfig.DefaultCheckOptions(), serviceName, deltaKind, nil)
	r := &scpb.CheckRequest{ServiceName: "other.googleapis.com"}
	_, st := a.Check(r)
	require.Equal(t, status.InvalidArgument, st.Code())
}

func TestCheck_DisabledCacheAlwaysMisses(t *testing.T) {
	opts := scconfig.DefaultCheckOptions()
	opts.NumEntries = 0
	a := New(opts, serviceName, deltaKind, nil)

	r := req("project:1")
	a.CacheResponse(r, &scpb.CheckResponse{OperationID: "op-1"})
	_, st := a.Check(r)
	require.Equal(t, status.NotFound, st.Code())
}

func TestCheck_DispatchCollapsesSameSignature(t *testing.T) {
	a := New(scconfig.DefaultCheckOptions(), serviceName, deltaKind, nil)
	sig := a.Signature(req("project:1"))

	// fn blocks until released so the second Dispatch overlaps the first;
	// singleflight only collapses calls that are in flight together.
	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	calls := 0
	fn := func() (*scpb.CheckResponse, *status.Status) {
		calls++
		entered <- struct{}{}
		<-release
		return &scpb.CheckResponse{OperationID: "op-1"}, nil
	}

	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
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
	require.Equal(t, 1, calls)
}
