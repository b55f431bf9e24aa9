package scclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cloudendpoints/service-control-client-go/internal/scttesting"
	"github.com/cloudendpoints/service-control-client-go/pkg/scconfig"
	"github.com/cloudendpoints/service-control-client-go/pkg/scpb"
	"github.com/cloudendpoints/service-control-client-go/pkg/status"
)

const serviceName = "library.googleapis.com"

func newTestClient(t *testing.T, tr *scttesting.FakeTransport, timer *scttesting.FakeTimer) *Client {
	t.Helper()
	opts := scconfig.ClientOptions{
		ServiceName:     serviceName,
		CheckOptions:    scconfig.DefaultCheckOptions(),
		QuotaOptions:    scconfig.DefaultQuotaOptions(),
		ReportOptions:   scconfig.DefaultReportOptions(),
		CheckTransport:  tr,
		QuotaTransport:  tr,
		ReportTransport: tr,
		Timer:           timer,
	}
	c, err := NewClient(opts)
	require.NoError(t, err)
	return c
}

func checkReq(consumer string) *scpb.CheckRequest {
	return &scpb.CheckRequest{ServiceName: serviceName, Operation: scpb.Operation{ConsumerID: consumer, OperationName: "op"}}
}

func TestClient_CheckMissDispatchesThenHitsWithoutTransport(t *testing.T) {
	tr := scttesting.NewFakeTransport()
	tr.CheckResponse = &scpb.CheckResponse{OperationID: "op-1"}
	timer := scttesting.NewFakeTimer()
	c := newTestClient(t, tr, timer)

	resp, st := c.Check(context.Background(), checkReq("project:1"))
	require.True(t, st.IsOK())
	require.Equal(t, "op-1", resp.OperationID)
	require.Equal(t, 1, tr.CheckCount())

	resp, st = c.Check(context.Background(), checkReq("project:1"))
	require.True(t, st.IsOK())
	require.Equal(t, "op-1", resp.OperationID)
	require.Equal(t, 1, tr.CheckCount())

	snap := c.GetStatistics()
	require.EqualValues(t, 2, snap.CheckTotalCalled)
	require.EqualValues(t, 1, snap.CheckSendInFlight)
}

func TestClient_CheckWithNilTransportIsInvalidArgument(t *testing.T) {
	timer := scttesting.NewFakeTimer()
	opts := scconfig.ClientOptions{
		ServiceName:   serviceName,
		CheckOptions:  scconfig.DefaultCheckOptions(),
		QuotaOptions:  scconfig.DefaultQuotaOptions(),
		ReportOptions: scconfig.DefaultReportOptions(),
		ReportTransport: scttesting.NewFakeTransport(),
		QuotaTransport:  scttesting.NewFakeTransport(),
		Timer:           timer,
	}
	c, err := NewClient(opts)
	require.NoError(t, err)

	_, st := c.Check(context.Background(), checkReq("project:1"))
	require.Equal(t, status.InvalidArgument, st.Code())
}

func TestClient_CheckAsyncWithTransportOverridesDefault(t *testing.T) {
	defaultTr := scttesting.NewFakeTransport()
	overrideTr := scttesting.NewFakeTransport()
	overrideTr.CheckResponse = &scpb.CheckResponse{OperationID: "override"}
	timer := scttesting.NewFakeTimer()
	c := newTestClient(t, defaultTr, timer)

	resp, st := c.CheckWithTransport(context.Background(), checkReq("project:1"), overrideTr)
	require.True(t, st.IsOK())
	require.Equal(t, "override", resp.OperationID)
	require.Equal(t, 0, defaultTr.CheckCount())
	require.Equal(t, 1, overrideTr.CheckCount())
}

func TestClient_QuotaRejectionIsTranslatedAndCachedUnconditionally(t *testing.T) {
	tr := scttesting.NewFakeTransport()
	tr.QuotaResponse = &scpb.AllocateQuotaResponse{AllocateErrors: []scpb.QuotaError{{Code: scpb.ResourceExhausted}}}
	timer := scttesting.NewFakeTimer()
	c := newTestClient(t, tr, timer)

	req := &scpb.AllocateQuotaRequest{ServiceName: serviceName, Operation: scpb.Operation{ConsumerID: "project:1", OperationName: "op"}}

	_, st := c.Quota(context.Background(), req)
	require.Equal(t, status.PermissionDenied, st.Code())
	require.Equal(t, 1, tr.QuotaCount())

	// Second call is served from cache: still rejected, no second RTT.
	_, st = c.Quota(context.Background(), req)
	require.Equal(t, status.PermissionDenied, st.Code())
	require.Equal(t, 1, tr.QuotaCount())
}

func TestClient_ReportHighImportanceBypassesCacheAndGoesStraightToTransport(t *testing.T) {
	tr := scttesting.NewFakeTransport()
	timer := scttesting.NewFakeTimer()
	c := newTestClient(t, tr, timer)

	req := &scpb.ReportRequest{ServiceName: serviceName, Operations: []scpb.Operation{
		{ConsumerID: "project:1", OperationName: "op", Importance: scpb.High},
	}}

	st := c.Report(context.Background(), req)
	require.True(t, st.IsOK())
	require.Equal(t, 1, tr.ReportCount())

	snap := c.GetStatistics()
	require.EqualValues(t, 1, snap.ReportSendInFlight)
	require.EqualValues(t, 1, snap.ReportOperationsSent)
}

func TestClient_ReportLowImportanceIsBatchedByTheTimer(t *testing.T) {
	tr := scttesting.NewFakeTransport()
	timer := scttesting.NewFakeTimer()
	c := newTestClient(t, tr, timer)

	req := &scpb.ReportRequest{ServiceName: serviceName, Operations: []scpb.Operation{
		{ConsumerID: "project:1", OperationName: "op", Importance: scpb.Low},
	}}

	st := c.Report(context.Background(), req)
	require.True(t, st.IsOK())
	require.Equal(t, 0, tr.ReportCount())

	// A tick dispatches only batches older than the report flush interval.
	time.Sleep(time.Duration(scconfig.DefaultReportOptions().FlushIntervalMs)*time.Millisecond + 50*time.Millisecond)
	timer.Fire()
	require.Equal(t, 1, tr.ReportCount())
}

func TestClient_ShutdownFlushesDrainsAndDisarmsCallbacks(t *testing.T) {
	tr := scttesting.NewFakeTransport()
	timer := scttesting.NewFakeTimer()
	c := newTestClient(t, tr, timer)

	req := &scpb.ReportRequest{ServiceName: serviceName, Operations: []scpb.Operation{
		{ConsumerID: "project:1", OperationName: "op", Importance: scpb.Low},
	}}
	st := c.Report(context.Background(), req)
	require.True(t, st.IsOK())
	require.Equal(t, 0, tr.ReportCount())

	c.Shutdown()
	require.Equal(t, 1, tr.ReportCount())

	// Timer handle was stopped; firing again must not trigger another flush.
	timer.Fire()
	require.Equal(t, 1, tr.ReportCount())
}

func TestClient_TimerIntervalIsMinimumOfTheThreeAggregators(t *testing.T) {
	tr := scttesting.NewFakeTransport()
	timer := scttesting.NewFakeTimer()

	opts := scconfig.ClientOptions{
		ServiceName:     serviceName,
		CheckOptions:    scconfig.CheckAggregationOptions{NumEntries: 10000, FlushIntervalMs: 5000, ExpirationMs: 6000},
		QuotaOptions:    scconfig.QuotaAggregationOptions{NumEntries: 10000, RefreshIntervalMs: 200},
		ReportOptions:   scconfig.ReportAggregationOptions{NumEntries: 10000, FlushIntervalMs: 9000},
		CheckTransport:  tr,
		QuotaTransport:  tr,
		ReportTransport: tr,
		Timer:           timer,
	}
	_, err := NewClient(opts)
	require.NoError(t, err)

	require.Equal(t, []int64{200}, timer.Intervals())
}
