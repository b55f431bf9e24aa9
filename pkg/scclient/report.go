package scclient

import (
	"context"

	"github.com/cloudendpoints/service-control-client-go/internal/telemetry"
	"github.com/cloudendpoints/service-control-client-go/pkg/scpb"
	"github.com/cloudendpoints/service-control-client-go/pkg/status"
	"github.com/cloudendpoints/service-control-client-go/pkg/transport"
)

// ReportDone is the completion callback for an async Report call.
// Report has no caller-visible response payload: every operation that
// isn't bypassed is absorbed into the cache and acknowledged
// immediately, so only a Status is threaded back.
type ReportDone func(st *status.Status)

// ReportAsync calls the Report Aggregator; HIGH-importance operations
// make it return status.ErrNotFound, the signal to dispatch req
// verbatim through the transport instead of caching it.
func (c *Client) ReportAsync(ctx context.Context, req *scpb.ReportRequest, done ReportDone) {
	c.ReportAsyncWithTransport(ctx, req, c.reportTransport, done)
}

func (c *Client) ReportAsyncWithTransport(ctx context.Context, req *scpb.ReportRequest, tr transport.ReportTransport, done ReportDone) {
	c.stats.report.totalCalled.Add(1)
	if tr == nil {
		done(status.ErrInvalidArgument("report: no transport configured"))
		return
	}

	_, span := telemetry.StartAggregatorSpan(ctx, "reportcache.report", "report")
	st := c.report.Report(req)
	span.End()
	if st.IsOK() {
		done(nil)
		return
	}
	if st.Code() != status.NotFound {
		done(st)
		return
	}

	c.stats.report.sendInFlight.Add(1)
	c.stats.reportOperationsSent.Add(int64(len(req.Operations)))

	c.pool.Go(func() {
		ctx, span := telemetry.StartTransportSpan(ctx, "reportcache.dispatch", "report")
		defer span.End()

		reqCopy := *req
		var tresp scpb.ReportResponse
		ch := make(chan *status.Status, 1)
		tr.Report(ctx, &reqCopy, &tresp, func(st *status.Status) { ch <- st })
		st := <-ch
		if !st.IsOK() {
			c.recordTransportError("report")
		}
		done(st)
	})
}

// Report is the sync form of ReportAsync.
func (c *Client) Report(ctx context.Context, req *scpb.ReportRequest) *status.Status {
	return c.ReportWithTransport(ctx, req, c.reportTransport)
}

func (c *Client) ReportWithTransport(ctx context.Context, req *scpb.ReportRequest, tr transport.ReportTransport) *status.Status {
	done := make(chan *status.Status, 1)
	c.ReportAsyncWithTransport(ctx, req, tr, func(st *status.Status) {
		done <- st
	})
	return <-done
}
