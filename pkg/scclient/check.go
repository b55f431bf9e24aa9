package scclient

import (
	"context"

	"github.com/cloudendpoints/service-control-client-go/internal/telemetry"
	"github.com/cloudendpoints/service-control-client-go/pkg/scpb"
	"github.com/cloudendpoints/service-control-client-go/pkg/status"
	"github.com/cloudendpoints/service-control-client-go/pkg/transport"
)

// CheckDone is the completion callback for an async Check call.
type CheckDone func(resp *scpb.CheckResponse, st *status.Status)

// CheckAsync is the facade's async Check (spec §4.9): a cache hit
// invokes done synchronously from the caller's goroutine; a miss
// dispatches to tr on a pooled goroutine and invokes done from there
// once the transport completes.
func (c *Client) CheckAsync(ctx context.Context, req *scpb.CheckRequest, done CheckDone) {
	c.CheckAsyncWithTransport(ctx, req, c.checkTransport, done)
}

// CheckAsyncWithTransport is CheckAsync with an explicit transport that
// supersedes the one configured at construction, letting a caller
// route specific requests elsewhere while still participating in the
// shared cache.
func (c *Client) CheckAsyncWithTransport(ctx context.Context, req *scpb.CheckRequest, tr transport.CheckTransport, done CheckDone) {
	c.stats.check.totalCalled.Add(1)
	if tr == nil {
		done(nil, status.ErrInvalidArgument("check: no transport configured"))
		return
	}

	_, span := telemetry.StartAggregatorSpan(ctx, "checkcache.check", "check")
	resp, st := c.check.Check(req)
	span.End()
	if st.IsOK() {
		done(resp, nil)
		return
	}
	if st.Code() != status.NotFound {
		done(nil, st)
		return
	}

	sig := c.check.Signature(req)
	c.stats.check.sendInFlight.Add(1)

	c.pool.Go(func() {
		resp, st := c.check.Dispatch(sig, func() (*scpb.CheckResponse, *status.Status) {
			return c.sendCheck(ctx, req, tr)
		})
		done(resp, st)
	})
}

func (c *Client) sendCheck(ctx context.Context, req *scpb.CheckRequest, tr transport.CheckTransport) (*scpb.CheckResponse, *status.Status) {
	ctx, span := telemetry.StartTransportSpan(ctx, "checkcache.dispatch", "check")
	defer span.End()

	reqCopy := *req
	var tresp scpb.CheckResponse
	ch := make(chan *status.Status, 1)
	tr.Check(ctx, &reqCopy, &tresp, func(st *status.Status) { ch <- st })
	st := <-ch
	if !st.IsOK() {
		c.recordTransportError("check")
		return nil, st
	}
	c.check.CacheResponse(req, &tresp)
	return &tresp, nil
}

// Check is the sync form: it parks the calling goroutine until the
// async call's completion, on whichever goroutine that turns out to be
// (the caller's own, for a hit, or the transport's completion thread,
// for a miss).
func (c *Client) Check(ctx context.Context, req *scpb.CheckRequest) (*scpb.CheckResponse, *status.Status) {
	return c.CheckWithTransport(ctx, req, c.checkTransport)
}

// CheckWithTransport is Check with an explicit per-call transport.
func (c *Client) CheckWithTransport(ctx context.Context, req *scpb.CheckRequest, tr transport.CheckTransport) (*scpb.CheckResponse, *status.Status) {
	type result struct {
		resp *scpb.CheckResponse
		st   *status.Status
	}
	done := make(chan result, 1)
	c.CheckAsyncWithTransport(ctx, req, tr, func(resp *scpb.CheckResponse, st *status.Status) {
		done <- result{resp, st}
	})
	r := <-done
	return r.resp, r.st
}
