package scclient

import (
	"context"

	"github.com/cloudendpoints/service-control-client-go/internal/telemetry"
	"github.com/cloudendpoints/service-control-client-go/pkg/scpb"
	"github.com/cloudendpoints/service-control-client-go/pkg/status"
	"github.com/cloudendpoints/service-control-client-go/pkg/transport"
)

// QuotaDone is the completion callback for an async Quota call.
type QuotaDone func(resp *scpb.AllocateQuotaResponse, st *status.Status)

// QuotaAsync mirrors CheckAsync with one difference spec.md §4.9 calls
// out explicitly: the transport completion always calls CacheResponse,
// even when the response itself carries an allocate_errors rejection,
// so a repeated reject is served from cache instead of round-tripping
// every time.
func (c *Client) QuotaAsync(ctx context.Context, req *scpb.AllocateQuotaRequest, done QuotaDone) {
	c.QuotaAsyncWithTransport(ctx, req, c.quotaTransport, done)
}

func (c *Client) QuotaAsyncWithTransport(ctx context.Context, req *scpb.AllocateQuotaRequest, tr transport.QuotaTransport, done QuotaDone) {
	c.stats.quota.totalCalled.Add(1)
	if tr == nil {
		done(nil, status.ErrInvalidArgument("quota: no transport configured"))
		return
	}

	_, span := telemetry.StartAggregatorSpan(ctx, "quotacache.quota", "quota")
	resp, st := c.quota.Quota(req)
	span.End()
	if st.IsOK() {
		done(resp, status.TranslateQuotaError(c.serviceName, resp.AllocateErrors))
		return
	}
	if st.Code() != status.NotFound {
		done(nil, st)
		return
	}

	sig := c.quota.Signature(req)
	c.stats.quota.sendInFlight.Add(1)

	c.pool.Go(func() {
		resp, transportSt := c.quota.Dispatch(sig, func() (*scpb.AllocateQuotaResponse, *status.Status) {
			return c.sendQuota(ctx, req, tr)
		})
		if !transportSt.IsOK() {
			done(nil, transportSt)
			return
		}
		done(resp, status.TranslateQuotaError(c.serviceName, resp.AllocateErrors))
	})
}

func (c *Client) sendQuota(ctx context.Context, req *scpb.AllocateQuotaRequest, tr transport.QuotaTransport) (*scpb.AllocateQuotaResponse, *status.Status) {
	ctx, span := telemetry.StartTransportSpan(ctx, "quotacache.dispatch", "quota")
	defer span.End()

	reqCopy := *req
	var tresp scpb.AllocateQuotaResponse
	ch := make(chan *status.Status, 1)
	tr.AllocateQuota(ctx, &reqCopy, &tresp, func(st *status.Status) { ch <- st })
	st := <-ch
	if !st.IsOK() {
		c.recordTransportError("quota")
		return nil, st
	}
	// Cache the response unconditionally, including a rejection: the
	// next lookup for this signature must return the same reject rather
	// than spending another round trip to learn it again.
	c.quota.CacheResponse(req, &tresp)
	return &tresp, nil
}

// Quota is the sync form of QuotaAsync.
func (c *Client) Quota(ctx context.Context, req *scpb.AllocateQuotaRequest) (*scpb.AllocateQuotaResponse, *status.Status) {
	return c.QuotaWithTransport(ctx, req, c.quotaTransport)
}

func (c *Client) QuotaWithTransport(ctx context.Context, req *scpb.AllocateQuotaRequest, tr transport.QuotaTransport) (*scpb.AllocateQuotaResponse, *status.Status) {
	type result struct {
		resp *scpb.AllocateQuotaResponse
		st   *status.Status
	}
	done := make(chan result, 1)
	c.QuotaAsyncWithTransport(ctx, req, tr, func(resp *scpb.AllocateQuotaResponse, st *status.Status) {
		done <- result{resp, st}
	})
	r := <-done
	return r.resp, r.st
}
