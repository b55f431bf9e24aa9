// Package quotacache implements the Quota Aggregator: a cache of
// quota grants that accumulates consumed tokens between refreshes and
// refreshes entries in place so reads never observe a gap.
package quotacache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cloudendpoints/service-control-client-go/pkg/aggregator"
	"github.com/cloudendpoints/service-control-client-go/pkg/lrucache"
	"github.com/cloudendpoints/service-control-client-go/pkg/metrics"
	"github.com/cloudendpoints/service-control-client-go/pkg/scconfig"
	"github.com/cloudendpoints/service-control-client-go/pkg/scpb"
	"github.com/cloudendpoints/service-control-client-go/pkg/signature"
	"github.com/cloudendpoints/service-control-client-go/pkg/status"
)

// FlushFunc is the flush callback an Aggregator invokes with a refresh
// request built from an evicted (or expiring) entry's pending
// aggregated operation.
type FlushFunc func(req *scpb.AllocateQuotaRequest)

type entry struct {
	response    scpb.AllocateQuotaResponse
	pending     *aggregator.QuotaOperationAggregator
	sig         signature.Signature
	placeholder bool
}

// Aggregator is the Quota Aggregator (spec §4.7).
type Aggregator struct {
	serviceName   string
	numEntries    int
	flushInterval time.Duration

	cache *lrucache.Cache[*entry]
	stats metrics.StatsRecorder

	cbMu    sync.Mutex
	flushCB FlushFunc

	// sf collapses concurrent cold misses for the same signature, same
	// rationale as checkcache's.
	sf singleflight.Group
}

// New builds a Quota Aggregator. stats may be nil.
func New(opts scconfig.QuotaAggregationOptions, serviceName string, stats metrics.StatsRecorder) *Aggregator {
	a := &Aggregator{
		serviceName:   serviceName,
		numEntries:    opts.NumEntries,
		flushInterval: opts.FlushInterval(),
		cache:         lrucache.New[*entry](opts.NumEntries),
		stats:         stats,
	}
	a.cache.SetAgeBasedEviction(opts.Expiration())
	return a
}

// SetFlushCallback installs the refresh-dispatch function; nil disarms it.
func (a *Aggregator) SetFlushCallback(cb FlushFunc) {
	a.cbMu.Lock()
	defer a.cbMu.Unlock()
	a.flushCB = cb
}

func (a *Aggregator) callFlush(req *scpb.AllocateQuotaRequest) {
	a.cbMu.Lock()
	cb := a.flushCB
	a.cbMu.Unlock()
	if cb != nil {
		cb(req)
	}
}

// NextFlushInterval reports how often Flush should be driven, or -1 if
// the cache is disabled.
func (a *Aggregator) NextFlushInterval() time.Duration {
	if a.numEntries <= 0 {
		return -1
	}
	return a.flushInterval
}

// Quota looks up req's signature.
//
//   - service name mismatch -> InvalidArgument.
//   - hit (real entry or placeholder) -> OK, response filled from
//     cache, req's operation aggregated into the entry's pending
//     operation (marking it dirty for the next refresh).
//   - cold miss -> status.ErrNotFound, after installing an empty
//     placeholder entry so concurrent callers during the first RTT see
//     OK with an empty response instead of piling up NOT_FOUNDs. The
//     miss request's own operation is deliberately left out of the
//     placeholder's pending aggregator: the caller dispatches that
//     exact request to the transport verbatim, so folding it in here
//     too would account its samples twice once the placeholder refreshes.
func (a *Aggregator) Quota(req *scpb.AllocateQuotaRequest) (*scpb.AllocateQuotaResponse, *status.Status) {
	a.recordCall()
	if req.ServiceName != a.serviceName {
		return nil, status.ErrInvalidArgument("quota: service name %q does not match configured %q", req.ServiceName, a.serviceName)
	}
	if a.numEntries <= 0 {
		a.recordHit(false)
		return nil, status.ErrNotFound
	}

	sig := signature.GenerateCheckRequestSignature(&req.Operation, nil)

	e, ok := a.cache.Lookup(sig)
	if !ok {
		e = &entry{sig: sig, placeholder: true, pending: aggregator.NewQuotaOperationAggregator()}

		buf := lrucache.NewEvictionBuffer[refreshOrDrop]()
		a.cache.Insert(sig, e, a.evictHook(buf, true))
		a.flushBuffer(buf)
		a.recordSize()
		a.recordHit(false)
		return nil, status.ErrNotFound
	}

	a.recordHit(true)
	if e.pending == nil {
		e.pending = aggregator.NewQuotaOperationAggregator()
	}
	e.pending.Merge(&req.Operation)

	resp := e.response
	return &resp, nil
}

// Signature exposes the cache key Quota/CacheResponse use for req.
func (a *Aggregator) Signature(req *scpb.AllocateQuotaRequest) signature.Signature {
	return signature.GenerateCheckRequestSignature(&req.Operation, nil)
}

// Dispatch collapses concurrent cold-miss calls for the same signature
// into a single invocation of fn, same rationale as checkcache's.
func (a *Aggregator) Dispatch(sig signature.Signature, fn func() (*scpb.AllocateQuotaResponse, *status.Status)) (*scpb.AllocateQuotaResponse, *status.Status) {
	v, err, _ := a.sf.Do(sig.String(), func() (any, error) {
		resp, st := fn()
		if !st.IsOK() {
			return nil, st
		}
		return resp, nil
	})
	if err != nil {
		return nil, status.FromError(err)
	}
	return v.(*scpb.AllocateQuotaResponse), nil
}

// CacheResponse replaces the cache entry for req's signature with
// resp. If a placeholder occupied the slot and has been aggregated
// against, its accumulated pending operation is carried into the
// replacement entry rather than dispatched or dropped.
func (a *Aggregator) CacheResponse(req *scpb.AllocateQuotaRequest, resp *scpb.AllocateQuotaResponse) {
	if a.numEntries <= 0 {
		return
	}
	sig := signature.GenerateCheckRequestSignature(&req.Operation, nil)
	ne := &entry{sig: sig, response: *resp}

	if old, ok := a.cache.Lookup(sig); ok && old.pending != nil && old.pending.Aggregated() {
		ne.pending = old.pending
	}

	buf := lrucache.NewEvictionBuffer[refreshOrDrop]()
	a.cache.Insert(sig, ne, a.evictHook(buf, true))
	a.flushBuffer(buf)
	a.recordSize()
}

// Flush removes age-expired entries. Each one aggregated against since
// its last refresh is re-inserted under the same key (so reads keep
// hitting) and its accumulated pending operation is dispatched as a
// refresh request; entries never aggregated against are simply dropped.
func (a *Aggregator) Flush() {
	if a.numEntries <= 0 {
		return
	}
	buf := lrucache.NewEvictionBuffer[refreshOrDrop]()
	a.cache.RemoveExpiredEntries(a.evictHook(buf, true))
	a.flushBuffer(buf)
	a.recordSize()
}

// FlushAll removes every entry. Unlike Flush, evicted entries are
// never re-inserted — this is the shutdown path, where the cache is
// being torn down rather than refreshed — but aggregated entries still
// emit one final refresh request before being dropped.
func (a *Aggregator) FlushAll() {
	buf := lrucache.NewEvictionBuffer[refreshOrDrop]()
	a.cache.RemoveAll(a.evictHook(buf, false))
	a.flushBuffer(buf)
	a.recordSize()
}

// refreshOrDrop is the Removed-Items Buffer payload for this
// aggregator: a built AllocateQuotaRequest. Whether the evictee it came
// from was re-inserted (kept serving reads during the refresh) is
// recorded by the item's BufferKind tag, not by this payload.
type refreshOrDrop struct {
	req *scpb.AllocateQuotaRequest
}

func (a *Aggregator) evictHook(buf *lrucache.EvictionBuffer[refreshOrDrop], reinsertOnRefresh bool) lrucache.OnEvict[*entry] {
	return func(key signature.Signature, v *entry, reason lrucache.EvictReason) {
		if reason == lrucache.EvictExplicit {
			// Displaced by CacheResponse's or Quota's placeholder-install
			// replacement Insert, not a real destruction; pending state
			// was already carried forward by the caller.
			return
		}
		if v.pending == nil || !v.pending.Aggregated() {
			return
		}

		op := v.pending.Export()
		v.pending = aggregator.NewQuotaOperationAggregator()

		kind := lrucache.Drop
		if reinsertOnRefresh {
			kind = lrucache.Refresh
			a.cache.Reinsert(key, v)
		}
		buf.Append(kind, refreshOrDrop{req: &scpb.AllocateQuotaRequest{ServiceName: a.serviceName, Operation: *op}})

		switch reason {
		case lrucache.EvictAge:
			a.recordEviction("age")
		case lrucache.EvictAll:
			a.recordEviction("shutdown")
		default:
			a.recordEviction("capacity")
		}
	}
}

func (a *Aggregator) flushBuffer(buf *lrucache.EvictionBuffer[refreshOrDrop]) {
	n := buf.Len()
	buf.Flush(func(_ lrucache.BufferKind, item refreshOrDrop) {
		a.callFlush(item.req)
	})
	if n > 0 {
		a.recordFlush(n)
	}
}

func (a *Aggregator) recordCall() {
	if a.stats != nil {
		a.stats.RecordCall("quota")
	}
}

func (a *Aggregator) recordHit(hit bool) {
	if a.stats != nil {
		a.stats.RecordCacheHit("quota", hit)
	}
}

func (a *Aggregator) recordFlush(n int) {
	if a.stats != nil {
		a.stats.RecordFlush("quota", n)
	}
}

func (a *Aggregator) recordEviction(reason string) {
	if a.stats != nil {
		a.stats.RecordEviction("quota", reason)
	}
}

func (a *Aggregator) recordSize() {
	if a.stats != nil {
		a.stats.RecordCacheSize("quota", a.cache.Len())
	}
}
