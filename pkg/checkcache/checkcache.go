// Package checkcache implements the Check Aggregator: a positive-
// response cache for authorization checks, with refresh-ahead eviction
// and single-flight-by-invariant concurrent-miss behavior.
package checkcache

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
// request built from an evicted entry's pending aggregated operation.
type FlushFunc func(req *scpb.CheckRequest)

type entry struct {
	response scpb.CheckResponse
	isError  bool
	pending  *aggregator.OperationAggregator
}

// Aggregator is the Check Aggregator (spec §4.6).
type Aggregator struct {
	serviceName   string
	numEntries    int
	flushInterval time.Duration

	cache  *lrucache.Cache[*entry]
	kindOf aggregator.KindLookup
	stats  metrics.StatsRecorder

	cbMu    sync.Mutex
	flushCB FlushFunc

	// sf collapses concurrent cold misses for the same signature into
	// one in-flight transport dispatch: the facade wraps its miss-path
	// dispatch in Dispatch instead of calling the transport directly.
	sf singleflight.Group
}

// New builds a Check Aggregator. stats may be nil.
func New(opts scconfig.CheckAggregationOptions, serviceName string, kindOf aggregator.KindLookup, stats metrics.StatsRecorder) *Aggregator {
	a := &Aggregator{
		serviceName:   serviceName,
		numEntries:    opts.NumEntries,
		flushInterval: opts.FlushInterval(),
		cache:         lrucache.New[*entry](opts.NumEntries),
		kindOf:        kindOf,
		stats:         stats,
	}
	a.cache.SetAgeBasedEviction(opts.Expiration())
	return a
}

// SetFlushCallback installs the function invoked for every evicted
// entry carrying a non-empty pending operation. Passing nil disarms it
// — used at facade shutdown to break the cycle back to the transport.
func (a *Aggregator) SetFlushCallback(cb FlushFunc) {
	a.cbMu.Lock()
	defer a.cbMu.Unlock()
	a.flushCB = cb
}

func (a *Aggregator) callFlush(req *scpb.CheckRequest) {
	a.cbMu.Lock()
	cb := a.flushCB
	a.cbMu.Unlock()
	if cb != nil {
		cb(req)
	}
}

// NextFlushInterval reports how often Flush should be driven, or -1 if
// the cache is disabled and Flush is a no-op.
func (a *Aggregator) NextFlushInterval() time.Duration {
	if a.numEntries <= 0 {
		return -1
	}
	return a.flushInterval
}

// Check looks up req's signature. A hit returns OK with the cached
// response (aggregating req's operation into the entry's pending
// operation first, unless the cached response carries an error). A
// miss returns status.ErrNotFound; the caller must dispatch to the
// transport and then call CacheResponse.
func (a *Aggregator) Check(req *scpb.CheckRequest) (*scpb.CheckResponse, *status.Status) {
	a.recordCall()
	if req.ServiceName != a.serviceName {
		return nil, status.ErrInvalidArgument("check: service name %q does not match configured %q", req.ServiceName, a.serviceName)
	}
	if a.numEntries <= 0 {
		a.recordHit(false)
		return nil, status.ErrNotFound
	}

	sig := signature.GenerateCheckRequestSignature(&req.Operation, nil)
	e, ok := a.cache.Lookup(sig)
	if !ok {
		a.recordHit(false)
		return nil, status.ErrNotFound
	}
	a.recordHit(true)

	if !e.isError {
		if e.pending == nil {
			e.pending = aggregator.NewOperationAggregator()
		}
		e.pending.Merge(&req.Operation, a.kindOf)
	}

	resp := e.response
	return &resp, nil
}

// Signature exposes the cache key Check/CacheResponse use for req, so
// the facade can key its own singleflight collapse consistently with
// Dispatch below without recomputing the hash differently.
func (a *Aggregator) Signature(req *scpb.CheckRequest) signature.Signature {
	return signature.GenerateCheckRequestSignature(&req.Operation, nil)
}

// Dispatch collapses concurrent cold-miss calls for the same signature
// into a single invocation of fn, turning the "each concurrent caller
// dispatches once" invariant into an actual single in-flight RTT rather
// than a best-effort one. Every waiter observes fn's result, including
// the request object *fn closes over, which is fine since every caller
// that collapsed together shares the same signature.
func (a *Aggregator) Dispatch(sig signature.Signature, fn func() (*scpb.CheckResponse, *status.Status)) (*scpb.CheckResponse, *status.Status) {
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
	return v.(*scpb.CheckResponse), nil
}

// CacheResponse inserts or replaces the cache entry for req's
// signature with resp. If an entry already occupied the slot, its
// pending aggregated operation is carried into the replacement rather
// than dispatched. If capacity eviction displaces another entry, any
// pending refresh that evictee carried is dispatched through the flush
// callback after the cache lock is released.
func (a *Aggregator) CacheResponse(req *scpb.CheckRequest, resp *scpb.CheckResponse) {
	if a.numEntries <= 0 {
		return
	}
	sig := signature.GenerateCheckRequestSignature(&req.Operation, nil)
	e := &entry{response: *resp, isError: resp.Status != nil}

	// CacheResponse replaces the response but keeps any pending
	// aggregated operation accumulating toward the next refresh;
	// Insert's displacement of the prior entry must not be mistaken
	// for a destruction that should dispatch that pending operation.
	if old, ok := a.cache.Lookup(sig); ok {
		e.pending = old.pending
	}

	buf := lrucache.NewEvictionBuffer[*scpb.CheckRequest]()
	a.cache.Insert(sig, e, a.evictHook(buf))
	a.flushBuffer(buf)
	a.recordSize()
}

// Flush removes age-expired entries; each one whose pending aggregated
// operation is non-empty is dispatched as a refresh Check request.
func (a *Aggregator) Flush() {
	if a.numEntries <= 0 {
		return
	}
	buf := lrucache.NewEvictionBuffer[*scpb.CheckRequest]()
	a.cache.RemoveExpiredEntries(a.evictHook(buf))
	a.flushBuffer(buf)
	a.recordSize()
}

// FlushAll removes every entry, dispatching pending operations the
// same way Flush does. Used at facade shutdown.
func (a *Aggregator) FlushAll() {
	buf := lrucache.NewEvictionBuffer[*scpb.CheckRequest]()
	a.cache.RemoveAll(a.evictHook(buf))
	a.flushBuffer(buf)
	a.recordSize()
}

// evictHook builds the on-delete hook for one cache mutation: it never
// calls the flush callback directly, only appends to buf, per the
// Removed-Items Buffer discipline.
func (a *Aggregator) evictHook(buf *lrucache.EvictionBuffer[*scpb.CheckRequest]) lrucache.OnEvict[*entry] {
	return func(_ signature.Signature, v *entry, reason lrucache.EvictReason) {
		if reason == lrucache.EvictExplicit {
			// Displaced by CacheResponse's replacement Insert, not a real
			// destruction; the caller already carried the pending
			// operation forward into the replacement entry.
			return
		}
		if v.isError {
			// An entry whose cached response carries an error is never
			// pushed back to the transport on eviction.
			return
		}
		if v.pending == nil || v.pending.Empty() {
			return
		}
		op := v.pending.Export()
		buf.Append(lrucache.Drop, &scpb.CheckRequest{ServiceName: a.serviceName, Operation: *op})
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

func (a *Aggregator) flushBuffer(buf *lrucache.EvictionBuffer[*scpb.CheckRequest]) {
	n := buf.Len()
	buf.Flush(func(_ lrucache.BufferKind, req *scpb.CheckRequest) {
		a.callFlush(req)
	})
	if n > 0 {
		a.recordFlush(n)
	}
}

func (a *Aggregator) recordCall() {
	if a.stats != nil {
		a.stats.RecordCall("check")
	}
}

func (a *Aggregator) recordHit(hit bool) {
	if a.stats != nil {
		a.stats.RecordCacheHit("check", hit)
	}
}

func (a *Aggregator) recordFlush(n int) {
	if a.stats != nil {
		a.stats.RecordFlush("check", n)
	}
}

func (a *Aggregator) recordEviction(reason string) {
	if a.stats != nil {
		a.stats.RecordEviction("check", reason)
	}
}

func (a *Aggregator) recordSize() {
	if a.stats != nil {
		a.stats.RecordCacheSize("check", a.cache.Len())
	}
}
