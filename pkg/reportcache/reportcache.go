// Package reportcache implements the Report Aggregator: a write-
// batching buffer for telemetry that merges same-signature operations
// and flushes evictees, with an immediate bypass for HIGH-importance
// operations that must never be cached.
package reportcache

import (
	"sync"
	"time"

	"github.com/cloudendpoints/service-control-client-go/pkg/aggregator"
	"github.com/cloudendpoints/service-control-client-go/pkg/lrucache"
	"github.com/cloudendpoints/service-control-client-go/pkg/metrics"
	"github.com/cloudendpoints/service-control-client-go/pkg/scconfig"
	"github.com/cloudendpoints/service-control-client-go/pkg/scpb"
	"github.com/cloudendpoints/service-control-client-go/pkg/signature"
	"github.com/cloudendpoints/service-control-client-go/pkg/status"
)

// FlushFunc is the flush callback an Aggregator invokes with a batched
// Report request built from one evicted entry's merged operation.
type FlushFunc func(req *scpb.ReportRequest)

// Aggregator is the Report Aggregator (spec §4.8).
type Aggregator struct {
	serviceName   string
	numEntries    int
	flushInterval time.Duration

	cache  *lrucache.Cache[*aggregator.OperationAggregator]
	kindOf aggregator.KindLookup
	stats  metrics.StatsRecorder

	cbMu    sync.Mutex
	flushCB FlushFunc
}

// New builds a Report Aggregator. stats may be nil.
func New(opts scconfig.ReportAggregationOptions, serviceName string, kindOf aggregator.KindLookup, stats metrics.StatsRecorder) *Aggregator {
	a := &Aggregator{
		serviceName:   serviceName,
		numEntries:    opts.NumEntries,
		flushInterval: opts.FlushInterval(),
		cache:         lrucache.New[*aggregator.OperationAggregator](opts.NumEntries),
		kindOf:        kindOf,
		stats:         stats,
	}
	// Report entries have no independent TTL of their own in spec.md;
	// age eviction uses the same interval as the flush cadence so a
	// batch first inserted at least one interval ago gets dispatched.
	// Later merges into the batch do not reset its age.
	a.cache.SetAgeBasedEviction(opts.FlushInterval())
	return a
}

func (a *Aggregator) SetFlushCallback(cb FlushFunc) {
	a.cbMu.Lock()
	defer a.cbMu.Unlock()
	a.flushCB = cb
}

func (a *Aggregator) callFlush(req *scpb.ReportRequest) {
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

// Report merges every operation in req into the cache by signature.
// If any operation has HIGH importance, none of req is cached: Report
// returns status.ErrNotFound as a signal that the caller (the Client
// Facade) must dispatch req verbatim instead. Otherwise Report always
// returns OK (nil).
func (a *Aggregator) Report(req *scpb.ReportRequest) *status.Status {
	a.recordCall()
	if req.ServiceName != a.serviceName {
		return status.ErrInvalidArgument("report: service name %q does not match configured %q", req.ServiceName, a.serviceName)
	}
	for i := range req.Operations {
		if req.Operations[i].Importance == scpb.High {
			return status.ErrNotFound
		}
	}
	if a.numEntries <= 0 {
		a.callFlush(req)
		return nil
	}

	buf := lrucache.NewEvictionBuffer[*scpb.ReportRequest]()
	for i := range req.Operations {
		op := &req.Operations[i]
		sig := signature.GenerateReportOperationSignature(op)

		existing, ok := a.cache.Lookup(sig)
		if !ok {
			existing = aggregator.NewOperationAggregator()
			a.cache.Insert(sig, existing, a.evictHook(buf))
		}
		existing.Merge(op, a.kindOf)
	}
	a.flushBuffer(buf)
	a.recordSize()
	return nil
}

// Flush removes age-expired entries, each becoming one outbound Report
// request carrying its merged operation.
func (a *Aggregator) Flush() {
	if a.numEntries <= 0 {
		return
	}
	buf := lrucache.NewEvictionBuffer[*scpb.ReportRequest]()
	a.cache.RemoveExpiredEntries(a.evictHook(buf))
	a.flushBuffer(buf)
	a.recordSize()
}

// FlushAll removes every entry, dispatching each one's merged
// operation the same way Flush does. Used at facade shutdown: the
// flush callback must still be armed when this runs, or the batched
// telemetry it carries is silently lost.
func (a *Aggregator) FlushAll() {
	buf := lrucache.NewEvictionBuffer[*scpb.ReportRequest]()
	a.cache.RemoveAll(a.evictHook(buf))
	a.flushBuffer(buf)
	a.recordSize()
}

func (a *Aggregator) evictHook(buf *lrucache.EvictionBuffer[*scpb.ReportRequest]) lrucache.OnEvict[*aggregator.OperationAggregator] {
	return func(_ signature.Signature, v *aggregator.OperationAggregator, reason lrucache.EvictReason) {
		if v.Empty() {
			return
		}
		op := v.Export()
		buf.Append(lrucache.Drop, &scpb.ReportRequest{ServiceName: a.serviceName, Operations: []scpb.Operation{*op}})
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

func (a *Aggregator) flushBuffer(buf *lrucache.EvictionBuffer[*scpb.ReportRequest]) {
	n := buf.Len()
	buf.Flush(func(_ lrucache.BufferKind, req *scpb.ReportRequest) {
		a.callFlush(req)
	})
	if n > 0 {
		a.recordFlush(n)
	}
}

func (a *Aggregator) recordCall() {
	if a.stats != nil {
		a.stats.RecordCall("report")
	}
}

func (a *Aggregator) recordFlush(n int) {
	if a.stats != nil {
		a.stats.RecordFlush("report", n)
	}
}

func (a *Aggregator) recordEviction(reason string) {
	if a.stats != nil {
		a.stats.RecordEviction("report", reason)
	}
}

func (a *Aggregator) recordSize() {
	if a.stats != nil {
		a.stats.RecordCacheSize("report", a.cache.Len())
	}
}
