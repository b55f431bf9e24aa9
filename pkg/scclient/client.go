// Package scclient implements the Client Facade: it wires the three
// aggregators to a transport and a periodic timer, and exposes the
// engine's sync, async, and async-with-explicit-transport Check/Quota/
// Report surface plus Statistics.
package scclient

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/cloudendpoints/service-control-client-go/internal/logger"
	"github.com/cloudendpoints/service-control-client-go/internal/scttiming"
	"github.com/cloudendpoints/service-control-client-go/internal/telemetry"
	"github.com/cloudendpoints/service-control-client-go/pkg/checkcache"
	"github.com/cloudendpoints/service-control-client-go/pkg/metrics"
	"github.com/cloudendpoints/service-control-client-go/pkg/quotacache"
	"github.com/cloudendpoints/service-control-client-go/pkg/reportcache"
	"github.com/cloudendpoints/service-control-client-go/pkg/scconfig"
	"github.com/cloudendpoints/service-control-client-go/pkg/scpb"
	"github.com/cloudendpoints/service-control-client-go/pkg/status"
	"github.com/cloudendpoints/service-control-client-go/pkg/transport"
	"github.com/cloudendpoints/service-control-client-go/pkg/transport/grpctransport"
)

// maxInFlight bounds the goroutine pool backing every async call, so a
// caller that fires a burst of async requests can't grow goroutines
// without limit.
const maxInFlight = 256

// Client is the Client Facade (spec §4.9).
type Client struct {
	serviceName string

	check  *checkcache.Aggregator
	quota  *quotacache.Aggregator
	report *reportcache.Aggregator

	checkTransport  transport.CheckTransport
	quotaTransport  transport.QuotaTransport
	reportTransport transport.ReportTransport

	timer       transport.PeriodicTimer
	timerHandle transport.TimerHandle

	pool *pool.Pool

	stats      *Statistics
	metricsRec metrics.StatsRecorder
}

// NewClient validates opts, builds the three aggregators, wires their
// flush callbacks to the configured (or gRPC-default) transports, and
// starts the periodic flush timer.
func NewClient(opts scconfig.ClientOptions) (*Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	kindOf := func(name string) scpb.MetricKind {
		if opts.MetricKinds != nil {
			if k, ok := opts.MetricKinds[name]; ok {
				return k
			}
		}
		return scpb.DELTA
	}

	statsRecorder := metrics.NewStatsRecorder()

	c := &Client{
		serviceName:     opts.ServiceName,
		check:           checkcache.New(opts.CheckOptions, opts.ServiceName, kindOf, statsRecorder),
		quota:           quotacache.New(opts.QuotaOptions, opts.ServiceName, statsRecorder),
		report:          reportcache.New(opts.ReportOptions, opts.ServiceName, kindOf, statsRecorder),
		checkTransport:  opts.CheckTransport,
		quotaTransport:  opts.QuotaTransport,
		reportTransport: opts.ReportTransport,
		pool:            pool.New().WithMaxGoroutines(maxInFlight),
		stats:           newStatistics(),
		metricsRec:      statsRecorder,
	}

	if opts.GRPCServerAddress != "" && (c.checkTransport == nil || c.quotaTransport == nil || c.reportTransport == nil) {
		gc, err := grpctransport.Dial(opts.GRPCServerAddress, opts.GRPCInsecure)
		if err != nil {
			return nil, fmt.Errorf("scclient: dialing default transport: %w", err)
		}
		if c.checkTransport == nil {
			c.checkTransport = gc
		}
		if c.quotaTransport == nil {
			c.quotaTransport = gc
		}
		if c.reportTransport == nil {
			c.reportTransport = gc
		}
	}

	c.check.SetFlushCallback(c.dispatchCheckFlush)
	c.quota.SetFlushCallback(c.dispatchQuotaFlush)
	c.report.SetFlushCallback(c.dispatchReportFlush)

	c.timer = opts.Timer
	if c.timer == nil {
		c.timer = scttiming.New()
	}
	if interval := minPositiveInterval(c.check.NextFlushInterval(), c.quota.NextFlushInterval(), c.report.NextFlushInterval()); interval > 0 {
		c.timerHandle = c.timer.Start(interval.Milliseconds(), func() {
			c.check.Flush()
			c.quota.Flush()
			c.report.Flush()
		})
	}

	return c, nil
}

// dispatchCheckFlush is the Check Aggregator's flush callback: every
// evicted entry with a pending refresh lands here, fired on whatever
// goroutine the eviction happened on (age-flush timer tick, or a
// capacity eviction inside a user call).
func (c *Client) dispatchCheckFlush(req *scpb.CheckRequest) {
	c.stats.check.sendViaFlush.Add(1)
	ctx, span := telemetry.StartTransportSpan(context.Background(), "checkcache.flush", "check")
	defer span.End()
	var resp scpb.CheckResponse
	c.checkTransport.Check(ctx, req, &resp, func(st *status.Status) {
		if !st.IsOK() {
			logger.Warn("check refresh dispatch failed", "error", st.Error())
			c.recordTransportError("check")
			return
		}
		c.check.CacheResponse(req, &resp)
	})
}

func (c *Client) dispatchQuotaFlush(req *scpb.AllocateQuotaRequest) {
	c.stats.quota.sendViaFlush.Add(1)
	ctx, span := telemetry.StartTransportSpan(context.Background(), "quotacache.flush", "quota")
	defer span.End()
	var resp scpb.AllocateQuotaResponse
	c.quotaTransport.AllocateQuota(ctx, req, &resp, func(st *status.Status) {
		if !st.IsOK() {
			logger.Warn("quota refresh dispatch failed", "error", st.Error())
			c.recordTransportError("quota")
			return
		}
		c.quota.CacheResponse(req, &resp)
	})
}

func (c *Client) dispatchReportFlush(req *scpb.ReportRequest) {
	c.stats.report.sendViaFlush.Add(1)
	c.stats.reportOperationsSent.Add(int64(len(req.Operations)))
	ctx, span := telemetry.StartTransportSpan(context.Background(), "reportcache.flush", "report")
	defer span.End()
	var resp scpb.ReportResponse
	c.reportTransport.Report(ctx, req, &resp, func(st *status.Status) {
		if !st.IsOK() {
			logger.Warn("report flush dispatch failed", "error", st.Error())
			c.recordTransportError("report")
		}
	})
}

// Shutdown flushes every aggregator's remaining entries through the
// still-armed flush callbacks, stops the periodic timer, waits for
// in-flight async calls to finish, and then unregisters every flush
// callback so no post-shutdown eviction can call back into a facade
// the owner is discarding.
func (c *Client) Shutdown() {
	c.check.FlushAll()
	c.quota.FlushAll()
	c.report.FlushAll()

	if c.timerHandle != nil {
		c.timerHandle.Stop()
	}

	c.pool.Wait()

	c.check.SetFlushCallback(nil)
	c.quota.SetFlushCallback(nil)
	c.report.SetFlushCallback(nil)
}

// GetStatistics returns a snapshot of the facade's atomic counters.
func (c *Client) GetStatistics() Snapshot {
	return c.stats.Snapshot()
}

func (c *Client) recordTransportError(aggregator string) {
	if c.metricsRec != nil {
		c.metricsRec.RecordTransportError(aggregator)
	}
}

// minPositiveInterval returns the smallest of ds that is > 0, or -1 if
// none are, mirroring spec.md's "min(...) ignoring negatives" rule.
func minPositiveInterval(ds ...time.Duration) time.Duration {
	min := time.Duration(-1)
	for _, d := range ds {
		if d <= 0 {
			continue
		}
		if min < 0 || d < min {
			min = d
		}
	}
	return min
}
