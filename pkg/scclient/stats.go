package scclient

import "sync/atomic"

// aggregatorStats holds the atomic counters for one of Check/Quota/Report.
type aggregatorStats struct {
	totalCalled  atomic.Int64
	sendInFlight atomic.Int64
	sendViaFlush atomic.Int64
}

// Statistics is the Client Facade's Statistics component: atomic
// counters of calls and transport dispatches, split by how the
// dispatch was triggered — a direct response to a cache miss
// (SendInFlight) versus an eviction-triggered dispatch (SendViaFlush),
// whether the eviction came from the periodic timer, from capacity
// pressure during a call, or from Shutdown.
type Statistics struct {
	check  aggregatorStats
	quota  aggregatorStats
	report aggregatorStats

	reportOperationsSent atomic.Int64
}

func newStatistics() *Statistics {
	return &Statistics{}
}

// Snapshot is a point-in-time copy of Statistics suitable for
// returning from GetStatistics without exposing the atomics directly.
type Snapshot struct {
	CheckTotalCalled  int64
	CheckSendInFlight int64
	CheckSendViaFlush int64

	QuotaTotalCalled  int64
	QuotaSendInFlight int64
	QuotaSendViaFlush int64

	ReportTotalCalled  int64
	ReportSendInFlight int64
	ReportSendViaFlush int64

	ReportOperationsSent int64
}

func (s *Statistics) Snapshot() Snapshot {
	return Snapshot{
		CheckTotalCalled:  s.check.totalCalled.Load(),
		CheckSendInFlight: s.check.sendInFlight.Load(),
		CheckSendViaFlush: s.check.sendViaFlush.Load(),

		QuotaTotalCalled:  s.quota.totalCalled.Load(),
		QuotaSendInFlight: s.quota.sendInFlight.Load(),
		QuotaSendViaFlush: s.quota.sendViaFlush.Load(),

		ReportTotalCalled:  s.report.totalCalled.Load(),
		ReportSendInFlight: s.report.sendInFlight.Load(),
		ReportSendViaFlush: s.report.sendViaFlush.Load(),

		ReportOperationsSent: s.reportOperationsSent.Load(),
	}
}
