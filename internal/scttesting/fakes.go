// Package scttesting holds fakes for the engine's external
// collaborators, shared across the aggregator-cache and facade test
// suites so scenario tests don't each reinvent a transport double.
package scttesting

import (
	"context"
	"sync"

	"github.com/cloudendpoints/service-control-client-go/pkg/scpb"
	"github.com/cloudendpoints/service-control-client-go/pkg/status"
	"github.com/cloudendpoints/service-control-client-go/pkg/transport"
)

// FakeTransport records every dispatched request and completes calls
// either synchronously with a scripted response, or not at all until
// the test calls one of its Complete* methods — letting tests model
// an in-flight RTT explicitly.
type FakeTransport struct {
	mu sync.Mutex

	CheckRequests  []*scpb.CheckRequest
	QuotaRequests  []*scpb.AllocateQuotaRequest
	ReportRequests []*scpb.ReportRequest

	// CheckResponse, QuotaResponse, and ReportResponse are returned
	// synchronously from Check/AllocateQuota/Report when non-nil; set
	// CheckErr etc. to complete with a transport failure instead.
	CheckResponse *scpb.CheckResponse
	CheckErr      *status.Status
	QuotaResponse *scpb.AllocateQuotaResponse
	QuotaErr      *status.Status
	ReportErr     *status.Status

	// Async, when true, defers completion until the test calls the
	// corresponding Complete* method rather than completing inline.
	Async bool

	pendingCheck  []func()
	pendingQuota  []func()
	pendingReport []func()
}

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{}
}

func (f *FakeTransport) Check(_ context.Context, req *scpb.CheckRequest, resp *scpb.CheckResponse, done transport.DoneFunc) {
	f.mu.Lock()
	f.CheckRequests = append(f.CheckRequests, req)
	complete := func() {
		if f.CheckResponse != nil {
			*resp = *f.CheckResponse
		}
		done(f.CheckErr)
	}
	if f.Async {
		f.pendingCheck = append(f.pendingCheck, complete)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	complete()
}

func (f *FakeTransport) AllocateQuota(_ context.Context, req *scpb.AllocateQuotaRequest, resp *scpb.AllocateQuotaResponse, done transport.DoneFunc) {
	f.mu.Lock()
	f.QuotaRequests = append(f.QuotaRequests, req)
	complete := func() {
		if f.QuotaResponse != nil {
			*resp = *f.QuotaResponse
		}
		done(f.QuotaErr)
	}
	if f.Async {
		f.pendingQuota = append(f.pendingQuota, complete)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	complete()
}

func (f *FakeTransport) Report(_ context.Context, req *scpb.ReportRequest, _ *scpb.ReportResponse, done transport.DoneFunc) {
	f.mu.Lock()
	f.ReportRequests = append(f.ReportRequests, req)
	complete := func() { done(f.ReportErr) }
	if f.Async {
		f.pendingReport = append(f.pendingReport, complete)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	complete()
}

// CompleteNextCheck runs the oldest not-yet-completed Check call's
// done callback.
func (f *FakeTransport) CompleteNextCheck() {
	f.mu.Lock()
	if len(f.pendingCheck) == 0 {
		f.mu.Unlock()
		return
	}
	fn := f.pendingCheck[0]
	f.pendingCheck = f.pendingCheck[1:]
	f.mu.Unlock()
	fn()
}

func (f *FakeTransport) CompleteNextQuota() {
	f.mu.Lock()
	if len(f.pendingQuota) == 0 {
		f.mu.Unlock()
		return
	}
	fn := f.pendingQuota[0]
	f.pendingQuota = f.pendingQuota[1:]
	f.mu.Unlock()
	fn()
}

func (f *FakeTransport) CheckCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.CheckRequests)
}

func (f *FakeTransport) QuotaCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.QuotaRequests)
}

func (f *FakeTransport) ReportCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ReportRequests)
}

// FakeTimer is a manually-driven transport.PeriodicTimer: tests call
// Fire to invoke every registered callback instead of waiting on a
// real clock.
type FakeTimer struct {
	mu        sync.Mutex
	callbacks []func()
	intervals []int64
	stopped   []bool
}

func NewFakeTimer() *FakeTimer {
	return &FakeTimer{}
}

type fakeTimerHandle struct {
	timer *FakeTimer
	index int
}

func (h *fakeTimerHandle) Stop() {
	h.timer.mu.Lock()
	defer h.timer.mu.Unlock()
	h.timer.stopped[h.index] = true
}

func (t *FakeTimer) Start(interval int64, callback func()) transport.TimerHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.callbacks = append(t.callbacks, callback)
	t.intervals = append(t.intervals, interval)
	t.stopped = append(t.stopped, false)
	return &fakeTimerHandle{timer: t, index: len(t.callbacks) - 1}
}

// Fire invokes every callback that hasn't been stopped.
func (t *FakeTimer) Fire() {
	t.mu.Lock()
	cbs := make([]func(), 0, len(t.callbacks))
	for i, cb := range t.callbacks {
		if !t.stopped[i] {
			cbs = append(cbs, cb)
		}
	}
	t.mu.Unlock()

	for _, cb := range cbs {
		cb()
	}
}

// Intervals returns the interval each Start call was given, in call order.
func (t *FakeTimer) Intervals() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int64(nil), t.intervals...)
}
