// Package transport defines the external collaborators the aggregation
// engine dispatches to: the three wire calls and the periodic timer.
// The engine only ever consumes these interfaces; concrete
// implementations (grpctransport, or test fakes) live elsewhere.
package transport

import (
	"context"

	"github.com/cloudendpoints/service-control-client-go/pkg/scpb"
	"github.com/cloudendpoints/service-control-client-go/pkg/status"
)

// DoneFunc is invoked exactly once when a transport call completes.
type DoneFunc func(*status.Status)

// CheckTransport issues a Check call. The request is valid only for
// the duration of the call; resp is populated in place and must remain
// addressable until done is invoked, which happens exactly once.
type CheckTransport interface {
	Check(ctx context.Context, req *scpb.CheckRequest, resp *scpb.CheckResponse, done DoneFunc)
}

// QuotaTransport issues an AllocateQuota call with the same lifetime
// contract as CheckTransport.
type QuotaTransport interface {
	AllocateQuota(ctx context.Context, req *scpb.AllocateQuotaRequest, resp *scpb.AllocateQuotaResponse, done DoneFunc)
}

// ReportTransport issues a Report call with the same lifetime contract
// as CheckTransport.
type ReportTransport interface {
	Report(ctx context.Context, req *scpb.ReportRequest, resp *scpb.ReportResponse, done DoneFunc)
}

// CheckFunc, QuotaFunc, and ReportFunc adapt a plain function to the
// corresponding *Transport interface, mirroring http.HandlerFunc, for
// the common case of a per-call transport override that doesn't need
// any state of its own.
type CheckFunc func(ctx context.Context, req *scpb.CheckRequest, resp *scpb.CheckResponse, done DoneFunc)

func (f CheckFunc) Check(ctx context.Context, req *scpb.CheckRequest, resp *scpb.CheckResponse, done DoneFunc) {
	f(ctx, req, resp, done)
}

type QuotaFunc func(ctx context.Context, req *scpb.AllocateQuotaRequest, resp *scpb.AllocateQuotaResponse, done DoneFunc)

func (f QuotaFunc) AllocateQuota(ctx context.Context, req *scpb.AllocateQuotaRequest, resp *scpb.AllocateQuotaResponse, done DoneFunc) {
	f(ctx, req, resp, done)
}

type ReportFunc func(ctx context.Context, req *scpb.ReportRequest, resp *scpb.ReportResponse, done DoneFunc)

func (f ReportFunc) Report(ctx context.Context, req *scpb.ReportRequest, resp *scpb.ReportResponse, done DoneFunc) {
	f(ctx, req, resp, done)
}

// TimerHandle is returned by PeriodicTimer.Start; Stop halts further
// callback invocations.
type TimerHandle interface {
	Stop()
}

// PeriodicTimer is the abstract scheduling collaborator the facade
// uses to drive Flush. Callback is invoked approximately every
// interval until the returned handle's Stop is called.
type PeriodicTimer interface {
	Start(interval int64, callback func()) TimerHandle
}
