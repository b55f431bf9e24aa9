// Package grpctransport is the default transport the Client Facade
// builds when ClientOptions names a service_control_grpc_server
// address instead of supplying explicit per-call transports. It
// satisfies spec.md's allowance for exactly one concrete wire
// implementation: everything else about the transport is a consumer
// collaborator the core never constructs itself.
package grpctransport

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	insecurecreds "google.golang.org/grpc/credentials/insecure"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/cloudendpoints/service-control-client-go/internal/logger"
	"github.com/cloudendpoints/service-control-client-go/pkg/scpb"
	"github.com/cloudendpoints/service-control-client-go/pkg/status"
	"github.com/cloudendpoints/service-control-client-go/pkg/transport"
)

const serviceName = "google.api.servicecontrol.v1.ServiceController"

// Client is a gRPC-backed implementation of the three Transport
// interfaces. Unavailable responses are retried with exponential
// backoff before done is invoked, since spec.md §5 places all
// timeout/retry responsibility on the transport, never the core.
type Client struct {
	conn       *grpc.ClientConn
	maxRetries uint64
}

// Dial connects to target and returns a Client. insecure selects
// plaintext transport credentials, appropriate for talking to a local
// sidecar; production deployments should pass a *Client built around
// a ClientConn dialed with real TLS credentials instead of using Dial.
func Dial(target string, insecure bool) (*Client, error) {
	var opts []grpc.DialOption
	if insecure {
		opts = append(opts, grpc.WithTransportCredentials(insecurecreds.NewCredentials()))
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// New wraps an already-dialed connection.
func New(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn, maxRetries: 3}
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries)
	return backoff.Retry(func() error {
		err := c.conn.Invoke(ctx, method, req, resp, grpc.CallContentSubtype(codecName))
		if err == nil {
			return nil
		}
		if grpcstatus.Code(err) == grpccodes.Unavailable {
			logger.Warn("grpctransport: retrying after unavailable", "method", method)
			return err
		}
		return backoff.Permanent(err)
	}, b)
}

func (c *Client) Check(ctx context.Context, req *scpb.CheckRequest, resp *scpb.CheckResponse, done transport.DoneFunc) {
	err := c.invoke(ctx, "/"+serviceName+"/Check", req, resp)
	done(toStatus(err))
}

func (c *Client) AllocateQuota(ctx context.Context, req *scpb.AllocateQuotaRequest, resp *scpb.AllocateQuotaResponse, done transport.DoneFunc) {
	err := c.invoke(ctx, "/"+serviceName+"/AllocateQuota", req, resp)
	done(toStatus(err))
}

func (c *Client) Report(ctx context.Context, req *scpb.ReportRequest, resp *scpb.ReportResponse, done transport.DoneFunc) {
	err := c.invoke(ctx, "/"+serviceName+"/Report", req, resp)
	done(toStatus(err))
}

func toStatus(err error) *status.Status {
	if err == nil {
		return nil
	}
	s := grpcstatus.Convert(err)
	return status.New(status.Code(int(s.Code())), s.Message())
}
