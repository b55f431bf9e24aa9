// Package status provides a canonical status type for the aggregation
// engine, mirroring the gRPC status-code model so that errors surfaced
// to callers and errors arriving from the transport share one vocabulary.
package status

import "fmt"

// Code is a canonical outcome code. The names and relative ordering follow
// google.golang.org/grpc/codes so a transport built on gRPC can pass codes
// straight through without translation.
type Code int

const (
	OK Code = iota
	Canceled
	Unknown
	InvalidArgument
	DeadlineExceeded
	NotFound
	AlreadyExists
	PermissionDenied
	ResourceExhausted
	FailedPrecondition
	Aborted
	OutOfRange
	Unimplemented
	Internal
	Unavailable
	DataLoss
	Unauthenticated
)

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case Canceled:
		return "canceled"
	case InvalidArgument:
		return "invalid_argument"
	case DeadlineExceeded:
		return "deadline_exceeded"
	case NotFound:
		return "not_found"
	case AlreadyExists:
		return "already_exists"
	case PermissionDenied:
		return "permission_denied"
	case ResourceExhausted:
		return "resource_exhausted"
	case FailedPrecondition:
		return "failed_precondition"
	case Aborted:
		return "aborted"
	case OutOfRange:
		return "out_of_range"
	case Unimplemented:
		return "unimplemented"
	case Internal:
		return "internal"
	case Unavailable:
		return "unavailable"
	case DataLoss:
		return "data_loss"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Status is the error type threaded through every aggregator and the
// client facade. A nil *Status means OK; callers test for that, not for
// Code() == OK, since a concrete Status with Code OK is legal too (e.g.
// the fail-open translation of a *_UNAVAILABLE quota reject).
type Status struct {
	code    Code
	message string
}

// New builds a Status. A Code of OK with a non-empty message is valid
// (used by the fail-open quota translation).
func New(code Code, message string) *Status {
	return &Status{code: code, message: message}
}

// Newf builds a Status with a formatted message.
func Newf(code Code, format string, args ...any) *Status {
	return New(code, fmt.Sprintf(format, args...))
}

func (s *Status) Code() Code {
	if s == nil {
		return OK
	}
	return s.code
}

func (s *Status) Message() string {
	if s == nil {
		return ""
	}
	return s.message
}

// IsOK reports whether s represents success. A nil Status is OK.
func (s *Status) IsOK() bool {
	return s == nil || s.code == OK
}

func (s *Status) Error() string {
	if s == nil {
		return "ok"
	}
	return fmt.Sprintf("%s: %s", s.code, s.message)
}

// ErrNotFound is the internal CacheMiss sentinel. It signals the facade
// that a cache lookup missed and the caller must dispatch to the
// transport; it must never escape to the library's external caller.
var ErrNotFound = New(NotFound, "cache miss")

// ErrInvalidArgument helpers build ValidationError-kind statuses.
func ErrInvalidArgument(format string, args ...any) *Status {
	return Newf(InvalidArgument, format, args...)
}

// FromError wraps a transport-level error as an Internal status, for
// transports that hand back a plain error rather than a *Status.
func FromError(err error) *Status {
	if err == nil {
		return nil
	}
	if s, ok := err.(*Status); ok {
		return s
	}
	return New(Internal, err.Error())
}
