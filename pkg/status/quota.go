package status

import (
	"fmt"

	"github.com/cloudendpoints/service-control-client-go/pkg/scpb"
)

// TranslateQuotaError maps the first entry of an AllocateQuotaResponse's
// AllocateErrors into a user-visible Status, per the fixed code table.
// serviceName is interpolated into the messages that name the service.
func TranslateQuotaError(serviceName string, errs []scpb.QuotaError) *Status {
	if len(errs) == 0 {
		return nil
	}
	first := errs[0]

	switch first.Code {
	case scpb.ResourceExhausted:
		return New(PermissionDenied, "Quota allocation failed")
	case scpb.ProjectSuspended:
		return New(PermissionDenied, "Project is suspended")
	case scpb.IPAddressBlocked:
		return New(PermissionDenied, "IP address is blocked")
	case scpb.RefererBlocked:
		return New(PermissionDenied, "Referer is blocked")
	case scpb.ClientAppBlocked:
		return New(PermissionDenied, "Client application is blocked")
	case scpb.ServiceNotEnabled:
		return Newf(PermissionDenied, "Service %s is not enabled for the project", serviceName)
	case scpb.BillingNotActive:
		return Newf(PermissionDenied, "Billing is not active for service %s", serviceName)
	case scpb.ProjectDeleted:
		return New(InvalidArgument, "Project has been deleted")
	case scpb.ProjectInvalid:
		return New(InvalidArgument, "Project is invalid")
	case scpb.APIKeyInvalid:
		return New(InvalidArgument, "API key is invalid")
	case scpb.APIKeyExpired:
		return New(InvalidArgument, "API key has expired")
	case scpb.ProjectStatusUnavailable, scpb.ServiceStatusUnavailable, scpb.BillingStatusUnavailable:
		// Fail open: a transient control-plane lookup failure must not
		// block the caller's request.
		return New(OK, "")
	default:
		return New(Internal, fmt.Sprintf("unknown quota error code %d: %s", first.Code, first.Description))
	}
}
