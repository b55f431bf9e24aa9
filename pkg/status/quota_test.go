package status

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudendpoints/service-control-client-go/pkg/scpb"
)

func TestTranslateQuotaError_EmptyIsNilOK(t *testing.T) {
	require.True(t, TranslateQuotaError("svc", nil).IsOK())
}

func TestTranslateQuotaError_ResourceExhaustedIsPermissionDenied(t *testing.T) {
	st := TranslateQuotaError("svc", []scpb.QuotaError{{Code: scpb.ResourceExhausted}})
	require.Equal(t, PermissionDenied, st.Code())
}

func TestTranslateQuotaError_ProjectDeletedIsInvalidArgument(t *testing.T) {
	st := TranslateQuotaError("svc", []scpb.QuotaError{{Code: scpb.ProjectDeleted}})
	require.Equal(t, InvalidArgument, st.Code())
}

func TestTranslateQuotaError_StatusUnavailableFailsOpen(t *testing.T) {
	st := TranslateQuotaError("svc", []scpb.QuotaError{{Code: scpb.ServiceStatusUnavailable}})
	require.True(t, st.IsOK())
	require.Equal(t, OK, st.Code())
}

func TestTranslateQuotaError_UnknownCodeIsInternal(t *testing.T) {
	st := TranslateQuotaError("svc", []scpb.QuotaError{{Code: scpb.QuotaErrorCode(999), Description: "mystery"}})
	require.Equal(t, Internal, st.Code())
}

func TestTranslateQuotaError_OnlyFirstErrorIsTranslated(t *testing.T) {
	st := TranslateQuotaError("svc", []scpb.QuotaError{
		{Code: scpb.ResourceExhausted},
		{Code: scpb.ProjectDeleted},
	})
	require.Equal(t, PermissionDenied, st.Code())
}
