package status

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatus_NilIsOK(t *testing.T) {
	var s *Status
	require.True(t, s.IsOK())
	require.Equal(t, OK, s.Code())
	require.Equal(t, "", s.Message())
}

func TestStatus_ConcreteOKIsAlsoOK(t *testing.T) {
	s := New(OK, "fail-open")
	require.True(t, s.IsOK())
	require.Equal(t, "fail-open", s.Message())
}

func TestStatus_NonOKIsNotOK(t *testing.T) {
	s := ErrInvalidArgument("bad %s", "input")
	require.False(t, s.IsOK())
	require.Equal(t, InvalidArgument, s.Code())
	require.Equal(t, "bad input", s.Message())
}

func TestFromError_NilIsOK(t *testing.T) {
	require.True(t, FromError(nil).IsOK())
}

func TestFromError_PassesThroughStatus(t *testing.T) {
	orig := New(Unavailable, "down")
	require.Same(t, orig, FromError(orig))
}

func TestFromError_WrapsPlainErrorAsInternal(t *testing.T) {
	st := FromError(errors.New("boom"))
	require.Equal(t, Internal, st.Code())
	require.Equal(t, "boom", st.Message())
}
