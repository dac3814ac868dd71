package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_HTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindUnauthenticated:     http.StatusUnauthorized,
		KindForbidden:           http.StatusForbidden,
		KindAlreadyCheckedIn:    http.StatusConflict,
		KindAlreadyCheckedOut:   http.StatusConflict,
		KindNotCheckedIn:        http.StatusBadRequest,
		KindInvalidConfirmation: http.StatusBadRequest,
		KindInvalidInput:        http.StatusBadRequest,
		KindNotFound:            http.StatusNotFound,
		KindUpstreamFailure:     http.StatusInternalServerError,
		KindUnexpected:          http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, kind.HTTPStatus(), kind.Code())
	}
}

func TestErrorsIs_MatchesByKind(t *testing.T) {
	err := fmt.Errorf("check in: %w", New(KindAlreadyCheckedIn, "already checked in on %s", "2026-10-19"))

	assert.ErrorIs(t, err, ErrAlreadyCheckedIn)
	assert.NotErrorIs(t, err, ErrAlreadyCheckedOut)
	assert.Equal(t, KindAlreadyCheckedIn, KindOf(err))
}

func TestUpstream_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream(cause, "failed to save attendance")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, KindUpstreamFailure, KindOf(err))
	assert.False(t, IsDomain(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsDomain(t *testing.T) {
	assert.True(t, IsDomain(Forbidden("no")))
	assert.False(t, IsDomain(errors.New("boom")))
}

func TestWithDetails(t *testing.T) {
	err := Forbidden("denied").WithDetails(map[string]any{"role": "USER"})
	err.WithDetails(map[string]any{"allowedRoles": []string{"ADMIN", "EMPLOYEE"}})

	assert.Equal(t, "USER", err.Details["role"])
	assert.Len(t, err.Details, 2)
}
