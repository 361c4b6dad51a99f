package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "ecertify/pkg/domain-errors"
	"ecertify/pkg/requestcontext"
	"ecertify/pkg/testutil"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		code   dErrors.Code
		status int
	}{
		{dErrors.CodeInvalidInput, http.StatusBadRequest},
		{dErrors.CodeSelfGrant, http.StatusBadRequest},
		{dErrors.CodeUnauthorized, http.StatusForbidden},
		{dErrors.CodeOnlyStudent, http.StatusForbidden},
		{dErrors.CodeOutOfRange, http.StatusNotFound},
		{dErrors.CodeAlreadyRegistered, http.StatusConflict},
		{dErrors.CodeAlreadyLinked, http.StatusConflict},
		{dErrors.CodeAlreadyVerified, http.StatusConflict},
		{dErrors.CodeSameInstitute, http.StatusConflict},
		{dErrors.CodeNotLinked, http.StatusConflict},
		{dErrors.CodeNoPendingRequest, http.StatusConflict},
		{dErrors.CodeNotRegistered, http.StatusUnprocessableEntity},
		{dErrors.CodeInvalidTarget, http.StatusUnprocessableEntity},
		{dErrors.CodeRateLimited, http.StatusTooManyRequests},
		{dErrors.CodeTimeout, http.StatusGatewayTimeout},
		{dErrors.CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, dErrors.New(tt.code, "details"))
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, string(tt.code), decodeError(t, w)["error"])
		})
	}
}

func TestWriteError_HidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, dErrors.Wrap(errors.New("pq: connection refused"), dErrors.CodeInternal, "failed to store profile"))
	resp := decodeError(t, w)
	assert.Equal(t, "internal_error", resp["error"])
	assert.NotContains(t, resp, "error_description")

	w = httptest.NewRecorder()
	WriteError(w, errors.New("plain"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequireActor(t *testing.T) {
	_, err := RequireActor(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))

	ctx := requestcontext.WithActor(context.Background(), testutil.Actors.Alice)
	actor, err := RequireActor(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, testutil.Actors.Alice, actor)
}
