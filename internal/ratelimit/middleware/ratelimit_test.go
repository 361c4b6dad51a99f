package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecertify/internal/ratelimit/models"
	"ecertify/pkg/domain"
	dErrors "ecertify/pkg/domain-errors"
	"ecertify/pkg/requestcontext"
	"ecertify/pkg/testutil"
)

type stubLimiter struct {
	result *models.Result
	err    error
	calls  int
}

func (s *stubLimiter) CheckActor(context.Context, domain.ActorID) (*models.Result, error) {
	s.calls++
	return s.result, s.err
}

func serve(t *testing.T, limiter RateLimiter, actor domain.ActorID) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/grants", nil)
	if !actor.IsZero() {
		req = req.WithContext(requestcontext.WithActor(req.Context(), actor))
	}
	w := httptest.NewRecorder()
	New(limiter, nil).PerActor()(next).ServeHTTP(w, req)
	return w, reached
}

func TestPerActor(t *testing.T) {
	reset := time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC)

	t.Run("allowed requests carry budget headers", func(t *testing.T) {
		limiter := &stubLimiter{result: &models.Result{Allowed: true, Limit: 10, Remaining: 9, ResetAt: reset}}
		w, reached := serve(t, limiter, testutil.Actors.Alice)

		assert.True(t, reached)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "9", w.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "1704067260", w.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("exhausted budget is 429 rate_limited", func(t *testing.T) {
		limiter := &stubLimiter{result: &models.Result{Allowed: false, Limit: 10, ResetAt: reset, RetryAfter: 42}}
		w, reached := serve(t, limiter, testutil.Actors.Alice)

		assert.False(t, reached)
		require.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "42", w.Header().Get("Retry-After"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, string(dErrors.CodeRateLimited), body["error"])
	})

	t.Run("limiter failure fails open", func(t *testing.T) {
		limiter := &stubLimiter{err: errors.New("redis down")}
		w, reached := serve(t, limiter, testutil.Actors.Alice)

		assert.True(t, reached)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("requests without a caller are not counted", func(t *testing.T) {
		limiter := &stubLimiter{}
		_, reached := serve(t, limiter, domain.ZeroActor)

		assert.True(t, reached)
		assert.Zero(t, limiter.calls)
	})
}
