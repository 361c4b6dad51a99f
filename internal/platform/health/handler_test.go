package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func get(t *testing.T, router http.Handler, path string, out any) int {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, json.NewDecoder(w.Body).Decode(out))
	return w.Code
}

func TestLivenessAndStatus(t *testing.T) {
	router := newRouter(New("test"))

	var live LivenessResponse
	assert.Equal(t, http.StatusOK, get(t, router, "/health/live", &live))
	assert.Equal(t, "alive", live.Status)

	var status StatusResponse
	assert.Equal(t, http.StatusOK, get(t, router, "/health", &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "test", status.Environment)
	assert.Equal(t, Version, status.Version)
}

func TestReadiness(t *testing.T) {
	t.Run("ready when every check passes", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("ledger", func(context.Context) error { return nil })
		router := newRouter(h)

		var resp ReadinessResponse
		assert.Equal(t, http.StatusOK, get(t, router, "/health/ready", &resp))
		assert.Equal(t, "ready", resp.Status)
		assert.Equal(t, map[string]string{"ledger": "up"}, resp.Checks)
	})

	t.Run("not ready when a dependency is down", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("ledger", func(context.Context) error { return nil })
		h.RegisterCheck("postgres", func(context.Context) error { return errors.New("connection refused") })
		router := newRouter(h)

		var resp ReadinessResponse
		assert.Equal(t, http.StatusServiceUnavailable, get(t, router, "/health/ready", &resp))
		assert.Equal(t, "not_ready", resp.Status)
		assert.Equal(t, "down: connection refused", resp.Checks["postgres"])
		assert.Equal(t, "up", resp.Checks["ledger"])
	})

	t.Run("checks run under a deadline", func(t *testing.T) {
		h := New("test")
		var hadDeadline bool
		h.RegisterCheck("redis", func(ctx context.Context) error {
			_, hadDeadline = ctx.Deadline()
			return nil
		})

		var resp ReadinessResponse
		get(t, newRouter(h), "/health/ready", &resp)
		assert.True(t, hadDeadline)
	})
}
