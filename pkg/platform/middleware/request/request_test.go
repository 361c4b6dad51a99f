package request

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecertify/pkg/requestcontext"
)

func TestRequestID(t *testing.T) {
	capture := func(id string) (captured string, header string) {
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = requestcontext.RequestID(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/v1/events", nil)
		if id != "" {
			req.Header.Set("X-Request-ID", id)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return captured, w.Header().Get("X-Request-ID")
	}

	t.Run("generates a UUID when absent", func(t *testing.T) {
		captured, header := capture("")
		assert.Len(t, captured, 36)
		assert.Equal(t, captured, header)
	})

	t.Run("reuses a valid client ID", func(t *testing.T) {
		captured, header := capture("trace.span_1234")
		assert.Equal(t, "trace.span_1234", captured)
		assert.Equal(t, "trace.span_1234", header)
	})

	t.Run("replaces unsafe client IDs", func(t *testing.T) {
		for _, id := range []string{
			strings.Repeat("a", MaxRequestIDLength+1),
			"valid\ninjected-log-line",
			"request id",
			`request"id`,
			"request;id",
		} {
			captured, _ := capture(id)
			assert.NotEqual(t, id, captured)
			assert.Len(t, captured, 36)
		}
	})
}

func TestIsValidRequestID(t *testing.T) {
	assert.True(t, isValidRequestID("ABC-123"))
	assert.True(t, isValidRequestID(strings.Repeat("x", MaxRequestIDLength)))
	assert.False(t, isValidRequestID(""))
	assert.False(t, isValidRequestID("has\ttab"))
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	handler := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal_error", body["error"])
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/profiles", nil)
	req.Header.Set("X-Actor-Address", "0x00000000000000000000000000000000000000a1")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Contains(t, buf.String(), `"status":201`)
	assert.Contains(t, buf.String(), `"path":"/v1/profiles"`)
	assert.Contains(t, buf.String(), `"client_network":"192.0.2.0/24"`, "only the client network is logged")

	buf.Reset()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Empty(t, buf.String(), "healthy probes are not logged")

	failing := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	failing.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Contains(t, buf.String(), `"status":503`, "failing probes are logged")
}

func TestContentTypeJSON(t *testing.T) {
	handler := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		method, contentType string
		status              int
	}{
		{http.MethodPost, "application/json", http.StatusNoContent},
		{http.MethodPost, "application/json; charset=utf-8", http.StatusNoContent},
		{http.MethodPost, "", http.StatusNoContent},
		{http.MethodPost, "text/plain", http.StatusUnsupportedMediaType},
		{http.MethodGet, "text/plain", http.StatusNoContent},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "/", nil)
		if tt.contentType != "" {
			req.Header.Set("Content-Type", tt.contentType)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, tt.status, w.Code, "%s %q", tt.method, tt.contentType)
	}
}

func TestLatencyMiddleware_UsesRoutePattern(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(LatencyMiddleware(m))
	r.Get("/v1/students/{student}/certificates", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/students/0xabc/certificates", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/students/0xdef/certificates", nil))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	// One series for the pattern, one for "unmatched".
	assert.Equal(t, 2, testutil.CollectAndCount(m.Latency))
}

func TestLatencyMiddleware_NilMetrics(t *testing.T) {
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	assert.NotNil(t, LatencyMiddleware(nil)(next))
}
