package actor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecertify/pkg/domain"
	"ecertify/pkg/requestcontext"
)

func serve(t *testing.T, header string) (*httptest.ResponseRecorder, domain.ActorID) {
	t.Helper()
	var captured domain.ActorID
	handler := RequireActor(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = requestcontext.Actor(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/linkage", nil)
	if header != "" {
		req.Header.Set(Header, header)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, captured
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestRequireActor(t *testing.T) {
	t.Run("missing header is 401", func(t *testing.T) {
		w, _ := serve(t, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "missing_actor", errorCode(t, w))
	})

	t.Run("malformed address is 400", func(t *testing.T) {
		w, _ := serve(t, "alice")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid_input", errorCode(t, w))
	})

	t.Run("bad checksum is 400", func(t *testing.T) {
		w, _ := serve(t, "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("valid address reaches the handler", func(t *testing.T) {
		w, captured := serve(t, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", captured.String())
	})
}
