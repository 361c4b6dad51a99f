package request

import (
	"net/http"

	"github.com/google/uuid"

	"ecertify/pkg/requestcontext"
)

const (
	HeaderRequestID    = "X-Request-ID"
	MaxRequestIDLength = 128
)

// RequestID tags the request context with an ID and echoes it back. A client
// ID is kept only if it is short and made of [A-Za-z0-9._-], so it is safe to
// log verbatim.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if !isValidRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(requestcontext.WithRequestID(r.Context(), id)))
	})
}

func isValidRequestID(id string) bool {
	if id == "" || len(id) > MaxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		switch c := id[i]; {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		case c == '.', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}
