package request

import (
	"mime"
	"net/http"

	"ecertify/pkg/platform/httputil"
)

// ContentTypeJSON refuses a write whose declared body type is not JSON. A
// missing Content-Type is let through; the decoder rejects non-JSON anyway.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hasBody(r.Method) && !declaresJSON(r.Header.Get("Content-Type")) {
			httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.ErrorResponse{
				Error:       "invalid_content_type",
				Description: "Content-Type must be application/json",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

func declaresJSON(ct string) bool {
	if ct == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	return err == nil && mediaType == "application/json"
}
