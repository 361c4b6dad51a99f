// Package requesttime fixes "now" once per request. The ledger reads it
// through requestcontext.Now, so grant expiry and event timestamps within one
// request agree.
package requesttime

import (
	"net/http"
	"time"

	"ecertify/pkg/requestcontext"
)

// Middleware stamps the request start time on the context.
func Middleware(next http.Handler) http.Handler {
	return MiddlewareWithClock(time.Now)(next)
}

// MiddlewareWithClock is Middleware with an injectable clock.
func MiddlewareWithClock(clock func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), clock())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
