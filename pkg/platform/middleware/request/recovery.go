// Package request holds the HTTP middleware every route runs behind.
package request

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	dErrors "ecertify/pkg/domain-errors"
	"ecertify/pkg/platform/httputil"
	"ecertify/pkg/requestcontext"
)

// Recovery answers a panicking handler with a 500 and logs the stack.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				ctx := r.Context()
				logger.ErrorContext(ctx, "handler panicked",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
					"stack", string(debug.Stack()),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "internal error"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
