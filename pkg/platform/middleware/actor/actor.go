// Package actor resolves the calling account. Authentication happens
// upstream (a wallet-signing gateway); by the time a request reaches the
// ledger, X-Actor-Address carries the verified caller address.
package actor

import (
	"log/slog"
	"net/http"

	"ecertify/pkg/domain"
	dErrors "ecertify/pkg/domain-errors"
	"ecertify/pkg/platform/httputil"
	"ecertify/pkg/requestcontext"
)

// Header carries the caller's 0x address.
const Header = "X-Actor-Address"

// RequireActor rejects requests without a well-formed caller address and puts
// the parsed address on the context.
func RequireActor(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw := r.Header.Get(Header)
			if raw == "" {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{
					Error:       "missing_actor",
					Description: Header + " header is required",
				})
				return
			}
			id, err := domain.ParseActorID(raw)
			if err != nil {
				if logger != nil {
					logger.WarnContext(ctx, "rejected malformed actor address",
						"error", err,
						"request_id", requestcontext.RequestID(ctx),
					)
				}
				httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, Header+" is not a valid address"))
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, id)))
		})
	}
}
