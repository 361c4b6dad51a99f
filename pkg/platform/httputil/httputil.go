// Package httputil writes JSON responses and maps ledger error codes onto
// HTTP statuses.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"ecertify/pkg/domain"
	dErrors "ecertify/pkg/domain-errors"
	"ecertify/pkg/requestcontext"
)

// ErrorResponse is the body of every error answer. Error is a stable code
// clients can branch on.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status is already on the wire; an encode failure cannot be reported.
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError answers with the status for err's domain code. Internal errors,
// and errors without a code, carry no description.
func WriteError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: string(dErrors.CodeInternal)}
	var de *dErrors.Error
	if errors.As(err, &de) {
		resp.Error = string(de.Code)
		if de.Code != dErrors.CodeInternal {
			resp.Description = de.Message
		}
	}
	WriteJSON(w, DomainCodeToHTTPStatus(dErrors.Code(resp.Error)), resp)
}

// WritePayloadTooLarge answers 413. The request never reaches the ledger, so
// there is no domain code for it.
func WritePayloadTooLarge(w http.ResponseWriter, limit int64) {
	WriteJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
		Error:       "request_too_large",
		Description: "request body exceeds " + strconv.FormatInt(limit, 10) + " bytes",
	})
}

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeBadRequest:   http.StatusBadRequest,
	dErrors.CodeInvalidInput: http.StatusBadRequest,
	dErrors.CodeSelfGrant:    http.StatusBadRequest,

	dErrors.CodeUnauthorized: http.StatusForbidden,
	dErrors.CodeOnlyStudent:  http.StatusForbidden,

	dErrors.CodeNotFound:   http.StatusNotFound,
	dErrors.CodeOutOfRange: http.StatusNotFound,

	dErrors.CodeAlreadyRegistered: http.StatusConflict,
	dErrors.CodeAlreadyLinked:     http.StatusConflict,
	dErrors.CodeAlreadyVerified:   http.StatusConflict,
	dErrors.CodeSameInstitute:     http.StatusConflict,
	dErrors.CodeNotLinked:         http.StatusConflict,
	dErrors.CodeNoPendingRequest:  http.StatusConflict,

	dErrors.CodeNotRegistered: http.StatusUnprocessableEntity,
	dErrors.CodeInvalidTarget: http.StatusUnprocessableEntity,

	dErrors.CodeRateLimited: http.StatusTooManyRequests,
	dErrors.CodeTimeout:     http.StatusGatewayTimeout,
}

// DomainCodeToHTTPStatus falls back to 500 for internal and unknown codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// RequireActor reads the caller the actor middleware stored on ctx. A zero
// caller here is a wiring fault, not a client error.
func RequireActor(ctx context.Context, logger *slog.Logger) (domain.ActorID, error) {
	actor := requestcontext.Actor(ctx)
	if !actor.IsZero() {
		return actor, nil
	}
	if logger != nil {
		logger.ErrorContext(ctx, "route reached without a caller on the context",
			"request_id", requestcontext.RequestID(ctx))
	}
	return domain.ZeroActor, dErrors.New(dErrors.CodeInternal, "caller identity context error")
}
