package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "ecertify/pkg/domain-errors"
	"ecertify/pkg/requestcontext"
)

// Normalizable requests tidy their own fields (trimming, case) before
// validation.
type Normalizable interface {
	Normalize()
}

// Validatable requests check their own shape. Ledger rules stay in the ledger.
type Validatable interface {
	Validate() error
}

// PrepareRequest runs Normalize then Validate on req, skipping whichever it
// does not implement.
func PrepareRequest(req any) error {
	if n, ok := req.(Normalizable); ok {
		n.Normalize()
	}
	v, ok := req.(Validatable)
	if !ok {
		return nil
	}
	return v.Validate()
}

// DecodeJSON reads one JSON value from the body into a new T. Failures are
// answered here: 413 when BodyLimit cut the body short, 400 otherwise.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	req := new(T)
	err := json.NewDecoder(r.Body).Decode(req)
	if err == nil {
		return req, true
	}

	warn(r, logger, "failed to decode request body", err)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		WritePayloadTooLarge(w, tooLarge.Limit)
		return nil, false
	}
	WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
	return nil, false
}

// DecodeAndPrepare is DecodeJSON followed by PrepareRequest.
//
//	req, ok := httputil.DecodeAndPrepare[uploadRequest](w, r, h.logger)
//	if !ok {
//	    return
//	}
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	req, ok := DecodeJSON[T](w, r, logger)
	if !ok {
		return nil, false
	}
	err := PrepareRequest(req)
	if err == nil {
		return req, true
	}

	warn(r, logger, "invalid request", err)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		// A plain validator error carries no code of its own.
		err = dErrors.Wrap(err, dErrors.CodeInvalidInput, err.Error())
	}
	WriteError(w, err)
	return nil, false
}

func warn(r *http.Request, logger *slog.Logger, msg string, err error) {
	if logger == nil {
		return
	}
	ctx := r.Context()
	logger.WarnContext(ctx, msg, "error", err, "request_id", requestcontext.RequestID(ctx))
}
