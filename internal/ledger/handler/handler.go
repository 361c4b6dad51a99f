// Package handler exposes the ledger over HTTP. Mutations and caller-scoped
// reads sit behind the actor middleware; plain reads are public, mirroring
// the transparency of the underlying ledger.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	accessmodels "ecertify/internal/access/models"
	certmodels "ecertify/internal/certificate/models"
	"ecertify/internal/events"
	idmodels "ecertify/internal/identity/models"
	linkmodels "ecertify/internal/linkage/models"
	"ecertify/pkg/domain"
	dErrors "ecertify/pkg/domain-errors"
	"ecertify/pkg/platform/httputil"
	"ecertify/pkg/platform/middleware/actor"
	"ecertify/pkg/requestcontext"
	"ecertify/pkg/validation"
)

// Ledger is the subset of the ledger facade the HTTP surface drives.
type Ledger interface {
	CreateProfile(ctx context.Context, caller domain.ActorID, name, avatarRef string, isInstitute bool) (*idmodels.Profile, error)
	UpdateProfile(ctx context.Context, caller domain.ActorID, name, avatarRef string) (*idmodels.Profile, error)
	GetProfile(ctx context.Context, actor domain.ActorID) (*idmodels.Profile, error)

	LinkToInstitute(ctx context.Context, caller, institute domain.ActorID) error
	RequestInstituteChange(ctx context.Context, caller, newInstitute domain.ActorID) error
	ApproveInstituteChange(ctx context.Context, caller, student domain.ActorID) error
	GetStudentInstitute(ctx context.Context, student domain.ActorID) (domain.ActorID, error)
	GetInstituteStudents(ctx context.Context, institute domain.ActorID) ([]domain.ActorID, error)
	GetInstituteChangeRequest(ctx context.Context, student domain.ActorID) (*linkmodels.TransferRequest, error)

	UploadCertificate(ctx context.Context, caller, student domain.ActorID, contentRef, documentName string) (*certmodels.Certificate, error)
	VerifyCertificate(ctx context.Context, caller, student domain.ActorID, index int) (*certmodels.Certificate, error)
	GetStudentCertificates(ctx context.Context, student domain.ActorID) ([]*certmodels.Certificate, error)
	GetVerifiedCertificates(ctx context.Context, student domain.ActorID) ([]*certmodels.Certificate, error)
	GetPendingUploads(ctx context.Context, institute domain.ActorID) ([]certmodels.PendingUpload, error)

	GrantAccess(ctx context.Context, caller, grantee domain.ActorID, duration time.Duration) (*accessmodels.Grant, error)
	RevokeAccess(ctx context.Context, caller, grantee domain.ActorID) error
	GetStudentsWithAccess(ctx context.Context, requester domain.ActorID) ([]domain.ActorID, error)
	GetAccessGrant(ctx context.Context, owner, grantee domain.ActorID) (*accessmodels.GrantStatus, error)
	GetVerifiedCertificatesFor(ctx context.Context, requester, owner domain.ActorID) ([]*certmodels.Certificate, error)

	Events(ctx context.Context, afterSeq int64, limit int) ([]*events.Event, error)
}

const defaultEventsPageSize = 100

type Handler struct {
	logger *slog.Logger
	ledger Ledger
	// mutations wraps every route that changes state, e.g. a rate limiter.
	mutations []func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithMutationMiddleware adds middleware applied only to state-changing routes.
func WithMutationMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.mutations = append(h.mutations, mw...)
	}
}

func New(ledger Ledger, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{logger: logger, ledger: ledger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the ledger routes under /v1.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		// Public reads.
		r.Get("/profiles/{actor}", h.handleGetProfile)
		r.Get("/students/{student}/institute", h.handleGetStudentInstitute)
		r.Get("/students/{student}/transfer", h.handleGetTransferRequest)
		r.Get("/institutes/{institute}/students", h.handleGetInstituteStudents)
		r.Get("/students/{student}/certificates", h.handleGetCertificates)
		r.Get("/students/{student}/certificates/verified", h.handleGetVerifiedCertificates)
		r.Get("/institutes/{institute}/pending", h.handleGetPendingUploads)
		r.Get("/students/{owner}/access/{requester}", h.handleGetAccess)
		r.Get("/access/{requester}/students", h.handleGetStudentsWithAccess)
		r.Get("/events", h.handleListEvents)

		r.Group(func(r chi.Router) {
			r.Use(actor.RequireActor(h.logger))

			r.Get("/students/{owner}/certificates/disclosed", h.handleGetDisclosedCertificates)

			r.Group(func(r chi.Router) {
				r.Use(h.mutations...)

				r.Post("/profiles", h.handleCreateProfile)
				r.Put("/profiles/me", h.handleUpdateProfile)
				r.Post("/linkage", h.handleLink)
				r.Post("/linkage/transfer", h.handleRequestTransfer)
				r.Post("/linkage/transfer/{student}/approve", h.handleApproveTransfer)
				r.Post("/students/{student}/certificates", h.handleUpload)
				r.Post("/students/{student}/certificates/{index}/verify", h.handleVerify)
				r.Post("/grants", h.handleGrant)
				r.Delete("/grants/{grantee}", h.handleRevoke)
			})
		})
	})
}

func (h *Handler) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[createProfileRequest](w, r, h.logger)
	if !ok {
		return
	}

	profile, err := h.ledger.CreateProfile(ctx, caller, req.Name, req.AvatarRef, req.IsInstitute)
	if err != nil {
		h.fail(w, r, "failed to create profile", err, "actor", caller)
		return
	}
	h.logger.InfoContext(ctx, "profile created",
		"actor", caller,
		"role", profile.Role,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusCreated, toProfileResponse(profile))
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[updateProfileRequest](w, r, h.logger)
	if !ok {
		return
	}

	profile, err := h.ledger.UpdateProfile(r.Context(), caller, req.Name, req.AvatarRef)
	if err != nil {
		h.fail(w, r, "failed to update profile", err, "actor", caller)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProfileResponse(profile))
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathActor(w, r, "actor")
	if !ok {
		return
	}
	profile, err := h.ledger.GetProfile(r.Context(), id)
	if err != nil {
		h.fail(w, r, "failed to get profile", err, "actor", id)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProfileResponse(profile))
}

func (h *Handler) handleLink(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[linkRequest](w, r, h.logger)
	if !ok {
		return
	}
	institute := req.institute()

	if err := h.ledger.LinkToInstitute(r.Context(), caller, institute); err != nil {
		h.fail(w, r, "failed to link student", err, "student", caller, "institute", institute)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, instituteResponse{Student: caller, Linked: true, Institute: &institute})
}

func (h *Handler) handleRequestTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[transferRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.ledger.RequestInstituteChange(ctx, caller, req.newInstitute()); err != nil {
		h.fail(w, r, "failed to request transfer", err, "student", caller)
		return
	}
	pending, err := h.ledger.GetInstituteChangeRequest(ctx, caller)
	if err != nil {
		h.fail(w, r, "failed to read transfer request", err, "student", caller)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, toTransferResponse(pending))
}

func (h *Handler) handleApproveTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	student, ok := h.pathActor(w, r, "student")
	if !ok {
		return
	}

	if err := h.ledger.ApproveInstituteChange(ctx, caller, student); err != nil {
		h.fail(w, r, "failed to approve transfer", err, "student", student, "institute", caller)
		return
	}
	institute := caller
	httputil.WriteJSON(w, http.StatusOK, instituteResponse{Student: student, Linked: true, Institute: &institute})
}

func (h *Handler) handleGetStudentInstitute(w http.ResponseWriter, r *http.Request) {
	student, ok := h.pathActor(w, r, "student")
	if !ok {
		return
	}
	institute, err := h.ledger.GetStudentInstitute(r.Context(), student)
	if err != nil {
		h.fail(w, r, "failed to get student institute", err, "student", student)
		return
	}
	resp := instituteResponse{Student: student}
	if !institute.IsZero() {
		resp.Linked = true
		resp.Institute = &institute
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetTransferRequest(w http.ResponseWriter, r *http.Request) {
	student, ok := h.pathActor(w, r, "student")
	if !ok {
		return
	}
	req, err := h.ledger.GetInstituteChangeRequest(r.Context(), student)
	if err != nil {
		h.fail(w, r, "failed to get transfer request", err, "student", student)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTransferResponse(req))
}

func (h *Handler) handleGetInstituteStudents(w http.ResponseWriter, r *http.Request) {
	institute, ok := h.pathActor(w, r, "institute")
	if !ok {
		return
	}
	students, err := h.ledger.GetInstituteStudents(r.Context(), institute)
	if err != nil {
		h.fail(w, r, "failed to get institute students", err, "institute", institute)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, studentsResponse{Students: nonNil(students)})
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	student, ok := h.pathActor(w, r, "student")
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[uploadRequest](w, r, h.logger)
	if !ok {
		return
	}

	cert, err := h.ledger.UploadCertificate(ctx, caller, student, req.ContentRef, req.DocumentName)
	if err != nil {
		h.fail(w, r, "failed to upload certificate", err, "student", student, "uploader", caller)
		return
	}
	h.logger.InfoContext(ctx, "certificate uploaded",
		"student", student,
		"index", cert.Index,
		"verified", cert.Verified,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusCreated, toCertificateResponse(cert))
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	student, ok := h.pathActor(w, r, "student")
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "index must be an integer"))
		return
	}

	cert, err := h.ledger.VerifyCertificate(r.Context(), caller, student, index)
	if err != nil {
		h.fail(w, r, "failed to verify certificate", err, "student", student, "index", index)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCertificateResponse(cert))
}

func (h *Handler) handleGetCertificates(w http.ResponseWriter, r *http.Request) {
	student, ok := h.pathActor(w, r, "student")
	if !ok {
		return
	}
	certs, err := h.ledger.GetStudentCertificates(r.Context(), student)
	if err != nil {
		h.fail(w, r, "failed to list certificates", err, "student", student)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCertificatesResponse(certs))
}

func (h *Handler) handleGetVerifiedCertificates(w http.ResponseWriter, r *http.Request) {
	student, ok := h.pathActor(w, r, "student")
	if !ok {
		return
	}
	certs, err := h.ledger.GetVerifiedCertificates(r.Context(), student)
	if err != nil {
		h.fail(w, r, "failed to list verified certificates", err, "student", student)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCertificatesResponse(certs))
}

func (h *Handler) handleGetDisclosedCertificates(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	owner, ok := h.pathActor(w, r, "owner")
	if !ok {
		return
	}
	certs, err := h.ledger.GetVerifiedCertificatesFor(r.Context(), caller, owner)
	if err != nil {
		h.fail(w, r, "failed to disclose certificates", err, "owner", owner, "requester", caller)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCertificatesResponse(certs))
}

func (h *Handler) handleGetPendingUploads(w http.ResponseWriter, r *http.Request) {
	institute, ok := h.pathActor(w, r, "institute")
	if !ok {
		return
	}
	pending, err := h.ledger.GetPendingUploads(r.Context(), institute)
	if err != nil {
		h.fail(w, r, "failed to list pending uploads", err, "institute", institute)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPendingResponse(pending))
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[grantRequest](w, r, h.logger)
	if !ok {
		return
	}

	grant, err := h.ledger.GrantAccess(ctx, caller, req.grantee(), req.duration())
	if err != nil {
		h.fail(w, r, "failed to grant access", err, "owner", caller)
		return
	}
	h.logger.InfoContext(ctx, "access granted",
		"owner", grant.Owner,
		"grantee", grant.Grantee,
		"expiry", grant.Expiry,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, toGrantResponse(grant))
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	grantee, ok := h.pathActor(w, r, "grantee")
	if !ok {
		return
	}
	if err := h.ledger.RevokeAccess(r.Context(), caller, grantee); err != nil {
		h.fail(w, r, "failed to revoke access", err, "owner", caller, "grantee", grantee)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetAccess(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.pathActor(w, r, "owner")
	if !ok {
		return
	}
	requester, ok := h.pathActor(w, r, "requester")
	if !ok {
		return
	}
	status, err := h.ledger.GetAccessGrant(r.Context(), owner, requester)
	if err != nil {
		h.fail(w, r, "failed to check access", err, "owner", owner, "requester", requester)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, accessResponse{
		Owner:     owner,
		Requester: requester,
		HasAccess: status.Active,
		Expiry:    status.Expiry,
	})
}

func (h *Handler) handleGetStudentsWithAccess(w http.ResponseWriter, r *http.Request) {
	requester, ok := h.pathActor(w, r, "requester")
	if !ok {
		return
	}
	students, err := h.ledger.GetStudentsWithAccess(r.Context(), requester)
	if err != nil {
		h.fail(w, r, "failed to list accessible students", err, "requester", requester)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, studentsResponse{Students: nonNil(students)})
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	after, err := parseInt(q.Get("after"), 0)
	if err != nil || after < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "after must be a non-negative integer"))
		return
	}
	limit, err := parseInt(q.Get("limit"), defaultEventsPageSize)
	if err != nil || limit <= 0 || limit > validation.MaxEventsPageSize {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput,
			"limit must be between 1 and "+strconv.Itoa(validation.MaxEventsPageSize)))
		return
	}

	list, err := h.ledger.Events(r.Context(), after, int(limit))
	if err != nil {
		h.fail(w, r, "failed to list events", err, "after", after)
		return
	}
	resp, err := toEventsResponse(list, after)
	if err != nil {
		h.fail(w, r, "failed to encode events", dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode events"), "after", after)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// caller reads the actor placed on the context by actor.RequireActor.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (domain.ActorID, bool) {
	id, err := httputil.RequireActor(r.Context(), h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return domain.ZeroActor, false
	}
	return id, true
}

func (h *Handler) pathActor(w http.ResponseWriter, r *http.Request, param string) (domain.ActorID, bool) {
	id, err := domain.ParseActorID(chi.URLParam(r, param))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, param+" is not a valid address"))
		return domain.ZeroActor, false
	}
	return id, true
}

// fail logs at warn for rejected calls and at error for internal failures.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error, attrs ...any) {
	ctx := r.Context()
	attrs = append(attrs, "error", err, "request_id", requestcontext.RequestID(ctx))
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

func parseInt(raw string, def int64) (int64, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func nonNil(ids []domain.ActorID) []domain.ActorID {
	if ids == nil {
		return []domain.ActorID{}
	}
	return ids
}
