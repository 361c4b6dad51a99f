// Package service implements the certificate store: per-student append-only
// records with a pending → verified state machine.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ecertify/internal/certificate/models"
	"ecertify/internal/events"
	"ecertify/internal/sentinel"
	"ecertify/pkg/domain"
	dErrors "ecertify/pkg/domain-errors"
	"ecertify/pkg/requestcontext"
)

// Store persists certificates.
// Error contract:
//   - FindByIndex returns sentinel.ErrNotFound for an index outside the list
//   - MarkVerified returns sentinel.ErrInvalidState when already verified
type Store interface {
	Append(ctx context.Context, c *models.Certificate) (int, error)
	FindByIndex(ctx context.Context, student domain.ActorID, index int) (*models.Certificate, error)
	Count(ctx context.Context, student domain.ActorID) (int, error)
	MarkVerified(ctx context.Context, student domain.ActorID, index int, verifier domain.ActorID, at time.Time) error
	ListByStudent(ctx context.Context, student domain.ActorID) ([]*models.Certificate, error)
}

// Linkage answers "which institute is this student linked to" and "who is
// linked to this institute".
type Linkage interface {
	CurrentInstitute(ctx context.Context, student domain.ActorID) (domain.ActorID, error)
	GetInstituteStudents(ctx context.Context, institute domain.ActorID) ([]domain.ActorID, error)
}

// Emitter appends ledger events inside the caller's transaction.
type Emitter interface {
	Emit(ctx context.Context, p events.Payload) error
}

type Option func(*Service)

// WithLogger sets the logger instance for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithStrictContentRefs rejects content references that are not CIDs.
func WithStrictContentRefs(strict bool) Option {
	return func(s *Service) {
		s.strictRefs = strict
	}
}

type Service struct {
	store      Store
	linkage    Linkage
	emitter    Emitter
	logger     *slog.Logger
	strictRefs bool
}

func NewService(store Store, linkage Linkage, emitter Emitter, opts ...Option) *Service {
	s := &Service{store: store, linkage: linkage, emitter: emitter}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UploadCertificate appends a record for student. The student may upload
// their own (pending); the linked institute uploads pre-verified.
func (s *Service) UploadCertificate(ctx context.Context, caller, student domain.ActorID, contentRef, documentName string) (*models.Certificate, error) {
	documentName = strings.TrimSpace(documentName)
	if documentName == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "document name is required")
	}
	ref, err := domain.ParseContentRef(contentRef, s.strictRefs)
	if err != nil {
		return nil, err
	}

	linked, err := s.linkage.CurrentInstitute(ctx, student)
	if err != nil {
		return nil, err
	}
	byInstitute := !linked.IsZero() && caller == linked
	if caller != student && !byInstitute {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the student or their linked institute can upload")
	}

	now := requestcontext.Now(ctx)
	cert := &models.Certificate{
		Student:      student,
		ContentRef:   ref,
		DocumentName: documentName,
		Uploader:     caller,
		Verified:     byInstitute,
		UploadedAt:   now,
	}
	if byInstitute {
		cert.Verifier = caller
		cert.VerifiedAt = &now
	}
	index, err := s.store.Append(ctx, cert)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store certificate")
	}
	cert.Index = index

	if err := s.emitter.Emit(ctx, events.CertificateUploaded{
		Student:      student,
		Index:        index,
		ContentRef:   ref,
		DocumentName: documentName,
		Uploader:     caller,
		Verified:     byInstitute,
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record upload")
	}
	s.logInfo(ctx, "certificate uploaded",
		"student", student.String(),
		"index", index,
		"verified", byInstitute,
	)
	return cert, nil
}

// VerifyCertificate marks a pending record verified. Only the student's
// linked institute may verify.
func (s *Service) VerifyCertificate(ctx context.Context, caller, student domain.ActorID, index int) (*models.Certificate, error) {
	count, err := s.store.Count(ctx, student)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count certificates")
	}
	if index < 0 || index >= count {
		return nil, dErrors.New(dErrors.CodeOutOfRange, "certificate index out of range")
	}
	linked, err := s.linkage.CurrentInstitute(ctx, student)
	if err != nil {
		return nil, err
	}
	if linked.IsZero() || caller != linked {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the student's linked institute can verify")
	}
	cert, err := s.store.FindByIndex(ctx, student, index)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read certificate")
	}
	if cert.Verified {
		return nil, dErrors.New(dErrors.CodeAlreadyVerified, "certificate is already verified")
	}

	now := requestcontext.Now(ctx)
	if err := s.store.MarkVerified(ctx, student, index, caller, now); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return nil, dErrors.New(dErrors.CodeAlreadyVerified, "certificate is already verified")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify certificate")
	}
	cert.Verified = true
	cert.Verifier = caller
	cert.VerifiedAt = &now

	if err := s.emitter.Emit(ctx, events.CertificateVerified{
		Student:  student,
		Index:    index,
		Verifier: caller,
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record verification")
	}
	return cert, nil
}

// GetStudentCertificates returns every record in upload order.
func (s *Service) GetStudentCertificates(ctx context.Context, student domain.ActorID) ([]*models.Certificate, error) {
	list, err := s.store.ListByStudent(ctx, student)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificates")
	}
	return list, nil
}

// GetVerifiedCertificates returns the verified subset, keeping original indexes.
func (s *Service) GetVerifiedCertificates(ctx context.Context, student domain.ActorID) ([]*models.Certificate, error) {
	list, err := s.GetStudentCertificates(ctx, student)
	if err != nil {
		return nil, err
	}
	verified := make([]*models.Certificate, 0, len(list))
	for _, c := range list {
		if c.Verified {
			verified = append(verified, c)
		}
	}
	return verified, nil
}

// GetPendingUploads lists unverified records of every student currently linked
// to institute: students in link order, records in upload order.
func (s *Service) GetPendingUploads(ctx context.Context, institute domain.ActorID) ([]models.PendingUpload, error) {
	students, err := s.linkage.GetInstituteStudents(ctx, institute)
	if err != nil {
		return nil, err
	}
	pending := make([]models.PendingUpload, 0)
	for _, student := range students {
		list, err := s.GetStudentCertificates(ctx, student)
		if err != nil {
			return nil, err
		}
		for _, c := range list {
			if !c.Verified {
				pending = append(pending, models.PendingUpload{Student: student, Index: c.Index})
			}
		}
	}
	return pending, nil
}

func (s *Service) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger == nil {
		return
	}
	args = append(args, "request_id", requestcontext.RequestID(ctx))
	s.logger.InfoContext(ctx, msg, args...)
}
