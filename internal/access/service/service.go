// Package service implements time-bounded access grants and the disclosure
// read built on them.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ecertify/internal/access/models"
	certmodels "ecertify/internal/certificate/models"
	"ecertify/internal/events"
	idmodels "ecertify/internal/identity/models"
	"ecertify/internal/sentinel"
	"ecertify/pkg/domain"
	dErrors "ecertify/pkg/domain-errors"
	"ecertify/pkg/requestcontext"
)

// Store persists grants.
// Error contract:
//   - Find returns sentinel.ErrNotFound when no grant is stored
//   - Delete is a no-op for missing grants
//   - ListByGrantee returns grants in the order they were first created
type Store interface {
	Put(ctx context.Context, g *models.Grant) error
	Delete(ctx context.Context, owner, grantee domain.ActorID) error
	Find(ctx context.Context, owner, grantee domain.ActorID) (*models.Grant, error)
	ListByGrantee(ctx context.Context, grantee domain.ActorID) ([]*models.Grant, error)
}

// ProfileReader resolves whether a grantee is registered.
type ProfileReader interface {
	GetProfile(ctx context.Context, actor domain.ActorID) (*idmodels.Profile, error)
}

// Linkage exposes the linked-institute view. A linked institute has implicit
// access to its students.
type Linkage interface {
	CurrentInstitute(ctx context.Context, student domain.ActorID) (domain.ActorID, error)
	GetInstituteStudents(ctx context.Context, institute domain.ActorID) ([]domain.ActorID, error)
}

// Certificates reads verified records for disclosure.
type Certificates interface {
	GetVerifiedCertificates(ctx context.Context, student domain.ActorID) ([]*certmodels.Certificate, error)
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

type Service struct {
	store        Store
	profiles     ProfileReader
	linkage      Linkage
	certificates Certificates
	emitter      Emitter
	logger       *slog.Logger
}

func NewService(store Store, profiles ProfileReader, linkage Linkage, certificates Certificates, emitter Emitter, opts ...Option) *Service {
	s := &Service{
		store:        store,
		profiles:     profiles,
		linkage:      linkage,
		certificates: certificates,
		emitter:      emitter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GrantAccess lets grantee read caller's verified records for duration,
// replacing any earlier grant to the same grantee.
func (s *Service) GrantAccess(ctx context.Context, caller, grantee domain.ActorID, duration time.Duration) (*models.Grant, error) {
	if duration <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "duration must be positive")
	}
	if grantee == caller {
		return nil, dErrors.New(dErrors.CodeSelfGrant, "cannot grant access to yourself")
	}
	profile, err := s.profiles.GetProfile(ctx, grantee)
	if err != nil {
		return nil, err
	}
	if !profile.Exists {
		return nil, dErrors.New(dErrors.CodeNotRegistered, "grantee is not registered")
	}

	now := requestcontext.Now(ctx)
	grant := &models.Grant{
		Owner:     caller,
		Grantee:   grantee,
		Expiry:    now.Add(duration),
		GrantedAt: now,
	}
	if err := s.store.Put(ctx, grant); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store grant")
	}
	if err := s.emitter.Emit(ctx, events.AccessGranted{
		Owner:   caller,
		Grantee: grantee,
		Expiry:  grant.Expiry,
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record grant")
	}
	s.logInfo(ctx, "access granted",
		"owner", caller.String(),
		"grantee", grantee.String(),
		"expiry", grant.Expiry,
	)
	return grant, nil
}

// RevokeAccess clears any grant from caller to grantee. It always succeeds
// and always emits.
func (s *Service) RevokeAccess(ctx context.Context, caller, grantee domain.ActorID) error {
	if err := s.store.Delete(ctx, caller, grantee); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete grant")
	}
	if err := s.emitter.Emit(ctx, events.AccessRevoked{Owner: caller, Grantee: grantee}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record revocation")
	}
	return nil
}

// HasAccess reports whether requester may read owner's records right now.
func (s *Service) HasAccess(ctx context.Context, owner, requester domain.ActorID) (bool, error) {
	if owner == requester {
		return false, nil
	}
	linked, err := s.linkage.CurrentInstitute(ctx, owner)
	if err != nil {
		return false, err
	}
	if !linked.IsZero() && linked == requester {
		return true, nil
	}
	grant, err := s.findGrant(ctx, owner, requester)
	if err != nil {
		return false, err
	}
	return grant.IsActive(requestcontext.Now(ctx)), nil
}

// GetStudentsWithAccess lists owners requester can currently read: linked
// students first (link order), then active grant owners (grant order).
func (s *Service) GetStudentsWithAccess(ctx context.Context, requester domain.ActorID) ([]domain.ActorID, error) {
	linked, err := s.linkage.GetInstituteStudents(ctx, requester)
	if err != nil {
		return nil, err
	}
	grants, err := s.store.ListByGrantee(ctx, requester)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list grants")
	}

	now := requestcontext.Now(ctx)
	seen := make(map[domain.ActorID]struct{}, len(linked)+len(grants))
	owners := make([]domain.ActorID, 0, len(linked)+len(grants))
	for _, student := range linked {
		if _, dup := seen[student]; dup {
			continue
		}
		seen[student] = struct{}{}
		owners = append(owners, student)
	}
	for _, g := range grants {
		if !g.IsActive(now) {
			continue
		}
		if _, dup := seen[g.Owner]; dup {
			continue
		}
		seen[g.Owner] = struct{}{}
		owners = append(owners, g.Owner)
	}
	return owners, nil
}

// GetAccessGrant returns the stored grant for the pair, if any, and whether
// it is active.
func (s *Service) GetAccessGrant(ctx context.Context, owner, grantee domain.ActorID) (*models.GrantStatus, error) {
	grant, err := s.findGrant(ctx, owner, grantee)
	if err != nil {
		return nil, err
	}
	status := &models.GrantStatus{Owner: owner, Grantee: grantee}
	if grant != nil {
		expiry := grant.Expiry
		status.Expiry = &expiry
		status.Active = grant.IsActive(requestcontext.Now(ctx))
	}
	return status, nil
}

// GetVerifiedCertificatesFor discloses owner's verified records to requester.
func (s *Service) GetVerifiedCertificatesFor(ctx context.Context, requester, owner domain.ActorID) ([]*certmodels.Certificate, error) {
	if requester != owner {
		ok, err := s.HasAccess(ctx, owner, requester)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "no access to this student's records")
		}
	}
	return s.certificates.GetVerifiedCertificates(ctx, owner)
}

func (s *Service) findGrant(ctx context.Context, owner, grantee domain.ActorID) (*models.Grant, error) {
	grant, err := s.store.Find(ctx, owner, grantee)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read grant")
	}
	return grant, nil
}

func (s *Service) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger == nil {
		return
	}
	args = append(args, "request_id", requestcontext.RequestID(ctx))
	s.logger.InfoContext(ctx, msg, args...)
}
