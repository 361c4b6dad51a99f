// Package service implements the identity registry: one profile per actor,
// with a role fixed at creation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"ecertify/internal/events"
	"ecertify/internal/identity/models"
	"ecertify/internal/sentinel"
	"ecertify/pkg/domain"
	dErrors "ecertify/pkg/domain-errors"
	"ecertify/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store

// Store persists profiles.
// Error contract:
//   - Create returns sentinel.ErrAlreadyUsed when the actor already has a profile
//   - Update and FindByActor return sentinel.ErrNotFound for unknown actors
type Store interface {
	Create(ctx context.Context, p *models.Profile) error
	Update(ctx context.Context, p *models.Profile) error
	FindByActor(ctx context.Context, actor domain.ActorID) (*models.Profile, error)
}

// Emitter appends ledger events inside the caller's transaction.
type Emitter interface {
	Emit(ctx context.Context, p events.Payload) error
}

type Option func(*Registry)

// WithLogger sets the logger instance for the registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// Registry owns actor profiles. Callers provide the transaction boundary.
type Registry struct {
	store   Store
	emitter Emitter
	logger  *slog.Logger
}

func NewRegistry(store Store, emitter Emitter, opts ...Option) *Registry {
	r := &Registry{store: store, emitter: emitter}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateProfile registers caller with a fixed role.
func (r *Registry) CreateProfile(ctx context.Context, caller domain.ActorID, name, avatarRef string, isInstitute bool) (*models.Profile, error) {
	if caller.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "caller address is required")
	}
	existing, err := r.GetProfile(ctx, caller)
	if err != nil {
		return nil, err
	}
	if existing.Exists {
		return nil, dErrors.New(dErrors.CodeAlreadyRegistered, "profile already exists")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}

	now := requestcontext.Now(ctx)
	profile := &models.Profile{
		Actor:     caller,
		Name:      name,
		AvatarRef: strings.TrimSpace(avatarRef),
		Role:      models.RoleFor(isInstitute),
		CreatedAt: now,
		UpdatedAt: now,
		Exists:    true,
	}
	if err := r.store.Create(ctx, profile); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeAlreadyRegistered, "profile already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create profile")
	}
	if err := r.emitter.Emit(ctx, events.ProfileCreated{
		Actor:       caller,
		Name:        name,
		IsInstitute: isInstitute,
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record profile creation")
	}

	r.logInfo(ctx, "profile created", "actor", caller.String(), "role", string(profile.Role))
	return profile, nil
}

// UpdateProfile changes name and avatar. The role is immutable.
func (r *Registry) UpdateProfile(ctx context.Context, caller domain.ActorID, name, avatarRef string) (*models.Profile, error) {
	profile, err := r.GetProfile(ctx, caller)
	if err != nil {
		return nil, err
	}
	if !profile.Exists {
		return nil, dErrors.New(dErrors.CodeNotRegistered, "profile does not exist")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}

	profile.Name = name
	profile.AvatarRef = strings.TrimSpace(avatarRef)
	profile.UpdatedAt = requestcontext.Now(ctx)
	if err := r.store.Update(ctx, profile); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotRegistered, "profile does not exist")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update profile")
	}
	if err := r.emitter.Emit(ctx, events.ProfileUpdated{
		Actor:     caller,
		Name:      profile.Name,
		AvatarRef: profile.AvatarRef,
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record profile update")
	}
	return profile, nil
}

// GetProfile returns the actor's profile, or a zero profile with Exists=false.
func (r *Registry) GetProfile(ctx context.Context, actor domain.ActorID) (*models.Profile, error) {
	profile, err := r.store.FindByActor(ctx, actor)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &models.Profile{Actor: actor}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read profile")
	}
	return profile, nil
}

func (r *Registry) logInfo(ctx context.Context, msg string, args ...any) {
	if r.logger == nil {
		return
	}
	args = append(args, "request_id", requestcontext.RequestID(ctx))
	r.logger.InfoContext(ctx, msg, args...)
}
