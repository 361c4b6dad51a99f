package handler

import (
	"time"

	"ecertify/pkg/domain"
	dErrors "ecertify/pkg/domain-errors"
	s "ecertify/pkg/string"
	"ecertify/pkg/validation"
)

// Blank names and refs are left to the ledger so its error precedence
// (e.g. already_registered before invalid_input) holds over HTTP too.

type createProfileRequest struct {
	Name        string `json:"name" validate:"max=200"`
	AvatarRef   string `json:"avatar_ref" validate:"max=512"`
	IsInstitute bool   `json:"is_institute"`
}

func (r *createProfileRequest) Normalize() { s.TrimStrings(&r.Name, &r.AvatarRef) }
func (r *createProfileRequest) Validate() error { return validation.Validate(r) }

type updateProfileRequest struct {
	Name      string `json:"name" validate:"max=200"`
	AvatarRef string `json:"avatar_ref" validate:"max=512"`
}

func (r *updateProfileRequest) Normalize() { s.TrimStrings(&r.Name, &r.AvatarRef) }
func (r *updateProfileRequest) Validate() error { return validation.Validate(r) }

type linkRequest struct {
	Institute string `json:"institute" validate:"required,actor"`
}

func (r *linkRequest) Normalize() { s.TrimStrings(&r.Institute) }
func (r *linkRequest) Validate() error { return validation.Validate(r) }

func (r *linkRequest) institute() domain.ActorID {
	return domain.MustActorID(r.Institute)
}

type transferRequest struct {
	NewInstitute string `json:"new_institute" validate:"required,actor"`
}

func (r *transferRequest) Normalize() { s.TrimStrings(&r.NewInstitute) }
func (r *transferRequest) Validate() error { return validation.Validate(r) }

func (r *transferRequest) newInstitute() domain.ActorID {
	return domain.MustActorID(r.NewInstitute)
}

type uploadRequest struct {
	ContentRef   string `json:"content_ref" validate:"max=512"`
	DocumentName string `json:"document_name" validate:"max=200"`
}

func (r *uploadRequest) Validate() error { return validation.Validate(r) }

type grantRequest struct {
	Grantee         string `json:"grantee" validate:"required,actor"`
	DurationSeconds int64  `json:"duration_seconds"`
}

func (r *grantRequest) Normalize() { s.TrimStrings(&r.Grantee) }

func (r *grantRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	if r.DurationSeconds > int64(maxGrantDuration/time.Second) {
		return dErrors.New(dErrors.CodeInvalidInput, "duration_seconds is too large")
	}
	return nil
}

func (r *grantRequest) grantee() domain.ActorID {
	return domain.MustActorID(r.Grantee)
}

func (r *grantRequest) duration() time.Duration {
	return time.Duration(r.DurationSeconds) * time.Second
}

// maxGrantDuration keeps now+duration well inside time.Time's range.
const maxGrantDuration = 100 * 365 * 24 * time.Hour
