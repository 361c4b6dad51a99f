package models

import (
	"time"

	"ecertify/pkg/domain"
)

// Role is fixed when a profile is created.
type Role string

const (
	RoleStudent   Role = "student"
	RoleInstitute Role = "institute"
)

// RoleFor maps the registration flag to a role.
func RoleFor(isInstitute bool) Role {
	if isInstitute {
		return RoleInstitute
	}
	return RoleStudent
}

// IsValid reports whether r is one of the two known roles.
func (r Role) IsValid() bool {
	return r == RoleStudent || r == RoleInstitute
}

// Profile is an actor's registered identity. Profiles are never deleted.
type Profile struct {
	Actor     domain.ActorID
	Name      string
	AvatarRef string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
	// Exists is false for the zero profile returned for unknown actors.
	Exists bool
}

// IsInstitute reports whether the profile belongs to a registered institute.
func (p *Profile) IsInstitute() bool {
	return p != nil && p.Exists && p.Role == RoleInstitute
}

// IsStudent reports whether the profile belongs to a registered student.
func (p *Profile) IsStudent() bool {
	return p != nil && p.Exists && p.Role == RoleStudent
}
