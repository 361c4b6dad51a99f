package models

import (
	"time"

	"ecertify/pkg/domain"
)

// Grant lets Grantee read Owner's verified records until Expiry.
// Expired grants stay stored; they simply stop counting.
type Grant struct {
	Owner     domain.ActorID
	Grantee   domain.ActorID
	Expiry    time.Time
	GrantedAt time.Time
}

// IsActive reports whether the grant is still in force at now. A grant
// expiring exactly at now is no longer active.
func (g *Grant) IsActive(now time.Time) bool {
	return g != nil && g.Expiry.After(now)
}

// GrantStatus is the read model for a single owner/grantee pair.
type GrantStatus struct {
	Owner   domain.ActorID
	Grantee domain.ActorID
	Expiry  *time.Time
	Active  bool
}
