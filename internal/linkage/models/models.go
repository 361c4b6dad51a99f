package models

import (
	"time"

	"ecertify/pkg/domain"
)

// TransferRequest is a student's pending move to another institute.
// A student has at most one; a newer request replaces the older one.
type TransferRequest struct {
	Student     domain.ActorID
	Target      domain.ActorID
	RequestedAt time.Time
	Pending     bool
}
