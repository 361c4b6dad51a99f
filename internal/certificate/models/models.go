package models

import (
	"time"

	"ecertify/pkg/domain"
)

// Certificate is one uploaded record. Records are append-only per student and
// keyed by (Student, Index); indexes start at 0 and are never reused.
type Certificate struct {
	Student      domain.ActorID
	Index        int
	ContentRef   domain.ContentRef
	DocumentName string
	Uploader     domain.ActorID
	Verified     bool
	Verifier     domain.ActorID
	UploadedAt   time.Time
	VerifiedAt   *time.Time
}

// PendingUpload identifies an unverified certificate awaiting its institute.
type PendingUpload struct {
	Student domain.ActorID
	Index   int
}
