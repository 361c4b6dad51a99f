// Package events defines the ledger's append-only event log: one event per
// successful mutation, numbered by a monotonically increasing sequence.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"ecertify/pkg/domain"
)

// Type names an event kind. Values are stable and appear on the wire.
type Type string

const (
	TypeProfileCreated      Type = "ProfileCreated"
	TypeProfileUpdated      Type = "ProfileUpdated"
	TypeStudentLinked       Type = "StudentLinked"
	TypeTransferRequested   Type = "TransferRequested"
	TypeTransferApproved    Type = "TransferApproved"
	TypeCertificateUploaded Type = "CertificateUploaded"
	TypeCertificateVerified Type = "CertificateVerified"
	TypeAccessGranted       Type = "AccessGranted"
	TypeAccessRevoked       Type = "AccessRevoked"
)

// Payload is the typed body of an event.
type Payload interface {
	EventType() Type
	// Subject is the actor the event is about. It keys relay partitions so
	// one student's history stays ordered downstream.
	Subject() domain.ActorID
}

// Event is a committed log entry.
type Event struct {
	Seq         int64
	Type        Type
	Subject     domain.ActorID
	Payload     Payload
	RequestID   string
	OccurredAt  time.Time
	PublishedAt *time.Time
}

// IsPending reports whether the relay has not yet published the event.
func (e *Event) IsPending() bool {
	return e.PublishedAt == nil
}

type ProfileCreated struct {
	Actor       domain.ActorID `json:"actor"`
	Name        string         `json:"name"`
	IsInstitute bool           `json:"is_institute"`
}

type ProfileUpdated struct {
	Actor     domain.ActorID `json:"actor"`
	Name      string         `json:"name"`
	AvatarRef string         `json:"avatar_ref"`
}

type StudentLinked struct {
	Student   domain.ActorID `json:"student"`
	Institute domain.ActorID `json:"institute"`
}

type TransferRequested struct {
	Student      domain.ActorID `json:"student"`
	NewInstitute domain.ActorID `json:"new_institute"`
}

type TransferApproved struct {
	Student      domain.ActorID `json:"student"`
	OldInstitute domain.ActorID `json:"old_institute"`
	NewInstitute domain.ActorID `json:"new_institute"`
}

type CertificateUploaded struct {
	Student      domain.ActorID    `json:"student"`
	Index        int               `json:"index"`
	ContentRef   domain.ContentRef `json:"content_ref"`
	DocumentName string            `json:"document_name"`
	Uploader     domain.ActorID    `json:"uploader"`
	Verified     bool              `json:"verified"`
}

type CertificateVerified struct {
	Student  domain.ActorID `json:"student"`
	Index    int            `json:"index"`
	Verifier domain.ActorID `json:"verifier"`
}

type AccessGranted struct {
	Owner   domain.ActorID `json:"owner"`
	Grantee domain.ActorID `json:"grantee"`
	Expiry  time.Time      `json:"expiry"`
}

type AccessRevoked struct {
	Owner   domain.ActorID `json:"owner"`
	Grantee domain.ActorID `json:"grantee"`
}

func (ProfileCreated) EventType() Type      { return TypeProfileCreated }
func (ProfileUpdated) EventType() Type      { return TypeProfileUpdated }
func (StudentLinked) EventType() Type       { return TypeStudentLinked }
func (TransferRequested) EventType() Type   { return TypeTransferRequested }
func (TransferApproved) EventType() Type    { return TypeTransferApproved }
func (CertificateUploaded) EventType() Type { return TypeCertificateUploaded }
func (CertificateVerified) EventType() Type { return TypeCertificateVerified }
func (AccessGranted) EventType() Type       { return TypeAccessGranted }
func (AccessRevoked) EventType() Type       { return TypeAccessRevoked }

func (p ProfileCreated) Subject() domain.ActorID      { return p.Actor }
func (p ProfileUpdated) Subject() domain.ActorID      { return p.Actor }
func (p StudentLinked) Subject() domain.ActorID       { return p.Student }
func (p TransferRequested) Subject() domain.ActorID   { return p.Student }
func (p TransferApproved) Subject() domain.ActorID    { return p.Student }
func (p CertificateUploaded) Subject() domain.ActorID { return p.Student }
func (p CertificateVerified) Subject() domain.ActorID { return p.Student }
func (p AccessGranted) Subject() domain.ActorID       { return p.Owner }
func (p AccessRevoked) Subject() domain.ActorID       { return p.Owner }

// DecodePayload rebuilds a typed payload from its stored JSON body.
func DecodePayload(t Type, raw []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch t {
	case TypeProfileCreated:
		p, err = decodeAs[ProfileCreated](raw)
	case TypeProfileUpdated:
		p, err = decodeAs[ProfileUpdated](raw)
	case TypeStudentLinked:
		p, err = decodeAs[StudentLinked](raw)
	case TypeTransferRequested:
		p, err = decodeAs[TransferRequested](raw)
	case TypeTransferApproved:
		p, err = decodeAs[TransferApproved](raw)
	case TypeCertificateUploaded:
		p, err = decodeAs[CertificateUploaded](raw)
	case TypeCertificateVerified:
		p, err = decodeAs[CertificateVerified](raw)
	case TypeAccessGranted:
		p, err = decodeAs[AccessGranted](raw)
	case TypeAccessRevoked:
		p, err = decodeAs[AccessRevoked](raw)
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return p, nil
}

func decodeAs[T Payload](raw []byte) (Payload, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Envelope is the relay wire format.
type Envelope struct {
	Seq        int64           `json:"seq"`
	Type       Type            `json:"type"`
	Subject    domain.ActorID  `json:"subject"`
	RequestID  string          `json:"request_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// MarshalEnvelope encodes an event for publication.
func MarshalEnvelope(e *Event) ([]byte, error) {
	body, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", e.Type, err)
	}
	return json.Marshal(Envelope{
		Seq:        e.Seq,
		Type:       e.Type,
		Subject:    e.Subject,
		RequestID:  e.RequestID,
		OccurredAt: e.OccurredAt,
		Payload:    body,
	})
}

// UnmarshalEnvelope decodes a published event.
func UnmarshalEnvelope(raw []byte) (*Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	p, err := DecodePayload(env.Type, env.Payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Seq:        env.Seq,
		Type:       env.Type,
		Subject:    env.Subject,
		Payload:    p,
		RequestID:  env.RequestID,
		OccurredAt: env.OccurredAt,
	}, nil
}
