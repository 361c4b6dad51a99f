package handler

import (
	"encoding/json"
	"fmt"
	"time"

	accessmodels "ecertify/internal/access/models"
	certmodels "ecertify/internal/certificate/models"
	"ecertify/internal/events"
	idmodels "ecertify/internal/identity/models"
	linkmodels "ecertify/internal/linkage/models"
	"ecertify/pkg/domain"
)

type profileResponse struct {
	Address    domain.ActorID `json:"address"`
	Registered bool           `json:"registered"`
	Name       string         `json:"name,omitempty"`
	AvatarRef  string         `json:"avatar_ref,omitempty"`
	Role       string         `json:"role,omitempty"`
	CreatedAt  *time.Time     `json:"created_at,omitempty"`
	UpdatedAt  *time.Time     `json:"updated_at,omitempty"`
}

func toProfileResponse(p *idmodels.Profile) profileResponse {
	resp := profileResponse{Address: p.Actor, Registered: p.Exists}
	if !p.Exists {
		return resp
	}
	created, updated := p.CreatedAt, p.UpdatedAt
	resp.Name = p.Name
	resp.AvatarRef = p.AvatarRef
	resp.Role = string(p.Role)
	resp.CreatedAt = &created
	resp.UpdatedAt = &updated
	return resp
}

type instituteResponse struct {
	Student   domain.ActorID  `json:"student"`
	Linked    bool            `json:"linked"`
	Institute *domain.ActorID `json:"institute,omitempty"`
}

type transferResponse struct {
	Student     domain.ActorID  `json:"student"`
	Pending     bool            `json:"pending"`
	Target      *domain.ActorID `json:"new_institute,omitempty"`
	RequestedAt *time.Time      `json:"requested_at,omitempty"`
}

func toTransferResponse(req *linkmodels.TransferRequest) transferResponse {
	resp := transferResponse{Student: req.Student, Pending: req.Pending}
	if req.Pending {
		target, at := req.Target, req.RequestedAt
		resp.Target = &target
		resp.RequestedAt = &at
	}
	return resp
}

type studentsResponse struct {
	Students []domain.ActorID `json:"students"`
}

type certificateResponse struct {
	Student      domain.ActorID  `json:"student"`
	Index        int             `json:"index"`
	ContentRef   string          `json:"content_ref"`
	DocumentName string          `json:"document_name"`
	Uploader     domain.ActorID  `json:"uploader"`
	Verified     bool            `json:"verified"`
	Verifier     *domain.ActorID `json:"verifier,omitempty"`
	UploadedAt   time.Time       `json:"uploaded_at"`
	VerifiedAt   *time.Time      `json:"verified_at,omitempty"`
}

func toCertificateResponse(c *certmodels.Certificate) certificateResponse {
	resp := certificateResponse{
		Student:      c.Student,
		Index:        c.Index,
		ContentRef:   c.ContentRef.String(),
		DocumentName: c.DocumentName,
		Uploader:     c.Uploader,
		Verified:     c.Verified,
		UploadedAt:   c.UploadedAt,
		VerifiedAt:   c.VerifiedAt,
	}
	if c.Verified {
		verifier := c.Verifier
		resp.Verifier = &verifier
	}
	return resp
}

type certificatesResponse struct {
	Certificates []certificateResponse `json:"certificates"`
}

func toCertificatesResponse(list []*certmodels.Certificate) certificatesResponse {
	out := make([]certificateResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toCertificateResponse(c))
	}
	return certificatesResponse{Certificates: out}
}

type pendingUpload struct {
	Student domain.ActorID `json:"student"`
	Index   int            `json:"index"`
}

type pendingResponse struct {
	Pending []pendingUpload `json:"pending"`
}

func toPendingResponse(list []certmodels.PendingUpload) pendingResponse {
	out := make([]pendingUpload, 0, len(list))
	for _, p := range list {
		out = append(out, pendingUpload{Student: p.Student, Index: p.Index})
	}
	return pendingResponse{Pending: out}
}

type grantResponse struct {
	Owner   domain.ActorID `json:"owner"`
	Grantee domain.ActorID `json:"grantee"`
	Expiry  time.Time      `json:"expiry"`
}

func toGrantResponse(g *accessmodels.Grant) grantResponse {
	return grantResponse{Owner: g.Owner, Grantee: g.Grantee, Expiry: g.Expiry}
}

type accessResponse struct {
	Owner     domain.ActorID `json:"owner"`
	Requester domain.ActorID `json:"requester"`
	HasAccess bool           `json:"has_access"`
	Expiry    *time.Time     `json:"grant_expiry,omitempty"`
}

type eventsResponse struct {
	Events  []events.Envelope `json:"events"`
	NextSeq int64             `json:"next_after"`
}

func toEventsResponse(list []*events.Event, after int64) (eventsResponse, error) {
	out := make([]events.Envelope, 0, len(list))
	next := after
	for _, e := range list {
		body, err := json.Marshal(e.Payload)
		if err != nil {
			return eventsResponse{}, fmt.Errorf("encode %s payload: %w", e.Type, err)
		}
		out = append(out, events.Envelope{
			Seq:        e.Seq,
			Type:       e.Type,
			Subject:    e.Subject,
			RequestID:  e.RequestID,
			OccurredAt: e.OccurredAt,
			Payload:    body,
		})
		next = e.Seq
	}
	return eventsResponse{Events: out, NextSeq: next}, nil
}
