// Package ledger composes the identity registry, linkage manager, certificate
// store and access grants into one ledger. Every mutating call runs as one
// atomic unit together with the event it emits.
package ledger

import (
	"context"
	"log/slog"
	"time"

	accessmodels "ecertify/internal/access/models"
	accessservice "ecertify/internal/access/service"
	certmodels "ecertify/internal/certificate/models"
	certservice "ecertify/internal/certificate/service"
	"ecertify/internal/events"
	idmodels "ecertify/internal/identity/models"
	idservice "ecertify/internal/identity/service"
	"ecertify/internal/ledger/metrics"
	linkmodels "ecertify/internal/linkage/models"
	linkservice "ecertify/internal/linkage/service"
	"ecertify/internal/platform/tracer"
	"ecertify/pkg/domain"
	dErrors "ecertify/pkg/domain-errors"
)

type Option func(*Ledger)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// WithTracer sets the tracer used for operation spans.
func WithTracer(t tracer.Tracer) Option {
	return func(l *Ledger) {
		if t != nil {
			l.tracer = t
		}
	}
}

// WithStrictContentRefs rejects uploads whose content reference is not a CID.
func WithStrictContentRefs(strict bool) Option {
	return func(l *Ledger) {
		l.strictRefs = strict
	}
}

// WithTxTimeout overrides the default transaction timeout.
func WithTxTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		l.txTimeout = d
	}
}

// Ledger is an explicit state container; each New call owns its stores.
type Ledger struct {
	tx           StoreTx
	eventStore   events.Store
	log          *events.Log
	registry     *idservice.Registry
	linkage      *linkservice.Manager
	certificates *certservice.Service
	access       *accessservice.Service

	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     tracer.Tracer
	strictRefs bool
	txTimeout  time.Duration
}

// New wires the components over stores.
func New(stores Stores, opts ...Option) *Ledger {
	l := &Ledger{
		tx:         stores.Tx,
		eventStore: stores.Events,
		tracer:     tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	switch tx := l.tx.(type) {
	case *memoryTx:
		tx.metrics = l.metrics
		tx.timeout = l.txTimeout
	case *postgresTx:
		tx.timeout = l.txTimeout
	}

	var logOpts []events.LogOption
	var regOpts []idservice.Option
	var linkOpts []linkservice.Option
	certOpts := []certservice.Option{certservice.WithStrictContentRefs(l.strictRefs)}
	var accessOpts []accessservice.Option
	if l.logger != nil {
		logOpts = append(logOpts, events.WithLogger(l.logger))
		regOpts = append(regOpts, idservice.WithLogger(l.logger))
		linkOpts = append(linkOpts, linkservice.WithLogger(l.logger))
		certOpts = append(certOpts, certservice.WithLogger(l.logger))
		accessOpts = append(accessOpts, accessservice.WithLogger(l.logger))
	}

	l.log = events.NewLog(stores.Events, logOpts...)
	emitter := recordingEmitter{log: l.log}
	l.registry = idservice.NewRegistry(stores.Profiles, emitter, regOpts...)
	l.linkage = linkservice.NewManager(stores.Linkage, l.registry, emitter, linkOpts...)
	l.certificates = certservice.NewService(stores.Certificates, l.linkage, emitter, certOpts...)
	l.access = accessservice.NewService(stores.Grants, l.registry, l.linkage, l.certificates, emitter, accessOpts...)
	return l
}

// NewInMemory is New over a fresh in-memory backend.
func NewInMemory(opts ...Option) *Ledger {
	return New(MemoryStores(), opts...)
}

// Identity registry.

func (l *Ledger) CreateProfile(ctx context.Context, caller domain.ActorID, name, avatarRef string, isInstitute bool) (*idmodels.Profile, error) {
	return mutate(ctx, l, "CreateProfile", caller, func(ctx context.Context) (*idmodels.Profile, error) {
		return l.registry.CreateProfile(ctx, caller, name, avatarRef, isInstitute)
	})
}

func (l *Ledger) UpdateProfile(ctx context.Context, caller domain.ActorID, name, avatarRef string) (*idmodels.Profile, error) {
	return mutate(ctx, l, "UpdateProfile", caller, func(ctx context.Context) (*idmodels.Profile, error) {
		return l.registry.UpdateProfile(ctx, caller, name, avatarRef)
	})
}

func (l *Ledger) GetProfile(ctx context.Context, actor domain.ActorID) (*idmodels.Profile, error) {
	return read(ctx, l, "GetProfile", func(ctx context.Context) (*idmodels.Profile, error) {
		return l.registry.GetProfile(ctx, actor)
	})
}

// Linkage.

func (l *Ledger) LinkToInstitute(ctx context.Context, caller, institute domain.ActorID) error {
	_, err := mutate(ctx, l, "LinkToInstitute", caller, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, l.linkage.LinkToInstitute(ctx, caller, institute)
	})
	return err
}

func (l *Ledger) RequestInstituteChange(ctx context.Context, caller, newInstitute domain.ActorID) error {
	_, err := mutate(ctx, l, "RequestInstituteChange", caller, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, l.linkage.RequestInstituteChange(ctx, caller, newInstitute)
	})
	return err
}

func (l *Ledger) ApproveInstituteChange(ctx context.Context, caller, student domain.ActorID) error {
	_, err := mutate(ctx, l, "ApproveInstituteChange", caller, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, l.linkage.ApproveInstituteChange(ctx, caller, student)
	})
	return err
}

// GetStudentInstitute returns the student's linked institute, zero when unlinked.
func (l *Ledger) GetStudentInstitute(ctx context.Context, student domain.ActorID) (domain.ActorID, error) {
	return read(ctx, l, "GetStudentInstitute", func(ctx context.Context) (domain.ActorID, error) {
		return l.linkage.CurrentInstitute(ctx, student)
	})
}

func (l *Ledger) GetInstituteStudents(ctx context.Context, institute domain.ActorID) ([]domain.ActorID, error) {
	return read(ctx, l, "GetInstituteStudents", func(ctx context.Context) ([]domain.ActorID, error) {
		return l.linkage.GetInstituteStudents(ctx, institute)
	})
}

func (l *Ledger) GetInstituteChangeRequest(ctx context.Context, student domain.ActorID) (*linkmodels.TransferRequest, error) {
	return read(ctx, l, "GetInstituteChangeRequest", func(ctx context.Context) (*linkmodels.TransferRequest, error) {
		return l.linkage.GetInstituteChangeRequest(ctx, student)
	})
}

// Certificates.

func (l *Ledger) UploadCertificate(ctx context.Context, caller, student domain.ActorID, contentRef, documentName string) (*certmodels.Certificate, error) {
	return mutate(ctx, l, "UploadCertificate", caller, func(ctx context.Context) (*certmodels.Certificate, error) {
		return l.certificates.UploadCertificate(ctx, caller, student, contentRef, documentName)
	})
}

func (l *Ledger) VerifyCertificate(ctx context.Context, caller, student domain.ActorID, index int) (*certmodels.Certificate, error) {
	return mutate(ctx, l, "VerifyCertificate", caller, func(ctx context.Context) (*certmodels.Certificate, error) {
		return l.certificates.VerifyCertificate(ctx, caller, student, index)
	})
}

func (l *Ledger) GetStudentCertificates(ctx context.Context, student domain.ActorID) ([]*certmodels.Certificate, error) {
	return read(ctx, l, "GetStudentCertificates", func(ctx context.Context) ([]*certmodels.Certificate, error) {
		return l.certificates.GetStudentCertificates(ctx, student)
	})
}

func (l *Ledger) GetVerifiedCertificates(ctx context.Context, student domain.ActorID) ([]*certmodels.Certificate, error) {
	return read(ctx, l, "GetVerifiedCertificates", func(ctx context.Context) ([]*certmodels.Certificate, error) {
		return l.certificates.GetVerifiedCertificates(ctx, student)
	})
}

func (l *Ledger) GetPendingUploads(ctx context.Context, institute domain.ActorID) ([]certmodels.PendingUpload, error) {
	return read(ctx, l, "GetPendingUploads", func(ctx context.Context) ([]certmodels.PendingUpload, error) {
		return l.certificates.GetPendingUploads(ctx, institute)
	})
}

// Access grants.

func (l *Ledger) GrantAccess(ctx context.Context, caller, grantee domain.ActorID, duration time.Duration) (*accessmodels.Grant, error) {
	return mutate(ctx, l, "GrantAccess", caller, func(ctx context.Context) (*accessmodels.Grant, error) {
		return l.access.GrantAccess(ctx, caller, grantee, duration)
	})
}

func (l *Ledger) RevokeAccess(ctx context.Context, caller, grantee domain.ActorID) error {
	_, err := mutate(ctx, l, "RevokeAccess", caller, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, l.access.RevokeAccess(ctx, caller, grantee)
	})
	return err
}

func (l *Ledger) HasAccess(ctx context.Context, owner, requester domain.ActorID) (bool, error) {
	return read(ctx, l, "HasAccess", func(ctx context.Context) (bool, error) {
		return l.access.HasAccess(ctx, owner, requester)
	})
}

func (l *Ledger) GetStudentsWithAccess(ctx context.Context, requester domain.ActorID) ([]domain.ActorID, error) {
	return read(ctx, l, "GetStudentsWithAccess", func(ctx context.Context) ([]domain.ActorID, error) {
		return l.access.GetStudentsWithAccess(ctx, requester)
	})
}

func (l *Ledger) GetAccessGrant(ctx context.Context, owner, grantee domain.ActorID) (*accessmodels.GrantStatus, error) {
	return read(ctx, l, "GetAccessGrant", func(ctx context.Context) (*accessmodels.GrantStatus, error) {
		return l.access.GetAccessGrant(ctx, owner, grantee)
	})
}

func (l *Ledger) GetVerifiedCertificatesFor(ctx context.Context, requester, owner domain.ActorID) ([]*certmodels.Certificate, error) {
	return read(ctx, l, "GetVerifiedCertificatesFor", func(ctx context.Context) ([]*certmodels.Certificate, error) {
		return l.access.GetVerifiedCertificatesFor(ctx, requester, owner)
	})
}

// Event log.

// Events returns up to limit committed events with Seq > afterSeq. A limit
// of zero or less returns everything.
func (l *Ledger) Events(ctx context.Context, afterSeq int64, limit int) ([]*events.Event, error) {
	return read(ctx, l, "Events", func(ctx context.Context) ([]*events.Event, error) {
		list, err := l.log.List(ctx, afterSeq, limit)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list events")
		}
		if list == nil {
			list = []*events.Event{}
		}
		return list, nil
	})
}

// Outbox exposes the event log to the relay. Its reads and marks go through
// the ledger's transaction boundary so the relay never sees an event whose
// mutation has not committed.
func (l *Ledger) Outbox() events.Store {
	return &outbox{store: l.eventStore, tx: l.tx}
}
