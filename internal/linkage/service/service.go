// Package service implements institute linkage and the two-phase transfer
// protocol: a student requests a move, the current institute approves it.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ecertify/internal/events"
	idmodels "ecertify/internal/identity/models"
	"ecertify/internal/linkage/models"
	"ecertify/internal/sentinel"
	"ecertify/pkg/domain"
	dErrors "ecertify/pkg/domain-errors"
	"ecertify/pkg/requestcontext"
)

// Store persists linkages and transfer requests.
// Error contract:
//   - CurrentInstitute returns the zero address for unlinked students
//   - Link returns sentinel.ErrAlreadyUsed when the student is already linked
//   - Move returns sentinel.ErrInvalidState when the student is not linked to from
//   - FindRequest returns sentinel.ErrNotFound when nothing is pending
type Store interface {
	CurrentInstitute(ctx context.Context, student domain.ActorID) (domain.ActorID, error)
	Link(ctx context.Context, student, institute domain.ActorID, at time.Time) error
	Move(ctx context.Context, student, from, to domain.ActorID, at time.Time) error
	ListStudents(ctx context.Context, institute domain.ActorID) ([]domain.ActorID, error)
	SaveRequest(ctx context.Context, req *models.TransferRequest) error
	FindRequest(ctx context.Context, student domain.ActorID) (*models.TransferRequest, error)
	DeleteRequest(ctx context.Context, student domain.ActorID) error
}

// ProfileReader resolves actor roles.
type ProfileReader interface {
	GetProfile(ctx context.Context, actor domain.ActorID) (*idmodels.Profile, error)
}

// Emitter appends ledger events inside the caller's transaction.
type Emitter interface {
	Emit(ctx context.Context, p events.Payload) error
}

type Option func(*Manager)

// WithLogger sets the logger instance for the manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// Manager owns the student ⇄ institute relationship.
type Manager struct {
	store    Store
	profiles ProfileReader
	emitter  Emitter
	logger   *slog.Logger
}

func NewManager(store Store, profiles ProfileReader, emitter Emitter, opts ...Option) *Manager {
	m := &Manager{store: store, profiles: profiles, emitter: emitter}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LinkToInstitute links an unlinked student to a registered institute.
func (m *Manager) LinkToInstitute(ctx context.Context, caller, institute domain.ActorID) error {
	if err := m.requireStudent(ctx, caller); err != nil {
		return err
	}
	if err := m.requireInstitute(ctx, institute); err != nil {
		return err
	}
	current, err := m.CurrentInstitute(ctx, caller)
	if err != nil {
		return err
	}
	if !current.IsZero() {
		return dErrors.New(dErrors.CodeAlreadyLinked, "student is already linked to an institute")
	}

	if err := m.store.Link(ctx, caller, institute, requestcontext.Now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return dErrors.New(dErrors.CodeAlreadyLinked, "student is already linked to an institute")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to link student")
	}
	if err := m.emitter.Emit(ctx, events.StudentLinked{Student: caller, Institute: institute}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record linkage")
	}
	m.logInfo(ctx, "student linked", "student", caller.String(), "institute", institute.String())
	return nil
}

// RequestInstituteChange records a pending transfer. A newer request replaces
// any pending one.
func (m *Manager) RequestInstituteChange(ctx context.Context, caller, newInstitute domain.ActorID) error {
	if err := m.requireStudent(ctx, caller); err != nil {
		return err
	}
	current, err := m.CurrentInstitute(ctx, caller)
	if err != nil {
		return err
	}
	if current.IsZero() {
		return dErrors.New(dErrors.CodeNotLinked, "student is not linked to an institute")
	}
	if err := m.requireInstitute(ctx, newInstitute); err != nil {
		return err
	}
	if newInstitute == current {
		return dErrors.New(dErrors.CodeSameInstitute, "student is already linked to this institute")
	}

	req := &models.TransferRequest{
		Student:     caller,
		Target:      newInstitute,
		RequestedAt: requestcontext.Now(ctx),
		Pending:     true,
	}
	if err := m.store.SaveRequest(ctx, req); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save transfer request")
	}
	if err := m.emitter.Emit(ctx, events.TransferRequested{Student: caller, NewInstitute: newInstitute}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record transfer request")
	}
	return nil
}

// ApproveInstituteChange moves the student to the requested institute. Only
// the student's current institute may approve. Certificates are not touched.
func (m *Manager) ApproveInstituteChange(ctx context.Context, caller, student domain.ActorID) error {
	current, err := m.CurrentInstitute(ctx, student)
	if err != nil {
		return err
	}
	if current.IsZero() || current != caller {
		return dErrors.New(dErrors.CodeUnauthorized, "only the student's current institute can approve a transfer")
	}
	req, err := m.store.FindRequest(ctx, student)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNoPendingRequest, "no pending transfer request")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read transfer request")
	}

	if err := m.store.Move(ctx, student, current, req.Target, requestcontext.Now(ctx)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to move student")
	}
	if err := m.store.DeleteRequest(ctx, student); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear transfer request")
	}
	if err := m.emitter.Emit(ctx, events.TransferApproved{
		Student:      student,
		OldInstitute: current,
		NewInstitute: req.Target,
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record transfer approval")
	}
	m.logInfo(ctx, "transfer approved",
		"student", student.String(),
		"from", current.String(),
		"to", req.Target.String(),
	)
	return nil
}

// CurrentInstitute is the single accessor other components use for "the
// student's linked institute". Zero when unlinked.
func (m *Manager) CurrentInstitute(ctx context.Context, student domain.ActorID) (domain.ActorID, error) {
	institute, err := m.store.CurrentInstitute(ctx, student)
	if err != nil {
		return domain.ZeroActor, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read linkage")
	}
	return institute, nil
}

// GetInstituteStudents lists linked students in link order.
func (m *Manager) GetInstituteStudents(ctx context.Context, institute domain.ActorID) ([]domain.ActorID, error) {
	students, err := m.store.ListStudents(ctx, institute)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list students")
	}
	if students == nil {
		students = []domain.ActorID{}
	}
	return students, nil
}

// GetInstituteChangeRequest returns the pending request, or a zero request
// with Pending=false.
func (m *Manager) GetInstituteChangeRequest(ctx context.Context, student domain.ActorID) (*models.TransferRequest, error) {
	req, err := m.store.FindRequest(ctx, student)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &models.TransferRequest{Student: student}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read transfer request")
	}
	return req, nil
}

func (m *Manager) requireStudent(ctx context.Context, actor domain.ActorID) error {
	p, err := m.profiles.GetProfile(ctx, actor)
	if err != nil {
		return err
	}
	if !p.IsStudent() {
		return dErrors.New(dErrors.CodeOnlyStudent, "caller must be a registered student")
	}
	return nil
}

func (m *Manager) requireInstitute(ctx context.Context, actor domain.ActorID) error {
	p, err := m.profiles.GetProfile(ctx, actor)
	if err != nil {
		return err
	}
	if !p.IsInstitute() {
		return dErrors.New(dErrors.CodeInvalidTarget, "target must be a registered institute")
	}
	return nil
}

func (m *Manager) logInfo(ctx context.Context, msg string, args ...any) {
	if m.logger == nil {
		return
	}
	args = append(args, "request_id", requestcontext.RequestID(ctx))
	m.logger.InfoContext(ctx, msg, args...)
}
