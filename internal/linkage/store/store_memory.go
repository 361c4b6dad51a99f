package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"ecertify/internal/linkage/models"
	"ecertify/internal/sentinel"
	"ecertify/pkg/domain"
	txcontext "ecertify/pkg/platform/tx"
)

// InMemoryStore keeps both directions of the linkage plus pending transfer
// requests. Every method updates both directions under one lock so they
// always agree.
type InMemoryStore struct {
	mu                sync.RWMutex
	studentInstitute  map[domain.ActorID]domain.ActorID
	instituteStudents map[domain.ActorID][]domain.ActorID
	requests          map[domain.ActorID]*models.TransferRequest
}

// NewInMemory constructs an empty in-memory linkage store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		studentInstitute:  make(map[domain.ActorID]domain.ActorID),
		instituteStudents: make(map[domain.ActorID][]domain.ActorID),
		requests:          make(map[domain.ActorID]*models.TransferRequest),
	}
}

func (s *InMemoryStore) CurrentInstitute(_ context.Context, student domain.ActorID) (domain.ActorID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.studentInstitute[student], nil
}

func (s *InMemoryStore) Link(ctx context.Context, student, institute domain.ActorID, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.studentInstitute[student]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.attach(student, institute)

	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.detach(student, institute)
	})
	return nil
}

func (s *InMemoryStore) Move(ctx context.Context, student, from, to domain.ActorID, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.studentInstitute[student]; !ok || current != from {
		return sentinel.ErrInvalidState
	}
	position := slices.Index(s.instituteStudents[from], student)
	s.detach(student, from)
	s.attach(student, to)

	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.detach(student, to)
		s.studentInstitute[student] = from
		s.instituteStudents[from] = slices.Insert(s.instituteStudents[from], position, student)
	})
	return nil
}

func (s *InMemoryStore) ListStudents(_ context.Context, institute domain.ActorID) ([]domain.ActorID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.instituteStudents[institute]), nil
}

func (s *InMemoryStore) SaveRequest(ctx context.Context, req *models.TransferRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, had := s.requests[req.Student]
	stored := *req
	s.requests[req.Student] = &stored

	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if had {
			s.requests[req.Student] = previous
			return
		}
		delete(s.requests, req.Student)
	})
	return nil
}

func (s *InMemoryStore) FindRequest(_ context.Context, student domain.ActorID) (*models.TransferRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[student]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *req
	return &copied, nil
}

func (s *InMemoryStore) DeleteRequest(ctx context.Context, student domain.ActorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, ok := s.requests[student]
	if !ok {
		return nil
	}
	delete(s.requests, student)

	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.requests[student] = previous
	})
	return nil
}

func (s *InMemoryStore) attach(student, institute domain.ActorID) {
	s.studentInstitute[student] = institute
	s.instituteStudents[institute] = append(s.instituteStudents[institute], student)
}

func (s *InMemoryStore) detach(student, institute domain.ActorID) {
	delete(s.studentInstitute, student)
	students := s.instituteStudents[institute]
	if i := slices.Index(students, student); i >= 0 {
		s.instituteStudents[institute] = slices.Delete(students, i, i+1)
	}
	if len(s.instituteStudents[institute]) == 0 {
		delete(s.instituteStudents, institute)
	}
}
