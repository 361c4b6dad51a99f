package store

import (
	"context"
	"sync"
	"time"

	"ecertify/internal/certificate/models"
	"ecertify/internal/sentinel"
	"ecertify/pkg/domain"
	txcontext "ecertify/pkg/platform/tx"
)

// InMemoryStore keeps each student's certificates in upload order.
type InMemoryStore struct {
	mu           sync.RWMutex
	certificates map[domain.ActorID][]*models.Certificate
}

// NewInMemory constructs an empty in-memory certificate store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{certificates: make(map[domain.ActorID][]*models.Certificate)}
}

// Append stores c at the next index for its student and returns that index.
func (s *InMemoryStore) Append(ctx context.Context, c *models.Certificate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.certificates[c.Student]
	stored := *c
	stored.Index = len(list)
	s.certificates[c.Student] = append(list, &stored)

	student := c.Student
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		list := s.certificates[student]
		s.certificates[student] = list[:len(list)-1]
	})
	return stored.Index, nil
}

func (s *InMemoryStore) FindByIndex(_ context.Context, student domain.ActorID, index int) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.certificates[student]
	if index < 0 || index >= len(list) {
		return nil, sentinel.ErrNotFound
	}
	copied := *list[index]
	return &copied, nil
}

func (s *InMemoryStore) Count(_ context.Context, student domain.ActorID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.certificates[student]), nil
}

func (s *InMemoryStore) MarkVerified(ctx context.Context, student domain.ActorID, index int, verifier domain.ActorID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.certificates[student]
	if index < 0 || index >= len(list) {
		return sentinel.ErrNotFound
	}
	c := list[index]
	if c.Verified {
		return sentinel.ErrInvalidState
	}
	verifiedAt := at
	c.Verified = true
	c.Verifier = verifier
	c.VerifiedAt = &verifiedAt

	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		c.Verified = false
		c.Verifier = domain.ZeroActor
		c.VerifiedAt = nil
	})
	return nil
}

func (s *InMemoryStore) ListByStudent(_ context.Context, student domain.ActorID) ([]*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.certificates[student]
	out := make([]*models.Certificate, 0, len(list))
	for _, c := range list {
		copied := *c
		out = append(out, &copied)
	}
	return out, nil
}
