package store

import (
	"context"
	"sync"

	"ecertify/internal/identity/models"
	"ecertify/internal/sentinel"
	"ecertify/pkg/domain"
	txcontext "ecertify/pkg/platform/tx"
)

// InMemoryStore keeps profiles in a map. Mutations register undo steps with
// the transaction journal on ctx.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[domain.ActorID]*models.Profile
}

// NewInMemory constructs an empty in-memory profile store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[domain.ActorID]*models.Profile)}
}

func (s *InMemoryStore) Create(ctx context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.Actor]; ok {
		return sentinel.ErrAlreadyUsed
	}
	stored := *p
	stored.Exists = true
	s.profiles[p.Actor] = &stored

	actor := p.Actor
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.profiles, actor)
	})
	return nil
}

func (s *InMemoryStore) Update(ctx context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.profiles[p.Actor]
	if !ok {
		return sentinel.ErrNotFound
	}
	previous := *existing
	stored := *p
	stored.Exists = true
	s.profiles[p.Actor] = &stored

	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.profiles[previous.Actor] = &previous
	})
	return nil
}

func (s *InMemoryStore) FindByActor(_ context.Context, actor domain.ActorID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[actor]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *p
	return &copied, nil
}
