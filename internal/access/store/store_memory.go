package store

import (
	"context"
	"slices"
	"sync"

	"ecertify/internal/access/models"
	"ecertify/internal/sentinel"
	"ecertify/pkg/domain"
	txcontext "ecertify/pkg/platform/tx"
)

type grantKey struct {
	owner   domain.ActorID
	grantee domain.ActorID
}

// InMemoryStore keeps grants keyed by (owner, grantee) plus, per grantee, the
// owners in the order their grant was first created.
type InMemoryStore struct {
	mu      sync.RWMutex
	grants  map[grantKey]*models.Grant
	byGrant map[domain.ActorID][]domain.ActorID
}

// NewInMemory constructs an empty in-memory grant store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		grants:  make(map[grantKey]*models.Grant),
		byGrant: make(map[domain.ActorID][]domain.ActorID),
	}
}

// Put creates or overwrites a grant. Overwriting keeps the grant's position.
func (s *InMemoryStore) Put(ctx context.Context, g *models.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := grantKey{owner: g.Owner, grantee: g.Grantee}
	previous, had := s.grants[key]
	stored := *g
	s.grants[key] = &stored
	if !had {
		s.byGrant[g.Grantee] = append(s.byGrant[g.Grantee], g.Owner)
	}

	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if had {
			s.grants[key] = previous
			return
		}
		delete(s.grants, key)
		s.removeOwner(key.grantee, key.owner)
	})
	return nil
}

// Delete removes a grant. Deleting a missing grant is not an error.
func (s *InMemoryStore) Delete(ctx context.Context, owner, grantee domain.ActorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := grantKey{owner: owner, grantee: grantee}
	previous, ok := s.grants[key]
	if !ok {
		return nil
	}
	position := slices.Index(s.byGrant[grantee], owner)
	delete(s.grants, key)
	s.removeOwner(grantee, owner)

	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.grants[key] = previous
		s.byGrant[grantee] = slices.Insert(s.byGrant[grantee], position, owner)
	})
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, owner, grantee domain.ActorID) (*models.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grants[grantKey{owner: owner, grantee: grantee}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *g
	return &copied, nil
}

// ListByGrantee returns every stored grant naming grantee, expired or not,
// in grant order.
func (s *InMemoryStore) ListByGrantee(_ context.Context, grantee domain.ActorID) ([]*models.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owners := s.byGrant[grantee]
	out := make([]*models.Grant, 0, len(owners))
	for _, owner := range owners {
		copied := *s.grants[grantKey{owner: owner, grantee: grantee}]
		out = append(out, &copied)
	}
	return out, nil
}

func (s *InMemoryStore) removeOwner(grantee, owner domain.ActorID) {
	owners := s.byGrant[grantee]
	if i := slices.Index(owners, owner); i >= 0 {
		s.byGrant[grantee] = slices.Delete(owners, i, i+1)
	}
	if len(s.byGrant[grantee]) == 0 {
		delete(s.byGrant, grantee)
	}
}
