package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ecertify/internal/events"
	"ecertify/internal/sentinel"
	txcontext "ecertify/pkg/platform/tx"
)

// InMemoryStore keeps the event log in a slice ordered by sequence.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []*events.Event
	seq    int64
}

// NewInMemory constructs an empty in-memory event store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(ctx context.Context, e *events.Event) error {
	if e == nil || e.Payload == nil {
		return fmt.Errorf("event payload is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	e.Seq = s.seq
	stored := *e
	s.events = append(s.events, &stored)

	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.events = s.events[:len(s.events)-1]
		s.seq--
	})
	return nil
}

func (s *InMemoryStore) ListAfter(_ context.Context, afterSeq int64, limit int) ([]*events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := sort.Search(len(s.events), func(i int) bool {
		return s.events[i].Seq > afterSeq
	})
	end := len(s.events)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	out := make([]*events.Event, 0, end-start)
	for _, e := range s.events[start:end] {
		copied := *e
		out = append(out, &copied)
	}
	return out, nil
}

func (s *InMemoryStore) FetchUnpublished(_ context.Context, limit int) ([]*events.Event, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*events.Event
	for _, e := range s.events {
		if !e.IsPending() {
			continue
		}
		copied := *e
		out = append(out, &copied)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, seq int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.events), func(i int) bool {
		return s.events[i].Seq >= seq
	})
	if i == len(s.events) || s.events[i].Seq != seq {
		return sentinel.ErrNotFound
	}
	if !s.events[i].IsPending() {
		return sentinel.ErrInvalidState
	}
	published := at
	s.events[i].PublishedAt = &published
	return nil
}

func (s *InMemoryStore) CountPending(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.events {
		if e.IsPending() {
			n++
		}
	}
	return n, nil
}
