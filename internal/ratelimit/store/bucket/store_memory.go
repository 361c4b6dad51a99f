package bucket

import (
	"context"
	"slices"
	"sync"
	"time"

	"ecertify/internal/ratelimit/models"
	"ecertify/pkg/requestcontext"
)

// InMemoryBucketStore keeps each key's recent hits in process memory. It suits
// a single instance; replicas share budgets through RedisBucketStore.
type InMemoryBucketStore struct {
	mu   sync.Mutex
	hits map[models.Key]*window
}

// window holds hit times oldest first.
type window struct {
	span time.Duration
	at   []time.Time
}

// expire drops hits at or before now-span.
func (w *window) expire(now time.Time) {
	cutoff := now.Add(-w.span)
	keep := slices.IndexFunc(w.at, func(t time.Time) bool { return t.After(cutoff) })
	if keep < 0 {
		w.at = w.at[:0]
		return
	}
	w.at = w.at[keep:]
}

// oldestExpiry is when the next slot frees up.
func (w *window) oldestExpiry(now time.Time) time.Time {
	if len(w.at) == 0 {
		return now.Add(w.span)
	}
	return w.at[0].Add(w.span)
}

func NewInMemoryBucketStore() *InMemoryBucketStore {
	return &InMemoryBucketStore{hits: map[models.Key]*window{}}
}

// AllowN admits cost hits against limit within the trailing window. A denied
// call records nothing. Time comes from requestcontext.Now.
func (s *InMemoryBucketStore) AllowN(ctx context.Context, key models.Key, cost, limit int, span time.Duration) (*models.Result, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.hits[key]
	if w == nil {
		w = &window{span: span}
		s.hits[key] = w
	}
	w.expire(now)

	res := &models.Result{Limit: limit}
	if len(w.at)+cost > limit {
		res.ResetAt = w.oldestExpiry(now)
		res.RetryAfter = models.RetryAfterSeconds(now, res.ResetAt)
		return res, nil
	}
	for range cost {
		w.at = append(w.at, now)
	}
	res.Allowed = true
	res.Remaining = limit - len(w.at)
	res.ResetAt = w.oldestExpiry(now)
	return res, nil
}

func (s *InMemoryBucketStore) Reset(_ context.Context, key models.Key) error {
	s.mu.Lock()
	delete(s.hits, key)
	s.mu.Unlock()
	return nil
}

// CurrentCount is the number of hits still inside key's window.
func (s *InMemoryBucketStore) CurrentCount(ctx context.Context, key models.Key) (int, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.hits[key]
	if w == nil {
		return 0, nil
	}
	w.expire(now)
	return len(w.at), nil
}

// Sweep forgets keys whose windows have emptied and reports how many went.
func (s *InMemoryBucketStore) Sweep(ctx context.Context) int {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.hits)
	for key, w := range s.hits {
		if w.expire(now); len(w.at) == 0 {
			delete(s.hits, key)
		}
	}
	return before - len(s.hits)
}
