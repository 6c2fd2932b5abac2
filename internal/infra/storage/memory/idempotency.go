package memory

import (
	"context"
	"sync"
	"time"

	"storefront/internal/app/middleware"
)

// IdempotencyStore keeps command outcomes in memory. Records older than ttl
// are treated as absent.
type IdempotencyStore struct {
	mu    sync.RWMutex
	items map[string]middleware.IdempotencyRecord
	ttl   time.Duration
	now   func() time.Time
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{items: make(map[string]middleware.IdempotencyRecord), ttl: ttl, now: time.Now}
}

func (s *IdempotencyStore) Get(_ context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[key]
	if !ok || s.expired(rec) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	return rec, true, nil
}

func (s *IdempotencyStore) Save(_ context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[rec.Key] = rec
	for key, existing := range s.items {
		if s.expired(existing) {
			delete(s.items, key)
		}
	}
	return nil
}

func (s *IdempotencyStore) expired(rec middleware.IdempotencyRecord) bool {
	return s.ttl > 0 && s.now().Sub(rec.OccurredAt) > s.ttl
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
