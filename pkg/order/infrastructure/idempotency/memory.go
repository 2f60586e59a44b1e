package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	orderID   uuid.UUID
	expiresAt time.Time
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry), now: time.Now}
}

func (s *MemoryStore) Reserve(_ context.Context, key string, ttl time.Duration) (uuid.UUID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && s.now().Before(e.expiresAt) {
		if e.orderID == uuid.Nil {
			return uuid.Nil, false, ErrInProgress
		}
		return e.orderID, false, nil
	}
	s.entries[key] = entry{expiresAt: s.now().Add(ttl)}
	return uuid.Nil, true, nil
}

func (s *MemoryStore) Complete(_ context.Context, key string, orderID uuid.UUID, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry{orderID: orderID, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}
