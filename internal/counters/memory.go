package counters

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process Store implementation. Expired entries stay
// in the map until the next Sweep; reads treat them as absent, so sweep
// cadence only affects memory, never correctness.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	nowFn   func() time.Time
}

type entry struct {
	value     int64
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
		nowFn:   time.Now,
	}
}

func (s *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	now := s.nowFn()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || now.After(e.expiresAt) {
		s.entries[key] = &entry{value: 1, expiresAt: now.Add(ttl)}
		return 1, nil
	}
	e.value++
	return e.value, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (int64, error) {
	now := s.nowFn()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || now.After(e.expiresAt) {
		return 0, nil
	}
	return e.value, nil
}

func (s *MemoryStore) Expire(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Sweep removes expired entries and returns how many were dropped.
func (s *MemoryStore) Sweep() int {
	now := s.nowFn()

	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
			dropped++
		}
	}
	return dropped
}

// Len reports live map size, expired entries included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
