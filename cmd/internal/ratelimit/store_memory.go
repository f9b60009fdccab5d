package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu   sync.Mutex
	m    map[string]memEntry
	nowF func() time.Time
}

type memEntry struct {
	c         Counter
	expiresAt time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]memEntry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Get returns the counter for key if present and not expired.
func (s *MemoryStore) Get(ctx context.Context, key string) (Counter, bool, error) {
	if err := ctx.Err(); err != nil {
		return Counter{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.m[key]
	if !ok {
		return Counter{}, false, nil
	}
	if !e.expiresAt.IsZero() && !e.expiresAt.After(s.nowF()) {
		delete(s.m, key)
		return Counter{}, false, nil
	}
	return e.c, true, nil
}

// Put stores the counter until ttl elapses (ttl <= 0 keeps it forever).
func (s *MemoryStore) Put(ctx context.Context, key string, c Counter, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var exp time.Time
	if ttl > 0 {
		exp = s.nowF().Add(ttl)
	}
	s.mu.Lock()
	s.m[key] = memEntry{c: c, expiresAt: exp}
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored counters, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
