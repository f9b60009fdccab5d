package signup

import (
	"context"
	"strings"
	"sync"
	"time"

	"beta/cmd/internal/ids"
)

// MemoryStore keeps records in process memory. It is meant for development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	byID    map[string]Record
	byToken map[string]string
	nowF    func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]Record),
		byToken: make(map[string]string),
		nowF:    func() time.Time { return time.Now().UTC() },
	}
}

// Create assigns an id and stores rec.
func (s *MemoryStore) Create(ctx context.Context, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if strings.TrimSpace(rec.VerificationToken) == "" {
		return Record{}, ErrInvalidInput
	}
	id, err := ids.NewULID(s.nowF())
	if err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byToken[rec.VerificationToken]; dup {
		return Record{}, ErrInvalidInput
	}
	rec.ID = id
	s.byID[id] = rec
	s.byToken[rec.VerificationToken] = id
	return rec, nil
}

// FindByToken returns the record holding token.
func (s *MemoryStore) FindByToken(ctx context.Context, token string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byToken[token]
	if !ok {
		return Record{}, ErrNotFound
	}
	return s.byID[id], nil
}

// Patch applies p to the record with id.
func (s *MemoryStore) Patch(ctx context.Context, id string, p Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	s.byID[id] = rec.Apply(p)
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
