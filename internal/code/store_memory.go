package code

import (
	"context"
	"sync"
	"time"

	"sigil/internal/session/models"
	"sigil/pkg/platform/sentinel"
)

// InMemoryStore backs the policy engine for development and unit tests.
// All counter mutations happen under one lock, matching the atomicity the
// Store contract demands.
type InMemoryStore struct {
	mu          sync.Mutex
	codes       map[string]codeEntry
	blocks      map[string]time.Time
	attempts    map[string]int
	generations map[string]int
	now         func() time.Time
}

type codeEntry struct {
	code      string
	expiresAt time.Time
}

type InMemoryOption func(*InMemoryStore)

// WithStoreClock overrides the store clock, for expiry tests.
func WithStoreClock(now func() time.Time) InMemoryOption {
	return func(s *InMemoryStore) { s.now = now }
}

func NewInMemoryStore(opts ...InMemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		codes:       make(map[string]codeEntry),
		blocks:      make(map[string]time.Time),
		attempts:    make(map[string]int),
		generations: make(map[string]int),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Get(ctx context.Context, identity string, purpose models.Purpose) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.codes[s.codeKey(identity, purpose)]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	if s.now().After(entry.expiresAt) {
		delete(s.codes, s.codeKey(identity, purpose))
		return "", sentinel.ErrNotFound
	}
	return entry.code, nil
}

func (s *InMemoryStore) Save(ctx context.Context, identity string, purpose models.Purpose, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[s.codeKey(identity, purpose)] = codeEntry{code: code, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, identity string, purpose models.Purpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, s.codeKey(identity, purpose))
	return nil
}

func (s *InMemoryStore) IsBlocked(ctx context.Context, identity, blockKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.blocks[s.blockMapKey(identity, blockKey)]
	if !ok {
		return false, nil
	}
	if s.now().After(until) {
		delete(s.blocks, s.blockMapKey(identity, blockKey))
		return false, nil
	}
	return true, nil
}

func (s *InMemoryStore) SaveBlocked(ctx context.Context, identity, blockKey string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[s.blockMapKey(identity, blockKey)] = s.now().Add(ttl)
	return nil
}

func (s *InMemoryStore) IncrementAttempts(ctx context.Context, identity string, purpose models.Purpose) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.counterKey("attempts", identity, purpose)
	s.attempts[key]++
	return s.attempts[key], nil
}

func (s *InMemoryStore) ResetAttempts(ctx context.Context, identity string, purpose models.Purpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, s.counterKey("attempts", identity, purpose))
	return nil
}

func (s *InMemoryStore) IncrementGenerations(ctx context.Context, identity string, purpose models.Purpose) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.counterKey("generations", identity, purpose)
	s.generations[key]++
	return s.generations[key], nil
}

func (s *InMemoryStore) ResetGenerations(ctx context.Context, identity string, purpose models.Purpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.generations, s.counterKey("generations", identity, purpose))
	return nil
}

func (s *InMemoryStore) codeKey(identity string, purpose models.Purpose) string {
	return SanitizeIdentity(identity) + ":" + PurposeKey(purpose)
}

func (s *InMemoryStore) blockMapKey(identity, blockKey string) string {
	return SanitizeIdentity(identity) + ":" + blockKey
}

func (s *InMemoryStore) counterKey(kind, identity string, purpose models.Purpose) string {
	return kind + ":" + SanitizeIdentity(identity) + ":" + PurposeKey(purpose)
}
