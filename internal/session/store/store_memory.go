package store

import (
	"context"
	"sync"
	"time"

	"sigil/internal/session/models"
	id "sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

// InMemoryStore is the development and unit-test session store. Entries
// expire lazily on read; Redis handles eviction in production.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.SessionID]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	session   *models.Session
	expiresAt time.Time
}

type InMemoryOption func(*InMemoryStore)

// WithClock overrides the store's clock, for expiry tests.
func WithClock(now func() time.Time) InMemoryOption {
	return func(s *InMemoryStore) { s.now = now }
}

func NewInMemory(ttl time.Duration, opts ...InMemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		entries: make(map[id.SessionID]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Read(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	entry, ok := s.entries[sessionID]
	s.mu.RUnlock()
	if !ok || s.now().After(entry.expiresAt) {
		return nil, sentinel.ErrNotFound
	}
	return entry.session, nil
}

func (s *InMemoryStore) Save(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[session.ID] = memoryEntry{session: session, expiresAt: s.now().Add(s.ttl)}
	return nil
}
