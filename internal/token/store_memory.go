package token

import (
	"context"
	"sync"
	"time"

	"sigil/pkg/platform/sentinel"
)

// InMemoryCodeStore holds authorization codes for development and tests.
// Consume marks-then-returns under one lock, so single use holds without a
// database.
type InMemoryCodeStore struct {
	mu     sync.Mutex
	grants map[string]*AuthorizationCode
	now    func() time.Time
}

type InMemoryOption func(*InMemoryCodeStore)

func WithStoreClock(now func() time.Time) InMemoryOption {
	return func(s *InMemoryCodeStore) { s.now = now }
}

func NewInMemoryCodeStore(opts ...InMemoryOption) *InMemoryCodeStore {
	s := &InMemoryCodeStore{
		grants: make(map[string]*AuthorizationCode),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryCodeStore) Save(_ context.Context, grant *AuthorizationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *grant
	s.grants[grant.Code] = &copied
	return nil
}

func (s *InMemoryCodeStore) Consume(_ context.Context, code string) (*AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.grants[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if grant.Used {
		return nil, sentinel.ErrAlreadyUsed
	}
	if s.now().After(grant.ExpiresAt) {
		return nil, sentinel.ErrExpired
	}
	grant.Used = true
	copied := *grant
	return &copied, nil
}
