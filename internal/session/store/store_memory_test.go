package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sigil/internal/session/models"
	id "sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	now   time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s.store = NewInMemory(time.Hour, WithClock(func() time.Time { return s.now }))
}

func (s *InMemoryStoreSuite) TestReadSave() {
	ctx := context.Background()

	s.Run("missing session returns not found", func() {
		_, err := s.store.Read(ctx, id.NewSessionID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("saved session reads back", func() {
		session := models.NewSession(id.NewSessionID())
		s.Require().NoError(s.store.Save(ctx, session))

		got, err := s.store.Read(ctx, session.ID)
		s.NoError(err)
		s.Equal(session.ID, got.ID)
	})

	s.Run("an expired session is indistinguishable from a missing one", func() {
		session := models.NewSession(id.NewSessionID())
		s.Require().NoError(s.store.Save(ctx, session))

		s.now = s.now.Add(time.Hour + time.Second)
		_, err := s.store.Read(ctx, session.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("saving refreshes the lifetime", func() {
		session := models.NewSession(id.NewSessionID())
		s.Require().NoError(s.store.Save(ctx, session))

		s.now = s.now.Add(45 * time.Minute)
		s.Require().NoError(s.store.Save(ctx, session))

		s.now = s.now.Add(45 * time.Minute)
		_, err := s.store.Read(ctx, session.ID)
		s.NoError(err)
	})
}
