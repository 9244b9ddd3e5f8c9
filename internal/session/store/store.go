package store

import (
	"context"

	"sigil/internal/session/models"
	id "sigil/pkg/domain"
)

// Store persists journey sessions keyed by session id with a bounded
// lifetime. Implementations return sentinel.ErrNotFound for missing or
// expired records; callers cannot tell the two apart.
type Store interface {
	Read(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) error
}
