package store

import (
	"context"

	"sigil/internal/user/models"
	id "sigil/pkg/domain"
)

// Store persists account profiles. Lookups return sentinel.ErrNotFound for
// unknown users; the service decides what callers may learn about that.
type Store interface {
	Save(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}
