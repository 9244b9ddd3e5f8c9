package store

import (
	"context"

	"sigil/internal/client/models"
	id "sigil/pkg/domain"
)

// Store is the relying-party registry. Journeys and the authorize endpoint
// read it; registration writes happen out of band or at seed time.
type Store interface {
	Create(ctx context.Context, client *models.Client) error
	FindByID(ctx context.Context, clientID id.ClientID) (*models.Client, error)
}
