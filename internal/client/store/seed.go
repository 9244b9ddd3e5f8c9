package store

import (
	"context"
	"time"

	"sigil/internal/client/models"
	id "sigil/pkg/domain"
)

// SeedDevClients registers the development relying parties: one that is
// satisfied with credentials alone and one that demands MFA and consent, so
// every journey branch is reachable against a fresh process.
func SeedDevClients(s Store) ([]*models.Client, error) {
	now := time.Now()
	clients := []*models.Client{
		{
			ID:           id.NewClientID(),
			Name:         "dev-basic",
			RedirectURIs: []string{"http://localhost:3000/callback"},
			RequiresMFA:  false,
			Active:       true,
			CreatedAt:    now,
		},
		{
			ID:              id.NewClientID(),
			Name:            "dev-strict",
			RedirectURIs:    []string{"http://localhost:3001/callback"},
			RequiresMFA:     true,
			ConsentRequired: true,
			Active:          true,
			CreatedAt:       now,
		},
	}
	for _, c := range clients {
		if err := s.Create(context.Background(), c); err != nil {
			return nil, err
		}
	}
	return clients, nil
}
