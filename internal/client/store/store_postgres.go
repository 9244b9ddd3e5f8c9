package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"sigil/internal/client/models"
	id "sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

// PostgresStore persists clients in PostgreSQL via database/sql.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, client *models.Client) error {
	query := `
		INSERT INTO clients (id, name, redirect_uris, requires_mfa, consent_required, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		client.ID.String(),
		client.Name,
		pq.Array(client.RedirectURIs),
		client.RequiresMFA,
		client.ConsentRequired,
		client.Active,
		client.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, clientID id.ClientID) (*models.Client, error) {
	query := `
		SELECT id, name, redirect_uris, requires_mfa, consent_required, active, created_at
		FROM clients
		WHERE id = $1
	`
	var (
		client models.Client
		rawID  string
	)
	err := s.db.QueryRowContext(ctx, query, clientID.String()).Scan(
		&rawID,
		&client.Name,
		pq.Array(&client.RedirectURIs),
		&client.RequiresMFA,
		&client.ConsentRequired,
		&client.Active,
		&client.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find client: %w", err)
	}
	parsed, err := id.ParseClientID(rawID)
	if err != nil {
		return nil, fmt.Errorf("decode client id: %w", err)
	}
	client.ID = parsed
	return &client, nil
}
