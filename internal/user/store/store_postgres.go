package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sigil/internal/user/models"
	id "sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

// PostgresStore persists users in PostgreSQL. The store is pure I/O; the
// service owns all account rules.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const userColumns = `id, email, given_name, family_name, phone_number, phone_number_verified, accepted_terms_version, mfa_method, auth_app_secret, password_hash, created_at, updated_at`

func (s *PostgresStore) Save(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			given_name = EXCLUDED.given_name,
			family_name = EXCLUDED.family_name,
			phone_number = EXCLUDED.phone_number,
			phone_number_verified = EXCLUDED.phone_number_verified,
			accepted_terms_version = EXCLUDED.accepted_terms_version,
			mfa_method = EXCLUDED.mfa_method,
			auth_app_secret = EXCLUDED.auth_app_secret,
			password_hash = EXCLUDED.password_hash,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.GivenName,
		user.FamilyName,
		user.PhoneNumber,
		user.PhoneNumberVerified,
		user.AcceptedTermsVersion,
		user.MFAMethod,
		user.AuthAppSecret,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.scanOne(s.pool.QueryRow(ctx, query, userID))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = lower($1)`
	return s.scanOne(s.pool.QueryRow(ctx, query, email))
}

func (s *PostgresStore) scanOne(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.GivenName,
		&user.FamilyName,
		&user.PhoneNumber,
		&user.PhoneNumberVerified,
		&user.AcceptedTermsVersion,
		&user.MFAMethod,
		&user.AuthAppSecret,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}
