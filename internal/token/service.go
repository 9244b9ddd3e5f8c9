package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sigil/internal/platform/config"
	"sigil/internal/session/models"
	id "sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/platform/sentinel"
)

const accessTokenLifetime = time.Hour

// Service mints authorization codes for completed journeys and exchanges
// them for signed tokens.
type Service struct {
	codes  CodeStore
	jwt    *JWTService
	salt   string
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(codes CodeStore, jwtService *JWTService, cfg config.Config, opts ...Option) (*Service, error) {
	if codes == nil {
		return nil, errors.New("code store is required")
	}
	if jwtService == nil {
		return nil, errors.New("jwt service is required")
	}
	s := &Service{
		codes:  codes,
		jwt:    jwtService,
		salt:   cfg.PairwiseSalt,
		ttl:    cfg.Policy.AuthCodeTTL,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue mints a single-use authorization code for an authenticated session.
// The code carries the pairwise subject, so the exchange step never touches
// the account id.
func (s *Service) Issue(ctx context.Context, session *models.Session, userID id.UserID, clientID id.ClientID, redirectURI string) (*AuthorizationCode, error) {
	if session.State != models.StateAuthenticated {
		return nil, dErrors.New(dErrors.CodeForbidden, "journey is not complete")
	}

	code, err := randomCode()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint code")
	}

	grant := &AuthorizationCode{
		Code:        code,
		SessionID:   session.ID,
		UserID:      userID,
		ClientID:    clientID,
		PairwiseID:  PairwiseSubject(s.salt, clientID, userID),
		RedirectURI: redirectURI,
		TrustLevel:  session.TrustLevel,
		ExpiresAt:   s.now().Add(s.ttl),
	}
	if err := s.codes.Save(ctx, grant); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save authorization code")
	}

	s.logger.InfoContext(ctx, "authorization code issued",
		"session_id", session.ID.String(),
		"client_id", clientID.String(),
	)
	return grant, nil
}

// Exchange consumes an authorization code and returns signed tokens. Expired,
// unknown, and replayed codes all fail with the same unauthorized error.
func (s *Service) Exchange(ctx context.Context, code, redirectURI string) (*TokenSet, error) {
	grant, err := s.codes.Consume(ctx, code)
	switch {
	case errors.Is(err, sentinel.ErrNotFound),
		errors.Is(err, sentinel.ErrExpired),
		errors.Is(err, sentinel.ErrAlreadyUsed):
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid authorization code")
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume authorization code")
	}

	if grant.RedirectURI != redirectURI {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "redirect URI mismatch")
	}

	accessToken, err := s.jwt.Sign(grant, accessTokenLifetime)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign access token")
	}
	idToken, err := s.jwt.Sign(grant, accessTokenLifetime)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign id token")
	}

	return &TokenSet{
		AccessToken: accessToken,
		IDToken:     idToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(accessTokenLifetime.Seconds()),
	}, nil
}

func randomCode() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
