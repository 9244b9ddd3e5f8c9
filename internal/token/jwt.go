package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"sigil/internal/session/models"
	dErrors "sigil/pkg/domain-errors"
)

// Claims are the signed claims of both token kinds. The subject is the
// pairwise identifier, never the account id.
type Claims struct {
	SessionID  string `json:"session_id"`
	ClientID   string `json:"client_id"`
	TrustLevel string `json:"trust_level,omitempty"`
	jwt.RegisteredClaims
}

// JWTService signs and validates tokens with a shared HMAC key.
type JWTService struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

func NewJWTService(signingKey, issuer string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		now:        time.Now,
	}
}

// Sign mints a token for the authorization code being exchanged. audience is
// the client the token is for.
func (s *JWTService) Sign(grant *AuthorizationCode, lifetime time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		SessionID:  grant.SessionID.String(),
		ClientID:   grant.ClientID.String(),
		TrustLevel: string(grant.TrustLevel),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   grant.PairwiseID,
			Issuer:    s.issuer,
			Audience:  []string{grant.ClientID.String()},
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// Validate parses and verifies a token string.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// TrustLevel reads the trust vector claim back into its domain type.
func (c *Claims) CredentialTrustLevel() models.CredentialTrustLevel {
	return models.CredentialTrustLevel(c.TrustLevel)
}
