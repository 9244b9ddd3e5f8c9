// Package token issues the artifacts a completed journey hands back to the
// relying party: a single-use authorization code and the signed tokens it
// exchanges for.
package token

import (
	"time"

	"sigil/internal/session/models"
	id "sigil/pkg/domain"
)

// AuthorizationCode is the single-use grant minted when a journey reaches
// its authenticated state.
type AuthorizationCode struct {
	Code        string
	SessionID   id.SessionID
	UserID      id.UserID
	ClientID    id.ClientID
	PairwiseID  string
	RedirectURI string
	TrustLevel  models.CredentialTrustLevel
	ExpiresAt   time.Time
	Used        bool
}

// TokenSet is the response of a successful code exchange.
type TokenSet struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}
