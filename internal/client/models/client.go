package models

import (
	"time"

	id "sigil/pkg/domain"
)

// Client is a registered relying party. Registration validation rules are
// out of scope; journeys only read the flags that gate transitions.
type Client struct {
	ID           id.ClientID `json:"id"`
	Name         string      `json:"name"`
	RedirectURIs []string    `json:"redirect_uris"`
	// RequiresMFA forces a second factor for every sign-in through this
	// client. When false the journey may finish on credentials alone.
	RequiresMFA bool `json:"requires_mfa"`
	// ConsentRequired gates authorization on an explicit consent step.
	ConsentRequired bool      `json:"consent_required"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}
