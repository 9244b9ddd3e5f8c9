package models

import (
	"time"

	id "sigil/pkg/domain"
)

// User is the stored account profile. Password verification lives in the
// credentials helper, not here; the journey guards only read these fields.
type User struct {
	ID                   id.UserID `json:"id"`
	Email                string    `json:"email"`
	GivenName            string    `json:"given_name,omitempty"`
	FamilyName           string    `json:"family_name,omitempty"`
	PhoneNumber          string    `json:"phone_number,omitempty"`
	PhoneNumberVerified  bool      `json:"phone_number_verified"`
	AcceptedTermsVersion string    `json:"accepted_terms_version"`
	MFAMethod            string    `json:"mfa_method,omitempty"`
	AuthAppSecret        string    `json:"auth_app_secret,omitempty"`
	PasswordHash         string    `json:"-"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}
