package code

import (
	"strings"

	"sigil/internal/session/models"
)

// Key prefixes for the two block kinds. Blocks are independent per purpose:
// exhausting phone codes during registration never blocks sign-in MFA.
const (
	generationBlockPrefix = "code-request-blocked:"
	attemptsBlockPrefix   = "code-attempts-blocked:"
)

// PurposeKey is the single place a (channel, journey type) pair becomes a
// storage key segment. Generation, validation, and blocking all go through
// it so the same purpose can never land under two spellings.
func PurposeKey(p models.Purpose) string {
	return string(p.Channel) + "/" + string(p.Journey)
}

// GenerationBlockKey scopes a generation block to one purpose.
func GenerationBlockKey(p models.Purpose) string {
	return generationBlockPrefix + PurposeKey(p)
}

// AttemptsBlockKey scopes a validation-attempts block to one purpose.
func AttemptsBlockKey(p models.Purpose) string {
	return attemptsBlockPrefix + PurposeKey(p)
}

// SanitizeIdentity escapes delimiter characters in identities so a
// user-controlled value containing ':' cannot address an adjacent key.
func SanitizeIdentity(identity string) string {
	return strings.ReplaceAll(identity, ":", "_")
}
