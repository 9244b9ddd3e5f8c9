package code

import (
	dErrors "sigil/pkg/domain-errors"

	"sigil/internal/session/models"
)

// Outcome classifies one generation or validation call.
type Outcome string

const (
	OutcomeValid Outcome = "valid"
	// OutcomeInvalid covers mismatched, expired, and never-issued codes
	// alike. Collapsing them is deliberate: a caller probing the API cannot
	// learn whether a code ever existed for an identity.
	OutcomeInvalid Outcome = "invalid"
	// OutcomeInvalidMaxRetries is the invalid attempt that hit the cap. It
	// is distinct from OutcomeBlocked so callers can show the "you have been
	// locked out" message exactly once.
	OutcomeInvalidMaxRetries Outcome = "invalid_max_retries"
	// OutcomeBlocked short-circuits: a block is in effect and no attempt was
	// consumed.
	OutcomeBlocked Outcome = "blocked"

	OutcomeSent              Outcome = "sent"
	OutcomeMaxCodesRequested Outcome = "max_codes_requested"
	OutcomeRequestsBlocked   Outcome = "requests_blocked"
)

// actionSet holds every journey action one purpose can raise.
type actionSet struct {
	sent        models.Action
	sentTooMany models.Action
	sendBlocked models.Action
	valid       models.Action
	invalid     models.Action
	invalidMax  models.Action
}

// actionsByPurpose is the single source of truth mapping code policy
// outcomes to journey actions. The policy engine, not the state machine,
// decides whether an invalid submission raises the plain action or the
// "too many times" action.
var actionsByPurpose = map[models.Purpose]actionSet{
	{Channel: models.ChannelEmail, Journey: models.JourneyRegistration}: {
		sent:        models.ActionSystemHasSentEmailVerificationCode,
		sentTooMany: models.ActionSystemHasSentTooManyEmailVerificationCodes,
		sendBlocked: models.ActionSystemHasBlockedEmailVerificationCodeRequests,
		valid:       models.ActionUserEnteredValidEmailVerificationCode,
		invalid:     models.ActionUserEnteredInvalidEmailVerificationCode,
		invalidMax:  models.ActionUserEnteredInvalidEmailVerificationCodeTooManyTimes,
	},
	{Channel: models.ChannelEmail, Journey: models.JourneyAccountRecovery}: {
		sent:        models.ActionSystemHasSentEmailVerificationCode,
		sentTooMany: models.ActionSystemHasSentTooManyEmailVerificationCodes,
		sendBlocked: models.ActionSystemHasBlockedEmailVerificationCodeRequests,
		valid:       models.ActionUserEnteredValidEmailVerificationCode,
		invalid:     models.ActionUserEnteredInvalidEmailVerificationCode,
		invalidMax:  models.ActionUserEnteredInvalidEmailVerificationCodeTooManyTimes,
	},
	{Channel: models.ChannelSMS, Journey: models.JourneyRegistration}: {
		sent:        models.ActionSystemHasSentPhoneVerificationCode,
		sentTooMany: models.ActionSystemHasSentTooManyPhoneVerificationCodes,
		sendBlocked: models.ActionSystemHasBlockedPhoneVerificationCodeRequests,
		valid:       models.ActionUserEnteredValidPhoneVerificationCode,
		invalid:     models.ActionUserEnteredInvalidPhoneVerificationCode,
		invalidMax:  models.ActionUserEnteredInvalidPhoneVerificationCodeTooManyTimes,
	},
	{Channel: models.ChannelSMS, Journey: models.JourneySignIn}: {
		sent:        models.ActionSystemHasSentMfaCode,
		sentTooMany: models.ActionSystemHasSentTooManyMfaCodes,
		sendBlocked: models.ActionSystemHasBlockedMfaCodeRequests,
		valid:       models.ActionUserEnteredValidMfaCode,
		invalid:     models.ActionUserEnteredInvalidMfaCode,
		invalidMax:  models.ActionUserEnteredInvalidMfaCodeTooManyTimes,
	},
	{Channel: models.ChannelAuthApp, Journey: models.JourneySignIn}: {
		sent:        models.ActionSystemHasSentAuthAppChallenge,
		sentTooMany: models.ActionSystemHasSentTooManyAuthAppChallenges,
		sendBlocked: models.ActionSystemHasBlockedAuthAppCodeRequests,
		valid:       models.ActionUserEnteredValidAuthAppCode,
		invalid:     models.ActionUserEnteredInvalidAuthAppCode,
		invalidMax:  models.ActionUserEnteredInvalidAuthAppCodeTooManyTimes,
	},
}

// SupportedPurpose reports whether journey actions are declared for a
// purpose. Transports reject unsupported channel and journey pairs before
// the policy engine sees them.
func SupportedPurpose(p models.Purpose) bool {
	_, ok := actionsByPurpose[p]
	return ok
}

func actionsFor(p models.Purpose) (actionSet, error) {
	set, ok := actionsByPurpose[p]
	if !ok {
		return actionSet{}, dErrors.Newf(dErrors.CodeInvariantViolation, "no journey actions declared for purpose %s", PurposeKey(p))
	}
	return set, nil
}
