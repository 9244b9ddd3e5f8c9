// Package journey declares the product state graph and the service that
// drives sessions through it. The graph is compiled once at startup; the
// statemachine package rejects contradictory declarations at build time.
package journey

import (
	"sigil/internal/journey/statemachine"
	"sigil/internal/session/models"
)

// Machine is the journey state machine instantiated over session states,
// session actions, and the guard evaluation context.
type Machine = statemachine.Machine[models.State, models.Action, *EvaluationContext]

// Transition aliases the engine's edge type for this graph.
type Transition = statemachine.Transition[models.State, models.Action, *EvaluationContext]

func on(action models.Action, target models.State) Transition {
	return statemachine.On[models.State, models.Action, *EvaluationContext](action, target)
}

func onIf(action models.Action, cond Condition, target models.State) Transition {
	return statemachine.OnIf[models.State, models.Action](action, cond, target)
}

// codeChannel groups the states and actions of one notification channel so
// the four channels declare identical structure rather than four hand-copied
// blocks that can drift.
type codeChannel struct {
	sent        models.State
	notValid    models.State
	maxSent     models.State
	reqBlocked  models.State
	verified    models.State
	maxRetries  models.State
	actSend     models.Action
	actSendMax  models.Action
	actBlocked  models.Action
	actValid    models.Action
	actInvalid  models.Action
	actTooMany  models.Action
}

var (
	emailChannel = codeChannel{
		sent:       models.StateEmailCodeSent,
		notValid:   models.StateEmailCodeNotValid,
		maxSent:    models.StateEmailMaxCodesSent,
		reqBlocked: models.StateEmailCodeRequestsBlocked,
		verified:   models.StateEmailCodeVerified,
		maxRetries: models.StateEmailCodeMaxRetries,
		actSend:    models.ActionSystemHasSentEmailVerificationCode,
		actSendMax: models.ActionSystemHasSentTooManyEmailVerificationCodes,
		actBlocked: models.ActionSystemHasBlockedEmailVerificationCodeRequests,
		actValid:   models.ActionUserEnteredValidEmailVerificationCode,
		actInvalid: models.ActionUserEnteredInvalidEmailVerificationCode,
		actTooMany: models.ActionUserEnteredInvalidEmailVerificationCodeTooManyTimes,
	}
	phoneChannel = codeChannel{
		sent:       models.StatePhoneCodeSent,
		notValid:   models.StatePhoneCodeNotValid,
		maxSent:    models.StatePhoneMaxCodesSent,
		reqBlocked: models.StatePhoneCodeRequestsBlocked,
		verified:   models.StatePhoneCodeVerified,
		maxRetries: models.StatePhoneCodeMaxRetries,
		actSend:    models.ActionSystemHasSentPhoneVerificationCode,
		actSendMax: models.ActionSystemHasSentTooManyPhoneVerificationCodes,
		actBlocked: models.ActionSystemHasBlockedPhoneVerificationCodeRequests,
		actValid:   models.ActionUserEnteredValidPhoneVerificationCode,
		actInvalid: models.ActionUserEnteredInvalidPhoneVerificationCode,
		actTooMany: models.ActionUserEnteredInvalidPhoneVerificationCodeTooManyTimes,
	}
	mfaSmsChannel = codeChannel{
		sent:       models.StateMfaSmsCodeSent,
		notValid:   models.StateMfaSmsCodeNotValid,
		maxSent:    models.StateMfaSmsMaxCodesSent,
		reqBlocked: models.StateMfaSmsCodeRequestsBlocked,
		verified:   models.StateMfaSmsCodeVerified,
		maxRetries: models.StateMfaSmsCodeMaxRetries,
		actSend:    models.ActionSystemHasSentMfaCode,
		actSendMax: models.ActionSystemHasSentTooManyMfaCodes,
		actBlocked: models.ActionSystemHasBlockedMfaCodeRequests,
		actValid:   models.ActionUserEnteredValidMfaCode,
		actInvalid: models.ActionUserEnteredInvalidMfaCode,
		actTooMany: models.ActionUserEnteredInvalidMfaCodeTooManyTimes,
	}
	authAppChannel = codeChannel{
		sent:       models.StateAuthAppCodeSent,
		notValid:   models.StateAuthAppCodeNotValid,
		maxSent:    models.StateAuthAppMaxCodesSent,
		reqBlocked: models.StateAuthAppCodeRequestsBlocked,
		verified:   models.StateAuthAppCodeVerified,
		maxRetries: models.StateAuthAppCodeMaxRetries,
		actSend:    models.ActionSystemHasSentAuthAppChallenge,
		actSendMax: models.ActionSystemHasSentTooManyAuthAppChallenges,
		actBlocked: models.ActionSystemHasBlockedAuthAppCodeRequests,
		actValid:   models.ActionUserEnteredValidAuthAppCode,
		actInvalid: models.ActionUserEnteredInvalidAuthAppCode,
		actTooMany: models.ActionUserEnteredInvalidAuthAppCodeTooManyTimes,
	}
)

// entryTransitions are the edges by which codes for a channel start or
// restart: send, send-over-cap, and send-while-blocked.
func (c codeChannel) entryTransitions() []Transition {
	return []Transition{
		on(c.actSend, c.sent),
		on(c.actSendMax, c.maxSent),
		on(c.actBlocked, c.reqBlocked),
	}
}

// submitTransitions are the edges available wherever the user can type a
// code. Guard order matters: the consent branch must come before the
// unconditional verified fallback.
func (c codeChannel) submitTransitions() []Transition {
	return []Transition{
		onIf(c.actValid, consentNotGiven, models.StateConsentRequired),
		on(c.actValid, c.verified),
		on(c.actInvalid, c.notValid),
		on(c.actTooMany, c.maxRetries),
	}
}

// NewMachine compiles the product journey graph. termsVersion binds the
// terms-and-conditions guard to the configured current version.
func NewMachine(termsVersion string) (*Machine, error) {
	terms := termsNotAccepted(termsVersion)

	// Credential submission is shared between first sign-in and uplift.
	// Most-specific guards first: missing second factor, then MFA-exempt
	// clients (stale terms before clean exit), then the MFA fallback.
	credentialTransitions := []Transition{
		onIf(models.ActionUserEnteredValidCredentials, phoneNumberUnverified, models.StateTwoFactorRequired),
		onIf(models.ActionUserEnteredValidCredentials, and(clientDoesNotRequireMFA, terms), models.StateUpdatedTermsAndConditions),
		onIf(models.ActionUserEnteredValidCredentials, and(clientDoesNotRequireMFA, consentNotGiven), models.StateConsentRequired),
		onIf(models.ActionUserEnteredValidCredentials, clientDoesNotRequireMFA, models.StateAuthenticated),
		on(models.ActionUserEnteredValidCredentials, models.StateLoggedIn),
		on(models.ActionUserEnteredInvalidCredentials, models.StateAuthenticationRequired),
		on(models.ActionUserEnteredInvalidCredentialsTooManyTimes, models.StateAccountTemporarilyLocked),
	}

	// The post-factor finalisation settles stale terms and missing consent
	// before the journey completes.
	finaliseTransitions := []Transition{
		onIf(models.ActionSystemHasFinalisedLogin, terms, models.StateUpdatedTermsAndConditions),
		onIf(models.ActionSystemHasFinalisedLogin, consentNotGiven, models.StateConsentRequired),
		on(models.ActionSystemHasFinalisedLogin, models.StateAuthenticated),
	}

	emailEntry := append([]Transition{
		on(models.ActionUserEnteredRegisteredEmailAddress, models.StateAuthenticationRequired),
		on(models.ActionUserEnteredUnregisteredEmailAddress, models.StateUserNotFound),
	}, emailChannel.entryTransitions()...)

	b := statemachine.NewBuilder[models.State, models.Action, *EvaluationContext]()

	b.From(models.StateNew,
		on(models.ActionUserEnteredRegisteredEmailAddress, models.StateAuthenticationRequired),
		on(models.ActionUserEnteredUnregisteredEmailAddress, models.StateUserNotFound),
	)

	// Registration entry: unregistered email leads into email verification.
	b.From(models.StateUserNotFound, emailEntry...)

	b.From(models.StateAuthenticationRequired, credentialTransitions...)
	b.From(models.StateUpliftRequired, credentialTransitions...)

	// Lockout has no outgoing edges of its own; only the any-state restart
	// applies, so starting over is always possible.
	b.From(models.StateAccountTemporarilyLocked)

	b.From(models.StateLoggedIn,
		append(mfaSmsChannel.entryTransitions(), authAppChannel.entryTransitions()...)...)

	b.From(models.StateTwoFactorRequired, phoneChannel.entryTransitions()...)

	b.From(models.StateConsentRequired,
		on(models.ActionUserHasGivenConsent, models.StateAuthenticated),
	)

	b.From(models.StateUpdatedTermsAndConditions,
		on(models.ActionUserAcceptedTermsAndConditions, models.StateUpdatedTermsAndConditionsAccepted),
	)

	b.From(models.StateUpdatedTermsAndConditionsAccepted,
		onIf(models.ActionSystemHasFinalisedLogin, consentNotGiven, models.StateConsentRequired),
		on(models.ActionSystemHasFinalisedLogin, models.StateAuthenticated),
	)

	// A completed journey restarted against a low-trust session may demand
	// uplift; otherwise the session stays authenticated. Declared here so it
	// shadows the any-state reset for authenticated sessions.
	b.From(models.StateAuthenticated,
		onIf(models.ActionUserHasStartedANewJourney, and(upliftRequired, requestedLevelIsMedium), models.StateUpliftRequired),
		on(models.ActionUserHasStartedANewJourney, models.StateAuthenticated),
	)

	declareChannel(b, emailChannel, phoneChannel.entryTransitions())
	declareChannel(b, phoneChannel, finaliseTransitions)
	declareChannel(b, mfaSmsChannel, finaliseTransitions)
	declareChannel(b, authAppChannel, finaliseTransitions)

	// Starting a new journey resets to NEW from every state that does not
	// declare its own handling, lockouts and blocks included.
	b.FromAny(on(models.ActionUserHasStartedANewJourney, models.StateNew))

	return b.Build()
}

// declareChannel declares the six states of one code channel. afterVerified
// is what the verified state can do next: continue registration (email) or
// finalise the login (phone and both MFA channels).
func declareChannel(b *statemachine.Builder[models.State, models.Action, *EvaluationContext], c codeChannel, afterVerified []Transition) {
	submitAndResend := append(c.submitTransitions(), c.entryTransitions()...)

	b.From(c.sent, submitAndResend...)
	b.From(c.notValid, submitAndResend...)

	// The generation cap does not invalidate codes already delivered, so
	// submission stays open after MAX_CODES_SENT. Asking for yet another
	// code from here records the block.
	b.From(c.maxSent, append(c.submitTransitions(), on(c.actBlocked, c.reqBlocked))...)

	// Blocked and locked-out states absorb repeats of the action that put
	// the journey there; everything else waits for a fresh journey.
	b.From(c.reqBlocked, on(c.actBlocked, c.reqBlocked))
	b.From(c.maxRetries, on(c.actTooMany, c.maxRetries))

	b.From(c.verified, afterVerified...)
}
