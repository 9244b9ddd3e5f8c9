package journey

import (
	"sigil/internal/journey/statemachine"
	"sigil/internal/session/models"
)

// Condition guards a journey transition.
type Condition = statemachine.Condition[*EvaluationContext]

// and is the explicit guard conjunction; implicit chaining is not used.
func and(conds ...Condition) Condition {
	return statemachine.And(conds...)
}

// clientDoesNotRequireMFA holds when the relying party allows password-only
// sign-in.
func clientDoesNotRequireMFA(ctx *EvaluationContext) bool {
	return ctx.Client != nil && !ctx.Client.RequiresMFA
}

// consentNotGiven holds when the client demands consent the user has not yet
// granted in this journey.
func consentNotGiven(ctx *EvaluationContext) bool {
	return ctx.Client != nil && ctx.Client.ConsentRequired && !ctx.ConsentGiven
}

// termsNotAccepted returns a guard bound to the configured terms version.
func termsNotAccepted(configuredVersion string) Condition {
	return func(ctx *EvaluationContext) bool {
		return ctx.UserProfile != nil && ctx.UserProfile.AcceptedTermsVersion != configuredVersion
	}
}

// phoneNumberUnverified holds when the user has no verified phone to receive
// a second factor on.
func phoneNumberUnverified(ctx *EvaluationContext) bool {
	return ctx.UserProfile == nil || !ctx.UserProfile.PhoneNumberVerified
}

// upliftRequired holds when the session's current credential trust is below
// what a new authorization request demands.
func upliftRequired(ctx *EvaluationContext) bool {
	return ctx.Session != nil && ctx.Session.TrustLevel == models.TrustLevelLow
}

// requestedLevelIsMedium holds when the relying party asked for medium trust.
func requestedLevelIsMedium(ctx *EvaluationContext) bool {
	return ctx.ClientSession != nil && ctx.ClientSession.RequestedLevel == models.TrustLevelMedium
}
