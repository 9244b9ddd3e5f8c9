package models

// Action is an event presented to the journey engine. User actions come from
// submitted requests; system actions are raised by the backend itself, most
// of them by the code policy engine which decides between the plain
// "invalid" action and the "too many times" action.
type Action string

const (
	ActionUserHasStartedANewJourney Action = "USER_HAS_STARTED_A_NEW_JOURNEY"

	ActionUserEnteredRegisteredEmailAddress   Action = "USER_ENTERED_REGISTERED_EMAIL_ADDRESS"
	ActionUserEnteredUnregisteredEmailAddress Action = "USER_ENTERED_UNREGISTERED_EMAIL_ADDRESS"

	ActionUserEnteredValidCredentials                Action = "USER_ENTERED_VALID_CREDENTIALS"
	ActionUserEnteredInvalidCredentials              Action = "USER_ENTERED_INVALID_CREDENTIALS"
	ActionUserEnteredInvalidCredentialsTooManyTimes  Action = "USER_ENTERED_INVALID_CREDENTIALS_TOO_MANY_TIMES"

	ActionUserAcceptedTermsAndConditions Action = "USER_ACCEPTED_TERMS_AND_CONDITIONS"
	ActionUserHasGivenConsent            Action = "USER_HAS_GIVEN_CONSENT"
	ActionSystemHasFinalisedLogin        Action = "SYSTEM_HAS_FINALISED_LOGIN"

	ActionSystemHasSentEmailVerificationCode            Action = "SYSTEM_HAS_SENT_EMAIL_VERIFICATION_CODE"
	ActionSystemHasSentTooManyEmailVerificationCodes    Action = "SYSTEM_HAS_SENT_TOO_MANY_EMAIL_VERIFICATION_CODES"
	ActionSystemHasBlockedEmailVerificationCodeRequests Action = "SYSTEM_HAS_BLOCKED_EMAIL_VERIFICATION_CODE_REQUESTS"
	ActionUserEnteredValidEmailVerificationCode         Action = "USER_ENTERED_VALID_EMAIL_VERIFICATION_CODE"
	ActionUserEnteredInvalidEmailVerificationCode       Action = "USER_ENTERED_INVALID_EMAIL_VERIFICATION_CODE"

	ActionUserEnteredInvalidEmailVerificationCodeTooManyTimes Action = "USER_ENTERED_INVALID_EMAIL_VERIFICATION_CODE_TOO_MANY_TIMES"

	ActionSystemHasSentPhoneVerificationCode            Action = "SYSTEM_HAS_SENT_PHONE_VERIFICATION_CODE"
	ActionSystemHasSentTooManyPhoneVerificationCodes    Action = "SYSTEM_HAS_SENT_TOO_MANY_PHONE_VERIFICATION_CODES"
	ActionSystemHasBlockedPhoneVerificationCodeRequests Action = "SYSTEM_HAS_BLOCKED_PHONE_VERIFICATION_CODE_REQUESTS"
	ActionUserEnteredValidPhoneVerificationCode         Action = "USER_ENTERED_VALID_PHONE_VERIFICATION_CODE"
	ActionUserEnteredInvalidPhoneVerificationCode       Action = "USER_ENTERED_INVALID_PHONE_VERIFICATION_CODE"

	ActionUserEnteredInvalidPhoneVerificationCodeTooManyTimes Action = "USER_ENTERED_INVALID_PHONE_VERIFICATION_CODE_TOO_MANY_TIMES"

	ActionSystemHasSentMfaCode                      Action = "SYSTEM_HAS_SENT_MFA_CODE"
	ActionSystemHasSentTooManyMfaCodes              Action = "SYSTEM_HAS_SENT_TOO_MANY_MFA_CODES"
	ActionSystemHasBlockedMfaCodeRequests           Action = "SYSTEM_HAS_BLOCKED_MFA_CODE_REQUESTS"
	ActionUserEnteredValidMfaCode                   Action = "USER_ENTERED_VALID_MFA_CODE"
	ActionUserEnteredInvalidMfaCode                 Action = "USER_ENTERED_INVALID_MFA_CODE"
	ActionUserEnteredInvalidMfaCodeTooManyTimes     Action = "USER_ENTERED_INVALID_MFA_CODE_TOO_MANY_TIMES"

	ActionSystemHasSentAuthAppChallenge             Action = "SYSTEM_HAS_SENT_AUTH_APP_CHALLENGE"
	ActionSystemHasSentTooManyAuthAppChallenges     Action = "SYSTEM_HAS_SENT_TOO_MANY_AUTH_APP_CHALLENGES"
	ActionSystemHasBlockedAuthAppCodeRequests       Action = "SYSTEM_HAS_BLOCKED_AUTH_APP_CODE_REQUESTS"
	ActionUserEnteredValidAuthAppCode               Action = "USER_ENTERED_VALID_AUTH_APP_CODE"
	ActionUserEnteredInvalidAuthAppCode             Action = "USER_ENTERED_INVALID_AUTH_APP_CODE"
	ActionUserEnteredInvalidAuthAppCodeTooManyTimes Action = "USER_ENTERED_INVALID_AUTH_APP_CODE_TOO_MANY_TIMES"
)

func (a Action) String() string { return string(a) }
