package models

// State is a journey checkpoint. Exactly one state is current per session at
// any time; every state is reachable from StateNew through the declared
// graph in internal/journey.
type State string

const (
	StateNew                       State = "NEW"
	StateUserNotFound              State = "USER_NOT_FOUND"
	StateAuthenticationRequired    State = "AUTHENTICATION_REQUIRED"
	StateAccountTemporarilyLocked  State = "ACCOUNT_TEMPORARILY_LOCKED"
	StateLoggedIn                  State = "LOGGED_IN"
	StateTwoFactorRequired         State = "TWO_FACTOR_REQUIRED"
	StateUpliftRequired            State = "UPLIFT_REQUIRED"
	StateConsentRequired           State = "CONSENT_REQUIRED"
	StateUpdatedTermsAndConditions State = "UPDATED_TERMS_AND_CONDITIONS"

	StateUpdatedTermsAndConditionsAccepted State = "UPDATED_TERMS_AND_CONDITIONS_ACCEPTED"

	StateAuthenticated State = "AUTHENTICATED"

	// Email verification channel (registration and account recovery).
	StateEmailCodeSent             State = "EMAIL_CODE_SENT"
	StateEmailCodeNotValid         State = "EMAIL_CODE_NOT_VALID"
	StateEmailMaxCodesSent         State = "EMAIL_MAX_CODES_SENT"
	StateEmailCodeRequestsBlocked  State = "EMAIL_CODE_REQUESTS_BLOCKED"
	StateEmailCodeVerified         State = "EMAIL_CODE_VERIFIED"
	StateEmailCodeMaxRetries       State = "EMAIL_CODE_MAX_RETRIES_REACHED"

	// Phone verification channel (registration).
	StatePhoneCodeSent            State = "PHONE_CODE_SENT"
	StatePhoneCodeNotValid        State = "PHONE_CODE_NOT_VALID"
	StatePhoneMaxCodesSent        State = "PHONE_MAX_CODES_SENT"
	StatePhoneCodeRequestsBlocked State = "PHONE_CODE_REQUESTS_BLOCKED"
	StatePhoneCodeVerified        State = "PHONE_CODE_VERIFIED"
	StatePhoneCodeMaxRetries      State = "PHONE_CODE_MAX_RETRIES_REACHED"

	// SMS second factor (sign-in).
	StateMfaSmsCodeSent            State = "MFA_SMS_CODE_SENT"
	StateMfaSmsCodeNotValid        State = "MFA_SMS_CODE_NOT_VALID"
	StateMfaSmsMaxCodesSent        State = "MFA_SMS_MAX_CODES_SENT"
	StateMfaSmsCodeRequestsBlocked State = "MFA_SMS_CODE_REQUESTS_BLOCKED"
	StateMfaSmsCodeVerified        State = "MFA_SMS_CODE_VERIFIED"
	StateMfaSmsCodeMaxRetries      State = "MFA_SMS_CODE_MAX_RETRIES_REACHED"

	// Authenticator-app second factor (sign-in).
	StateAuthAppCodeSent            State = "AUTH_APP_CODE_SENT"
	StateAuthAppCodeNotValid        State = "AUTH_APP_CODE_NOT_VALID"
	StateAuthAppMaxCodesSent        State = "AUTH_APP_MAX_CODES_SENT"
	StateAuthAppCodeRequestsBlocked State = "AUTH_APP_CODE_REQUESTS_BLOCKED"
	StateAuthAppCodeVerified        State = "AUTH_APP_CODE_VERIFIED"
	StateAuthAppCodeMaxRetries      State = "AUTH_APP_CODE_MAX_RETRIES_REACHED"
)

func (s State) String() string { return string(s) }
