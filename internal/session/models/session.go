package models

import (
	"time"

	id "sigil/pkg/domain"
)

// CredentialTrustLevel is the trust vector a session currently holds.
type CredentialTrustLevel string

const (
	TrustLevelNone   CredentialTrustLevel = ""
	TrustLevelLow    CredentialTrustLevel = "LOW_LEVEL"
	TrustLevelMedium CredentialTrustLevel = "MEDIUM_LEVEL"
)

// MFAMethodType records which second factor a session verified.
type MFAMethodType string

const (
	MFAMethodNone    MFAMethodType = ""
	MFAMethodSMS     MFAMethodType = "SMS"
	MFAMethodAuthApp MFAMethodType = "AUTH_APP"
)

// ClientSession captures one relying party's participation in a journey: the
// authorization request parameters it arrived with and the trust vector it
// asked for.
type ClientSession struct {
	ClientID          id.ClientID         `json:"client_id"`
	AuthRequestParams map[string][]string `json:"auth_request_params"`
	RequestedLevel    CredentialTrustLevel `json:"requested_level"`
	CreatedAt         time.Time           `json:"created_at"`
}

// Session is the per-journey aggregate root. It carries no business rules
// beyond counter bookkeeping; the journey engine and the code policy engine
// decide what the counters mean. All mutators return the session so callers
// can chain, e.g. store.Save(ctx, sess.SetState(next).ResetRetryCount()).
type Session struct {
	ID             id.SessionID             `json:"id"`
	State          State                    `json:"state"`
	EmailAddress   string                   `json:"email_address,omitempty"`
	CodeRequests   map[Purpose]int          `json:"code_requests"`
	RetryCount     int                      `json:"retry_count"`
	TrustLevel     CredentialTrustLevel     `json:"trust_level"`
	VerifiedMFA    MFAMethodType            `json:"verified_mfa"`
	IsNewAccount   bool                     `json:"is_new_account"`
	PairwiseID     string                   `json:"pairwise_id,omitempty"`
	ClientSessions map[string]ClientSession `json:"client_sessions"`
	CreatedAt      time.Time                `json:"created_at"`
}

// NewSession creates a journey session in StateNew with every purpose's
// counter initialized to zero.
func NewSession(sessionID id.SessionID) *Session {
	counts := make(map[Purpose]int)
	for _, p := range AllPurposes() {
		counts[p] = 0
	}
	return &Session{
		ID:             sessionID,
		State:          StateNew,
		CodeRequests:   counts,
		ClientSessions: make(map[string]ClientSession),
		CreatedAt:      time.Now(),
	}
}

func (s *Session) GetState() State { return s.State }

func (s *Session) SetState(state State) *Session {
	s.State = state
	return s
}

func (s *Session) GetCodeRequestCount(p Purpose) int { return s.CodeRequests[p] }

func (s *Session) IncrementCodeRequestCount(p Purpose) *Session {
	s.CodeRequests[p]++
	return s
}

func (s *Session) ResetCodeRequestCount(p Purpose) *Session {
	s.CodeRequests[p] = 0
	return s
}

func (s *Session) GetRetryCount() int { return s.RetryCount }

func (s *Session) IncrementRetryCount() *Session {
	s.RetryCount++
	return s
}

func (s *Session) ResetRetryCount() *Session {
	s.RetryCount = 0
	return s
}

func (s *Session) SetCurrentCredentialStrength(level CredentialTrustLevel) *Session {
	s.TrustLevel = level
	return s
}

func (s *Session) SetVerifiedMfaMethodType(m MFAMethodType) *Session {
	s.VerifiedMFA = m
	return s
}

func (s *Session) SetNewAccount(isNew bool) *Session {
	s.IsNewAccount = isNew
	return s
}

func (s *Session) SetEmailAddress(email string) *Session {
	s.EmailAddress = email
	return s
}

func (s *Session) SetPairwiseID(pairwise string) *Session {
	s.PairwiseID = pairwise
	return s
}

func (s *Session) AddClientSession(cs ClientSession) *Session {
	s.ClientSessions[cs.ClientID.String()] = cs
	return s
}

// CurrentClientSession returns the most recently added relying-party
// participation, or nil when no client has joined the journey yet.
func (s *Session) CurrentClientSession() *ClientSession {
	var latest *ClientSession
	for key := range s.ClientSessions {
		cs := s.ClientSessions[key]
		if latest == nil || cs.CreatedAt.After(latest.CreatedAt) {
			latest = &cs
		}
	}
	return latest
}

// Reset returns the session to the start of a fresh journey, keeping the
// identifier and the email identity but dropping journey-scoped bookkeeping.
// Starting over is always possible, so Reset never inspects the current state.
func (s *Session) Reset() *Session {
	for _, p := range AllPurposes() {
		s.CodeRequests[p] = 0
	}
	s.RetryCount = 0
	s.VerifiedMFA = MFAMethodNone
	s.IsNewAccount = false
	s.State = StateNew
	return s
}
