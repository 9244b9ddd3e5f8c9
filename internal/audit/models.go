package audit

import (
	"time"

	id "sigil/pkg/domain"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	UserID    id.UserID `json:"user_id,omitempty"`
	ClientID  string    `json:"client_id,omitempty"`
	Action    string    `json:"action"`
	FromState string    `json:"from_state,omitempty"`
	ToState   string    `json:"to_state,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Device    string    `json:"device,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// Well-known audit actions raised outside the journey engine. Transition
// events carry the journey action verbatim instead.
const (
	EventSessionCreated  = "session_created"
	EventCodeIssued      = "code_issued"
	EventCodeLockout     = "code_lockout"
	EventTokenIssued     = "token_issued"
	EventConsentRecorded = "consent_recorded"
)
