package domain

import (
	"fmt"

	"github.com/google/uuid"

	dErrors "sigil/pkg/domain-errors"
)

// Typed identifiers keep user, session, and client IDs from being swapped at
// call sites. The compiler enforces the distinction; parsing enforces the
// "valid, non-empty, non-nil UUID" invariant at trust boundaries.
type (
	UserID    uuid.UUID
	SessionID uuid.UUID
	ClientID  uuid.UUID
)

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id SessionID) String() string { return uuid.UUID(id).String() }
func (id ClientID) String() string  { return uuid.UUID(id).String() }

func (id UserID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id ClientID) IsZero() bool  { return uuid.UUID(id) == uuid.Nil }

// NewSessionID mints a fresh session identifier.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// NewUserID mints a fresh user identifier.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewClientID mints a fresh client identifier.
func NewClientID() ClientID { return ClientID(uuid.New()) }

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session id")
	return SessionID(u), err
}

func ParseClientID(s string) (ClientID, error) {
	u, err := parseUUID(s, "client id")
	return ClientID(u), err
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s cannot be empty", what))
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s is not a valid UUID", what))
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s cannot be the nil UUID", what))
	}
	return u, nil
}
