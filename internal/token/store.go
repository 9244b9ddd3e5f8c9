package token

import "context"

// CodeStore persists authorization codes until exchanged or expired.
// Consume must be atomic: a code can be exchanged exactly once, and a second
// attempt fails with sentinel.ErrAlreadyUsed even under concurrent callers.
type CodeStore interface {
	Save(ctx context.Context, grant *AuthorizationCode) error
	Consume(ctx context.Context, code string) (*AuthorizationCode, error)
}
