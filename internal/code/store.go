package code

import (
	"context"
	"time"

	"sigil/internal/session/models"
)

// Store is the keyed backing store of the code policy engine. Counter
// increments must be atomic read-modify-write: two concurrent invalid
// attempts for the same (identity, purpose) must never observe the same
// count. Code and block records carry per-key TTLs; counters persist until
// explicitly reset.
//
// The check-block-then-act sequence is not transactional. Between IsBlocked
// and the increment a concurrent request can slip one extra attempt past the
// cap; the block write is idempotent, so the window closes after one extra
// attempt and at-least-once redelivery is safe. See DESIGN.md.
type Store interface {
	Get(ctx context.Context, identity string, purpose models.Purpose) (string, error)
	Save(ctx context.Context, identity string, purpose models.Purpose, code string, ttl time.Duration) error
	Delete(ctx context.Context, identity string, purpose models.Purpose) error

	IsBlocked(ctx context.Context, identity, blockKey string) (bool, error)
	SaveBlocked(ctx context.Context, identity, blockKey string, ttl time.Duration) error

	IncrementAttempts(ctx context.Context, identity string, purpose models.Purpose) (int, error)
	ResetAttempts(ctx context.Context, identity string, purpose models.Purpose) error
	IncrementGenerations(ctx context.Context, identity string, purpose models.Purpose) (int, error)
	ResetGenerations(ctx context.Context, identity string, purpose models.Purpose) error
}
