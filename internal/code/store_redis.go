package code

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	platformredis "sigil/internal/platform/redis"
	"sigil/internal/session/models"
	"sigil/pkg/platform/sentinel"
)

const (
	codePrefix    = "code:"
	blockPrefix   = "code-block:"
	counterPrefix = "code-counter:"
)

// RedisStore persists codes, blocks and counters in Redis. Counter
// increments use INCR, so concurrent attempts against the same identity
// and purpose observe a strictly increasing sequence.
type RedisStore struct {
	client *platformredis.Client
}

func NewRedisStore(client *platformredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, identity string, purpose models.Purpose) (string, error) {
	code, err := s.client.Get(ctx, s.codeKey(identity, purpose)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get code: %w", err)
	}
	return code, nil
}

func (s *RedisStore) Save(ctx context.Context, identity string, purpose models.Purpose, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.codeKey(identity, purpose), code, ttl).Err(); err != nil {
		return fmt.Errorf("save code: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, identity string, purpose models.Purpose) error {
	if err := s.client.Del(ctx, s.codeKey(identity, purpose)).Err(); err != nil {
		return fmt.Errorf("delete code: %w", err)
	}
	return nil
}

func (s *RedisStore) IsBlocked(ctx context.Context, identity, blockKey string) (bool, error) {
	n, err := s.client.Exists(ctx, s.blockStoreKey(identity, blockKey)).Result()
	if err != nil {
		return false, fmt.Errorf("check block: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) SaveBlocked(ctx context.Context, identity, blockKey string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.blockStoreKey(identity, blockKey), "1", ttl).Err(); err != nil {
		return fmt.Errorf("save block: %w", err)
	}
	return nil
}

func (s *RedisStore) IncrementAttempts(ctx context.Context, identity string, purpose models.Purpose) (int, error) {
	return s.increment(ctx, s.counterKey("attempts", identity, purpose))
}

func (s *RedisStore) ResetAttempts(ctx context.Context, identity string, purpose models.Purpose) error {
	if err := s.client.Del(ctx, s.counterKey("attempts", identity, purpose)).Err(); err != nil {
		return fmt.Errorf("reset attempts: %w", err)
	}
	return nil
}

func (s *RedisStore) IncrementGenerations(ctx context.Context, identity string, purpose models.Purpose) (int, error) {
	return s.increment(ctx, s.counterKey("generations", identity, purpose))
}

func (s *RedisStore) ResetGenerations(ctx context.Context, identity string, purpose models.Purpose) error {
	if err := s.client.Del(ctx, s.counterKey("generations", identity, purpose)).Err(); err != nil {
		return fmt.Errorf("reset generations: %w", err)
	}
	return nil
}

func (s *RedisStore) increment(ctx context.Context, key string) (int, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment counter: %w", err)
	}
	return int(n), nil
}

func (s *RedisStore) codeKey(identity string, purpose models.Purpose) string {
	return codePrefix + SanitizeIdentity(identity) + ":" + PurposeKey(purpose)
}

func (s *RedisStore) blockStoreKey(identity, blockKey string) string {
	return blockPrefix + SanitizeIdentity(identity) + ":" + blockKey
}

func (s *RedisStore) counterKey(kind, identity string, purpose models.Purpose) string {
	return counterPrefix + kind + ":" + SanitizeIdentity(identity) + ":" + PurposeKey(purpose)
}
