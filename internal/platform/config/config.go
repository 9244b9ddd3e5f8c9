package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the immutable process configuration. It is built once in main and
// passed by value into constructors; nothing in the codebase mutates it or
// reads the environment after startup.
type Config struct {
	Addr          string
	JWTSigningKey string
	Issuer        string

	// PairwiseSalt seeds the per-client pairwise subject identifier derivation.
	PairwiseSalt string

	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig

	Policy PolicyConfig
}

// PolicyConfig holds the numeric knobs of the code policy engine and the
// journey, all of which have operational defaults.
type PolicyConfig struct {
	// MaxRetries is the number of invalid code submissions tolerated per
	// (identity, purpose) before a block is written.
	MaxRetries int
	// MaxCodeRequests caps code generation per (identity, purpose).
	MaxCodeRequests int
	// CodeTTL is how long a generated one-time code stays valid.
	CodeTTL time.Duration
	// BlockedDuration is the TTL of a block record once a cap is exceeded.
	BlockedDuration time.Duration
	// TOTPWindowCount is the number of time steps either side of "now"
	// accepted during app-based TOTP validation.
	TOTPWindowCount int
	// TOTPWindowLength is the length of one TOTP time step.
	TOTPWindowLength time.Duration
	// TermsVersion is the terms-and-conditions version users must have
	// accepted before completing a journey.
	TermsVersion string
	// SessionTTL bounds the lifetime of a journey session record.
	SessionTTL time.Duration
	// AuthCodeTTL bounds the lifetime of an issued authorization code.
	AuthCodeTTL time.Duration
}

// RedisConfig controls the shared Redis client. An empty URL disables Redis
// and the in-memory stores are used instead.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig controls the user and client registry stores. An empty DSN
// disables Postgres and the in-memory stores are used instead.
type PostgresConfig struct {
	DSN          string
	MaxConns     int32
	ConnLifetime time.Duration
}

// KafkaConfig controls audit event publication. Empty brokers disable the
// Kafka sink and events stay on the in-process store.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:          getenv("SIGIL_ADDR", ":8080"),
		JWTSigningKey: getenv("SIGIL_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Issuer:        getenv("SIGIL_ISSUER", "https://signin.account.gov.example"),
		PairwiseSalt:  getenv("SIGIL_PAIRWISE_SALT", "dev-pairwise-salt"),
		Redis: RedisConfig{
			URL:          os.Getenv("SIGIL_REDIS_URL"),
			PoolSize:     getenvInt("SIGIL_REDIS_POOL_SIZE", 10),
			MinIdleConns: getenvInt("SIGIL_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getenvDuration("SIGIL_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getenvDuration("SIGIL_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getenvDuration("SIGIL_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			DSN:          os.Getenv("SIGIL_POSTGRES_DSN"),
			MaxConns:     int32(getenvInt("SIGIL_POSTGRES_MAX_CONNS", 10)),
			ConnLifetime: getenvDuration("SIGIL_POSTGRES_CONN_LIFETIME", 30*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("SIGIL_KAFKA_BROKERS")),
			Topic:   getenv("SIGIL_KAFKA_AUDIT_TOPIC", "sigil.audit.events"),
		},
		Policy: DefaultPolicy(),
	}
}

// DefaultPolicy returns the production defaults for the code policy engine.
func DefaultPolicy() PolicyConfig {
	return PolicyConfig{
		MaxRetries:       getenvInt("SIGIL_MAX_RETRIES", 5),
		MaxCodeRequests:  getenvInt("SIGIL_MAX_CODE_REQUESTS", 5),
		CodeTTL:          getenvDuration("SIGIL_CODE_TTL", 15*time.Minute),
		BlockedDuration:  getenvDuration("SIGIL_BLOCKED_DURATION", 15*time.Minute),
		TOTPWindowCount:  getenvInt("SIGIL_TOTP_WINDOW_COUNT", 1),
		TOTPWindowLength: getenvDuration("SIGIL_TOTP_WINDOW_LENGTH", 30*time.Second),
		TermsVersion:     getenv("SIGIL_TERMS_VERSION", "1.12"),
		SessionTTL:       getenvDuration("SIGIL_SESSION_TTL", time.Hour),
		AuthCodeTTL:      getenvDuration("SIGIL_AUTH_CODE_TTL", 5*time.Minute),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if part := s[start:i]; part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
