// Package code implements the one-time-code policy engine: generation,
// validation, purpose-scoped attempt counting, and lockout. It owns the
// decision between the plain "invalid" journey action and the "too many
// times" action; the state machine only ever sees the result.
package code

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"sigil/internal/platform/config"
	"sigil/internal/platform/metrics"
	"sigil/internal/session/models"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/platform/sentinel"
)

const codeLength = 6

// GenerateResult reports one generation call: the code to deliver (empty
// when generation was capped or blocked) and the journey action to raise.
type GenerateResult struct {
	Code    string
	Outcome Outcome
	Action  models.Action
	// RequestCount is the generation counter after this call; zero when the
	// cap fired and the counter was reset.
	RequestCount int
}

// ValidateResult reports one validation call.
type ValidateResult struct {
	Outcome Outcome
	Action  models.Action
	// RetryCount is the attempt counter after this call; zero after success
	// or after the cap fired.
	RetryCount int
}

// Policy drives code generation and validation for (identity, purpose)
// pairs. It is stateless between calls; everything durable lives in the
// Store. Safe for concurrent use.
type Policy struct {
	store   Store
	cfg     config.PolicyConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Policy)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) { p.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Policy) { p.metrics = m }
}

// WithClock overrides the policy clock, for TOTP window tests.
func WithClock(now func() time.Time) Option {
	return func(p *Policy) { p.now = now }
}

func New(store Store, cfg config.PolicyConfig, opts ...Option) (*Policy, error) {
	if store == nil {
		return nil, errors.New("code store is required")
	}
	if cfg.MaxRetries <= 0 || cfg.MaxCodeRequests <= 0 {
		return nil, errors.New("retry and generation caps must be positive")
	}
	p := &Policy{
		store:  store,
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Generate creates a numeric one-time code for (identity, purpose), persists
// it under the configured TTL, and counts the request against the generation
// cap. The cap-th code is still issued; the first request beyond it blocks
// the purpose for the configured duration, resets the counter, and produces
// no code. An existing block short-circuits without counting.
func (p *Policy) Generate(ctx context.Context, identity string, purpose models.Purpose) (*GenerateResult, error) {
	actions, err := actionsFor(purpose)
	if err != nil {
		return nil, err
	}

	blocked, err := p.store.IsBlocked(ctx, identity, GenerationBlockKey(purpose))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check generation block")
	}
	if blocked {
		return &GenerateResult{Outcome: OutcomeRequestsBlocked, Action: actions.sendBlocked}, nil
	}

	count, err := p.store.IncrementGenerations(ctx, identity, purpose)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count code request")
	}

	// The block-and-reset fires on the first request past the cap, so every
	// one of the MaxCodeRequests codes is actually delivered. The reset
	// keeps it firing exactly once.
	if count > p.cfg.MaxCodeRequests {
		if err := p.block(ctx, identity, GenerationBlockKey(purpose), purpose, "generation"); err != nil {
			return nil, err
		}
		if err := p.store.ResetGenerations(ctx, identity, purpose); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset generation counter")
		}
		return &GenerateResult{Outcome: OutcomeMaxCodesRequested, Action: actions.sentTooMany}, nil
	}

	otp, err := generateNumericCode()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
	}
	if err := p.store.Save(ctx, identity, purpose, otp, p.cfg.CodeTTL); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save code")
	}

	if p.metrics != nil {
		p.metrics.CodesGenerated.WithLabelValues(PurposeKey(purpose)).Inc()
	}

	return &GenerateResult{
		Code:         otp,
		Outcome:      OutcomeSent,
		Action:       actions.sent,
		RequestCount: count,
	}, nil
}

// Validate compares a submitted code against the stored one. Expired and
// missing codes yield the same outcome as a wrong digit. An invalid attempt
// that brings the counter to the cap exactly writes a block, resets the
// counter, and raises the "too many times" action; a block already in effect
// short-circuits without consuming an attempt.
func (p *Policy) Validate(ctx context.Context, identity string, purpose models.Purpose, submitted string) (*ValidateResult, error) {
	return p.validate(ctx, identity, purpose, func(ctx context.Context) (bool, error) {
		stored, err := p.store.Get(ctx, identity, purpose)
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return false, nil
		}
		if err != nil {
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read code")
		}
		if subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) != 1 {
			return false, nil
		}
		// Consume on success so the same code cannot be replayed.
		if err := p.store.Delete(ctx, identity, purpose); err != nil {
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete code")
		}
		return true, nil
	})
}

// ValidateTOTP verifies an authenticator-app passcode against the user's
// shared secret, tolerating the configured window of clock skew. Attempt
// counting and blocking behave exactly as for numeric codes; there is no
// stored record to consume.
func (p *Policy) ValidateTOTP(ctx context.Context, identity string, purpose models.Purpose, secret, submitted string) (*ValidateResult, error) {
	return p.validate(ctx, identity, purpose, func(ctx context.Context) (bool, error) {
		return p.totpMatches(secret, submitted)
	})
}

func (p *Policy) validate(ctx context.Context, identity string, purpose models.Purpose, match func(context.Context) (bool, error)) (*ValidateResult, error) {
	actions, err := actionsFor(purpose)
	if err != nil {
		return nil, err
	}

	blocked, err := p.store.IsBlocked(ctx, identity, AttemptsBlockKey(purpose))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check attempts block")
	}
	if blocked {
		p.observeValidation(purpose, OutcomeBlocked)
		return &ValidateResult{Outcome: OutcomeBlocked, Action: actions.invalidMax}, nil
	}

	ok, err := match(ctx)
	if err != nil {
		return nil, err
	}

	if ok {
		if err := p.store.ResetAttempts(ctx, identity, purpose); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset attempt counter")
		}
		p.observeValidation(purpose, OutcomeValid)
		return &ValidateResult{Outcome: OutcomeValid, Action: actions.valid}, nil
	}

	retries, err := p.store.IncrementAttempts(ctx, identity, purpose)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count attempt")
	}

	// The block-and-reset must fire exactly once, so the comparison is
	// equality, not >=.
	if retries == p.cfg.MaxRetries {
		if err := p.block(ctx, identity, AttemptsBlockKey(purpose), purpose, "attempts"); err != nil {
			return nil, err
		}
		if err := p.store.ResetAttempts(ctx, identity, purpose); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset attempt counter")
		}
		p.observeValidation(purpose, OutcomeInvalidMaxRetries)
		return &ValidateResult{Outcome: OutcomeInvalidMaxRetries, Action: actions.invalidMax}, nil
	}

	p.observeValidation(purpose, OutcomeInvalid)
	return &ValidateResult{Outcome: OutcomeInvalid, Action: actions.invalid, RetryCount: retries}, nil
}

func (p *Policy) block(ctx context.Context, identity, blockKey string, purpose models.Purpose, kind string) error {
	if err := p.store.SaveBlocked(ctx, identity, blockKey, p.cfg.BlockedDuration); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save block record")
	}
	p.logger.InfoContext(ctx, "code purpose blocked",
		"purpose", PurposeKey(purpose),
		"kind", kind,
		"blocked_for", p.cfg.BlockedDuration.String(),
	)
	if p.metrics != nil {
		p.metrics.Lockouts.WithLabelValues(PurposeKey(purpose), kind).Inc()
	}
	return nil
}

func (p *Policy) observeValidation(purpose models.Purpose, outcome Outcome) {
	if p.metrics != nil {
		p.metrics.CodeValidations.WithLabelValues(PurposeKey(purpose), string(outcome)).Inc()
	}
}

// generateNumericCode returns a uniformly random six digit code, left-padded
// with zeros.
func generateNumericCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeLength, n), nil
}
