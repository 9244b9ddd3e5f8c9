// Package service owns account rules: registration, credential checks, and
// profile updates driven by the journey.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"sigil/internal/session/models"
	userModels "sigil/internal/user/models"
	"sigil/internal/user/store"
	id "sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	pkgemail "sigil/pkg/email"
	"sigil/pkg/platform/sentinel"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks UserStore

// UserStore is the slice of the user store the service needs.
type UserStore interface {
	Save(ctx context.Context, user *userModels.User) error
	FindByID(ctx context.Context, userID id.UserID) (*userModels.User, error)
	FindByEmail(ctx context.Context, email string) (*userModels.User, error)
}

var _ UserStore = (store.Store)(nil)

// Service exposes the account operations the journey handlers call.
type Service struct {
	users      UserStore
	maxRetries int
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New builds the service. maxRetries caps invalid password submissions per
// journey before the account is temporarily locked.
func New(users UserStore, maxRetries int, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if maxRetries <= 0 {
		return nil, errors.New("retry cap must be positive")
	}
	s := &Service{
		users:      users,
		maxRetries: maxRetries,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CheckEmail reports whether the address belongs to a registered account as
// a journey action. The transport layer must answer both cases identically;
// only the journey graph may branch on the difference.
func (s *Service) CheckEmail(ctx context.Context, email string) (models.Action, error) {
	_, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.ActionUserEnteredUnregisteredEmailAddress, nil
	}
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up email")
	}
	return models.ActionUserEnteredRegisteredEmailAddress, nil
}

// Register creates an account for a verified email address. The caller is
// responsible for having completed email verification first.
func (s *Service) Register(ctx context.Context, email, password string) (*userModels.User, error) {
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "account already exists")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up email")
	}

	// Until the user provides a profile, display names come from the
	// address itself.
	given, family := pkgemail.DeriveNames(email)

	now := s.now()
	user := &userModels.User{
		ID:           id.NewUserID(),
		Email:        email,
		GivenName:    given,
		FamilyName:   family,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Save(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save user")
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID.String())
	return user, nil
}

// VerifyCredentials checks a password submission and translates the result
// into a journey action using the session's retry counter. The counter
// resets on success and when it reaches the cap, so the "too many times"
// action fires exactly once per lockout.
func (s *Service) VerifyCredentials(ctx context.Context, session *models.Session, email, password string) (*userModels.User, models.Action, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up email")
	}

	// A missing account and a wrong password take the same path, and both
	// pay the same bcrypt cost; callers cannot probe which one happened.
	if err == nil {
		if VerifyPassword(password, user.PasswordHash) {
			session.ResetRetryCount()
			return user, models.ActionUserEnteredValidCredentials, nil
		}
	} else {
		VerifyPassword(password, dummyHash)
	}

	session.IncrementRetryCount()
	if session.GetRetryCount() == s.maxRetries {
		session.ResetRetryCount()
		s.logger.InfoContext(ctx, "credential retry cap reached", "session_id", session.ID.String())
		return nil, models.ActionUserEnteredInvalidCredentialsTooManyTimes, nil
	}
	return nil, models.ActionUserEnteredInvalidCredentials, nil
}

// AcceptTerms records acceptance of the given terms version.
func (s *Service) AcceptTerms(ctx context.Context, userID id.UserID, version string) error {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
	user.AcceptedTermsVersion = version
	user.UpdatedAt = s.now()
	if err := s.users.Save(ctx, user); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save user")
	}
	return nil
}

// SetPhoneNumber stores a phone number before it has been verified; the
// verified flag stays false until a code confirms it.
func (s *Service) SetPhoneNumber(ctx context.Context, userID id.UserID, phoneNumber string) error {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
	user.PhoneNumber = phoneNumber
	user.PhoneNumberVerified = false
	user.UpdatedAt = s.now()
	if err := s.users.Save(ctx, user); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save user")
	}
	return nil
}

// SetVerifiedPhone stores the phone number once its verification code has
// been confirmed.
func (s *Service) SetVerifiedPhone(ctx context.Context, userID id.UserID, phoneNumber string) error {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
	user.PhoneNumber = phoneNumber
	user.PhoneNumberVerified = true
	user.UpdatedAt = s.now()
	if err := s.users.Save(ctx, user); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save user")
	}
	return nil
}

// EnrollAuthApp provisions a TOTP secret for the account and returns the
// key whose otpauth URL the user scans into their authenticator app.
func (s *Service) EnrollAuthApp(ctx context.Context, userID id.UserID, issuer string) (*otp.Key, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}

	key, err := totp.Generate(totp.GenerateOpts{Issuer: issuer, AccountName: user.Email})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate authenticator secret")
	}
	user.AuthAppSecret = key.Secret()
	user.MFAMethod = string(models.MFAMethodAuthApp)
	user.UpdatedAt = s.now()
	if err := s.users.Save(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save user")
	}

	s.logger.InfoContext(ctx, "authenticator app enrolled", "user_id", userID.String())
	return key, nil
}

// FindByEmail exposes profile lookup for guard evaluation.
func (s *Service) FindByEmail(ctx context.Context, email string) (*userModels.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up email")
	}
	return user, nil
}
