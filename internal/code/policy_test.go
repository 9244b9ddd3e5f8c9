package code

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/suite"

	"sigil/internal/platform/config"
	"sigil/internal/session/models"
)

var (
	purposeEmailRegistration = models.Purpose{Channel: models.ChannelEmail, Journey: models.JourneyRegistration}
	purposeSMSRegistration   = models.Purpose{Channel: models.ChannelSMS, Journey: models.JourneyRegistration}
	purposeSMSSignIn         = models.Purpose{Channel: models.ChannelSMS, Journey: models.JourneySignIn}
	purposeAuthAppSignIn     = models.Purpose{Channel: models.ChannelAuthApp, Journey: models.JourneySignIn}
)

type PolicySuite struct {
	suite.Suite
	store  *InMemoryStore
	policy *Policy
	now    time.Time
	cfg    config.PolicyConfig
}

func TestPolicySuite(t *testing.T) {
	suite.Run(t, new(PolicySuite))
}

func (s *PolicySuite) SetupTest() {
	s.now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s.cfg = config.PolicyConfig{
		MaxRetries:       5,
		MaxCodeRequests:  5,
		CodeTTL:          15 * time.Minute,
		BlockedDuration:  15 * time.Minute,
		TOTPWindowCount:  1,
		TOTPWindowLength: 30 * time.Second,
	}
	s.store = NewInMemoryStore(WithStoreClock(func() time.Time { return s.now }))

	var err error
	s.policy, err = New(s.store, s.cfg, WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)
}

// generate issues a code and fails the test if generation did not succeed.
func (s *PolicySuite) generate(identity string, purpose models.Purpose) string {
	res, err := s.policy.Generate(context.Background(), identity, purpose)
	s.Require().NoError(err)
	s.Require().Equal(OutcomeSent, res.Outcome)
	s.Require().Len(res.Code, 6)
	return res.Code
}

func (s *PolicySuite) TestNew() {
	s.Run("rejects nil store", func() {
		_, err := New(nil, s.cfg)
		s.Error(err)
	})

	s.Run("rejects non-positive caps", func() {
		bad := s.cfg
		bad.MaxRetries = 0
		_, err := New(s.store, bad)
		s.Error(err)

		bad = s.cfg
		bad.MaxCodeRequests = -1
		_, err = New(s.store, bad)
		s.Error(err)
	})
}

func (s *PolicySuite) TestValidate() {
	ctx := context.Background()

	s.Run("correct code validates and raises the valid action", func() {
		code := s.generate("alice@example.com", purposeEmailRegistration)

		res, err := s.policy.Validate(ctx, "alice@example.com", purposeEmailRegistration, code)
		s.NoError(err)
		s.Equal(OutcomeValid, res.Outcome)
		s.Equal(models.ActionUserEnteredValidEmailVerificationCode, res.Action)
		s.Equal(0, res.RetryCount)
	})

	s.Run("a validated code cannot be replayed", func() {
		code := s.generate("bob@example.com", purposeEmailRegistration)

		res, err := s.policy.Validate(ctx, "bob@example.com", purposeEmailRegistration, code)
		s.Require().NoError(err)
		s.Require().Equal(OutcomeValid, res.Outcome)

		res, err = s.policy.Validate(ctx, "bob@example.com", purposeEmailRegistration, code)
		s.NoError(err)
		s.Equal(OutcomeInvalid, res.Outcome)
	})

	s.Run("wrong digits count one attempt", func() {
		s.generate("carol@example.com", purposeEmailRegistration)

		res, err := s.policy.Validate(ctx, "carol@example.com", purposeEmailRegistration, "000000")
		s.NoError(err)
		s.Equal(OutcomeInvalid, res.Outcome)
		s.Equal(models.ActionUserEnteredInvalidEmailVerificationCode, res.Action)
		s.Equal(1, res.RetryCount)
	})

	s.Run("never-issued code is indistinguishable from a wrong one", func() {
		res, err := s.policy.Validate(ctx, "nobody@example.com", purposeEmailRegistration, "123456")
		s.NoError(err)
		s.Equal(OutcomeInvalid, res.Outcome)
		s.Equal(1, res.RetryCount)
	})

	s.Run("expired code is indistinguishable from a wrong one", func() {
		code := s.generate("dave@example.com", purposeEmailRegistration)

		s.now = s.now.Add(s.cfg.CodeTTL + time.Second)

		res, err := s.policy.Validate(ctx, "dave@example.com", purposeEmailRegistration, code)
		s.NoError(err)
		s.Equal(OutcomeInvalid, res.Outcome)
	})

	s.Run("success resets the attempt counter", func() {
		identity := "erin@example.com"
		code := s.generate(identity, purposeEmailRegistration)

		for i := 0; i < 3; i++ {
			res, err := s.policy.Validate(ctx, identity, purposeEmailRegistration, "999999")
			s.Require().NoError(err)
			s.Require().Equal(OutcomeInvalid, res.Outcome)
			s.Require().Equal(i+1, res.RetryCount)
		}

		res, err := s.policy.Validate(ctx, identity, purposeEmailRegistration, code)
		s.Require().NoError(err)
		s.Require().Equal(OutcomeValid, res.Outcome)

		s.generate(identity, purposeEmailRegistration)
		res, err = s.policy.Validate(ctx, identity, purposeEmailRegistration, "999999")
		s.NoError(err)
		s.Equal(1, res.RetryCount)
	})
}

func (s *PolicySuite) TestValidateLockout() {
	ctx := context.Background()
	identity := "frank@example.com"

	s.Run("cap fires on the fifth invalid attempt and only the fifth", func() {
		s.generate(identity, purposeEmailRegistration)

		for i := 1; i <= 4; i++ {
			res, err := s.policy.Validate(ctx, identity, purposeEmailRegistration, "000000")
			s.Require().NoError(err)
			s.Equal(OutcomeInvalid, res.Outcome)
			s.Equal(i, res.RetryCount)
		}

		res, err := s.policy.Validate(ctx, identity, purposeEmailRegistration, "000000")
		s.NoError(err)
		s.Equal(OutcomeInvalidMaxRetries, res.Outcome)
		s.Equal(models.ActionUserEnteredInvalidEmailVerificationCodeTooManyTimes, res.Action)
		s.Equal(0, res.RetryCount)
	})

	s.Run("further attempts short-circuit without consuming the counter", func() {
		res, err := s.policy.Validate(ctx, identity, purposeEmailRegistration, "000000")
		s.NoError(err)
		s.Equal(OutcomeBlocked, res.Outcome)
		s.Equal(models.ActionUserEnteredInvalidEmailVerificationCodeTooManyTimes, res.Action)
	})

	s.Run("a correct code is also rejected while blocked", func() {
		// No store read happens while the block is in effect, so even the
		// right digits are refused.
		res, err := s.policy.Validate(ctx, identity, purposeEmailRegistration, "123456")
		s.NoError(err)
		s.Equal(OutcomeBlocked, res.Outcome)
	})

	s.Run("counter restarts from one after the block lapses", func() {
		s.now = s.now.Add(s.cfg.BlockedDuration + time.Second)

		res, err := s.policy.Validate(ctx, identity, purposeEmailRegistration, "000000")
		s.NoError(err)
		s.Equal(OutcomeInvalid, res.Outcome)
		s.Equal(1, res.RetryCount)
	})
}

func (s *PolicySuite) TestGenerate() {
	ctx := context.Background()

	s.Run("all five codes are issued and the sixth request trips the cap", func() {
		identity := "gina@example.com"

		for i := 1; i <= s.cfg.MaxCodeRequests; i++ {
			res, err := s.policy.Generate(ctx, identity, purposeSMSRegistration)
			s.Require().NoError(err)
			s.Equal(OutcomeSent, res.Outcome)
			s.Equal(models.ActionSystemHasSentPhoneVerificationCode, res.Action)
			s.Equal(i, res.RequestCount)
		}

		res, err := s.policy.Generate(ctx, identity, purposeSMSRegistration)
		s.NoError(err)
		s.Equal(OutcomeMaxCodesRequested, res.Outcome)
		s.Equal(models.ActionSystemHasSentTooManyPhoneVerificationCodes, res.Action)
		s.Empty(res.Code)
	})

	s.Run("requests while blocked raise the blocked action without counting", func() {
		res, err := s.policy.Generate(ctx, "gina@example.com", purposeSMSRegistration)
		s.NoError(err)
		s.Equal(OutcomeRequestsBlocked, res.Outcome)
		s.Equal(models.ActionSystemHasBlockedPhoneVerificationCodeRequests, res.Action)
		s.Empty(res.Code)
	})

	s.Run("counter restarts after the block lapses", func() {
		s.now = s.now.Add(s.cfg.BlockedDuration + time.Second)

		res, err := s.policy.Generate(ctx, "gina@example.com", purposeSMSRegistration)
		s.NoError(err)
		s.Equal(OutcomeSent, res.Outcome)
		s.Equal(1, res.RequestCount)
	})

	s.Run("unknown purpose is an invariant violation", func() {
		_, err := s.policy.Generate(ctx, "x", models.Purpose{Channel: models.ChannelAuthApp, Journey: models.JourneyRegistration})
		s.Error(err)
	})
}

func (s *PolicySuite) TestPurposeIndependence() {
	ctx := context.Background()
	identity := "harry@example.com"

	// Exhaust attempts for registration phone codes.
	s.generate(identity, purposeSMSRegistration)
	for i := 0; i < s.cfg.MaxRetries; i++ {
		_, err := s.policy.Validate(ctx, identity, purposeSMSRegistration, "000000")
		s.Require().NoError(err)
	}
	res, err := s.policy.Validate(ctx, identity, purposeSMSRegistration, "000000")
	s.Require().NoError(err)
	s.Require().Equal(OutcomeBlocked, res.Outcome)

	// The same channel under sign-in has its own budget.
	code := s.generate(identity, purposeSMSSignIn)
	res, err = s.policy.Validate(ctx, identity, purposeSMSSignIn, code)
	s.NoError(err)
	s.Equal(OutcomeValid, res.Outcome)
	s.Equal(models.ActionUserEnteredValidMfaCode, res.Action)
}

func (s *PolicySuite) TestValidateTOTP() {
	ctx := context.Background()
	identity := "ivy@example.com"

	key, err := totp.Generate(totp.GenerateOpts{Issuer: "sigil", AccountName: identity})
	s.Require().NoError(err)
	secret := key.Secret()

	passcodeAt := func(t time.Time) string {
		code, err := totp.GenerateCode(secret, t)
		s.Require().NoError(err)
		return code
	}

	s.Run("current passcode validates", func() {
		res, err := s.policy.ValidateTOTP(ctx, identity, purposeAuthAppSignIn, secret, passcodeAt(s.now))
		s.NoError(err)
		s.Equal(OutcomeValid, res.Outcome)
		s.Equal(models.ActionUserEnteredValidAuthAppCode, res.Action)
	})

	s.Run("one step of clock skew is tolerated", func() {
		res, err := s.policy.ValidateTOTP(ctx, identity, purposeAuthAppSignIn, secret, passcodeAt(s.now.Add(-s.cfg.TOTPWindowLength)))
		s.NoError(err)
		s.Equal(OutcomeValid, res.Outcome)

		res, err = s.policy.ValidateTOTP(ctx, identity, purposeAuthAppSignIn, secret, passcodeAt(s.now.Add(s.cfg.TOTPWindowLength)))
		s.NoError(err)
		s.Equal(OutcomeValid, res.Outcome)
	})

	s.Run("a passcode outside the window counts an attempt", func() {
		res, err := s.policy.ValidateTOTP(ctx, identity, purposeAuthAppSignIn, secret, passcodeAt(s.now.Add(-3*s.cfg.TOTPWindowLength)))
		s.NoError(err)
		s.Equal(OutcomeInvalid, res.Outcome)
		s.Equal(models.ActionUserEnteredInvalidAuthAppCode, res.Action)
		s.Equal(1, res.RetryCount)
	})

	s.Run("malformed passcode is a plain mismatch", func() {
		res, err := s.policy.ValidateTOTP(ctx, identity, purposeAuthAppSignIn, secret, "not-a-code")
		s.NoError(err)
		s.Equal(OutcomeInvalid, res.Outcome)
	})
}
