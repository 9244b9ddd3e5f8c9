package httptransport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/suite"

	clientModels "sigil/internal/client/models"
	clientStore "sigil/internal/client/store"
	"sigil/internal/code"
	"sigil/internal/journey"
	"sigil/internal/notify"
	"sigil/internal/platform/config"
	"sigil/internal/session/models"
	sessionStore "sigil/internal/session/store"
	"sigil/internal/token"
	userService "sigil/internal/user/service"
	userStore "sigil/internal/user/store"
	id "sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/testutil"
)

const (
	termsVersion = "1.12"
	testPassword = "correct-horse-battery"
	testEmail    = "user@example.com"
	testPhone    = "+447700900123"
)

type HandlersSuite struct {
	suite.Suite

	router    http.Handler
	sessions  *sessionStore.InMemoryStore
	users     *userService.Service
	clients   *clientStore.InMemory
	codeStore *code.InMemoryStore

	basicClient  *clientModels.Client
	strictClient *clientModels.Client
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersSuite))
}

func (s *HandlersSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.sessions = sessionStore.NewInMemory(45 * time.Minute)

	users, err := userService.New(userStore.NewInMemory(), 5, userService.WithLogger(logger))
	s.Require().NoError(err)
	s.users = users

	s.clients = clientStore.NewInMemory()
	seeded, err := clientStore.SeedDevClients(s.clients)
	s.Require().NoError(err)
	for _, c := range seeded {
		if c.RequiresMFA {
			s.strictClient = c
		} else {
			s.basicClient = c
		}
	}
	s.Require().NotNil(s.basicClient)
	s.Require().NotNil(s.strictClient)

	s.codeStore = code.NewInMemoryStore()
	policyCfg := config.PolicyConfig{
		MaxRetries:       5,
		MaxCodeRequests:  5,
		CodeTTL:          15 * time.Minute,
		BlockedDuration:  15 * time.Minute,
		TOTPWindowCount:  1,
		TOTPWindowLength: 30 * time.Second,
	}
	policy, err := code.New(s.codeStore, policyCfg, code.WithLogger(logger))
	s.Require().NoError(err)

	machine, err := journey.NewMachine(termsVersion)
	s.Require().NoError(err)
	journeys, err := journey.NewService(machine, s.sessions, journey.WithLogger(logger))
	s.Require().NoError(err)

	jwtService := token.NewJWTService("handler-test-signing-key", "sigil-test")
	tokens, err := token.New(token.NewInMemoryCodeStore(), jwtService, config.Config{
		PairwiseSalt: "handler-test-salt",
		Policy:       config.PolicyConfig{AuthCodeTTL: 5 * time.Minute},
	}, token.WithLogger(logger))
	s.Require().NoError(err)

	handler := NewHandler(HandlerConfig{
		Journeys:     journeys,
		Sessions:     s.sessions,
		Users:        users,
		Clients:      s.clients,
		Codes:        policy,
		Tokens:       tokens,
		Notifier:     notify.NewLogSender(logger),
		Logger:       logger,
		TermsVersion: termsVersion,
		Issuer:       "sigil-test",
	})
	s.router = NewRouter(handler)
}

func (s *HandlersSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), method, path, body))
}

func (s *HandlersSuite) decodeSession(rec *httptest.ResponseRecorder) sessionResponse {
	return *testutil.UnmarshalResponse[sessionResponse](s.T(), rec)
}

func (s *HandlersSuite) startJourney(clientID string) sessionResponse {
	body := map[string]string{}
	if clientID != "" {
		body["client_id"] = clientID
		body["requested_level"] = string(models.TrustLevelMedium)
	}
	rec := s.do(http.MethodPost, "/journey/start", body)
	s.Require().Equal(http.StatusCreated, rec.Code)
	return s.decodeSession(rec)
}

func (s *HandlersSuite) journeyPath(sessionID, step string) string {
	return fmt.Sprintf("/journey/%s/%s", sessionID, step)
}

// registerAccount provisions a ready-to-sign-in account outside the HTTP
// flow: verified phone and current terms.
func (s *HandlersSuite) registerAccount() {
	ctx := context.Background()
	user, err := s.users.Register(ctx, testEmail, testPassword)
	s.Require().NoError(err)
	s.Require().NoError(s.users.SetVerifiedPhone(ctx, user.ID, testPhone))
	s.Require().NoError(s.users.AcceptTerms(ctx, user.ID, termsVersion))
}

// storedCode reads the code the policy engine generated, standing in for
// the email or SMS the user would receive.
func (s *HandlersSuite) storedCode(identity string, purpose models.Purpose) string {
	stored, err := s.codeStore.Get(context.Background(), identity, purpose)
	s.Require().NoError(err)
	return stored
}

func (s *HandlersSuite) TestStartJourney() {
	s.Run("creates a session in the initial state", func() {
		resp := s.startJourney("")
		s.Equal(models.StateNew.String(), resp.State)
		s.NotEmpty(resp.SessionID)
	})

	s.Run("records the relying party when one is named", func() {
		resp := s.startJourney(s.basicClient.ID.String())
		sessionID, err := id.ParseSessionID(resp.SessionID)
		s.Require().NoError(err)
		session, err := s.sessions.Read(context.Background(), sessionID)
		s.Require().NoError(err)
		s.Require().NotNil(session.CurrentClientSession())
		s.Equal(s.basicClient.ID, session.CurrentClientSession().ClientID)
	})

	s.Run("rejects an unknown client", func() {
		rec := s.do(http.MethodPost, "/journey/start", map[string]string{
			"client_id": id.NewClientID().String(),
		})
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("rejects a malformed restart session id", func() {
		rec := s.do(http.MethodPost, "/journey/start", map[string]string{
			"session_id": "not-a-uuid",
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlersSuite) TestEmailSubmission() {
	s.Run("unregistered address starts registration", func() {
		start := s.startJourney("")
		rec := s.do(http.MethodPost, s.journeyPath(start.SessionID, "email"), map[string]string{
			"email": "nobody@example.com",
		})
		s.Require().Equal(http.StatusOK, rec.Code)
		resp := s.decodeSession(rec)
		s.Equal(models.StateUserNotFound.String(), resp.State)
		s.True(resp.IsNewAccount)
	})

	s.Run("registered address requires authentication", func() {
		s.registerAccount()
		start := s.startJourney("")
		rec := s.do(http.MethodPost, s.journeyPath(start.SessionID, "email"), map[string]string{
			"email": testEmail,
		})
		s.Require().Equal(http.StatusOK, rec.Code)
		resp := s.decodeSession(rec)
		s.Equal(models.StateAuthenticationRequired.String(), resp.State)
		s.False(resp.IsNewAccount)
	})

	s.Run("unknown session answers not found", func() {
		rec := s.do(http.MethodPost, s.journeyPath(id.NewSessionID().String(), "email"), map[string]string{
			"email": testEmail,
		})
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlersSuite) TestRegistrationJourney() {
	start := s.startJourney("")
	sessionID := start.SessionID
	email := "fresh@example.com"
	regEmail := models.Purpose{Channel: models.ChannelEmail, Journey: models.JourneyRegistration}
	regPhone := models.Purpose{Channel: models.ChannelSMS, Journey: models.JourneyRegistration}

	rec := s.do(http.MethodPost, s.journeyPath(sessionID, "email"), map[string]string{"email": email})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(models.StateUserNotFound.String(), s.decodeSession(rec).State)

	rec = s.do(http.MethodPost, s.journeyPath(sessionID, "send-code"), map[string]string{"channel": "EMAIL"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(models.StateEmailCodeSent.String(), s.decodeSession(rec).State)

	rec = s.do(http.MethodPost, s.journeyPath(sessionID, "verify-code"), map[string]string{
		"channel": "EMAIL", "code": s.storedCode(email, regEmail),
	})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(models.StateEmailCodeVerified.String(), s.decodeSession(rec).State)

	rec = s.do(http.MethodPost, s.journeyPath(sessionID, "register"), map[string]string{
		"password": testPassword, "phone_number": testPhone,
	})
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec = s.do(http.MethodPost, s.journeyPath(sessionID, "send-code"), map[string]string{"channel": "SMS"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(models.StatePhoneCodeSent.String(), s.decodeSession(rec).State)

	// A fresh account has not accepted the current terms, so finalisation
	// detours through the terms step before completing.
	rec = s.do(http.MethodPost, s.journeyPath(sessionID, "verify-code"), map[string]string{
		"channel": "SMS", "code": s.storedCode(email, regPhone),
	})
	s.Require().Equal(http.StatusOK, rec.Code)
	resp := s.decodeSession(rec)
	s.Equal(models.StateUpdatedTermsAndConditions.String(), resp.State)
	s.Equal(string(models.TrustLevelMedium), resp.TrustLevel)

	rec = s.do(http.MethodPost, s.journeyPath(sessionID, "terms"), nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(models.StateAuthenticated.String(), s.decodeSession(rec).State)

	user, err := s.users.FindByEmail(context.Background(), email)
	s.Require().NoError(err)
	s.True(user.PhoneNumberVerified)
	s.Equal(termsVersion, user.AcceptedTermsVersion)
}

func (s *HandlersSuite) TestPasswordSignIn() {
	s.registerAccount()

	s.Run("valid credentials complete an MFA-exempt journey", func() {
		start := s.startJourney(s.basicClient.ID.String())
		rec := s.do(http.MethodPost, s.journeyPath(start.SessionID, "email"), map[string]string{"email": testEmail})
		s.Require().Equal(http.StatusOK, rec.Code)

		rec = s.do(http.MethodPost, s.journeyPath(start.SessionID, "password"), map[string]string{"password": testPassword})
		s.Require().Equal(http.StatusOK, rec.Code)
		resp := s.decodeSession(rec)
		s.Equal(models.StateAuthenticated.String(), resp.State)
		s.Equal(string(models.TrustLevelLow), resp.TrustLevel)
	})

	s.Run("wrong password leaves authentication pending", func() {
		start := s.startJourney(s.basicClient.ID.String())
		rec := s.do(http.MethodPost, s.journeyPath(start.SessionID, "email"), map[string]string{"email": testEmail})
		s.Require().Equal(http.StatusOK, rec.Code)

		rec = s.do(http.MethodPost, s.journeyPath(start.SessionID, "password"), map[string]string{"password": "wrong"})
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Equal(models.StateAuthenticationRequired.String(), s.decodeSession(rec).State)
	})

	s.Run("repeated failures lock the account on the cap", func() {
		start := s.startJourney(s.basicClient.ID.String())
		rec := s.do(http.MethodPost, s.journeyPath(start.SessionID, "email"), map[string]string{"email": testEmail})
		s.Require().Equal(http.StatusOK, rec.Code)

		for i := 0; i < 4; i++ {
			rec = s.do(http.MethodPost, s.journeyPath(start.SessionID, "password"), map[string]string{"password": "wrong"})
			s.Require().Equal(http.StatusOK, rec.Code)
			s.Equal(models.StateAuthenticationRequired.String(), s.decodeSession(rec).State)
		}
		rec = s.do(http.MethodPost, s.journeyPath(start.SessionID, "password"), map[string]string{"password": "wrong"})
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Equal(models.StateAccountTemporarilyLocked.String(), s.decodeSession(rec).State)
	})
}

func (s *HandlersSuite) TestMFASignInWithConsentAndTokens() {
	s.registerAccount()
	signInSMS := models.Purpose{Channel: models.ChannelSMS, Journey: models.JourneySignIn}

	start := s.startJourney(s.strictClient.ID.String())
	sessionID := start.SessionID

	rec := s.do(http.MethodPost, s.journeyPath(sessionID, "email"), map[string]string{"email": testEmail})
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, s.journeyPath(sessionID, "password"), map[string]string{"password": testPassword})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(models.StateLoggedIn.String(), s.decodeSession(rec).State)

	rec = s.do(http.MethodPost, s.journeyPath(sessionID, "send-code"), map[string]string{"channel": "SMS"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(models.StateMfaSmsCodeSent.String(), s.decodeSession(rec).State)

	// The strict client demands consent, so a valid second factor diverts
	// there instead of completing.
	rec = s.do(http.MethodPost, s.journeyPath(sessionID, "verify-code"), map[string]string{
		"channel": "SMS", "code": s.storedCode(testEmail, signInSMS),
	})
	s.Require().Equal(http.StatusOK, rec.Code)
	resp := s.decodeSession(rec)
	s.Equal(models.StateConsentRequired.String(), resp.State)
	s.Equal(string(models.TrustLevelMedium), resp.TrustLevel)

	rec = s.do(http.MethodPost, s.journeyPath(sessionID, "consent"), nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(models.StateAuthenticated.String(), s.decodeSession(rec).State)

	rec = s.do(http.MethodPost, s.journeyPath(sessionID, "authorize"), map[string]string{
		"client_id":    s.strictClient.ID.String(),
		"redirect_uri": s.strictClient.RedirectURIs[0],
	})
	s.Require().Equal(http.StatusOK, rec.Code)
	grant := *testutil.UnmarshalResponse[map[string]string](s.T(), rec)
	s.NotEmpty(grant["code"])

	rec = s.do(http.MethodPost, "/token", map[string]string{
		"grant_type":   "authorization_code",
		"code":         grant["code"],
		"redirect_uri": s.strictClient.RedirectURIs[0],
	})
	s.Require().Equal(http.StatusOK, rec.Code)
	tokens := *testutil.UnmarshalResponse[token.TokenSet](s.T(), rec)
	s.NotEmpty(tokens.AccessToken)
	s.Equal("Bearer", tokens.TokenType)

	s.Run("a code is single use", func() {
		rec := s.do(http.MethodPost, "/token", map[string]string{
			"code":         grant["code"],
			"redirect_uri": s.strictClient.RedirectURIs[0],
		})
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}

func (s *HandlersSuite) TestAuthAppSignIn() {
	s.registerAccount()

	start := s.startJourney(s.strictClient.ID.String())
	sessionID := start.SessionID

	rec := s.do(http.MethodPost, s.journeyPath(sessionID, "email"), map[string]string{"email": testEmail})
	s.Require().Equal(http.StatusOK, rec.Code)
	rec = s.do(http.MethodPost, s.journeyPath(sessionID, "password"), map[string]string{"password": testPassword})
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, s.journeyPath(sessionID, "enroll-auth-app"), nil)
	s.Require().Equal(http.StatusCreated, rec.Code)
	enrollment := *testutil.UnmarshalResponse[map[string]string](s.T(), rec)
	s.Require().NotEmpty(enrollment["secret"])
	s.NotEmpty(enrollment["otpauth_url"])

	rec = s.do(http.MethodPost, s.journeyPath(sessionID, "send-code"), map[string]string{"channel": "AUTH_APP"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(models.StateAuthAppCodeSent.String(), s.decodeSession(rec).State)

	passcode, err := totp.GenerateCode(enrollment["secret"], time.Now())
	s.Require().NoError(err)
	rec = s.do(http.MethodPost, s.journeyPath(sessionID, "verify-code"), map[string]string{
		"channel": "AUTH_APP", "code": passcode,
	})
	s.Require().Equal(http.StatusOK, rec.Code)
	resp := s.decodeSession(rec)
	s.Equal(models.StateConsentRequired.String(), resp.State)
	s.Equal(string(models.TrustLevelMedium), resp.TrustLevel)
}

func (s *HandlersSuite) TestSendCodeCaps() {
	start := s.startJourney("")
	sessionID := start.SessionID
	email := "capped@example.com"

	rec := s.do(http.MethodPost, s.journeyPath(sessionID, "email"), map[string]string{"email": email})
	s.Require().Equal(http.StatusOK, rec.Code)

	// Every one of the five allowed codes goes out; only the sixth request
	// trips the cap.
	for i := 0; i < 5; i++ {
		rec = s.do(http.MethodPost, s.journeyPath(sessionID, "send-code"), map[string]string{"channel": "EMAIL"})
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Equal(models.StateEmailCodeSent.String(), s.decodeSession(rec).State)
	}

	rec = s.do(http.MethodPost, s.journeyPath(sessionID, "send-code"), map[string]string{"channel": "EMAIL"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(models.StateEmailMaxCodesSent.String(), s.decodeSession(rec).State)

	// A request while blocked is refused outright; the journey still records
	// the blocked state.
	rec = s.do(http.MethodPost, s.journeyPath(sessionID, "send-code"), map[string]string{"channel": "EMAIL"})
	testutil.AssertStatusAndError(s.T(), rec, http.StatusTooManyRequests, string(dErrors.CodeGenerationBlocked))

	rec = s.do(http.MethodGet, "/journey/"+sessionID, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(models.StateEmailCodeRequestsBlocked.String(), s.decodeSession(rec).State)
}

func (s *HandlersSuite) TestVerifyCodeRetryCapAndRestart() {
	start := s.startJourney("")
	sessionID := start.SessionID
	email := "retries@example.com"

	rec := s.do(http.MethodPost, s.journeyPath(sessionID, "email"), map[string]string{"email": email})
	s.Require().Equal(http.StatusOK, rec.Code)
	rec = s.do(http.MethodPost, s.journeyPath(sessionID, "send-code"), map[string]string{"channel": "EMAIL"})
	s.Require().Equal(http.StatusOK, rec.Code)

	for i := 0; i < 4; i++ {
		rec = s.do(http.MethodPost, s.journeyPath(sessionID, "verify-code"), map[string]string{
			"channel": "EMAIL", "code": "000000",
		})
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Equal(models.StateEmailCodeNotValid.String(), s.decodeSession(rec).State)
	}
	rec = s.do(http.MethodPost, s.journeyPath(sessionID, "verify-code"), map[string]string{
		"channel": "EMAIL", "code": "000000",
	})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(models.StateEmailCodeMaxRetries.String(), s.decodeSession(rec).State)

	// Once the attempts block is in force, further submissions answer 429.
	rec = s.do(http.MethodPost, s.journeyPath(sessionID, "verify-code"), map[string]string{
		"channel": "EMAIL", "code": "000000",
	})
	testutil.AssertStatusAndError(s.T(), rec, http.StatusTooManyRequests, string(dErrors.CodeAttemptsBlocked))

	// Starting over is always possible, the terminal code state included.
	rec = s.do(http.MethodPost, "/journey/start", map[string]string{"session_id": sessionID})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(models.StateNew.String(), s.decodeSession(rec).State)
}

func (s *HandlersSuite) TestChannelValidation() {
	start := s.startJourney("")
	rec := s.do(http.MethodPost, s.journeyPath(start.SessionID, "email"), map[string]string{"email": "new@example.com"})
	s.Require().Equal(http.StatusOK, rec.Code)

	s.Run("unknown channel", func() {
		rec := s.do(http.MethodPost, s.journeyPath(start.SessionID, "send-code"), map[string]string{"channel": "CARRIER_PIGEON"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("authenticator app is not a registration channel", func() {
		rec := s.do(http.MethodPost, s.journeyPath(start.SessionID, "send-code"), map[string]string{"channel": "AUTH_APP"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlersSuite) TestAuthorizeRequiresCompletedJourney() {
	s.registerAccount()
	start := s.startJourney(s.basicClient.ID.String())
	rec := s.do(http.MethodPost, s.journeyPath(start.SessionID, "email"), map[string]string{"email": testEmail})
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, s.journeyPath(start.SessionID, "authorize"), map[string]string{
		"client_id":    s.basicClient.ID.String(),
		"redirect_uri": s.basicClient.RedirectURIs[0],
	})
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *HandlersSuite) TestTokenValidation() {
	s.Run("unsupported grant type", func() {
		rec := s.do(http.MethodPost, "/token", map[string]string{"grant_type": "password", "code": "x"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("missing code", func() {
		rec := s.do(http.MethodPost, "/token", map[string]string{"grant_type": "authorization_code"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown code", func() {
		rec := s.do(http.MethodPost, "/token", map[string]string{"code": "never-issued"})
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}

func (s *HandlersSuite) TestHealthz() {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *HandlersSuite) TestIllegalActionAnswersConflict() {
	start := s.startJourney("")
	// Consent is not available from the initial state.
	rec := s.do(http.MethodPost, s.journeyPath(start.SessionID, "consent"), nil)
	s.Equal(http.StatusConflict, rec.Code)
}
