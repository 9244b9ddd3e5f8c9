package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sigil/internal/code"
	"sigil/internal/journey"
	"sigil/internal/notify"
	"sigil/internal/session/models"
	id "sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
)

type startRequest struct {
	// SessionID restarts an existing journey instead of opening a new one.
	SessionID      string `json:"session_id,omitempty"`
	ClientID       string `json:"client_id,omitempty"`
	RequestedLevel string `json:"requested_level,omitempty"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type registerRequest struct {
	Password    string `json:"password"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type sendCodeRequest struct {
	Channel string `json:"channel"`
}

type verifyCodeRequest struct {
	Channel string `json:"channel"`
	Code    string `json:"code"`
}

type authorizeRequest struct {
	ClientID    string `json:"client_id"`
	RedirectURI string `json:"redirect_uri"`
}

type sessionResponse struct {
	SessionID    string `json:"session_id"`
	State        string `json:"state"`
	TrustLevel   string `json:"trust_level,omitempty"`
	IsNewAccount bool   `json:"is_new_account"`
}

func toSessionResponse(s *models.Session) sessionResponse {
	return sessionResponse{
		SessionID:    s.ID.String(),
		State:        s.State.String(),
		TrustLevel:   string(s.TrustLevel),
		IsNewAccount: s.IsNewAccount,
	}
}

// handleStart opens a journey session, or restarts an existing one through
// the new-journey action so authenticated sessions keep their special
// handling in the graph.
func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req startRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if req.SessionID != "" {
		sessionID, err := id.ParseSessionID(req.SessionID)
		if err != nil {
			writeError(w, dErrors.New(dErrors.CodeBadRequest, "malformed session id"))
			return
		}
		session, err := h.sessions.Read(ctx, sessionID)
		if err != nil {
			writeError(w, dErrors.Wrap(err, dErrors.CodeNotFound, "session not found"))
			return
		}
		if err := h.attachClient(ctx, session, req); err != nil {
			writeError(w, err)
			return
		}
		if req.ClientID != "" {
			if err := h.sessions.Save(ctx, session); err != nil {
				writeError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save session"))
				return
			}
		}
		evalCtx, err := h.evalContext(ctx, session)
		if err != nil {
			writeError(w, err)
			return
		}
		session, err = h.journeys.Advance(ctx, sessionID, models.ActionUserHasStartedANewJourney, evalCtx)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionResponse(session))
		return
	}

	session := models.NewSession(id.NewSessionID())
	if err := h.attachClient(ctx, session, req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.sessions.Save(ctx, session); err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save session"))
		return
	}
	h.logger.InfoContext(ctx, "journey started", "session_id", session.ID.String())
	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

// attachClient records the relying party's participation when the start
// request names one.
func (h *Handler) attachClient(ctx context.Context, session *models.Session, req startRequest) error {
	if req.ClientID == "" {
		return nil
	}
	clientID, err := id.ParseClientID(req.ClientID)
	if err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "malformed client id")
	}
	if _, err := h.clients.FindByID(ctx, clientID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "unknown client")
	}
	session.AddClientSession(models.ClientSession{
		ClientID:       clientID,
		RequestedLevel: models.CredentialTrustLevel(req.RequestedLevel),
		CreatedAt:      time.Now(),
	})
	return nil
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	session, err := h.loadSession(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// handleEmail resolves the submitted address into the registered or
// unregistered action. Both outcomes answer identically apart from the next
// state; nothing in the response reveals whether the account exists beyond
// what the journey itself discloses.
func (h *Handler) handleEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req emailRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Email == "" {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "email is required"))
		return
	}

	session, err := h.loadSession(r)
	if err != nil {
		writeError(w, err)
		return
	}

	action, err := h.users.CheckEmail(ctx, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	session.SetEmailAddress(req.Email)
	session.SetNewAccount(action == models.ActionUserEnteredUnregisteredEmailAddress)
	if err := h.sessions.Save(ctx, session); err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save session"))
		return
	}

	h.advance(w, r, session, action)
}

// handleRegister creates the account once the email code has been verified.
// Account creation is bookkeeping, not a journey step: the state does not
// move until the phone verification chain raises its own actions.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.loadSession(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if session.State != models.StateEmailCodeVerified {
		writeError(w, dErrors.New(dErrors.CodeConflict, "email address is not verified"))
		return
	}

	user, err := h.users.Register(ctx, session.EmailAddress, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.PhoneNumber != "" {
		if err := h.users.SetPhoneNumber(ctx, user.ID, req.PhoneNumber); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (h *Handler) handlePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req passwordRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.loadSession(r)
	if err != nil {
		writeError(w, err)
		return
	}

	user, action, err := h.users.VerifyCredentials(ctx, session, session.EmailAddress, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	if user != nil {
		session.SetCurrentCredentialStrength(models.TrustLevelLow)
	}
	// VerifyCredentials mutates the retry counter on the loaded copy;
	// persist before Advance re-reads the session.
	if err := h.sessions.Save(ctx, session); err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save session"))
		return
	}

	h.advance(w, r, session, action)
}

// handleSendCode asks the policy engine for a code and raises whichever
// action it decided on. Delivery only happens when a code was actually
// produced; a capped outcome advances the journey without one, and a
// blocked purpose answers 429 after recording the block.
func (h *Handler) handleSendCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req sendCodeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	channel, err := parseChannel(req.Channel)
	if err != nil {
		writeError(w, err)
		return
	}

	session, err := h.loadSession(r)
	if err != nil {
		writeError(w, err)
		return
	}
	purpose := purposeFor(session, channel)
	if !code.SupportedPurpose(purpose) {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "channel not available in this journey"))
		return
	}

	result, err := h.codes.Generate(ctx, session.EmailAddress, purpose)
	if err != nil {
		writeError(w, err)
		return
	}

	if result.Outcome == code.OutcomeRequestsBlocked {
		h.recordBlock(ctx, session, result.Action)
		writeError(w, dErrors.New(dErrors.CodeGenerationBlocked, "code requests are temporarily blocked"))
		return
	}

	if result.Outcome == code.OutcomeSent {
		if err := h.deliver(ctx, session, channel, purpose, result.Code); err != nil {
			writeError(w, err)
			return
		}
		session.IncrementCodeRequestCount(purpose)
		if err := h.sessions.Save(ctx, session); err != nil {
			writeError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save session"))
			return
		}
	}

	h.advance(w, r, session, result.Action)
}

// deliver routes a generated code to its channel. The authenticator app
// channel has no delivery; the challenge lives in the user's device.
func (h *Handler) deliver(ctx context.Context, session *models.Session, channel models.Channel, purpose models.Purpose, generated string) error {
	if channel == models.ChannelAuthApp {
		return nil
	}

	recipient := session.EmailAddress
	if channel == models.ChannelSMS {
		user, err := h.users.FindByEmail(ctx, session.EmailAddress)
		if err != nil {
			return err
		}
		if user.PhoneNumber == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "no phone number on record")
		}
		recipient = user.PhoneNumber
	}

	if err := h.notifier.Send(ctx, notify.Delivery{
		Recipient: recipient,
		Channel:   channel,
		Purpose:   purpose,
		Code:      generated,
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to deliver code")
	}
	return nil
}

// handleVerifyCode validates a submitted code and raises the resulting
// action. A successful second factor lifts the session to medium trust and
// finalises the login; a successful registration phone code marks the phone
// verified first. A purpose under an attempts block answers 429 after
// recording the block.
func (h *Handler) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyCodeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	channel, err := parseChannel(req.Channel)
	if err != nil {
		writeError(w, err)
		return
	}

	session, err := h.loadSession(r)
	if err != nil {
		writeError(w, err)
		return
	}
	purpose := purposeFor(session, channel)
	if !code.SupportedPurpose(purpose) {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "channel not available in this journey"))
		return
	}

	var result *code.ValidateResult
	if channel == models.ChannelAuthApp {
		user, err := h.users.FindByEmail(ctx, session.EmailAddress)
		if err != nil {
			writeError(w, err)
			return
		}
		if user.AuthAppSecret == "" {
			writeError(w, dErrors.New(dErrors.CodeInvalidInput, "no authenticator app enrolled"))
			return
		}
		result, err = h.codes.ValidateTOTP(ctx, session.EmailAddress, purpose, user.AuthAppSecret, req.Code)
		if err != nil {
			writeError(w, err)
			return
		}
	} else {
		result, err = h.codes.Validate(ctx, session.EmailAddress, purpose, req.Code)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	if result.Outcome == code.OutcomeBlocked {
		h.recordBlock(ctx, session, result.Action)
		writeError(w, dErrors.New(dErrors.CodeAttemptsBlocked, "code attempts are temporarily blocked"))
		return
	}

	if result.Outcome == code.OutcomeValid {
		if err := h.recordVerification(ctx, session, channel, purpose); err != nil {
			writeError(w, err)
			return
		}
	}

	evalCtx, err := h.evalContext(ctx, session)
	if err != nil {
		writeError(w, err)
		return
	}
	next, err := h.journeys.Advance(ctx, session.ID, result.Action, evalCtx)
	if err != nil {
		writeError(w, err)
		return
	}

	// Second-factor verified states immediately settle terms, consent, and
	// completion through the finalisation action.
	if finaliseAfter[next.State] {
		next, err = h.journeys.Advance(ctx, next.ID, models.ActionSystemHasFinalisedLogin, evalCtx)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, toSessionResponse(next))
}

// finaliseAfter marks the verified states whose next step is system-driven.
// Email verification during registration is followed by a user-driven phone
// step instead, so it is absent here.
var finaliseAfter = map[models.State]bool{
	models.StatePhoneCodeVerified:   true,
	models.StateMfaSmsCodeVerified:  true,
	models.StateAuthAppCodeVerified: true,
}

// recordVerification applies the profile and trust bookkeeping a successful
// code implies, saving the session so Advance sees it.
func (h *Handler) recordVerification(ctx context.Context, session *models.Session, channel models.Channel, purpose models.Purpose) error {
	session.ResetCodeRequestCount(purpose)

	if channel != models.ChannelEmail {
		session.SetCurrentCredentialStrength(models.TrustLevelMedium)
		switch channel {
		case models.ChannelSMS:
			session.SetVerifiedMfaMethodType(models.MFAMethodSMS)
		case models.ChannelAuthApp:
			session.SetVerifiedMfaMethodType(models.MFAMethodAuthApp)
		}
	}
	if err := h.sessions.Save(ctx, session); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save session")
	}

	if channel == models.ChannelSMS {
		user, err := h.users.FindByEmail(ctx, session.EmailAddress)
		if err != nil {
			return err
		}
		if !user.PhoneNumberVerified {
			if err := h.users.SetVerifiedPhone(ctx, user.ID, user.PhoneNumber); err != nil {
				return err
			}
		}
	}
	return nil
}

// handleEnrollAuthApp provisions an authenticator-app secret for the
// session's account. Enrollment returns the otpauth URL once; the secret is
// never readable again through the API.
func (h *Handler) handleEnrollAuthApp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, err := h.loadSession(r)
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := h.users.FindByEmail(ctx, session.EmailAddress)
	if err != nil {
		writeError(w, err)
		return
	}

	key, err := h.users.EnrollAuthApp(ctx, user.ID, h.issuer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"secret":      key.Secret(),
		"otpauth_url": key.URL(),
	})
}

func (h *Handler) handleTerms(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, err := h.loadSession(r)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.FindByEmail(ctx, session.EmailAddress)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.users.AcceptTerms(ctx, user.ID, h.termsVersion); err != nil {
		writeError(w, err)
		return
	}

	evalCtx, err := h.evalContext(ctx, session)
	if err != nil {
		writeError(w, err)
		return
	}
	next, err := h.journeys.Advance(ctx, session.ID, models.ActionUserAcceptedTermsAndConditions, evalCtx)
	if err != nil {
		writeError(w, err)
		return
	}

	// Acceptance lands in a system-driven state; finalisation settles
	// consent or completes the journey.
	if next.State == models.StateUpdatedTermsAndConditionsAccepted {
		next, err = h.journeys.Advance(ctx, next.ID, models.ActionSystemHasFinalisedLogin, evalCtx)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, toSessionResponse(next))
}

func (h *Handler) handleConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, err := h.loadSession(r)
	if err != nil {
		writeError(w, err)
		return
	}

	evalCtx, err := h.evalContext(ctx, session)
	if err != nil {
		writeError(w, err)
		return
	}
	evalCtx.ConsentGiven = true

	next, err := h.journeys.Advance(ctx, session.ID, models.ActionUserHasGivenConsent, evalCtx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(next))
}

// handleAuthorize mints a single-use authorization code for a completed
// journey.
func (h *Handler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authorizeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	clientID, err := id.ParseClientID(req.ClientID)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "malformed client id"))
		return
	}

	session, err := h.loadSession(r)
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := h.users.FindByEmail(ctx, session.EmailAddress)
	if err != nil {
		writeError(w, err)
		return
	}

	grant, err := h.tokens.Issue(ctx, session, user.ID, clientID, req.RedirectURI)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"code":         grant.Code,
		"redirect_uri": grant.RedirectURI,
	})
}

// loadSession resolves the path parameter into a stored session.
func (h *Handler) loadSession(r *http.Request) (*models.Session, error) {
	raw := chi.URLParam(r, "sessionID")
	sessionID, err := id.ParseSessionID(raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "malformed session id")
	}
	session, err := h.sessions.Read(r.Context(), sessionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "session not found")
	}
	return session, nil
}

// recordBlock raises the blocked action so the journey lands in (or stays
// in) its blocked state. The caller answers with the blocked error either
// way, so failures here are logged rather than surfaced; an invalid
// transition just means this journey has nothing left to record.
func (h *Handler) recordBlock(ctx context.Context, session *models.Session, action models.Action) {
	evalCtx, err := h.evalContext(ctx, session)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to record block", "session_id", session.ID.String(), "error", err)
		return
	}
	if _, err := h.journeys.Advance(ctx, session.ID, action, evalCtx); err != nil && !dErrors.HasCode(err, dErrors.CodeInvalidTransition) {
		h.logger.WarnContext(ctx, "failed to record block", "session_id", session.ID.String(), "error", err)
	}
}

// advance raises an action for the session and writes the resulting state.
func (h *Handler) advance(w http.ResponseWriter, r *http.Request, session *models.Session, action models.Action) {
	ctx := r.Context()
	evalCtx, err := h.evalContext(ctx, session)
	if err != nil {
		writeError(w, err)
		return
	}
	next, err := h.journeys.Advance(ctx, session.ID, action, evalCtx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(next))
}

// evalContext assembles what the journey guards may read. Profile and
// client are best-effort: a journey that has not reached them yet simply
// evaluates guards against nil.
func (h *Handler) evalContext(ctx context.Context, session *models.Session) (*journey.EvaluationContext, error) {
	evalCtx := &journey.EvaluationContext{Session: session}

	if session.EmailAddress != "" {
		user, err := h.users.FindByEmail(ctx, session.EmailAddress)
		if err == nil {
			evalCtx.UserProfile = user
		} else if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, err
		}
	}

	if cs := session.CurrentClientSession(); cs != nil {
		evalCtx.ClientSession = cs
		client, err := h.clients.FindByID(ctx, cs.ClientID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load client")
		}
		evalCtx.Client = client
	}
	return evalCtx, nil
}

func parseChannel(raw string) (models.Channel, error) {
	switch models.Channel(raw) {
	case models.ChannelEmail, models.ChannelSMS, models.ChannelAuthApp:
		return models.Channel(raw), nil
	default:
		return "", dErrors.Newf(dErrors.CodeBadRequest, "unknown channel %q", raw)
	}
}

// purposeFor scopes counters and codes to the journey the session is on.
func purposeFor(session *models.Session, channel models.Channel) models.Purpose {
	journeyType := models.JourneySignIn
	if session.IsNewAccount {
		journeyType = models.JourneyRegistration
	}
	return models.Purpose{Channel: channel, Journey: journeyType}
}
