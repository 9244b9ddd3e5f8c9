// Package httptransport is the thin HTTP layer over the journey, code, user,
// and token services. Handlers translate requests into service calls and
// journey actions; they never decide transitions themselves.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pquerna/otp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	clientModels "sigil/internal/client/models"
	"sigil/internal/code"
	"sigil/internal/journey"
	"sigil/internal/notify"
	"sigil/internal/platform/metrics"
	"sigil/internal/platform/middleware"
	"sigil/internal/session/models"
	"sigil/internal/token"
	userModels "sigil/internal/user/models"
	id "sigil/pkg/domain"
)

// JourneyService drives sessions through the state graph.
type JourneyService interface {
	Advance(ctx context.Context, sessionID id.SessionID, action models.Action, evalCtx *journey.EvaluationContext) (*models.Session, error)
}

// SessionStore is the transport's view of session persistence. Handlers save
// their own bookkeeping mutations before raising journey actions, because
// Advance re-reads the session from the store.
type SessionStore interface {
	Read(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) error
}

// UserService covers account lookups and profile updates.
type UserService interface {
	CheckEmail(ctx context.Context, email string) (models.Action, error)
	Register(ctx context.Context, email, password string) (*userModels.User, error)
	VerifyCredentials(ctx context.Context, session *models.Session, email, password string) (*userModels.User, models.Action, error)
	AcceptTerms(ctx context.Context, userID id.UserID, version string) error
	EnrollAuthApp(ctx context.Context, userID id.UserID, issuer string) (*otp.Key, error)
	SetPhoneNumber(ctx context.Context, userID id.UserID, phoneNumber string) error
	SetVerifiedPhone(ctx context.Context, userID id.UserID, phoneNumber string) error
	FindByEmail(ctx context.Context, email string) (*userModels.User, error)
}

// CodePolicy is the one-time-code policy engine.
type CodePolicy interface {
	Generate(ctx context.Context, identity string, purpose models.Purpose) (*code.GenerateResult, error)
	Validate(ctx context.Context, identity string, purpose models.Purpose, submitted string) (*code.ValidateResult, error)
	ValidateTOTP(ctx context.Context, identity string, purpose models.Purpose, secret, submitted string) (*code.ValidateResult, error)
}

// TokenService issues and exchanges authorization codes.
type TokenService interface {
	Issue(ctx context.Context, session *models.Session, userID id.UserID, clientID id.ClientID, redirectURI string) (*token.AuthorizationCode, error)
	Exchange(ctx context.Context, code, redirectURI string) (*token.TokenSet, error)
}

// ClientDirectory resolves registered relying parties.
type ClientDirectory interface {
	FindByID(ctx context.Context, clientID id.ClientID) (*clientModels.Client, error)
}

// Handler holds the wired services behind the public endpoints.
type Handler struct {
	journeys     JourneyService
	sessions     SessionStore
	users        UserService
	clients      ClientDirectory
	codes        CodePolicy
	tokens       TokenService
	notifier     notify.Sender
	logger       *slog.Logger
	metrics      *metrics.Metrics
	termsVersion string
	issuer       string
}

// HandlerConfig names the handler's collaborators so wiring stays readable
// at the call site.
type HandlerConfig struct {
	Journeys     JourneyService
	Sessions     SessionStore
	Users        UserService
	Clients      ClientDirectory
	Codes        CodePolicy
	Tokens       TokenService
	Notifier     notify.Sender
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	TermsVersion string
	Issuer       string
}

func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		journeys:     cfg.Journeys,
		sessions:     cfg.Sessions,
		users:        cfg.Users,
		clients:      cfg.Clients,
		codes:        cfg.Codes,
		tokens:       cfg.Tokens,
		notifier:     cfg.Notifier,
		logger:       logger,
		metrics:      cfg.Metrics,
		termsVersion: cfg.TermsVersion,
		issuer:       cfg.Issuer,
	}
}

// NewRouter wires all public endpoints. Health and metrics bypass the API
// middleware chain so probes stay cheap and /metrics is not forced to JSON.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	api := chi.NewRouter()
	api.Use(middleware.Recovery(h.logger))
	api.Use(middleware.RequestID)
	api.Use(middleware.Device)
	api.Use(middleware.Logger(h.logger))
	api.Use(middleware.Timeout(30 * time.Second))
	api.Use(middleware.ContentTypeJSON)
	api.Use(middleware.Latency(h.metrics))

	api.Route("/journey", func(jr chi.Router) {
		jr.Post("/start", h.handleStart)
		jr.Route("/{sessionID}", func(sr chi.Router) {
			sr.Get("/", h.handleStatus)
			sr.Post("/email", h.handleEmail)
			sr.Post("/register", h.handleRegister)
			sr.Post("/password", h.handlePassword)
			sr.Post("/enroll-auth-app", h.handleEnrollAuthApp)
			sr.Post("/send-code", h.handleSendCode)
			sr.Post("/verify-code", h.handleVerifyCode)
			sr.Post("/terms", h.handleTerms)
			sr.Post("/consent", h.handleConsent)
			sr.Post("/authorize", h.handleAuthorize)
		})
	})
	api.Post("/token", h.handleToken)

	r.Mount("/", api)
	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
