package journey

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sigil/internal/audit"
	"sigil/internal/journey/statemachine"
	"sigil/internal/platform/metrics"
	"sigil/internal/platform/middleware"
	"sigil/internal/session/models"
	id "sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks SessionStore,AuditPublisher

// SessionStore is the slice of the session store the service needs.
type SessionStore interface {
	Read(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) error
}

// AuditPublisher receives one event per resolved transition.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service drives sessions through the journey graph. Resolution itself is
// pure; the service adds everything around it: loading and saving the
// session, structured logging, metrics, tracing, and the audit trail.
type Service struct {
	machine  *Machine
	sessions SessionStore
	auditor  AuditPublisher
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type ServiceOption func(*Service)

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(p AuditPublisher) ServiceOption {
	return func(s *Service) { s.auditor = p }
}

func NewService(machine *Machine, sessions SessionStore, opts ...ServiceOption) (*Service, error) {
	if machine == nil {
		return nil, errors.New("journey machine is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	s := &Service{
		machine:  machine,
		sessions: sessions,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Advance loads the session, resolves the action against the graph, and
// persists the outcome. A rejected action leaves the session untouched and
// returns a coded error the transport layer can map to a response.
//
// evalCtx may be nil when the caller has nothing beyond the session to offer;
// the service always injects the loaded session before resolving so guards
// can read it.
func (s *Service) Advance(ctx context.Context, sessionID id.SessionID, action models.Action, evalCtx *EvaluationContext) (*models.Session, error) {
	tracer := otel.Tracer("journey")
	ctx, span := tracer.Start(ctx, "journey.advance")
	defer span.End()
	span.SetAttributes(
		attribute.String("session_id", sessionID.String()),
		attribute.String("action", action.String()),
	)

	session, err := s.sessions.Read(ctx, sessionID)
	if err != nil {
		span.SetStatus(codes.Error, "session read failed")
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "session not found")
	}

	if evalCtx == nil {
		evalCtx = &EvaluationContext{}
	}
	evalCtx.Session = session

	from := session.State
	next, err := s.machine.TransitionWithContext(from, action, evalCtx)
	if err != nil {
		return nil, s.rejected(ctx, span, session, action, err)
	}

	s.apply(session, action, next)

	if err := s.sessions.Save(ctx, session); err != nil {
		span.SetStatus(codes.Error, "session save failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save session")
	}

	span.SetAttributes(
		attribute.String("from_state", from.String()),
		attribute.String("to_state", next.String()),
	)
	s.observe(action, "resolved")
	s.logger.InfoContext(ctx, "journey transition",
		"session_id", sessionID.String(),
		"action", action.String(),
		"from", from.String(),
		"to", next.String(),
	)
	s.emit(ctx, session, audit.Event{
		Action:    action.String(),
		FromState: from.String(),
		ToState:   next.String(),
		Outcome:   "resolved",
	})

	return session, nil
}

// apply mutates the session for the resolved transition. Starting a new
// journey from anywhere but a still-authenticated session resets the
// bookkeeping; an authenticated session keeps its trust so a second relying
// party can reuse the login.
func (s *Service) apply(session *models.Session, action models.Action, next models.State) {
	if action == models.ActionUserHasStartedANewJourney && next == models.StateNew {
		session.Reset()
		return
	}
	session.SetState(next)
}

func (s *Service) rejected(ctx context.Context, span trace.Span, session *models.Session, action models.Action, err error) error {
	var ambiguous *statemachine.AmbiguousTransitionError
	outcome := "invalid"
	code := dErrors.CodeInvalidTransition
	if errors.As(err, &ambiguous) {
		outcome = "ambiguous"
		code = dErrors.CodeAmbiguousTransition
	}

	span.SetStatus(codes.Error, outcome+" transition")
	s.observe(action, outcome)
	s.logger.WarnContext(ctx, "journey transition rejected",
		"session_id", session.ID.String(),
		"action", action.String(),
		"state", session.State.String(),
		"outcome", outcome,
	)
	s.emit(ctx, session, audit.Event{
		Action:    action.String(),
		FromState: session.State.String(),
		Outcome:   outcome,
	})

	return dErrors.Wrap(err, code, "action not allowed in current state")
}

func (s *Service) observe(action models.Action, outcome string) {
	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(action.String(), outcome).Inc()
	}
}

func (s *Service) emit(ctx context.Context, session *models.Session, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.SessionID = session.ID.String()
	event.RequestID = middleware.GetRequestID(ctx)
	event.Device = middleware.GetDevice(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"session_id", event.SessionID,
			"action", event.Action,
			"error", err,
		)
	}
}
