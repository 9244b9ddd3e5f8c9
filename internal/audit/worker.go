package audit

import (
	"context"
	"log/slog"
)

// Recorder is the Publisher handed to request paths. Emit never blocks: it
// enqueues onto a bounded inbox and drops with a log line when the inbox is
// full. A Worker drains the inbox into the real sink.
type Recorder struct {
	inbox  chan Event
	logger *slog.Logger
}

func NewRecorder(buffer int, logger *slog.Logger) *Recorder {
	return &Recorder{
		inbox:  make(chan Event, buffer),
		logger: logger,
	}
}

func (r *Recorder) Emit(ctx context.Context, event Event) error {
	select {
	case r.inbox <- event:
	default:
		r.logger.WarnContext(ctx, "audit inbox full, dropping event",
			"session_id", event.SessionID,
			"action", event.Action,
		)
	}
	return nil
}

func (r *Recorder) Inbox() <-chan Event { return r.inbox }

// Worker consumes audit events from the recorder inbox and forwards them to
// a sink. Run returns when the context is cancelled; sink failures are
// logged and the event dropped rather than stalling the pipeline.
type Worker struct {
	sink   Publisher
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Publisher, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Emit(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "audit sink rejected event",
					"session_id", event.SessionID,
					"action", event.Action,
					"error", err,
				)
			}
		}
	}
}
