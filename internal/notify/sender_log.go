package notify

import (
	"context"
	"log/slog"
)

// LogSender writes deliveries to the process log instead of a provider.
// Development only: it prints the code.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, delivery Delivery) error {
	s.logger.InfoContext(ctx, "code delivery (dev sender)",
		"recipient", delivery.Recipient,
		"channel", string(delivery.Channel),
		"code", delivery.Code,
	)
	return nil
}
