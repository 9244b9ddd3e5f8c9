// Package notify delivers one-time codes to users. The journey never sees
// delivery details; it only learns the system action the code policy engine
// raised.
package notify

import (
	"context"

	"sigil/internal/session/models"
)

// Delivery is one code dispatch: where it goes and which purpose it serves.
type Delivery struct {
	Recipient string
	Channel   models.Channel
	Purpose   models.Purpose
	Code      string
}

// Sender dispatches a code over its channel. Implementations must not log
// the code at rest; the log sender exists for development only.
type Sender interface {
	Send(ctx context.Context, delivery Delivery) error
}
