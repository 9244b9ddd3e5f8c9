package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sigil/internal/platform/kafka"
)

// Publisher is where domain logic hands off audit events. Implementations
// must be cheap to call from request paths.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// StorePublisher appends events to a Store. It is the sink of the in-process
// pipeline and the whole pipeline in development.
type StorePublisher struct {
	store Store
}

func NewStorePublisher(store Store) *StorePublisher {
	return &StorePublisher{store: store}
}

func (p *StorePublisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.store.Append(ctx, event)
}

func (p *StorePublisher) List(ctx context.Context, sessionID string) ([]Event, error) {
	return p.store.ListBySession(ctx, sessionID)
}

// KafkaPublisher ships events to the audit topic keyed by session, so all
// events of one journey land on one partition in order.
type KafkaPublisher struct {
	producer *kafka.Producer
}

func NewKafkaPublisher(producer *kafka.Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	p.producer.Produce(ctx, []byte(event.SessionID), payload)
	return nil
}
