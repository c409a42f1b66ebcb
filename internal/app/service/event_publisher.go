package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/pyrelog/pyre/internal/app/model"
)

// EventPublisher publishes lifecycle events to NATS JetStream. Publishing
// is advisory: request outcomes never depend on it.
type EventPublisher struct {
	js nats.JetStreamContext
}

// NewEventPublisher creates a lifecycle event publisher.
func NewEventPublisher(js nats.JetStreamContext) *EventPublisher {
	return &EventPublisher{js: js}
}

// Publish emits one event to the lifecycle stream.
func (p *EventPublisher) Publish(kind, worryID string, count int64) error {
	event := model.LifecycleEvent{
		ID:        uuid.New().String(),
		WorryID:   worryID,
		Kind:      kind,
		Count:     count,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.LifecycleStreamSubject, data)
	return err
}
