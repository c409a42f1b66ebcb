package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pyrelog/pyre/internal/app/model"
	apprepository "github.com/pyrelog/pyre/internal/app/repository"
	"go.uber.org/zap"
)

// EventConsumer drains the lifecycle stream into the audit table.
type EventConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	repo   apprepository.LifecycleEventRepository
}

// NewEventConsumer creates a lifecycle event consumer.
func NewEventConsumer(js nats.JetStreamContext, logger *zap.Logger, repo apprepository.LifecycleEventRepository) *EventConsumer {
	return &EventConsumer{js: js, logger: logger, repo: repo}
}

// Start ensures the stream and durable consumer exist, then consumes in
// the background.
func (c *EventConsumer) Start() error {
	_, err := c.js.StreamInfo(model.LifecycleStreamName)
	if err != nil {
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:     model.LifecycleStreamName,
			Subjects: []string{model.LifecycleStreamSubject},
			MaxBytes: model.LifecycleStreamMaxBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to create lifecycle stream: %w", err)
		}
	}

	_, err = c.js.ConsumerInfo(model.LifecycleStreamName, model.LifecycleConsumerName)
	if err != nil {
		_, err = c.js.AddConsumer(model.LifecycleStreamName, &nats.ConsumerConfig{
			Durable:   model.LifecycleConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create lifecycle consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.LifecycleStreamSubject, model.LifecycleConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe to lifecycle stream: %w", err)
	}

	go c.consume(sub)
	return nil
}

func (c *EventConsumer) consume(sub *nats.Subscription) {
	ctx := context.Background()
	for {
		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil && err != nats.ErrTimeout {
			c.logger.Error("failed to fetch lifecycle events", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			var event model.LifecycleEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				c.logger.Error("failed to unmarshal lifecycle event", zap.Error(err))
				msg.Nak()
				continue
			}

			if err := c.repo.Create(ctx, &event); err != nil {
				c.logger.Error("failed to store lifecycle event",
					zap.String("id", event.ID),
					zap.String("kind", event.Kind),
					zap.Error(err))
				msg.Nak()
				continue
			}

			c.logger.Debug("lifecycle event stored",
				zap.String("id", event.ID),
				zap.String("kind", event.Kind),
				zap.Int64("count", event.Count),
			)

			msg.Ack()
		}
	}
}
