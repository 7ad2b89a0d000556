// Package events delivers domain events to external brokers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nkiryanov/accounts/internal/logger"
	"github.com/nkiryanov/accounts/internal/models"
)

const defaultPublishTimeout = 5 * time.Second

// Publisher sends one message to the broker
// Returns only when the broker acknowledged the message or ctx is done
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte) error
	Close() error
}

// Observer is notified about outcome of every publish
type Observer interface {
	Observe(topic string, err error)
}

type nopObserver struct{}

func (nopObserver) Observe(string, error) {}

type EmitterConfig struct {
	// Topic for account deletions, models.TopicAccountDeleted if empty
	Topic string

	// Upper bound of single publish, including retries inside publisher
	Timeout time.Duration
}

// Emitter publishes domain events fire-and-forget:
// failures are logged and observed but never returned to the caller
type Emitter struct {
	publisher Publisher
	topic     string
	timeout   time.Duration
	logger    logger.Logger
	observer  Observer
}

func NewEmitter(p Publisher, cfg EmitterConfig, l logger.Logger, o Observer) *Emitter {
	if cfg.Topic == "" {
		cfg.Topic = models.TopicAccountDeleted
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPublishTimeout
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}
	if o == nil {
		o = nopObserver{}
	}

	return &Emitter{
		publisher: p,
		topic:     cfg.Topic,
		timeout:   cfg.Timeout,
		logger:    l.With("component", "events"),
		observer:  o,
	}
}

// AccountDeleted publishes the event keyed by account id
// Caller cancellation doesn't abort publish, only the timeout does
func (e *Emitter) AccountDeleted(ctx context.Context, event models.AccountDeletedEvent) {
	err := e.publish(ctx, event.UserID.String(), event)
	e.observer.Observe(e.topic, err)

	if err != nil {
		e.logger.Error("Failed to publish event, dependent data has to be cleaned up manually",
			"topic", e.topic,
			"account_id", event.UserID,
			"error", err,
		)
		return
	}

	e.logger.Info("Event published", "topic", e.topic, "account_id", event.UserID)
}

func (e *Emitter) publish(ctx context.Context, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("error while encoding event. Err: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	return e.publisher.Publish(ctx, e.topic, key, payload)
}

func (e *Emitter) Close() error {
	return e.publisher.Close()
}
