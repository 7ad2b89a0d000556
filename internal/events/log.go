package events

import (
	"context"

	"github.com/nkiryanov/accounts/internal/logger"
)

// LogPublisher only writes events to log
// Used when no broker configured
type LogPublisher struct {
	Logger logger.Logger
}

func (p LogPublisher) Publish(_ context.Context, topic string, key string, payload []byte) error {
	p.Logger.Warn("No broker configured, event is dropped", "topic", topic, "key", key, "payload", string(payload))
	return nil
}

func (p LogPublisher) Close() error {
	return nil
}
