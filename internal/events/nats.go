package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// StreamName of the JetStream stream keeping account events
const StreamName = "ACCOUNTS"

const HeaderKey = "Account-Key"

// NATSPublisher publishes to JetStream and waits for the stream ack
type NATSPublisher struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// NewNATSPublisher connects to url and makes sure the stream for subjects exists
func NewNATSPublisher(ctx context.Context, url string, subjects ...string) (*NATSPublisher, error) {
	if len(subjects) == 0 {
		return nil, errors.New("at least one subject is required")
	}

	conn, err := nats.Connect(url,
		nats.Name("account-service"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       StreamName,
		Subjects:   subjects,
		Storage:    jetstream.FileStorage,
		Duplicates: 10 * time.Minute,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", StreamName, err)
	}

	return &NATSPublisher{conn: conn, js: js}, nil
}

// Publish sets message id to key, so redelivery of the same event is deduplicated by the stream
func (p *NATSPublisher) Publish(ctx context.Context, subject string, key string, payload []byte) error {
	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set(HeaderKey, key)

	_, err := p.js.PublishMsg(ctx, msg, jetstream.WithMsgID(subject+":"+key), jetstream.WithRetryAttempts(3))
	if err != nil {
		return fmt.Errorf("jetstream publish to %s failed: %w", subject, err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
