package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/abgdnv/gopos/pkg/config"
	"github.com/abgdnv/gopos/pkg/messaging"
	"github.com/nats-io/nats.go/jetstream"
)

type NatsPublisher struct {
	js      jetstream.JetStream
	retry   config.RetryConfig
	timeout time.Duration
}

// NewNatsPublisher returns a publisher whose every Publish, retries included, ends within timeout.
func NewNatsPublisher(js jetstream.JetStream, retry config.RetryConfig, timeout time.Duration) *NatsPublisher {
	return &NatsPublisher{js: js, retry: retry, timeout: timeout}
}

// Publish sends the event payload to JetStream, using the event's MessageID for de-duplication.
func (p *NatsPublisher) Publish(ctx context.Context, event messaging.Event) error {
	data, err := event.Payload()
	if err != nil {
		return fmt.Errorf("failed to get event payload: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	_, err = p.js.Publish(ctx, event.Subject(), data,
		jetstream.WithMsgID(event.MessageID()),
		jetstream.WithRetryAttempts(p.retry.MaxAttempts),
		jetstream.WithRetryWait(p.retry.InitialBackoff),
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Subject(), err)
	}
	return nil
}
