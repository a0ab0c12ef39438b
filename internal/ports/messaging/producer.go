package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Producer publishes notification events through a MessageSender.
type Producer struct {
	sender         MessageSender
	notifyQueueURL string
}

func NewProducer(sender MessageSender, notifyQueueURL string) *Producer {
	return &Producer{
		sender:         sender,
		notifyQueueURL: notifyQueueURL,
	}
}

// NewSQSProducer creates a Producer backed by an AWS SQS sender.
func NewSQSProducer(client SQSClient, notifyQueueURL string) *Producer {
	return NewProducer(&SQSSender{client: client}, notifyQueueURL)
}

// PublishBatchProcessed sends the batch-processed notification.
func (p *Producer) PublishBatchProcessed(ctx context.Context, event BatchProcessedEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("app.batch_id", event.BatchID),
			attribute.Int("app.accepted_count", event.AcceptedCount),
		)
	}

	if err := p.sender.SendMessage(ctx, p.notifyQueueURL, b); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
