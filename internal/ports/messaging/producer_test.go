package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	destination string
	body        []byte
	err         error
}

func (s *captureSender) SendMessage(ctx context.Context, destination string, body []byte) error {
	if s.err != nil {
		return s.err
	}
	s.destination = destination
	s.body = body
	return nil
}

func TestPublishBatchProcessed(t *testing.T) {
	sender := &captureSender{}
	producer := NewProducer(sender, "https://sqs.local/notify")

	event := BatchProcessedEvent{
		BatchID:       "b-123",
		Source:        "api",
		AcceptedCount: 7,
		OccurredAt:    time.Date(2024, 1, 15, 18, 0, 0, 0, time.UTC),
	}
	require.NoError(t, producer.PublishBatchProcessed(context.Background(), event))

	assert.Equal(t, "https://sqs.local/notify", sender.destination)

	var decoded BatchProcessedEvent
	require.NoError(t, json.Unmarshal(sender.body, &decoded))
	assert.Equal(t, event, decoded)
}

func TestPublishBatchProcessedSenderError(t *testing.T) {
	sender := &captureSender{err: errors.New("queue unavailable")}
	producer := NewProducer(sender, "https://sqs.local/notify")

	err := producer.PublishBatchProcessed(context.Background(), BatchProcessedEvent{BatchID: "b-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue unavailable")
}
