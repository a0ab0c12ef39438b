// Package ingest drains attendance batches queued by offline clients into
// the ingestion pipeline. It is the queue-fed twin of the sync endpoint: the
// same pipeline semantics apply, and because duplicates are silent skips the
// at-least-once delivery of SQS is safe to replay.
package ingest

import (
	"context"
	"math"
	"strconv"

	"attendance.service/internal/core"
	"attendance.service/internal/core/model"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
)

// Processor handles one queued attendance batch per SQS message.
type Processor struct {
	service *core.IngestService
}

// NewProcessor creates a processor feeding the given pipeline.
func NewProcessor(s *core.IngestService) *Processor {
	return &Processor{service: s}
}

// Process decodes the batch payload and runs it through the pipeline.
// Malformed messages are dropped without retry; a transaction fault is
// retried with exponential backoff since the batch left no partial state.
func (p *Processor) Process(ctx context.Context, msg types.Message) (bool, int32, error) {
	if msg.Body == nil {
		return false, 0, nil
	}

	events, err := model.DecodeEventPayload([]byte(*msg.Body))
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to decode queued attendance batch")
		return false, 0, err // Do not retry on malformed message
	}

	result, err := p.service.IngestBatch(ctx, events)
	if err != nil {
		delay := calculateBackoff(receiveCount(msg))
		return true, delay, err
	}

	log.Ctx(ctx).Info().
		Int("processed", result.ProcessedCount).
		Int("duplicates", result.DuplicateCount).
		Int("errors", result.ErrorCount).
		Msg("Queued attendance batch ingested")
	return false, 0, nil
}

// receiveCount reads how many times SQS has delivered this message.
func receiveCount(msg types.Message) int {
	raw, ok := msg.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// calculateBackoff determines how long to wait before retrying a failed job.
// It increases the delay exponentially with each retry.
func calculateBackoff(retryCount int) int32 {
	backoff := int32(math.Pow(2, float64(retryCount)) * 10)
	if backoff > 3600 {
		return 3600 // max at 1 hour
	}
	return backoff
}
