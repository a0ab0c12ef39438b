package messaging

import "time"

// BatchProcessedEvent is the JSON payload published after an ingestion batch
// commits. AcceptedCount covers newly accepted events only, not duplicates or
// rejected records.
type BatchProcessedEvent struct {
	BatchID       string    `json:"batchId"`
	Source        string    `json:"source"`
	AcceptedCount int       `json:"acceptedCount"`
	OccurredAt    time.Time `json:"occurredAt"`
}
