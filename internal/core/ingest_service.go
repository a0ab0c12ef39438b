package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/identity"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrValidation marks a single-record submission rejected before it reached
// the store.
var ErrValidation = errors.New("invalid attendance event")

// IngestService is the ingestion pipeline: it validates, deduplicates, and
// transactionally persists batches of raw clock events.
type IngestService struct {
	store    repository.Store
	identity identity.Lookup
	relay    messaging.Relay
	source   string
}

// NewIngestService wires the pipeline to its store, the employee registry,
// and the notification relay. source tags outgoing notifications with the
// ingestion path ("api", "sync-worker").
func NewIngestService(store repository.Store, lookup identity.Lookup, relay messaging.Relay, source string) *IngestService {
	return &IngestService{
		store:    store,
		identity: lookup,
		relay:    relay,
		source:   source,
	}
}

// IngestBatch processes candidate events in submission order inside one
// transaction. Record-level failures are collected and never abort the batch;
// only a storage fault rolls everything back, in which case the returned
// error is the engine-level failure and no result is produced.
func (s *IngestService) IngestBatch(ctx context.Context, events []model.AttendanceEvent) (*model.BatchResult, error) {
	result := &model.BatchResult{
		TotalSubmitted: len(events),
		Errors:         []model.RecordError{},
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ingest batch: %w", err)
	}

	for i := range events {
		ev := events[i]

		if msg, ok := validateEvent(&ev); !ok {
			result.AddError(i, model.ReasonValidation, msg)
			continue
		}

		dup, err := tx.Events().HasDuplicate(ctx, repository.KeyOf(&ev))
		if err != nil {
			return nil, s.abort(tx, err, "duplicate check")
		}
		if dup {
			result.DuplicateCount++
			continue
		}

		exists, err := s.identity.Exists(ctx, ev.EmployeeRef)
		if err != nil {
			// Registry trouble is a per-record problem, not a storage fault;
			// the rest of the batch still gets its chance.
			result.AddError(i, model.ReasonReferential, fmt.Sprintf("employee lookup failed: %v", err))
			continue
		}
		if !exists {
			result.AddError(i, model.ReasonReferential, fmt.Sprintf("unknown employee reference %q", ev.EmployeeRef))
			continue
		}

		// Events arriving through this path are by definition already synced.
		ev.Synced = true
		if _, err := tx.Events().Insert(ctx, &ev); err != nil {
			return nil, s.abort(tx, err, "insert event")
		}
		result.ProcessedCount++
	}

	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("ingest batch: %w", err)
	}

	s.notifyBatchProcessed(ctx, result.ProcessedCount)
	return result, nil
}

// CreateEvent persists a single event outside the batch path. The duplicate
// key is a conflict here, not a silent skip. On success the stored event is
// returned together with the registry snapshot for display.
func (s *IngestService) CreateEvent(ctx context.Context, ev model.AttendanceEvent) (*model.AttendanceEvent, *identity.Employee, error) {
	if msg, ok := validateEvent(&ev); !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrValidation, msg)
	}

	dup, err := s.store.Events().HasDuplicate(ctx, repository.KeyOf(&ev))
	if err != nil {
		return nil, nil, fmt.Errorf("create event: %w", err)
	}
	if dup {
		return nil, nil, repository.ErrDuplicate
	}

	emp, err := s.identity.Resolve(ctx, ev.EmployeeRef)
	if err != nil {
		return nil, nil, err
	}

	ev.Synced = true
	id, err := s.store.Events().Insert(ctx, &ev)
	if err != nil {
		return nil, nil, fmt.Errorf("create event: %w", err)
	}
	ev.ID = id

	s.notifyBatchProcessed(ctx, 1)
	return &ev, emp, nil
}

// ListUnsynced returns events still awaiting acknowledgement.
func (s *IngestService) ListUnsynced(ctx context.Context) ([]model.AttendanceEvent, error) {
	return s.store.Events().ListUnsynced(ctx)
}

// MarkSynced acknowledges the given event ids.
func (s *IngestService) MarkSynced(ctx context.Context, ids []int64) (int64, error) {
	return s.store.Events().MarkSynced(ctx, ids)
}

// Stats assembles the per-date counters plus the unsynced backlog and the
// most recent events.
func (s *IngestService) Stats(ctx context.Context, date string) (*model.EventStats, error) {
	day, err := s.store.Events().StatsByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("event stats: %w", err)
	}

	unsynced, err := s.store.Events().CountUnsynced(ctx)
	if err != nil {
		return nil, fmt.Errorf("event stats: %w", err)
	}

	recent, err := s.store.Events().ListRecent(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("event stats: %w", err)
	}

	return &model.EventStats{
		EventDayStats: *day,
		UnsyncedCount: unsynced,
		RecentEvents:  recent,
	}, nil
}

// abort rolls the transaction back and wraps the fault. The Tx state machine
// makes Rollback a no-op if the transaction already reached a terminal state.
func (s *IngestService) abort(tx repository.Tx, err error, op string) error {
	if rbErr := tx.Rollback(); rbErr != nil {
		log.Warn().Err(rbErr).Msg("rollback after ingest fault failed")
	}
	return fmt.Errorf("%s: %w", op, err)
}

// notifyBatchProcessed emits the post-commit notification. Fire-and-forget:
// failures are logged and dropped, never surfaced to the caller.
func (s *IngestService) notifyBatchProcessed(ctx context.Context, accepted int) {
	if accepted == 0 {
		return
	}

	event := messaging.BatchProcessedEvent{
		BatchID:       uuid.NewString(),
		Source:        s.source,
		AcceptedCount: accepted,
		OccurredAt:    time.Now().UTC(),
	}
	if err := s.relay.PublishBatchProcessed(ctx, event); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("batch_id", event.BatchID).Msg("batch-processed notification dropped")
	}
}

// validateEvent checks the required fields and the clock-type vocabulary.
func validateEvent(ev *model.AttendanceEvent) (string, bool) {
	switch {
	case ev.EmployeeRef == "":
		return "missing employee_ref", false
	case ev.ClockType == "":
		return "missing clock_type", false
	case ev.ClockTime.IsZero():
		return "missing clock_time", false
	case ev.Date == "":
		return "missing date", false
	case !model.ValidDate(ev.Date):
		return fmt.Sprintf("malformed date %q", ev.Date), false
	case !ev.ClockType.Valid():
		return fmt.Sprintf("unknown clock_type %q", ev.ClockType), false
	}
	return "", true
}
