package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/identity"
	"attendance.service/internal/ports/repository"
	"github.com/rs/zerolog/log"
)

// SummaryService owns the daily-summary table: last-writer-wins merges of
// externally computed summaries, and rebuilds that re-derive summaries from
// the immutable event log. The two paths share the store but not the write
// policy: derivation always overwrites, external pushes must be newer.
type SummaryService struct {
	store    repository.Store
	identity identity.Lookup
}

// NewSummaryService wires the summary engine to its store and the registry.
func NewSummaryService(store repository.Store, lookup identity.Lookup) *SummaryService {
	return &SummaryService{
		store:    store,
		identity: lookup,
	}
}

// MergeBatch applies externally computed summaries under the
// last-writer-wins-by-timestamp policy, all inside one transaction. An
// incoming summary that is not strictly newer than the stored row is a
// conflict skip, counted as a duplicate.
func (s *SummaryService) MergeBatch(ctx context.Context, summaries []model.DailySummary) (*model.BatchResult, error) {
	result := &model.BatchResult{
		TotalSubmitted: len(summaries),
		Errors:         []model.RecordError{},
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("merge batch: %w", err)
	}

	for i := range summaries {
		incoming := summaries[i]

		if msg, ok := validateSummary(&incoming); !ok {
			result.AddError(i, model.ReasonValidation, msg)
			continue
		}

		existing, err := tx.Summaries().Get(ctx, incoming.EmployeeRef, incoming.Date)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, s.abort(tx, err, "summary lookup")
		}
		if existing != nil && !incoming.LastUpdated.After(existing.LastUpdated) {
			result.DuplicateCount++
			continue
		}

		if err := tx.Summaries().Upsert(ctx, &incoming); err != nil {
			return nil, s.abort(tx, err, "summary merge")
		}
		result.ProcessedCount++
	}

	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("merge batch: %w", err)
	}
	return result, nil
}

// Rebuild re-derives the summary for every distinct employee-day with events
// in [startDate, endDate], inside one transaction. Derivation always wins:
// the upsert overwrites unconditionally, with no timestamp check. Failures
// that happen before any write for a day (registry trouble) are counted and
// skipped; storage faults abort the whole run.
func (s *SummaryService) Rebuild(ctx context.Context, startDate, endDate string) (*model.RebuildResult, error) {
	if !model.ValidDate(startDate) || !model.ValidDate(endDate) {
		return nil, fmt.Errorf("%w: rebuild range must be two dates in %s form", ErrValidation, model.DateLayout)
	}

	result := &model.RebuildResult{}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuild: %w", err)
	}

	days, err := tx.Events().ListEmployeeDays(ctx, startDate, endDate)
	if err != nil {
		return nil, s.abort(tx, err, "enumerate employee-days")
	}

	for _, day := range days {
		result.ProcessedCount++

		summary, err := s.deriveDay(ctx, tx, day)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).
				Str("employee_ref", day.EmployeeRef).
				Str("date", day.Date).
				Msg("rebuild skipped employee-day")
			result.FailCount++
			continue
		}

		if err := tx.Summaries().Upsert(ctx, summary); err != nil {
			return nil, s.abort(tx, err, "rebuild upsert")
		}
		result.SuccessCount++
	}

	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("rebuild: %w", err)
	}
	return result, nil
}

// deriveDay runs the reconciliation engine for one employee-day.
func (s *SummaryService) deriveDay(ctx context.Context, tx repository.Tx, day model.EmployeeDay) (*model.DailySummary, error) {
	events, err := tx.Events().ListByEmployeeDay(ctx, day.EmployeeRef, day.Date)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	emp, err := s.identity.Resolve(ctx, day.EmployeeRef)
	if err != nil && !errors.Is(err, identity.ErrUnknownEmployee) {
		return nil, fmt.Errorf("resolve employee: %w", err)
	}
	// References that no longer resolve keep their events; the summary just
	// loses its display snapshot.

	summary := Reconcile(day.EmployeeRef, day.Date, events, emp)
	summary.LastUpdated = time.Now().UTC()
	return &summary, nil
}

// Get fetches one summary row.
func (s *SummaryService) Get(ctx context.Context, id int64) (*model.DailySummary, error) {
	return s.store.Summaries().GetByID(ctx, id)
}

// List returns summaries matching the filter.
func (s *SummaryService) List(ctx context.Context, f repository.SummaryFilter) ([]model.DailySummary, error) {
	return s.store.Summaries().List(ctx, f)
}

// Stats aggregates the summary table over a date range.
func (s *SummaryService) Stats(ctx context.Context, startDate, endDate string) (*model.SummaryStats, error) {
	if !model.ValidDate(startDate) || !model.ValidDate(endDate) {
		return nil, fmt.Errorf("%w: stats range must be two dates in %s form", ErrValidation, model.DateLayout)
	}
	return s.store.Summaries().Stats(ctx, startDate, endDate)
}

// Delete removes one summary row by id.
func (s *SummaryService) Delete(ctx context.Context, id int64) error {
	return s.store.Summaries().Delete(ctx, id)
}

func (s *SummaryService) abort(tx repository.Tx, err error, op string) error {
	if rbErr := tx.Rollback(); rbErr != nil {
		log.Warn().Err(rbErr).Msg("rollback after summary fault failed")
	}
	return fmt.Errorf("%s: %w", op, err)
}

// validateSummary checks the merge key fields.
func validateSummary(sum *model.DailySummary) (string, bool) {
	switch {
	case sum.EmployeeRef == "":
		return "missing employee_ref", false
	case sum.Date == "":
		return "missing date", false
	case !model.ValidDate(sum.Date):
		return fmt.Sprintf("malformed date %q", sum.Date), false
	case sum.LastUpdated.IsZero():
		return "missing last_updated", false
	}
	return "", true
}
