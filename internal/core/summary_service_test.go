package core

import (
	"context"
	"testing"
	"time"

	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSummaryFixture(refs ...string) (*SummaryService, *memStore) {
	store := newMemStore()
	return NewSummaryService(store, newFakeRegistry(refs...)), store
}

func externalSummary(employeeRef, date string, totalHours float64, updated time.Time) model.DailySummary {
	return model.DailySummary{
		EmployeeRef:  employeeRef,
		Date:         date,
		RegularHours: totalHours,
		TotalHours:   totalHours,
		LastUpdated:  updated,
	}
}

func TestMergeBatchInsertsNew(t *testing.T) {
	svc, store := newSummaryFixture()
	updated := time.Date(2024, 1, 16, 3, 0, 0, 0, time.UTC)

	result, err := svc.MergeBatch(context.Background(), []model.DailySummary{
		externalSummary("emp-001", testDate, 8, updated),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, 0, result.DuplicateCount)

	stored, ok := store.summaries[summaryKey("emp-001", testDate)]
	require.True(t, ok)
	assert.Equal(t, 8.0, stored.TotalHours)
	assert.NotZero(t, stored.ID)
}

func TestMergeBatchLastWriterWins(t *testing.T) {
	svc, store := newSummaryFixture()
	t0 := time.Date(2024, 1, 16, 3, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	_, err := svc.MergeBatch(context.Background(), []model.DailySummary{
		externalSummary("emp-001", testDate, 8, t1),
	})
	require.NoError(t, err)

	// An older snapshot arriving late is a conflict skip, not an overwrite.
	result, err := svc.MergeBatch(context.Background(), []model.DailySummary{
		externalSummary("emp-001", testDate, 6, t0),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ProcessedCount)
	assert.Equal(t, 1, result.DuplicateCount)
	assert.Equal(t, 8.0, store.summaries[summaryKey("emp-001", testDate)].TotalHours)

	// Equal timestamps are not strictly newer either.
	result, err = svc.MergeBatch(context.Background(), []model.DailySummary{
		externalSummary("emp-001", testDate, 6, t1),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.DuplicateCount)
	assert.Equal(t, 8.0, store.summaries[summaryKey("emp-001", testDate)].TotalHours)

	// A strictly newer snapshot replaces the row wholesale.
	result, err = svc.MergeBatch(context.Background(), []model.DailySummary{
		externalSummary("emp-001", testDate, 7.5, t1.Add(time.Minute)),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, 7.5, store.summaries[summaryKey("emp-001", testDate)].TotalHours)
}

func TestMergeBatchValidation(t *testing.T) {
	svc, _ := newSummaryFixture()
	updated := time.Date(2024, 1, 16, 3, 0, 0, 0, time.UTC)

	result, err := svc.MergeBatch(context.Background(), []model.DailySummary{
		externalSummary("", testDate, 8, updated),
		externalSummary("emp-001", "15/01/2024", 8, updated),
		externalSummary("emp-001", testDate, 8, time.Time{}),
		externalSummary("emp-001", testDate, 8, updated),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, 3, result.ErrorCount)
	require.Len(t, result.Errors, 3)
	assert.Equal(t, 0, result.Errors[0].Index)
	assert.Equal(t, 1, result.Errors[1].Index)
	assert.Equal(t, 2, result.Errors[2].Index)
	for _, re := range result.Errors {
		assert.Equal(t, model.ReasonValidation, re.Reason)
	}
}

func TestMergeBatchCommitFaultAborts(t *testing.T) {
	svc, store := newSummaryFixture()
	store.failCommit = true

	result, err := svc.MergeBatch(context.Background(), []model.DailySummary{
		externalSummary("emp-001", testDate, 8, time.Now().UTC()),
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Empty(t, store.summaries)
}

func TestMergeBatchUpsertFaultRollsBack(t *testing.T) {
	svc, store := newSummaryFixture()
	store.failUpsert = true

	result, err := svc.MergeBatch(context.Background(), []model.DailySummary{
		externalSummary("emp-001", testDate, 8, time.Now().UTC()),
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Empty(t, store.summaries)
}

func seedDay(t *testing.T, store *memStore, employeeRef string) {
	t.Helper()
	events := []model.AttendanceEvent{
		clockEvent(model.ClockMorningIn, at(9, 0), 4, 0),
		clockEvent(model.ClockMorningOut, at(13, 0), 0, 0),
		clockEvent(model.ClockAfternoonIn, at(14, 0), 4, 0),
		clockEvent(model.ClockAfternoonOut, at(18, 0), 0, 0),
	}
	for _, ev := range events {
		ev.EmployeeRef = employeeRef
		_, err := store.Events().Insert(context.Background(), &ev)
		require.NoError(t, err)
	}
}

func TestRebuildDerivesFromEvents(t *testing.T) {
	svc, store := newSummaryFixture("emp-001", "emp-002")
	seedDay(t, store, "emp-001")
	seedDay(t, store, "emp-002")

	result, err := svc.Rebuild(context.Background(), testDate, testDate)
	require.NoError(t, err)

	assert.Equal(t, 2, result.ProcessedCount)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 0, result.FailCount)

	stored, ok := store.summaries[summaryKey("emp-001", testDate)]
	require.True(t, ok)
	assert.Equal(t, 8.0, stored.TotalHours)
	assert.Equal(t, 420, stored.TotalMinutesWorked)
	assert.Equal(t, "Employee emp-001", stored.EmployeeName)
	assert.False(t, stored.LastUpdated.IsZero())
}

func TestRebuildOverwritesStaleSummary(t *testing.T) {
	svc, store := newSummaryFixture("emp-001")
	seedDay(t, store, "emp-001")

	// A future-dated external row would block a merge; derivation ignores the
	// timestamp and overwrites anyway.
	future := externalSummary("emp-001", testDate, 99, time.Now().Add(24*time.Hour))
	require.NoError(t, store.Summaries().Upsert(context.Background(), &future))

	_, err := svc.Rebuild(context.Background(), testDate, testDate)
	require.NoError(t, err)

	stored := store.summaries[summaryKey("emp-001", testDate)]
	assert.Equal(t, 8.0, stored.TotalHours)
}

func TestRebuildIdempotent(t *testing.T) {
	svc, store := newSummaryFixture("emp-001")
	seedDay(t, store, "emp-001")

	_, err := svc.Rebuild(context.Background(), testDate, testDate)
	require.NoError(t, err)
	first := store.summaries[summaryKey("emp-001", testDate)]

	_, err = svc.Rebuild(context.Background(), testDate, testDate)
	require.NoError(t, err)
	second := store.summaries[summaryKey("emp-001", testDate)]

	// Only the derivation stamp may differ between runs.
	first.LastUpdated = time.Time{}
	second.LastUpdated = time.Time{}
	assert.Equal(t, first, second)
}

func TestRebuildUnknownEmployeeKeepsSummary(t *testing.T) {
	svc, store := newSummaryFixture("emp-001")
	seedDay(t, store, "emp-001")
	seedDay(t, store, "ghost-404")

	result, err := svc.Rebuild(context.Background(), testDate, testDate)
	require.NoError(t, err)

	// A reference the registry cannot resolve still gets its summary, just
	// without the display snapshot.
	assert.Equal(t, 2, result.ProcessedCount)
	assert.Equal(t, 2, result.SuccessCount)

	ghost, ok := store.summaries[summaryKey("ghost-404", testDate)]
	require.True(t, ok)
	assert.Empty(t, ghost.EmployeeName)
	assert.Equal(t, 8.0, ghost.TotalHours)
}

func TestRebuildRegistryFaultCountsFailure(t *testing.T) {
	store := newMemStore()
	registry := newFakeRegistry("emp-001")
	registry.err = errStorageDown
	svc := NewSummaryService(store, registry)
	seedDay(t, store, "emp-001")

	result, err := svc.Rebuild(context.Background(), testDate, testDate)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, 0, result.SuccessCount)
	assert.Equal(t, 1, result.FailCount)
	assert.Empty(t, store.summaries)
}

func TestRebuildRejectsMalformedRange(t *testing.T) {
	svc, _ := newSummaryFixture()

	_, err := svc.Rebuild(context.Background(), "15/01/2024", testDate)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Rebuild(context.Background(), testDate, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSummaryListAndStats(t *testing.T) {
	svc, store := newSummaryFixture()
	updated := time.Date(2024, 1, 16, 3, 0, 0, 0, time.UTC)

	overtime := externalSummary("emp-001", testDate, 10, updated)
	overtime.OvertimeHours = 2
	overtime.HasOvertime = true
	require.NoError(t, store.Summaries().Upsert(context.Background(), &overtime))

	incomplete := externalSummary("emp-002", testDate, 4, updated)
	incomplete.IsIncomplete = true
	require.NoError(t, store.Summaries().Upsert(context.Background(), &incomplete))

	hasOvertime := true
	got, err := svc.List(context.Background(), repository.SummaryFilter{HasOvertime: &hasOvertime})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "emp-001", got[0].EmployeeRef)

	stats, err := svc.Stats(context.Background(), testDate, testDate)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalSummaries)
	assert.Equal(t, 2, stats.UniqueEmployees)
	assert.Equal(t, 1, stats.OvertimeCount)
	assert.Equal(t, 1, stats.IncompleteCount)
	assert.Equal(t, 14.0, stats.TotalHours)

	_, err = svc.Stats(context.Background(), "bad", testDate)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSummaryGetAndDelete(t *testing.T) {
	svc, store := newSummaryFixture()
	row := externalSummary("emp-001", testDate, 8, time.Now().UTC())
	require.NoError(t, store.Summaries().Upsert(context.Background(), &row))

	got, err := svc.Get(context.Background(), row.ID)
	require.NoError(t, err)
	assert.Equal(t, "emp-001", got.EmployeeRef)

	require.NoError(t, svc.Delete(context.Background(), row.ID))
	_, err = svc.Get(context.Background(), row.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(context.Background(), 999), repository.ErrNotFound)
}
