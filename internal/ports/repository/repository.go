package repository

import (
	"context"
	"errors"
	"time"

	"attendance.service/internal/core/model"
)

// ErrNotFound is returned by point lookups that match no row.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an insert collides with the event
// uniqueness key (employee_ref, clock_time, date, clock_type).
var ErrDuplicate = errors.New("duplicate attendance event")

// EventKey is the uniqueness key of the event log.
type EventKey struct {
	EmployeeRef string
	ClockTime   time.Time
	Date        string
	ClockType   model.ClockType
}

// KeyOf extracts the uniqueness key from an event.
func KeyOf(ev *model.AttendanceEvent) EventKey {
	return EventKey{
		EmployeeRef: ev.EmployeeRef,
		ClockTime:   ev.ClockTime,
		Date:        ev.Date,
		ClockType:   ev.ClockType,
	}
}

// EventRepository is the contract over the append-mostly event log.
type EventRepository interface {
	Insert(ctx context.Context, ev *model.AttendanceEvent) (int64, error)
	HasDuplicate(ctx context.Context, key EventKey) (bool, error)
	GetByID(ctx context.Context, id int64) (*model.AttendanceEvent, error)
	// ListByEmployeeDay returns the full event set for one employee-day,
	// ordered by clock_time ascending.
	ListByEmployeeDay(ctx context.Context, employeeRef, date string) ([]model.AttendanceEvent, error)
	// ListEmployeeDays enumerates every distinct (employee, date) pair with
	// events inside [startDate, endDate].
	ListEmployeeDays(ctx context.Context, startDate, endDate string) ([]model.EmployeeDay, error)
	ListUnsynced(ctx context.Context) ([]model.AttendanceEvent, error)
	MarkSynced(ctx context.Context, ids []int64) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]model.AttendanceEvent, error)
	StatsByDate(ctx context.Context, date string) (*model.EventDayStats, error)
	CountUnsynced(ctx context.Context) (int, error)
}

// SummaryFilter narrows summary listings. Nil booleans mean "no filter".
type SummaryFilter struct {
	EmployeeRef  string
	StartDate    string
	EndDate      string
	Department   string
	HasOvertime  *bool
	IsIncomplete *bool
	HasLateEntry *bool
	Limit        int
	Offset       int
}

// SummaryRepository is the contract over the one-row-per-(employee, date)
// aggregate table.
type SummaryRepository interface {
	Get(ctx context.Context, employeeRef, date string) (*model.DailySummary, error)
	GetByID(ctx context.Context, id int64) (*model.DailySummary, error)
	// Upsert inserts or overwrites the row keyed by (employee_ref, date).
	// The caller decides whether overwriting is appropriate; the store itself
	// applies no timestamp check.
	Upsert(ctx context.Context, s *model.DailySummary) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f SummaryFilter) ([]model.DailySummary, error)
	Stats(ctx context.Context, startDate, endDate string) (*model.SummaryStats, error)
}

// Store hands out repositories, either bound to the underlying pool for plain
// reads or bound to a fresh transaction for batch mutation.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	Events() EventRepository
	Summaries() SummaryRepository
}

// Tx is one transaction scope. Repositories obtained from it see and join the
// transaction's writes.
type Tx interface {
	Events() EventRepository
	Summaries() SummaryRepository
	Commit() error
	Rollback() error
	State() TxState
}
