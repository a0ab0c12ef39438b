package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"attendance.service/internal/core/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PgEventRepository is the Postgres implementation of EventRepository.
// The same code serves pool-bound reads and transaction-bound writes.
type PgEventRepository struct {
	q dbtx
}

// date is selected as text so the model keeps the plain YYYY-MM-DD form.
const eventColumns = `id, employee_ref, badge_number, employee_number, clock_type, clock_time,
       date::text, regular_hours, overtime_hours, is_late, synced, notes, location, device_info, created_at`

func scanEvent(row interface{ Scan(...any) error }) (*model.AttendanceEvent, error) {
	ev := &model.AttendanceEvent{}
	err := row.Scan(
		&ev.ID, &ev.EmployeeRef, &ev.BadgeNumber, &ev.EmployeeNumber, &ev.ClockType, &ev.ClockTime,
		&ev.Date, &ev.RegularHours, &ev.OvertimeHours, &ev.IsLate, &ev.Synced,
		&ev.Notes, &ev.Location, &ev.DeviceInfo, &ev.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// Insert appends one event and returns its surrogate id.
func (r *PgEventRepository) Insert(ctx context.Context, ev *model.AttendanceEvent) (int64, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.employee_ref", ev.EmployeeRef))

	var id int64
	query := `INSERT INTO attendance_events
              (employee_ref, badge_number, employee_number, clock_type, clock_time, date,
               regular_hours, overtime_hours, is_late, synced, notes, location, device_info)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
              RETURNING id`

	err := r.q.QueryRowContext(ctx, query,
		ev.EmployeeRef, ev.BadgeNumber, ev.EmployeeNumber, ev.ClockType, ev.ClockTime, ev.Date,
		ev.RegularHours, ev.OvertimeHours, ev.IsLate, ev.Synced, ev.Notes, ev.Location, ev.DeviceInfo,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// HasDuplicate checks the event uniqueness key. Inside a transaction it also
// sees rows inserted earlier in the same batch.
func (r *PgEventRepository) HasDuplicate(ctx context.Context, key EventKey) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (
                SELECT 1 FROM attendance_events
                WHERE employee_ref = $1 AND clock_time = $2 AND date = $3 AND clock_type = $4
              )`

	err := r.q.QueryRowContext(ctx, query, key.EmployeeRef, key.ClockTime, key.Date, key.ClockType).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// GetByID fetches one event.
func (r *PgEventRepository) GetByID(ctx context.Context, id int64) (*model.AttendanceEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM attendance_events WHERE id = $1`

	ev, err := scanEvent(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// ListByEmployeeDay returns the full event set for one employee-day ordered
// by clock_time, which is what reconciliation re-derives from.
func (r *PgEventRepository) ListByEmployeeDay(ctx context.Context, employeeRef, date string) ([]model.AttendanceEvent, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.employee_ref", employeeRef))

	query := `SELECT ` + eventColumns + `
              FROM attendance_events
              WHERE employee_ref = $1 AND date = $2
              ORDER BY clock_time ASC, id ASC`

	rows, err := r.q.QueryContext(ctx, query, employeeRef, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// ListEmployeeDays enumerates distinct (employee, date) pairs in the range.
func (r *PgEventRepository) ListEmployeeDays(ctx context.Context, startDate, endDate string) ([]model.EmployeeDay, error) {
	query := `SELECT DISTINCT employee_ref, date::text
              FROM attendance_events
              WHERE date >= $1 AND date <= $2
              ORDER BY date ASC, employee_ref ASC`

	rows, err := r.q.QueryContext(ctx, query, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []model.EmployeeDay
	for rows.Next() {
		var d model.EmployeeDay
		if err := rows.Scan(&d.EmployeeRef, &d.Date); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// ListUnsynced returns events not yet acknowledged by the central store.
func (r *PgEventRepository) ListUnsynced(ctx context.Context) ([]model.AttendanceEvent, error) {
	query := `SELECT ` + eventColumns + `
              FROM attendance_events
              WHERE synced = false
              ORDER BY clock_time ASC, id ASC`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// MarkSynced flips the synced flag on the given ids and reports how many rows
// actually changed.
func (r *PgEventRepository) MarkSynced(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := `UPDATE attendance_events SET synced = true WHERE id IN (` + strings.Join(placeholders, ", ") + `)`

	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListRecent returns the newest events by clock_time.
func (r *PgEventRepository) ListRecent(ctx context.Context, limit int) ([]model.AttendanceEvent, error) {
	query := `SELECT ` + eventColumns + `
              FROM attendance_events
              ORDER BY clock_time DESC, id DESC
              LIMIT $1`

	rows, err := r.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// StatsByDate computes the per-date aggregate counters.
func (r *PgEventRepository) StatsByDate(ctx context.Context, date string) (*model.EventDayStats, error) {
	query := `SELECT COUNT(*),
                     COUNT(DISTINCT employee_ref),
                     COALESCE(SUM(regular_hours), 0),
                     COALESCE(SUM(overtime_hours), 0),
                     COUNT(*) FILTER (WHERE is_late),
                     COUNT(*) FILTER (WHERE clock_type LIKE '%_in'),
                     COUNT(*) FILTER (WHERE clock_type LIKE '%_out')
              FROM attendance_events
              WHERE date = $1`

	stats := &model.EventDayStats{Date: date}
	err := r.q.QueryRowContext(ctx, query, date).Scan(
		&stats.RecordCount, &stats.UniqueEmployees, &stats.RegularHours, &stats.OvertimeHours,
		&stats.LateCount, &stats.ClockInCount, &stats.ClockOutCount,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// CountUnsynced counts events still pending acknowledgement.
func (r *PgEventRepository) CountUnsynced(ctx context.Context) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance_events WHERE synced = false`).Scan(&n)
	return n, err
}

func collectEvents(rows *sql.Rows) ([]model.AttendanceEvent, error) {
	var events []model.AttendanceEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}
