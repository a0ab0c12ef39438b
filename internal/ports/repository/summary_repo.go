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

// PgSummaryRepository is the Postgres implementation of SummaryRepository.
type PgSummaryRepository struct {
	q dbtx
}

// date is selected as text so the model keeps the plain YYYY-MM-DD form.
const summaryColumns = `id, employee_ref, employee_name, department, date::text,
       morning_in, morning_out, afternoon_in, afternoon_out,
       evening_in, evening_out, overtime_in, overtime_out,
       regular_hours, overtime_hours, total_hours,
       morning_hours, afternoon_hours, evening_hours, overtime_session_hours,
       is_incomplete, has_late_entry, has_overtime, has_evening_session,
       total_sessions, completed_sessions, pending_sessions,
       total_minutes_worked, last_updated`

func scanSummary(row interface{ Scan(...any) error }) (*model.DailySummary, error) {
	s := &model.DailySummary{}
	err := row.Scan(
		&s.ID, &s.EmployeeRef, &s.EmployeeName, &s.Department, &s.Date,
		&s.MorningIn, &s.MorningOut, &s.AfternoonIn, &s.AfternoonOut,
		&s.EveningIn, &s.EveningOut, &s.OvertimeIn, &s.OvertimeOut,
		&s.RegularHours, &s.OvertimeHours, &s.TotalHours,
		&s.MorningHours, &s.AfternoonHours, &s.EveningHours, &s.OvertimeSessionHours,
		&s.IsIncomplete, &s.HasLateEntry, &s.HasOvertime, &s.HasEveningSession,
		&s.TotalSessions, &s.CompletedSessions, &s.PendingSessions,
		&s.TotalMinutesWorked, &s.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Get fetches the summary keyed by (employee_ref, date).
func (r *PgSummaryRepository) Get(ctx context.Context, employeeRef, date string) (*model.DailySummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM daily_summaries WHERE employee_ref = $1 AND date = $2`

	s, err := scanSummary(r.q.QueryRowContext(ctx, query, employeeRef, date))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByID fetches one summary row.
func (r *PgSummaryRepository) GetByID(ctx context.Context, id int64) (*model.DailySummary, error) {
	query := `SELECT ` + summaryColumns + ` FROM daily_summaries WHERE id = $1`

	s, err := scanSummary(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Upsert inserts or overwrites the row for (employee_ref, date). Every field
// is replaced; the ON CONFLICT row lock is what serializes concurrent writers
// on the same employee-day.
func (r *PgSummaryRepository) Upsert(ctx context.Context, s *model.DailySummary) error {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.employee_ref", s.EmployeeRef))

	query := `INSERT INTO daily_summaries
              (employee_ref, employee_name, department, date,
               morning_in, morning_out, afternoon_in, afternoon_out,
               evening_in, evening_out, overtime_in, overtime_out,
               regular_hours, overtime_hours, total_hours,
               morning_hours, afternoon_hours, evening_hours, overtime_session_hours,
               is_incomplete, has_late_entry, has_overtime, has_evening_session,
               total_sessions, completed_sessions, pending_sessions,
               total_minutes_worked, last_updated)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
                      $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)
              ON CONFLICT (employee_ref, date) DO UPDATE SET
               employee_name = EXCLUDED.employee_name,
               department = EXCLUDED.department,
               morning_in = EXCLUDED.morning_in,
               morning_out = EXCLUDED.morning_out,
               afternoon_in = EXCLUDED.afternoon_in,
               afternoon_out = EXCLUDED.afternoon_out,
               evening_in = EXCLUDED.evening_in,
               evening_out = EXCLUDED.evening_out,
               overtime_in = EXCLUDED.overtime_in,
               overtime_out = EXCLUDED.overtime_out,
               regular_hours = EXCLUDED.regular_hours,
               overtime_hours = EXCLUDED.overtime_hours,
               total_hours = EXCLUDED.total_hours,
               morning_hours = EXCLUDED.morning_hours,
               afternoon_hours = EXCLUDED.afternoon_hours,
               evening_hours = EXCLUDED.evening_hours,
               overtime_session_hours = EXCLUDED.overtime_session_hours,
               is_incomplete = EXCLUDED.is_incomplete,
               has_late_entry = EXCLUDED.has_late_entry,
               has_overtime = EXCLUDED.has_overtime,
               has_evening_session = EXCLUDED.has_evening_session,
               total_sessions = EXCLUDED.total_sessions,
               completed_sessions = EXCLUDED.completed_sessions,
               pending_sessions = EXCLUDED.pending_sessions,
               total_minutes_worked = EXCLUDED.total_minutes_worked,
               last_updated = EXCLUDED.last_updated
              RETURNING id`

	return r.q.QueryRowContext(ctx, query,
		s.EmployeeRef, s.EmployeeName, s.Department, s.Date,
		s.MorningIn, s.MorningOut, s.AfternoonIn, s.AfternoonOut,
		s.EveningIn, s.EveningOut, s.OvertimeIn, s.OvertimeOut,
		s.RegularHours, s.OvertimeHours, s.TotalHours,
		s.MorningHours, s.AfternoonHours, s.EveningHours, s.OvertimeSessionHours,
		s.IsIncomplete, s.HasLateEntry, s.HasOvertime, s.HasEveningSession,
		s.TotalSessions, s.CompletedSessions, s.PendingSessions,
		s.TotalMinutesWorked, s.LastUpdated,
	).Scan(&s.ID)
}

// Delete removes one summary row.
func (r *PgSummaryRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM daily_summaries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns summaries matching the filter, newest date first.
func (r *PgSummaryRepository) List(ctx context.Context, f SummaryFilter) ([]model.DailySummary, error) {
	var conds []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.EmployeeRef != "" {
		conds = append(conds, "employee_ref = "+arg(f.EmployeeRef))
	}
	if f.StartDate != "" {
		conds = append(conds, "date >= "+arg(f.StartDate))
	}
	if f.EndDate != "" {
		conds = append(conds, "date <= "+arg(f.EndDate))
	}
	if f.Department != "" {
		conds = append(conds, "department = "+arg(f.Department))
	}
	if f.HasOvertime != nil {
		conds = append(conds, "has_overtime = "+arg(*f.HasOvertime))
	}
	if f.IsIncomplete != nil {
		conds = append(conds, "is_incomplete = "+arg(*f.IsIncomplete))
	}
	if f.HasLateEntry != nil {
		conds = append(conds, "has_late_entry = "+arg(*f.HasLateEntry))
	}

	query := `SELECT ` + summaryColumns + ` FROM daily_summaries`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date DESC, employee_ref ASC"

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT " + arg(limit)
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []model.DailySummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *s)
	}
	return summaries, rows.Err()
}

// Stats aggregates the summary table over a date range.
func (r *PgSummaryRepository) Stats(ctx context.Context, startDate, endDate string) (*model.SummaryStats, error) {
	query := `SELECT COUNT(*),
                     COUNT(DISTINCT employee_ref),
                     COALESCE(SUM(regular_hours), 0),
                     COALESCE(SUM(overtime_hours), 0),
                     COALESCE(SUM(total_hours), 0),
                     COUNT(*) FILTER (WHERE is_incomplete),
                     COUNT(*) FILTER (WHERE has_late_entry),
                     COUNT(*) FILTER (WHERE has_overtime)
              FROM daily_summaries
              WHERE date >= $1 AND date <= $2`

	stats := &model.SummaryStats{}
	err := r.q.QueryRowContext(ctx, query, startDate, endDate).Scan(
		&stats.TotalSummaries, &stats.UniqueEmployees,
		&stats.RegularHours, &stats.OvertimeHours, &stats.TotalHours,
		&stats.IncompleteCount, &stats.LateCount, &stats.OvertimeCount,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
