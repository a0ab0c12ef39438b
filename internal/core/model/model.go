package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format for the attendance date column.
// The date is authoritative over the date component of clock_time, which can
// differ around midnight shifts and timezone edges.
const DateLayout = "2006-01-02"

// Session identifies one of the four in/out slots of a working day.
type Session string

const (
	SessionMorning   Session = "morning"
	SessionAfternoon Session = "afternoon"
	SessionEvening   Session = "evening"
	SessionOvertime  Session = "overtime"
)

// Sessions lists the slots in day order.
var Sessions = []Session{SessionMorning, SessionAfternoon, SessionEvening, SessionOvertime}

// ClockType identifies which session slot an event belongs to and whether it
// opens or closes it.
type ClockType string

const (
	ClockMorningIn    ClockType = "morning_in"
	ClockMorningOut   ClockType = "morning_out"
	ClockAfternoonIn  ClockType = "afternoon_in"
	ClockAfternoonOut ClockType = "afternoon_out"
	ClockEveningIn    ClockType = "evening_in"
	ClockEveningOut   ClockType = "evening_out"
	ClockOvertimeIn   ClockType = "overtime_in"
	ClockOvertimeOut  ClockType = "overtime_out"
)

// Valid reports whether c is one of the eight known clock types.
func (c ClockType) Valid() bool {
	switch c {
	case ClockMorningIn, ClockMorningOut,
		ClockAfternoonIn, ClockAfternoonOut,
		ClockEveningIn, ClockEveningOut,
		ClockOvertimeIn, ClockOvertimeOut:
		return true
	}
	return false
}

// Session returns the slot this clock type belongs to.
func (c ClockType) Session() Session {
	s, _, _ := strings.Cut(string(c), "_")
	return Session(s)
}

// IsIn reports whether the event opens its session.
func (c ClockType) IsIn() bool {
	return strings.HasSuffix(string(c), "_in")
}

// IsOut reports whether the event closes its session.
func (c ClockType) IsOut() bool {
	return strings.HasSuffix(string(c), "_out")
}

// AttendanceEvent is a single raw time-clock record. Events are append-only:
// once accepted they are never mutated except for the synced flag. The
// uniqueness key is (employee_ref, clock_time, date, clock_type); inserts that
// collide on it are duplicates, not errors.
type AttendanceEvent struct {
	ID          int64  `json:"id,omitempty"`
	EmployeeRef string `json:"employee_ref"`
	// Denormalized copies for reporting; the employee registry is authoritative.
	BadgeNumber    string `json:"badge_number,omitempty"`
	EmployeeNumber string `json:"employee_number,omitempty"`

	ClockType ClockType `json:"clock_type"`
	ClockTime time.Time `json:"clock_time"`
	Date      string    `json:"date"`

	// Hour contributions as pre-computed by the submitting client; the engine
	// sums them but never re-derives them from timestamps.
	RegularHours  float64 `json:"regular_hours"`
	OvertimeHours float64 `json:"overtime_hours"`

	IsLate bool `json:"is_late"`
	Synced bool `json:"synced"`

	Notes      string `json:"notes,omitempty"`
	Location   string `json:"location,omitempty"`
	DeviceInfo string `json:"device_info,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// DailySummary is the derived aggregate for one (employee, date). It is
// overwritten wholesale either by internal re-derivation or by an external
// merge whose last_updated is strictly newer than the stored one.
type DailySummary struct {
	ID           int64  `json:"id,omitempty"`
	EmployeeRef  string `json:"employee_ref"`
	EmployeeName string `json:"employee_name,omitempty"`
	Department   string `json:"department,omitempty"`
	Date         string `json:"date"`

	MorningIn    *time.Time `json:"morning_in,omitempty"`
	MorningOut   *time.Time `json:"morning_out,omitempty"`
	AfternoonIn  *time.Time `json:"afternoon_in,omitempty"`
	AfternoonOut *time.Time `json:"afternoon_out,omitempty"`
	EveningIn    *time.Time `json:"evening_in,omitempty"`
	EveningOut   *time.Time `json:"evening_out,omitempty"`
	OvertimeIn   *time.Time `json:"overtime_in,omitempty"`
	OvertimeOut  *time.Time `json:"overtime_out,omitempty"`

	RegularHours  float64 `json:"regular_hours"`
	OvertimeHours float64 `json:"overtime_hours"`
	TotalHours    float64 `json:"total_hours"`

	MorningHours         float64 `json:"morning_hours"`
	AfternoonHours       float64 `json:"afternoon_hours"`
	EveningHours         float64 `json:"evening_hours"`
	OvertimeSessionHours float64 `json:"overtime_session_hours"`

	IsIncomplete      bool `json:"is_incomplete"`
	HasLateEntry      bool `json:"has_late_entry"`
	HasOvertime       bool `json:"has_overtime"`
	HasEveningSession bool `json:"has_evening_session"`

	TotalSessions     int `json:"total_sessions"`
	CompletedSessions int `json:"completed_sessions"`
	PendingSessions   int `json:"pending_sessions"`

	TotalMinutesWorked int `json:"total_minutes_worked"`

	// LastUpdated is the conflict-resolution clock for external merges.
	LastUpdated time.Time `json:"last_updated"`
}

// SessionPair returns the stored in/out timestamps for a slot.
func (s *DailySummary) SessionPair(sess Session) (in, out *time.Time) {
	switch sess {
	case SessionMorning:
		return s.MorningIn, s.MorningOut
	case SessionAfternoon:
		return s.AfternoonIn, s.AfternoonOut
	case SessionEvening:
		return s.EveningIn, s.EveningOut
	case SessionOvertime:
		return s.OvertimeIn, s.OvertimeOut
	}
	return nil, nil
}

// SetSessionPair stores the in/out timestamps for a slot.
func (s *DailySummary) SetSessionPair(sess Session, in, out *time.Time) {
	switch sess {
	case SessionMorning:
		s.MorningIn, s.MorningOut = in, out
	case SessionAfternoon:
		s.AfternoonIn, s.AfternoonOut = in, out
	case SessionEvening:
		s.EveningIn, s.EveningOut = in, out
	case SessionOvertime:
		s.OvertimeIn, s.OvertimeOut = in, out
	}
}

// EmployeeDay is one distinct (employee, date) pair found in the event log.
type EmployeeDay struct {
	EmployeeRef string `json:"employee_ref"`
	Date        string `json:"date"`
}

// Record-level error reasons surfaced in batch results.
const (
	ReasonValidation  = "validation_error"
	ReasonReferential = "referential_error"
)

// RecordError describes why one record of a batch was rejected. Index is the
// record's position in the submitted batch.
type RecordError struct {
	Index   int    `json:"index"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// BatchResult is the structured outcome of a batch ingestion or merge.
// Record-level errors never abort a batch; only a storage fault does, in
// which case no BatchResult is produced at all.
type BatchResult struct {
	ProcessedCount int           `json:"processed_count"`
	DuplicateCount int           `json:"duplicate_count"`
	ErrorCount     int           `json:"error_count"`
	TotalSubmitted int           `json:"total_submitted"`
	Errors         []RecordError `json:"errors"`
}

// AddError records one rejected record.
func (r *BatchResult) AddError(index int, reason, message string) {
	r.ErrorCount++
	r.Errors = append(r.Errors, RecordError{Index: index, Reason: reason, Message: message})
}

// RebuildResult reports a rebuild run over a date range.
type RebuildResult struct {
	ProcessedCount int `json:"processed_count"`
	SuccessCount   int `json:"success_count"`
	FailCount      int `json:"fail_count"`
}

// EventDayStats are the per-date aggregate counters over the event log.
type EventDayStats struct {
	Date            string  `json:"date"`
	RecordCount     int     `json:"record_count"`
	UniqueEmployees int     `json:"unique_employees"`
	RegularHours    float64 `json:"regular_hours"`
	OvertimeHours   float64 `json:"overtime_hours"`
	LateCount       int     `json:"late_count"`
	ClockInCount    int     `json:"clock_in_count"`
	ClockOutCount   int     `json:"clock_out_count"`
}

// EventStats is the stats endpoint payload: one day's counters plus the
// store-wide unsynced count and the most recent events.
type EventStats struct {
	EventDayStats
	UnsyncedCount int               `json:"unsynced_count"`
	RecentEvents  []AttendanceEvent `json:"recent_events"`
}

// SummaryStats aggregates the summary table over a date range.
type SummaryStats struct {
	TotalSummaries  int     `json:"total_summaries"`
	UniqueEmployees int     `json:"unique_employees"`
	RegularHours    float64 `json:"regular_hours"`
	OvertimeHours   float64 `json:"overtime_hours"`
	TotalHours      float64 `json:"total_hours"`
	IncompleteCount int     `json:"incomplete_count"`
	LateCount       int     `json:"late_count"`
	OvertimeCount   int     `json:"overtime_count"`
}

// ValidDate reports whether s is a well-formed calendar date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// DecodeEventPayload accepts the three wire shapes clients send: an
// {"attendance_data": ...} envelope, a bare array, or a single object.
func DecodeEventPayload(body []byte) ([]AttendanceEvent, error) {
	var envelope struct {
		AttendanceData json.RawMessage `json:"attendance_data"`
	}
	raw := json.RawMessage(body)
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.AttendanceData != nil {
		raw = envelope.AttendanceData
	}
	return decodeOneOrMany[AttendanceEvent](raw, "attendance_data")
}

// DecodeSummaryPayload is the summary-side twin of DecodeEventPayload,
// accepting a {"daily_summary_data": ...} envelope, an array, or one object.
func DecodeSummaryPayload(body []byte) ([]DailySummary, error) {
	var envelope struct {
		DailySummaryData json.RawMessage `json:"daily_summary_data"`
	}
	raw := json.RawMessage(body)
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.DailySummaryData != nil {
		raw = envelope.DailySummaryData
	}
	return decodeOneOrMany[DailySummary](raw, "daily_summary_data")
}

func decodeOneOrMany[T any](raw json.RawMessage, what string) ([]T, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, fmt.Errorf("empty %s payload", what)
	}
	if strings.HasPrefix(trimmed, "[") {
		var many []T
		if err := json.Unmarshal(raw, &many); err != nil {
			return nil, fmt.Errorf("decoding %s array: %w", what, err)
		}
		return many, nil
	}
	var one T
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", what, err)
	}
	return []T{one}, nil
}
