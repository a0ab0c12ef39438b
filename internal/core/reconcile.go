package core

import (
	"sort"
	"time"

	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/identity"
)

// Break deducted from worked minutes when both a morning and an afternoon
// session are complete.
const lunchBreakMinutes = 60

// Evening/overtime apportioning of the day's overtime hours when both of
// those sessions are complete. Day-level totals are split, never recomputed
// from per-session clock deltas.
const (
	eveningHourShare  = 0.7
	overtimeHourShare = 0.3
)

// Reconcile derives the daily summary for one employee-day from the full
// event set. It is a pure function of its inputs: the same events always
// produce the same summary, which is what makes rebuilds idempotent. The
// caller stamps LastUpdated before persisting.
//
// emp is the registry snapshot for the denormalized display fields; nil is
// tolerated for employees the registry no longer resolves.
func Reconcile(employeeRef, date string, events []model.AttendanceEvent, emp *identity.Employee) model.DailySummary {
	summary := model.DailySummary{
		EmployeeRef: employeeRef,
		Date:        date,
	}
	if emp != nil {
		summary.EmployeeName = emp.Name
		summary.Department = emp.Department
	}

	ordered := make([]model.AttendanceEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ClockTime.Before(ordered[j].ClockTime)
	})

	// Latest in/out per slot wins; iterating in time order makes the last
	// overwrite the most recent.
	type slot struct {
		in, out *time.Time
	}
	slots := map[model.Session]*slot{}
	for _, sess := range model.Sessions {
		slots[sess] = &slot{}
	}

	for i := range ordered {
		ev := &ordered[i]
		if !ev.ClockType.Valid() {
			continue
		}

		t := ev.ClockTime
		s := slots[ev.ClockType.Session()]
		if ev.ClockType.IsIn() {
			s.in = &t
			summary.TotalSessions++
		} else {
			s.out = &t
		}

		summary.RegularHours += ev.RegularHours
		summary.OvertimeHours += ev.OvertimeHours

		if ev.IsLate {
			summary.HasLateEntry = true
		}
		switch ev.ClockType.Session() {
		case model.SessionEvening:
			summary.HasEveningSession = true
			summary.HasOvertime = true
		case model.SessionOvertime:
			summary.HasOvertime = true
		}
	}

	summary.TotalHours = summary.RegularHours + summary.OvertimeHours

	complete := map[model.Session]bool{}
	for _, sess := range model.Sessions {
		s := slots[sess]
		summary.SetSessionPair(sess, s.in, s.out)
		if s.in == nil {
			continue
		}
		if s.out != nil {
			complete[sess] = true
			summary.CompletedSessions++
		} else {
			summary.PendingSessions++
		}
	}
	summary.IsIncomplete = summary.PendingSessions > 0

	// Regular hours split evenly across whichever of morning/afternoon are
	// complete; the day totals are authoritative, not the clock deltas.
	switch {
	case complete[model.SessionMorning] && complete[model.SessionAfternoon]:
		summary.MorningHours = summary.RegularHours / 2
		summary.AfternoonHours = summary.RegularHours / 2
	case complete[model.SessionMorning]:
		summary.MorningHours = summary.RegularHours
	case complete[model.SessionAfternoon]:
		summary.AfternoonHours = summary.RegularHours
	}

	// Overtime hours: 70/30 between evening and overtime when both are
	// complete, otherwise whichever one is complete takes it all.
	switch {
	case complete[model.SessionEvening] && complete[model.SessionOvertime]:
		summary.EveningHours = summary.OvertimeHours * eveningHourShare
		summary.OvertimeSessionHours = summary.OvertimeHours * overtimeHourShare
	case complete[model.SessionEvening]:
		summary.EveningHours = summary.OvertimeHours
	case complete[model.SessionOvertime]:
		summary.OvertimeSessionHours = summary.OvertimeHours
	}

	minutes := 0
	for _, sess := range model.Sessions {
		if !complete[sess] {
			continue
		}
		s := slots[sess]
		minutes += int(s.out.Sub(*s.in) / time.Minute)
	}
	if complete[model.SessionMorning] && complete[model.SessionAfternoon] {
		minutes -= lunchBreakMinutes
	}
	if minutes < 0 {
		minutes = 0
	}
	summary.TotalMinutesWorked = minutes

	return summary
}
