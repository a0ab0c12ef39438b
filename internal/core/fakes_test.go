package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/identity"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/repository"
)

var errStorageDown = errors.New("storage unavailable")

// memStore is an in-memory Store with real transaction semantics: a Tx works
// on a snapshot and only Commit publishes it back.
type memStore struct {
	mu        sync.Mutex
	events    []model.AttendanceEvent
	summaries map[string]model.DailySummary
	nextEvID  int64
	nextSumID int64

	// Fault injection.
	failInsertAfter int // fail the n-th insert of a tx when > 0
	failUpsert      bool
	failCommit      bool
}

func newMemStore() *memStore {
	return &memStore{
		summaries: map[string]model.DailySummary{},
		nextEvID:  1,
		nextSumID: 1,
	}
}

func summaryKey(employeeRef, date string) string {
	return employeeRef + "|" + date
}

func (s *memStore) Begin(ctx context.Context) (repository.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s, state: repository.TxActive}
	tx.events = append([]model.AttendanceEvent(nil), s.events...)
	tx.summaries = map[string]model.DailySummary{}
	for k, v := range s.summaries {
		tx.summaries[k] = v
	}
	tx.nextEvID = s.nextEvID
	tx.nextSumID = s.nextSumID
	tx.failInsertAfter = s.failInsertAfter
	tx.failUpsert = s.failUpsert
	return tx, nil
}

func (s *memStore) Events() repository.EventRepository {
	return &memEvents{events: &s.events, nextID: &s.nextEvID}
}

func (s *memStore) Summaries() repository.SummaryRepository {
	return &memSummaries{summaries: s.summaries, nextID: &s.nextSumID}
}

type memTx struct {
	store     *memStore
	state     repository.TxState
	events    []model.AttendanceEvent
	summaries map[string]model.DailySummary
	nextEvID  int64
	nextSumID int64

	inserts         int
	failInsertAfter int
	failUpsert      bool
}

func (t *memTx) Events() repository.EventRepository {
	return &memEvents{events: &t.events, nextID: &t.nextEvID, tx: t}
}

func (t *memTx) Summaries() repository.SummaryRepository {
	return &memSummaries{summaries: t.summaries, nextID: &t.nextSumID, tx: t}
}

func (t *memTx) State() repository.TxState { return t.state }

func (t *memTx) Commit() error {
	if t.state != repository.TxActive {
		return fmt.Errorf("commit: transaction is %s", t.state)
	}
	if t.store.failCommit {
		t.state = repository.TxRolledBack
		return errStorageDown
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.events = t.events
	t.store.summaries = t.summaries
	t.store.nextEvID = t.nextEvID
	t.store.nextSumID = t.nextSumID
	t.state = repository.TxCommitted
	return nil
}

func (t *memTx) Rollback() error {
	if t.state != repository.TxActive {
		return nil
	}
	t.state = repository.TxRolledBack
	return nil
}

type memEvents struct {
	events *[]model.AttendanceEvent
	nextID *int64
	tx     *memTx
}

func (r *memEvents) Insert(ctx context.Context, ev *model.AttendanceEvent) (int64, error) {
	if r.tx != nil {
		r.tx.inserts++
		if r.tx.failInsertAfter > 0 && r.tx.inserts >= r.tx.failInsertAfter {
			return 0, errStorageDown
		}
	}
	stored := *ev
	stored.ID = *r.nextID
	*r.nextID++
	*r.events = append(*r.events, stored)
	return stored.ID, nil
}

func (r *memEvents) HasDuplicate(ctx context.Context, key repository.EventKey) (bool, error) {
	for _, ev := range *r.events {
		if repository.KeyOf(&ev) == key {
			return true, nil
		}
	}
	return false, nil
}

func (r *memEvents) GetByID(ctx context.Context, id int64) (*model.AttendanceEvent, error) {
	for _, ev := range *r.events {
		if ev.ID == id {
			out := ev
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memEvents) ListByEmployeeDay(ctx context.Context, employeeRef, date string) ([]model.AttendanceEvent, error) {
	var out []model.AttendanceEvent
	for _, ev := range *r.events {
		if ev.EmployeeRef == employeeRef && ev.Date == date {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClockTime.Before(out[j].ClockTime) })
	return out, nil
}

func (r *memEvents) ListEmployeeDays(ctx context.Context, startDate, endDate string) ([]model.EmployeeDay, error) {
	seen := map[model.EmployeeDay]bool{}
	var out []model.EmployeeDay
	for _, ev := range *r.events {
		if ev.Date < startDate || ev.Date > endDate {
			continue
		}
		d := model.EmployeeDay{EmployeeRef: ev.EmployeeRef, Date: ev.Date}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].EmployeeRef < out[j].EmployeeRef
	})
	return out, nil
}

func (r *memEvents) ListUnsynced(ctx context.Context) ([]model.AttendanceEvent, error) {
	var out []model.AttendanceEvent
	for _, ev := range *r.events {
		if !ev.Synced {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *memEvents) MarkSynced(ctx context.Context, ids []int64) (int64, error) {
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var n int64
	for i := range *r.events {
		ev := &(*r.events)[i]
		if want[ev.ID] && !ev.Synced {
			ev.Synced = true
			n++
		}
	}
	return n, nil
}

func (r *memEvents) ListRecent(ctx context.Context, limit int) ([]model.AttendanceEvent, error) {
	out := append([]model.AttendanceEvent(nil), *r.events...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClockTime.After(out[j].ClockTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memEvents) StatsByDate(ctx context.Context, date string) (*model.EventDayStats, error) {
	stats := &model.EventDayStats{Date: date}
	employees := map[string]bool{}
	for _, ev := range *r.events {
		if ev.Date != date {
			continue
		}
		stats.RecordCount++
		employees[ev.EmployeeRef] = true
		stats.RegularHours += ev.RegularHours
		stats.OvertimeHours += ev.OvertimeHours
		if ev.IsLate {
			stats.LateCount++
		}
		if ev.ClockType.IsIn() {
			stats.ClockInCount++
		} else if ev.ClockType.IsOut() {
			stats.ClockOutCount++
		}
	}
	stats.UniqueEmployees = len(employees)
	return stats, nil
}

func (r *memEvents) CountUnsynced(ctx context.Context) (int, error) {
	n := 0
	for _, ev := range *r.events {
		if !ev.Synced {
			n++
		}
	}
	return n, nil
}

type memSummaries struct {
	summaries map[string]model.DailySummary
	nextID    *int64
	tx        *memTx
}

func (r *memSummaries) Get(ctx context.Context, employeeRef, date string) (*model.DailySummary, error) {
	s, ok := r.summaries[summaryKey(employeeRef, date)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := s
	return &out, nil
}

func (r *memSummaries) GetByID(ctx context.Context, id int64) (*model.DailySummary, error) {
	for _, s := range r.summaries {
		if s.ID == id {
			out := s
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memSummaries) Upsert(ctx context.Context, s *model.DailySummary) error {
	if r.tx != nil && r.tx.failUpsert {
		return errStorageDown
	}
	key := summaryKey(s.EmployeeRef, s.Date)
	if existing, ok := r.summaries[key]; ok {
		s.ID = existing.ID
	} else {
		s.ID = *r.nextID
		*r.nextID++
	}
	r.summaries[key] = *s
	return nil
}

func (r *memSummaries) Delete(ctx context.Context, id int64) error {
	for key, s := range r.summaries {
		if s.ID == id {
			delete(r.summaries, key)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *memSummaries) List(ctx context.Context, f repository.SummaryFilter) ([]model.DailySummary, error) {
	var out []model.DailySummary
	for _, s := range r.summaries {
		if f.EmployeeRef != "" && s.EmployeeRef != f.EmployeeRef {
			continue
		}
		if f.StartDate != "" && s.Date < f.StartDate {
			continue
		}
		if f.EndDate != "" && s.Date > f.EndDate {
			continue
		}
		if f.Department != "" && s.Department != f.Department {
			continue
		}
		if f.HasOvertime != nil && s.HasOvertime != *f.HasOvertime {
			continue
		}
		if f.IsIncomplete != nil && s.IsIncomplete != *f.IsIncomplete {
			continue
		}
		if f.HasLateEntry != nil && s.HasLateEntry != *f.HasLateEntry {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].EmployeeRef < out[j].EmployeeRef
	})
	return out, nil
}

func (r *memSummaries) Stats(ctx context.Context, startDate, endDate string) (*model.SummaryStats, error) {
	stats := &model.SummaryStats{}
	employees := map[string]bool{}
	for _, s := range r.summaries {
		if s.Date < startDate || s.Date > endDate {
			continue
		}
		stats.TotalSummaries++
		employees[s.EmployeeRef] = true
		stats.RegularHours += s.RegularHours
		stats.OvertimeHours += s.OvertimeHours
		stats.TotalHours += s.TotalHours
		if s.IsIncomplete {
			stats.IncompleteCount++
		}
		if s.HasLateEntry {
			stats.LateCount++
		}
		if s.HasOvertime {
			stats.OvertimeCount++
		}
	}
	stats.UniqueEmployees = len(employees)
	return stats, nil
}

// fakeRegistry is an in-memory identity.Lookup.
type fakeRegistry struct {
	known map[string]identity.Employee
	err   error
}

func newFakeRegistry(refs ...string) *fakeRegistry {
	known := map[string]identity.Employee{}
	for _, ref := range refs {
		known[ref] = identity.Employee{Ref: ref, Name: "Employee " + ref, Department: "Operations"}
	}
	return &fakeRegistry{known: known}
}

func (f *fakeRegistry) Exists(ctx context.Context, ref string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.known[ref]
	return ok, nil
}

func (f *fakeRegistry) Resolve(ctx context.Context, ref string) (*identity.Employee, error) {
	if f.err != nil {
		return nil, f.err
	}
	emp, ok := f.known[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", identity.ErrUnknownEmployee, ref)
	}
	out := emp
	return &out, nil
}

// fakeRelay records published notifications.
type fakeRelay struct {
	mu        sync.Mutex
	published []messaging.BatchProcessedEvent
	err       error
}

func (f *fakeRelay) PublishBatchProcessed(ctx context.Context, event messaging.BatchProcessedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, event)
	return nil
}
