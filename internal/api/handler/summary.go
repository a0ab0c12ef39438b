package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"attendance.service/internal/core"
	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/repository"
	"github.com/gorilla/mux"
)

// SummaryHandler serves the daily-summary endpoints: external merge, rebuild,
// queries, stats, and delete.
type SummaryHandler struct {
	Service *core.SummaryService
}

// Sync merges externally computed summaries under last-writer-wins.
func (h *SummaryHandler) Sync(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	summaries, err := model.DecodeSummaryPayload(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.Service.MergeBatch(r.Context(), summaries)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "summary merge failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		model.BatchResult
	}{Success: true, BatchResult: *result})
}

// Rebuild re-derives summaries for every employee-day in the range.
func (h *SummaryHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.Rebuild(r.Context(), req.StartDate, req.EndDate)
	switch {
	case errors.Is(err, core.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "rebuild failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		model.RebuildResult
	}{Success: true, RebuildResult: *result})
}

// List returns summaries filtered by employee, date range, department, and
// the boolean status flags, with limit/offset pagination.
func (h *SummaryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := repository.SummaryFilter{
		EmployeeRef: q.Get("employee_ref"),
		StartDate:   q.Get("start_date"),
		EndDate:     q.Get("end_date"),
		Department:  q.Get("department"),
	}

	for name, dst := range map[string]**bool{
		"has_overtime":   &filter.HasOvertime,
		"is_incomplete":  &filter.IsIncomplete,
		"has_late_entry": &filter.HasLateEntry,
	} {
		if raw := q.Get(name); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, name+" must be a boolean")
				return
			}
			*dst = &v
		}
	}

	for name, dst := range map[string]*int{
		"limit":  &filter.Limit,
		"offset": &filter.Offset,
	} {
		if raw := q.Get(name); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v < 0 {
				writeError(w, http.StatusBadRequest, name+" must be a non-negative integer")
				return
			}
			*dst = v
		}
	}

	summaries, err := h.Service.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list summaries")
		return
	}
	if summaries == nil {
		summaries = []model.DailySummary{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"count":     len(summaries),
		"summaries": summaries,
	})
}

// Get fetches one summary row by id.
func (h *SummaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid summary id")
		return
	}

	summary, err := h.Service.Get(r.Context(), id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "summary not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to fetch summary")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"summary": summary,
	})
}

// Delete removes one summary row by id.
func (h *SummaryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid summary id")
		return
	}

	err = h.Service.Delete(r.Context(), id)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "summary not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to delete summary")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Stats aggregates the summary table over start_date..end_date.
func (h *SummaryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end := q.Get("start_date"), q.Get("end_date")

	stats, err := h.Service.Stats(r.Context(), start, end)
	switch {
	case errors.Is(err, core.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats":   stats,
	})
}
