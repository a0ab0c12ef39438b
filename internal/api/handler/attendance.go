package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"attendance.service/internal/core"
	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/identity"
	"attendance.service/internal/ports/repository"
)

// AttendanceHandler serves the raw event endpoints: batch sync, single
// create, the unsynced backlog, and per-date stats.
type AttendanceHandler struct {
	Service *core.IngestService
}

// Sync ingests a batch. Partial failure is still HTTP 200 with the
// per-record error list embedded; only a transaction fault is a 500.
func (h *AttendanceHandler) Sync(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	events, err := model.DecodeEventPayload(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.Service.IngestBatch(r.Context(), events)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "batch ingestion failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		model.BatchResult
	}{Success: true, BatchResult: *result})
}

// createResponse is the stored row joined with the registry display fields.
type createResponse struct {
	Success bool `json:"success"`
	model.AttendanceEvent
	EmployeeName string `json:"employee_name,omitempty"`
	Department   string `json:"department,omitempty"`
}

// Create persists a single event. A duplicate-key hit is a 409 conflict
// rather than the batch path's silent skip.
func (h *AttendanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var ev model.AttendanceEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stored, emp, err := h.Service.CreateEvent(r.Context(), ev)
	switch {
	case errors.Is(err, core.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, repository.ErrDuplicate):
		writeError(w, http.StatusConflict, "attendance event already exists for this employee, time, date and clock type")
		return
	case errors.Is(err, identity.ErrUnknownEmployee):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to create attendance event")
		return
	}

	resp := createResponse{Success: true, AttendanceEvent: *stored}
	if emp != nil {
		resp.EmployeeName = emp.Name
		resp.Department = emp.Department
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Unsynced lists events still awaiting acknowledgement.
func (h *AttendanceHandler) Unsynced(w http.ResponseWriter, r *http.Request) {
	events, err := h.Service.ListUnsynced(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list unsynced events")
		return
	}
	if events == nil {
		events = []model.AttendanceEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(events),
		"events":  events,
	})
}

// MarkSynced acknowledges a list of event ids.
func (h *AttendanceHandler) MarkSynced(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required")
		return
	}

	updated, err := h.Service.MarkSynced(r.Context(), req.IDs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mark events synced")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"updated_count": updated,
	})
}

// Stats reports one day's aggregate counters; date defaults to today (UTC).
func (h *AttendanceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format(model.DateLayout)
	}
	if !model.ValidDate(date) {
		writeError(w, http.StatusBadRequest, "date must be in YYYY-MM-DD form")
		return
	}

	stats, err := h.Service.Stats(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	if stats.RecentEvents == nil {
		stats.RecentEvents = []model.AttendanceEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats":   stats,
	})
}
