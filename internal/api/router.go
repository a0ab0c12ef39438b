package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"attendance.service/internal/api/handler"
	"attendance.service/internal/core"
)

// NewRouter sets up the gorilla/mux router and defines all API routes.
func NewRouter(ingest *core.IngestService, summaries *core.SummaryService) *mux.Router {

	attendanceHandler := &handler.AttendanceHandler{Service: ingest}
	summaryHandler := &handler.SummaryHandler{Service: summaries}

	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/attendance/sync", attendanceHandler.Sync).Methods(http.MethodPost)
	api.HandleFunc("/attendance/unsynced", attendanceHandler.Unsynced).Methods(http.MethodGet)
	api.HandleFunc("/attendance/mark-synced", attendanceHandler.MarkSynced).Methods(http.MethodPost)
	api.HandleFunc("/attendance/stats", attendanceHandler.Stats).Methods(http.MethodGet)
	api.HandleFunc("/attendance", attendanceHandler.Create).Methods(http.MethodPost)

	api.HandleFunc("/daily-summary/sync", summaryHandler.Sync).Methods(http.MethodPost)
	api.HandleFunc("/daily-summary/rebuild", summaryHandler.Rebuild).Methods(http.MethodPost)
	api.HandleFunc("/daily-summary/stats", summaryHandler.Stats).Methods(http.MethodGet)
	api.HandleFunc("/daily-summary/{id:[0-9]+}", summaryHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/daily-summary/{id:[0-9]+}", summaryHandler.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/daily-summary", summaryHandler.List).Methods(http.MethodGet)

	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Service is operational."))
	}).Methods(http.MethodGet)

	return r
}
