package api

import (
	"net/http"

	"github.com/google/uuid"

	"solar-impact-insights/database"
)

// handleGetAlerts lists active alerts by default; active_only=false lists the latest alerts
// of any state.
func (s *Server) handleGetAlerts(w http.ResponseWriter, r *http.Request) {
	if !s.requireRepo(w) {
		return
	}

	var alerts []database.Alert
	var err error
	if getBoolParam(r, "active_only", true) {
		alerts, err = s.repo.GetActiveAlerts(r.Context())
	} else {
		alerts, err = s.repo.GetAlerts(r.Context(), getIntParam(r, "limit", defaultEventLimit, intPtr(1), intPtr(maxEventLimit)))
	}
	if err != nil {
		s.respondWithDBError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(alerts),
		"alerts": nonNil(alerts),
	})
}

func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	if !s.requireRepo(w) {
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid alert ID", err)
		return
	}

	alert, err := s.repo.ResolveAlert(r.Context(), id)
	if err != nil {
		s.respondWithDBError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}
