package api

import (
	"context"
	"net/http"
	"time"
)

// handleHealth returns the health status of the API
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "ok",
		"timestamp": s.now().UTC(),
		"database":  "disabled",
	}
	if s.repo != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.repo.Ping(ctx); err != nil {
			status["status"] = "degraded"
			status["database"] = "unreachable"
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "ok"
	}
	if s.broker != nil {
		status["live_clients"] = s.broker.ClientCount()
	}
	writeJSON(w, http.StatusOK, status)
}

// handleGetConfig returns the analysis settings used by the pipeline endpoints.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	o := s.runOpts
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"validate":           o.Validate,
		"clusters":           o.KMeans.K,
		"cluster_seed":       o.KMeans.Seed,
		"arima_order":        []int{o.ARIMA.P, o.ARIMA.D, o.ARIMA.Q},
		"forecast_column":    o.ForecastColumn,
		"forecast_steps":     o.ForecastSteps,
		"forecast_threshold": o.ForecastRule.Threshold,
		"record_rules":       len(o.RecordRules),
		"default_mock":       s.defaultMock,
	})
}
