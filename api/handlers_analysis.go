package api

import (
	"net/http"

	"go.uber.org/zap"

	"solar-impact-insights/alerting"
	"solar-impact-insights/analysis"
	"solar-impact-insights/cache"
	"solar-impact-insights/database"
	"solar-impact-insights/dataset"
	"solar-impact-insights/realtime"
)

// Analysis handlers run on the stored events after the query filter is applied.

func (s *Server) handleCorrelations(w http.ResponseWriter, r *http.Request) {
	table, ok := s.loadTable(w, r)
	if !ok {
		return
	}
	key := cache.GenerateDataHash(r.URL.Query())
	var result dataset.Result[analysis.Correlations]
	if s.cache.Get(r.Context(), "correlations", key, &result) {
		writeJSON(w, http.StatusOK, result)
		return
	}

	result = analysis.Correlate(table)
	if result.IsOK() {
		if err := s.cache.Set(r.Context(), "correlations", key, result); err != nil {
			s.log.Debug("correlations not cached", zap.Error(err))
		}
	}
	writeResult(w, result.Status, result)
}

func (s *Server) handleClustering(w http.ResponseWriter, r *http.Request) {
	table, ok := s.loadTable(w, r)
	if !ok {
		return
	}
	km := s.runOpts.KMeans
	km.K = getIntParam(r, "n_clusters", km.K, intPtr(1), intPtr(20))

	result := km.Cluster(table)
	if c, ok := result.Get(); ok {
		if _, err := s.repo.UpdateClusters(r.Context(), c.Table); err != nil {
			s.respondWithDBError(w, err)
			return
		}
		if err := s.repo.SaveModelMetrics(r.Context(), database.MetricsFromClustering(c, s.now())); err != nil {
			s.log.Warn("⚠️  Failed to save clustering metrics", zap.Error(err))
		}
	}
	writeResult(w, result.Status, result)
}

type predictionResponse struct {
	Forecast dataset.Result[analysis.Forecast] `json:"forecast"`
	Alert    *alerting.Alert                   `json:"alert,omitempty"`
}

func (s *Server) handlePrediction(w http.ResponseWriter, r *http.Request) {
	table, ok := s.loadTable(w, r)
	if !ok {
		return
	}
	col := s.runOpts.ForecastColumn
	if raw := r.URL.Query().Get("column"); raw != "" {
		c, err := dataset.ParseColumn(raw)
		if err != nil {
			s.respondWithError(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		col = c
	}
	steps := getIntParam(r, "steps", s.runOpts.ForecastSteps, intPtr(1), intPtr(365))

	resp := predictionResponse{Forecast: s.runOpts.ARIMA.Forecast(table, col, steps)}
	f, ok := resp.Forecast.Get()
	if !ok {
		writeResult(w, resp.Forecast.Status, resp)
		return
	}

	now := s.now()
	if err := s.repo.SavePredictions(r.Context(), database.PredictionsFromForecast(f, now)); err != nil {
		s.respondWithDBError(w, err)
		return
	}
	if err := s.repo.SaveModelMetrics(r.Context(), database.MetricsFromForecast(f, now)); err != nil {
		s.log.Warn("⚠️  Failed to save forecast metrics", zap.Error(err))
	}

	// The alert rule is defined on temperature forecasts.
	if col == s.runOpts.ForecastColumn {
		resp.Alert = alerting.EvaluateForecast(f, s.runOpts.ForecastRule)
	}
	if resp.Alert != nil {
		row := database.AlertFromRule(*resp.Alert)
		if err := s.repo.SaveAlert(r.Context(), &row); err != nil {
			s.respondWithDBError(w, err)
			return
		}
		if s.broker != nil {
			s.broker.Broadcast(realtime.EventAlert, resp.Alert)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
