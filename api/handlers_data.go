package api

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"solar-impact-insights/cache"
	"solar-impact-insights/database"
	"solar-impact-insights/dataset"
	"solar-impact-insights/export"
	"solar-impact-insights/pipeline"
)

// handleCollect runs the ingestion pipeline once and stores its outputs.
func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	collector := s.live
	if getBoolParam(r, "use_mock", s.defaultMock) {
		collector = s.mock
	}
	if collector == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "data collection is not configured", nil)
		return
	}

	opts := s.runOpts
	opts.Persist = s.repo != nil
	report, err := collector.Run(r.Context(), opts)
	if err != nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "collection cancelled", err)
		return
	}
	if err := s.cache.Invalidate(r.Context()); err != nil {
		s.log.Warn("⚠️  Failed to invalidate analysis cache", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, report)
}

type eventsResponse struct {
	Count  int                 `json:"count"`
	Events []database.SEPEvent `json:"events"`
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	if !s.requireRepo(w) {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	limit := getIntParam(r, "limit", defaultEventLimit, intPtr(1), intPtr(maxEventLimit))

	events, err := s.repo.GetEvents(r.Context(), filter, limit)
	if err != nil {
		s.respondWithDBError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eventsResponse{Count: len(events), Events: nonNil(events)})
}

func (s *Server) handleHighIntensity(w http.ResponseWriter, r *http.Request) {
	if !s.requireRepo(w) {
		return
	}
	threshold := getFloatParam(r, "threshold", dataset.HighIntensityThreshold)
	events, err := s.repo.GetHighIntensityEvents(r.Context(), threshold)
	if err != nil {
		s.respondWithDBError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"threshold": threshold,
		"count":     len(events),
		"events":    nonNil(events),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	table, ok := s.loadTable(w, r)
	if !ok {
		return
	}
	key := cache.GenerateDataHash(r.URL.Query())
	var summary pipeline.Summary
	if s.cache.Get(r.Context(), "summary", key, &summary) {
		writeJSON(w, http.StatusOK, summary)
		return
	}
	summary = pipeline.Summarize(table)
	if err := s.cache.Set(r.Context(), "summary", key, summary); err != nil {
		s.log.Debug("summary not cached", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if r.URL.Query().Get("format") == "" {
		format, err = export.FormatCSV, nil
	}
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	table, ok := s.loadTable(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=sep_events.%s", format))
	if err := export.Write(w, table, format); err != nil {
		s.log.Error("❌ Export failed", zap.String("format", string(format)), zap.Error(err))
	}
}

// loadTable reads the filtered table, writing the error response when it fails.
func (s *Server) loadTable(w http.ResponseWriter, r *http.Request) (*dataset.Table, bool) {
	if !s.requireRepo(w) {
		return nil, false
	}
	filter, err := parseFilter(r)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return nil, false
	}
	table, err := s.repo.LoadTable(r.Context(), filter)
	if err != nil {
		s.respondWithDBError(w, err)
		return nil, false
	}
	return table, true
}

func (s *Server) requireRepo(w http.ResponseWriter) bool {
	if s.repo == nil {
		s.respondWithError(w, http.StatusServiceUnavailable, "database is not configured", nil)
		return false
	}
	return true
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
