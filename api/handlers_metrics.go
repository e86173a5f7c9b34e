package api

import (
	"net/http"

	"solar-impact-insights/analysis"
	"solar-impact-insights/database"
	"solar-impact-insights/dataset"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	table, ok := s.loadTable(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, analysis.BuildDashboard(table, s.now()))
}

type correlationMetrics struct {
	Status            dataset.Status             `json:"status"`
	Coefficients      map[dataset.Column]float64 `json:"coefficients,omitempty"`
	StrongestPositive *analysis.Extreme          `json:"strongest_positive,omitempty"`
	StrongestNegative *analysis.Extreme          `json:"strongest_negative,omitempty"`
	Reason            string                     `json:"reason,omitempty"`
}

func (s *Server) handleCorrelationMetrics(w http.ResponseWriter, r *http.Request) {
	table, ok := s.loadTable(w, r)
	if !ok {
		return
	}
	result := analysis.Correlate(table)
	resp := correlationMetrics{Status: result.Status, Reason: result.Reason}
	if c, ok := result.Get(); ok {
		resp.Coefficients = c.Coefficients
		resp.StrongestPositive, resp.StrongestNegative = c.Strongest()
	}
	writeResult(w, result.Status, resp)
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	table, ok := s.loadTable(w, r)
	if !ok {
		return
	}
	multiplier := getFloatParam(r, "multiplier", s.runOpts.AnomalyMultiplier)
	result := analysis.DetectAnomalies(table, dataset.SEPIntensity, multiplier)
	writeResult(w, result.Status, result)
}

type monthlyResponse struct {
	Count  int                        `json:"count"`
	Months []database.MonthlyActivity `json:"months"`
}

func (s *Server) handleMonthlyActivity(w http.ResponseWriter, r *http.Request) {
	if !s.requireRepo(w) {
		return
	}
	months := getIntParam(r, "months", 12, intPtr(0), intPtr(1200))
	rows, err := s.repo.GetMonthlyActivity(r.Context(), months)
	if err != nil {
		s.respondWithDBError(w, err)
		return
	}
	rows = nonNil(rows)
	writeJSON(w, http.StatusOK, monthlyResponse{Count: len(rows), Months: rows})
}
