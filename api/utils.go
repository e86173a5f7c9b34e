package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"solar-impact-insights/database"
	"solar-impact-insights/dataset"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 10000
)

// getIntParam retrieves an integer query parameter with default value and optional range validation
func getIntParam(r *http.Request, key string, defaultVal int, minVal, maxVal *int) int {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultVal
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}

	if minVal != nil && val < *minVal {
		return defaultVal
	}
	if maxVal != nil && val > *maxVal {
		return defaultVal
	}

	return val
}

// getFloatParam retrieves a float query parameter with default value
func getFloatParam(r *http.Request, key string, defaultVal float64) float64 {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultVal
	}

	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		return defaultVal
	}

	return val
}

// getBoolParam retrieves a boolean query parameter with default value
func getBoolParam(r *http.Request, key string, defaultVal bool) bool {
	val, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(key)))
	if err != nil {
		return defaultVal
	}
	return val
}

func intPtr(v int) *int { return &v }

// parseFilter reads start_date, end_date, min_intensity, max_intensity and high_intensity_only.
// Malformed values are rejected rather than ignored.
func parseFilter(r *http.Request) (dataset.Filter, error) {
	q := r.URL.Query()
	var f dataset.Filter

	for key, dst := range map[string]**float64{"min_intensity": &f.MinIntensity, "max_intensity": &f.MaxIntensity} {
		if raw := q.Get(key); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return f, fmt.Errorf("invalid %s %q", key, raw)
			}
			*dst = &v
		}
	}
	if raw := q.Get("start_date"); raw != "" {
		d, err := dataset.ParseDate(raw)
		if err != nil {
			return f, fmt.Errorf("invalid start_date %q", raw)
		}
		f.StartDate = &d
	}
	if raw := q.Get("end_date"); raw != "" {
		d, err := dataset.ParseDate(raw)
		if err != nil {
			return f, fmt.Errorf("invalid end_date %q", raw)
		}
		f.EndDate = &d
	}
	if raw := q.Get("high_intensity_only"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, fmt.Errorf("invalid high_intensity_only %q", raw)
		}
		f.HighIntensityOnly = v
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeResult maps an analysis outcome to a status code: ok and empty are 200, error is 422.
func writeResult(w http.ResponseWriter, status dataset.Status, v interface{}) {
	code := http.StatusOK
	if status == dataset.StatusError {
		code = http.StatusUnprocessableEntity
	}
	writeJSON(w, code, v)
}

// respondWithError logs the error and sends a JSON error response
// Use this to avoid exposing internal errors while still logging them
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, err error) {
	if err != nil {
		s.log.Warn("API Error", zap.Int("code", code), zap.String("message", message), zap.Error(err))
	} else {
		s.log.Warn("API Error", zap.Int("code", code), zap.String("message", message))
	}
	writeJSON(w, code, map[string]string{"error": message})
}

// respondWithDBError maps repository errors onto 400, 404 or 500.
func (s *Server) respondWithDBError(w http.ResponseWriter, err error) {
	var notFound *database.NotFoundError
	var invalid *database.ValidationError
	var conflict *database.ConflictError
	switch {
	case errors.As(err, &notFound):
		s.respondWithError(w, http.StatusNotFound, notFound.Error(), nil)
	case errors.As(err, &invalid):
		s.respondWithError(w, http.StatusBadRequest, invalid.Error(), nil)
	case errors.As(err, &conflict):
		s.respondWithError(w, http.StatusConflict, conflict.Error(), nil)
	default:
		s.respondWithError(w, http.StatusInternalServerError, "database error", err)
	}
}
