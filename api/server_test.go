package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solar-impact-insights/alerting"
	"solar-impact-insights/database"
	"solar-impact-insights/dataset"
	"solar-impact-insights/metrics"
	"solar-impact-insights/pipeline"
	"solar-impact-insights/realtime"
	"solar-impact-insights/sources"
)

type testEnv struct {
	server  *Server
	handler http.Handler
	repo    *database.Repository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(sqlite.Open(":memory:"), nil)
	require.NoError(t, err)
	sqlDB, err := db.DB().DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	repo := database.NewRepository(db, nil)
	require.NoError(t, repo.InitSchema(context.Background()))

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	gen := sources.MockGenerator{Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Days: 60, Seed: 42}
	mock := pipeline.NewRunner(gen.Sources(), pipeline.Dependencies{Store: repo, Metrics: m}, nil)

	server := NewServer(Options{
		Repo:        repo,
		Mock:        mock,
		Broker:      realtime.NewBroker(nil),
		Gatherer:    reg,
		RunOptions:  pipeline.DefaultRunOptions(),
		DefaultMock: true,
	}, nil)
	server.now = func() time.Time { return time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC) }

	return &testEnv{server: server, handler: server.Handler(), repo: repo}
}

func (e *testEnv) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) collect(t *testing.T) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/data/collect?use_mock=true")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["database"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestCollectAndQueryEvents(t *testing.T) {
	env := newTestEnv(t)
	env.collect(t)

	rec := env.do(t, http.MethodGet, "/api/data/events?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp eventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 5, resp.Count)
	assert.True(t, resp.Events[0].Date.After(resp.Events[1].Date), "newest first")

	rec = env.do(t, http.MethodGet, "/api/data/events?start_date=2024-01-10&end_date=2024-01-19&limit=1000")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 10, resp.Count)

	rec = env.do(t, http.MethodGet, "/api/data/high-intensity?threshold=0")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 60.0, decode(t, rec)["count"])
}

func TestEventsBadRequest(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name  string
		query string
	}{
		{name: "bad start", query: "start_date=yesterday"},
		{name: "bad min", query: "min_intensity=high"},
		{name: "bad flag", query: "high_intensity_only=sometimes"},
		{name: "reversed range", query: "start_date=2024-02-01&end_date=2024-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/data/events?"+tt.query)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestSummaryAndExport(t *testing.T) {
	env := newTestEnv(t)
	env.collect(t)

	rec := env.do(t, http.MethodGet, "/api/data/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode(t, rec)
	assert.Equal(t, 60.0, summary["total_records"])

	rec = env.do(t, http.MethodGet, "/api/data/export?format=csv&end_date=2024-01-03")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "date,sep_intensity,temperature,ice_extent,ozone_level,kp_index"))
	assert.True(t, strings.HasPrefix(lines[1], "2024-01-01,"))

	rec = env.do(t, http.MethodGet, "/api/data/export?format=json")
	require.Equal(t, http.StatusOK, rec.Code)
	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Len(t, records, 60)

	rec = env.do(t, http.MethodGet, "/api/data/export?format=xlsx")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalysisEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.collect(t)

	rec := env.do(t, http.MethodPost, "/api/analysis/correlations")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	coeffs := body["value"].(map[string]interface{})["coefficients"].(map[string]interface{})
	assert.Len(t, coeffs, 4)

	rec = env.do(t, http.MethodPost, "/api/analysis/clustering?n_clusters=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, decode(t, rec)["value"].(map[string]interface{})["k"])

	events, err := env.repo.GetEvents(context.Background(), dataset.Filter{}, 0)
	require.NoError(t, err)
	for _, e := range events {
		require.NotNil(t, e.ClusterID)
		assert.Less(t, *e.ClusterID, 2)
	}

	rec = env.do(t, http.MethodPost, "/api/analysis/prediction?column=humidity")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/analysis/prediction?steps=7")
	assert.Contains(t, []int{http.StatusOK, http.StatusUnprocessableEntity}, rec.Code)
	forecast := decode(t, rec)["forecast"].(map[string]interface{})
	if forecast["status"] == "ok" {
		steps := forecast["value"].(map[string]interface{})["steps"].([]interface{})
		assert.Len(t, steps, 7)
	}

	rec = env.do(t, http.MethodGet, "/api/metrics/correlations")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = env.do(t, http.MethodGet, "/api/metrics/anomalies")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = env.do(t, http.MethodGet, "/api/metrics/dashboard")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 31.0, decode(t, rec)["total_events"], "both window ends are inclusive")

	rec = env.do(t, http.MethodGet, "/api/metrics/monthly?months=1")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, 1.0, body["count"])
	month := body["months"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "2024-02", month["month"])
	assert.Equal(t, 29.0, month["events"])
}

func TestAlertLifecycle(t *testing.T) {
	env := newTestEnv(t)
	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, env.repo.SaveAlerts(context.Background(), []database.Alert{
		database.AlertFromRule(alerting.Alert{Type: alerting.TypeHighSEPIntensity, Severity: alerting.SeverityHigh, Message: "a", ThresholdValue: 7, ActualValue: 9, EventDate: day, Active: true}),
		database.AlertFromRule(alerting.Alert{Type: alerting.TypeGeomagneticStorm, Severity: alerting.SeverityMedium, Message: "b", ThresholdValue: 6, ActualValue: 7.5, EventDate: day, Active: true}),
	}))

	rec := env.do(t, http.MethodGet, "/api/alerts")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	alerts := body["alerts"].([]interface{})
	require.Len(t, alerts, 2)
	id := alerts[0].(map[string]interface{})["id"].(string)
	before := body["count"].(float64)

	rec = env.do(t, http.MethodPost, "/api/alerts/"+id+"/resolve")
	require.Equal(t, http.StatusOK, rec.Code)
	resolved := decode(t, rec)
	assert.Equal(t, false, resolved["is_active"])
	assert.NotEmpty(t, resolved["resolved_at"])

	rec = env.do(t, http.MethodGet, "/api/alerts")
	assert.Equal(t, before-1, decode(t, rec)["count"])

	rec = env.do(t, http.MethodPost, "/api/alerts/6f1c7c1e-0000-4000-8000-000000000000/resolve")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/alerts/not-a-uuid/resolve")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPrometheusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.collect(t)

	rec := env.do(t, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `solar_pipeline_runs_total{status="ok"} 1`)
}

func TestUnconfiguredServer(t *testing.T) {
	server := NewServer(Options{RunOptions: pipeline.DefaultRunOptions()}, nil)
	handler := server.Handler()

	for _, target := range []string{"/api/data/events", "/api/data/summary", "/api/alerts"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/data/collect", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/alerts", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
