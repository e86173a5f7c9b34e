package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"solar-impact-insights/config"
	"solar-impact-insights/database"
	"solar-impact-insights/dataset"
	"solar-impact-insights/export"
)

type fakeSink struct {
	rows   int
	closed bool
	err    error
}

func (s *fakeSink) Load(_ context.Context, t *dataset.Table) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.rows += t.Len()
	return t.Len(), nil
}

func (s *fakeSink) Close() error {
	s.closed = true
	return nil
}

type fakeCopier struct {
	rows   int64
	closed bool
}

func (c *fakeCopier) CopyEvents(_ context.Context, t *dataset.Table) (int64, error) {
	c.rows += int64(t.Len())
	return int64(t.Len()), nil
}

func (c *fakeCopier) Close() error {
	c.closed = true
	return nil
}

type harness struct {
	env    *env
	repo   *database.Repository
	sink   *fakeSink
	copier *fakeCopier
	dir    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.Open(sqlite.Open(":memory:"), nil)
	require.NoError(t, err)
	sqlDB, err := db.DB().DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	repo := database.NewRepository(db, nil)
	require.NoError(t, repo.InitSchema(context.Background()))

	h := &harness{repo: repo, sink: &fakeSink{}, copier: &fakeCopier{}, dir: t.TempDir()}
	h.env = &env{
		cfg: &config.Config{
			Sources:  config.SourcesConfig{UseMock: true, RequestsPerSecond: 1, Timeout: time.Second},
			Analysis: config.DefaultAnalysisConfig(),
		},
		log: zap.NewNop(),
		openRepo: func(context.Context) (*database.Repository, func() error, error) {
			return repo, func() error { return nil }, nil
		},
		openCopier:    func(context.Context) (eventCopier, error) { return h.copier, nil },
		openWarehouse: func(context.Context) (tableSink, error) { return h.sink, nil },
	}
	return h
}

func (h *harness) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(h.env)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) count(t *testing.T) int64 {
	t.Helper()
	n, err := h.repo.CountEvents(context.Background())
	require.NoError(t, err)
	return n
}

func TestRunMockPrintsReport(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(h.dir, "table.csv")

	out, err := h.execute(t, "run", "--mock", "--mock-days", "40", "-o", path)
	require.NoError(t, err, out)

	var report struct {
		RunID   string `json:"run_id"`
		Sources []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"sources"`
		Summary struct {
			TotalRecords int `json:"total_records"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.NotEmpty(t, report.RunID)
	assert.Len(t, report.Sources, 5)
	assert.Equal(t, 40, report.Summary.TotalRecords)

	table, err := export.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 40, table.Len())
	assert.True(t, table.HasClusters())
	assert.Zero(t, h.count(t), "nothing is persisted without --persist")
}

func TestRunPersistAndWarehouse(t *testing.T) {
	h := newHarness(t)

	out, err := h.execute(t, "run", "--mock", "--mock-days", "30", "--persist", "--warehouse")
	require.NoError(t, err, out)
	assert.EqualValues(t, 30, h.count(t))
	assert.Equal(t, 30, h.sink.rows)
	assert.True(t, h.sink.closed)
}

func TestRunRecordAlertsFlag(t *testing.T) {
	h := newHarness(t)
	alerts := func(args ...string) int {
		out, err := h.execute(t, append([]string{"run", "--mock", "--mock-days", "40"}, args...)...)
		require.NoError(t, err, out)
		var report struct {
			Alerts []struct {
				Type string `json:"alert_type"`
			} `json:"alerts"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &report), out)
		return len(report.Alerts)
	}

	assert.LessOrEqual(t, alerts(), 1)
	assert.Greater(t, alerts("--record-alerts"), 1)
}

func TestRunRejectsBadMockFlags(t *testing.T) {
	h := newHarness(t)

	_, err := h.execute(t, "run", "--mock", "--mock-days", "0")
	assert.Error(t, err)
	_, err = h.execute(t, "run", "--mock", "--mock-start", "yesterday")
	assert.Error(t, err)
}

func TestExportAndLoad(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(h.dir, "table.parquet.gz")

	out, err := h.execute(t, "export", path, "--mock", "--mock-days", "20", "--end", "2024-01-10")
	require.NoError(t, err, out)
	assert.Contains(t, out, "exported 10 rows")

	tests := []struct {
		target string
		check  func(t *testing.T)
	}{
		{targetEvents, func(t *testing.T) { assert.EqualValues(t, 10, h.count(t)) }},
		{targetCopy, func(t *testing.T) {
			assert.EqualValues(t, 10, h.copier.rows)
			assert.True(t, h.copier.closed)
		}},
		{targetClickHouse, func(t *testing.T) { assert.Equal(t, 10, h.sink.rows) }},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			out, err := h.execute(t, "load", path, "--target", tt.target)
			require.NoError(t, err, out)
			assert.Contains(t, out, "loaded 10 rows into "+tt.target)
			tt.check(t)
		})
	}

	_, err = h.execute(t, "load", path, "--target", "s3")
	assert.Error(t, err)
}

func TestLoadReportsSinkError(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(h.dir, "table.json")
	_, err := h.execute(t, "export", path, "--mock", "--mock-days", "5")
	require.NoError(t, err)

	h.sink.err = errors.New("clickhouse unavailable")
	_, err = h.execute(t, "load", path, "--target", targetClickHouse)
	assert.ErrorContains(t, err, "clickhouse unavailable")
}

func TestExportFromDatabase(t *testing.T) {
	h := newHarness(t)
	_, err := h.execute(t, "run", "--mock", "--mock-days", "15", "--persist")
	require.NoError(t, err)

	path := filepath.Join(h.dir, "events.csv")
	out, err := h.execute(t, "export", path, "--from-db", "--start", "2024-01-05", "--end", "2024-01-09")
	require.NoError(t, err, out)
	assert.Contains(t, out, "exported 5 rows")

	table, err := export.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 5, table.Len())
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), table.Records[0].Date)
}

func TestExportRejectsUnknownExtension(t *testing.T) {
	h := newHarness(t)
	_, err := h.execute(t, "export", filepath.Join(h.dir, "table.xlsx"), "--mock")
	assert.ErrorIs(t, err, export.ErrUnknownFormat)
}

const gfzArchive = `# YYY MM DD days days_m Bsr dB Kp1 Kp2 Kp3 Kp4 Kp5 Kp6 Kp7 Kp8 ap1 ap2 ap3 ap4 ap5 ap6 ap7 ap8 Ap SN F10.7obs F10.7adj D
2024 01 01 33238.0 33238.5 2596 28 1.000 2.000 3.000 2.000 1.000 2.000 3.000 2.000 4 7 15 7 4 7 15 7 8 110 140.2 139.0 2
2024 01 02 33239.0 33239.5 2597 1 4.000 4.000 4.000 4.000 4.000 4.000 4.000 4.000 27 27 27 27 27 27 27 27 27 100 130.0 129.0 2
`

func TestBackfillKp(t *testing.T) {
	h := newHarness(t)
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	table := &dataset.Table{Records: []dataset.Record{
		{Date: day(1), SEPIntensity: 1},
		{Date: day(2), SEPIntensity: 2},
		{Date: day(3), SEPIntensity: 3},
	}}
	_, err := h.repo.SaveEvents(context.Background(), table)
	require.NoError(t, err)

	archive := filepath.Join(h.dir, "kp.txt")
	require.NoError(t, os.WriteFile(archive, []byte(gfzArchive), 0o644))

	out, err := h.execute(t, "backfill-kp", "--file", archive)
	require.NoError(t, err, out)
	assert.Contains(t, out, "filled kp_index on 2 of 3 events")

	stored, err := h.repo.LoadTable(context.Background(), dataset.Filter{})
	require.NoError(t, err)
	require.Equal(t, 3, stored.Len())
	kp, ok := stored.Records[0].Value(dataset.KpIndex)
	require.True(t, ok)
	assert.InDelta(t, 2.0, kp, 1e-9)
	kp, _ = stored.Records[1].Value(dataset.KpIndex)
	assert.InDelta(t, 4.0, kp, 1e-9)
	_, ok = stored.Records[2].Value(dataset.KpIndex)
	assert.False(t, ok)

	out, err = h.execute(t, "backfill-kp", "--file", archive)
	require.NoError(t, err)
	assert.Contains(t, out, "no kp_index values to fill")
}

func TestBackfillKpRejectsTarget(t *testing.T) {
	h := newHarness(t)
	_, err := h.execute(t, "backfill-kp", "--file", "kp.txt", "--target", targetCopy)
	assert.Error(t, err)
}

func TestDateRange(t *testing.T) {
	f, err := dateRange("2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), *f.EndDate)

	_, err = dateRange("2024-02-01", "2024-01-01")
	assert.Error(t, err)
	_, err = dateRange("Jan 1", "")
	assert.Error(t, err)

	f, err = dateRange("", "")
	require.NoError(t, err)
	assert.True(t, f.IsZero())
}
