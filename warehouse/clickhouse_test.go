package warehouse

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solar-impact-insights/dataset"
)

type recordingConn struct {
	queries []string
	rows    []int
	failAt  int
	closed  bool
}

func (c *recordingConn) Do(_ context.Context, q ch.Query) error {
	c.queries = append(c.queries, q.Body)
	rows := 0
	if len(q.Input) > 0 {
		rows = q.Input[0].Data.Rows()
	}
	c.rows = append(c.rows, rows)
	if c.failAt > 0 && len(c.queries) == c.failAt {
		return errors.New("connection reset")
	}
	return nil
}

func (c *recordingConn) Close() error {
	c.closed = true
	return nil
}

var testCfg = Config{Address: "localhost:9000", Database: "solar", Table: "sep_daily"}

func tableOf(t *testing.T, n int) *dataset.Table {
	t.Helper()
	records := make([]dataset.Record, n)
	for i := range records {
		records[i] = dataset.Record{
			Date:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			SEPIntensity: float64(i),
		}
	}
	table, err := dataset.NewTable(nil, records)
	require.NoError(t, err)
	return table
}

func TestBatchAdd(t *testing.T) {
	b := NewBatch()
	loaded := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	b.Add(dataset.Record{
		Date:         time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		SEPIntensity: 3.5,
		Temperature:  dataset.Float(14.2),
		Cluster:      dataset.Int(2),
	}, loaded)
	b.Add(dataset.Record{Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), SEPIntensity: 1}, loaded)

	require.Equal(t, 2, b.Len())
	assert.Equal(t, 3.5, b.SEPIntensity.Row(0))
	assert.Equal(t, 14.2, b.Temperature.Row(0))
	assert.True(t, math.IsNaN(b.Temperature.Row(1)))
	assert.True(t, math.IsNaN(b.KpIndex.Row(0)))
	assert.Equal(t, int8(2), b.Cluster.Row(0))
	assert.Equal(t, noCluster, b.Cluster.Row(1))
	assert.Len(t, b.Input(), 8)

	b.Reset()
	assert.Equal(t, 0, b.Len())
}

func TestLoadBatches(t *testing.T) {
	conn := &recordingConn{}
	w := newWarehouse(conn, testCfg, nil)

	n, err := w.Load(context.Background(), tableOf(t, BatchSize+5))
	require.NoError(t, err)
	assert.Equal(t, BatchSize+5, n)
	assert.Equal(t, []int{BatchSize, 5}, conn.rows)
	for _, q := range conn.queries {
		assert.True(t, strings.HasPrefix(q, "INSERT INTO solar.sep_daily ("))
	}
}

func TestLoadEmpty(t *testing.T) {
	conn := &recordingConn{}
	w := newWarehouse(conn, testCfg, nil)

	n, err := w.Load(context.Background(), tableOf(t, 0))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, conn.queries)
}

func TestLoadError(t *testing.T) {
	conn := &recordingConn{failAt: 2}
	w := newWarehouse(conn, testCfg, nil)

	n, err := w.Load(context.Background(), tableOf(t, BatchSize*2+1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "solar.sep_daily")
	assert.Equal(t, BatchSize, n, "rows of the first block were acknowledged")
}

func TestEnsureSchema(t *testing.T) {
	conn := &recordingConn{}
	w := newWarehouse(conn, testCfg, nil)

	require.NoError(t, w.EnsureSchema(context.Background()))
	require.Len(t, conn.queries, 2)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS solar", conn.queries[0])
	assert.Contains(t, conn.queries[1], "CREATE TABLE IF NOT EXISTS solar.sep_daily")
	assert.Contains(t, conn.queries[1], "ReplacingMergeTree(loaded_at)")

	require.NoError(t, w.Close())
	assert.True(t, conn.closed)
}
