package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solar-impact-insights/dataset"
)

func testSeries() *dataset.Series {
	return &dataset.Series{
		Column: dataset.KpIndex,
		Points: []dataset.Point{{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Value: 3.33}},
	}
}

func TestMemoryCacheExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.SetSeries(ctx, "noaa-kp", testSeries(), time.Hour))

	got, ok := c.GetSeries(ctx, "noaa-kp")
	require.True(t, ok)
	assert.Equal(t, testSeries(), got)

	got.Points[0].Value = 99
	again, _ := c.GetSeries(ctx, "noaa-kp")
	assert.Equal(t, 3.33, again.Points[0].Value, "callers get copies")

	now = now.Add(time.Hour)
	_, ok = c.GetSeries(ctx, "noaa-kp")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCacheWithoutTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	require.NoError(t, c.SetSeries(ctx, "mock", testSeries(), 0))
	c.now = func() time.Time { return time.Now().Add(24 * 365 * time.Hour) }

	_, ok := c.GetSeries(ctx, "mock")
	assert.True(t, ok)

	c.Clear()
	_, ok = c.GetSeries(ctx, "mock")
	assert.False(t, ok)
}

func TestRedisSeriesCache(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	r := WrapRedisClient(db, nil)

	payload, err := json.Marshal(testSeries())
	require.NoError(t, err)

	mock.ExpectSet("series:noaa-kp", payload, 10*time.Minute).SetVal("OK")
	require.NoError(t, r.SetSeries(ctx, "noaa-kp", testSeries(), 10*time.Minute))

	mock.ExpectGet("series:noaa-kp").SetVal(string(payload))
	got, ok := r.GetSeries(ctx, "noaa-kp")
	require.True(t, ok)
	assert.Equal(t, dataset.KpIndex, got.Column)
	assert.Equal(t, 3.33, got.Points[0].Value)

	mock.ExpectGet("series:gfz").RedisNil()
	_, ok = r.GetSeries(ctx, "gfz")
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilRedisClientIsDisabled(t *testing.T) {
	var r *RedisClient
	ctx := context.Background()

	assert.Error(t, r.Set(ctx, "k", 1, time.Second))
	assert.False(t, r.Exists(ctx, "k"))
	_, ok := r.GetSeries(ctx, "k")
	assert.False(t, ok)
	assert.NoError(t, r.Close())
}

func TestAnalysisCache(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	c := NewAnalysisCache(WrapRedisClient(db, nil), 5*time.Minute)

	hash := GenerateDataHash(map[string]string{"start_date": "2024-01-01"})
	assert.Len(t, hash, 32)

	mock.ExpectSet("analysis:summary:"+hash, []byte(`{"total_records":3}`), 5*time.Minute).SetVal("OK")
	require.NoError(t, c.Set(ctx, "summary", hash, map[string]int{"total_records": 3}))

	mock.ExpectGet("analysis:summary:" + hash).SetVal(`{"total_records":3}`)
	var got map[string]int
	require.True(t, c.Get(ctx, "summary", hash, &got))
	assert.Equal(t, 3, got["total_records"])

	mock.ExpectScan(0, "analysis:*", 100).SetVal([]string{"analysis:summary:" + hash}, 0)
	mock.ExpectDel("analysis:summary:" + hash).SetVal(1)
	require.NoError(t, c.Invalidate(ctx))

	assert.NoError(t, mock.ExpectationsWereMet())

	var disabled *AnalysisCache
	assert.False(t, disabled.Get(ctx, "summary", hash, &got))
	assert.NoError(t, disabled.Invalidate(ctx))
}
