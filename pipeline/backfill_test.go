package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solar-impact-insights/dataset"
)

func TestBackfill(t *testing.T) {
	table, err := Merge(
		series(dataset.SEPIntensity, map[int]float64{0: 1, 1: 2, 2: 3}),
		series(dataset.KpIndex, map[int]float64{1: 4}),
	)
	require.NoError(t, err)

	kp := series(dataset.KpIndex, map[int]float64{0: 2.5, 1: 9, 7: 1})
	out, filled, err := Backfill(table, kp)
	require.NoError(t, err)

	assert.Equal(t, 1, filled)
	v, ok := out.Records[0].Value(dataset.KpIndex)
	require.True(t, ok)
	assert.Equal(t, 2.5, v)
	v, _ = out.Records[1].Value(dataset.KpIndex)
	assert.Equal(t, 4.0, v, "existing values are kept")
	_, ok = out.Records[2].Value(dataset.KpIndex)
	assert.False(t, ok)

	_, ok = table.Records[0].Value(dataset.KpIndex)
	assert.False(t, ok, "input is not modified")
}

func TestBackfillAddsColumn(t *testing.T) {
	table, err := Merge(series(dataset.SEPIntensity, map[int]float64{0: 1, 1: 2}))
	require.NoError(t, err)
	require.False(t, table.Has(dataset.KpIndex))

	out, filled, err := Backfill(table, series(dataset.KpIndex, map[int]float64{1: 3}))
	require.NoError(t, err)
	assert.Equal(t, 1, filled)
	assert.Equal(t, []dataset.Column{dataset.KpIndex}, out.Columns)

	out, filled, err = Backfill(table, series(dataset.KpIndex, map[int]float64{9: 3}))
	require.NoError(t, err)
	assert.Zero(t, filled)
	assert.Empty(t, out.Columns)
}

func TestBackfillRejectsPrimary(t *testing.T) {
	table, err := Merge(series(dataset.SEPIntensity, map[int]float64{0: 1}))
	require.NoError(t, err)

	_, _, err = Backfill(table, series(dataset.SEPIntensity, map[int]float64{0: 5}))
	assert.Error(t, err)
}
