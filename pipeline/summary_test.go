package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solar-impact-insights/dataset"
)

func TestSummarize(t *testing.T) {
	table := &dataset.Table{
		Columns: []dataset.Column{dataset.Temperature},
		Records: []dataset.Record{
			{Date: dayN(0), SEPIntensity: 1.0, Temperature: dataset.Float(10)},
			{Date: dayN(1), SEPIntensity: 3.0},
			{Date: dayN(4), SEPIntensity: 8.0, Temperature: dataset.Float(20)},
		},
	}

	s := Summarize(table)
	assert.Equal(t, 3, s.TotalRecords)
	require.NotNil(t, s.DateRange)
	assert.Equal(t, "2024-01-01", s.DateRange.Start)
	assert.Equal(t, "2024-01-05", s.DateRange.End)
	assert.Equal(t, 4, s.DateRange.DaysCovered)

	assert.Equal(t, 0, s.MissingValues[dataset.SEPIntensity])
	assert.Equal(t, 1, s.MissingValues[dataset.Temperature])

	sep := s.Statistics[dataset.SEPIntensity]
	assert.Equal(t, 3, sep.Count)
	assert.InDelta(t, 4.0, sep.Mean, 1e-12)
	assert.Equal(t, 1.0, sep.Min)
	assert.Equal(t, 8.0, sep.Max)
	assert.Equal(t, 3.0, sep.Median)
	assert.Equal(t, 2, s.Statistics[dataset.Temperature].Count)

	assert.Equal(t, dataset.IntensityDistribution{Low: 1, Medium: 1, High: 1}, s.IntensityDistribution)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(&dataset.Table{})
	assert.Equal(t, 0, s.TotalRecords)
	assert.Nil(t, s.DateRange)
	assert.Empty(t, s.Statistics)

	s = Summarize(nil)
	assert.Equal(t, 0, s.TotalRecords)
}
