package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solar-impact-insights/dataset"
)

func TestDetectAnomalies(t *testing.T) {
	values := []float64{5, 6, 5, 6, 5, 6, 5, 6, 40, -20}
	tbl := &dataset.Table{}
	for i, v := range values {
		tbl.Records = append(tbl.Records, dataset.Record{Date: dayN(i), SEPIntensity: v})
	}

	got, ok := DetectAnomalies(tbl, dataset.SEPIntensity, 0).Get()
	require.True(t, ok)
	require.Len(t, got.Anomalies, 2)

	assert.Equal(t, AnomalyHigh, got.Anomalies[0].Type)
	assert.Equal(t, "2024-01-09", got.Anomalies[0].Date)
	assert.Equal(t, 34.5, got.Anomalies[0].Deviation)
	assert.Equal(t, AnomalyLow, got.Anomalies[1].Type)
	assert.Equal(t, -25.5, got.Anomalies[1].Deviation)
	assert.Equal(t, 5.5, got.Median)
}

func TestDetectAnomaliesEmpty(t *testing.T) {
	assert.True(t, DetectAnomalies(&dataset.Table{}, dataset.KpIndex, 1.5).IsEmpty())
}

func TestBuildDashboard(t *testing.T) {
	now := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	tbl := &dataset.Table{Columns: []dataset.Column{dataset.KpIndex}}
	for i := 0; i < 40; i++ {
		d := dataset.Day(now).AddDate(0, 0, -i)
		sep := 2.0
		if i < 7 {
			sep = 3.0
		}
		tbl.Records = append(tbl.Records, dataset.Record{Date: d, SEPIntensity: sep, KpIndex: dataset.Float(4)})
	}
	tbl.Records[0].SEPIntensity = 9

	d := BuildDashboard(tbl, now)
	assert.Equal(t, "2024-01-31", d.From)
	assert.Equal(t, "2024-03-01", d.To)
	assert.Equal(t, 31, d.TotalEvents)
	assert.Equal(t, 9.0, d.MaxIntensity)
	assert.Equal(t, 1, d.HighIntensity)
	assert.Equal(t, 4.0, d.Averages[dataset.KpIndex])
	// recent mean (9 + 6*3)/7 against 2.0
	assert.InDelta(t, 92.86, d.TrendPercent, 1e-9)
	assert.Equal(t, 31, d.Distribution.Low+d.Distribution.Medium+d.Distribution.High)
}
