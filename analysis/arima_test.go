package analysis

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solar-impact-insights/dataset"
)

// integratedAR1 simulates y with (1 - phi B)(1 - B) y = e.
func integratedAR1(n int, phi float64, seed uint64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	y := make([]float64, n)
	w := 0.0
	y[0] = 15
	for i := 1; i < n; i++ {
		w = phi*w + rng.NormFloat64()*0.2
		y[i] = y[i-1] + w
	}
	return y
}

func seriesTable(col dataset.Column, values []float64) *dataset.Table {
	tbl := &dataset.Table{Columns: []dataset.Column{col}}
	for i, v := range values {
		tbl.Records = append(tbl.Records, dataset.Record{Date: dayN(i), SEPIntensity: 1})
		tbl.Records[i].SetValue(col, v)
	}
	return tbl
}

func TestARIMAFitRecoversAR(t *testing.T) {
	model, err := ARIMA{P: 1, D: 1}.Fit(integratedAR1(3000, 0.5, 3))
	require.NoError(t, err)
	require.Len(t, model.AR, 1)
	assert.InDelta(t, 0.5, model.AR[0], 0.06)
	assert.InDelta(t, 0.04, model.Sigma2, 0.01)
	assert.Empty(t, model.MA)
}

func TestARIMAFitRecoversMA(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	n := 4000
	y := make([]float64, n)
	prev := 0.0
	for i := range y {
		e := rng.NormFloat64()
		y[i] = 2 + e + 0.6*prev
		prev = e
	}

	model, err := ARIMA{Q: 1}.Fit(y)
	require.NoError(t, err)
	require.Len(t, model.MA, 1)
	assert.InDelta(t, 0.6, model.MA[0], 0.08)
	assert.InDelta(t, 2.0, model.Intercept, 0.1)
}

func TestARIMAForecastDefaults(t *testing.T) {
	tbl := seriesTable(dataset.Temperature, integratedAR1(400, 0.3, 9))

	res := DefaultARIMA().Forecast(tbl, dataset.Temperature, 0)
	got, ok := res.Get()
	require.True(t, ok, res.Reason)

	assert.Equal(t, "ARIMA(5,1,0)", got.Model)
	require.Len(t, got.Steps, DefaultForecastSteps)
	assert.Equal(t, dayN(400), got.Steps[0].Date)
	assert.Equal(t, dayN(429), got.Steps[29].Date)
	for i, s := range got.Steps {
		assert.False(t, math.IsNaN(s.Value))
		assert.Less(t, s.Lower, s.Value)
		assert.Greater(t, s.Upper, s.Value)
		if i > 0 {
			assert.GreaterOrEqual(t, s.StdErr, got.Steps[i-1].StdErr)
		}
	}
}

func TestARIMARandomWalkForecast(t *testing.T) {
	values := integratedAR1(200, 0, 13)
	model, err := ARIMA{D: 1}.Fit(values)
	require.NoError(t, err)

	forecast, stderr := model.Predict(4)
	for h := range forecast {
		assert.InDelta(t, values[len(values)-1], forecast[h], 1e-12)
		assert.InDelta(t, math.Sqrt(model.Sigma2*float64(h+1)), stderr[h], 1e-12)
	}
}

func TestARIMAFailures(t *testing.T) {
	t.Run("too short", func(t *testing.T) {
		res := DefaultARIMA().Forecast(seriesTable(dataset.Temperature, []float64{1, 2, 3, 4, 5}), dataset.Temperature, 30)
		require.True(t, res.IsError())
		assert.True(t, errors.Is(res.Err, ErrSeriesTooShort))
	})

	t.Run("explosive series", func(t *testing.T) {
		rng := rand.New(rand.NewPCG(21, 22))
		y := make([]float64, 80)
		y[0] = 1
		for i := 1; i < len(y); i++ {
			y[i] = 1.1*y[i-1] + rng.NormFloat64()*0.01
		}
		_, err := ARIMA{P: 1}.Fit(y)
		assert.True(t, errors.Is(err, ErrNonStationary), "got %v", err)
	})

	t.Run("negative order", func(t *testing.T) {
		_, err := ARIMA{P: -1}.Fit([]float64{1, 2, 3})
		assert.True(t, errors.Is(err, ErrInvalidOrder))
	})

	t.Run("missing column", func(t *testing.T) {
		res := DefaultARIMA().Forecast(&dataset.Table{}, dataset.Temperature, 30)
		assert.True(t, res.IsEmpty())
	})
}

func TestForecastMean(t *testing.T) {
	f := Forecast{Steps: []ForecastStep{{Value: 18}, {Value: 22}}}
	assert.Equal(t, 20.0, f.Mean())
	assert.Equal(t, 0.0, Forecast{}.Mean())
}
