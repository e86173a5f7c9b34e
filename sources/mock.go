package sources

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"solar-impact-insights/dataset"
)

// MockGenerator synthesizes correlated daily series for every column.
//
// With s = sin(x) over x evenly spaced on [0, 10]:
//
//	sep         = N(50, 10) + 20 s
//	temperature = N(15, 2) + 1.5 s + 0.01 sep
//	ice_extent  = 10000 - N(100, 20) - 50 s - 0.05 sep
//	ozone_level = N(300, 20) - 0.1 sep
//	kp_index    = N(3, 1) + 0.02 sep
type MockGenerator struct {
	Start time.Time
	Days  int
	Seed  uint64
}

// DefaultMockGenerator covers 581 days from 2024-01-01.
func DefaultMockGenerator() MockGenerator {
	return MockGenerator{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Days:  581,
		Seed:  42,
	}
}

// Generate returns one series per column. The same seed always yields the same data.
func (g MockGenerator) Generate() map[dataset.Column]*dataset.Series {
	n := g.Days
	rng := rand.New(rand.NewPCG(g.Seed, g.Seed+1))
	normal := func(mean, std float64) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = mean + std*rng.NormFloat64()
		}
		return out
	}

	wave := make([]float64, n)
	for i := range wave {
		x := 0.0
		if n > 1 {
			x = 10 * float64(i) / float64(n-1)
		}
		wave[i] = math.Sin(x)
	}

	sep := normal(50, 10)
	for i := range sep {
		sep[i] += 20 * wave[i]
	}
	temp := normal(15, 2)
	iceNoise := normal(100, 20)
	ozone := normal(300, 20)
	kp := normal(3, 1)

	ice := make([]float64, n)
	for i := 0; i < n; i++ {
		temp[i] += 1.5*wave[i] + 0.01*sep[i]
		ice[i] = 10000 - iceNoise[i] - 50*wave[i] - 0.05*sep[i]
		ozone[i] -= 0.1 * sep[i]
		kp[i] += 0.02 * sep[i]
	}

	values := map[dataset.Column][]float64{
		dataset.SEPIntensity: sep,
		dataset.Temperature:  temp,
		dataset.IceExtent:    ice,
		dataset.OzoneLevel:   ozone,
		dataset.KpIndex:      kp,
	}

	start := dataset.Day(g.Start)
	out := make(map[dataset.Column]*dataset.Series, len(values))
	for col, vs := range values {
		s := &dataset.Series{Column: col, Points: make([]dataset.Point, n)}
		for i, v := range vs {
			s.Points[i] = dataset.Point{Date: start.AddDate(0, 0, i), Value: v}
		}
		out[col] = s
	}
	return out
}

// Sources returns one Source per column, primary first.
func (g MockGenerator) Sources() []Source {
	cols := dataset.AllColumns()
	out := make([]Source, len(cols))
	for i, c := range cols {
		out[i] = &mockSource{gen: g, column: c}
	}
	return out
}

type mockSource struct {
	gen    MockGenerator
	column dataset.Column
}

func (m *mockSource) Name() string           { return "mock-" + m.column.String() }
func (m *mockSource) Column() dataset.Column { return m.column }

func (m *mockSource) Fetch(ctx context.Context) (*dataset.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.gen.Generate()[m.column], nil
}
