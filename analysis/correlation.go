// Package analysis holds the statistical analyses run over a merged table.
// Each analysis reads its input table and returns a dataset.Result; none mutates the input.
package analysis

import (
	"math"
	"sort"

	"solar-impact-insights/dataset"
	"solar-impact-insights/helpers"
)

// CorrelationPrecision is the number of decimals reported coefficients are rounded to.
const CorrelationPrecision = 3

// Correlations maps every present companion column to its Pearson coefficient against
// SEP intensity. Coefficients that cannot be defined are reported as 0 and listed in Undefined.
type Correlations struct {
	Coefficients map[dataset.Column]float64 `json:"coefficients"`
	Samples      map[dataset.Column]int     `json:"samples"`
	Undefined    []dataset.Column           `json:"undefined,omitempty"`
}

// Extreme names the column holding a signed extreme coefficient.
type Extreme struct {
	Column dataset.Column `json:"column"`
	Value  float64        `json:"value"`
}

// Strongest returns the strongest positive and strongest negative coefficient.
// Either is nil when no coefficient has that sign.
func (c Correlations) Strongest() (positive, negative *Extreme) {
	cols := make([]dataset.Column, 0, len(c.Coefficients))
	for col := range c.Coefficients {
		cols = append(cols, col)
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i] < cols[j] })

	for _, col := range cols {
		v := c.Coefficients[col]
		if v > 0 && (positive == nil || v > positive.Value) {
			positive = &Extreme{Column: col, Value: v}
		}
		if v < 0 && (negative == nil || v < negative.Value) {
			negative = &Extreme{Column: col, Value: v}
		}
	}
	return positive, negative
}

// Correlate computes the Pearson coefficient of each companion against SEP intensity over
// the rows where both values are present.
func Correlate(t *dataset.Table) dataset.Result[Correlations] {
	if t.IsEmpty() {
		return dataset.Empty[Correlations]("no records")
	}
	if len(t.Columns) == 0 {
		return dataset.Empty[Correlations]("no companion columns")
	}

	out := Correlations{
		Coefficients: make(map[dataset.Column]float64, len(t.Columns)),
		Samples:      make(map[dataset.Column]int, len(t.Columns)),
	}
	for _, c := range t.Columns {
		xs, ys := t.Pairs(c, dataset.SEPIntensity)
		out.Samples[c] = len(xs)

		r, ok := Pearson(xs, ys)
		if !ok {
			out.Coefficients[c] = 0
			out.Undefined = append(out.Undefined, c)
			continue
		}
		out.Coefficients[c] = helpers.Round(r, CorrelationPrecision)
	}
	return dataset.Ok(out)
}

// Pearson returns the correlation coefficient of x and y, clamped to [-1, 1].
// It reports false when fewer than two pairs exist or either side has zero variance.
func Pearson(x, y []float64) (float64, bool) {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	if n < 2 {
		return 0, false
	}

	meanX := helpers.Mean(x[:n])
	meanY := helpers.Mean(y[:n])

	sumXY, sumX2, sumY2 := 0.0, 0.0, 0.0
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		sumXY += dx * dy
		sumX2 += dx * dx
		sumY2 += dy * dy
	}

	denominator := math.Sqrt(sumX2 * sumY2)
	if denominator == 0 || math.IsNaN(denominator) {
		return 0, false
	}

	r := sumXY / denominator
	return math.Max(-1, math.Min(1, r)), true
}
