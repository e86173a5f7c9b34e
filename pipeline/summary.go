package pipeline

import (
	"solar-impact-insights/dataset"
	"solar-impact-insights/helpers"
)

// DateRange is the coverage of a table.
type DateRange struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	DaysCovered int    `json:"days_covered"`
}

// ColumnStats holds descriptive statistics of one column.
type ColumnStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
}

// Summary is the data-quality view of a table. It is derived on demand.
type Summary struct {
	TotalRecords          int                            `json:"total_records"`
	DateRange             *DateRange                     `json:"date_range,omitempty"`
	Columns               []dataset.Column               `json:"columns"`
	MissingValues         map[dataset.Column]int         `json:"missing_values"`
	Statistics            map[dataset.Column]ColumnStats `json:"statistics"`
	IntensityDistribution dataset.IntensityDistribution  `json:"intensity_distribution"`
}

// Summarize computes the data-quality summary of t.
func Summarize(t *dataset.Table) Summary {
	s := Summary{
		TotalRecords:  t.Len(),
		MissingValues: make(map[dataset.Column]int),
		Statistics:    make(map[dataset.Column]ColumnStats),
	}
	if t == nil {
		return s
	}
	s.Columns = t.ValueColumns()

	if start, end, ok := t.DateRange(); ok {
		s.DateRange = &DateRange{
			Start:       start.Format(dataset.DateLayout),
			End:         end.Format(dataset.DateLayout),
			DaysCovered: int(end.Sub(start).Hours() / 24),
		}
	}

	for _, c := range s.Columns {
		s.MissingValues[c] = t.Missing(c)
		values := t.Values(c)
		if len(values) == 0 {
			continue
		}
		lo, hi := helpers.MinMax(values)
		s.Statistics[c] = ColumnStats{
			Count:  len(values),
			Mean:   helpers.Mean(values),
			Std:    helpers.StdDev(values),
			Min:    lo,
			Max:    hi,
			Median: helpers.Median(values),
		}
	}

	s.IntensityDistribution = dataset.Distribution(t)
	return s
}
