package pipeline

import (
	"fmt"
	"time"

	"solar-impact-insights/dataset"
)

// Backfill returns a copy of t with every missing value of s.Column taken from s. Values
// already present are kept. The column is appended to Table.Columns when t lacked it and at
// least one value was filled. The second result counts the filled records.
func Backfill(t *dataset.Table, s *dataset.Series) (*dataset.Table, int, error) {
	if s == nil {
		return t.Clone(), 0, nil
	}
	if s.Column.IsPrimary() {
		return nil, 0, fmt.Errorf("backfill: %s is the primary signal", s.Column)
	}

	byDate := make(map[time.Time]float64, s.Len())
	for _, p := range s.Points {
		byDate[dataset.Day(p.Date)] = p.Value
	}

	out := t.Clone()
	filled := 0
	for i := range out.Records {
		rec := &out.Records[i]
		if _, ok := rec.Value(s.Column); ok {
			continue
		}
		if v, ok := byDate[rec.Date]; ok {
			rec.SetValue(s.Column, v)
			filled++
		}
	}
	if filled > 0 && !out.Has(s.Column) {
		out.Columns = append(out.Columns, s.Column)
	}
	return out, filled, nil
}
