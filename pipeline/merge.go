// Package pipeline merges source series into the daily table, cleans it, and runs the
// analysis sequence end to end.
package pipeline

import (
	"fmt"
	"sort"
	"time"

	"solar-impact-insights/dataset"
)

// Merge full-outer-joins the given series on date and drops every row without a primary
// signal; a NaN or infinite value counts as no signal. Dates are returned in ascending order. Empty companion series are treated as an
// unavailable source and their column is left out of the table. The argument order only
// decides the order of Table.Columns.
func Merge(sources ...*dataset.Series) (*dataset.Table, error) {
	var primary *dataset.Series
	var companions []*dataset.Series
	seen := make(map[dataset.Column]bool)

	for _, s := range sources {
		if s == nil {
			continue
		}
		if _, err := dataset.ParseColumn(string(s.Column)); err != nil {
			return nil, err
		}
		if seen[s.Column] {
			return nil, fmt.Errorf("merge: more than one source for %s", s.Column)
		}
		seen[s.Column] = true

		if s.Column.IsPrimary() {
			primary = s
			continue
		}
		if !s.IsEmpty() {
			companions = append(companions, s)
		}
	}

	table := &dataset.Table{}
	for _, c := range companions {
		table.Columns = append(table.Columns, c.Column)
	}
	if primary.IsEmpty() {
		return table, nil
	}

	rows := make(map[time.Time]*dataset.Record, primary.Len())
	days := make(map[time.Time]bool, primary.Len())
	for _, p := range primary.Points {
		d := dataset.Day(p.Date)
		if days[d] {
			return nil, fmt.Errorf("merge: %w: %s on %s", dataset.ErrDuplicateDate, primary.Column, d.Format(dataset.DateLayout))
		}
		days[d] = true
		if dataset.Finite(p.Value) {
			rows[d] = &dataset.Record{Date: d, SEPIntensity: p.Value}
		}
	}

	for _, c := range companions {
		filled := make(map[time.Time]bool, c.Len())
		for _, p := range c.Points {
			d := dataset.Day(p.Date)
			if filled[d] {
				return nil, fmt.Errorf("merge: %w: %s on %s", dataset.ErrDuplicateDate, c.Column, d.Format(dataset.DateLayout))
			}
			filled[d] = true
			if r, ok := rows[d]; ok {
				r.SetValue(c.Column, p.Value)
			}
		}
	}

	table.Records = make([]dataset.Record, 0, len(rows))
	for _, r := range rows {
		table.Records = append(table.Records, *r)
	}
	sort.Slice(table.Records, func(i, j int) bool {
		return table.Records[i].Date.Before(table.Records[j].Date)
	})
	return table, nil
}
