package dataset

import "time"

// HighIntensityThreshold is the SEP intensity above which an event counts as high intensity.
const HighIntensityThreshold = 5.0

// Filter selects records before analysis. Nil bounds are open.
type Filter struct {
	StartDate         *time.Time
	EndDate           *time.Time
	MinIntensity      *float64
	MaxIntensity      *float64
	HighIntensityOnly bool
}

// IsZero reports whether the filter selects everything.
func (f Filter) IsZero() bool {
	return f.StartDate == nil && f.EndDate == nil && f.MinIntensity == nil && f.MaxIntensity == nil && !f.HighIntensityOnly
}

// Match reports whether r passes every bound of the filter.
func (f Filter) Match(r Record) bool {
	if f.StartDate != nil && r.Date.Before(Day(*f.StartDate)) {
		return false
	}
	if f.EndDate != nil && r.Date.After(Day(*f.EndDate)) {
		return false
	}
	if f.MinIntensity != nil && r.SEPIntensity < *f.MinIntensity {
		return false
	}
	if f.MaxIntensity != nil && r.SEPIntensity > *f.MaxIntensity {
		return false
	}
	if f.HighIntensityOnly && r.SEPIntensity <= HighIntensityThreshold {
		return false
	}
	return true
}

// Apply returns a new table holding copies of the matching records.
func (f Filter) Apply(t *Table) *Table {
	out := &Table{}
	if t == nil {
		return out
	}
	out.Columns = append([]Column(nil), t.Columns...)
	for _, r := range t.Records {
		if f.Match(r) {
			out.Records = append(out.Records, r.Clone())
		}
	}
	return out
}
