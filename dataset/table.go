package dataset

import (
	"fmt"
	"time"
)

// Table is the merged, date-keyed collection of records.
// Columns lists the companion columns that were present at merge time, in join order.
type Table struct {
	Columns []Column
	Records []Record
}

// NewTable validates the declared companion columns and wraps the records.
func NewTable(columns []Column, records []Record) (*Table, error) {
	seen := make(map[Column]bool, len(columns))
	for _, c := range columns {
		if _, err := ParseColumn(string(c)); err != nil {
			return nil, err
		}
		if c.IsPrimary() {
			return nil, fmt.Errorf("%s is implicit and cannot be declared as a companion", c)
		}
		if seen[c] {
			return nil, fmt.Errorf("column %s declared twice", c)
		}
		seen[c] = true
	}
	return &Table{Columns: append([]Column(nil), columns...), Records: records}, nil
}

// Len returns the number of records. A nil table has none.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// IsEmpty reports whether the table has no records.
func (t *Table) IsEmpty() bool {
	return t.Len() == 0
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	if t == nil {
		return &Table{}
	}
	out := &Table{
		Columns: append([]Column(nil), t.Columns...),
		Records: make([]Record, len(t.Records)),
	}
	for i, r := range t.Records {
		out.Records[i] = r.Clone()
	}
	return out
}

// Has reports whether column c is part of the table.
func (t *Table) Has(c Column) bool {
	if c.IsPrimary() {
		return true
	}
	for _, col := range t.Columns {
		if col == c {
			return true
		}
	}
	return false
}

// ValueColumns returns the primary column followed by the present companions.
func (t *Table) ValueColumns() []Column {
	return append([]Column{SEPIntensity}, t.Columns...)
}

// Values returns the present values of c in record order.
func (t *Table) Values(c Column) []float64 {
	out := make([]float64, 0, t.Len())
	for _, r := range t.Records {
		if v, ok := r.Value(c); ok {
			out = append(out, v)
		}
	}
	return out
}

// Missing counts the records where c is absent.
func (t *Table) Missing(c Column) int {
	n := 0
	for _, r := range t.Records {
		if _, ok := r.Value(c); !ok {
			n++
		}
	}
	return n
}

// Pairs returns aligned values of x and y over records where both are present.
func (t *Table) Pairs(x, y Column) ([]float64, []float64) {
	xs := make([]float64, 0, t.Len())
	ys := make([]float64, 0, t.Len())
	for _, r := range t.Records {
		xv, xok := r.Value(x)
		yv, yok := r.Value(y)
		if xok && yok {
			xs = append(xs, xv)
			ys = append(ys, yv)
		}
	}
	return xs, ys
}

// Series extracts column c as a series, skipping records where it is absent.
func (t *Table) Series(c Column) *Series {
	s := &Series{Column: c}
	for _, r := range t.Records {
		if v, ok := r.Value(c); ok {
			s.Points = append(s.Points, Point{Date: r.Date, Value: v})
		}
	}
	return s
}

// DateRange returns the earliest and latest record dates.
func (t *Table) DateRange() (start, end time.Time, ok bool) {
	for i, r := range t.Records {
		if i == 0 || r.Date.Before(start) {
			start = r.Date
		}
		if i == 0 || r.Date.After(end) {
			end = r.Date
		}
	}
	return start, end, t.Len() > 0
}

// HasClusters reports whether any record carries a cluster label.
func (t *Table) HasClusters() bool {
	for _, r := range t.Records {
		if r.Cluster != nil {
			return true
		}
	}
	return false
}

// Equal reports whether two tables hold the same columns and records in the same order.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t.Len() == 0 && o.Len() == 0
	}
	if t.Len() != o.Len() || len(t.Columns) != len(o.Columns) {
		return false
	}
	for i := range t.Columns {
		if t.Columns[i] != o.Columns[i] {
			return false
		}
	}
	for i := range t.Records {
		if !t.Records[i].Equal(o.Records[i]) {
			return false
		}
	}
	return true
}
