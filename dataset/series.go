package dataset

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateLayout is the ISO-8601 calendar date layout used on every wire format.
const DateLayout = "2006-01-02"

// ErrDuplicateDate is returned when a series holds more than one point for a date.
var ErrDuplicateDate = errors.New("duplicate date in series")

// Point is a single daily observation of one signal.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is the time-indexed table produced by a source reader.
// Points are sorted by date and unique per date.
type Series struct {
	Column Column
	Points []Point
}

// Reducer folds the readings of a single day into one value.
type Reducer func(values []float64) float64

// Day truncates t to its calendar day at UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02T15:04Z",
	"2006/01/02",
}

// ParseDate parses a calendar date, accepting date-time forms and truncating them to the day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// NewSeries builds a sorted series, normalizing dates to calendar days. NaN and infinite
// values are dropped. More than one point on the same day is a contract violation and
// yields ErrDuplicateDate.
func NewSeries(col Column, points []Point) (*Series, error) {
	if _, err := ParseColumn(string(col)); err != nil {
		return nil, err
	}

	out := make([]Point, 0, len(points))
	for _, p := range points {
		if !Finite(p.Value) {
			continue
		}
		out = append(out, Point{Date: Day(p.Date), Value: p.Value})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	for i := 1; i < len(out); i++ {
		if out[i].Date.Equal(out[i-1].Date) {
			return nil, fmt.Errorf("%w: %s on %s", ErrDuplicateDate, col, out[i].Date.Format(DateLayout))
		}
	}

	return &Series{Column: col, Points: out}, nil
}

// EmptySeries returns a series with no points, used when a source is unavailable.
func EmptySeries(col Column) *Series {
	return &Series{Column: col}
}

// Aggregate groups intraday readings by calendar day and reduces each group.
func Aggregate(col Column, readings []Point, reduce Reducer) (*Series, error) {
	byDay := make(map[time.Time][]float64)
	for _, r := range readings {
		d := Day(r.Date)
		byDay[d] = append(byDay[d], r.Value)
	}

	points := make([]Point, 0, len(byDay))
	for d, values := range byDay {
		points = append(points, Point{Date: d, Value: reduce(values)})
	}
	return NewSeries(col, points)
}

// Mean is a Reducer returning the arithmetic mean.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Max is a Reducer returning the largest value.
func Max(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Len returns the number of points. A nil series has none.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Points)
}

// IsEmpty reports whether the series has no points.
func (s *Series) IsEmpty() bool {
	return s.Len() == 0
}

// Values returns the point values in date order.
func (s *Series) Values() []float64 {
	out := make([]float64, s.Len())
	for i := range out {
		out[i] = s.Points[i].Value
	}
	return out
}

// Between returns the points with start <= date <= end. Zero bounds are open.
func (s *Series) Between(start, end time.Time) *Series {
	out := &Series{Column: s.Column}
	for _, p := range s.Points {
		if !start.IsZero() && p.Date.Before(start) {
			continue
		}
		if !end.IsZero() && p.Date.After(end) {
			continue
		}
		out.Points = append(out.Points, p)
	}
	return out
}
