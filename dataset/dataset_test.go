package dataset

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestParseColumn(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Column
		wantErr bool
	}{
		{name: "primary", input: "sep_intensity", want: SEPIntensity},
		{name: "case and spaces", input: "  Kp_Index ", want: KpIndex},
		{name: "unknown", input: "solar_wind", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseColumn(tt.input)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnknownColumn))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"2024-03-05", "2024-03-05T13:45:00Z", "2024-03-05 23:59:59", "2024-03-05 00:00:00.000"} {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), got, in)
	}

	_, err := ParseDate("05/03/2024")
	assert.Error(t, err)
}

func TestNewSeries(t *testing.T) {
	t.Run("sorts and normalizes dates", func(t *testing.T) {
		s, err := NewSeries(Temperature, []Point{
			{Date: time.Date(2024, 1, 3, 18, 0, 0, 0, time.UTC), Value: 3},
			{Date: day("2024-01-01"), Value: 1},
		})
		require.NoError(t, err)
		require.Equal(t, 2, s.Len())
		assert.Equal(t, day("2024-01-01"), s.Points[0].Date)
		assert.Equal(t, day("2024-01-03"), s.Points[1].Date)
		assert.Equal(t, []float64{1, 3}, s.Values())
	})

	t.Run("rejects duplicate dates", func(t *testing.T) {
		_, err := NewSeries(Temperature, []Point{
			{Date: time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), Value: 1},
			{Date: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), Value: 2},
		})
		assert.True(t, errors.Is(err, ErrDuplicateDate))
	})

	t.Run("drops non-finite values", func(t *testing.T) {
		s, err := NewSeries(KpIndex, []Point{
			{Date: day("2024-01-01"), Value: math.NaN()},
			{Date: day("2024-01-02"), Value: 4},
			{Date: day("2024-01-03"), Value: math.Inf(1)},
		})
		require.NoError(t, err)
		assert.Equal(t, []float64{4}, s.Values())
	})

	t.Run("rejects unknown columns", func(t *testing.T) {
		_, err := NewSeries(Column("humidity"), nil)
		assert.True(t, errors.Is(err, ErrUnknownColumn))
	})
}

func TestAggregate(t *testing.T) {
	readings := []Point{
		{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Value: 2},
		{Date: time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC), Value: 4},
		{Date: time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC), Value: 5},
	}

	mean, err := Aggregate(KpIndex, readings, Mean)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 5}, mean.Values())

	peak, err := Aggregate(SEPIntensity, readings, Max)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5}, peak.Values())
}

func TestRecordJSON(t *testing.T) {
	t.Run("encodes ISO dates and nulls", func(t *testing.T) {
		r := Record{Date: day("2024-02-29"), SEPIntensity: 1.2345, KpIndex: Float(3.5)}
		b, err := json.Marshal(r)
		require.NoError(t, err)
		assert.JSONEq(t, `{"date":"2024-02-29","sep_intensity":1.2345,"temperature":null,"ice_extent":null,"ozone_level":null,"kp_index":3.5}`, string(b))

		var back Record
		require.NoError(t, json.Unmarshal(b, &back))
		assert.True(t, r.Equal(back))
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		var r Record
		err := json.Unmarshal([]byte(`{"date":"2024-01-01","sep_intensity":1,"humidity":3}`), &r)
		assert.True(t, errors.Is(err, ErrUnknownColumn))
	})

	t.Run("requires the primary signal", func(t *testing.T) {
		var r Record
		assert.Error(t, json.Unmarshal([]byte(`{"date":"2024-01-01","temperature":3}`), &r))
	})
}

func TestRecordCloneIsDeep(t *testing.T) {
	r := Record{Date: day("2024-01-01"), SEPIntensity: 1, Temperature: Float(10), Cluster: Int(2)}
	c := r.Clone()
	*c.Temperature = 99
	*c.Cluster = 0

	assert.Equal(t, 10.0, *r.Temperature)
	assert.Equal(t, 2, *r.Cluster)
}

func TestFilter(t *testing.T) {
	tbl, err := NewTable([]Column{Temperature}, []Record{
		{Date: day("2024-01-01"), SEPIntensity: 1},
		{Date: day("2024-01-02"), SEPIntensity: 5},
		{Date: day("2024-01-03"), SEPIntensity: 6},
		{Date: day("2024-01-04"), SEPIntensity: 9},
	})
	require.NoError(t, err)

	start, end := day("2024-01-02"), day("2024-01-03")
	minI, maxI := 2.0, 8.0

	tests := []struct {
		name   string
		filter Filter
		want   []float64
	}{
		{name: "zero filter keeps all", filter: Filter{}, want: []float64{1, 5, 6, 9}},
		{name: "date range", filter: Filter{StartDate: &start, EndDate: &end}, want: []float64{5, 6}},
		{name: "intensity bounds", filter: Filter{MinIntensity: &minI, MaxIntensity: &maxI}, want: []float64{5, 6}},
		{name: "high intensity is strictly above 5", filter: Filter{HighIntensityOnly: true}, want: []float64{6, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Apply(tbl)
			assert.Equal(t, tt.want, got.Values(SEPIntensity))
			assert.Equal(t, []Column{Temperature}, got.Columns)
		})
	}
	assert.True(t, Filter{}.IsZero())
}

func TestNewTableRejectsBadColumns(t *testing.T) {
	_, err := NewTable([]Column{SEPIntensity}, nil)
	assert.Error(t, err)

	_, err = NewTable([]Column{Temperature, Temperature}, nil)
	assert.Error(t, err)

	_, err = NewTable([]Column{"wind"}, nil)
	assert.True(t, errors.Is(err, ErrUnknownColumn))
}

func TestResult(t *testing.T) {
	ok := Ok(3)
	v, produced := ok.Get()
	assert.True(t, produced)
	assert.Equal(t, 3, v)

	empty := Empty[int]("no rows")
	assert.True(t, empty.IsEmpty())
	_, produced = empty.Get()
	assert.False(t, produced)

	failed := Fail[int](errors.New("boom"))
	assert.True(t, failed.IsError())
	assert.Equal(t, "boom", failed.Reason)

	b, err := json.Marshal(failed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","reason":"boom"}`, string(b))

	b, err = json.Marshal(ok)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","value":3}`, string(b))
}

func TestResultUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		status  Status
		value   int
		reason  string
		wantErr bool
	}{
		{name: "ok", input: `{"status":"ok","value":7}`, status: StatusOK, value: 7},
		{name: "empty", input: `{"status":"empty","reason":"no rows"}`, status: StatusEmpty, reason: "no rows"},
		{name: "error", input: `{"status":"error","reason":"boom"}`, status: StatusError, reason: "boom"},
		{name: "unknown status", input: `{"status":"maybe"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Result[int]
			err := json.Unmarshal([]byte(tt.input), &r)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status, r.Status)
			assert.Equal(t, tt.value, r.Value)
			assert.Equal(t, tt.reason, r.Reason)
			if tt.status == StatusError {
				assert.EqualError(t, r.Err, tt.reason)
			}
		})
	}
}

func TestRecordNonFiniteCompanion(t *testing.T) {
	r := Record{Date: day("2024-01-01"), SEPIntensity: 1, KpIndex: Float(math.NaN())}
	_, ok := r.Value(KpIndex)
	assert.False(t, ok)
	assert.Nil(t, r.Clone().KpIndex)

	r.SetValue(Temperature, math.Inf(-1))
	assert.Nil(t, r.Temperature)
	r.SetValue(Temperature, 12)
	assert.Equal(t, 12.0, *r.Temperature)
}
