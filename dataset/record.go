package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Record is one merged row: the primary signal plus optional companions for a single date.
// Cluster is nil until clustering runs.
type Record struct {
	Date         time.Time
	SEPIntensity float64
	Temperature  *float64
	IceExtent    *float64
	OzoneLevel   *float64
	KpIndex      *float64
	Cluster      *int
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}

func (r *Record) field(c Column) **float64 {
	switch c {
	case Temperature:
		return &r.Temperature
	case IceExtent:
		return &r.IceExtent
	case OzoneLevel:
		return &r.OzoneLevel
	case KpIndex:
		return &r.KpIndex
	}
	return nil
}

// Value returns the value of column c and whether it is present. A non-finite companion
// counts as absent.
func (r Record) Value(c Column) (float64, bool) {
	if c.IsPrimary() {
		return r.SEPIntensity, true
	}
	f := r.field(c)
	if f == nil || *f == nil || !Finite(**f) {
		return 0, false
	}
	return **f, true
}

// SetValue sets column c to v. A non-finite v clears a companion.
func (r *Record) SetValue(c Column, v float64) {
	if c.IsPrimary() {
		r.SEPIntensity = v
		return
	}
	if f := r.field(c); f != nil {
		if !Finite(v) {
			*f = nil
			return
		}
		*f = Float(v)
	}
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := Record{Date: r.Date, SEPIntensity: r.SEPIntensity}
	for _, c := range Companions {
		if v, ok := r.Value(c); ok {
			out.SetValue(c, v)
		}
	}
	if r.Cluster != nil {
		out.Cluster = Int(*r.Cluster)
	}
	return out
}

// Equal reports whether two records hold exactly the same values.
func (r Record) Equal(o Record) bool {
	if !r.Date.Equal(o.Date) || r.SEPIntensity != o.SEPIntensity {
		return false
	}
	for _, c := range Companions {
		a, aok := r.Value(c)
		b, bok := o.Value(c)
		if aok != bok || (aok && a != b) {
			return false
		}
	}
	if (r.Cluster == nil) != (o.Cluster == nil) {
		return false
	}
	return r.Cluster == nil || *r.Cluster == *o.Cluster
}

type recordJSON struct {
	Date         string   `json:"date"`
	SEPIntensity *float64 `json:"sep_intensity"`
	Temperature  *float64 `json:"temperature"`
	IceExtent    *float64 `json:"ice_extent"`
	OzoneLevel   *float64 `json:"ozone_level"`
	KpIndex      *float64 `json:"kp_index"`
	Cluster      *int     `json:"cluster,omitempty"`
}

// MarshalJSON encodes the record with an ISO-8601 date and null for absent companions.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		Date:         r.Date.Format(DateLayout),
		SEPIntensity: Float(r.SEPIntensity),
		Temperature:  r.Temperature,
		IceExtent:    r.IceExtent,
		OzoneLevel:   r.OzoneLevel,
		KpIndex:      r.KpIndex,
		Cluster:      r.Cluster,
	})
}

// UnmarshalJSON decodes a record, rejecting fields outside the schema.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		if key == "date" || key == "cluster" {
			continue
		}
		if _, err := ParseColumn(key); err != nil {
			return err
		}
	}

	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	date, err := ParseDate(in.Date)
	if err != nil {
		return err
	}
	if in.SEPIntensity == nil {
		return fmt.Errorf("record %s: missing %s", in.Date, SEPIntensity)
	}

	*r = Record{
		Date:         date,
		SEPIntensity: *in.SEPIntensity,
		Temperature:  in.Temperature,
		IceExtent:    in.IceExtent,
		OzoneLevel:   in.OzoneLevel,
		KpIndex:      in.KpIndex,
		Cluster:      in.Cluster,
	}
	return nil
}
