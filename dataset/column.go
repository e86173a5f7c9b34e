// Package dataset defines the daily space-weather table shared by every pipeline stage.
//
// The schema is closed: the primary signal (SEP intensity) is always present and the
// companion signals are a fixed, declared set. Unknown column names are rejected at the
// edges (file readers, JSON decoding) instead of being carried through the pipeline.
package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// Column names a value column of the merged table.
type Column string

const (
	SEPIntensity Column = "sep_intensity"
	Temperature  Column = "temperature"
	IceExtent    Column = "ice_extent"
	OzoneLevel   Column = "ozone_level"
	KpIndex      Column = "kp_index"
)

// Kp index bounds.
const (
	KpMin = 0.0
	KpMax = 9.0
)

// ErrUnknownColumn is returned when a column name is outside the declared schema.
var ErrUnknownColumn = errors.New("unknown column")

// Companions lists the optional columns in canonical join order.
var Companions = []Column{Temperature, IceExtent, OzoneLevel, KpIndex}

// AllColumns returns the primary column followed by every companion.
func AllColumns() []Column {
	return append([]Column{SEPIntensity}, Companions...)
}

// ParseColumn maps a column name onto the schema.
func ParseColumn(name string) (Column, error) {
	c := Column(strings.ToLower(strings.TrimSpace(name)))
	switch c {
	case SEPIntensity, Temperature, IceExtent, OzoneLevel, KpIndex:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownColumn, name)
}

// IsPrimary reports whether c is the primary signal.
func (c Column) IsPrimary() bool {
	return c == SEPIntensity
}

func (c Column) String() string {
	return string(c)
}
