package pipeline

import (
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"solar-impact-insights/dataset"
	"solar-impact-insights/helpers"
)

// ValidationReport records what a validation pass changed.
type ValidationReport struct {
	InputRows          int                        `json:"input_rows"`
	OutputRows         int                        `json:"output_rows"`
	DuplicatesRemoved  int                        `json:"duplicates_removed"`
	MissingBefore      map[dataset.Column]int     `json:"missing_before"`
	MissingAfter       map[dataset.Column]int     `json:"missing_after"`
	FillValues         map[dataset.Column]float64 `json:"fill_values"`
	NegativeSEPClipped int                        `json:"negative_sep_clipped"`
	KpClipped          int                        `json:"kp_clipped"`
	NonFiniteDropped   int                        `json:"non_finite_dropped"`
}

// Changed reports whether the pass modified the table.
func (r ValidationReport) Changed() bool {
	if r.DuplicatesRemoved > 0 || r.NegativeSEPClipped > 0 || r.KpClipped > 0 || r.NonFiniteDropped > 0 {
		return true
	}
	for c, before := range r.MissingBefore {
		if r.MissingAfter[c] != before {
			return true
		}
	}
	return false
}

// Validator cleans a merged table.
type Validator struct {
	log *zap.Logger
}

// NewValidator creates a validator. A nil logger disables logging.
func NewValidator(log *zap.Logger) *Validator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{log: log}
}

// Validate runs a Validator without logging.
func Validate(t *dataset.Table) (*dataset.Table, ValidationReport) {
	return NewValidator(nil).Validate(t)
}

// Validate returns a cleaned copy of t:
//  1. exact-duplicate rows are dropped (first occurrence kept)
//  2. nulls in each numeric column are filled with that column's median
//  3. negative SEP intensities are zeroed
//  4. Kp is clipped into [0, 9]
//
// Rows with a NaN or infinite SEP intensity are dropped before step 1, and non-finite
// companions count as nulls.
// Medians are taken after deduplication and before clipping. Rows that only become
// identical through clipping are dropped by a final sweep so that the pass is idempotent.
func (v *Validator) Validate(t *dataset.Table) (*dataset.Table, ValidationReport) {
	out := t.Clone()
	report := ValidationReport{
		InputRows:     out.Len(),
		MissingBefore: make(map[dataset.Column]int),
		MissingAfter:  make(map[dataset.Column]int),
		FillValues:    make(map[dataset.Column]float64),
	}

	report.NonFiniteDropped = dropNonFinite(out)
	if report.NonFiniteDropped > 0 {
		v.log.Warn("⚠️  Rows without a finite SEP intensity dropped", zap.Int("count", report.NonFiniteDropped))
	}
	report.DuplicatesRemoved = dropDuplicates(out)

	for _, c := range out.ValueColumns() {
		missing := out.Missing(c)
		report.MissingBefore[c] = missing
		if missing == 0 {
			continue
		}
		present := out.Values(c)
		if len(present) == 0 {
			v.log.Warn("⚠️  Column has no values to impute from", zap.String("column", c.String()))
			continue
		}
		median := helpers.Median(present)
		report.FillValues[c] = median
		for i := range out.Records {
			if _, ok := out.Records[i].Value(c); !ok {
				out.Records[i].SetValue(c, median)
			}
		}
	}

	for i := range out.Records {
		r := &out.Records[i]
		if r.SEPIntensity < 0 {
			r.SEPIntensity = 0
			report.NegativeSEPClipped++
		}
		if kp, ok := r.Value(dataset.KpIndex); ok {
			clipped := math.Min(math.Max(kp, dataset.KpMin), dataset.KpMax)
			if clipped != kp {
				r.KpIndex = dataset.Float(clipped)
				report.KpClipped++
			}
		}
	}
	if report.NegativeSEPClipped > 0 {
		v.log.Warn("⚠️  Negative SEP intensities clipped to zero", zap.Int("count", report.NegativeSEPClipped))
	}
	if report.KpClipped > 0 {
		v.log.Warn("⚠️  Kp values clipped into [0, 9]", zap.Int("count", report.KpClipped))
	}

	report.DuplicatesRemoved += dropDuplicates(out)

	for _, c := range out.ValueColumns() {
		report.MissingAfter[c] = out.Missing(c)
	}
	report.OutputRows = out.Len()

	v.log.Debug("✅ Validation complete",
		zap.Int("input_rows", report.InputRows),
		zap.Int("output_rows", report.OutputRows),
		zap.Int("duplicates_removed", report.DuplicatesRemoved),
	)
	return out, report
}

// dropNonFinite removes rows whose SEP intensity is NaN or infinite. Non-finite companions
// were already cleared by Clone and count as missing.
func dropNonFinite(t *dataset.Table) int {
	kept := t.Records[:0]
	for _, r := range t.Records {
		if dataset.Finite(r.SEPIntensity) {
			kept = append(kept, r)
		}
	}
	removed := len(t.Records) - len(kept)
	t.Records = kept
	return removed
}

func dropDuplicates(t *dataset.Table) int {
	seen := make(map[string]bool, t.Len())
	kept := t.Records[:0]
	for _, r := range t.Records {
		k := recordKey(r)
		if seen[k] {
			continue
		}
		seen[k] = true
		kept = append(kept, r)
	}
	removed := len(t.Records) - len(kept)
	t.Records = kept
	return removed
}

func recordKey(r dataset.Record) string {
	var b strings.Builder
	b.WriteString(r.Date.Format(dataset.DateLayout))
	for _, c := range dataset.AllColumns() {
		b.WriteByte('|')
		if v, ok := r.Value(c); ok {
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		} else {
			b.WriteByte('_')
		}
	}
	b.WriteByte('|')
	if r.Cluster != nil {
		b.WriteString(strconv.Itoa(*r.Cluster))
	}
	return b.String()
}
