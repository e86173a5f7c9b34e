package analysis

import (
	"fmt"

	"solar-impact-insights/dataset"
	"solar-impact-insights/helpers"
)

// DefaultIQRMultiplier is the Tukey fence multiplier.
const DefaultIQRMultiplier = 1.5

// Anomaly types.
const (
	AnomalyHigh = "high"
	AnomalyLow  = "low"
)

// Anomaly is a value outside the interquartile fences.
type Anomaly struct {
	Date      string  `json:"date"`
	Value     float64 `json:"value"`
	Type      string  `json:"type"`
	Deviation float64 `json:"deviation_from_median"`
}

// AnomalyReport lists the anomalies of one column with the fences used.
type AnomalyReport struct {
	Column     dataset.Column `json:"column"`
	Q1         float64        `json:"q1"`
	Q3         float64        `json:"q3"`
	IQR        float64        `json:"iqr"`
	Median     float64        `json:"median"`
	LowerBound float64        `json:"lower_bound"`
	UpperBound float64        `json:"upper_bound"`
	Anomalies  []Anomaly      `json:"anomalies"`
}

// DetectAnomalies flags values of col below Q1 - m*IQR or above Q3 + m*IQR.
func DetectAnomalies(t *dataset.Table, col dataset.Column, multiplier float64) dataset.Result[AnomalyReport] {
	if multiplier <= 0 {
		multiplier = DefaultIQRMultiplier
	}
	values := t.Values(col)
	if len(values) == 0 {
		return dataset.Empty[AnomalyReport](fmt.Sprintf("no %s values", col))
	}

	q1 := helpers.Quantile(values, 0.25)
	q3 := helpers.Quantile(values, 0.75)
	iqr := q3 - q1
	report := AnomalyReport{
		Column:     col,
		Q1:         q1,
		Q3:         q3,
		IQR:        iqr,
		Median:     helpers.Median(values),
		LowerBound: q1 - multiplier*iqr,
		UpperBound: q3 + multiplier*iqr,
		Anomalies:  []Anomaly{},
	}

	for _, r := range t.Records {
		v, ok := r.Value(col)
		if !ok {
			continue
		}
		var kind string
		switch {
		case v > report.UpperBound:
			kind = AnomalyHigh
		case v < report.LowerBound:
			kind = AnomalyLow
		default:
			continue
		}
		report.Anomalies = append(report.Anomalies, Anomaly{
			Date:      r.Date.Format(dataset.DateLayout),
			Value:     v,
			Type:      kind,
			Deviation: helpers.Round(v-report.Median, CorrelationPrecision),
		})
	}
	return dataset.Ok(report)
}
