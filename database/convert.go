package database

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/datatypes"

	"solar-impact-insights/alerting"
	"solar-impact-insights/analysis"
	"solar-impact-insights/dataset"
)

// EventFromRecord converts a merged record into its persisted row.
func EventFromRecord(r dataset.Record) SEPEvent {
	return SEPEvent{
		Date:         dataset.Day(r.Date),
		SEPIntensity: r.SEPIntensity,
		Temperature:  copyFloat(r.Temperature),
		IceExtent:    copyFloat(r.IceExtent),
		OzoneLevel:   copyFloat(r.OzoneLevel),
		KpIndex:      copyFloat(r.KpIndex),
		ClusterID:    copyInt(r.Cluster),
	}
}

// RecordFromEvent converts a persisted row into a merged record.
func RecordFromEvent(e SEPEvent) dataset.Record {
	return dataset.Record{
		Date:         dataset.Day(e.Date),
		SEPIntensity: e.SEPIntensity,
		Temperature:  copyFloat(e.Temperature),
		IceExtent:    copyFloat(e.IceExtent),
		OzoneLevel:   copyFloat(e.OzoneLevel),
		KpIndex:      copyFloat(e.KpIndex),
		Cluster:      copyInt(e.ClusterID),
	}
}

// TableFromEvents rebuilds a table in ascending date order. A companion column is part of
// the table when at least one row holds a value for it.
func TableFromEvents(events []SEPEvent) *dataset.Table {
	t := &dataset.Table{Records: make([]dataset.Record, 0, len(events))}
	present := make(map[dataset.Column]bool)
	for _, e := range events {
		r := RecordFromEvent(e)
		for _, c := range dataset.Companions {
			if _, ok := r.Value(c); ok {
				present[c] = true
			}
		}
		t.Records = append(t.Records, r)
	}
	for _, c := range dataset.Companions {
		if present[c] {
			t.Columns = append(t.Columns, c)
		}
	}
	sort.SliceStable(t.Records, func(i, j int) bool {
		return t.Records[i].Date.Before(t.Records[j].Date)
	})
	return t
}

// AlertFromRule converts an evaluated alert into its persisted row.
func AlertFromRule(a alerting.Alert) Alert {
	threshold, actual := a.ThresholdValue, a.ActualValue
	return Alert{
		AlertType:      a.Type,
		Severity:       a.Severity,
		Message:        a.Message,
		ThresholdValue: &threshold,
		ActualValue:    &actual,
		EventDate:      dataset.Day(a.EventDate),
		IsActive:       a.Active,
	}
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// PredictionsFromForecast converts every forecast step into a prediction row.
func PredictionsFromForecast(f analysis.Forecast, madeAt time.Time) []Prediction {
	out := make([]Prediction, 0, len(f.Steps))
	for i, s := range f.Steps {
		c := predictionConfidence
		out = append(out, Prediction{
			PredictionDate:     madeAt,
			PredictedForDate:   dataset.Day(s.Date),
			PredictedIntensity: s.Value,
			ConfidenceScore:    &c,
			ModelVersion:       f.Model,
			Features: datatypes.JSONMap{
				"column":   f.Column.String(),
				"step":     i + 1,
				"std_err":  s.StdErr,
				"lower_95": s.Lower,
				"upper_95": s.Upper,
			},
		})
	}
	return out
}

// predictionConfidence is the coverage of the stored forecast interval.
const predictionConfidence = 0.95

// MetricsFromCorrelations records one coefficient per companion column.
func MetricsFromCorrelations(c analysis.Correlations, at time.Time) []ModelMetric {
	cols := make([]string, 0, len(c.Coefficients))
	for col := range c.Coefficients {
		cols = append(cols, col.String())
	}
	sort.Strings(cols)

	out := make([]ModelMetric, 0, len(cols))
	for _, name := range cols {
		col := dataset.Column(name)
		n := c.Samples[col]
		out = append(out, ModelMetric{
			ModelName:      "pearson",
			MetricName:     "corr_" + name,
			MetricValue:    c.Coefficients[col],
			EvaluationDate: at,
			DatasetSize:    &n,
		})
	}
	return out
}

// MetricsFromClustering records the iteration count and every cluster size.
func MetricsFromClustering(c analysis.Clustering, at time.Time) []ModelMetric {
	n := c.Labeled
	out := []ModelMetric{{
		ModelName:      "kmeans",
		MetricName:     "iterations",
		MetricValue:    float64(c.Iterations),
		EvaluationDate: at,
		DatasetSize:    &n,
	}}
	for i, size := range c.Sizes {
		out = append(out, ModelMetric{
			ModelName:      "kmeans",
			MetricName:     fmt.Sprintf("cluster_%d_size", i),
			MetricValue:    float64(size),
			EvaluationDate: at,
			DatasetSize:    &n,
		})
	}
	return out
}

// MetricsFromForecast records the residual variance and mean forecast of a fitted model.
func MetricsFromForecast(f analysis.Forecast, at time.Time) []ModelMetric {
	if f.Fit == nil {
		return nil
	}
	n := f.Fit.NObs
	return []ModelMetric{
		{ModelName: f.Model, MetricName: "sigma2", MetricValue: f.Fit.Sigma2, EvaluationDate: at, DatasetSize: &n},
		{ModelName: f.Model, MetricName: "forecast_mean", MetricValue: f.Mean(), EvaluationDate: at, DatasetSize: &n},
	}
}
