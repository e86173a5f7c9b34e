// Package alerting turns forecasts and merged records into alerts.
package alerting

import (
	"fmt"
	"time"

	"solar-impact-insights/analysis"
	"solar-impact-insights/dataset"
)

// Alert types.
const (
	TypeHighTemperatureForecast = "HIGH_TEMPERATURE_FORECAST"
	TypeHighSEPIntensity        = "HIGH_SEP_INTENSITY"
	TypeGeomagneticStorm        = "GEOMAGNETIC_STORM"
)

// Severities.
const (
	SeverityWarning = "WARNING"
	SeverityMedium  = "MEDIUM"
	SeverityHigh    = "HIGH"
)

// Alert is a threshold crossing. It is independent of the storage model.
type Alert struct {
	Type           string    `json:"alert_type"`
	Severity       string    `json:"severity"`
	Message        string    `json:"message"`
	ThresholdValue float64   `json:"threshold_value"`
	ActualValue    float64   `json:"actual_value"`
	EventDate      time.Time `json:"event_date"`
	Active         bool      `json:"is_active"`
}

// ForecastRule fires when the mean of a forecast exceeds Threshold.
type ForecastRule struct {
	Type      string
	Severity  string
	Threshold float64
	Message   string
}

// DefaultForecastRule is the high temperature rule.
func DefaultForecastRule() ForecastRule {
	return ForecastRule{
		Type:      TypeHighTemperatureForecast,
		Severity:  SeverityWarning,
		Threshold: 16,
		Message:   "High temperature forecast: risk to agriculture, polar logistics and communications",
	}
}

// EvaluateForecast returns one alert when the forecast mean is above the rule threshold
// and nil otherwise. An empty forecast never alerts.
func EvaluateForecast(f analysis.Forecast, rule ForecastRule) *Alert {
	if len(f.Steps) == 0 {
		return nil
	}
	mean := f.Mean()
	if mean <= rule.Threshold {
		return nil
	}
	return &Alert{
		Type:           rule.Type,
		Severity:       rule.Severity,
		Message:        rule.Message,
		ThresholdValue: rule.Threshold,
		ActualValue:    mean,
		EventDate:      f.Steps[0].Date,
		Active:         true,
	}
}

// RecordRule fires for every record whose Column value exceeds Threshold.
// Escalate raises the severity to SeverityHigh at or above that value (0 disables it), and the
// alert stays active only above ActiveAbove.
type RecordRule struct {
	Type        string
	Column      dataset.Column
	Threshold   float64
	Severity    string
	Escalate    float64
	ActiveAbove float64
}

// DefaultRecordRules returns the SEP intensity and geomagnetic storm rules.
func DefaultRecordRules() []RecordRule {
	return []RecordRule{
		{
			Type:        TypeHighSEPIntensity,
			Column:      dataset.SEPIntensity,
			Threshold:   7.0,
			Severity:    SeverityHigh,
			ActiveAbove: 8.0,
		},
		{
			Type:        TypeGeomagneticStorm,
			Column:      dataset.KpIndex,
			Threshold:   6.0,
			Severity:    SeverityMedium,
			Escalate:    8.0,
			ActiveAbove: 7.0,
		},
	}
}

// EvaluateRecords applies every rule to every record of t, in record order.
func EvaluateRecords(t *dataset.Table, rules []RecordRule) []Alert {
	var alerts []Alert
	if t == nil {
		return alerts
	}
	for _, r := range t.Records {
		for _, rule := range rules {
			v, ok := r.Value(rule.Column)
			if !ok || v <= rule.Threshold {
				continue
			}
			severity := rule.Severity
			if rule.Escalate > 0 && v >= rule.Escalate {
				severity = SeverityHigh
			}
			alerts = append(alerts, Alert{
				Type:           rule.Type,
				Severity:       severity,
				Message:        recordMessage(rule, v),
				ThresholdValue: rule.Threshold,
				ActualValue:    v,
				EventDate:      r.Date,
				Active:         v > rule.ActiveAbove,
			})
		}
	}
	return alerts
}

func recordMessage(rule RecordRule, v float64) string {
	switch rule.Type {
	case TypeHighSEPIntensity:
		return fmt.Sprintf("High SEP intensity detected: %.2f", v)
	case TypeGeomagneticStorm:
		return fmt.Sprintf("Geomagnetic storm: Kp=%.1f", v)
	}
	return fmt.Sprintf("%s above %.2f: %.2f", rule.Column, rule.Threshold, v)
}
