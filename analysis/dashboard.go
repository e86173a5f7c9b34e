package analysis

import (
	"time"

	"solar-impact-insights/dataset"
	"solar-impact-insights/helpers"
)

// DashboardWindowDays is the look-back window of the dashboard summary.
const DashboardWindowDays = 30

// Dashboard is the headline view of the most recent window.
type Dashboard struct {
	From             string                        `json:"from"`
	To               string                        `json:"to"`
	TotalEvents      int                           `json:"total_events"`
	AverageIntensity float64                       `json:"average_intensity"`
	MaxIntensity     float64                       `json:"max_intensity"`
	HighIntensity    int                           `json:"high_intensity_events"`
	TrendPercent     float64                       `json:"trend_percent"`
	Distribution     dataset.IntensityDistribution `json:"intensity_distribution"`
	Averages         map[dataset.Column]float64    `json:"averages"`
}

// BuildDashboard summarizes the DashboardWindowDays ending at now. TrendPercent compares the
// mean intensity of the last 7 days against the 7 days before them.
func BuildDashboard(t *dataset.Table, now time.Time) Dashboard {
	to := dataset.Day(now)
	from := to.AddDate(0, 0, -DashboardWindowDays)
	window := dataset.Filter{StartDate: &from, EndDate: &to}.Apply(t)

	d := Dashboard{
		From:         from.Format(dataset.DateLayout),
		To:           to.Format(dataset.DateLayout),
		TotalEvents:  window.Len(),
		Distribution: dataset.Distribution(window),
		Averages:     make(map[dataset.Column]float64),
	}
	if window.IsEmpty() {
		return d
	}

	sep := window.Values(dataset.SEPIntensity)
	d.AverageIntensity = helpers.Round(helpers.Mean(sep), 2)
	_, peak := helpers.MinMax(sep)
	d.MaxIntensity = peak
	for _, v := range sep {
		if v > dataset.HighIntensityThreshold {
			d.HighIntensity++
		}
	}
	for _, c := range window.Columns {
		if values := window.Values(c); len(values) > 0 {
			d.Averages[c] = helpers.Round(helpers.Mean(values), 2)
		}
	}

	weekAgo := to.AddDate(0, 0, -7)
	twoWeeksAgo := to.AddDate(0, 0, -14)
	var recent, previous []float64
	for _, r := range window.Records {
		switch {
		case r.Date.After(weekAgo):
			recent = append(recent, r.SEPIntensity)
		case r.Date.After(twoWeeksAgo):
			previous = append(previous, r.SEPIntensity)
		}
	}
	if prev := helpers.Mean(previous); len(recent) > 0 && prev != 0 {
		d.TrendPercent = helpers.Round((helpers.Mean(recent)-prev)/prev*100, 2)
	}
	return d
}
