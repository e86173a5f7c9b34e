package database

import (
	"context"

	"solar-impact-insights/dataset"
)

// Dashboard-specific data structures

// MonthlyActivity aggregates the stored events of one calendar month
type MonthlyActivity struct {
	Month             string   `json:"month"`
	Events            int64    `json:"events"`
	AvgSEPIntensity   float64  `json:"avg_sep_intensity"`
	MaxSEPIntensity   float64  `json:"max_sep_intensity"`
	HighIntensityDays int64    `json:"high_intensity_days"`
	LowIntensityDays  int64    `json:"low_intensity_days"`
	AvgKpIndex        *float64 `json:"avg_kp_index"`
}

// Dashboard Query Methods

// GetMonthlyActivity returns the last months (all when months <= 0) in ascending order.
func (r *Repository) GetMonthlyActivity(ctx context.Context, months int) ([]MonthlyActivity, error) {
	month := "to_char(date, 'YYYY-MM')"
	if r.db.db.Dialector.Name() == "sqlite" {
		month = "substr(date, 1, 7)"
	}

	query := `
		SELECT
			` + month + ` AS month,
			COUNT(*) AS events,
			AVG(sep_intensity) AS avg_sep_intensity,
			MAX(sep_intensity) AS max_sep_intensity,
			COALESCE(SUM(CASE WHEN sep_intensity > ? THEN 1 ELSE 0 END), 0) AS high_intensity_days,
			COALESCE(SUM(CASE WHEN sep_intensity < ? THEN 1 ELSE 0 END), 0) AS low_intensity_days,
			AVG(kp_index) AS avg_kp_index
		FROM sep_events
		GROUP BY 1
		ORDER BY 1 DESC
	`
	args := []interface{}{dataset.HighIntensityThreshold, dataset.LowIntensityThreshold}
	if months > 0 {
		query += " LIMIT ?"
		args = append(args, months)
	}

	var rows []MonthlyActivity
	if err := r.db.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, WrapDBError("GetMonthlyActivity", err)
	}

	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}
