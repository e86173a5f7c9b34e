package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"solar-impact-insights/dataset"
)

// eventBatchSize bounds the rows per INSERT statement of a bulk save.
const eventBatchSize = 500

// Repository handles database operations for events, predictions, alerts and metrics.
type Repository struct {
	db  *Database
	log *zap.Logger
	now func() time.Time
}

// NewRepository creates a new repository
func NewRepository(db *Database, log *zap.Logger) *Repository {
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{db: db, log: log, now: time.Now}
}

// Ping verifies the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.db.DB()
	if err != nil {
		return WrapDBError("Ping", err)
	}
	return WrapDBError("Ping", sqlDB.PingContext(ctx))
}

// InitSchema performs auto-migration of every table.
func (r *Repository) InitSchema(ctx context.Context) error {
	r.log.Info("🔄 Starting database schema initialization...")
	if err := r.db.db.WithContext(ctx).AutoMigrate(
		&SEPEvent{},
		&Prediction{},
		&Alert{},
		&ModelMetric{},
	); err != nil {
		return WrapDBError("InitSchema", err)
	}
	r.log.Info("✅ Database schema initialization completed successfully")
	return nil
}

// ============================================================================
// SEP events
// ============================================================================

// SaveEvents upserts every record of t keyed on its date and returns the rows written.
// The whole save is one transaction.
func (r *Repository) SaveEvents(ctx context.Context, t *dataset.Table) (int64, error) {
	if t.IsEmpty() {
		return 0, nil
	}
	events := make([]SEPEvent, t.Len())
	for i, rec := range t.Records {
		events[i] = EventFromRecord(rec)
	}

	res := r.db.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"sep_intensity", "temperature", "ice_extent", "ozone_level", "kp_index", "cluster_id", "updated_at",
			}),
		}).
		CreateInBatches(&events, eventBatchSize)
	if res.Error != nil {
		return 0, WrapDBError("SaveEvents", res.Error)
	}
	return res.RowsAffected, nil
}

// GetEvents retrieves events matching filter, newest first. A non-positive limit returns every row.
func (r *Repository) GetEvents(ctx context.Context, filter dataset.Filter, limit int) ([]SEPEvent, error) {
	if filter.StartDate != nil && filter.EndDate != nil && filter.StartDate.After(*filter.EndDate) {
		return nil, NewValidationErrorWithValue("end_date", "must not be before start_date", filter.EndDate.Format(dataset.DateLayout))
	}

	var events []SEPEvent
	query := r.db.db.WithContext(ctx).Order("date DESC")

	if filter.StartDate != nil {
		query = query.Where("date >= ?", dataset.Day(*filter.StartDate))
	}
	if filter.EndDate != nil {
		query = query.Where("date <= ?", dataset.Day(*filter.EndDate))
	}
	if filter.MinIntensity != nil {
		query = query.Where("sep_intensity >= ?", *filter.MinIntensity)
	}
	if filter.MaxIntensity != nil {
		query = query.Where("sep_intensity <= ?", *filter.MaxIntensity)
	}
	if filter.HighIntensityOnly {
		query = query.Where("sep_intensity > ?", dataset.HighIntensityThreshold)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&events).Error; err != nil {
		return nil, WrapDBError("GetEvents", err)
	}
	return events, nil
}

// LoadTable rebuilds the daily table of every event matching filter.
func (r *Repository) LoadTable(ctx context.Context, filter dataset.Filter) (*dataset.Table, error) {
	events, err := r.GetEvents(ctx, filter, 0)
	if err != nil {
		return nil, err
	}
	return TableFromEvents(events), nil
}

// GetHighIntensityEvents retrieves events with SEP intensity above threshold, newest first.
func (r *Repository) GetHighIntensityEvents(ctx context.Context, threshold float64) ([]SEPEvent, error) {
	var events []SEPEvent
	err := r.db.db.WithContext(ctx).
		Where("sep_intensity > ?", threshold).
		Order("date DESC").
		Find(&events).Error
	if err != nil {
		return nil, WrapDBError("GetHighIntensityEvents", err)
	}
	return events, nil
}

// GetRecentEvents retrieves the events of the last days days, newest first.
func (r *Repository) GetRecentEvents(ctx context.Context, days int) ([]SEPEvent, error) {
	if days <= 0 {
		return nil, NewValidationErrorWithValue("days", "must be positive", days)
	}
	cutoff := dataset.Day(r.now().UTC()).AddDate(0, 0, -days)
	var events []SEPEvent
	err := r.db.db.WithContext(ctx).
		Where("date >= ?", cutoff).
		Order("date DESC").
		Find(&events).Error
	if err != nil {
		return nil, WrapDBError("GetRecentEvents", err)
	}
	return events, nil
}

// CountEvents returns the number of stored events.
func (r *Repository) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.db.WithContext(ctx).Model(&SEPEvent{}).Count(&n).Error; err != nil {
		return 0, WrapDBError("CountEvents", err)
	}
	return n, nil
}

// UpdateClusters writes the cluster label of every labeled record of t onto the event of the
// same date and returns the rows updated.
func (r *Repository) UpdateClusters(ctx context.Context, t *dataset.Table) (int64, error) {
	var updated int64
	err := r.db.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range t.Records {
			if rec.Cluster == nil {
				continue
			}
			res := tx.Model(&SEPEvent{}).
				Where("date = ?", dataset.Day(rec.Date)).
				Updates(map[string]interface{}{"cluster_id": *rec.Cluster, "updated_at": r.now()})
			if res.Error != nil {
				return res.Error
			}
			updated += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, WrapDBError("UpdateClusters", err)
	}
	return updated, nil
}

// ============================================================================
// Predictions
// ============================================================================

// SavePredictions saves prediction rows.
func (r *Repository) SavePredictions(ctx context.Context, predictions []Prediction) error {
	if len(predictions) == 0 {
		return nil
	}
	return WrapDBError("SavePredictions", r.db.db.WithContext(ctx).Create(&predictions).Error)
}

// GetPredictions retrieves predictions ordered by target date, optionally for one model version.
func (r *Repository) GetPredictions(ctx context.Context, modelVersion string, limit int) ([]Prediction, error) {
	var predictions []Prediction
	query := r.db.db.WithContext(ctx).Order("prediction_date DESC").Order("predicted_for_date ASC")

	if modelVersion != "" {
		query = query.Where("model_version = ?", modelVersion)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&predictions).Error; err != nil {
		return nil, WrapDBError("GetPredictions", err)
	}
	return predictions, nil
}

// ============================================================================
// Alerts
// ============================================================================

// SaveAlert saves one alert.
func (r *Repository) SaveAlert(ctx context.Context, alert *Alert) error {
	return WrapDBError("SaveAlert", r.db.db.WithContext(ctx).Create(alert).Error)
}

// SaveAlerts saves alert rows.
func (r *Repository) SaveAlerts(ctx context.Context, alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	return WrapDBError("SaveAlerts", r.db.db.WithContext(ctx).Create(&alerts).Error)
}

// GetActiveAlerts retrieves every unresolved alert, newest first.
func (r *Repository) GetActiveAlerts(ctx context.Context) ([]Alert, error) {
	var alerts []Alert
	err := r.db.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("event_date DESC").
		Find(&alerts).Error
	if err != nil {
		return nil, WrapDBError("GetActiveAlerts", err)
	}
	return alerts, nil
}

// GetAlerts retrieves alerts newest first.
func (r *Repository) GetAlerts(ctx context.Context, limit int) ([]Alert, error) {
	var alerts []Alert
	query := r.db.db.WithContext(ctx).Order("created_at DESC").Order("event_date DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&alerts).Error; err != nil {
		return nil, WrapDBError("GetAlerts", err)
	}
	return alerts, nil
}

// ResolveAlert deactivates an alert and stamps its resolution time. Resolving an already
// resolved alert keeps the first resolution time.
func (r *Repository) ResolveAlert(ctx context.Context, id uuid.UUID) (*Alert, error) {
	var alert Alert
	err := r.db.db.WithContext(ctx).First(&alert, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NewNotFoundErrorWithID("alert", id)
	}
	if err != nil {
		return nil, WrapDBError("ResolveAlert", err)
	}
	if !alert.IsActive && alert.ResolvedAt != nil {
		return &alert, nil
	}

	now := r.now()
	err = r.db.db.WithContext(ctx).Model(&alert).Updates(map[string]interface{}{
		"is_active":   false,
		"resolved_at": now,
	}).Error
	if err != nil {
		return nil, WrapDBError("ResolveAlert", err)
	}
	alert.IsActive = false
	alert.ResolvedAt = &now
	return &alert, nil
}

// ============================================================================
// Model metrics
// ============================================================================

// SaveModelMetric saves one metric.
func (r *Repository) SaveModelMetric(ctx context.Context, metric *ModelMetric) error {
	return WrapDBError("SaveModelMetric", r.db.db.WithContext(ctx).Create(metric).Error)
}

// SaveModelMetrics saves metric rows.
func (r *Repository) SaveModelMetrics(ctx context.Context, metrics []ModelMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	return WrapDBError("SaveModelMetrics", r.db.db.WithContext(ctx).Create(&metrics).Error)
}

// GetModelMetrics retrieves metrics newest first, optionally for one model.
func (r *Repository) GetModelMetrics(ctx context.Context, model string, limit int) ([]ModelMetric, error) {
	var metrics []ModelMetric
	query := r.db.db.WithContext(ctx).Order("evaluation_date DESC").Order("metric_name ASC")
	if model != "" {
		query = query.Where("model_name = ?", model)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&metrics).Error; err != nil {
		return nil, WrapDBError("GetModelMetrics", err)
	}
	return metrics, nil
}
