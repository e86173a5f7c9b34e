package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SEPEvent is one persisted day of the merged table.
//
// Key Fields:
//   - Date: calendar day of the observation (unique)
//   - SEPIntensity: primary signal, always present
//   - Temperature/IceExtent/OzoneLevel/KpIndex: companion signals, nullable
//   - ClusterID: k-means label, nullable until clustering has run
type SEPEvent struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Date         time.Time `gorm:"uniqueIndex;not null" json:"date"`
	SEPIntensity float64   `gorm:"not null;index" json:"sep_intensity"`
	Temperature  *float64  `json:"temperature"`
	IceExtent    *float64  `json:"ice_extent"`
	OzoneLevel   *float64  `json:"ozone_level"`
	KpIndex      *float64  `json:"kp_index"`
	ClusterID    *int      `json:"cluster_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for SEPEvent
func (SEPEvent) TableName() string {
	return "sep_events"
}

// BeforeCreate assigns a random identifier when none is set.
func (e *SEPEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Prediction is one forecast step produced by a model run.
type Prediction struct {
	ID                 uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	PredictionDate     time.Time         `gorm:"not null;index" json:"prediction_date"`
	PredictedForDate   time.Time         `gorm:"not null" json:"predicted_for_date"`
	PredictedIntensity float64           `gorm:"not null" json:"predicted_intensity"`
	ConfidenceScore    *float64          `json:"confidence_score,omitempty"`
	ModelVersion       string            `gorm:"size:50;index" json:"model_version"`
	Features           datatypes.JSONMap `gorm:"type:jsonb" json:"features,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}

// TableName specifies the table name for Prediction
func (Prediction) TableName() string {
	return "predictions"
}

func (p *Prediction) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Alert is a persisted alert. Active alerts stay active until resolved.
type Alert struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AlertType      string     `gorm:"size:50;not null;index" json:"alert_type"`
	Severity       string     `gorm:"size:20;not null" json:"severity"`
	Message        string     `gorm:"type:text;not null" json:"message"`
	ThresholdValue *float64   `json:"threshold_value,omitempty"`
	ActualValue    *float64   `json:"actual_value,omitempty"`
	EventDate      time.Time  `gorm:"not null" json:"event_date"`
	IsActive       bool       `gorm:"not null;index" json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// TableName specifies the table name for Alert
func (Alert) TableName() string {
	return "alerts"
}

func (a *Alert) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// ModelMetric records one evaluation figure of a model, e.g. a correlation coefficient
// or the forecast residual variance.
type ModelMetric struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ModelName      string    `gorm:"size:100;not null;index" json:"model_name"`
	MetricName     string    `gorm:"size:50;not null" json:"metric_name"`
	MetricValue    float64   `gorm:"not null" json:"metric_value"`
	EvaluationDate time.Time `gorm:"not null" json:"evaluation_date"`
	DatasetSize    *int      `json:"dataset_size,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName specifies the table name for ModelMetric
func (ModelMetric) TableName() string {
	return "model_metrics"
}

func (m *ModelMetric) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
