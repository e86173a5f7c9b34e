// Package database persists SEP events, predictions, alerts and model metrics.
//
// This package includes:
//   - Database connection management using GORM and PostgreSQL
//   - A lib/pq connection pool for COPY bulk loads
//   - Conversion between the daily table and its persisted rows
//
// Data Models:
//
//	All data models are defined in the models_pkg package so that packages which only need
//	the row types do not depend on the repository.
package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	models "solar-impact-insights/database/models_pkg"
	"solar-impact-insights/logger"
)

// Database holds the GORM connection shared by every repository call.
type Database struct {
	db *gorm.DB
}

// DB returns the underlying GORM database instance for direct access when needed.
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Connect establishes the PostgreSQL connection using GORM. Queries are logged through log.
func Connect(host string, port int, dbname, user, password string, log *zap.Logger) (*Database, error) {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		host, port, dbname, user, password)
	return Open(postgres.Open(dsn), log)
}

// Open connects through any GORM dialector.
func Open(dialector gorm.Dialector, log *zap.Logger) (*Database, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLogger(log, logger.DefaultGormLoggerConfig()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Database{db: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the connection is alive.
func (d *Database) Ping() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// ============================================================================
// Type Aliases
// ============================================================================

type SEPEvent = models.SEPEvent
type Prediction = models.Prediction
type Alert = models.Alert
type ModelMetric = models.ModelMetric
