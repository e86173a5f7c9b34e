package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"solar-impact-insights/dataset"
)

// DB wraps the raw database/sql pool used for COPY bulk loads.
type DB struct {
	conn *sql.DB
	log  *zap.Logger
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// NewConnection opens and verifies a lib/pq pool.
func NewConnection(cfg Config, log *zap.Logger) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName,
	)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Bulk loads are few and long; keep the pool small.
	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)
	conn.SetConnMaxIdleTime(2 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := WrapConnection(conn, log)
	db.log.Info("✅ Database connection established")
	return db, nil
}

// WrapConnection adopts an open pool.
func WrapConnection(conn *sql.DB, log *zap.Logger) *DB {
	if log == nil {
		log = zap.NewNop()
	}
	return &DB{conn: conn, log: log}
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		db.log.Info("📡 Closing database connection...")
		return db.conn.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// GetConn returns the underlying sql.DB connection
func (db *DB) GetConn() *sql.DB {
	return db.conn
}

var copyEventColumns = []string{
	"id", "date", "sep_intensity", "temperature", "ice_extent", "ozone_level",
	"kp_index", "cluster_id", "created_at", "updated_at",
}

// CopyEvents bulk-loads t into sep_events with COPY inside one transaction.
// COPY does not upsert: the target dates must not exist yet.
func (db *DB) CopyEvents(ctx context.Context, t *dataset.Table) (int64, error) {
	if t.IsEmpty() {
		return 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, WrapDBError("CopyEvents", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("sep_events", copyEventColumns...))
	if err != nil {
		return 0, WrapDBError("CopyEvents", err)
	}

	now := time.Now().UTC()
	for _, rec := range t.Records {
		e := EventFromRecord(rec)
		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(),
			e.Date,
			e.SEPIntensity,
			nullFloat(e.Temperature),
			nullFloat(e.IceExtent),
			nullFloat(e.OzoneLevel),
			nullFloat(e.KpIndex),
			nullInt(e.ClusterID),
			now,
			now,
		); err != nil {
			stmt.Close()
			return 0, WrapDBError("CopyEvents", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, WrapDBError("CopyEvents", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, WrapDBError("CopyEvents", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, WrapDBError("CopyEvents", err)
	}

	db.log.Info("📦 Events copied", zap.Int("rows", t.Len()))
	return int64(t.Len()), nil
}

func nullFloat(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func nullInt(p *int) interface{} {
	if p == nil {
		return nil
	}
	return int64(*p)
}
