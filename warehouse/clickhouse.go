// Package warehouse mirrors the validated daily table into ClickHouse for long-range queries.
package warehouse

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/ClickHouse/ch-go/proto"
	"go.uber.org/zap"

	"solar-impact-insights/dataset"
)

// BatchSize caps the rows sent in one INSERT block.
const BatchSize = 10000

// noCluster marks an unlabeled row in the cluster column.
const noCluster int8 = -1

// Config selects the ClickHouse server and target table.
type Config struct {
	Address  string
	Database string
	Table    string
	User     string
	Password string
}

// FQN returns database.table.
func (c Config) FQN() string {
	return fmt.Sprintf("%s.%s", c.Database, c.Table)
}

type executor interface {
	Do(ctx context.Context, q ch.Query) error
	Close() error
}

// Warehouse writes daily rows over the native protocol.
type Warehouse struct {
	conn executor
	cfg  Config
	log  *zap.Logger
	now  func() time.Time
}

// Dial opens a native connection with LZ4 block compression.
func Dial(ctx context.Context, cfg Config, log *zap.Logger) (*Warehouse, error) {
	conn, err := ch.Dial(ctx, ch.Options{
		Address:     cfg.Address,
		Database:    cfg.Database,
		User:        cfg.User,
		Password:    cfg.Password,
		Compression: ch.CompressionLZ4,
	})
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse %s: %w", cfg.Address, err)
	}
	log.Info("🏛️ Connected to ClickHouse", zap.String("address", cfg.Address), zap.String("table", cfg.FQN()))
	return newWarehouse(conn, cfg, log), nil
}

func newWarehouse(conn executor, cfg Config, log *zap.Logger) *Warehouse {
	if log == nil {
		log = zap.NewNop()
	}
	return &Warehouse{conn: conn, cfg: cfg, log: log, now: time.Now}
}

// Close releases the connection.
func (w *Warehouse) Close() error {
	return w.conn.Close()
}

// EnsureSchema creates the database and the daily table when missing.
func (w *Warehouse) EnsureSchema(ctx context.Context) error {
	queries := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", w.cfg.Database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    date Date32,
    sep_intensity Float64,
    temperature Float64,
    ice_extent Float64,
    ozone_level Float64,
    kp_index Float64,
    cluster Int8,
    loaded_at DateTime
) ENGINE = ReplacingMergeTree(loaded_at)
ORDER BY date`, w.cfg.FQN()),
	}
	for _, q := range queries {
		if err := w.conn.Do(ctx, ch.Query{Body: q}); err != nil {
			return fmt.Errorf("ensure clickhouse schema: %w", err)
		}
	}
	return nil
}

// Load inserts every record of t in blocks of BatchSize and returns the row count.
// Missing companions are stored as NaN, an unlabeled cluster as -1.
func (w *Warehouse) Load(ctx context.Context, t *dataset.Table) (int, error) {
	batch := NewBatch()
	loadedAt := w.now().UTC()
	query := insertQuery(w.cfg.FQN())
	total := 0

	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		if err := w.conn.Do(ctx, ch.Query{Body: query, Input: batch.Input()}); err != nil {
			return fmt.Errorf("insert into %s: %w", w.cfg.FQN(), err)
		}
		total += batch.Len()
		batch.Reset()
		return nil
	}

	for _, r := range t.Records {
		batch.Add(r, loadedAt)
		if batch.Len() >= BatchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}

	w.log.Info("🏛️ Warehouse load complete", zap.Int("rows", total), zap.String("table", w.cfg.FQN()))
	return total, nil
}

func insertQuery(table string) string {
	return fmt.Sprintf("INSERT INTO %s (date, sep_intensity, temperature, ice_extent, ozone_level, kp_index, cluster, loaded_at) VALUES", table)
}

// Batch holds one columnar insert block.
type Batch struct {
	Date         *proto.ColDate32
	SEPIntensity *proto.ColFloat64
	Temperature  *proto.ColFloat64
	IceExtent    *proto.ColFloat64
	OzoneLevel   *proto.ColFloat64
	KpIndex      *proto.ColFloat64
	Cluster      *proto.ColInt8
	LoadedAt     *proto.ColDateTime
}

func NewBatch() *Batch {
	return &Batch{
		Date:         new(proto.ColDate32),
		SEPIntensity: new(proto.ColFloat64),
		Temperature:  new(proto.ColFloat64),
		IceExtent:    new(proto.ColFloat64),
		OzoneLevel:   new(proto.ColFloat64),
		KpIndex:      new(proto.ColFloat64),
		Cluster:      new(proto.ColInt8),
		LoadedAt:     new(proto.ColDateTime),
	}
}

func (b *Batch) Reset() {
	b.Date.Reset()
	b.SEPIntensity.Reset()
	b.Temperature.Reset()
	b.IceExtent.Reset()
	b.OzoneLevel.Reset()
	b.KpIndex.Reset()
	b.Cluster.Reset()
	b.LoadedAt.Reset()
}

func (b *Batch) Len() int {
	return b.Date.Rows()
}

func (b *Batch) Input() proto.Input {
	return proto.Input{
		{Name: "date", Data: b.Date},
		{Name: "sep_intensity", Data: b.SEPIntensity},
		{Name: "temperature", Data: b.Temperature},
		{Name: "ice_extent", Data: b.IceExtent},
		{Name: "ozone_level", Data: b.OzoneLevel},
		{Name: "kp_index", Data: b.KpIndex},
		{Name: "cluster", Data: b.Cluster},
		{Name: "loaded_at", Data: b.LoadedAt},
	}
}

// Add appends one record.
func (b *Batch) Add(r dataset.Record, loadedAt time.Time) {
	b.Date.Append(r.Date)
	b.SEPIntensity.Append(r.SEPIntensity)
	b.Temperature.Append(orNaN(r.Temperature))
	b.IceExtent.Append(orNaN(r.IceExtent))
	b.OzoneLevel.Append(orNaN(r.OzoneLevel))
	b.KpIndex.Append(orNaN(r.KpIndex))
	cluster := noCluster
	if r.Cluster != nil {
		cluster = int8(*r.Cluster)
	}
	b.Cluster.Append(cluster)
	b.LoadedAt.Append(loadedAt)
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
