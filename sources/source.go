// Package sources reads the daily signal series from mock generation, public space-weather
// and climate feeds, and local files.
package sources

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"solar-impact-insights/dataset"
)

// Source yields one daily series for a single column.
type Source interface {
	Name() string
	Column() dataset.Column
	Fetch(ctx context.Context) (*dataset.Series, error)
}

// Read fetches src and classifies the outcome. A failing or empty source is reported as
// Error or Empty so the caller can substitute an empty series.
func Read(ctx context.Context, src Source, log *zap.Logger) dataset.Result[*dataset.Series] {
	if log == nil {
		log = zap.NewNop()
	}
	series, err := src.Fetch(ctx)
	if err != nil {
		log.Warn("⚠️  Source unavailable",
			zap.String("source", src.Name()),
			zap.String("column", src.Column().String()),
			zap.Error(err),
		)
		return dataset.Fail[*dataset.Series](fmt.Errorf("source %s: %w", src.Name(), err))
	}
	if series.IsEmpty() {
		log.Warn("⚠️  Source returned no data", zap.String("source", src.Name()))
		return dataset.Empty[*dataset.Series](fmt.Sprintf("source %s returned no data", src.Name()))
	}
	if series.Column != src.Column() {
		return dataset.Fail[*dataset.Series](fmt.Errorf("source %s: produced %s, declared %s", src.Name(), series.Column, src.Column()))
	}

	log.Info("📥 Source read",
		zap.String("source", src.Name()),
		zap.String("column", series.Column.String()),
		zap.Int("points", series.Len()),
	)
	return dataset.Ok(series)
}
