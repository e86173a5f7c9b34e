package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solar-impact-insights/dataset"
	"solar-impact-insights/export"
	"solar-impact-insights/pipeline"
)

// Load targets.
const (
	targetEvents     = "events"
	targetCopy       = "copy"
	targetClickHouse = "clickhouse"
)

func loadCmd(e *env) *cobra.Command {
	var (
		target   string
		validate bool
	)

	cmd := &cobra.Command{
		Use:   "load PATH",
		Short: "Load an exported table into PostgreSQL or ClickHouse",
		Long: `Load reads a .csv, .json or .parquet file (optionally .gz) and writes it to a target:

  events      upsert into sep_events keyed on date
  copy        bulk COPY into sep_events; fails on dates that already exist
  clickhouse  insert into the warehouse table`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			table, err := export.ReadFile(args[0])
			if err != nil {
				return err
			}
			if validate {
				var report pipeline.ValidationReport
				table, report = pipeline.Validate(table)
				e.log.Info("🧹 Table validated",
					zap.Int("input_rows", report.InputRows),
					zap.Int("output_rows", report.OutputRows),
				)
			}

			n, err := e.writeTable(ctx, target, table)
			if err != nil {
				return err
			}
			e.log.Info("✅ Table loaded", zap.String("target", target), zap.Int64("rows", n))
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d rows into %s\n", n, target)
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", targetEvents, "Destination (events|copy|clickhouse)")
	cmd.Flags().BoolVar(&validate, "validate", false, "Clean the table before loading")
	return cmd
}

func (e *env) writeTable(ctx context.Context, target string, table *dataset.Table) (int64, error) {
	switch target {
	case targetEvents:
		repo, closeRepo, err := e.openRepo(ctx)
		if err != nil {
			return 0, fmt.Errorf("database: %w", err)
		}
		defer closeRepo()
		return repo.SaveEvents(ctx, table)

	case targetCopy:
		conn, err := e.openCopier(ctx)
		if err != nil {
			return 0, fmt.Errorf("database: %w", err)
		}
		defer conn.Close()
		return conn.CopyEvents(ctx, table)

	case targetClickHouse:
		wh, err := e.openWarehouse(ctx)
		if err != nil {
			return 0, fmt.Errorf("warehouse: %w", err)
		}
		defer wh.Close()
		n, err := wh.Load(ctx, table)
		return int64(n), err

	default:
		return 0, fmt.Errorf("unknown target %q (want %s, %s or %s)", target, targetEvents, targetCopy, targetClickHouse)
	}
}
