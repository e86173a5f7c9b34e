package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solar-impact-insights/dataset"
	"solar-impact-insights/export"
	"solar-impact-insights/pipeline"
)

func exportCmd(e *env) *cobra.Command {
	var (
		src      sourceFlags
		fromDB   bool
		start    string
		end      string
		validate bool
	)

	cmd := &cobra.Command{
		Use:   "export PATH",
		Short: "Write a daily table to a .csv, .json or .parquet file (optionally .gz)",
		Long: `Export reads the table from PostgreSQL with --from-db, otherwise it merges the sources
without running the analyses. The format is taken from the file extension.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]
			if _, _, err := export.FormatFromPath(path); err != nil {
				return err
			}
			filter, err := dateRange(start, end)
			if err != nil {
				return err
			}

			var table *dataset.Table
			if fromDB {
				repo, closeRepo, err := e.openRepo(ctx)
				if err != nil {
					return fmt.Errorf("database: %w", err)
				}
				defer closeRepo()
				if table, err = repo.LoadTable(ctx, filter); err != nil {
					return err
				}
			} else {
				srcs, err := src.sources(e)
				if err != nil {
					return err
				}
				var outcomes []pipeline.SourceOutcome
				table, outcomes, err = pipeline.NewRunner(srcs, pipeline.Dependencies{}, e.log).Collect(ctx)
				if err != nil {
					return err
				}
				for _, o := range outcomes {
					e.log.Debug("Source read", zap.String("source", o.Name), zap.String("status", o.Status), zap.Int("points", o.Points))
				}
				if validate {
					table, _ = pipeline.Validate(table)
				}
				table = filter.Apply(table)
			}

			if err := export.WriteFile(path, table); err != nil {
				return err
			}
			e.log.Info("💾 Table exported", zap.String("path", path), zap.Int("rows", table.Len()))
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows to %s\n", table.Len(), path)
			return nil
		},
	}

	src.register(cmd, e.cfg.Sources.UseMock)
	cmd.Flags().BoolVar(&fromDB, "from-db", false, "Read the stored events instead of the sources")
	cmd.Flags().StringVar(&start, "start", "", "First date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Last date to include (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&validate, "validate", true, "Clean the merged table before writing")
	return cmd
}
