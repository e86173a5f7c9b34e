package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solar-impact-insights/alerting"
	"solar-impact-insights/app"
	"solar-impact-insights/cache"
	"solar-impact-insights/dataset"
	"solar-impact-insights/export"
	"solar-impact-insights/pipeline"
	"solar-impact-insights/sources"
)

// sourceFlags selects mock or live sources for a batch run.
type sourceFlags struct {
	mock  bool
	start string
	days  int
	seed  uint64
}

func (f *sourceFlags) register(cmd *cobra.Command, defaultMock bool) {
	gen := sources.DefaultMockGenerator()
	cmd.Flags().BoolVar(&f.mock, "mock", defaultMock, "Use generated data instead of the live feeds")
	cmd.Flags().StringVar(&f.start, "mock-start", gen.Start.Format(dataset.DateLayout), "First generated day")
	cmd.Flags().IntVar(&f.days, "mock-days", gen.Days, "Number of generated days")
	cmd.Flags().Uint64Var(&f.seed, "mock-seed", gen.Seed, "Generator seed")
}

func (f *sourceFlags) sources(e *env) ([]sources.Source, error) {
	if !f.mock {
		return app.LiveSources(e.cfg.Sources, cache.NewMemoryCache(), e.log)
	}
	start, err := dataset.ParseDate(f.start)
	if err != nil {
		return nil, fmt.Errorf("--mock-start: %w", err)
	}
	if f.days <= 0 {
		return nil, fmt.Errorf("--mock-days must be positive, got %d", f.days)
	}
	return sources.MockGenerator{Start: start, Days: f.days, Seed: f.seed}.Sources(), nil
}

func runCmd(e *env) *cobra.Command {
	var (
		src          sourceFlags
		analysisFile string
		validate     bool
		persist      bool
		notify       bool
		toWarehouse  bool
		recordAlerts bool
		out          string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and print the report as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if analysisFile != "" {
				e.cfg.AnalysisFile = analysisFile
			}
			opts, err := app.RunOptions(e.cfg)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("validate") {
				opts.Validate = validate
			}
			if recordAlerts {
				opts.RecordRules = alerting.DefaultRecordRules()
			}
			opts.Persist = persist || toWarehouse
			opts.Notify = notify

			srcs, err := src.sources(e)
			if err != nil {
				return err
			}

			deps := pipeline.Dependencies{}
			if persist {
				repo, closeRepo, err := e.openRepo(ctx)
				if err != nil {
					return fmt.Errorf("database: %w", err)
				}
				defer closeRepo()
				deps.Store = repo
			}
			if toWarehouse {
				wh, err := e.openWarehouse(ctx)
				if err != nil {
					return fmt.Errorf("warehouse: %w", err)
				}
				defer wh.Close()
				deps.Warehouse = wh
			}
			if notify {
				if n := app.NewWebhookNotifier(e.cfg.Webhooks, e.log); n.Enabled() {
					deps.Notifier = n
				}
			}

			report, err := runPipeline(ctx, srcs, deps, opts, e.log)
			if err != nil {
				return err
			}
			if out != "" {
				if err := export.WriteFile(out, report.Table); err != nil {
					return err
				}
				e.log.Info("💾 Table written", zap.String("path", out), zap.Int("rows", report.Table.Len()))
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if report.MergeError != "" {
				return fmt.Errorf("merge failed: %s", report.MergeError)
			}
			return nil
		},
	}

	src.register(cmd, e.cfg.Sources.UseMock)
	cmd.Flags().StringVar(&analysisFile, "analysis-file", "", "YAML file with analysis settings")
	cmd.Flags().BoolVar(&validate, "validate", true, "Clean the merged table before analysis")
	cmd.Flags().BoolVar(&persist, "persist", false, "Save events, predictions, alerts and model metrics to PostgreSQL")
	cmd.Flags().BoolVar(&notify, "notify", false, "Send raised alerts to the configured webhooks")
	cmd.Flags().BoolVar(&recordAlerts, "record-alerts", false, "Also raise per-record SEP and Kp alerts")
	cmd.Flags().BoolVar(&toWarehouse, "warehouse", false, "Load the final table into ClickHouse")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Also write the final table to a .csv, .json or .parquet file (optionally .gz)")
	return cmd
}

func runPipeline(ctx context.Context, srcs []sources.Source, deps pipeline.Dependencies, opts pipeline.RunOptions, log *zap.Logger) (*pipeline.RunReport, error) {
	report, err := pipeline.NewRunner(srcs, deps, log).Run(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("run interrupted: %w", err)
	}
	for _, w := range report.Writes {
		if w.Error != "" {
			log.Warn("⚠️ Write failed", zap.String("target", w.Target), zap.String("error", w.Error))
		}
	}
	return report, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
