package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"solar-impact-insights/pipeline"
	"solar-impact-insights/sources"
)

func backfillKpCmd(e *env) *cobra.Command {
	var (
		file   string
		url    string
		start  string
		end    string
		target string
	)

	cmd := &cobra.Command{
		Use:   "backfill-kp",
		Short: "Fill missing kp_index values of stored events from the GFZ Potsdam archive",
		Long: `Backfill reads the GFZ Kp archive from --file or downloads it, averages the 3-hourly
values per day and fills every stored event in the date range that has no kp_index yet.
The result is upserted into sep_events or loaded into ClickHouse.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if target != targetEvents && target != targetClickHouse {
				return fmt.Errorf("unknown target %q (want %s or %s)", target, targetEvents, targetClickHouse)
			}
			filter, err := dateRange(start, end)
			if err != nil {
				return err
			}

			var fetcher *sources.Fetcher
			if file == "" {
				fetcher = sources.NewFetcher(sources.FetcherConfig{
					Name:              "gfz",
					Timeout:           e.cfg.Sources.Timeout,
					RequestsPerSecond: e.cfg.Sources.RequestsPerSecond,
				})
			}
			src := sources.NewGFZKpSource(fetcher, url, boundOrZero(filter.StartDate), boundOrZero(filter.EndDate))
			src.Path = file

			kp, err := src.Fetch(ctx)
			if err != nil {
				return err
			}
			e.log.Info("📥 GFZ Kp read", zap.Int("days", kp.Len()))

			repo, closeRepo, err := e.openRepo(ctx)
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			defer closeRepo()

			table, err := repo.LoadTable(ctx, filter)
			if err != nil {
				return err
			}
			filled, n, err := pipeline.Backfill(table, kp)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no kp_index values to fill")
				return nil
			}

			written, err := e.writeTable(ctx, target, filled)
			if err != nil {
				return err
			}
			e.log.Info("✅ Kp backfilled", zap.Int("filled", n), zap.Int64("written", written), zap.String("target", target))
			fmt.Fprintf(cmd.OutOrStdout(), "filled kp_index on %d of %d events\n", n, table.Len())
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Local copy of the GFZ Kp archive")
	cmd.Flags().StringVar(&url, "url", sources.DefaultGFZURL, "Archive URL used when --file is not given")
	cmd.Flags().StringVar(&start, "start", "", "First date to fill (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Last date to fill (YYYY-MM-DD)")
	cmd.Flags().StringVar(&target, "target", targetEvents, "Destination (events|clickhouse)")
	return cmd
}
