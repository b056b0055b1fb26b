package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/tastygex/internal/app"
	"github.com/dgnsrekt/tastygex/internal/gex"
	"github.com/dgnsrekt/tastygex/internal/market"
	"github.com/dgnsrekt/tastygex/internal/output"
	"github.com/dgnsrekt/tastygex/internal/snapshot"
)

func runCmd() *cobra.Command {
	var (
		expirations int
		format      string
		dryRun      bool
		archive     bool
		legacy      bool
	)

	cmd := &cobra.Command{
		Use:   "run [TICKER...]",
		Short: "Collect one snapshot and write the GEX table",
		Long: `Stream the underlying and its nearest option expirations, compute
gamma exposure per contract, and write the results to the output directory.

Files written per ticker:
  {TICKER}-gex.csv (or .parquet)   one row per option contract
  {TICKER}-candle.json             the underlying's latest candle
  {TICKER}-snapshot.jsonl.zst      raw events (with --archive)

Examples:
  # Nearest expiration for the configured tickers
  gexcache run

  # Three expirations of SPY as parquet
  gexcache run SPY --expirations 3 --format parquet

  # Print the summary without touching the output directory
  gexcache run QQQ --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			tickers, err := app.Tickers(cfg, args)
			if err != nil {
				return err
			}

			opts, err := app.CollectOptions(cfg)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("expirations") {
				if expirations < 1 {
					return fmt.Errorf("--expirations must be >= 1, got %d", expirations)
				}
				opts.ExpirationCount = expirations
			}
			if cmd.Flags().Changed("format") {
				if opts.Format, err = output.ParseFormat(format); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("archive") {
				opts.Archive = archive
			}
			if cmd.Flags().Changed("legacy-overrun") {
				opts.LegacyOverrun = legacy
			}
			opts.DryRun = dryRun

			cal := market.NewCalendar(cfg.Daemon.Timezone)
			if today := cal.TodayDate(); !cal.IsMarketDay(today) {
				logger.Warn("Not a trading day, streams may never become ready", zap.String("date", today))
			}

			job, err := app.NewJob(ctx, cfg, opts, logger)
			if err != nil {
				return err
			}

			var failed int
			for _, ticker := range tickers {
				start := time.Now()
				result, err := job.Run(ctx, ticker)
				if err != nil {
					failed++
					logRunError(ticker, time.Since(start), err)
					if ctx.Err() != nil {
						return ctx.Err()
					}
					continue
				}

				gex.RenderSummary(os.Stdout, result.Ticker, result.Spot, result.Summaries)
				for _, f := range result.Files {
					fmt.Printf("Wrote: %s\n", f)
				}
				for _, k := range result.Uploaded {
					fmt.Printf("Uploaded: %s\n", k)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d tickers failed", failed, len(tickers))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&expirations, "expirations", "n", 1, "number of nearest expirations to collect")
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "table format (csv, parquet)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute and print without writing files")
	cmd.Flags().BoolVar(&archive, "archive", false, "also write the raw event archive")
	cmd.Flags().BoolVar(&legacy, "legacy-overrun", false, "collect one expiration more than requested")

	return cmd
}

func logRunError(ticker string, elapsed time.Duration, err error) {
	fields := []zap.Field{zap.String("ticker", ticker), zap.Duration("elapsed", elapsed), zap.Error(err)}

	var timeout *snapshot.TimeoutError
	if errors.As(err, &timeout) {
		fields = append(fields,
			zap.String("bundle", timeout.Bundle),
			zap.Int("need", timeout.Need),
			zap.Any("counts", timeout.Counts),
		)
	}
	logger.Error("Run failed", fields...)
}
