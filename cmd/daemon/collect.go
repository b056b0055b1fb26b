package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/tastygex/internal/app"
	"github.com/dgnsrekt/tastygex/internal/collect"
	"github.com/dgnsrekt/tastygex/internal/config"
	"github.com/dgnsrekt/tastygex/internal/notify"
)

// Runner collects one ticker.
type Runner interface {
	Run(ctx context.Context, ticker string) (*collect.Result, error)
}

// Compile-time interface verification
var _ Runner = (*collect.Job)(nil)

// cycleResult counts the outcome of one pass over the tickers.
type cycleResult struct {
	Succeeded int
	Failed    int
}

// runCycle logs in once and collects every ticker.
func runCycle(ctx context.Context, cfg *config.Config, tickers []string, notifier notify.Notifier, logger *zap.Logger) cycleResult {
	opts, err := app.CollectOptions(cfg)
	if err != nil {
		logger.Error("invalid collect options", zap.Error(err))
		return cycleResult{Failed: len(tickers)}
	}

	start := time.Now()
	job, err := app.NewJob(ctx, cfg, opts, logger)
	if err != nil {
		logger.Error("failed to start collection", zap.Error(err))
		for _, t := range tickers {
			if nerr := notifier.SendFailure(ctx, t, time.Since(start), err); nerr != nil {
				logger.Warn("failed to send notification", zap.Error(nerr))
			}
		}
		return cycleResult{Failed: len(tickers)}
	}

	return collectTickers(ctx, job, tickers, notifier, logger)
}

// collectTickers runs job for each ticker in order, notifying per outcome.
func collectTickers(ctx context.Context, job Runner, tickers []string, notifier notify.Notifier, logger *zap.Logger) cycleResult {
	var res cycleResult
	for _, ticker := range tickers {
		if ctx.Err() != nil {
			break
		}

		start := time.Now()
		result, err := job.Run(ctx, ticker)
		if err != nil {
			res.Failed++
			logger.Error("collection failed", zap.String("ticker", ticker), zap.Error(err))
			if nerr := notifier.SendFailure(ctx, ticker, time.Since(start), err); nerr != nil {
				logger.Warn("failed to send notification", zap.Error(nerr))
			}
			continue
		}

		res.Succeeded++
		logger.Info("collection succeeded",
			zap.String("ticker", ticker),
			zap.Int("rows", len(result.Rows)),
			zap.Duration("duration", result.Duration),
		)
		if nerr := notifier.SendSuccess(ctx, result); nerr != nil {
			logger.Warn("failed to send notification", zap.Error(nerr))
		}
	}
	return res
}
