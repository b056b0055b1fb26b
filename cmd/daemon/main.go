package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/tastygex/internal/app"
	"github.com/dgnsrekt/tastygex/internal/config"
	"github.com/dgnsrekt/tastygex/internal/notify"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}
	applyDaemonEnv(&cfg.Daemon)

	logger, err := app.NewLogger("daemon", false, &cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	if err := cfg.RequireCredentials(); err != nil {
		logger.Error("missing credentials", zap.Error(err))
		return 1
	}

	tickers, err := app.Tickers(cfg, nil)
	if err != nil {
		logger.Error("invalid tickers", zap.Error(err))
		return 1
	}

	notifyCfg := app.NotifyConfig(cfg)
	if err := notifyCfg.Validate(); err != nil {
		logger.Error("invalid notify config", zap.Error(err))
		return 1
	}
	notifier := notify.New(notifyCfg, logger)

	interval := time.Duration(cfg.Daemon.IntervalMin) * time.Minute
	logger.Info("daemon configuration loaded",
		zap.Strings("tickers", tickers),
		zap.Duration("interval", interval),
		zap.String("timezone", cfg.Daemon.Timezone),
		zap.String("stateFile", cfg.Daemon.StateFile),
		zap.Bool("runOnStartup", cfg.Daemon.RunOnStartup),
		zap.String("outputDir", cfg.Output.Directory),
		zap.Bool("notify", notifyCfg.Enabled),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	scheduler := NewScheduler(interval, cfg.Daemon.Timezone)
	tracker := NewRunTracker(cfg.Daemon.StateFile)

	logger.Info("daemon started")

	if cfg.Daemon.RunOnStartup && scheduler.InSession() {
		logger.Info("market open on startup, collecting now")
		runAndTrack(ctx, cfg, tickers, notifier, tracker, logger)
	}

	// Main loop - check every minute
	tick := time.NewTicker(1 * time.Minute)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("received shutdown signal, stopping")
			return 0

		case <-tick.C:
			if !scheduler.Due(tracker.LastRun()) {
				continue
			}
			logger.Info("collection due",
				zap.String("date", scheduler.TodayDate()),
				zap.String("time", time.Now().In(scheduler.Location()).Format("15:04:05")),
			)
			runAndTrack(ctx, cfg, tickers, notifier, tracker, logger)
		}
	}
}

// runAndTrack runs one cycle and records it when any ticker succeeded.
func runAndTrack(ctx context.Context, cfg *config.Config, tickers []string, notifier notify.Notifier, tracker *RunTracker, logger *zap.Logger) {
	start := time.Now()
	res := runCycle(ctx, cfg, tickers, notifier, logger)

	logger.Info("cycle complete",
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", time.Since(start)),
	)

	if res.Succeeded == 0 {
		return
	}
	if err := tracker.SetLastRun(start); err != nil {
		logger.Error("failed to update tracker", zap.Error(err))
	}
}
