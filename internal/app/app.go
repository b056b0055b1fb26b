// Package app turns a loaded configuration into the wired collection
// pipeline shared by the CLI and the daemon.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/tastygex/internal/collect"
	"github.com/dgnsrekt/tastygex/internal/config"
	"github.com/dgnsrekt/tastygex/internal/dxlink"
	"github.com/dgnsrekt/tastygex/internal/notify"
	"github.com/dgnsrekt/tastygex/internal/output"
	"github.com/dgnsrekt/tastygex/internal/snapshot"
	"github.com/dgnsrekt/tastygex/internal/staging"
	"github.com/dgnsrekt/tastygex/internal/tastytrade"
)

// Login opens an authenticated brokerage session.
func Login(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*tastytrade.HTTPClient, error) {
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}

	client := tastytrade.NewClient(
		cfg.Tastytrade.BaseURL(),
		cfg.Tastytrade.RatePerSecond,
		time.Duration(cfg.Tastytrade.TimeoutSec)*time.Second,
		time.Duration(cfg.Tastytrade.RetryDelay)*time.Second,
		cfg.Tastytrade.RetryCount,
		logger,
	)

	logger.Info("Logging in",
		zap.String("base_url", cfg.Tastytrade.BaseURL()),
		zap.Bool("is_test", cfg.Tastytrade.IsTest),
	)
	if err := client.Login(ctx, cfg.Tastytrade.Username, cfg.Tastytrade.Password); err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	return client, nil
}

// StreamOptions maps the stream section onto the DXLink client.
func StreamOptions(cfg *config.Config) dxlink.Options {
	return dxlink.Options{
		Keepalive:        time.Duration(cfg.Stream.KeepaliveSec) * time.Second,
		HandshakeTimeout: time.Duration(cfg.Stream.HandshakeTimeoutSec) * time.Second,
		Aggregation:      time.Duration(cfg.Stream.AggregationMs) * time.Millisecond,
		CandleLookback:   time.Duration(cfg.Stream.CandleLookbackHours) * time.Hour,
	}
}

// SnapshotOptions maps the stream section onto readiness settings.
func SnapshotOptions(cfg *config.Config) snapshot.Options {
	opts := snapshot.DefaultOptions()
	opts.UnderlyingTimeout = cfg.Stream.UnderlyingTimeout()
	opts.OptionsTimeout = cfg.Stream.OptionsTimeout()
	opts.Threshold = cfg.Stream.OptionsThreshold
	return opts
}

// CollectOptions maps the collect and output sections onto a job.
func CollectOptions(cfg *config.Config) (collect.Options, error) {
	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return collect.Options{}, err
	}
	return collect.Options{
		ExpirationCount: cfg.Collect.ExpirationCount,
		LegacyOverrun:   cfg.Collect.LegacyOverrun,
		Workers:         cfg.Collect.Workers,
		Format:          format,
		Archive:         cfg.Output.Archive,
	}, nil
}

// S3Options maps the output.s3 section onto the uploader.
func S3Options(cfg *config.Config) output.S3Options {
	s := cfg.Output.S3
	return output.S3Options{
		Bucket:          s.Bucket,
		Prefix:          s.Prefix,
		Region:          s.Region,
		Endpoint:        s.Endpoint,
		PathStyle:       s.PathStyle,
		AccessKeyID:     s.AccessKeyID,
		SecretAccessKey: s.SecretAccessKey,
		Timeout:         time.Duration(cfg.Tastytrade.TimeoutSec) * time.Second,
	}
}

// NotifyConfig maps the notify section onto the ntfy client.
func NotifyConfig(cfg *config.Config) *notify.Config {
	n := cfg.Notify
	return &notify.Config{
		Enabled:  n.Enabled,
		Server:   n.Server,
		Topic:    n.Topic,
		Priority: n.Priority,
		Tags:     n.Tags,
		Token:    n.Token,
	}
}

// Tickers returns the override when given, the configured list otherwise,
// upper-cased and validated.
func Tickers(cfg *config.Config, override []string) ([]string, error) {
	src := cfg.Tickers
	if len(override) > 0 {
		src = override
	}
	if len(src) == 0 {
		src = config.DefaultTickers
	}

	out := make([]string, 0, len(src))
	var invalid []string
	for _, t := range src {
		t = strings.ToUpper(strings.TrimSpace(t))
		if !config.ValidTicker(t) {
			invalid = append(invalid, t)
			continue
		}
		out = append(out, t)
	}
	if len(invalid) > 0 {
		return nil, &config.ValidationErrors{InvalidTickers: invalid}
	}
	return out, nil
}

// NewJob logs in and wires a collection job from cfg.
func NewJob(ctx context.Context, cfg *config.Config, opts collect.Options, logger *zap.Logger) (*collect.Job, error) {
	client, err := Login(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	dialer := dxlink.NewDialer(client, StreamOptions(cfg), logger)
	aggregator := snapshot.NewAggregator(client, dialer, SnapshotOptions(cfg), logger)

	var uploader collect.Uploader
	if cfg.Output.S3.Enabled && !opts.DryRun {
		u, err := output.NewS3Uploader(ctx, S3Options(cfg), logger)
		if err != nil {
			return nil, fmt.Errorf("creating s3 uploader: %w", err)
		}
		uploader = u
	}

	stg := staging.NewManager(cfg.Output.Directory)
	return collect.NewJob(aggregator, client, stg, uploader, opts, logger), nil
}
