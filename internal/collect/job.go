// Package collect runs one end-to-end GEX collection for a ticker: stream
// the underlying and its nearest expirations, compute exposures, and
// persist the results.
package collect

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dgnsrekt/tastygex/internal/gex"
	"github.com/dgnsrekt/tastygex/internal/nullable"
	"github.com/dgnsrekt/tastygex/internal/output"
	"github.com/dgnsrekt/tastygex/internal/snapshot"
	"github.com/dgnsrekt/tastygex/internal/staging"
	"github.com/dgnsrekt/tastygex/internal/tastytrade"
)

// BundleSource builds live snapshot bundles.
type BundleSource interface {
	Underlying(ctx context.Context, ticker string) (*snapshot.UnderlyingBundle, error)
	OptionsFromChain(ctx context.Context, ticker string, expiration time.Time, contracts []tastytrade.Option) (*snapshot.OptionsBundle, error)
}

// ChainSource lists a ticker's option chain.
type ChainSource interface {
	OptionChain(ctx context.Context, symbol string) (tastytrade.Chain, error)
}

// Uploader copies committed files elsewhere.
type Uploader interface {
	Upload(ctx context.Context, ticker string, day time.Time, runID string, files []string) ([]string, error)
}

// Compile-time interface verification
var (
	_ BundleSource = (*snapshot.Aggregator)(nil)
	_ ChainSource  = (*tastytrade.HTTPClient)(nil)
	_ Uploader     = (*output.Uploader)(nil)
)

type Options struct {
	// ExpirationCount is how many expirations, nearest first, to collect.
	ExpirationCount int
	// LegacyOverrun collects one expiration more than ExpirationCount.
	LegacyOverrun bool
	Workers       int
	Format        output.Format
	Archive       bool
	// DryRun computes rows without writing or uploading anything.
	DryRun bool
}

// Result describes a finished run.
type Result struct {
	RunID       string
	Ticker      string
	Spot        nullable.Float64
	Expirations []time.Time
	Rows        []gex.Row
	Summaries   []gex.Summary
	Files       []string
	Uploaded    []string
	StartedAt   time.Time
	Duration    time.Duration
}

type Job struct {
	source   BundleSource
	chains   ChainSource
	staging  *staging.Manager
	uploader Uploader
	opts     Options
	logger   *zap.Logger
}

// NewJob wires a job. uploader may be nil.
func NewJob(source BundleSource, chains ChainSource, stg *staging.Manager, uploader Uploader, opts Options, logger *zap.Logger) *Job {
	if opts.Format == "" {
		opts.Format = output.FormatCSV
	}
	return &Job{
		source:   source,
		chains:   chains,
		staging:  stg,
		uploader: uploader,
		opts:     opts,
		logger:   logger,
	}
}

// Run collects ticker once. Every bundle opened during the run is closed
// before it returns.
func (j *Job) Run(ctx context.Context, ticker string) (*Result, error) {
	result := &Result{
		RunID:     uuid.NewString(),
		Ticker:    ticker,
		StartedAt: time.Now(),
	}
	log := j.logger.With(zap.String("ticker", ticker), zap.String("run_id", result.RunID))

	underlying, err := j.source.Underlying(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("collecting underlying: %w", err)
	}
	defer underlying.Close()

	candle, ok := underlying.Candle()
	if !ok {
		return nil, fmt.Errorf("%s: %w", ticker, gex.ErrNoSpot)
	}
	log.Info("Underlying candle", zap.Stringer("close", candle.Close))

	if !j.opts.DryRun {
		if err := j.staging.PrepareStaging(result.RunID); err != nil {
			return nil, fmt.Errorf("preparing staging: %w", err)
		}
		defer func() { _ = j.staging.CleanupStaging(result.RunID) }()

		if err := j.stage(result.RunID, output.CandleFileName(ticker), func(w io.Writer) error {
			return output.WriteCandleJSON(w, candle)
		}); err != nil {
			return nil, err
		}
	}

	chain, err := j.chains.OptionChain(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("fetching option chain: %w", err)
	}
	all := chain.Expirations()
	if len(all) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoExpirations)
	}

	if j.opts.LegacyOverrun {
		log.Warn("Legacy overrun enabled, collecting one extra expiration",
			zap.Int("expiration_count", j.opts.ExpirationCount),
		)
	}
	result.Expirations = SelectExpirations(all, j.opts.ExpirationCount, j.opts.LegacyOverrun)

	tasks := make([]Task, 0, len(result.Expirations))
	for _, exp := range result.Expirations {
		tasks = append(tasks, Task{Ticker: ticker, Expiration: exp, Contracts: chain[exp]})
	}

	bundles, err := j.fetchOptions(ctx, tasks)
	if err != nil {
		return nil, fmt.Errorf("collecting options: %w", err)
	}
	defer closeAll(bundles)

	spot, rows, err := gex.Compute(ticker, underlying, bundles)
	if err != nil {
		return nil, fmt.Errorf("computing gex: %w", err)
	}
	result.Spot = spot
	result.Rows = rows
	result.Summaries = gex.Summarize(rows)

	if j.opts.DryRun {
		result.Duration = time.Since(result.StartedAt)
		log.Info("Dry run complete", zap.Int("rows", len(rows)))
		return result, nil
	}

	if err := j.stage(result.RunID, output.GEXFileName(ticker, j.opts.Format), func(w io.Writer) error {
		return output.WriteRows(w, rows, j.opts.Format)
	}); err != nil {
		return nil, err
	}

	if j.opts.Archive {
		records := archiveRecords(underlying, bundles, result.Expirations)
		if err := j.stage(result.RunID, output.ArchiveFileName(ticker), func(w io.Writer) error {
			return output.WriteArchive(w, records)
		}); err != nil {
			return nil, err
		}
	}

	files, err := j.staging.CommitStaging(result.RunID)
	if err != nil {
		return nil, fmt.Errorf("committing files: %w", err)
	}
	result.Files = files

	if j.uploader != nil {
		keys, err := j.uploader.Upload(ctx, ticker, result.StartedAt.UTC(), result.RunID, files)
		if err != nil {
			return nil, fmt.Errorf("uploading files: %w", err)
		}
		result.Uploaded = keys
	}

	result.Duration = time.Since(result.StartedAt)
	log.Info("Run complete",
		zap.Stringer("spot", spot),
		zap.Int("expirations", len(result.Expirations)),
		zap.Int("rows", len(rows)),
		zap.Strings("files", files),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func (j *Job) stage(runID, name string, write func(io.Writer) error) error {
	size, err := j.staging.WriteToStaging(runID, name, write)
	if err != nil {
		return err
	}
	j.logger.Debug("Staged file", zap.String("file", name), zap.Int64("bytes", size))
	return nil
}

func archiveRecords(underlying *snapshot.UnderlyingBundle, bundles map[time.Time]*snapshot.OptionsBundle, expirations []time.Time) []output.ArchiveRecord {
	var records []output.ArchiveRecord
	for _, ev := range underlying.Events() {
		records = append(records, output.ArchiveRecord{Bundle: "underlying", Kind: ev.Type(), Event: ev})
	}
	for _, exp := range expirations {
		b, ok := bundles[exp]
		if !ok {
			continue
		}
		day := exp.Format(tastytrade.DateLayout)
		for _, ev := range b.Events() {
			records = append(records, output.ArchiveRecord{Bundle: "options", Expiration: day, Kind: ev.Type(), Event: ev})
		}
	}
	return records
}
