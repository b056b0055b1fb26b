// Package snapshot aggregates live streaming events into "latest event per
// symbol" bundles and waits until they are complete enough to use.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/tastygex/internal/dxlink"
	"github.com/dgnsrekt/tastygex/internal/tastytrade"
)

// Instruments resolves reference data for a ticker.
type Instruments interface {
	Equity(ctx context.Context, symbol string) (*tastytrade.Equity, error)
	OptionChain(ctx context.Context, symbol string) (tastytrade.Chain, error)
}

// Options tune readiness.
type Options struct {
	UnderlyingTimeout time.Duration
	OptionsTimeout    time.Duration
	// Threshold is the fraction of contracts each options store must reach.
	Threshold      float64
	UnderlyingPoll time.Duration
	OptionsPoll    time.Duration
}

// DefaultOptions returns the standard readiness settings.
func DefaultOptions() Options {
	return Options{
		UnderlyingTimeout: 30 * time.Second,
		OptionsTimeout:    2 * time.Minute,
		Threshold:         0.5,
		UnderlyingPoll:    100 * time.Millisecond,
		OptionsPoll:       time.Second,
	}
}

// Aggregator builds bundles over fresh streaming connections.
type Aggregator struct {
	instruments Instruments
	dialer      dxlink.Dialer
	opts        Options
	logger      *zap.Logger
}

func NewAggregator(instruments Instruments, dialer dxlink.Dialer, opts Options, logger *zap.Logger) *Aggregator {
	def := DefaultOptions()
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		opts.Threshold = def.Threshold
	}
	if opts.UnderlyingPoll <= 0 {
		opts.UnderlyingPoll = def.UnderlyingPoll
	}
	if opts.OptionsPoll <= 0 {
		opts.OptionsPoll = def.OptionsPoll
	}
	return &Aggregator{
		instruments: instruments,
		dialer:      dialer,
		opts:        opts,
		logger:      logger,
	}
}

// Underlying streams quote, candle, summary and trade for ticker until one
// of each has arrived. The caller owns the returned bundle and must Close it.
func (a *Aggregator) Underlying(ctx context.Context, ticker string) (*UnderlyingBundle, error) {
	equity, err := a.instruments.Equity(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("looking up equity %s: %w", ticker, err)
	}

	streamer, err := a.dialer.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening stream for %s: %w", ticker, err)
	}

	b := NewUnderlyingBundle(ticker, equity)
	b.feed = newFeed(streamer, a.logger)
	b.start()

	start := time.Now()
	if err := b.subscribe(ctx); err != nil {
		b.Close()
		return nil, err
	}
	if err := b.wait(ctx, a.opts.UnderlyingTimeout, a.opts.UnderlyingPoll); err != nil {
		b.Close()
		return nil, err
	}

	a.logger.Info("Underlying snapshot ready",
		zap.String("ticker", ticker),
		zap.String("streamer_symbol", b.StreamerSymbol()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return b, nil
}

// Options looks up the chain for ticker and streams every contract of one
// expiration. The caller owns the returned bundle and must Close it.
func (a *Aggregator) Options(ctx context.Context, ticker string, expiration time.Time) (*OptionsBundle, error) {
	chain, err := a.instruments.OptionChain(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("fetching option chain %s: %w", ticker, err)
	}
	contracts, ok := chain[expiration]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", ticker, expiration.Format(tastytrade.DateLayout), tastytrade.ErrNoExpiration)
	}
	return a.OptionsFromChain(ctx, ticker, expiration, contracts)
}

// OptionsFromChain is Options with the contracts already resolved.
func (a *Aggregator) OptionsFromChain(ctx context.Context, ticker string, expiration time.Time, contracts []tastytrade.Option) (*OptionsBundle, error) {
	day := expiration.Format(tastytrade.DateLayout)
	if len(contracts) == 0 {
		return nil, fmt.Errorf("%s %s: %w", ticker, day, ErrNoContracts)
	}

	streamer, err := a.dialer.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening stream for %s %s: %w", ticker, day, err)
	}

	b := NewOptionsBundle(ticker, expiration, contracts, a.opts.Threshold)
	b.feed = newFeed(streamer, a.logger)
	if b.Contracts() == 0 {
		b.Close()
		return nil, fmt.Errorf("%s %s: %w", ticker, day, ErrNoContracts)
	}
	b.start()

	a.logger.Info("Subscribing option contracts",
		zap.String("ticker", ticker),
		zap.String("expiration", day),
		zap.Int("calls", len(b.Calls)),
		zap.Int("puts", len(b.Puts)),
		zap.Int("need", b.Need()),
	)

	start := time.Now()
	if err := b.subscribe(ctx); err != nil {
		b.Close()
		return nil, err
	}
	if err := b.wait(ctx, a.opts.OptionsTimeout, a.opts.OptionsPoll); err != nil {
		b.Close()
		return nil, err
	}

	a.logger.Info("Options snapshot ready",
		zap.String("ticker", ticker),
		zap.String("expiration", day),
		zap.Any("counts", b.Counts()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return b, nil
}
