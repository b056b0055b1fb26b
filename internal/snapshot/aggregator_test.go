package snapshot

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dgnsrekt/tastygex/internal/dxfeed"
	"github.com/dgnsrekt/tastygex/internal/dxlink/dxlinktest"
	"github.com/dgnsrekt/tastygex/internal/nullable"
	"github.com/dgnsrekt/tastygex/internal/tastytrade"
)

var expiry = time.Date(2024, 9, 27, 0, 0, 0, 0, time.UTC)

type fakeInstruments struct {
	chain tastytrade.Chain
}

func (f fakeInstruments) Equity(ctx context.Context, symbol string) (*tastytrade.Equity, error) {
	return &tastytrade.Equity{Symbol: symbol, StreamerSymbol: symbol}, nil
}

func (f fakeInstruments) OptionChain(ctx context.Context, symbol string) (tastytrade.Chain, error) {
	return f.chain, nil
}

func contracts(n int) []tastytrade.Option {
	var out []tastytrade.Option
	for i := 0; i < n; i++ {
		strike := 450 + i*5
		for _, t := range []tastytrade.OptionType{tastytrade.OptionCall, tastytrade.OptionPut} {
			out = append(out, tastytrade.Option{
				StreamerSymbol: fmt.Sprintf(".SPY240927%s%d", t, strike),
				OptionType:     t,
				ExpirationDate: "2024-09-27",
				StrikePrice:    decimal.NewFromInt(int64(strike)),
			})
		}
	}
	return out
}

func testOptions() Options {
	return Options{
		UnderlyingTimeout: time.Second,
		OptionsTimeout:    time.Second,
		Threshold:         0.5,
		UnderlyingPoll:    10 * time.Millisecond,
		OptionsPoll:       10 * time.Millisecond,
	}
}

func TestUnderlyingReady(t *testing.T) {
	dialer := &dxlinktest.Dialer{Respond: dxlinktest.EmitEach(func(kind dxfeed.EventType, sym string) dxfeed.Event {
		if kind == dxfeed.CandleEvent {
			return &dxfeed.Candle{EventSymbol: sym, Close: nullable.Of(500)}
		}
		return dxlinktest.Blank(kind, sym)
	})}
	agg := NewAggregator(fakeInstruments{}, dialer, testOptions(), zap.NewNop())

	b, err := agg.Underlying(context.Background(), "SPY")
	require.NoError(t, err)
	defer b.Close()

	assert.True(t, b.Ready())
	candle, ok := b.Candle()
	require.True(t, ok)
	assert.Equal(t, 500.0, candle.Close.Value)
	assert.Len(t, b.Events(), 4)

	require.NoError(t, b.Close())
	assert.True(t, dialer.Opened()[0].Closed())
}

func TestUnderlyingTimeout(t *testing.T) {
	dialer := &dxlinktest.Dialer{Respond: dxlinktest.EmitEach(func(kind dxfeed.EventType, sym string) dxfeed.Event {
		if kind == dxfeed.TradeEvent {
			return nil
		}
		return dxlinktest.Blank(kind, sym)
	})}
	opts := testOptions()
	opts.UnderlyingTimeout = 50 * time.Millisecond
	agg := NewAggregator(fakeInstruments{}, dialer, opts, zap.NewNop())

	_, err := agg.Underlying(context.Background(), "SPY")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReadinessTimeout))

	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 0, te.Counts[dxfeed.TradeEvent])
	assert.Equal(t, 1, te.Counts[dxfeed.QuoteEvent])
	assert.True(t, dialer.Opened()[0].Closed())
}

func TestStreamEndedBeforeReady(t *testing.T) {
	dropped := errors.New("connection reset")
	dialer := &dxlinktest.Dialer{Respond: func(s *dxlinktest.Streamer, kind dxfeed.EventType, symbols []string) {
		if kind == dxfeed.TradeEvent {
			s.End(dropped)
		}
	}}
	agg := NewAggregator(fakeInstruments{}, dialer, testOptions(), zap.NewNop())

	_, err := agg.Underlying(context.Background(), "SPY")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStreamEnded))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestOptionsReadyAtThreshold(t *testing.T) {
	chain := contracts(4) // 4 calls + 4 puts
	half := map[string]bool{}
	for _, o := range chain[:4] {
		half[o.StreamerSymbol] = true
	}

	// Only half the contracts report, which is exactly the 0.5 quorum.
	dialer := &dxlinktest.Dialer{Respond: dxlinktest.EmitEach(func(kind dxfeed.EventType, sym string) dxfeed.Event {
		if !half[sym] {
			return nil
		}
		return dxlinktest.Blank(kind, sym)
	})}
	agg := NewAggregator(fakeInstruments{}, dialer, testOptions(), zap.NewNop())

	b, err := agg.OptionsFromChain(context.Background(), "SPY", expiry, chain)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, 4, b.Need())
	assert.Len(t, b.Calls, 4)
	assert.Len(t, b.Puts, 4)
	for kind, n := range b.Counts() {
		assert.Equal(t, 4, n, kind)
	}
}

func TestOptionsBelowThresholdTimesOut(t *testing.T) {
	chain := contracts(4)
	three := map[string]bool{}
	for _, o := range chain[:3] {
		three[o.StreamerSymbol] = true
	}

	dialer := &dxlinktest.Dialer{Respond: dxlinktest.EmitEach(func(kind dxfeed.EventType, sym string) dxfeed.Event {
		if !three[sym] {
			return nil
		}
		return dxlinktest.Blank(kind, sym)
	})}
	opts := testOptions()
	opts.OptionsTimeout = 50 * time.Millisecond
	agg := NewAggregator(fakeInstruments{}, dialer, opts, zap.NewNop())

	_, err := agg.OptionsFromChain(context.Background(), "SPY", expiry, chain)
	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 4, te.Need)
	assert.Equal(t, 3, te.Counts[dxfeed.GreeksEvent])
}

func TestOptionsUnderlyingCountsTowardQuotes(t *testing.T) {
	chain := contracts(2) // need 2
	only := chain[0].StreamerSymbol

	dialer := &dxlinktest.Dialer{Respond: dxlinktest.EmitEach(func(kind dxfeed.EventType, sym string) dxfeed.Event {
		if sym == "SPY" || sym == only {
			return dxlinktest.Blank(kind, sym)
		}
		return nil
	})}
	opts := testOptions()
	opts.OptionsTimeout = 50 * time.Millisecond
	agg := NewAggregator(fakeInstruments{}, dialer, opts, zap.NewNop())

	_, err := agg.OptionsFromChain(context.Background(), "SPY", expiry, chain)
	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 2, te.Counts[dxfeed.QuoteEvent])
	assert.Equal(t, 2, te.Counts[dxfeed.CandleEvent])
	assert.Equal(t, 1, te.Counts[dxfeed.GreeksEvent])
}

func TestOptionsSubscriptions(t *testing.T) {
	chain := contracts(1)
	dialer := &dxlinktest.Dialer{Respond: dxlinktest.EmitEach(dxlinktest.Blank)}
	agg := NewAggregator(fakeInstruments{}, dialer, testOptions(), zap.NewNop())

	b, err := agg.OptionsFromChain(context.Background(), "SPY", expiry, chain)
	require.NoError(t, err)
	defer b.Close()

	s := dialer.Opened()[0]
	assert.Equal(t, []string{"SPY", ".SPY240927C450", ".SPY240927P450"}, s.Subscriptions(dxfeed.QuoteEvent))
	assert.Equal(t, []string{"SPY", ".SPY240927C450", ".SPY240927P450"}, s.Subscriptions(dxfeed.CandleEvent))
	assert.Equal(t, []string{".SPY240927C450", ".SPY240927P450"}, s.Subscriptions(dxfeed.GreeksEvent))
	assert.Equal(t, []string{".SPY240927C450", ".SPY240927P450"}, s.Subscriptions(dxfeed.SummaryEvent))
	assert.Equal(t, []string{".SPY240927C450", ".SPY240927P450"}, s.Subscriptions(dxfeed.TradeEvent))
}

func TestOptionsNoContracts(t *testing.T) {
	dialer := &dxlinktest.Dialer{}
	agg := NewAggregator(fakeInstruments{}, dialer, testOptions(), zap.NewNop())

	_, err := agg.OptionsFromChain(context.Background(), "SPY", expiry, nil)
	assert.True(t, errors.Is(err, ErrNoContracts))
	assert.Empty(t, dialer.Opened())
}

func TestOptionsUnknownExpiration(t *testing.T) {
	inst := fakeInstruments{chain: tastytrade.Chain{expiry: contracts(1)}}
	agg := NewAggregator(inst, &dxlinktest.Dialer{}, testOptions(), zap.NewNop())

	_, err := agg.Options(context.Background(), "SPY", expiry.AddDate(0, 0, 7))
	assert.True(t, errors.Is(err, tastytrade.ErrNoExpiration))
}

func TestNeedRoundsUp(t *testing.T) {
	b := NewOptionsBundle("SPY", expiry, contracts(3)[:5], 0.5)
	assert.Equal(t, 5, b.Contracts())
	assert.Equal(t, 3, b.Need())
}

func TestStoreLastWriteWins(t *testing.T) {
	s := NewStore[*dxfeed.Trade]()
	assert.Equal(t, 1, s.Put(&dxfeed.Trade{EventSymbol: "SPY", Price: nullable.Of(1)}))
	assert.Equal(t, 1, s.Put(&dxfeed.Trade{EventSymbol: "SPY", Price: nullable.Of(2)}))
	assert.Equal(t, 2, s.Put(&dxfeed.Trade{EventSymbol: "QQQ"}))

	got, ok := s.Get("SPY")
	require.True(t, ok)
	assert.Equal(t, 2.0, got.Price.Value)

	snap := s.Snapshot()
	delete(snap, "SPY")
	assert.Equal(t, 2, s.Len())
}
