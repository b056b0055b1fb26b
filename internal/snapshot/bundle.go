package snapshot

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dgnsrekt/tastygex/internal/dxfeed"
	"github.com/dgnsrekt/tastygex/internal/tastytrade"
)

// UnderlyingBundle holds the latest events for a single equity.
type UnderlyingBundle struct {
	Ticker string
	Equity *tastytrade.Equity

	Quotes    *Store[*dxfeed.Quote]
	Candles   *Store[*dxfeed.Candle]
	Summaries *Store[*dxfeed.Summary]
	Trades    *Store[*dxfeed.Trade]

	feed *feed
}

// NewUnderlyingBundle returns an empty bundle with no live feed attached.
func NewUnderlyingBundle(ticker string, equity *tastytrade.Equity) *UnderlyingBundle {
	return &UnderlyingBundle{
		Ticker:    ticker,
		Equity:    equity,
		Quotes:    NewStore[*dxfeed.Quote](),
		Candles:   NewStore[*dxfeed.Candle](),
		Summaries: NewStore[*dxfeed.Summary](),
		Trades:    NewStore[*dxfeed.Trade](),
	}
}

// StreamerSymbol is the symbol the underlying is subscribed under.
func (b *UnderlyingBundle) StreamerSymbol() string {
	if b.Equity != nil && b.Equity.StreamerSymbol != "" {
		return b.Equity.StreamerSymbol
	}
	return b.Ticker
}

// Ready reports whether every store holds the single underlying entry.
func (b *UnderlyingBundle) Ready() bool {
	return b.Quotes.Len() == 1 &&
		b.Candles.Len() == 1 &&
		b.Summaries.Len() == 1 &&
		b.Trades.Len() == 1
}

func (b *UnderlyingBundle) Counts() map[dxfeed.EventType]int {
	return map[dxfeed.EventType]int{
		dxfeed.QuoteEvent:   b.Quotes.Len(),
		dxfeed.CandleEvent:  b.Candles.Len(),
		dxfeed.SummaryEvent: b.Summaries.Len(),
		dxfeed.TradeEvent:   b.Trades.Len(),
	}
}

// Candle returns the underlying candle, looked up by ticker first.
func (b *UnderlyingBundle) Candle() (*dxfeed.Candle, bool) {
	if c, ok := b.Candles.Get(b.Ticker); ok {
		return c, true
	}
	return b.Candles.Get(b.StreamerSymbol())
}

// Events returns every stored event grouped by kind.
func (b *UnderlyingBundle) Events() []dxfeed.Event {
	var out []dxfeed.Event
	out = appendSorted(out, b.Quotes)
	out = appendSorted(out, b.Candles)
	out = appendSorted(out, b.Summaries)
	out = appendSorted(out, b.Trades)
	return out
}

func (b *UnderlyingBundle) start() {
	listen(b.feed, dxfeed.QuoteEvent, b.Quotes)
	listen(b.feed, dxfeed.CandleEvent, b.Candles)
	listen(b.feed, dxfeed.SummaryEvent, b.Summaries)
	listen(b.feed, dxfeed.TradeEvent, b.Trades)
}

func (b *UnderlyingBundle) subscribe(ctx context.Context) error {
	symbols := []string{b.StreamerSymbol()}
	for _, kind := range []dxfeed.EventType{dxfeed.QuoteEvent, dxfeed.CandleEvent, dxfeed.SummaryEvent, dxfeed.TradeEvent} {
		if err := b.feed.streamer.Subscribe(ctx, kind, symbols); err != nil {
			return fmt.Errorf("subscribing %s for %s: %w", kind, b.Ticker, err)
		}
	}
	return nil
}

func (b *UnderlyingBundle) wait(ctx context.Context, timeout, poll time.Duration) error {
	return b.feed.await(ctx, waitSpec{
		name:    "underlying " + b.Ticker,
		timeout: timeout,
		poll:    poll,
		need:    1,
		ready:   b.Ready,
		counts:  b.Counts,
	})
}

// Close stops the listeners and closes the connection.
func (b *UnderlyingBundle) Close() error {
	if b == nil || b.feed == nil {
		return nil
	}
	return b.feed.close()
}

// OptionsBundle holds the latest events for every contract of one
// expiration, plus the underlying's quote and candle.
type OptionsBundle struct {
	Ticker     string
	Expiration time.Time
	Calls      []tastytrade.Option
	Puts       []tastytrade.Option

	Quotes    *Store[*dxfeed.Quote]
	Candles   *Store[*dxfeed.Candle]
	Summaries *Store[*dxfeed.Summary]
	Trades    *Store[*dxfeed.Trade]
	Greeks    *Store[*dxfeed.Greeks]

	threshold float64
	feed      *feed
}

// NewOptionsBundle returns an empty bundle for contracts, split into calls
// and puts in chain order, with no live feed attached.
func NewOptionsBundle(ticker string, expiration time.Time, contracts []tastytrade.Option, threshold float64) *OptionsBundle {
	b := &OptionsBundle{
		Ticker:     ticker,
		Expiration: expiration,
		Quotes:     NewStore[*dxfeed.Quote](),
		Candles:    NewStore[*dxfeed.Candle](),
		Summaries:  NewStore[*dxfeed.Summary](),
		Trades:     NewStore[*dxfeed.Trade](),
		Greeks:     NewStore[*dxfeed.Greeks](),
		threshold:  threshold,
	}
	for _, opt := range contracts {
		switch opt.OptionType {
		case tastytrade.OptionCall:
			b.Calls = append(b.Calls, opt)
		case tastytrade.OptionPut:
			b.Puts = append(b.Puts, opt)
		}
	}
	return b
}

// StreamerSymbols lists every contract's streamer symbol, calls first.
func (b *OptionsBundle) StreamerSymbols() []string {
	out := make([]string, 0, len(b.Calls)+len(b.Puts))
	for _, o := range b.Calls {
		out = append(out, o.StreamerSymbol)
	}
	for _, o := range b.Puts {
		out = append(out, o.StreamerSymbol)
	}
	return out
}

// Contracts is the number of option contracts in the bundle.
func (b *OptionsBundle) Contracts() int {
	return len(b.Calls) + len(b.Puts)
}

// Need is the per-store entry count required for readiness.
func (b *OptionsBundle) Need() int {
	return int(math.Ceil(b.threshold * float64(b.Contracts())))
}

// Ready reports whether every store has reached Need entries. Quote and
// candle counts include the underlying.
func (b *OptionsBundle) Ready() bool {
	need := b.Need()
	for _, n := range b.Counts() {
		if n < need {
			return false
		}
	}
	return true
}

func (b *OptionsBundle) Counts() map[dxfeed.EventType]int {
	return map[dxfeed.EventType]int{
		dxfeed.QuoteEvent:   b.Quotes.Len(),
		dxfeed.CandleEvent:  b.Candles.Len(),
		dxfeed.SummaryEvent: b.Summaries.Len(),
		dxfeed.TradeEvent:   b.Trades.Len(),
		dxfeed.GreeksEvent:  b.Greeks.Len(),
	}
}

// Events returns every stored event grouped by kind.
func (b *OptionsBundle) Events() []dxfeed.Event {
	var out []dxfeed.Event
	out = appendSorted(out, b.Quotes)
	out = appendSorted(out, b.Candles)
	out = appendSorted(out, b.Summaries)
	out = appendSorted(out, b.Trades)
	out = appendSorted(out, b.Greeks)
	return out
}

func (b *OptionsBundle) start() {
	listen(b.feed, dxfeed.QuoteEvent, b.Quotes)
	listen(b.feed, dxfeed.CandleEvent, b.Candles)
	listen(b.feed, dxfeed.SummaryEvent, b.Summaries)
	listen(b.feed, dxfeed.TradeEvent, b.Trades)
	listen(b.feed, dxfeed.GreeksEvent, b.Greeks)
}

func (b *OptionsBundle) subscribe(ctx context.Context) error {
	contracts := b.StreamerSymbols()
	withUnderlying := append([]string{b.Ticker}, contracts...)

	subs := []struct {
		kind    dxfeed.EventType
		symbols []string
	}{
		{dxfeed.QuoteEvent, withUnderlying},
		{dxfeed.CandleEvent, withUnderlying},
		{dxfeed.GreeksEvent, contracts},
		{dxfeed.SummaryEvent, contracts},
		{dxfeed.TradeEvent, contracts},
	}
	for _, s := range subs {
		if err := b.feed.streamer.Subscribe(ctx, s.kind, s.symbols); err != nil {
			return fmt.Errorf("subscribing %s for %s %s: %w", s.kind, b.Ticker, b.Expiration.Format(tastytrade.DateLayout), err)
		}
	}
	return nil
}

func (b *OptionsBundle) wait(ctx context.Context, timeout, poll time.Duration) error {
	return b.feed.await(ctx, waitSpec{
		name:    fmt.Sprintf("options %s %s", b.Ticker, b.Expiration.Format(tastytrade.DateLayout)),
		timeout: timeout,
		poll:    poll,
		need:    b.Need(),
		ready:   b.Ready,
		counts:  b.Counts,
	})
}

// Close stops the listeners and closes the connection.
func (b *OptionsBundle) Close() error {
	if b == nil || b.feed == nil {
		return nil
	}
	return b.feed.close()
}
