package collect

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dgnsrekt/tastygex/internal/dxfeed"
	"github.com/dgnsrekt/tastygex/internal/dxlink/dxlinktest"
	"github.com/dgnsrekt/tastygex/internal/nullable"
	"github.com/dgnsrekt/tastygex/internal/output"
	"github.com/dgnsrekt/tastygex/internal/snapshot"
	"github.com/dgnsrekt/tastygex/internal/staging"
	"github.com/dgnsrekt/tastygex/internal/tastytrade"
)

var (
	sep27 = time.Date(2024, 9, 27, 0, 0, 0, 0, time.UTC)
	oct04 = time.Date(2024, 10, 4, 0, 0, 0, 0, time.UTC)
	oct11 = time.Date(2024, 10, 11, 0, 0, 0, 0, time.UTC)
)

type fakeInstruments struct {
	chain tastytrade.Chain
	err   error
}

func (f fakeInstruments) Equity(ctx context.Context, symbol string) (*tastytrade.Equity, error) {
	return &tastytrade.Equity{Symbol: symbol, StreamerSymbol: symbol}, nil
}

func (f fakeInstruments) OptionChain(ctx context.Context, symbol string) (tastytrade.Chain, error) {
	return f.chain, f.err
}

// expiration returns four calls and four puts.
func expiration(exp time.Time) []tastytrade.Option {
	var out []tastytrade.Option
	for _, t := range []tastytrade.OptionType{tastytrade.OptionCall, tastytrade.OptionPut} {
		for _, strike := range []int{440, 445, 450, 455} {
			out = append(out, tastytrade.Option{
				StreamerSymbol: fmt.Sprintf(".SPY%s%s%d", exp.Format("060102"), t, strike),
				OptionType:     t,
				ExpirationDate: exp.Format(tastytrade.DateLayout),
				StrikePrice:    decimal.NewFromInt(int64(strike)),
			})
		}
	}
	return out
}

// feedHalf emits events for the underlying and for strikes 440 and 445 only,
// two calls and two puts per expiration.
func feedHalf(kind dxfeed.EventType, sym string) dxfeed.Event {
	if sym == "SPY" {
		if kind == dxfeed.CandleEvent {
			return &dxfeed.Candle{EventSymbol: sym, Close: nullable.Of(500)}
		}
		return dxlinktest.Blank(kind, sym)
	}
	if !strings.HasSuffix(sym, "440") && !strings.HasSuffix(sym, "445") {
		return nil
	}
	switch kind {
	case dxfeed.GreeksEvent:
		return &dxfeed.Greeks{EventSymbol: sym, Gamma: nullable.Of(0.05)}
	case dxfeed.SummaryEvent:
		return &dxfeed.Summary{EventSymbol: sym, OpenInterest: nullable.Of(1000)}
	}
	return dxlinktest.Blank(kind, sym)
}

type harness struct {
	dialer *dxlinktest.Dialer
	dir    string
	job    *Job
}

func newHarness(t *testing.T, chain tastytrade.Chain, opts Options, respond dxlinktest.Responder) *harness {
	return newHarnessWithTimeout(t, chain, opts, respond, time.Second)
}

func newHarnessWithTimeout(t *testing.T, chain tastytrade.Chain, opts Options, respond dxlinktest.Responder, optionsTimeout time.Duration) *harness {
	t.Helper()
	inst := fakeInstruments{chain: chain}
	dialer := &dxlinktest.Dialer{Respond: respond}
	agg := snapshot.NewAggregator(inst, dialer, snapshot.Options{
		UnderlyingTimeout: time.Second,
		OptionsTimeout:    optionsTimeout,
		Threshold:         0.5,
		UnderlyingPoll:    10 * time.Millisecond,
		OptionsPoll:       10 * time.Millisecond,
	}, zap.NewNop())

	dir := t.TempDir()
	return &harness{
		dialer: dialer,
		dir:    dir,
		job:    NewJob(agg, inst, staging.NewManager(dir), nil, opts, zap.NewNop()),
	}
}

func (h *harness) allClosed(t *testing.T) {
	t.Helper()
	for i, s := range h.dialer.Opened() {
		assert.True(t, s.Closed(), "streamer %d left open", i)
	}
}

func TestRunEndToEnd(t *testing.T) {
	chain := tastytrade.Chain{sep27: expiration(sep27), oct04: expiration(oct04)}
	h := newHarness(t, chain, Options{ExpirationCount: 1, Workers: 1, Archive: true}, dxlinktest.EmitEach(feedHalf))

	res, err := h.job.Run(context.Background(), "SPY")
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 500.0, res.Spot.Value)
	assert.Equal(t, []time.Time{sep27}, res.Expirations)
	require.Len(t, res.Rows, 8)
	require.Len(t, res.Summaries, 1)

	valid := 0
	for _, r := range res.Rows {
		if r.GEX.Valid {
			valid++
		}
	}
	assert.Equal(t, 4, valid)

	csvPath := filepath.Join(h.dir, "SPY-gex.csv")
	assert.ElementsMatch(t, []string{
		csvPath,
		filepath.Join(h.dir, "SPY-candle.json"),
		filepath.Join(h.dir, "SPY-snapshot.jsonl.zst"),
	}, res.Files)

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
	}
	assert.Equal(t, 9, lines)

	candle, err := os.ReadFile(filepath.Join(h.dir, "SPY-candle.json"))
	require.NoError(t, err)
	assert.Contains(t, string(candle), `"close": 500`)

	archive, err := os.Open(filepath.Join(h.dir, "SPY-snapshot.jsonl.zst"))
	require.NoError(t, err)
	defer archive.Close()
	records, err := output.ReadArchive(archive)
	require.NoError(t, err)
	assert.Equal(t, "underlying", records[0].Bundle)

	_, err = os.Stat(filepath.Join(h.dir, ".staging", res.RunID))
	assert.True(t, os.IsNotExist(err))

	h.allClosed(t)
}

func TestRunLegacyOverrun(t *testing.T) {
	chain := tastytrade.Chain{oct11: expiration(oct11), sep27: expiration(sep27), oct04: expiration(oct04)}
	h := newHarness(t, chain, Options{ExpirationCount: 1, LegacyOverrun: true, Workers: 2, DryRun: true}, dxlinktest.EmitEach(feedHalf))

	res, err := h.job.Run(context.Background(), "SPY")
	require.NoError(t, err)

	assert.Equal(t, []time.Time{sep27, oct04}, res.Expirations)
	require.Len(t, res.Rows, 16)
	assert.Equal(t, "2024-09-27", res.Rows[0].Expiration)
	assert.Equal(t, "2024-10-04", res.Rows[8].Expiration)
	assert.Empty(t, res.Files)

	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	h.allClosed(t)
}

func TestRunOptionsTimeoutClosesEverything(t *testing.T) {
	chain := tastytrade.Chain{sep27: expiration(sep27), oct04: expiration(oct04)}
	quiet := dxlinktest.EmitEach(func(kind dxfeed.EventType, sym string) dxfeed.Event {
		if sym == "SPY" {
			return feedHalf(kind, sym)
		}
		return nil
	})
	h := newHarnessWithTimeout(t, chain, Options{ExpirationCount: 2, Workers: 2}, quiet, 50*time.Millisecond)

	_, err := h.job.Run(context.Background(), "SPY")
	require.Error(t, err)
	assert.True(t, errors.Is(err, snapshot.ErrReadinessTimeout))

	_, statErr := os.Stat(filepath.Join(h.dir, "SPY-candle.json"))
	assert.True(t, os.IsNotExist(statErr))

	h.allClosed(t)
}

func TestRunNoExpirations(t *testing.T) {
	h := newHarness(t, tastytrade.Chain{}, Options{ExpirationCount: 1}, dxlinktest.EmitEach(feedHalf))

	_, err := h.job.Run(context.Background(), "SPY")
	assert.True(t, errors.Is(err, ErrNoExpirations))
	h.allClosed(t)
}

func TestSelectExpirations(t *testing.T) {
	all := []time.Time{sep27, oct04, oct11}

	tests := []struct {
		name   string
		count  int
		legacy bool
		want   int
	}{
		{"exact", 2, false, 2},
		{"legacy adds one", 2, true, 3},
		{"clamped", 5, false, 3},
		{"legacy zero", 0, true, 1},
		{"zero", 0, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectExpirations(all, tt.count, tt.legacy)
			assert.Len(t, got, tt.want)
		})
	}
}
