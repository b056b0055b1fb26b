// Package gex computes per-contract gamma exposure from live snapshots.
package gex

import (
	"fmt"
	"sort"
	"time"

	"github.com/dgnsrekt/tastygex/internal/nullable"
	"github.com/dgnsrekt/tastygex/internal/snapshot"
	"github.com/dgnsrekt/tastygex/internal/symbol"
	"github.com/dgnsrekt/tastygex/internal/tastytrade"
)

// Shares per contract times a one percent move.
const (
	contractMultiplier = 100
	percentMove        = 0.01
)

// Row is one option contract's inputs and exposures.
type Row struct {
	Symbol             string           `csv:"symbol" json:"symbol"`
	Ticker             string           `csv:"ticker" json:"ticker"`
	Expiration         string           `csv:"expiration" json:"expiration"`
	ContractType       string           `csv:"contract_type" json:"contract_type"`
	ContractTypeInt    int32            `csv:"contract_type_int" json:"contract_type_int"`
	Strike             float64          `csv:"strike" json:"strike"`
	Gamma              nullable.Float64 `csv:"gamma" json:"gamma"`
	CandleBidVolume    nullable.Float64 `csv:"candleBidVolume" json:"candleBidVolume"`
	CandleAskVolume    nullable.Float64 `csv:"candleAskVolume" json:"candleAskVolume"`
	CandleDayVolume    nullable.Float64 `csv:"candleDayVolume" json:"candleDayVolume"`
	TradeDayVolume     nullable.Float64 `csv:"tradeDayVolume" json:"tradeDayVolume"`
	PrevDayVolume      nullable.Float64 `csv:"prevDayVolume" json:"prevDayVolume"`
	OpenInterest       nullable.Float64 `csv:"openInterest" json:"openInterest"`
	GEX                nullable.Float64 `csv:"gex" json:"gex"`
	GEXCandleDayVolume nullable.Float64 `csv:"gexCandleDayVolume" json:"gexCandleDayVolume"`
	GEXTradeDayVolume  nullable.Float64 `csv:"gexTradeDayVolume" json:"gexTradeDayVolume"`
	GEXPrevDayVolume   nullable.Float64 `csv:"gexPrevDayVolume" json:"gexPrevDayVolume"`
}

// Exposure returns gamma × sign × 100 × spot² × 0.01 × volume. Any missing
// input makes the result missing.
func Exposure(gamma nullable.Float64, sign int, spot, volume nullable.Float64) nullable.Float64 {
	return nullable.Product(gamma, volume, spot, spot).
		MulFloat(float64(sign) * contractMultiplier * percentMove)
}

// Spot returns the underlying's candle close.
func Spot(underlying *snapshot.UnderlyingBundle) (nullable.Float64, error) {
	if underlying == nil {
		return nullable.Null(), ErrNoUnderlying
	}
	candle, ok := underlying.Candle()
	if !ok {
		return nullable.Null(), fmt.Errorf("%s: %w", underlying.Ticker, ErrNoSpot)
	}
	return candle.Close, nil
}

// Compute builds one row per contract, expirations ascending and calls
// before puts within each.
func Compute(ticker string, underlying *snapshot.UnderlyingBundle, options map[time.Time]*snapshot.OptionsBundle) (nullable.Float64, []Row, error) {
	spot, err := Spot(underlying)
	if err != nil {
		return spot, nil, err
	}

	expirations := make([]time.Time, 0, len(options))
	for exp := range options {
		expirations = append(expirations, exp)
	}
	sort.Slice(expirations, func(i, j int) bool { return expirations[i].Before(expirations[j]) })

	var rows []Row
	for _, exp := range expirations {
		b := options[exp]
		if b == nil {
			continue
		}
		contracts := make([]tastytrade.Option, 0, b.Contracts())
		contracts = append(contracts, b.Calls...)
		contracts = append(contracts, b.Puts...)

		for _, c := range contracts {
			row, err := buildRow(c.StreamerSymbol, spot, b)
			if err != nil {
				return spot, nil, err
			}
			rows = append(rows, row)
		}
	}
	return spot, rows, nil
}

func buildRow(streamerSymbol string, spot nullable.Float64, b *snapshot.OptionsBundle) (Row, error) {
	opt, err := symbol.Parse(streamerSymbol)
	if err != nil {
		return Row{}, fmt.Errorf("building row: %w", err)
	}
	sign := opt.ContractType.Sign()
	strike, _ := opt.Strike.Float64()

	row := Row{
		Symbol:          streamerSymbol,
		Ticker:          opt.Ticker,
		Expiration:      opt.Expiration.Format(tastytrade.DateLayout),
		ContractType:    string(opt.ContractType),
		ContractTypeInt: int32(sign),
		Strike:          strike,
	}

	if g, ok := b.Greeks.Get(streamerSymbol); ok {
		row.Gamma = g.Gamma
	}
	if c, ok := b.Candles.Get(streamerSymbol); ok {
		row.CandleBidVolume = c.BidVolume
		row.CandleAskVolume = c.AskVolume
		row.CandleDayVolume = c.Volume
	}
	if t, ok := b.Trades.Get(streamerSymbol); ok {
		row.TradeDayVolume = t.DayVolume
	}
	if s, ok := b.Summaries.Get(streamerSymbol); ok {
		row.PrevDayVolume = s.PrevDayVolume
		row.OpenInterest = s.OpenInterest
	}

	row.GEX = Exposure(row.Gamma, sign, spot, row.OpenInterest)
	row.GEXCandleDayVolume = Exposure(row.Gamma, sign, spot, row.CandleDayVolume)
	row.GEXTradeDayVolume = Exposure(row.Gamma, sign, spot, row.TradeDayVolume)
	row.GEXPrevDayVolume = Exposure(row.Gamma, sign, spot, row.PrevDayVolume)
	return row, nil
}
