// Package dxfeed defines the market events delivered by the streaming feed.
package dxfeed

import (
	"encoding/json"
	"fmt"

	"github.com/dgnsrekt/tastygex/internal/nullable"
)

// EventType names an event kind as used on the wire.
type EventType string

const (
	QuoteEvent   EventType = "Quote"
	CandleEvent  EventType = "Candle"
	SummaryEvent EventType = "Summary"
	TradeEvent   EventType = "Trade"
	GreeksEvent  EventType = "Greeks"
)

// EventTypes lists every supported kind.
var EventTypes = []EventType{QuoteEvent, CandleEvent, SummaryEvent, TradeEvent, GreeksEvent}

// Event is implemented by every event struct.
type Event interface {
	Symbol() string
	Type() EventType
}

// Quote is the best bid/offer.
type Quote struct {
	EventSymbol string           `json:"eventSymbol"`
	EventTime   int64            `json:"eventTime"`
	BidPrice    nullable.Float64 `json:"bidPrice"`
	AskPrice    nullable.Float64 `json:"askPrice"`
	BidSize     nullable.Float64 `json:"bidSize"`
	AskSize     nullable.Float64 `json:"askSize"`
}

func (q *Quote) Symbol() string  { return q.EventSymbol }
func (q *Quote) Type() EventType { return QuoteEvent }

// Candle is an OHLCV bar.
type Candle struct {
	EventSymbol   string           `json:"eventSymbol"`
	EventTime     int64            `json:"eventTime"`
	Time          int64            `json:"time"`
	Sequence      int64            `json:"sequence"`
	Count         nullable.Float64 `json:"count"`
	Open          nullable.Float64 `json:"open"`
	High          nullable.Float64 `json:"high"`
	Low           nullable.Float64 `json:"low"`
	Close         nullable.Float64 `json:"close"`
	Volume        nullable.Float64 `json:"volume"`
	VWAP          nullable.Float64 `json:"vwap"`
	BidVolume     nullable.Float64 `json:"bidVolume"`
	AskVolume     nullable.Float64 `json:"askVolume"`
	ImpVolatility nullable.Float64 `json:"impVolatility"`
	OpenInterest  nullable.Float64 `json:"openInterest"`
}

func (c *Candle) Symbol() string  { return c.EventSymbol }
func (c *Candle) Type() EventType { return CandleEvent }

// Summary carries daily statistics.
type Summary struct {
	EventSymbol       string           `json:"eventSymbol"`
	EventTime         int64            `json:"eventTime"`
	DayOpenPrice      nullable.Float64 `json:"dayOpenPrice"`
	DayHighPrice      nullable.Float64 `json:"dayHighPrice"`
	DayLowPrice       nullable.Float64 `json:"dayLowPrice"`
	DayClosePrice     nullable.Float64 `json:"dayClosePrice"`
	PrevDayClosePrice nullable.Float64 `json:"prevDayClosePrice"`
	PrevDayVolume     nullable.Float64 `json:"prevDayVolume"`
	OpenInterest      nullable.Float64 `json:"openInterest"`
}

func (s *Summary) Symbol() string  { return s.EventSymbol }
func (s *Summary) Type() EventType { return SummaryEvent }

// Trade is the last sale.
type Trade struct {
	EventSymbol string           `json:"eventSymbol"`
	EventTime   int64            `json:"eventTime"`
	Time        int64            `json:"time"`
	Price       nullable.Float64 `json:"price"`
	Size        nullable.Float64 `json:"size"`
	DayVolume   nullable.Float64 `json:"dayVolume"`
	DayTurnover nullable.Float64 `json:"dayTurnover"`
}

func (t *Trade) Symbol() string  { return t.EventSymbol }
func (t *Trade) Type() EventType { return TradeEvent }

// Greeks are option sensitivities computed by the feed.
type Greeks struct {
	EventSymbol string           `json:"eventSymbol"`
	EventTime   int64            `json:"eventTime"`
	Time        int64            `json:"time"`
	Price       nullable.Float64 `json:"price"`
	Volatility  nullable.Float64 `json:"volatility"`
	Delta       nullable.Float64 `json:"delta"`
	Gamma       nullable.Float64 `json:"gamma"`
	Theta       nullable.Float64 `json:"theta"`
	Rho         nullable.Float64 `json:"rho"`
	Vega        nullable.Float64 `json:"vega"`
}

func (g *Greeks) Symbol() string  { return g.EventSymbol }
func (g *Greeks) Type() EventType { return GreeksEvent }

// Fields returns the field list requested for a kind in the feed setup.
func Fields(t EventType) []string {
	switch t {
	case QuoteEvent:
		return []string{"eventType", "eventSymbol", "eventTime", "bidPrice", "askPrice", "bidSize", "askSize"}
	case CandleEvent:
		return []string{"eventType", "eventSymbol", "eventTime", "time", "sequence", "count", "open", "high", "low", "close", "volume", "vwap", "bidVolume", "askVolume", "impVolatility", "openInterest"}
	case SummaryEvent:
		return []string{"eventType", "eventSymbol", "eventTime", "dayOpenPrice", "dayHighPrice", "dayLowPrice", "dayClosePrice", "prevDayClosePrice", "prevDayVolume", "openInterest"}
	case TradeEvent:
		return []string{"eventType", "eventSymbol", "eventTime", "time", "price", "size", "dayVolume", "dayTurnover"}
	case GreeksEvent:
		return []string{"eventType", "eventSymbol", "eventTime", "time", "price", "volatility", "delta", "gamma", "theta", "rho", "vega"}
	}
	return nil
}

type typeProbe struct {
	EventType EventType `json:"eventType"`
}

// New returns an empty event of kind.
func New(kind EventType) (Event, error) {
	switch kind {
	case QuoteEvent:
		return &Quote{}, nil
	case CandleEvent:
		return &Candle{}, nil
	case SummaryEvent:
		return &Summary{}, nil
	case TradeEvent:
		return &Trade{}, nil
	case GreeksEvent:
		return &Greeks{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, kind)
}

// Decode parses one event object in FULL data format.
func Decode(raw json.RawMessage) (Event, error) {
	var probe typeProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("decoding event type: %w", err)
	}
	return DecodeAs(probe.EventType, raw)
}

// DecodeAs parses raw as an event of a known kind.
func DecodeAs(kind EventType, raw json.RawMessage) (Event, error) {
	ev, err := New(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, ev); err != nil {
		return nil, fmt.Errorf("decoding %s event: %w", kind, err)
	}
	return ev, nil
}
