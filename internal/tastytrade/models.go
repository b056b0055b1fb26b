package tastytrade

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ProductionURL = "https://api.tastyworks.com"
	CertURL       = "https://api.cert.tastyworks.com"
)

// OptionType is "C" or "P" as returned by the instruments API.
type OptionType string

const (
	OptionCall OptionType = "C"
	OptionPut  OptionType = "P"
)

// Equity is the subset of the equity instrument used for streaming.
type Equity struct {
	Symbol         string `json:"symbol"`
	StreamerSymbol string `json:"streamer-symbol"`
	Description    string `json:"description"`
}

// Option is a single option instrument from a chain.
type Option struct {
	Symbol           string          `json:"symbol"`
	StreamerSymbol   string          `json:"streamer-symbol"`
	UnderlyingSymbol string          `json:"underlying-symbol"`
	OptionType       OptionType      `json:"option-type"`
	ExpirationDate   string          `json:"expiration-date"`
	StrikePrice      decimal.Decimal `json:"strike-price"`
	DaysToExpiration int             `json:"days-to-expiration"`
}

// Expiration parses ExpirationDate as a UTC date.
func (o Option) Expiration() (time.Time, error) {
	return time.ParseInLocation(DateLayout, o.ExpirationDate, time.UTC)
}

// DateLayout is the API date format.
const DateLayout = "2006-01-02"

// Chain groups options by expiration date (UTC midnight).
type Chain map[time.Time][]Option

// Expirations returns the chain's dates in ascending order.
func (c Chain) Expirations() []time.Time {
	dates := make([]time.Time, 0, len(c))
	for d := range c {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// QuoteToken authorises the streaming connection.
type QuoteToken struct {
	Token     string `json:"token"`
	DXLinkURL string `json:"dxlink-url"`
	Level     string `json:"level"`
}

type sessionRequest struct {
	Login      string `json:"login"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember-me"`
}

type sessionData struct {
	SessionToken string `json:"session-token"`
	User         struct {
		Username string `json:"username"`
	} `json:"user"`
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type itemsData[T any] struct {
	Items []T `json:"items"`
}
