// Package symbol parses the option streamer symbols used by the live feed,
// e.g. ".TSLA240927C105".
package symbol

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// ContractType is the option right.
type ContractType string

const (
	Call ContractType = "C"
	Put  ContractType = "P"
)

// Sign is +1 for calls and -1 for puts.
func (c ContractType) Sign() int {
	if c == Call {
		return 1
	}
	return -1
}

const dateLayout = "060102"

var pattern = regexp.MustCompile(`^\.([A-Z]+)(\d{6})([CP])(\d+(?:\.\d+)?)$`)

// ParseError reports a streamer symbol that is not an option symbol.
type ParseError struct {
	Symbol string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid option symbol %q", e.Symbol)
	}
	return fmt.Sprintf("invalid option symbol %q: %s", e.Symbol, e.Reason)
}

// Option is a parsed option streamer symbol.
type Option struct {
	Ticker       string
	Expiration   time.Time // UTC midnight
	ContractType ContractType
	Strike       decimal.Decimal
}

// Parse splits an option streamer symbol into its components. The strike is
// taken verbatim; no implied-decimal scaling is applied.
func Parse(s string) (Option, error) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return Option{}, &ParseError{Symbol: s}
	}

	exp, err := time.ParseInLocation(dateLayout, m[2], time.UTC)
	if err != nil {
		return Option{}, &ParseError{Symbol: s, Reason: "bad expiration date"}
	}

	strike, err := decimal.NewFromString(m[4])
	if err != nil {
		return Option{}, &ParseError{Symbol: s, Reason: "bad strike"}
	}

	return Option{
		Ticker:       m[1],
		Expiration:   exp,
		ContractType: ContractType(m[3]),
		Strike:       strike,
	}, nil
}

// String rebuilds the streamer symbol.
func (o Option) String() string {
	return fmt.Sprintf(".%s%s%s%s", o.Ticker, o.Expiration.Format(dateLayout), o.ContractType, o.Strike.String())
}
