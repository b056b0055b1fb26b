package gex

import "errors"

var (
	ErrNoSpot       = errors.New("underlying candle missing, no spot price")
	ErrNoUnderlying = errors.New("underlying bundle is nil")
)
