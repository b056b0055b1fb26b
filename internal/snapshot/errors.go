package snapshot

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgnsrekt/tastygex/internal/dxfeed"
)

var (
	ErrReadinessTimeout = errors.New("snapshot not ready before deadline")
	ErrStreamEnded      = errors.New("event stream ended before snapshot was ready")
	ErrNoContracts      = errors.New("no option contracts for expiration")
)

// TimeoutError reports how far a bundle got before its deadline.
type TimeoutError struct {
	Bundle  string
	Timeout time.Duration
	Need    int
	Counts  map[dxfeed.EventType]int
}

func (e *TimeoutError) Error() string {
	kinds := make([]string, 0, len(e.Counts))
	for k := range e.Counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, e.Counts[dxfeed.EventType(k)]))
	}
	return fmt.Sprintf("%s: not ready after %s (need %d per kind, have %s)",
		e.Bundle, e.Timeout, e.Need, strings.Join(parts, " "))
}

func (e *TimeoutError) Unwrap() error {
	return ErrReadinessTimeout
}
