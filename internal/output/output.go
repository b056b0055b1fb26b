// Package output encodes GEX rows, the underlying candle and raw snapshots
// into the files a run produces.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgnsrekt/tastygex/internal/gex"
)

// Format selects the tabular encoding of GEX rows.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat accepts a case-insensitive format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatParquet:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// GEXFileName is the table file for ticker.
func GEXFileName(ticker string, format Format) string {
	return fmt.Sprintf("%s-gex.%s", strings.ToUpper(ticker), format)
}

// CandleFileName is the underlying candle side-record for ticker.
func CandleFileName(ticker string) string {
	return strings.ToUpper(ticker) + "-candle.json"
}

// ArchiveFileName is the compressed raw snapshot dump for ticker.
func ArchiveFileName(ticker string) string {
	return strings.ToUpper(ticker) + "-snapshot.jsonl.zst"
}

// WriteRows encodes rows in format.
func WriteRows(w io.Writer, rows []gex.Row, format Format) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatParquet:
		return WriteParquet(w, rows)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
