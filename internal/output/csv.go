package output

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/dgnsrekt/tastygex/internal/gex"
)

// WriteCSV writes a header and one line per row. Missing values are empty
// fields.
func WriteCSV(w io.Writer, rows []gex.Row) error {
	if rows == nil {
		rows = []gex.Row{}
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("encoding csv: %w", err)
	}
	return nil
}

// ReadCSV parses a file written by WriteCSV.
func ReadCSV(r io.Reader) ([]gex.Row, error) {
	var rows []gex.Row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("decoding csv: %w", err)
	}
	return rows, nil
}
