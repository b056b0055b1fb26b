package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dgnsrekt/tastygex/internal/dxfeed"
)

// WriteCandleJSON writes the candle as one indented JSON object with keys
// sorted. Missing values are null.
func WriteCandleJSON(w io.Writer, candle *dxfeed.Candle) error {
	if candle == nil {
		return ErrNoCandle
	}

	raw, err := json.Marshal(candle)
	if err != nil {
		return fmt.Errorf("encoding candle: %w", err)
	}

	// Round-trip through a map so encoding/json sorts the keys.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return fmt.Errorf("re-reading candle: %w", err)
	}

	out, err := json.MarshalIndent(fields, "", "    ")
	if err != nil {
		return fmt.Errorf("indenting candle: %w", err)
	}
	out = append(out, '\n')
	_, err = w.Write(out)
	return err
}
