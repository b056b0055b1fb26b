package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/dgnsrekt/tastygex/internal/dxfeed"
)

// ArchiveRecord is one line of a snapshot archive.
type ArchiveRecord struct {
	Bundle     string           `json:"bundle"`
	Expiration string           `json:"expiration,omitempty"`
	Kind       dxfeed.EventType `json:"kind"`
	Event      dxfeed.Event     `json:"event"`
}

type archiveLine struct {
	Bundle     string           `json:"bundle"`
	Expiration string           `json:"expiration,omitempty"`
	Kind       dxfeed.EventType `json:"kind"`
	Event      json.RawMessage  `json:"event"`
}

// WriteArchive writes records as zstd-compressed JSON lines.
func WriteArchive(w io.Writer, records []ArchiveRecord) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}

	je := json.NewEncoder(enc)
	for _, rec := range records {
		if err := je.Encode(rec); err != nil {
			_ = enc.Close()
			return fmt.Errorf("encoding %s record: %w", rec.Kind, err)
		}
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("flushing zstd: %w", err)
	}
	return nil
}

// ReadArchive decodes an archive written by WriteArchive.
func ReadArchive(r io.Reader) ([]ArchiveRecord, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer dec.Close()

	var out []ArchiveRecord
	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var line archiveLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return nil, fmt.Errorf("decoding archive line: %w", err)
		}
		ev, err := dxfeed.DecodeAs(line.Kind, line.Event)
		if err != nil {
			return nil, err
		}
		out = append(out, ArchiveRecord{
			Bundle:     line.Bundle,
			Expiration: line.Expiration,
			Kind:       line.Kind,
			Event:      ev,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}
	return out, nil
}
