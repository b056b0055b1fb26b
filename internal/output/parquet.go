package output

import (
	"bytes"
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/dgnsrekt/tastygex/internal/gex"
)

// memFile buffers the parquet writer's output so it can be copied to any
// io.Writer once the footer is written.
type memFile struct {
	buffer *bytes.Buffer
}

func newMemFile() *memFile {
	return &memFile{buffer: &bytes.Buffer{}}
}

func (m *memFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFile) Seek(int64, int) (int64, error)            { return int64(m.buffer.Len()), nil }
func (m *memFile) Read([]byte) (int, error)                  { return 0, io.EOF }
func (m *memFile) Write(b []byte) (int, error)               { return m.buffer.Write(b) }
func (m *memFile) Close() error                              { return nil }
func (m *memFile) Bytes() []byte                             { return m.buffer.Bytes() }

// gexRecord is the parquet schema for a GEX row. Missing values are nulls.
type gexRecord struct {
	Symbol             string   `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Ticker             string   `parquet:"name=ticker, type=BYTE_ARRAY, convertedtype=UTF8"`
	Expiration         string   `parquet:"name=expiration, type=BYTE_ARRAY, convertedtype=UTF8"`
	ContractType       string   `parquet:"name=contract_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	ContractTypeInt    int32    `parquet:"name=contract_type_int, type=INT32"`
	Strike             float64  `parquet:"name=strike, type=DOUBLE"`
	Gamma              *float64 `parquet:"name=gamma, type=DOUBLE, repetitiontype=OPTIONAL"`
	CandleBidVolume    *float64 `parquet:"name=candleBidVolume, type=DOUBLE, repetitiontype=OPTIONAL"`
	CandleAskVolume    *float64 `parquet:"name=candleAskVolume, type=DOUBLE, repetitiontype=OPTIONAL"`
	CandleDayVolume    *float64 `parquet:"name=candleDayVolume, type=DOUBLE, repetitiontype=OPTIONAL"`
	TradeDayVolume     *float64 `parquet:"name=tradeDayVolume, type=DOUBLE, repetitiontype=OPTIONAL"`
	PrevDayVolume      *float64 `parquet:"name=prevDayVolume, type=DOUBLE, repetitiontype=OPTIONAL"`
	OpenInterest       *float64 `parquet:"name=openInterest, type=DOUBLE, repetitiontype=OPTIONAL"`
	GEX                *float64 `parquet:"name=gex, type=DOUBLE, repetitiontype=OPTIONAL"`
	GEXCandleDayVolume *float64 `parquet:"name=gexCandleDayVolume, type=DOUBLE, repetitiontype=OPTIONAL"`
	GEXTradeDayVolume  *float64 `parquet:"name=gexTradeDayVolume, type=DOUBLE, repetitiontype=OPTIONAL"`
	GEXPrevDayVolume   *float64 `parquet:"name=gexPrevDayVolume, type=DOUBLE, repetitiontype=OPTIONAL"`
}

func toRecord(r gex.Row) gexRecord {
	return gexRecord{
		Symbol:             r.Symbol,
		Ticker:             r.Ticker,
		Expiration:         r.Expiration,
		ContractType:       r.ContractType,
		ContractTypeInt:    r.ContractTypeInt,
		Strike:             r.Strike,
		Gamma:              r.Gamma.Ptr(),
		CandleBidVolume:    r.CandleBidVolume.Ptr(),
		CandleAskVolume:    r.CandleAskVolume.Ptr(),
		CandleDayVolume:    r.CandleDayVolume.Ptr(),
		TradeDayVolume:     r.TradeDayVolume.Ptr(),
		PrevDayVolume:      r.PrevDayVolume.Ptr(),
		OpenInterest:       r.OpenInterest.Ptr(),
		GEX:                r.GEX.Ptr(),
		GEXCandleDayVolume: r.GEXCandleDayVolume.Ptr(),
		GEXTradeDayVolume:  r.GEXTradeDayVolume.Ptr(),
		GEXPrevDayVolume:   r.GEXPrevDayVolume.Ptr(),
	}
}

// WriteParquet encodes rows as a snappy-compressed parquet file.
func WriteParquet(w io.Writer, rows []gex.Row) error {
	mem := newMemFile()
	pw, err := writer.NewParquetWriter(mem, new(gexRecord), 1)
	if err != nil {
		return fmt.Errorf("new parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, r := range rows {
		if err := pw.Write(toRecord(r)); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("write gex record: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finalize gex parquet: %w", err)
	}

	if _, err := w.Write(mem.Bytes()); err != nil {
		return fmt.Errorf("copying parquet: %w", err)
	}
	return nil
}
