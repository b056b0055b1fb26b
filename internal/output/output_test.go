package output

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dgnsrekt/tastygex/internal/dxfeed"
	"github.com/dgnsrekt/tastygex/internal/gex"
	"github.com/dgnsrekt/tastygex/internal/nullable"
)

func sampleRows() []gex.Row {
	return []gex.Row{
		{
			Symbol:          ".SPY240927C450",
			Ticker:          "SPY",
			Expiration:      "2024-09-27",
			ContractType:    "C",
			ContractTypeInt: 1,
			Strike:          450,
			Gamma:           nullable.Of(0.05),
			OpenInterest:    nullable.Of(1000),
			GEX:             nullable.Of(12500000),
		},
		{
			Symbol:          ".SPY240927P450.5",
			Ticker:          "SPY",
			Expiration:      "2024-09-27",
			ContractType:    "P",
			ContractTypeInt: -1,
			Strike:          450.5,
			OpenInterest:    nullable.Of(200),
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" Parquet ")
	require.NoError(t, err)
	assert.Equal(t, FormatParquet, f)

	_, err = ParseFormat("xlsx")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestFileNames(t *testing.T) {
	assert.Equal(t, "SPY-gex.csv", GEXFileName("spy", FormatCSV))
	assert.Equal(t, "SPY-gex.parquet", GEXFileName("SPY", FormatParquet))
	assert.Equal(t, "SPY-candle.json", CandleFileName("SPY"))
	assert.Equal(t, "SPY-snapshot.jsonl.zst", ArchiveFileName("SPY"))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRows()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "symbol,ticker,expiration,contract_type,contract_type_int,strike,gamma,"+
		"candleBidVolume,candleAskVolume,candleDayVolume,tradeDayVolume,prevDayVolume,openInterest,"+
		"gex,gexCandleDayVolume,gexTradeDayVolume,gexPrevDayVolume", lines[0])
	assert.Equal(t, ".SPY240927C450,SPY,2024-09-27,C,1,450,0.05,,,,,,1000,12500000,,,", lines[1])
	assert.Equal(t, ".SPY240927P450.5,SPY,2024-09-27,P,-1,450.5,,,,,,,200,,,,", lines[2])

	rows, err := ReadCSV(strings.NewReader(buf.String()))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, nullable.Of(0.05), rows[0].Gamma)
	assert.False(t, rows[1].Gamma.Valid)
	assert.Equal(t, 450.5, rows[1].Strike)
}

func TestWriteParquet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRows(&buf, sampleRows(), FormatParquet))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("PAR1")))
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("PAR1")))
}

func TestToRecordKeepsNulls(t *testing.T) {
	rec := toRecord(sampleRows()[1])
	assert.Nil(t, rec.Gamma)
	assert.Nil(t, rec.GEX)
	require.NotNil(t, rec.OpenInterest)
	assert.Equal(t, 200.0, *rec.OpenInterest)
}

func TestWriteCandleJSON(t *testing.T) {
	candle := &dxfeed.Candle{
		EventSymbol: "SPY",
		Time:        1727452800000,
		Close:       nullable.Of(500.5),
		Volume:      nullable.Of(1000),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCandleJSON(&buf, candle))
	out := buf.String()

	assert.Contains(t, out, `    "close": 500.5`)
	assert.Contains(t, out, `"open": null`)
	assert.Contains(t, out, `"time": 1727452800000`)
	assert.Less(t, strings.Index(out, `"askVolume"`), strings.Index(out, `"close"`))
	assert.Less(t, strings.Index(out, `"close"`), strings.Index(out, `"vwap"`))

	assert.True(t, errors.Is(WriteCandleJSON(&buf, nil), ErrNoCandle))
}

func TestArchiveRoundTrip(t *testing.T) {
	records := []ArchiveRecord{
		{Bundle: "underlying", Kind: dxfeed.CandleEvent, Event: &dxfeed.Candle{EventSymbol: "SPY", Close: nullable.Of(500)}},
		{Bundle: "options", Expiration: "2024-09-27", Kind: dxfeed.GreeksEvent, Event: &dxfeed.Greeks{EventSymbol: ".SPY240927C450", Gamma: nullable.Of(0.05)}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteArchive(&buf, records))

	got, err := ReadArchive(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-09-27", got[1].Expiration)

	g, ok := got[1].Event.(*dxfeed.Greeks)
	require.True(t, ok)
	assert.Equal(t, 0.05, g.Gamma.Value)
	assert.False(t, g.Delta.Valid)
}

type fakeS3 struct {
	keys   []string
	bodies []string
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.keys = append(f.keys, *in.Key)
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func TestUploader(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "SPY-gex.csv")
	require.NoError(t, os.WriteFile(file, []byte("symbol\n"), 0o600))

	api := &fakeS3{}
	u := NewUploader(api, S3Options{Bucket: "gex", Prefix: "/cache/"}, zap.NewNop())

	day := time.Date(2024, 9, 27, 0, 0, 0, 0, time.UTC)
	keys, err := u.Upload(context.Background(), "spy", day, "run-1", []string{file})
	require.NoError(t, err)

	assert.Equal(t, []string{"cache/ticker=SPY/date=2024-09-27/run-1/SPY-gex.csv"}, keys)
	assert.Equal(t, keys, api.keys)
	assert.Equal(t, []string{"symbol\n"}, api.bodies)
}

func TestNewS3UploaderRequiresBucket(t *testing.T) {
	_, err := NewS3Uploader(context.Background(), S3Options{}, zap.NewNop())
	assert.True(t, errors.Is(err, ErrS3Disabled))
}
