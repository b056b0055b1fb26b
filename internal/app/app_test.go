package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dgnsrekt/tastygex/internal/config"
	"github.com/dgnsrekt/tastygex/internal/output"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Tastytrade: config.TastytradeConfig{
			Username:      "trader",
			Password:      "secret",
			IsTest:        true,
			CertURL:       baseURL,
			ProductionURL: "http://production.invalid",
			TimeoutSec:    5,
			RatePerSecond: 10,
		},
		Stream: config.StreamConfig{
			UnderlyingTimeoutSec: 7,
			OptionsTimeoutSec:    90,
			OptionsThreshold:     0.75,
			KeepaliveSec:         30,
			HandshakeTimeoutSec:  5,
			AggregationMs:        250,
			CandleLookbackHours:  24,
		},
		Collect: config.CollectConfig{ExpirationCount: 2, Workers: 3, LegacyOverrun: true},
		Output: config.OutputConfig{
			Directory: "data",
			Format:    "Parquet",
			Archive:   true,
			S3:        config.S3Config{Bucket: "gex", Prefix: "raw", Region: "us-east-2", PathStyle: true},
		},
		Notify: config.NotifyConfig{Enabled: true, Server: "https://ntfy.sh", Topic: "gex", Priority: "high"},
	}
}

func TestOptionMapping(t *testing.T) {
	cfg := testConfig("http://cert.invalid")

	stream := StreamOptions(cfg)
	assert.Equal(t, 30*time.Second, stream.Keepalive)
	assert.Equal(t, 5*time.Second, stream.HandshakeTimeout)
	assert.Equal(t, 250*time.Millisecond, stream.Aggregation)
	assert.Equal(t, 24*time.Hour, stream.CandleLookback)

	snap := SnapshotOptions(cfg)
	assert.Equal(t, 7*time.Second, snap.UnderlyingTimeout)
	assert.Equal(t, 90*time.Second, snap.OptionsTimeout)
	assert.Equal(t, 0.75, snap.Threshold)
	assert.Positive(t, snap.OptionsPoll)

	opts, err := CollectOptions(cfg)
	require.NoError(t, err)
	assert.Equal(t, output.FormatParquet, opts.Format)
	assert.Equal(t, 2, opts.ExpirationCount)
	assert.Equal(t, 3, opts.Workers)
	assert.True(t, opts.LegacyOverrun)
	assert.True(t, opts.Archive)
	assert.False(t, opts.DryRun)

	s3 := S3Options(cfg)
	assert.Equal(t, "gex", s3.Bucket)
	assert.Equal(t, "raw", s3.Prefix)
	assert.True(t, s3.PathStyle)

	n := NotifyConfig(cfg)
	assert.NoError(t, n.Validate())
	assert.Equal(t, "gex", n.Topic)
}

func TestCollectOptionsRejectsFormat(t *testing.T) {
	cfg := testConfig("")
	cfg.Output.Format = "xlsx"
	_, err := CollectOptions(cfg)
	assert.ErrorIs(t, err, output.ErrUnknownFormat)
}

func TestTickers(t *testing.T) {
	cfg := testConfig("")
	cfg.Tickers = []string{"SPY", "QQQ"}

	got, err := Tickers(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"SPY", "QQQ"}, got)

	got, err = Tickers(cfg, []string{" iwm "})
	require.NoError(t, err)
	assert.Equal(t, []string{"IWM"}, got)

	cfg.Tickers = nil
	got, err = Tickers(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTickers, got)

	_, err = Tickers(cfg, []string{"SPY", "BRK/B"})
	var verrs *config.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, []string{"BRK/B"}, verrs.InvalidTickers)
}

func TestNewJobLogsIn(t *testing.T) {
	var logins int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sessions" {
			logins++
			w.Write([]byte(`{"data":{"session-token":"tok"}}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Output.S3.Enabled = false
	opts, err := CollectOptions(cfg)
	require.NoError(t, err)

	job, err := NewJob(context.Background(), cfg, opts, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, job)
	assert.Equal(t, 1, logins)
}

func TestLoginRequiresCredentials(t *testing.T) {
	cfg := testConfig("http://cert.invalid")
	cfg.Tastytrade.Password = ""
	_, err := Login(context.Background(), cfg, zap.NewNop())
	var verrs *config.ValidationErrors
	assert.True(t, errors.As(err, &verrs))
}

func TestNewLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger("gexcache", false, &config.LoggingConfig{
		Enabled:    true,
		Directory:  dir,
		Level:      "info",
		MaxSizeMB:  1,
		MaxAgeDays: 1,
		MaxBackups: 1,
	})
	require.NoError(t, err)
	logger.Info("hello", zap.String("ticker", "SPY"))
	_ = logger.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "gexcache.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ticker":"SPY"`)
}
