package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TASTYTRADE_USERNAME", "trader")
	t.Setenv("TASTYTRADE_PASSWORD", "secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected config to load, got error: %v", err)
	}

	if cfg.Tastytrade.Username != "trader" {
		t.Errorf("expected username 'trader', got '%s'", cfg.Tastytrade.Username)
	}

	if err := cfg.RequireCredentials(); err != nil {
		t.Errorf("expected credentials to be present, got %v", err)
	}

	if cfg.Tastytrade.BaseURL() != CertURL {
		t.Errorf("expected cert URL by default, got '%s'", cfg.Tastytrade.BaseURL())
	}

	if cfg.Stream.OptionsThreshold != 0.5 {
		t.Errorf("expected threshold 0.5 by default, got %g", cfg.Stream.OptionsThreshold)
	}

	if cfg.Collect.ExpirationCount != 1 {
		t.Errorf("expected 1 expiration by default, got %d", cfg.Collect.ExpirationCount)
	}

	if cfg.Collect.LegacyOverrun {
		t.Error("expected legacy overrun off by default")
	}

	if cfg.Output.Format != "csv" {
		t.Errorf("expected csv by default, got '%s'", cfg.Output.Format)
	}
}

func TestIsTestEnv(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"FALSE", false},
		{"false", true},
		{"TRUE", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("IS_TEST", tt.value)
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.Tastytrade.IsTest != tt.want {
				t.Errorf("IS_TEST=%q: expected IsTest %v, got %v", tt.value, tt.want, cfg.Tastytrade.IsTest)
			}
		})
	}
}

func TestSharedDirEnv(t *testing.T) {
	t.Setenv("SHARED_DIR", "/shared")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Output.Directory != "/shared" {
		t.Errorf("expected output directory '/shared', got '%s'", cfg.Output.Directory)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
tickers: [SPY, QQQ]
collect:
  expiration_count: 3
  legacy_overrun: true
output:
  format: parquet
stream:
  options_threshold: 0.8
`
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Tickers) != 2 || cfg.Tickers[1] != "QQQ" {
		t.Errorf("expected tickers [SPY QQQ], got %v", cfg.Tickers)
	}
	if cfg.Collect.ExpirationCount != 3 || !cfg.Collect.LegacyOverrun {
		t.Errorf("unexpected collect config: %+v", cfg.Collect)
	}
	if cfg.Output.Format != "parquet" {
		t.Errorf("expected parquet, got %s", cfg.Output.Format)
	}
	if cfg.Stream.OptionsThreshold != 0.8 {
		t.Errorf("expected threshold 0.8, got %g", cfg.Stream.OptionsThreshold)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
collect:
  expiration_count: 0
stream:
  options_threshold: 1.5
`
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr *ValidationErrors
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationErrors, got %T", err)
	}
	if len(verr.Fields) != 2 {
		t.Errorf("expected 2 field errors, got %v", verr.Fields)
	}
}

func TestRequireCredentials(t *testing.T) {
	cfg := &Config{}
	err := cfg.RequireCredentials()
	if err == nil {
		t.Fatal("expected error when credentials are missing")
	}

	var verr *ValidationErrors
	if !errors.As(err, &verr) || len(verr.Fields) != 2 {
		t.Errorf("expected both username and password reported, got %v", err)
	}
}
