package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProductionURL = "https://api.tastyworks.com"
	CertURL       = "https://api.cert.tastyworks.com"
)

type Config struct {
	Tastytrade TastytradeConfig `mapstructure:"tastytrade"`
	Stream     StreamConfig     `mapstructure:"stream"`
	Collect    CollectConfig    `mapstructure:"collect"`
	Tickers    []string         `mapstructure:"tickers"`
	Output     OutputConfig     `mapstructure:"output"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Server     ServerConfig     `mapstructure:"server"`
	Daemon     DaemonConfig     `mapstructure:"daemon"`
}

type TastytradeConfig struct {
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	IsTest        bool   `mapstructure:"is_test"`
	ProductionURL string `mapstructure:"production_url"`
	CertURL       string `mapstructure:"cert_url"`
	TimeoutSec    int    `mapstructure:"timeout_sec"`
	RetryCount    int    `mapstructure:"retry_count"`
	RetryDelay    int    `mapstructure:"retry_delay_sec"`
	RatePerSecond int    `mapstructure:"rate_per_second"`
}

// BaseURL is the certification endpoint in test mode, production otherwise.
func (c TastytradeConfig) BaseURL() string {
	if c.IsTest {
		return c.CertURL
	}
	return c.ProductionURL
}

type StreamConfig struct {
	UnderlyingTimeoutSec int     `mapstructure:"underlying_timeout_sec"`
	OptionsTimeoutSec    int     `mapstructure:"options_timeout_sec"`
	OptionsThreshold     float64 `mapstructure:"options_threshold"`
	KeepaliveSec         int     `mapstructure:"keepalive_sec"`
	HandshakeTimeoutSec  int     `mapstructure:"handshake_timeout_sec"`
	AggregationMs        int     `mapstructure:"aggregation_ms"`
	CandleLookbackHours  int     `mapstructure:"candle_lookback_hours"`
}

func (c StreamConfig) UnderlyingTimeout() time.Duration {
	return time.Duration(c.UnderlyingTimeoutSec) * time.Second
}

func (c StreamConfig) OptionsTimeout() time.Duration {
	return time.Duration(c.OptionsTimeoutSec) * time.Second
}

type CollectConfig struct {
	ExpirationCount int  `mapstructure:"expiration_count"`
	Workers         int  `mapstructure:"workers"`
	LegacyOverrun   bool `mapstructure:"legacy_overrun"`
}

type OutputConfig struct {
	Directory string   `mapstructure:"directory"`
	Format    string   `mapstructure:"format"`
	Archive   bool     `mapstructure:"archive"`
	S3        S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	PathStyle       bool   `mapstructure:"path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

type LoggingConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Directory  string `mapstructure:"directory"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type NotifyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Server   string `mapstructure:"server"`
	Topic    string `mapstructure:"topic"`
	Priority string `mapstructure:"priority"`
	Tags     string `mapstructure:"tags"`
	Token    string `mapstructure:"token"`
}

type ServerConfig struct {
	Port          string `mapstructure:"port"`
	AllowedOrigin string `mapstructure:"allowed_origin"`
}

type DaemonConfig struct {
	IntervalMin  int    `mapstructure:"interval_min"`
	Timezone     string `mapstructure:"timezone"`
	StateFile    string `mapstructure:"state_file"`
	RunOnStartup bool   `mapstructure:"run_on_startup"`
}

// DefaultTickers is used when no tickers are configured.
var DefaultTickers = []string{"SPY"}

// Load reads defaults, an optional YAML file, a .env file and the
// environment, in increasing order of precedence.
func Load(configPath string) (*Config, error) {
	// Missing .env is fine.
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults
	v.SetDefault("tastytrade.is_test", true)
	v.SetDefault("tastytrade.production_url", ProductionURL)
	v.SetDefault("tastytrade.cert_url", CertURL)
	v.SetDefault("tastytrade.timeout_sec", 30)
	v.SetDefault("tastytrade.retry_count", 3)
	v.SetDefault("tastytrade.retry_delay_sec", 2)
	v.SetDefault("tastytrade.rate_per_second", 2)
	v.SetDefault("stream.underlying_timeout_sec", 30)
	v.SetDefault("stream.options_timeout_sec", 120)
	v.SetDefault("stream.options_threshold", 0.5)
	v.SetDefault("stream.keepalive_sec", 60)
	v.SetDefault("stream.handshake_timeout_sec", 15)
	v.SetDefault("stream.aggregation_ms", 0)
	v.SetDefault("stream.candle_lookback_hours", 24)
	v.SetDefault("collect.expiration_count", 1)
	v.SetDefault("collect.workers", 1)
	v.SetDefault("collect.legacy_overrun", false)
	v.SetDefault("tickers", DefaultTickers)
	v.SetDefault("output.directory", "data")
	v.SetDefault("output.format", "csv")
	v.SetDefault("output.archive", false)
	v.SetDefault("output.s3.enabled", false)
	v.SetDefault("output.s3.region", "us-east-1")
	v.SetDefault("output.s3.prefix", "gex")
	v.SetDefault("logging.enabled", false)
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_age_days", 7)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.server", "https://ntfy.sh")
	v.SetDefault("notify.priority", "default")
	v.SetDefault("notify.tags", "chart_with_upwards_trend")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origin", "*")
	v.SetDefault("daemon.interval_min", 15)
	v.SetDefault("daemon.timezone", "America/New_York")
	v.SetDefault("daemon.state_file", "data/.daemon-state")
	v.SetDefault("daemon.run_on_startup", true)

	// Environment variable support
	v.SetEnvPrefix("TASTYGEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Explicitly bind nested keys to the well-known env vars
	_ = v.BindEnv("tastytrade.username", "TASTYGEX_TASTYTRADE_USERNAME", "TASTYTRADE_USERNAME")
	_ = v.BindEnv("tastytrade.password", "TASTYGEX_TASTYTRADE_PASSWORD", "TASTYTRADE_PASSWORD")
	_ = v.BindEnv("output.directory", "TASTYGEX_OUTPUT_DIRECTORY", "SHARED_DIR")
	_ = v.BindEnv("notify.topic", "TASTYGEX_NOTIFY_TOPIC", "NTFY_TOPIC")
	_ = v.BindEnv("notify.token", "TASTYGEX_NOTIFY_TOKEN", "NTFY_TOKEN")

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// IS_TEST selects production only when it is exactly FALSE.
	if val, ok := os.LookupEnv("IS_TEST"); ok {
		cfg.Tastytrade.IsTest = val != "FALSE"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
