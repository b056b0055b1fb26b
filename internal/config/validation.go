package config

import (
	"fmt"
	"regexp"
	"strings"
)

// FieldError is one invalid setting.
type FieldError struct {
	Field   string
	Message string
}

// ValidationErrors collects all validation errors
type ValidationErrors struct {
	Fields         []FieldError
	InvalidTickers []string
}

// HasErrors returns true if any validation errors exist
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Fields) > 0 || len(e.InvalidTickers) > 0
}

func (e *ValidationErrors) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Error formats all validation errors into a clear message
func (e *ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")

	if len(e.Fields) > 0 {
		sb.WriteString("\nInvalid settings:\n")
		for _, f := range e.Fields {
			sb.WriteString(fmt.Sprintf("  - %s: %s\n", f.Field, f.Message))
		}
	}

	if len(e.InvalidTickers) > 0 {
		sb.WriteString("\nInvalid tickers:\n")
		for _, t := range e.InvalidTickers {
			sb.WriteString(fmt.Sprintf("  - %q\n", t))
		}
		sb.WriteString("\nTickers are upper-case equity symbols, e.g. SPY\n")
	}

	return sb.String()
}

var tickerPattern = regexp.MustCompile(`^[A-Z]+$`)

// ValidTicker reports whether s looks like an equity symbol the option
// symbol format can carry.
func ValidTicker(s string) bool {
	return tickerPattern.MatchString(s)
}

var validFormats = map[string]bool{"csv": true, "parquet": true}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	errs := &ValidationErrors{}

	for _, t := range c.Tickers {
		if !ValidTicker(t) {
			errs.InvalidTickers = append(errs.InvalidTickers, t)
		}
	}

	if c.Tastytrade.RatePerSecond < 1 {
		errs.add("tastytrade.rate_per_second", "must be >= 1")
	}
	if c.Tastytrade.RetryCount < 0 {
		errs.add("tastytrade.retry_count", "must be >= 0")
	}
	if c.Stream.OptionsThreshold <= 0 || c.Stream.OptionsThreshold > 1 {
		errs.add("stream.options_threshold", "must be in (0, 1], got %g", c.Stream.OptionsThreshold)
	}
	if c.Stream.UnderlyingTimeoutSec < 1 {
		errs.add("stream.underlying_timeout_sec", "must be >= 1")
	}
	if c.Stream.OptionsTimeoutSec < 1 {
		errs.add("stream.options_timeout_sec", "must be >= 1")
	}
	if c.Collect.ExpirationCount < 1 {
		errs.add("collect.expiration_count", "must be >= 1")
	}
	if c.Collect.Workers < 1 {
		errs.add("collect.workers", "must be >= 1")
	}
	if !validFormats[strings.ToLower(c.Output.Format)] {
		errs.add("output.format", "must be csv or parquet, got %q", c.Output.Format)
	}
	if c.Output.Directory == "" {
		errs.add("output.directory", "is required (set SHARED_DIR)")
	}
	if c.Output.S3.Enabled && c.Output.S3.Bucket == "" {
		errs.add("output.s3.bucket", "is required when s3 is enabled")
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs.add("logging.level", "must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	if c.Daemon.IntervalMin < 1 {
		errs.add("daemon.interval_min", "must be >= 1")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// RequireCredentials checks the brokerage login is configured.
func (c *Config) RequireCredentials() error {
	errs := &ValidationErrors{}
	if c.Tastytrade.Username == "" {
		errs.add("tastytrade.username", "is required (set TASTYTRADE_USERNAME)")
	}
	if c.Tastytrade.Password == "" {
		errs.add("tastytrade.password", "is required (set TASTYTRADE_PASSWORD)")
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}
