// Package config loads the process-wide settings for govdigest.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pevans/govdigest/discovery"
	"github.com/pevans/govdigest/logging"
)

// Configuration validation errors.
var (
	ErrInvalidContentLength  = errors.New("content_length must be at least 1")
	ErrInvalidDaysAgo        = errors.New("days_ago must be non-negative")
	ErrInvalidRetries        = errors.New("retries must be at least 1")
	ErrInvalidRetryDelay     = errors.New("retry_delay must be non-negative")
	ErrInvalidConcurrency    = errors.New("concurrency must be at least 1")
	ErrInvalidRequestTimeout = errors.New("request_timeout must be positive")
	ErrMissingAddr           = errors.New("addr is required")
	ErrInvalidLogLevel       = errors.New("log.level must be one of: debug, info, warn, error")
	ErrInvalidEnv            = errors.New("invalid environment value")
)

// Config holds every setting read at process start. It is threaded into
// the service and scraper constructors and never read from the
// environment again.
type Config struct {
	ContentLength  int            `yaml:"content_length"`
	DaysAgo        int            `yaml:"days_ago"`
	Addr           string         `yaml:"addr"`
	Retries        int            `yaml:"retries"`
	RetryDelay     time.Duration  `yaml:"retry_delay"`
	Concurrency    int            `yaml:"concurrency"`
	RequestTimeout time.Duration  `yaml:"request_timeout"`
	UserAgent      string         `yaml:"user_agent"`
	AdaptersPath   string         `yaml:"adapters"`
	StatusDSN      string         `yaml:"status_dsn"`
	Log            logging.Config `yaml:"log"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		ContentLength:  discovery.DefaultContentLength,
		DaysAgo:        7,
		Addr:           "127.0.0.1:8000",
		Retries:        3,
		RetryDelay:     2 * time.Second,
		Concurrency:    4,
		RequestTimeout: discovery.DefaultTimeout,
		UserAgent:      discovery.DefaultUserAgent,
		Log:            logging.Config{Level: "info"},
	}
}

// Load builds the configuration with precedence:
// 1. Environment variables (highest priority)
// 2. Configuration file at path, when path is not empty
// 3. Default values (lowest priority)
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnv overrides fields whose variables are set and non-empty.
func (c *Config) applyEnv(getenv func(string) string) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"CONTENT_LENGTH", &c.ContentLength},
		{"DAYS_AGO", &c.DaysAgo},
		{"GOVDIGEST_RETRIES", &c.Retries},
		{"GOVDIGEST_CONCURRENCY", &c.Concurrency},
	}
	for _, e := range ints {
		if v := getenv(e.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s=%q", ErrInvalidEnv, e.key, v)
			}
			*e.dst = n
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"GOVDIGEST_RETRY_DELAY", &c.RetryDelay},
		{"GOVDIGEST_REQUEST_TIMEOUT", &c.RequestTimeout},
	}
	for _, e := range durations {
		if v := getenv(e.key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%w: %s=%q", ErrInvalidEnv, e.key, v)
			}
			*e.dst = d
		}
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"GOVDIGEST_ADDR", &c.Addr},
		{"GOVDIGEST_USER_AGENT", &c.UserAgent},
		{"GOVDIGEST_ADAPTERS", &c.AdaptersPath},
		{"GOVDIGEST_STATUS_DSN", &c.StatusDSN},
		{"LOG_LEVEL", &c.Log.Level},
	}
	for _, e := range strs {
		if v := getenv(e.key); v != "" {
			*e.dst = v
		}
	}

	if v := getenv("LOG_DEVELOPMENT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: LOG_DEVELOPMENT=%q", ErrInvalidEnv, v)
		}
		c.Log.Development = b
	}

	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.ContentLength < 1 {
		return ErrInvalidContentLength
	}
	if c.DaysAgo < 0 {
		return ErrInvalidDaysAgo
	}
	if c.Retries < 1 {
		return ErrInvalidRetries
	}
	if c.RetryDelay < 0 {
		return ErrInvalidRetryDelay
	}
	if c.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidRequestTimeout
	}
	if c.Addr == "" {
		return ErrMissingAddr
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return ErrInvalidLogLevel
	}

	return nil
}
