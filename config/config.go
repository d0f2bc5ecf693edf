// Package config holds collector configuration and environment helpers.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds collector configuration.
type Config struct {
	BaseURL    string // detail pages live under {BaseURL}/products/{id}
	TagBaseURL string // tag API lives under {TagBaseURL}/api2/goods/{id}/tags

	IDFile string // identifier CSV, header row, first column

	DatabaseURL string // Postgres sink when set
	Table       string // target table for this product category
	OutputFile  string // CSV sink used when DatabaseURL is empty

	Timeout    time.Duration // detail request timeout
	TagTimeout time.Duration // tag request timeout

	Workers int // 1 = strictly sequential (default, keeps the pacing signature)

	RotateMin int // session rotation threshold lower bound
	RotateMax int // session rotation threshold upper bound

	CooldownHTTP      time.Duration // cooldown after a 429/403 block signal
	CooldownPage      time.Duration // cooldown after a block-page signature
	TransportRecovery time.Duration // fixed sleep after a transport error

	// Optional bounded retry of the same identifier on transport errors.
	// 0 keeps the skip-after-one-failure behavior.
	TransportRetries int
	RetryBackoff     time.Duration
	RetryBackoffMax  time.Duration

	RateLimit float64 // hard ceiling in requests/second, 0 disables

	DedupeSize int // within-run duplicate-identifier cache size

	MetricsAddr string // Prometheus listen address, empty disables
	Verbose     bool
}

// DefaultConfig returns conservative defaults for the target site.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "https://www.musinsa.com",
		TagBaseURL:        "https://goods-detail.musinsa.com",
		IDFile:            "data/goods_ids.csv",
		Table:             "product_top",
		OutputFile:        "output/products.csv",
		Timeout:           10 * time.Second,
		TagTimeout:        5 * time.Second,
		Workers:           1,
		RotateMin:         40,
		RotateMax:         60,
		CooldownHTTP:      180 * time.Second,
		CooldownPage:      120 * time.Second,
		TransportRecovery: 5 * time.Second,
		TransportRetries:  0,
		RetryBackoff:      2 * time.Second,
		RetryBackoffMax:   30 * time.Second,
		RateLimit:         4,
		DedupeSize:        4096,
		MetricsAddr:       "",
		Verbose:           false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	for _, base := range []struct {
		name  string
		value string
	}{
		{"base URL", c.BaseURL},
		{"tag base URL", c.TagBaseURL},
	} {
		if base.value == "" {
			return fmt.Errorf("%s cannot be empty", base.name)
		}
		parsed, err := url.Parse(base.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", base.name, err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("%s must include a host", base.name)
		}
	}

	if c.IDFile == "" {
		return fmt.Errorf("identifier file cannot be empty")
	}
	if c.Table == "" {
		return fmt.Errorf("table cannot be empty")
	}
	if c.DatabaseURL == "" && c.OutputFile == "" {
		return fmt.Errorf("either database URL or output file must be set")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.TagTimeout <= 0 {
		return fmt.Errorf("tag timeout must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.RotateMin <= 0 {
		return fmt.Errorf("rotate min must be positive")
	}
	if c.RotateMax < c.RotateMin {
		return fmt.Errorf("rotate max (%d) cannot be below rotate min (%d)", c.RotateMax, c.RotateMin)
	}
	if c.CooldownHTTP < 0 || c.CooldownPage < 0 {
		return fmt.Errorf("cooldowns cannot be negative")
	}
	if c.TransportRecovery < 0 {
		return fmt.Errorf("transport recovery cannot be negative")
	}
	if c.TransportRetries < 0 {
		return fmt.Errorf("transport retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit cannot be negative")
	}
	if c.DedupeSize <= 0 {
		return fmt.Errorf("dedupe size must be positive")
	}

	return nil
}

// LoadDotenv reads a .env file from the working directory if one exists.
// Missing files are not an error; real environment variables win.
func LoadDotenv() {
	_ = godotenv.Load()
}

// EnvString returns the value of key and whether it was set.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses an integer environment variable.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, true, nil
}

// EnvDuration parses a duration environment variable (e.g. "90s").
func EnvDuration(key string) (time.Duration, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", key, err)
	}
	return value, true, nil
}
