// Package config loads client configuration from environment variables and
// an optional config file, with validated defaults for every setting.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/scholarly-go/openalex-client/pkg/client"
)

// Config is the full configuration surface of the client engine. Every key
// can be set via OPENALEX_-prefixed environment variables (e.g.
// OPENALEX_MAX_RETRIES) or an openalex.yaml config file.
type Config struct {
	BaseURL   string `mapstructure:"base_url"`
	Email     string `mapstructure:"email"`
	APIKey    string `mapstructure:"api_key"`
	UserAgent string `mapstructure:"user_agent"`

	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	RateLimitBuffer   float64 `mapstructure:"rate_limit_buffer"`

	MaxRetries           int     `mapstructure:"max_retries"`
	RetryBackoffFactor   float64 `mapstructure:"retry_backoff_factor"`
	RetryableStatusCodes []int   `mapstructure:"retryable_status_codes"`

	MaxConcurrentRequests int `mapstructure:"max_concurrent_requests"`
	ConnectTimeoutSeconds int `mapstructure:"connect_timeout_seconds"`
	TotalTimeoutSeconds   int `mapstructure:"total_timeout_seconds"`

	DefaultPerPage int `mapstructure:"default_per_page"`
	BatchChunkSize int `mapstructure:"batch_chunk_size"`

	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`

	RedisAddr       string `mapstructure:"redis_addr"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
}

// Default returns the configuration with all documented defaults applied.
func Default() Config {
	return Config{
		BaseURL:               "https://api.openalex.org",
		UserAgent:             "openalex-client/1.0",
		RequestsPerSecond:     10,
		RateLimitBuffer:       0.9,
		MaxRetries:            3,
		RetryBackoffFactor:    0.5,
		RetryableStatusCodes:  client.DefaultRetryableStatusCodes,
		MaxConcurrentRequests: 10,
		ConnectTimeoutSeconds: 10,
		TotalTimeoutSeconds:   30,
		DefaultPerPage:        25,
		BatchChunkSize:        100,
		LogLevel:              "info",
		CacheTTLSeconds:       300,
	}
}

// Load reads configuration from the environment and, when present, an
// openalex.yaml file in the working directory. Environment variables win
// over file values; both win over defaults.
func Load() (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("base_url", def.BaseURL)
	v.SetDefault("email", def.Email)
	v.SetDefault("api_key", def.APIKey)
	v.SetDefault("user_agent", def.UserAgent)
	v.SetDefault("requests_per_second", def.RequestsPerSecond)
	v.SetDefault("rate_limit_buffer", def.RateLimitBuffer)
	v.SetDefault("max_retries", def.MaxRetries)
	v.SetDefault("retry_backoff_factor", def.RetryBackoffFactor)
	v.SetDefault("retryable_status_codes", def.RetryableStatusCodes)
	v.SetDefault("max_concurrent_requests", def.MaxConcurrentRequests)
	v.SetDefault("connect_timeout_seconds", def.ConnectTimeoutSeconds)
	v.SetDefault("total_timeout_seconds", def.TotalTimeoutSeconds)
	v.SetDefault("default_per_page", def.DefaultPerPage)
	v.SetDefault("batch_chunk_size", def.BatchChunkSize)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_pretty", def.LogPretty)
	v.SetDefault("redis_addr", def.RedisAddr)
	v.SetDefault("cache_ttl_seconds", def.CacheTTLSeconds)

	v.SetEnvPrefix("OPENALEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("openalex")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive (got %v)", c.RequestsPerSecond)
	}
	if c.RateLimitBuffer <= 0 || c.RateLimitBuffer > 1 {
		return fmt.Errorf("rate_limit_buffer must be in (0, 1] (got %v)", c.RateLimitBuffer)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0 (got %d)", c.MaxRetries)
	}
	if c.RetryBackoffFactor < 0 {
		return fmt.Errorf("retry_backoff_factor must be >= 0 (got %v)", c.RetryBackoffFactor)
	}
	if c.MaxConcurrentRequests < 1 {
		return fmt.Errorf("max_concurrent_requests must be >= 1 (got %d)", c.MaxConcurrentRequests)
	}
	if c.DefaultPerPage < 1 || c.DefaultPerPage > 200 {
		return fmt.Errorf("default_per_page must be in 1..200 (got %d)", c.DefaultPerPage)
	}
	if c.BatchChunkSize < 1 {
		return fmt.Errorf("batch_chunk_size must be >= 1 (got %d)", c.BatchChunkSize)
	}
	return nil
}

// ClientConfig maps the loaded configuration onto the HTTP client's config.
// The Redis connection, when enabled, is wired up by the caller.
func (c *Config) ClientConfig() client.Config {
	return client.Config{
		BaseURL:              c.BaseURL,
		Email:                c.Email,
		APIKey:               c.APIKey,
		UserAgent:            c.UserAgent,
		RequestsPerSecond:    c.RequestsPerSecond,
		RateLimitBuffer:      c.RateLimitBuffer,
		MaxRetries:           c.MaxRetries,
		RetryBackoffFactor:   c.RetryBackoffFactor,
		RetryableStatusCodes: c.RetryableStatusCodes,
		ConnectTimeout:       time.Duration(c.ConnectTimeoutSeconds) * time.Second,
		TotalTimeout:         time.Duration(c.TotalTimeoutSeconds) * time.Second,
		CacheTTL:             time.Duration(c.CacheTTLSeconds) * time.Second,
	}
}
