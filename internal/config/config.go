// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"podcastr/internal/quota"
	"podcastr/internal/ratelimit"
)

// Config holds the environment driven configuration shared by the server,
// worker and scheduler binaries.
type Config struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	BaseURL         string        `env:"BASE_URL" envDefault:"http://localhost:8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`

	// Store backend: "postgres" or "memory".
	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgres"`
	DatabaseURL  string `env:"DATABASE_URL"`

	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`

	// Rate limiter backend: "memory" or "redis".
	RateLimitBackend string        `env:"RATE_LIMIT_BACKEND" envDefault:"memory"`
	ViewRateLimit    int           `env:"VIEW_RATE_LIMIT" envDefault:"100"`
	ViewRateWindow   time.Duration `env:"VIEW_RATE_WINDOW" envDefault:"1m"`
	APIRateLimit     int           `env:"API_RATE_LIMIT" envDefault:"60"`
	APIRateWindow    time.Duration `env:"API_RATE_WINDOW" envDefault:"1m"`

	// Trust X-Forwarded-For when keying anonymous callers.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	QuotaPeriod  string `env:"QUOTA_PERIOD" envDefault:"lifetime"`
	DefaultVoice string `env:"DEFAULT_VOICE" envDefault:"alloy"`

	AuthJWTSecret string `env:"AUTH_JWT_SECRET"`
	AuthIssuer    string `env:"AUTH_ISSUER"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`

	// Blob storage backend: "local" or "s3".
	StorageBackend   string        `env:"STORAGE_BACKEND" envDefault:"local"`
	LocalStoragePath string        `env:"LOCAL_STORAGE_PATH" envDefault:"./data/blobs"`
	MaxUploadBytes   int64         `env:"MAX_UPLOAD_BYTES" envDefault:"52428800"`
	S3Endpoint       string        `env:"S3_ENDPOINT"`
	S3Region         string        `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket         string        `env:"S3_BUCKET"`
	S3AccessKeyID    string        `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey      string        `env:"S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle   bool          `env:"S3_USE_PATH_STYLE" envDefault:"true"`
	S3PresignTTL     time.Duration `env:"S3_PRESIGN_TTL" envDefault:"1h"`

	WorkerConcurrency int           `env:"WORKER_CONCURRENCY" envDefault:"10"`
	BlobSweepSchedule string        `env:"BLOB_SWEEP_SCHEDULE" envDefault:"@every 15m"`
	BlobSweepGrace    time.Duration `env:"BLOB_SWEEP_GRACE" envDefault:"10m"`
	BlobSweepBatch    int           `env:"BLOB_SWEEP_BATCH" envDefault:"100"`
}

// Load parses environment variables into Config and validates them.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	cfg.RateLimitBackend = strings.ToLower(strings.TrimSpace(cfg.RateLimitBackend))
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	cfg.BaseURL = strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.S3Bucket = strings.TrimSpace(cfg.S3Bucket)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreBackend {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	if c.RateLimitBackend != "memory" && c.RateLimitBackend != "redis" {
		errs = append(errs, fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", c.RateLimitBackend))
	}
	if err := c.RateLimitRules().Validate(); err != nil {
		errs = append(errs, err)
	}

	if _, err := quota.ParsePeriod(c.QuotaPeriod); err != nil {
		errs = append(errs, err)
	}

	switch c.StorageBackend {
	case "local":
		if strings.TrimSpace(c.LocalStoragePath) == "" {
			errs = append(errs, errors.New("LOCAL_STORAGE_PATH is required for local storage"))
		}
	case "s3":
		if c.S3Bucket == "" || c.S3AccessKeyID == "" || c.S3SecretKey == "" {
			errs = append(errs, errors.New("S3_BUCKET, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required for s3 storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend))
	}

	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be > 0"))
	}

	return errors.Join(errs...)
}

// ValidateServer checks the settings only the HTTP server needs.
func (c *Config) ValidateServer() error {
	if c.AuthJWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}
	return nil
}

// RateLimitRules returns the named limiter rules.
func (c *Config) RateLimitRules() ratelimit.Rules {
	return ratelimit.Rules{
		ratelimit.IncrementPodcastViews: {Limit: c.ViewRateLimit, Window: c.ViewRateWindow},
		ratelimit.API:                   {Limit: c.APIRateLimit, Window: c.APIRateWindow},
	}
}

// Period returns the configured quota period. Load has already validated it.
func (c *Config) Period() quota.Period {
	p, err := quota.ParsePeriod(c.QuotaPeriod)
	if err != nil {
		return quota.Lifetime{}
	}
	return p
}
