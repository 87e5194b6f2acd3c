// Package config loads the service configuration from the environment and an
// optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config is the service configuration read from the environment and an optional .env file.
type Config struct {
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is the deployment environment; "production" makes JWT_SECRET mandatory.
	Env string `mapstructure:"APP_ENV"`
	// DatabaseURL is the Postgres DSN. Empty runs on the in-memory directory.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// RedisAddr selects the shared Redis store. Empty keeps state in process.
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	RedisKeyPrefix string `mapstructure:"REDIS_KEY_PREFIX"`

	JWTSecret string `mapstructure:"JWT_SECRET"`
	JWTIssuer string `mapstructure:"JWT_ISSUER"`

	ResetCodeTTL           string `mapstructure:"RESET_CODE_TTL"`
	ResetTokenTTL          string `mapstructure:"RESET_TOKEN_TTL"`
	ResetRequestLimit      int    `mapstructure:"RESET_REQUEST_LIMIT"`
	ResetRequestWindow     string `mapstructure:"RESET_REQUEST_WINDOW"`
	ResetVerifyMaxAttempts int    `mapstructure:"RESET_VERIFY_MAX_ATTEMPTS"`

	// HTTPRateLimit is requests per client IP per HTTPRateWindow; 0 disables it.
	HTTPRateLimit  int    `mapstructure:"HTTP_RATE_LIMIT"`
	HTTPRateWindow string `mapstructure:"HTTP_RATE_WINDOW"`
	// TrustForwarded keys the HTTP limiter on X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that sets those headers itself.
	TrustForwarded bool `mapstructure:"TRUST_FORWARDED"`

	// BcryptCost is the bcrypt cost factor (4–31).
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	SMTPHost string `mapstructure:"SMTP_HOST"`
	SMTPPort int    `mapstructure:"SMTP_PORT"`
	SMTPUser string `mapstructure:"SMTP_USER"`
	SMTPPass string `mapstructure:"SMTP_PASS"`
	SMTPFrom string `mapstructure:"SMTP_FROM"`

	// AMQPURL enables the notification retry queue.
	AMQPURL           string `mapstructure:"AMQP_URL"`
	AMQPQueue         string `mapstructure:"AMQP_QUEUE"`
	NotifyMaxAttempts int    `mapstructure:"NOTIFY_MAX_ATTEMPTS"`
	NotifyRetryDelay  string `mapstructure:"NOTIFY_RETRY_DELAY"`

	// SeedEmail and SeedPassword create one account at startup (in-memory
	// directory) or through "migrate seed" (Postgres).
	SeedEmail    string `mapstructure:"SEED_EMAIL"`
	SeedPassword string `mapstructure:"SEED_PASSWORD"`

	// MaskUnknownAccounts answers reset requests for unknown emails as if they succeeded.
	MaskUnknownAccounts bool `mapstructure:"MASK_UNKNOWN_ACCOUNTS"`
}

const devJWTSecret = "dev-reset-secret-change-me"

// Load reads .env (if present), then builds and validates Config from the
// environment. Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_KEY_PREFIX", "reset:")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "echarter-auth")
	v.SetDefault("RESET_CODE_TTL", "5m")
	v.SetDefault("RESET_TOKEN_TTL", "10m")
	v.SetDefault("RESET_REQUEST_LIMIT", 5)
	v.SetDefault("RESET_REQUEST_WINDOW", "1h")
	v.SetDefault("RESET_VERIFY_MAX_ATTEMPTS", 5)
	v.SetDefault("HTTP_RATE_LIMIT", 60)
	v.SetDefault("HTTP_RATE_WINDOW", "1m")
	v.SetDefault("TRUST_FORWARDED", false)
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASS", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("AMQP_URL", "")
	v.SetDefault("AMQP_QUEUE", "reset-notifications")
	v.SetDefault("NOTIFY_MAX_ATTEMPTS", 5)
	v.SetDefault("NOTIFY_RETRY_DELAY", "30s")
	v.SetDefault("SEED_EMAIL", "")
	v.SetDefault("SEED_PASSWORD", "")
	v.SetDefault("MASK_UNKNOWN_ACCOUNTS", true)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		if cfg.Env == "production" {
			return nil, errors.New("config: JWT_SECRET must be set when APP_ENV=production")
		}
		cfg.JWTSecret = devJWTSecret
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.ResetRequestLimit < 0 || cfg.ResetVerifyMaxAttempts < 0 || cfg.HTTPRateLimit < 0 {
		return nil, errors.New("config: limits must not be negative")
	}
	for key, raw := range map[string]string{
		"RESET_CODE_TTL":       cfg.ResetCodeTTL,
		"RESET_TOKEN_TTL":      cfg.ResetTokenTTL,
		"RESET_REQUEST_WINDOW": cfg.ResetRequestWindow,
		"HTTP_RATE_WINDOW":     cfg.HTTPRateWindow,
		"NOTIFY_RETRY_DELAY":   cfg.NotifyRetryDelay,
	} {
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			return nil, errors.New("config: " + key + " must be a positive duration")
		}
	}

	if (cfg.SeedEmail == "") != (cfg.SeedPassword == "") {
		return nil, errors.New("config: SEED_EMAIL and SEED_PASSWORD must be set together")
	}

	return &cfg, nil
}

// CodeTTL parses ResetCodeTTL. Returns 5m if unset or invalid.
func (c *Config) CodeTTL() time.Duration { return parseOr(c.ResetCodeTTL, 5*time.Minute) }

// TokenTTL parses ResetTokenTTL. Returns 10m if unset or invalid.
func (c *Config) TokenTTL() time.Duration { return parseOr(c.ResetTokenTTL, 10*time.Minute) }

// RequestWindow parses ResetRequestWindow. Returns 1h if unset or invalid.
func (c *Config) RequestWindow() time.Duration { return parseOr(c.ResetRequestWindow, time.Hour) }

// RateWindow parses HTTPRateWindow. Returns 1m if unset or invalid.
func (c *Config) RateWindow() time.Duration { return parseOr(c.HTTPRateWindow, time.Minute) }

// RetryDelay parses NotifyRetryDelay. Returns 30s if unset or invalid.
func (c *Config) RetryDelay() time.Duration { return parseOr(c.NotifyRetryDelay, 30*time.Second) }

// SMTPEnabled reports whether enough is configured to send real email.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

func parseOr(raw string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
