package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.RedisKeyPrefix != "reset:" {
		t.Errorf("RedisKeyPrefix = %q, want reset:", cfg.RedisKeyPrefix)
	}
	if cfg.JWTIssuer != "echarter-auth" {
		t.Errorf("JWTIssuer = %q", cfg.JWTIssuer)
	}
	if cfg.JWTSecret != devJWTSecret {
		t.Errorf("JWTSecret should fall back to the dev secret outside production")
	}
	if cfg.CodeTTL() != 5*time.Minute || cfg.TokenTTL() != 10*time.Minute {
		t.Errorf("TTLs = %v/%v, want 5m/10m", cfg.CodeTTL(), cfg.TokenTTL())
	}
	if cfg.ResetRequestLimit != 5 || cfg.RequestWindow() != time.Hour {
		t.Errorf("request limit = %d per %v", cfg.ResetRequestLimit, cfg.RequestWindow())
	}
	if cfg.ResetVerifyMaxAttempts != 5 {
		t.Errorf("ResetVerifyMaxAttempts = %d, want 5", cfg.ResetVerifyMaxAttempts)
	}
	if cfg.HTTPRateLimit != 60 || cfg.RateWindow() != time.Minute {
		t.Errorf("http rate = %d per %v", cfg.HTTPRateLimit, cfg.RateWindow())
	}
	if cfg.BcryptCost != 10 {
		t.Errorf("BcryptCost = %d, want 10", cfg.BcryptCost)
	}
	if cfg.SMTPPort != 587 || cfg.SMTPEnabled() {
		t.Errorf("SMTP port=%d enabled=%v", cfg.SMTPPort, cfg.SMTPEnabled())
	}
	if cfg.AMQPQueue != "reset-notifications" || cfg.NotifyMaxAttempts != 5 {
		t.Errorf("AMQP queue=%q attempts=%d", cfg.AMQPQueue, cfg.NotifyMaxAttempts)
	}
	if !cfg.MaskUnknownAccounts {
		t.Error("MaskUnknownAccounts should default to true")
	}
	if cfg.TrustForwarded {
		t.Error("TrustForwarded should default to false")
	}
	if cfg.RetryDelay() != 30*time.Second {
		t.Errorf("RetryDelay = %v, want 30s", cfg.RetryDelay())
	}
	if cfg.SeedEmail != "" || cfg.SeedPassword != "" {
		t.Error("no seed account by default")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("JWT_SECRET", "s3cret")
	os.Setenv("RESET_CODE_TTL", "2m")
	os.Setenv("RESET_REQUEST_LIMIT", "3")
	os.Setenv("BCRYPT_COST", "12")
	os.Setenv("SMTP_HOST", "smtp.example.com")
	os.Setenv("SMTP_FROM", "noreply@example.com")
	os.Setenv("MASK_UNKNOWN_ACCOUNTS", "false")
	os.Setenv("TRUST_FORWARDED", "true")
	os.Setenv("NOTIFY_RETRY_DELAY", "2m")
	os.Setenv("SEED_EMAIL", "admin@echarter.test")
	os.Setenv("SEED_PASSWORD", "Seed123!")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" || cfg.JWTSecret != "s3cret" {
		t.Errorf("addr=%q secret=%q", cfg.HTTPAddr, cfg.JWTSecret)
	}
	if cfg.CodeTTL() != 2*time.Minute {
		t.Errorf("CodeTTL = %v, want 2m", cfg.CodeTTL())
	}
	if cfg.ResetRequestLimit != 3 || cfg.BcryptCost != 12 {
		t.Errorf("limit=%d cost=%d", cfg.ResetRequestLimit, cfg.BcryptCost)
	}
	if !cfg.SMTPEnabled() {
		t.Error("SMTP should be enabled")
	}
	if cfg.MaskUnknownAccounts {
		t.Error("MaskUnknownAccounts override ignored")
	}
	if !cfg.TrustForwarded || cfg.RetryDelay() != 2*time.Minute {
		t.Errorf("trust=%v retry=%v", cfg.TrustForwarded, cfg.RetryDelay())
	}
	if cfg.SeedEmail != "admin@echarter.test" || cfg.SeedPassword != "Seed123!" {
		t.Errorf("seed = %q/%q", cfg.SeedEmail, cfg.SeedPassword)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"production without secret", map[string]string{"APP_ENV": "production"}, "JWT_SECRET"},
		{"bcrypt cost too low", map[string]string{"BCRYPT_COST": "3"}, "BCRYPT_COST"},
		{"bcrypt cost too high", map[string]string{"BCRYPT_COST": "32"}, "BCRYPT_COST"},
		{"bad code ttl", map[string]string{"RESET_CODE_TTL": "soon"}, "RESET_CODE_TTL"},
		{"zero window", map[string]string{"HTTP_RATE_WINDOW": "0s"}, "HTTP_RATE_WINDOW"},
		{"negative limit", map[string]string{"RESET_REQUEST_LIMIT": "-1"}, "limits"},
		{"bad retry delay", map[string]string{"NOTIFY_RETRY_DELAY": "later"}, "NOTIFY_RETRY_DELAY"},
		{"seed email without password", map[string]string{"SEED_EMAIL": "a@x.com"}, "SEED_PASSWORD"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tc.env {
				os.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.HasPrefix(err.Error(), "config:") || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want config error mentioning %s", err, tc.want)
			}
		})
	}
}

func TestParseOr(t *testing.T) {
	if got := parseOr("", time.Minute); got != time.Minute {
		t.Errorf("empty = %v", got)
	}
	if got := parseOr("-5s", time.Minute); got != time.Minute {
		t.Errorf("negative = %v", got)
	}
	if got := parseOr("90s", time.Minute); got != 90*time.Second {
		t.Errorf("90s = %v", got)
	}
}
