package config_test

import (
	"testing"
	"time"

	"github.com/sakay-ph/payments-api/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":        "postgres://localhost:5432/sakay?sslmode=disable",
		"REDIS_URL":           "redis://localhost:6379/0",
		"PAYMONGO_SECRET_KEY": "sk_test_abc",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(baseEnv())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.HTTPAddr() != ":8080" {
		t.Fatalf("unexpected port %q addr %q", cfg.Port, cfg.HTTPAddr())
	}
	if cfg.CurrencyCode != "PHP" {
		t.Fatalf("unexpected currency %q", cfg.CurrencyCode)
	}
	if cfg.PaymongoBaseURL != "https://api.paymongo.com" {
		t.Fatalf("unexpected base url %q", cfg.PaymongoBaseURL)
	}
	if cfg.SessionTTL != time.Hour {
		t.Fatalf("unexpected session ttl %v", cfg.SessionTTL)
	}
	if cfg.WebhookDedupTTL != 24*time.Hour {
		t.Fatalf("unexpected dedup ttl %v", cfg.WebhookDedupTTL)
	}
	if cfg.PaymongoWebhookSecret != "" {
		t.Fatalf("webhook secret should default to empty")
	}
}

func TestLoadRequiredVariables(t *testing.T) {
	for _, missing := range []string{"DATABASE_URL", "REDIS_URL", "PAYMONGO_SECRET_KEY"} {
		env := baseEnv()
		env[missing] = ""
		if _, err := config.LoadForTests(env); err == nil {
			t.Fatalf("expected error when %s is missing", missing)
		}
	}
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["PORT"] = "9999"
	env["PAYMENT_SESSION_TTL"] = "30m"
	env["CORS_ALLOWED_ORIGINS"] = "https://app.sakay.ph, https://staging.sakay.ph"
	cfg, err := config.LoadForTests(env)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr() != ":9999" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr())
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Fatalf("unexpected session ttl %v", cfg.SessionTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://staging.sakay.ph" {
		t.Fatalf("unexpected origins %#v", cfg.CORSAllowedOrigins)
	}
}
