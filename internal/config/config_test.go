package config

import (
	"testing"
	"time"
)

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresInfra(t *testing.T) {
	c := Config{
		App:  AppConfig{Env: "production", Port: 8080},
		Auth: AuthConfig{JWTSecret: "secret", JWTIssuer: "iss", JWTAudience: "aud"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_HOST/REDIS_HOST")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := Config{
		App:  AppConfig{Env: "local", Port: 8080},
		Auth: AuthConfig{JWTSecret: "secret"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Call.TickDuration != 30*time.Second {
		t.Fatalf("expected 30s billing tick default, got %v", c.Call.TickDuration)
	}
	if c.Call.PendingTTL != 60*time.Second {
		t.Fatalf("expected 60s pending TTL default, got %v", c.Call.PendingTTL)
	}
	if c.Call.PollInterval != 3*time.Second {
		t.Fatalf("expected 3s poll interval default, got %v", c.Call.PollInterval)
	}
	if c.Billing.EarningsPerTickMinor != 23 {
		t.Fatalf("expected tariff default 23, got %d", c.Billing.EarningsPerTickMinor)
	}
}

func TestValidate_LocalDefaultsSSLModeWhenDBSet(t *testing.T) {
	c := Config{
		App:  AppConfig{Env: "local", Port: 8080},
		DB:   DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "videocall"},
		Auth: AuthConfig{JWTSecret: "secret"},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_PendingTTLMustExceedPoll(t *testing.T) {
	c := Config{
		App:  AppConfig{Env: "local", Port: 8080},
		Auth: AuthConfig{JWTSecret: "secret"},
		Call: CallConfig{PendingTTL: 2 * time.Second, PollInterval: 3 * time.Second},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error when pending TTL <= poll interval")
	}
}
