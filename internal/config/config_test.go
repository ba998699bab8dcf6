package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Port:          "8081",
		JWTSecret:     "0123456789abcdef0123456789abcdef",
		SessionTTL:    12 * time.Hour,
		Users:         "user@example.com:$2a$10$abcdefghijklmnopqrstuv",
		SQLiteDBPath:  t.TempDir() + "/saldo.db",
		SyncBatchSize: 10,
		SyncInterval:  30 * time.Second,
		DataBackend:   "sqlite",
	}
}

func TestValidateValidConfig(t *testing.T) {
	if err := validConfig(t).Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"bad port", func(c *Config) { c.Port = "http" }, "invalid port"},
		{"port out of range", func(c *Config) { c.Port = "70000" }, "invalid port"},
		{"bad backend", func(c *Config) { c.DataBackend = "dynamo" }, "invalid data backend"},
		{"missing jwt secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET is required"},
		{"short jwt secret", func(c *Config) { c.JWTSecret = "short" }, "too short"},
		{"tiny session ttl", func(c *Config) { c.SessionTTL = time.Second }, "session TTL"},
		{"malformed users", func(c *Config) { c.Users = "no-colon-here" }, "LEDGER_USERS"},
		{"bad amqp scheme", func(c *Config) { c.AMQPURL = "http://localhost" }, "AMQP URL scheme"},
		{"empty amqp queue", func(c *Config) { c.AMQPURL = "amqp://localhost"; c.AMQPQueue = "" }, "queue name"},
		{"zero batch size", func(c *Config) { c.SyncBatchSize = 0 }, "sync batch size"},
		{"huge batch size", func(c *Config) { c.SyncBatchSize = 5000 }, "sync batch size"},
		{"tiny sync interval", func(c *Config) { c.SyncInterval = time.Millisecond }, "sync interval"},
		{"supabase without creds", func(c *Config) { c.DataBackend = "supabase" }, "SUPABASE_URL"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig(t)
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tc.wantMsg)
			}
		})
	}
}

func TestValidateCollectsMultipleErrors(t *testing.T) {
	cfg := validConfig(t)
	cfg.Port = "bad"
	cfg.JWTSecret = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "invalid port") || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Errorf("expected both errors reported, got: %v", err)
	}
}
