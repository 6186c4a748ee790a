package config

import (
	"testing"
	"time"
)

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(nil))
	if err != nil {
		t.Fatalf("FromLookup: %v", err)
	}
	if cfg.HTTPAddr != "0.0.0.0:8431" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.SessionTTL != 24*time.Hour || cfg.OtpTTL != 15*time.Minute {
		t.Errorf("ttl defaults = %v / %v", cfg.SessionTTL, cfg.OtpTTL)
	}
	if cfg.AdminSetupKey != "" {
		t.Errorf("setup key must default to empty, got %q", cfg.AdminSetupKey)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Shopify.APIVersion != "2024-01" {
		t.Errorf("api version = %q", cfg.Shopify.APIVersion)
	}
	if !cfg.AutoMigrate || cfg.GuardListWrites {
		t.Errorf("unexpected flags: automigrate=%v guard=%v", cfg.AutoMigrate, cfg.GuardListWrites)
	}
}

func TestOverrides(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		"LOG_DEV":                "1",
		"SESSION_TTL":            "2h",
		"DATABASE_MAX_CONNS":     "3",
		"SHOPIFY_WEBHOOK_SECRET": " s3cret ",
		"PASSWORD_HASHER":        "BCRYPT",
		"GUARD_LIST_WRITES":      "true",
		"DATABASE_SEARCH_PATH":   "registry",
	}))
	if err != nil {
		t.Fatalf("FromLookup: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("dev log level = %q", cfg.Log.Level)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.DB.MaxConns != 3 {
		t.Errorf("MaxConns = %d", cfg.DB.MaxConns)
	}
	if cfg.DB.SearchPath != "registry" {
		t.Errorf("SearchPath = %q", cfg.DB.SearchPath)
	}
	if cfg.Shopify.WebhookSecret != "s3cret" {
		t.Errorf("secret not trimmed: %q", cfg.Shopify.WebhookSecret)
	}
	if cfg.PasswordHasher != "bcrypt" || !cfg.GuardListWrites {
		t.Errorf("hasher=%q guard=%v", cfg.PasswordHasher, cfg.GuardListWrites)
	}
}

func TestInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"bad int":      {"DATABASE_MAX_CONNS": "many"},
		"bad duration": {"OTP_TTL": "soon"},
		"bad hasher":   {"PASSWORD_HASHER": "md5"},
		"zero ttl":     {"SESSION_TTL": "0s"},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := FromLookup(lookupFrom(m)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
