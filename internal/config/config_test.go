package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewAppliesDefaults(t *testing.T) {
	cfg := New()
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.Mode != "hosted" {
		t.Fatalf("expected default mode hosted, got %q", cfg.Server.Mode)
	}
	if cfg.Ingress.MaxRequests != 120 {
		t.Fatalf("expected default ingress max requests 120, got %d", cfg.Ingress.MaxRequests)
	}
	if cfg.Cron.TokenRefreshSpec != "*/15 * * * *" {
		t.Fatalf("expected default token refresh cron spec, got %q", cfg.Cron.TokenRefreshSpec)
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9090
database:
  dsn: "postgres://localhost/gw"
vendors:
  fortnox:
    client_id: abc123
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg := New()
	if err := loadFromFile(path, cfg); err != nil {
		t.Fatalf("loadFromFile: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Database.DSN != "postgres://localhost/gw" {
		t.Fatalf("expected dsn override, got %q", cfg.Database.DSN)
	}
	if cfg.Vendors.Fortnox.ClientID != "abc123" {
		t.Fatalf("expected fortnox client id override, got %q", cfg.Vendors.Fortnox.ClientID)
	}
	// Defaults not touched by the file stay intact.
	if cfg.Server.MaxBodyBytes != 16<<20 {
		t.Fatalf("expected untouched default max body bytes, got %d", cfg.Server.MaxBodyBytes)
	}
}

func TestLoadFromFileMissingIsNotAnError(t *testing.T) {
	cfg := New()
	if err := loadFromFile(filepath.Join(t.TempDir(), "missing.yaml"), cfg); err != nil {
		t.Fatalf("missing config file should be a no-op, got %v", err)
	}
}

func TestApplyVendorEnvOverridesReadsPrefixedVars(t *testing.T) {
	t.Setenv("FORTNOX_CLIENT_ID", "env-client-id")
	t.Setenv("FORTNOX_CLIENT_SECRET", "env-secret")
	t.Setenv("BOKIO_STATIC_ACCESS_TOKEN", "env-static-token")

	cfg := New()
	applyVendorEnvOverrides(cfg)

	if cfg.Vendors.Fortnox.ClientID != "env-client-id" {
		t.Fatalf("expected fortnox client id from env, got %q", cfg.Vendors.Fortnox.ClientID)
	}
	if cfg.Vendors.Fortnox.ClientSecret != "env-secret" {
		t.Fatalf("expected fortnox client secret from env, got %q", cfg.Vendors.Fortnox.ClientSecret)
	}
	if cfg.Vendors.Bokio.StaticAccessToken != "env-static-token" {
		t.Fatalf("expected bokio static token from env, got %q", cfg.Vendors.Bokio.StaticAccessToken)
	}
}

func TestServerConfigRequestTimeoutDefault(t *testing.T) {
	cfg := ServerConfig{}
	if cfg.RequestTimeout().Seconds() != 60 {
		t.Fatalf("expected default 60s request timeout, got %v", cfg.RequestTimeout())
	}
	cfg.RequestTimeoutS = 30
	if cfg.RequestTimeout().Seconds() != 30 {
		t.Fatalf("expected configured 30s request timeout, got %v", cfg.RequestTimeout())
	}
}

func TestServerConfigAddr(t *testing.T) {
	cfg := ServerConfig{Host: "0.0.0.0", Port: 8080}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("unexpected addr: %q", cfg.Addr())
	}
}
