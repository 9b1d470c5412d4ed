// Package config loads the gateway's configuration from a YAML file (if
// present) with environment-variable overrides, following the teacher's
// config-loading pattern (pkg/config/config.go): godotenv for local .env
// files, envdecode for the "env" struct tags, yaml.v3 for the file form.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string `json:"host" yaml:"host" env:"SERVER_HOST"`
	Port            int    `json:"port" yaml:"port" env:"SERVER_PORT"`
	RequestTimeoutS int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds" env:"SERVER_REQUEST_TIMEOUT_SECONDS"`
	MaxBodyBytes    int64  `json:"max_body_bytes" yaml:"max_body_bytes" env:"SERVER_MAX_BODY_BYTES"`
	// Mode is "hosted" (tenant consents always carry a managed vendor token)
	// or "self-hosted" (callers may supply their own vendor access token,
	// used only when the vault holds no tokens for the consent). See
	// internal/middleware.DeploymentMode.
	Mode string `json:"mode" yaml:"mode" env:"SERVER_MODE"`
}

// DatabaseConfig controls persistence. An empty DSN falls back to the
// in-memory adapter (internal/database/memory), which is what local
// development and internal/httpapi's tests run against.
type DatabaseConfig struct {
	DSN             string `json:"dsn" yaml:"dsn" env:"DATABASE_DSN"`
	MaxOpenConns    int    `json:"max_open_conns" yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `json:"max_idle_conns" yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `json:"conn_max_lifetime_seconds" yaml:"conn_max_lifetime_seconds" env:"DATABASE_CONN_MAX_LIFETIME_SECONDS"`
	MigrateOnStart  bool   `json:"migrate_on_start" yaml:"migrate_on_start" env:"DATABASE_MIGRATE_ON_START"`
	MigrationsPath  string `json:"migrations_path" yaml:"migrations_path" env:"DATABASE_MIGRATIONS_PATH"`
}

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" env:"LOG_LEVEL"`
	Format string `json:"format" yaml:"format" env:"LOG_FORMAT"`
}

// SecurityConfig controls the token vault's root encryption key.
type SecurityConfig struct {
	// VaultRootKeyBase64 is a 32-byte AES-256 key, base64-encoded. Per-vendor
	// sub-keys are derived from it with HKDF (internal/crypto).
	VaultRootKeyBase64 string `json:"vault_root_key" yaml:"vault_root_key" env:"VAULT_ROOT_KEY"`
	// LegacyAPIKey/LegacyTenant configure the single-tenant static API key
	// fallback (internal/middleware.NewLegacyTenantKey), used by self-hosted
	// single-tenant deployments that don't want to provision the tenant/apikey
	// tables at all.
	LegacyAPIKey    string `json:"legacy_api_key" yaml:"legacy_api_key" env:"LEGACY_API_KEY"`
	LegacyTenantID  string `json:"legacy_tenant_id" yaml:"legacy_tenant_id" env:"LEGACY_TENANT_ID"`
	// SessionJWTSecret is the HMAC-SHA256 signing secret for self-hosted-mode
	// session tokens (internal/middleware.APIKeyAuth's sessionKey fallback).
	// Empty disables the fallback even in self-hosted mode.
	SessionJWTSecret string `json:"session_jwt_secret" yaml:"session_jwt_secret" env:"SESSION_JWT_SECRET"`
}

// IngressConfig controls the per-tenant/IP rate limit applied at the edge of
// /api/v1 (internal/middleware.IngressLimiter).
type IngressConfig struct {
	MaxRequests int `json:"max_requests" yaml:"max_requests" env:"INGRESS_MAX_REQUESTS"`
	WindowMs    int `json:"window_ms" yaml:"window_ms" env:"INGRESS_WINDOW_MS"`
}

// CORSConfig mirrors internal/middleware.CORSConfig for file/env configuration.
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins" yaml:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods" yaml:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers" yaml:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials" yaml:"allow_credentials" env:"CORS_ALLOW_CREDENTIALS"`
	MaxAgeSeconds    int      `json:"max_age_seconds" yaml:"max_age_seconds" env:"CORS_MAX_AGE_SECONDS"`
}

// VendorOAuthConfig is one vendor's OAuth client registration. Every field
// maps straight onto internal/oauthdriver.ClientConfig.
type VendorOAuthConfig struct {
	ClientID     string   `json:"client_id" yaml:"client_id"`
	ClientSecret string   `json:"client_secret" yaml:"client_secret"`
	AuthURL      string   `json:"auth_url" yaml:"auth_url"`
	TokenURL     string   `json:"token_url" yaml:"token_url"`
	RedirectURI  string   `json:"redirect_uri" yaml:"redirect_uri"`
	Scopes       []string `json:"scopes" yaml:"scopes"`
	// StaticAccessToken is for Bokio, whose fixed-token driver
	// (internal/oauthdriver.StaticTokenDriver) has no authorization-code leg
	// at all; internal/appwiring.BuildVendors treats a non-empty value as
	// "vendor configured". Björn Lundén uses the client-credentials driver.
	StaticAccessToken string `json:"static_access_token" yaml:"static_access_token"`
}

// VendorsConfig carries one VendorOAuthConfig per supported provider. Fields
// left at the zero value mean that vendor is not configured for this
// deployment (internal/httpapi.VendorConfig.Configured reports this).
type VendorsConfig struct {
	Fortnox     VendorOAuthConfig `json:"fortnox" yaml:"fortnox"`
	Visma       VendorOAuthConfig `json:"visma" yaml:"visma"`
	Briox       VendorOAuthConfig `json:"briox" yaml:"briox"`
	Bokio       VendorOAuthConfig `json:"bokio" yaml:"bokio"`
	BjornLunden VendorOAuthConfig `json:"bjorn_lunden" yaml:"bjorn_lunden"`
}

// CronConfig controls the two scheduled sweeps cmd/gateway registers.
type CronConfig struct {
	TokenRefreshSpec string `json:"token_refresh_spec" yaml:"token_refresh_spec" env:"CRON_TOKEN_REFRESH_SPEC"`
	PurgeSpec        string `json:"purge_spec" yaml:"purge_spec" env:"CRON_PURGE_SPEC"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	Security SecurityConfig `json:"security" yaml:"security"`
	Ingress  IngressConfig  `json:"ingress" yaml:"ingress"`
	CORS     CORSConfig     `json:"cors" yaml:"cors"`
	Vendors  VendorsConfig  `json:"vendors" yaml:"vendors"`
	Cron     CronConfig     `json:"cron" yaml:"cron"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0", Port: 8080,
			RequestTimeoutS: 60, MaxBodyBytes: 16 << 20,
			Mode: "hosted",
		},
		Database: DatabaseConfig{
			MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: 300,
			MigrateOnStart: true, MigrationsPath: "internal/database/postgres/migrations",
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Ingress: IngressConfig{MaxRequests: 120, WindowMs: 60_000},
		CORS:    CORSConfig{},
		Vendors: VendorsConfig{},
		Cron: CronConfig{
			TokenRefreshSpec: "*/15 * * * *",
			PurgeSpec:        "0 3 * * *",
		},
	}
}

// Load loads configuration from file (if present) and environment variables,
// in that order — env always wins, matching the teacher's Load().
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		_ = loadFromFile("configs/config.yaml", cfg)
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	applyVendorEnvOverrides(cfg)
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyVendorEnvOverrides lets a deployment wire vendor credentials purely
// through the environment without a config file, since a YAML map of five
// vendor client-secrets is an awkward thing to hand-author as env vars under
// envdecode's flat tag model.
func applyVendorEnvOverrides(cfg *Config) {
	apply := func(v *VendorOAuthConfig, prefix string) {
		if id := os.Getenv(prefix + "_CLIENT_ID"); id != "" {
			v.ClientID = id
		}
		if secret := os.Getenv(prefix + "_CLIENT_SECRET"); secret != "" {
			v.ClientSecret = secret
		}
		if redirect := os.Getenv(prefix + "_REDIRECT_URI"); redirect != "" {
			v.RedirectURI = redirect
		}
		if token := os.Getenv(prefix + "_STATIC_ACCESS_TOKEN"); token != "" {
			v.StaticAccessToken = token
		}
	}
	apply(&cfg.Vendors.Fortnox, "FORTNOX")
	apply(&cfg.Vendors.Visma, "VISMA")
	apply(&cfg.Vendors.Briox, "BRIOX")
	apply(&cfg.Vendors.Bokio, "BOKIO")
	apply(&cfg.Vendors.BjornLunden, "BJORN_LUNDEN")
}

// ConnMaxLifetimeDuration is a convenience accessor; DatabaseConfig stores
// plain seconds so it round-trips cleanly through YAML/env.
func (c DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(c.ConnMaxLifetime) * time.Second
}

// RequestTimeout returns the configured request timeout, defaulting to 60s.
func (c ServerConfig) RequestTimeout() time.Duration {
	if c.RequestTimeoutS <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.RequestTimeoutS) * time.Second
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
