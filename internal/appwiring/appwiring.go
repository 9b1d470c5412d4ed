// Package appwiring builds the collaborators internal/httpapi.Dependencies
// needs from internal/config, shared by cmd/gateway and cmd/edge so neither
// binary duplicates vendor/vault wiring.
package appwiring

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nordicledger/accounting-gateway/internal/config"
	"github.com/nordicledger/accounting-gateway/internal/domain"
	"github.com/nordicledger/accounting-gateway/internal/logging"
	"github.com/nordicledger/accounting-gateway/internal/middleware"
	"github.com/nordicledger/accounting-gateway/internal/oauthdriver"
	"github.com/nordicledger/accounting-gateway/internal/ratelimit"
	"github.com/nordicledger/accounting-gateway/internal/vault"
	"github.com/nordicledger/accounting-gateway/internal/vendorclient"
)

// Per-vendor admission caps. None of the five vendors publish a single
// canonical number; these are conservative defaults sized well under every
// vendor's documented ceiling and are not yet exposed through config.
var (
	FortnoxRateLimit     = ratelimit.Config{MaxRequests: 4, WindowMs: 1000}
	VismaRateLimit       = ratelimit.Config{MaxRequests: 10, WindowMs: 1000}
	BrioxRateLimit       = ratelimit.Config{MaxRequests: 5, WindowMs: 1000}
	BokioRateLimit       = ratelimit.Config{MaxRequests: 5, WindowMs: 1000}
	BjornLundenRateLimit = ratelimit.Config{MaxRequests: 5, WindowMs: 1000}
)

// BuildVendors constructs one oauthdriver.Refresher and, when the vendor has
// credentials configured, one vendorclient.Client per provider.
func BuildVendors(v config.VendorsConfig, log *logging.Logger) (map[domain.Provider]vault.Refresher, map[domain.Provider]*vendorclient.Client, map[domain.Provider]bool) {
	refreshers := make(map[domain.Provider]vault.Refresher)
	clients := make(map[domain.Provider]*vendorclient.Client)
	configured := make(map[domain.Provider]bool)

	httpClient := &http.Client{Timeout: 30 * time.Second}

	register := func(provider domain.Provider, cfg config.VendorOAuthConfig, build func() (vault.Refresher, *vendorclient.Client)) {
		ok := cfg.ClientID != "" || cfg.StaticAccessToken != ""
		configured[provider] = ok
		if !ok {
			log.Info(fmt.Sprintf("%s not configured; skipping", provider))
			return
		}
		r, c := build()
		refreshers[provider] = r
		clients[provider] = c
	}

	register(domain.ProviderFortnox, v.Fortnox, func() (vault.Refresher, *vendorclient.Client) {
		return &oauthdriver.AuthorizationCodeDriver{Vendor: domain.ProviderFortnox, Config: ToClientConfig(v.Fortnox), HTTP: httpClient},
			vendorclient.NewFortnox(httpClient, ratelimit.New(FortnoxRateLimit))
	})
	register(domain.ProviderVisma, v.Visma, func() (vault.Refresher, *vendorclient.Client) {
		return &oauthdriver.AuthorizationCodeDriver{Vendor: domain.ProviderVisma, Config: ToClientConfig(v.Visma), HTTP: httpClient},
			vendorclient.NewVisma(httpClient, ratelimit.New(VismaRateLimit))
	})
	register(domain.ProviderBriox, v.Briox, func() (vault.Refresher, *vendorclient.Client) {
		return &oauthdriver.AuthorizationCodeDriver{Vendor: domain.ProviderBriox, Config: ToClientConfig(v.Briox), HTTP: httpClient},
			vendorclient.NewBriox(httpClient, ratelimit.New(BrioxRateLimit))
	})
	register(domain.ProviderBokio, v.Bokio, func() (vault.Refresher, *vendorclient.Client) {
		return oauthdriver.StaticTokenDriver{}, vendorclient.NewBokio(httpClient, ratelimit.New(BokioRateLimit))
	})
	register(domain.ProviderBjornLunden, v.BjornLunden, func() (vault.Refresher, *vendorclient.Client) {
		return &oauthdriver.ClientCredentialsDriver{Vendor: domain.ProviderBjornLunden, Config: ToClientConfig(v.BjornLunden), HTTP: httpClient},
			vendorclient.NewBjornLunden(httpClient, ratelimit.New(BjornLundenRateLimit))
	})

	return refreshers, clients, configured
}

// ToClientConfig adapts config.VendorOAuthConfig onto oauthdriver.ClientConfig.
func ToClientConfig(v config.VendorOAuthConfig) oauthdriver.ClientConfig {
	return oauthdriver.ClientConfig{
		ClientID:     v.ClientID,
		ClientSecret: v.ClientSecret,
		AuthURL:      v.AuthURL,
		TokenURL:     v.TokenURL,
		RedirectURI:  v.RedirectURI,
		Scopes:       v.Scopes,
	}
}

// DeploymentMode maps the config string onto middleware.DeploymentMode.
func DeploymentMode(mode string) middleware.DeploymentMode {
	if strings.EqualFold(strings.TrimSpace(mode), "self-hosted") {
		return middleware.ModeSelfHosted
	}
	return middleware.ModeHosted
}

// ResolveDSN picks the DSN in priority order: explicit flag, DATABASE_URL
// env, then the config file's database.dsn.
func ResolveDSN(flagDSN string, cfg *config.Config) string {
	if trimmed := strings.TrimSpace(flagDSN); trimmed != "" {
		return trimmed
	}
	if envDSN := strings.TrimSpace(os.Getenv("DATABASE_URL")); envDSN != "" {
		return envDSN
	}
	return strings.TrimSpace(cfg.Database.DSN)
}

// DecodeVaultRootKey accepts a base64-encoded 32-byte AES-256 key. An empty
// string is tolerated (development mode only; internal/vault.New documents
// this).
func DecodeVaultRootKey(value string) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("VAULT_ROOT_KEY: invalid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("VAULT_ROOT_KEY: expected 32 bytes, got %d", len(key))
	}
	return key, nil
}

// DecodeSessionJWTSecret validates the self-hosted-mode session-token
// signing secret. An empty string disables the fallback (nil, no error); a
// configured secret must be at least 32 bytes so it carries enough entropy
// for HS256.
func DecodeSessionJWTSecret(value string) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if len(trimmed) < 32 {
		return nil, fmt.Errorf("SESSION_JWT_SECRET: must be at least 32 bytes, got %d", len(trimmed))
	}
	return []byte(trimmed), nil
}
