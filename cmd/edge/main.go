// Command edge is the lightweight façade deployment mode spec.md §1
// describes: the same httpapi.Dependencies wiring as cmd/gateway, minus the
// cron sweeps, served over plain net/http — suited to a per-request edge
// function runtime where a long-lived background scheduler has nowhere to
// live. Database migrations are never run here; an operator runs cmd/gateway
// (or the adapter's own migration tooling) once per environment instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nordicledger/accounting-gateway/internal/appwiring"
	"github.com/nordicledger/accounting-gateway/internal/config"
	"github.com/nordicledger/accounting-gateway/internal/consent"
	"github.com/nordicledger/accounting-gateway/internal/database"
	"github.com/nordicledger/accounting-gateway/internal/database/memory"
	"github.com/nordicledger/accounting-gateway/internal/database/postgres"
	"github.com/nordicledger/accounting-gateway/internal/gateway"
	"github.com/nordicledger/accounting-gateway/internal/httpapi"
	"github.com/nordicledger/accounting-gateway/internal/logging"
	"github.com/nordicledger/accounting-gateway/internal/mapper"
	"github.com/nordicledger/accounting-gateway/internal/middleware"
	"github.com/nordicledger/accounting-gateway/internal/ratelimit"
	"github.com/nordicledger/accounting-gateway/internal/syncengine"
	"github.com/nordicledger/accounting-gateway/internal/vault"
	"github.com/nordicledger/accounting-gateway/internal/version"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides config/env; in-memory storage when empty)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New("accounting-gateway-edge", cfg.Logging.Level, cfg.Logging.Format)

	dsnVal := appwiring.ResolveDSN(*dsn, cfg)
	var db database.Adapter
	if dsnVal != "" {
		store, err := postgres.Open(context.Background(), postgres.Config{
			DSN:             dsnVal,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetimeDuration(),
		})
		if err != nil {
			log.Fatalf("connect to postgres: %v", err)
		}
		defer store.Close()
		db = store
	} else {
		db = memory.New()
	}

	rootKey, err := appwiring.DecodeVaultRootKey(cfg.Security.VaultRootKeyBase64)
	if err != nil {
		log.Fatalf("decode vault root key: %v", err)
	}
	v := vault.New(db, rootKey)

	sessionKey, err := appwiring.DecodeSessionJWTSecret(cfg.Security.SessionJWTSecret)
	if err != nil {
		log.Fatalf("decode session jwt secret: %v", err)
	}

	refreshers, clients, vendorConfigured := appwiring.BuildVendors(cfg.Vendors, log)
	gw := gateway.New(mapper.NewRegistry(), clients)

	deps := httpapi.Dependencies{
		DB:         db,
		Consents:   consent.New(db, v),
		Gateway:    gw,
		SyncEngine: syncengine.New(db, gw, log),
		Vault:      v,
		Refreshers: refreshers,
		Vendors:    httpapi.VendorConfig{Configured: vendorConfigured},
		Mode:       appwiring.DeploymentMode(cfg.Server.Mode),
		Logger:       log,
		LegacyAPIKey: cfg.Security.LegacyAPIKey,
		LegacyTenant: cfg.Security.LegacyTenantID,
		SessionJWTKey: sessionKey,
		CORS: middleware.CORSConfig{
			AllowedOrigins:   cfg.CORS.AllowedOrigins,
			AllowedMethods:   cfg.CORS.AllowedMethods,
			AllowedHeaders:   cfg.CORS.AllowedHeaders,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAgeSeconds:    cfg.CORS.MaxAgeSeconds,
		},
		IngressRate:    ratelimit.Config{MaxRequests: cfg.Ingress.MaxRequests, WindowMs: cfg.Ingress.WindowMs},
		RequestTimeout: cfg.Server.RequestTimeout(),
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Version:        version.Version,
		StartedAt:      time.Now().UTC(),
	}
	router := httpapi.NewRouter(deps)

	listenAddr := strings.TrimSpace(*addr)
	if listenAddr == "" {
		listenAddr = cfg.Server.Addr()
	}
	log.Info(fmt.Sprintf("edge facade listening on %s", listenAddr))
	if err := http.ListenAndServe(listenAddr, router); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
