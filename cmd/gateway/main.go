// Command gateway is the hosted entry point: it wires every package under
// internal/ into one HTTP server, runs embedded migrations against Postgres
// (or falls back to the in-memory adapter when no DSN is configured), and
// registers the two background cron sweeps spec.md §6 describes. Structure
// follows the teacher's cmd/appserver/main.go (flag parsing, DB-or-memory
// branching, graceful shutdown); the HTTP server timeout config is adapted
// from the teacher's own cmd/gateway/main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nordicledger/accounting-gateway/internal/appwiring"
	"github.com/nordicledger/accounting-gateway/internal/config"
	"github.com/nordicledger/accounting-gateway/internal/consent"
	"github.com/nordicledger/accounting-gateway/internal/database"
	"github.com/nordicledger/accounting-gateway/internal/database/memory"
	"github.com/nordicledger/accounting-gateway/internal/database/postgres"
	"github.com/nordicledger/accounting-gateway/internal/domain"
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

// purgeCreatedOlderThanDays/purgeInactiveOlderThanDays implement spec.md §6's
// purge policy: an unaccepted consent ages out after 30 days, a
// revoked/inactive one after 180.
const (
	purgeCreatedOlderThanDays  = 30
	purgeInactiveOlderThanDays = 180
	// refreshSkew is how far ahead of expiry the sweep refreshes a token, so
	// a token essentially never expires mid-request.
	refreshSkew = 30 * time.Minute
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides config/env; in-memory storage when empty)")
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	runMigrations := flag.Bool("migrate", true, "run embedded database migrations on startup (ignored for in-memory)")
	flag.Parse()

	if trimmed := strings.TrimSpace(*configPath); trimmed != "" {
		os.Setenv("CONFIG_FILE", trimmed)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New("accounting-gateway", cfg.Logging.Level, cfg.Logging.Format)

	dsnVal := appwiring.ResolveDSN(*dsn, cfg)

	var db database.Adapter
	var closer func() error

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
		if *runMigrations {
			if err := store.Migrate(); err != nil {
				log.Fatalf("apply migrations: %v", err)
			}
		}
		db = store
		closer = store.Close
	} else {
		log.Info("no DATABASE_DSN configured; running against the in-memory adapter")
		db = memory.New()
	}
	if closer != nil {
		defer closer()
	}

	rootKey, err := appwiring.DecodeVaultRootKey(cfg.Security.VaultRootKeyBase64)
	if err != nil {
		log.Fatalf("decode vault root key: %v", err)
	}
	if rootKey == nil && dsnVal != "" {
		log.Warn("VAULT_ROOT_KEY not set; vendor tokens will be stored unencrypted")
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

	listenAddr := determineAddr(*addr, cfg)
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	sched := cron.New()
	if _, err := sched.AddFunc(cfg.Cron.TokenRefreshSpec, refreshSweep(db, v, refreshers, log)); err != nil {
		log.Fatalf("register token-refresh sweep: %v", err)
	}
	if _, err := sched.AddFunc(cfg.Cron.PurgeSpec, purgeSweep(db, log)); err != nil {
		log.Fatalf("register purge sweep: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	go func() {
		log.Info(fmt.Sprintf("listening on %s", listenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}

// refreshSweep refreshes every Accepted consent's token that is within
// refreshSkew of expiry, across all tenants (spec.md §6, every 15 minutes by
// default).
func refreshSweep(db database.Adapter, v *vault.Vault, refreshers map[domain.Provider]vault.Refresher, log *logging.Logger) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		consents, err := db.ListConsentsNeedingRefresh(ctx, time.Now().UTC().Add(refreshSkew))
		if err != nil {
			log.Errorf("list consents needing refresh: %v", err)
			return
		}
		for _, c := range consents {
			r, ok := refreshers[c.Provider]
			if !ok {
				continue
			}
			current, err := v.Load(ctx, c.ID, c.Provider)
			if err != nil {
				log.Errorf("load tokens for sweep: %v", err)
				continue
			}
			if _, err := v.Refresh(ctx, r, c.ID, c.Provider, *current); err != nil {
				log.Errorf("refresh token in sweep: %v", err)
			}
		}
	}
}

// purgeSweep enforces the 30-day Created / 180-day Revoked-Inactive purge
// policy (spec.md §6), daily by default.
func purgeSweep(db database.Adapter, log *logging.Logger) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		n, err := db.PurgeExpiredConsents(ctx, purgeCreatedOlderThanDays, purgeInactiveOlderThanDays)
		if err != nil {
			log.Errorf("purge expired consents: %v", err)
			return
		}
		if n > 0 {
			log.Info(fmt.Sprintf("purged %d expired consents", n))
		}
	}
}

func determineAddr(flagAddr string, cfg *config.Config) string {
	if trimmed := strings.TrimSpace(flagAddr); trimmed != "" {
		return trimmed
	}
	return cfg.Server.Addr()
}
