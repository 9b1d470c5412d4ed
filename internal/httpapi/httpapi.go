// Package httpapi wires every external route spec.md §6/§4.12 describes onto
// a gorilla/mux router: the consent REST surface, the consent-scoped
// data-plane surface, the per-vendor OAuth surface, and the ambient
// health/metrics/status endpoints. It owns no business logic of its own —
// every handler is a thin adapter from HTTP onto internal/consent,
// internal/gateway and internal/syncengine.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nordicledger/accounting-gateway/internal/consent"
	"github.com/nordicledger/accounting-gateway/internal/database"
	"github.com/nordicledger/accounting-gateway/internal/domain"
	"github.com/nordicledger/accounting-gateway/internal/gateway"
	"github.com/nordicledger/accounting-gateway/internal/logging"
	"github.com/nordicledger/accounting-gateway/internal/metrics"
	"github.com/nordicledger/accounting-gateway/internal/middleware"
	"github.com/nordicledger/accounting-gateway/internal/ratelimit"
	"github.com/nordicledger/accounting-gateway/internal/syncengine"
	"github.com/nordicledger/accounting-gateway/internal/vault"
)

// VendorConfig reports whether a vendor has been configured with a working
// client, for /system/status's per-vendor report. The OAuth routes do not
// read it; they answer 501 when deps.Refreshers has no driver for the vendor.
type VendorConfig struct {
	Configured map[domain.Provider]bool
}

// Dependencies are every collaborator the router needs. Built once at
// startup by cmd/gateway and cmd/edge.
type Dependencies struct {
	DB           database.Adapter
	Consents     *consent.Service
	Gateway      *gateway.Gateway
	SyncEngine   *syncengine.Engine
	Vault        *vault.Vault
	Refreshers   map[domain.Provider]vault.Refresher
	Vendors      VendorConfig
	Mode         middleware.DeploymentMode
	Logger       *logging.Logger
	LegacyAPIKey string
	LegacyTenant string
	// SessionJWTKey enables the self-hosted-mode session-token fallback
	// (spec.md §4.8 step 5) when Mode is ModeSelfHosted; nil disables it.
	SessionJWTKey []byte
	CORS         middleware.CORSConfig
	IngressRate  ratelimit.Config
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	Version      string
	StartedAt    time.Time
}

// handler bundles the dependencies every route handler needs, narrowed from
// Dependencies for readability.
type handler struct {
	deps Dependencies
}

// NewRouter builds the full mux.Router: ambient middleware chain, ambient
// routes, then the authenticated API under /api/v1.
func NewRouter(deps Dependencies) *mux.Router {
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 60 * time.Second
	}
	h := &handler{deps: deps}

	r := mux.NewRouter()
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.SecurityHeaders(nil))
	r.Use(metrics.InstrumentHandler)
	r.Use(middleware.AccessLog(deps.Logger))
	r.Use(middleware.CORS(deps.CORS))
	r.Use(middleware.BodyLimit(deps.MaxBodyBytes))
	r.Use(middleware.Timeout(deps.RequestTimeout))

	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/system/status", h.systemStatus).Methods(http.MethodGet)

	legacy := middleware.NewLegacyTenantKey(deps.LegacyAPIKey, deps.LegacyTenant)
	limiter := middleware.NewIngressLimiter(deps.IngressRate)

	var sessionKey []byte
	if deps.Mode == middleware.ModeSelfHosted {
		sessionKey = deps.SessionJWTKey
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.APIKeyAuth(deps.DB, legacy, sessionKey))
	api.Use(limiter.Handler)

	h.registerConsentRoutes(api)
	h.registerConnectionRoutes(api)
	h.registerDataPlaneRoutes(api)
	h.registerOAuthRoutes(api)

	return r
}
