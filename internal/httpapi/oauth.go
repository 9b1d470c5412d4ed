package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nordicledger/accounting-gateway/internal/domain"
	gwerrors "github.com/nordicledger/accounting-gateway/internal/errors"
	"github.com/nordicledger/accounting-gateway/internal/httpresponse"
	"github.com/nordicledger/accounting-gateway/internal/middleware"
	"github.com/nordicledger/accounting-gateway/internal/vault"
)

// authURLBuilder and codeExchanger narrow oauthdriver.AuthorizationCodeDriver
// down to what these handlers need; type-asserting deps.Refreshers[provider]
// against them is how "not applicable to Bokio/BL" (spec.md §6) falls out
// naturally — those vendors' drivers implement neither interface. Briox's
// driver is an AuthorizationCodeDriver (it refreshes via the OAuth grant), so
// authURL rejects Briox explicitly.
type authURLBuilder interface {
	BuildAuthURL(state string) string
}

type codeExchanger interface {
	ExchangeCode(ctx context.Context, code string) (vault.Tokens, error)
}

func (h *handler) registerOAuthRoutes(api *mux.Router) {
	api.HandleFunc("/auth/{provider}/url", h.authURL).Methods(http.MethodGet)
	api.HandleFunc("/auth/{provider}/exchange", h.authExchange).Methods(http.MethodPost)
	api.HandleFunc("/auth/{provider}/callback", h.authCallback).Methods(http.MethodPost)
	api.HandleFunc("/auth/{provider}/refresh", h.authRefresh).Methods(http.MethodPost)
	api.HandleFunc("/auth/{provider}/revoke", h.authRevoke).Methods(http.MethodPost)
}

func (h *handler) providerDriver(w http.ResponseWriter, r *http.Request) (domain.Provider, vault.Refresher, bool) {
	provider := domain.Provider(mux.Vars(r)["provider"])
	driver, ok := h.deps.Refreshers[provider]
	if !ok {
		httpresponse.WriteError(w, r, gwerrors.NotConfigured(string(provider)))
		return provider, nil, false
	}
	return provider, driver, true
}

type authURLRequest struct {
	State string `json:"state"`
}

func (h *handler) authURL(w http.ResponseWriter, r *http.Request) {
	provider, driver, ok := h.providerDriver(w, r)
	if !ok {
		return
	}
	builder, ok := driver.(authURLBuilder)
	if !ok || provider == domain.ProviderBriox {
		httpresponse.WriteError(w, r, gwerrors.NotSupported(string(provider), "oauth_url"))
		return
	}
	state := httpresponse.QueryString(r, "state")
	if state == "" {
		httpresponse.WriteError(w, r, gwerrors.Validation("state is required (the consent id the callback should resolve)", nil))
		return
	}
	httpresponse.WriteJSON(w, http.StatusOK, map[string]string{"url": builder.BuildAuthURL(state)})
}

type authCodeRequest struct {
	Code      string `json:"code"`
	ConsentID string `json:"consentId"`
}

// authExchange implements POST /api/v1/auth/:provider/exchange: it swaps a
// code for a token bundle and returns it directly, without touching a
// consent. It's the building block self-hosted callers use when they manage
// credential storage themselves (spec.md §4.8 step 5's unmanaged mode).
func (h *handler) authExchange(w http.ResponseWriter, r *http.Request) {
	provider, driver, ok := h.providerDriver(w, r)
	if !ok {
		return
	}
	exchanger, ok := driver.(codeExchanger)
	if !ok {
		httpresponse.WriteError(w, r, gwerrors.NotSupported(string(provider), "oauth_exchange"))
		return
	}
	var req authCodeRequest
	if err := httpresponse.DecodeJSON(r, &req); err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	tokens, err := exchanger.ExchangeCode(r.Context(), req.Code)
	if err != nil {
		httpresponse.WriteError(w, r, gwerrors.Unauthorized(string(provider) + ": code exchange failed"))
		return
	}
	httpresponse.WriteJSON(w, http.StatusOK, tokens)
}

// authCallback implements POST /api/v1/auth/:provider/callback: the
// authorization-code redirect target. It exchanges the code, stores the
// resulting tokens against the consent named by state, and transitions that
// consent to Accepted.
func (h *handler) authCallback(w http.ResponseWriter, r *http.Request) {
	provider, driver, ok := h.providerDriver(w, r)
	if !ok {
		return
	}
	exchanger, ok := driver.(codeExchanger)
	if !ok {
		httpresponse.WriteError(w, r, gwerrors.NotSupported(string(provider), "oauth_callback"))
		return
	}
	var req authCodeRequest
	if err := httpresponse.DecodeJSON(r, &req); err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	if req.ConsentID == "" {
		req.ConsentID = httpresponse.QueryString(r, "state")
	}
	if req.Code == "" || req.ConsentID == "" {
		httpresponse.WriteError(w, r, gwerrors.Validation("code and consentId (or state) are required", nil))
		return
	}
	tokens, err := exchanger.ExchangeCode(r.Context(), req.Code)
	if err != nil {
		httpresponse.WriteError(w, r, gwerrors.Unauthorized(string(provider) + ": code exchange failed"))
		return
	}
	c, err := h.deps.Consents.AcceptTokens(r.Context(), req.ConsentID, provider, tokens)
	if err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	w.Header().Set("ETag", c.ETag)
	httpresponse.WriteJSON(w, http.StatusOK, c)
}

type authRefreshRequest struct {
	ConsentID string `json:"consentId"`
}

// authRefresh implements POST /api/v1/auth/:provider/refresh: an explicit,
// caller-triggered refresh of one consent's stored tokens, independent of the
// inline per-request check in ConsentMiddleware and the cron sweep.
func (h *handler) authRefresh(w http.ResponseWriter, r *http.Request) {
	provider, driver, ok := h.providerDriver(w, r)
	if !ok {
		return
	}
	var req authRefreshRequest
	if err := httpresponse.DecodeJSON(r, &req); err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	tenantID := middleware.TenantIDFromContext(r.Context())
	c, err := h.deps.Consents.Get(r.Context(), tenantID, req.ConsentID)
	if err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	if c.Provider != provider {
		httpresponse.WriteError(w, r, gwerrors.Validation("consent does not belong to this provider", nil))
		return
	}
	current, err := h.deps.Vault.Load(r.Context(), c.ID, provider)
	if err != nil {
		httpresponse.WriteError(w, r, gwerrors.Unauthorized("no vendor credentials on file for this consent"))
		return
	}
	if _, err := h.deps.Vault.Refresh(r.Context(), driver, c.ID, provider, *current); err != nil {
		httpresponse.WriteError(w, r, gwerrors.Unauthorized(string(provider) + ": refresh failed; re-authorization is required"))
		return
	}
	httpresponse.WriteJSON(w, http.StatusOK, map[string]bool{"refreshed": true})
}

type authRevokeRequest struct {
	ConsentID string `json:"consentId"`
}

// authRevoke implements POST /api/v1/auth/:provider/revoke. No vendor in the
// examples pack exposes a documented token-revocation endpoint (oauthdriver
// only implements the grant/refresh legs), so this only performs the
// gateway-side revocation spec.md §6 requires: the consent transitions to
// Revoked and its stored tokens are purged. See DESIGN.md.
func (h *handler) authRevoke(w http.ResponseWriter, r *http.Request) {
	provider := domain.Provider(mux.Vars(r)["provider"])
	var req authRevokeRequest
	if err := httpresponse.DecodeJSON(r, &req); err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	tenantID := middleware.TenantIDFromContext(r.Context())
	c, err := h.deps.Consents.Get(r.Context(), tenantID, req.ConsentID)
	if err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	if c.Provider != provider {
		httpresponse.WriteError(w, r, gwerrors.Validation("consent does not belong to this provider", nil))
		return
	}
	c, err = h.deps.Consents.Revoke(r.Context(), tenantID, c.ID)
	if err != nil {
		httpresponse.WriteError(w, r, err)
		return
	}
	w.Header().Set("ETag", c.ETag)
	httpresponse.WriteJSON(w, http.StatusOK, c)
}
