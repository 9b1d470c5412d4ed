package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nordicledger/accounting-gateway/internal/consent"
	"github.com/nordicledger/accounting-gateway/internal/database"
	"github.com/nordicledger/accounting-gateway/internal/domain"
	gwerrors "github.com/nordicledger/accounting-gateway/internal/errors"
	"github.com/nordicledger/accounting-gateway/internal/gateway"
	"github.com/nordicledger/accounting-gateway/internal/httpresponse"
	"github.com/nordicledger/accounting-gateway/internal/logging"
	"github.com/nordicledger/accounting-gateway/internal/vault"
)

// refreshSkew is the early-refresh window for the inline request-path check;
// zero means "refresh exactly once the stored token has expired". The
// background cron sweep (spec.md §6) uses a wider 30-minute skew so tokens
// rarely expire mid-request in the first place.
const refreshSkew = 0

// DeploymentMode selects whether ConsentMiddleware permits the unmanaged
// Authorization-header fallback of spec.md §4.8 step 5.
type DeploymentMode int

const (
	ModeHosted DeploymentMode = iota
	ModeSelfHosted
)

// ConsentMiddleware implements spec.md §4.8's consent-scoped credential
// resolution. It is installed on every data-plane route of the shape
// `/…/consents/{consentId}/…`.
type ConsentMiddleware struct {
	consents   *consent.Service
	vault      *vault.Vault
	refreshers map[domain.Provider]vault.Refresher
	mode       DeploymentMode
	pathParam  string
}

// NewConsentMiddleware builds the middleware. pathParam is the mux route
// variable carrying the consent id (typically "id").
func NewConsentMiddleware(consents *consent.Service, v *vault.Vault, refreshers map[domain.Provider]vault.Refresher, mode DeploymentMode, pathParam string) *ConsentMiddleware {
	if pathParam == "" {
		pathParam = "id"
	}
	return &ConsentMiddleware{consents: consents, vault: v, refreshers: refreshers, mode: mode, pathParam: pathParam}
}

// Handler runs the five-step algorithm and attaches (consent, credentials) to
// the request context, or fails the request per the step that rejected it.
func (m *ConsentMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := requireTenant(r.Context())
		if err != nil {
			httpresponse.WriteError(w, r, err)
			return
		}
		consentID := mux.Vars(r)[m.pathParam]

		// Step 1: load consent; 404 if missing (also structurally enforces P9:
		// consent.Service.Get is tenant-scoped, so a cross-tenant id is
		// indistinguishable from a missing one).
		c, err := m.consents.Get(r.Context(), tenantID, consentID)
		if err != nil {
			httpresponse.WriteError(w, r, err)
			return
		}

		// Step 2: reject if not Accepted.
		if !c.CanTransact() {
			httpresponse.WriteError(w, r, gwerrors.Forbidden("consent is not in an accepted state"))
			return
		}

		ctx := logging.WithConsentID(r.Context(), c.ID)
		ctx = logging.WithVendor(ctx, string(c.Provider))

		creds, err := m.resolveCredentials(ctx, r, c)
		if err != nil {
			httpresponse.WriteError(w, r, err)
			return
		}

		ctx = withConsent(ctx, c)
		ctx = withCredentials(ctx, creds)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *ConsentMiddleware) resolveCredentials(ctx context.Context, r *http.Request, c *domain.Consent) (gateway.Credentials, error) {
	// Step 3: try managed tokens.
	tokens, err := m.vault.Load(ctx, c.ID, c.Provider)
	if err != nil {
		if se, ok := gwerrors.As(err); ok && se.Code == gwerrors.CodeDecryptFailed {
			return gateway.Credentials{}, se
		}
		if err != database.ErrNotFound {
			return gateway.Credentials{}, gwerrors.Internal("load consent tokens", err)
		}
		// No managed tokens: step 5 fallback.
		if m.mode == ModeSelfHosted {
			if token := bearerToken(r); token != "" {
				return gateway.Credentials{AccessToken: token}, nil
			}
		}
		return gateway.Credentials{}, gwerrors.Unauthorized("no vendor credentials on file for this consent; complete authorization first")
	}

	// Step 4: refresh if expired (or about to expire).
	if vault.NeedsRefresh(tokens, time.Now().UTC(), refreshSkew) {
		refresher, ok := m.refreshers[c.Provider]
		if !ok {
			return gateway.Credentials{}, gwerrors.Unauthorized("token expired and no refresh driver is configured for " + string(c.Provider))
		}
		refreshed, err := m.vault.Refresh(ctx, refresher, c.ID, c.Provider, *tokens)
		if err != nil {
			return gateway.Credentials{}, gwerrors.Unauthorized("token refresh failed; re-authorization is required")
		}
		tokens = refreshed
	}

	return gateway.Credentials{AccessToken: tokens.AccessToken, VendorCompanyID: tokens.VendorCompanyID}, nil
}
