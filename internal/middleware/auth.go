package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nordicledger/accounting-gateway/internal/database"
	gwerrors "github.com/nordicledger/accounting-gateway/internal/errors"
	"github.com/nordicledger/accounting-gateway/internal/httpresponse"
	"github.com/nordicledger/accounting-gateway/internal/logging"
)

// legacyTenantKey, if set, authenticates any request bearing this exact
// value as the given tenant id — the one-release fallback spec.md §6
// permits ("a legacy per-tenant fallback is allowed for one release").
type legacyTenantKey struct {
	key      string
	tenantID string
}

// APIKeyAuth authenticates inbound requests by the SHA-256 digest of an
// `Authorization: Bearer <api-key>` header against the api-keys table.
// sessionKey, when non-nil, additionally accepts a bearer token that parses
// as an HMAC-signed session JWT (spec.md §4.8 step 5's self-hosted fallback:
// a deployment fronting the gateway with its own login can mint these
// instead of provisioning per-tenant API keys). Pass nil in hosted mode,
// where that fallback is disabled.
func APIKeyAuth(db database.Adapter, legacy *legacyTenantKey, sessionKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httpresponse.WriteError(w, r, gwerrors.Unauthorized("missing API key"))
				return
			}

			if legacy != nil && token == legacy.key {
				next.ServeHTTP(w, r.WithContext(withTenantID(r.Context(), legacy.tenantID)))
				return
			}

			hash := hashAPIKey(token)
			key, err := db.GetAPIKeyByHash(r.Context(), hash)
			if err != nil {
				if err == database.ErrNotFound {
					if sessionKey != nil {
						if tenantID, ok := parseSessionToken(token, sessionKey); ok {
							ctx := withTenantID(r.Context(), tenantID)
							ctx = logging.WithTenantID(ctx, tenantID)
							next.ServeHTTP(w, r.WithContext(ctx))
							return
						}
					}
					httpresponse.WriteError(w, r, gwerrors.Unauthorized("invalid API key"))
					return
				}
				httpresponse.WriteError(w, r, gwerrors.Internal("load api key", err))
				return
			}
			if !key.Active(time.Now().UTC()) {
				httpresponse.WriteError(w, r, gwerrors.Unauthorized("API key expired or revoked"))
				return
			}
			_ = db.TouchAPIKeyLastUsed(r.Context(), key.ID)

			ctx := withTenantID(r.Context(), key.TenantID)
			ctx = logging.WithTenantID(ctx, key.TenantID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionClaims is the self-hosted-mode session token shape: a tenant id
// plus the standard registered claims (exp/iat/nbf), nothing more.
type sessionClaims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// IssueSessionToken signs a session token for tenantID, valid for ttl. Used
// by self-hosted operators who front the gateway with their own login
// instead of provisioning API keys per tenant.
func IssueSessionToken(signingKey []byte, tenantID string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := sessionClaims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
}

// parseSessionToken verifies token against signingKey and returns the
// carried tenant id. The signing method is pinned to HS256 to rule out
// alg-confusion attacks against the verifier.
func parseSessionToken(token string, signingKey []byte) (string, bool) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil || !parsed.Valid || claims.TenantID == "" {
		return "", false
	}
	return claims.TenantID, true
}

// NewLegacyTenantKey builds the legacy-fallback credential APIKeyAuth
// accepts alongside hashed per-tenant keys.
func NewLegacyTenantKey(key, tenantID string) *legacyTenantKey {
	if key == "" || tenantID == "" {
		return nil
	}
	return &legacyTenantKey{key: key, tenantID: tenantID}
}

func hashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, prefix))
}

// requireTenant is a small helper handlers can use outside the middleware
// chain (e.g. in tests) to pull the tenant id or fail fast.
func requireTenant(ctx context.Context) (string, error) {
	tenantID := TenantIDFromContext(ctx)
	if tenantID == "" {
		return "", gwerrors.Unauthorized("missing tenant context")
	}
	return tenantID, nil
}
