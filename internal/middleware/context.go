package middleware

import (
	"context"

	"github.com/nordicledger/accounting-gateway/internal/domain"
	"github.com/nordicledger/accounting-gateway/internal/gateway"
)

type requestCtxKey string

const (
	tenantIDCtxKey    requestCtxKey = "tenant_id"
	consentCtxKey     requestCtxKey = "consent"
	credentialsCtxKey requestCtxKey = "credentials"
)

// TenantIDFromContext returns the authenticated tenant id, or "" if absent.
func TenantIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(tenantIDCtxKey).(string)
	return v
}

func withTenantID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, tenantIDCtxKey, id)
}

// ConsentFromContext returns the resolved consent attached by ConsentMiddleware.
func ConsentFromContext(ctx context.Context) (*domain.Consent, bool) {
	c, ok := ctx.Value(consentCtxKey).(*domain.Consent)
	return c, ok
}

func withConsent(ctx context.Context, c *domain.Consent) context.Context {
	return context.WithValue(ctx, consentCtxKey, c)
}

// CredentialsFromContext returns the resolved vendor credentials attached by
// ConsentMiddleware.
func CredentialsFromContext(ctx context.Context) (gateway.Credentials, bool) {
	c, ok := ctx.Value(credentialsCtxKey).(gateway.Credentials)
	return c, ok
}

func withCredentials(ctx context.Context, c gateway.Credentials) context.Context {
	return context.WithValue(ctx, credentialsCtxKey, c)
}
