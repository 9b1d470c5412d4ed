// Package domain holds the gateway's canonical data model: tenants, consents,
// tokens, connections, synced entities and the normalized business DTOs every
// vendor payload is mapped onto.
package domain

import "time"

// Tenant is an isolated customer account of the gateway. Every authenticated
// request carries a tenant identity; consents and credentials are
// tenant-scoped and no cross-tenant read or write is reachable through any
// API surface.
type Tenant struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// APIKey is a hashed ingress credential bound to exactly one tenant.
// Resolution is by the SHA-256 hex digest of the presented key, so lookup is
// O(1) regardless of how many keys exist.
type APIKey struct {
	ID         string     `db:"id" json:"id"`
	TenantID   string     `db:"tenant_id" json:"tenantId"`
	KeyHash    string     `db:"key_hash" json:"-"`
	Label      string     `db:"label" json:"label"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	ExpiresAt  *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revokedAt,omitempty"`
	LastUsedAt *time.Time `db:"last_used_at" json:"lastUsedAt,omitempty"`
}

// Active reports whether the key may still authenticate a request.
func (k *APIKey) Active(now time.Time) bool {
	if k.RevokedAt != nil {
		return false
	}
	if k.ExpiresAt != nil && !k.ExpiresAt.After(now) {
		return false
	}
	return true
}
