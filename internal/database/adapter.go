// Package database defines the pluggable persistence contract the gateway
// core requires (spec.md §6, §9). Two implementations are provided: an
// in-memory adapter (internal/database/memory) for tests and local/edge
// deployments, and a Postgres adapter (internal/database/postgres) for
// hosted deployments.
package database

import (
	"context"
	"errors"
	"time"

	"github.com/nordicledger/accounting-gateway/internal/domain"
)

// ErrNotFound is returned by single-entity lookups that find no row.
var ErrNotFound = errors.New("database: not found")

// ConnectionFilter scopes Connections listing.
type ConnectionFilter struct {
	Provider *domain.Provider
}

// EntityQuery scopes CanonicalEntityRecord listing.
type EntityQuery struct {
	Page          int
	PageSize      int
	FiscalYear    *int
	FromDate      *string
	ToDate        *string
	OrderBy       string
	OrderDir      string
}

// ConsentFilter scopes Consent listing.
type ConsentFilter struct {
	Provider *domain.Provider
	Status   *domain.ConsentStatus
}

// UpsertResult reports the outcome of a batch entity upsert (spec.md §4.10).
type UpsertResult struct {
	Inserted  int
	Updated   int
	Unchanged int
}

// SyncStateUpdate is a partial merge applied to a SyncState row: nil fields
// are left untouched; the Inc* counters are added to the stored totals.
type SyncStateUpdate struct {
	LastSyncAt         *time.Time
	LastModifiedCursor *time.Time
	IncInserted        int64
	IncUpdated         int64
	IncUnchanged       int64
	LastError          *string
}

// Adapter is the full operation set the gateway core requires of a
// persistence layer.
type Adapter interface {
	// Connections
	UpsertConnection(ctx context.Context, c *domain.Connection) error
	GetConnection(ctx context.Context, tenantID, connectionID string) (*domain.Connection, error)
	GetConnections(ctx context.Context, tenantID string, filter ConnectionFilter) ([]domain.Connection, error)
	DeleteConnection(ctx context.Context, tenantID, connectionID string) error

	// Entities
	UpsertEntities(ctx context.Context, connectionID string, entityType domain.EntityType, entities []domain.CanonicalEntityRecord) (UpsertResult, error)
	GetEntities(ctx context.Context, connectionID string, entityType domain.EntityType, q EntityQuery) ([]domain.CanonicalEntityRecord, error)
	GetEntityCount(ctx context.Context, connectionID string, entityType domain.EntityType, q EntityQuery) (int, error)

	// Sync state & progress
	GetSyncState(ctx context.Context, connectionID string, entityType domain.EntityType) (*domain.SyncState, error)
	UpdateSyncState(ctx context.Context, connectionID string, entityType domain.EntityType, update SyncStateUpdate) error
	UpsertSyncProgress(ctx context.Context, p *domain.SyncProgress) error
	GetSyncProgress(ctx context.Context, jobID string) (*domain.SyncProgress, error)
	GetSyncHistory(ctx context.Context, connectionID string, limit int) ([]domain.SyncProgress, error)

	// SIE
	StoreSIEData(ctx context.Context, d *domain.SIEData) error
	GetSIEUploads(ctx context.Context, connectionID string) ([]domain.SIEUpload, error)
	GetSIEData(ctx context.Context, connectionID string, fiscalYear int, sieType domain.SIEType) (*domain.SIEData, error)

	// Consents
	UpsertConsent(ctx context.Context, c *domain.Consent) error
	GetConsent(ctx context.Context, tenantID, id string) (*domain.Consent, error)
	GetConsents(ctx context.Context, tenantID string, filter ConsentFilter) ([]domain.Consent, error)
	DeleteConsent(ctx context.Context, tenantID, id string) error
	// GetConsentByIDAnyTenant looks up a consent without tenant scoping. Used
	// only by the OAuth callback / OTC exchange path, where the caller has
	// already proven authority by presenting a valid one-time code rather
	// than a tenant-scoped API key (spec.md §4.7).
	GetConsentByIDAnyTenant(ctx context.Context, id string) (*domain.Consent, error)

	// Consent tokens
	StoreConsentTokens(ctx context.Context, t *domain.ConsentToken) error
	GetConsentTokens(ctx context.Context, consentID string) (*domain.ConsentToken, error)
	DeleteConsentTokens(ctx context.Context, consentID string) error

	// One-time codes
	CreateOneTimeCode(ctx context.Context, o *domain.OneTimeCode) error
	ValidateOneTimeCode(ctx context.Context, code string) (*domain.OneTimeCode, error)

	// Tenants & API keys (ingress auth, spec.md §6)
	GetTenant(ctx context.Context, id string) (*domain.Tenant, error)
	CreateAPIKey(ctx context.Context, k *domain.APIKey) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	TouchAPIKeyLastUsed(ctx context.Context, keyID string) error

	// Purge (spec.md §6 purge policies)
	PurgeExpiredConsents(ctx context.Context, createdOlderThanDays, inactiveOlderThanDays int) (int, error)

	// ListConsentsNeedingRefresh returns every Accepted consent, across all
	// tenants, whose stored token expires before cutoff — the candidate set
	// for the background token-refresh sweep (cmd/gateway).
	ListConsentsNeedingRefresh(ctx context.Context, cutoff time.Time) ([]domain.Consent, error)
}
