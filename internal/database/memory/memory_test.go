package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordicledger/accounting-gateway/internal/database"
	"github.com/nordicledger/accounting-gateway/internal/domain"
)

func TestUpsertEntitiesCountsInsertUpdateUnchanged(t *testing.T) {
	ctx := context.Background()
	store := New()

	result, err := store.UpsertEntities(ctx, "conn-1", domain.EntityInvoice, []domain.CanonicalEntityRecord{
		{ExternalID: "1", ContentHash: "h1"},
		{ExternalID: "2", ContentHash: "h2"},
	})
	require.NoError(t, err)
	assert.Equal(t, database.UpsertResult{Inserted: 2}, result)

	result, err = store.UpsertEntities(ctx, "conn-1", domain.EntityInvoice, []domain.CanonicalEntityRecord{
		{ExternalID: "1", ContentHash: "h1"},       // unchanged
		{ExternalID: "2", ContentHash: "h2-changed"}, // updated
		{ExternalID: "3", ContentHash: "h3"},        // inserted
	})
	require.NoError(t, err)
	assert.Equal(t, database.UpsertResult{Inserted: 1, Updated: 1, Unchanged: 1}, result)
}

func TestValidateOneTimeCodeConsumesOnce(t *testing.T) {
	ctx := context.Background()
	store := New()
	now := time.Now().UTC()
	require.NoError(t, store.CreateOneTimeCode(ctx, &domain.OneTimeCode{
		Code: "abc123", ConsentID: "consent-1", ExpiresAt: now.Add(time.Hour), CreatedAt: now,
	}))

	otc, err := store.ValidateOneTimeCode(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "consent-1", otc.ConsentID)

	_, err = store.ValidateOneTimeCode(ctx, "abc123")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestValidateOneTimeCodeExpired(t *testing.T) {
	ctx := context.Background()
	store := New()
	now := time.Now().UTC()
	require.NoError(t, store.CreateOneTimeCode(ctx, &domain.OneTimeCode{
		Code: "expired", ConsentID: "consent-1", ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-time.Hour),
	}))

	_, err := store.ValidateOneTimeCode(ctx, "expired")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestGetSyncStateReturnsZeroValueWhenAbsent(t *testing.T) {
	store := New()
	st, err := store.GetSyncState(context.Background(), "conn-1", domain.EntityInvoice)
	require.NoError(t, err)
	assert.Equal(t, "conn-1", st.ConnectionID)
	assert.Zero(t, st.TotalInserted)
}

func TestUpdateSyncStatePartialMergeAndCounters(t *testing.T) {
	ctx := context.Background()
	store := New()
	now := time.Now().UTC()

	require.NoError(t, store.UpdateSyncState(ctx, "conn-1", domain.EntityInvoice, database.SyncStateUpdate{
		LastSyncAt: &now, IncInserted: 3, IncUpdated: 1,
	}))
	st, err := store.GetSyncState(ctx, "conn-1", domain.EntityInvoice)
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.TotalInserted)
	assert.Equal(t, int64(1), st.TotalUpdated)
	require.NotNil(t, st.LastSyncAt)

	later := now.Add(time.Hour)
	require.NoError(t, store.UpdateSyncState(ctx, "conn-1", domain.EntityInvoice, database.SyncStateUpdate{
		LastSyncAt: &later, IncInserted: 2, IncUnchanged: 5,
	}))
	st, err = store.GetSyncState(ctx, "conn-1", domain.EntityInvoice)
	require.NoError(t, err)
	assert.Equal(t, int64(5), st.TotalInserted)
	assert.Equal(t, int64(1), st.TotalUpdated)
	assert.Equal(t, int64(5), st.TotalUnchanged)
	assert.WithinDuration(t, later, *st.LastSyncAt, time.Second)
}

func TestPurgeExpiredConsentsRespectsStatusDependentCutoffs(t *testing.T) {
	ctx := context.Background()
	store := New()
	now := time.Now().UTC()

	fresh := domain.Consent{ID: "fresh", TenantID: "t1", Status: domain.ConsentCreated, UpdatedAt: now}
	staleCreated := domain.Consent{ID: "stale-created", TenantID: "t1", Status: domain.ConsentCreated, UpdatedAt: now.Add(-31 * 24 * time.Hour)}
	staleRevoked := domain.Consent{ID: "stale-revoked", TenantID: "t1", Status: domain.ConsentRevoked, UpdatedAt: now.Add(-181 * 24 * time.Hour)}
	require.NoError(t, store.UpsertConsent(ctx, &fresh))
	require.NoError(t, store.UpsertConsent(ctx, &staleCreated))
	require.NoError(t, store.UpsertConsent(ctx, &staleRevoked))

	n, err := store.PurgeExpiredConsents(ctx, 30, 180)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = store.GetConsent(ctx, "t1", "fresh")
	assert.NoError(t, err)
	_, err = store.GetConsent(ctx, "t1", "stale-created")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestDeleteConnectionCascadesEntitiesAndSyncState(t *testing.T) {
	ctx := context.Background()
	store := New()
	require.NoError(t, store.UpsertConnection(ctx, &domain.Connection{ConnectionID: "conn-1", TenantID: "t1", Provider: domain.ProviderFortnox}))
	_, err := store.UpsertEntities(ctx, "conn-1", domain.EntityInvoice, []domain.CanonicalEntityRecord{{ExternalID: "1", ContentHash: "h1"}})
	require.NoError(t, err)
	require.NoError(t, store.UpdateSyncState(ctx, "conn-1", domain.EntityInvoice, database.SyncStateUpdate{IncInserted: 1}))

	require.NoError(t, store.DeleteConnection(ctx, "t1", "conn-1"))

	entities, err := store.GetEntities(ctx, "conn-1", domain.EntityInvoice, database.EntityQuery{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestListConsentsNeedingRefreshFiltersByStatusAndExpiry(t *testing.T) {
	ctx := context.Background()
	store := New()
	now := time.Now().UTC()
	soon := now.Add(10 * time.Minute)
	later := now.Add(2 * time.Hour)

	accepted := domain.Consent{ID: "c1", TenantID: "t1", Provider: domain.ProviderFortnox, Status: domain.ConsentAccepted, UpdatedAt: now}
	notYetDue := domain.Consent{ID: "c2", TenantID: "t1", Provider: domain.ProviderVisma, Status: domain.ConsentAccepted, UpdatedAt: now}
	revoked := domain.Consent{ID: "c3", TenantID: "t1", Provider: domain.ProviderBriox, Status: domain.ConsentRevoked, UpdatedAt: now}
	require.NoError(t, store.UpsertConsent(ctx, &accepted))
	require.NoError(t, store.UpsertConsent(ctx, &notYetDue))
	require.NoError(t, store.UpsertConsent(ctx, &revoked))

	require.NoError(t, store.StoreConsentTokens(ctx, &domain.ConsentToken{ConsentID: "c1", Provider: domain.ProviderFortnox, TokenExpiresAt: &soon}))
	require.NoError(t, store.StoreConsentTokens(ctx, &domain.ConsentToken{ConsentID: "c2", Provider: domain.ProviderVisma, TokenExpiresAt: &later}))
	require.NoError(t, store.StoreConsentTokens(ctx, &domain.ConsentToken{ConsentID: "c3", Provider: domain.ProviderBriox, TokenExpiresAt: &soon}))

	due, err := store.ListConsentsNeedingRefresh(ctx, now.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "c1", due[0].ID)
}
