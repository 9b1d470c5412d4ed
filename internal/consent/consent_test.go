package consent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordicledger/accounting-gateway/internal/database"
	"github.com/nordicledger/accounting-gateway/internal/database/memory"
	"github.com/nordicledger/accounting-gateway/internal/domain"
	gwerrors "github.com/nordicledger/accounting-gateway/internal/errors"
	"github.com/nordicledger/accounting-gateway/internal/vault"
)

func newService() *Service {
	db := memory.New()
	return New(db, vault.New(db, nil))
}

func TestCreateStartsInCreatedState(t *testing.T) {
	svc := newService()
	c, err := svc.Create(context.Background(), "tenant-1", "Acme Fortnox", domain.ProviderFortnox)
	require.NoError(t, err)
	assert.Equal(t, domain.ConsentCreated, c.Status)
	assert.NotEmpty(t, c.ETag)
}

func TestPatchRejectsStaleETag(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	c, err := svc.Create(ctx, "tenant-1", "Acme", domain.ProviderFortnox)
	require.NoError(t, err)

	newName := "Acme Renamed"
	_, err = svc.Patch(ctx, "tenant-1", c.ID, "stale-etag", &newName, nil)
	require.Error(t, err)
	se, ok := gwerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, gwerrors.CodeConflict, se.Code)
}

func TestPatchSucceedsWithCorrectETagAndIssuesNewOne(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	c, err := svc.Create(ctx, "tenant-1", "Acme", domain.ProviderFortnox)
	require.NoError(t, err)

	newName := "Acme Renamed"
	updated, err := svc.Patch(ctx, "tenant-1", c.ID, c.ETag, &newName, nil)
	require.NoError(t, err)
	assert.Equal(t, "Acme Renamed", updated.Name)
	assert.NotEqual(t, c.ETag, updated.ETag)
}

func TestGetCrossTenantReturnsNotFound(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	c, err := svc.Create(ctx, "tenant-1", "Acme", domain.ProviderFortnox)
	require.NoError(t, err)

	_, err = svc.Get(ctx, "tenant-2", c.ID)
	require.Error(t, err)
	se, ok := gwerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, gwerrors.CodeNotFound, se.Code)
}

func TestDeleteCascadesViaAdapter(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	c, err := svc.Create(ctx, "tenant-1", "Acme", domain.ProviderFortnox)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "tenant-1", c.ID))
	_, err = svc.Get(ctx, "tenant-1", c.ID)
	assert.Error(t, err)
}

func TestCreateOTCThenExchangeTokenTransitionsToAccepted(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	c, err := svc.Create(ctx, "tenant-1", "Acme", domain.ProviderFortnox)
	require.NoError(t, err)

	otc, err := svc.CreateOTC(ctx, "tenant-1", c.ID, time.Hour)
	require.NoError(t, err)
	assert.Len(t, otc.Code, 16)

	expiresIn := 3600
	refreshToken := "refresh-1"
	updated, err := svc.ExchangeToken(ctx, ExchangeInput{
		Code: otc.Code, ConsentID: c.ID, Provider: domain.ProviderFortnox,
		AccessToken: "access-1", RefreshToken: &refreshToken, ExpiresIn: &expiresIn,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ConsentAccepted, updated.Status)
}

func TestExchangeTokenRejectsCodeForWrongConsent(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	c1, err := svc.Create(ctx, "tenant-1", "Acme", domain.ProviderFortnox)
	require.NoError(t, err)
	c2, err := svc.Create(ctx, "tenant-1", "Other Co", domain.ProviderVisma)
	require.NoError(t, err)

	otc, err := svc.CreateOTC(ctx, "tenant-1", c1.ID, time.Hour)
	require.NoError(t, err)

	_, err = svc.ExchangeToken(ctx, ExchangeInput{Code: otc.Code, ConsentID: c2.ID, Provider: domain.ProviderVisma, AccessToken: "x"})
	require.Error(t, err)
	se, ok := gwerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, gwerrors.CodeValidation, se.Code)
}

func TestExchangeTokenRejectsReuse(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	c, err := svc.Create(ctx, "tenant-1", "Acme", domain.ProviderFortnox)
	require.NoError(t, err)
	otc, err := svc.CreateOTC(ctx, "tenant-1", c.ID, time.Hour)
	require.NoError(t, err)

	_, err = svc.ExchangeToken(ctx, ExchangeInput{Code: otc.Code, ConsentID: c.ID, Provider: domain.ProviderFortnox, AccessToken: "a"})
	require.NoError(t, err)

	_, err = svc.ExchangeToken(ctx, ExchangeInput{Code: otc.Code, ConsentID: c.ID, Provider: domain.ProviderFortnox, AccessToken: "b"})
	require.Error(t, err)
	se, ok := gwerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, gwerrors.CodeUnauthorized, se.Code)
}

func TestRevokeClearsStoredTokens(t *testing.T) {
	db := memory.New()
	svc := New(db, vault.New(db, nil))
	ctx := context.Background()
	c, err := svc.Create(ctx, "tenant-1", "Acme", domain.ProviderFortnox)
	require.NoError(t, err)
	_, err = svc.AcceptTokens(ctx, c.ID, domain.ProviderFortnox, vault.Tokens{AccessToken: "a"})
	require.NoError(t, err)

	revoked, err := svc.Revoke(ctx, "tenant-1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConsentRevoked, revoked.Status)

	_, err = db.GetConsentTokens(ctx, c.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}
