package postgres

import (
	"context"
	"time"

	"github.com/nordicledger/accounting-gateway/internal/domain"
)

func (s *Store) GetTenant(ctx context.Context, id string) (*domain.Tenant, error) {
	var t domain.Tenant
	err := s.db.GetContext(ctx, &t, `SELECT id, name, created_at, updated_at FROM tenants WHERE id = $1`, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &t, nil
}

func (s *Store) CreateAPIKey(ctx context.Context, k *domain.APIKey) error {
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, tenant_id, key_hash, label, created_at, expires_at, revoked_at, last_used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id, key_hash = EXCLUDED.key_hash, label = EXCLUDED.label,
			expires_at = EXCLUDED.expires_at, revoked_at = EXCLUDED.revoked_at
	`, k.ID, k.TenantID, k.KeyHash, k.Label, k.CreatedAt, k.ExpiresAt, k.RevokedAt, k.LastUsedAt)
	return err
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	var k domain.APIKey
	err := s.db.GetContext(ctx, &k, `
		SELECT id, tenant_id, key_hash, label, created_at, expires_at, revoked_at, last_used_at
		FROM api_keys WHERE key_hash = $1
	`, keyHash)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &k, nil
}

func (s *Store) TouchAPIKeyLastUsed(ctx context.Context, keyID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, keyID, time.Now().UTC())
	if err != nil {
		return err
	}
	return rowsAffectedOrNotFound(res)
}
