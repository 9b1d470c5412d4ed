package postgres

import (
	"context"
	"time"

	"github.com/nordicledger/accounting-gateway/internal/domain"
)

func (s *Store) StoreConsentTokens(ctx context.Context, t *domain.ConsentToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO consent_tokens (consent_id, provider, access_token, refresh_token, token_expires_at, vendor_company_id, encrypted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (consent_id) DO UPDATE SET
			provider = EXCLUDED.provider, access_token = EXCLUDED.access_token, refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at, vendor_company_id = EXCLUDED.vendor_company_id,
			encrypted_at = EXCLUDED.encrypted_at, updated_at = EXCLUDED.updated_at
	`, t.ConsentID, t.Provider, t.AccessToken, t.RefreshToken, t.TokenExpiresAt, t.VendorCompanyID, t.EncryptedAt, t.CreatedAt, t.UpdatedAt)
	return err
}

func (s *Store) GetConsentTokens(ctx context.Context, consentID string) (*domain.ConsentToken, error) {
	var t domain.ConsentToken
	err := s.db.GetContext(ctx, &t, `
		SELECT consent_id, provider, access_token, refresh_token, token_expires_at, vendor_company_id, encrypted_at, created_at, updated_at
		FROM consent_tokens WHERE consent_id = $1
	`, consentID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &t, nil
}

func (s *Store) DeleteConsentTokens(ctx context.Context, consentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM consent_tokens WHERE consent_id = $1`, consentID)
	return err
}

// ListConsentsNeedingRefresh joins consents to their stored token across
// every tenant, for the background token-refresh sweep (cmd/gateway).
func (s *Store) ListConsentsNeedingRefresh(ctx context.Context, cutoff time.Time) ([]domain.Consent, error) {
	var out []domain.Consent
	err := s.db.SelectContext(ctx, &out, `
		SELECT c.id, c.tenant_id, c.name, c.provider, c.org_number, c.company_name, c.status, c.etag, c.created_at, c.updated_at, c.expires_at
		FROM consents c
		JOIN consent_tokens t ON t.consent_id = c.id
		WHERE c.status = $1 AND t.token_expires_at IS NOT NULL AND t.token_expires_at <= $2
		ORDER BY c.id
	`, domain.ConsentAccepted, cutoff)
	if err != nil {
		return nil, err
	}
	return out, nil
}
