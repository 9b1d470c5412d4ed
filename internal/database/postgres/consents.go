package postgres

import (
	"context"
	"strconv"

	"github.com/nordicledger/accounting-gateway/internal/database"
	"github.com/nordicledger/accounting-gateway/internal/domain"
)

func (s *Store) UpsertConsent(ctx context.Context, c *domain.Consent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO consents (id, tenant_id, name, provider, org_number, company_name, status, etag, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, provider = EXCLUDED.provider, org_number = EXCLUDED.org_number,
			company_name = EXCLUDED.company_name, status = EXCLUDED.status, etag = EXCLUDED.etag,
			updated_at = EXCLUDED.updated_at, expires_at = EXCLUDED.expires_at
	`, c.ID, c.TenantID, c.Name, c.Provider, c.OrgNumber, c.CompanyName, c.Status, c.ETag, c.CreatedAt, c.UpdatedAt, c.ExpiresAt)
	return err
}

const consentColumns = `id, tenant_id, name, provider, org_number, company_name, status, etag, created_at, updated_at, expires_at`

func (s *Store) GetConsent(ctx context.Context, tenantID, id string) (*domain.Consent, error) {
	var c domain.Consent
	err := s.db.GetContext(ctx, &c, `SELECT `+consentColumns+` FROM consents WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &c, nil
}

// GetConsentByIDAnyTenant looks up a consent with no tenant check; see
// database.Adapter for why this exists alongside the scoped GetConsent.
func (s *Store) GetConsentByIDAnyTenant(ctx context.Context, id string) (*domain.Consent, error) {
	var c domain.Consent
	err := s.db.GetContext(ctx, &c, `SELECT `+consentColumns+` FROM consents WHERE id = $1`, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &c, nil
}

func (s *Store) GetConsents(ctx context.Context, tenantID string, filter database.ConsentFilter) ([]domain.Consent, error) {
	query := `SELECT ` + consentColumns + ` FROM consents WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if filter.Provider != nil {
		args = append(args, *filter.Provider)
		query += ` AND provider = $` + strconv.Itoa(len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at ASC`

	var out []domain.Consent
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) DeleteConsent(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM consents WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return err
	}
	// consent_tokens and one_time_codes cascade via their foreign keys.
	return rowsAffectedOrNotFound(res)
}
