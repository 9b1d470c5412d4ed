package postgres

import (
	"context"

	"github.com/nordicledger/accounting-gateway/internal/domain"
)

// PurgeExpiredConsents deletes consents past their status-dependent cutoff:
// created-but-never-accepted consents age out after createdOlderThanDays,
// revoked/inactive ones after inactiveOlderThanDays, both measured against
// updated_at. consent_tokens and one_time_codes cascade via their foreign
// keys, matching memory.Store's manual sweep.
func (s *Store) PurgeExpiredConsents(ctx context.Context, createdOlderThanDays, inactiveOlderThanDays int) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM consents
		WHERE (status = $1 AND updated_at <= now() - ($2 || ' days')::interval)
		   OR (status IN ($3, $4) AND updated_at <= now() - ($5 || ' days')::interval)
	`, domain.ConsentCreated, createdOlderThanDays, domain.ConsentRevoked, domain.ConsentInactive, inactiveOlderThanDays)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
