package postgres

import (
	"context"
	"time"

	"github.com/nordicledger/accounting-gateway/internal/domain"
)

func (s *Store) CreateOneTimeCode(ctx context.Context, o *domain.OneTimeCode) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO one_time_codes (code, consent_id, expires_at, used_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, o.Code, o.ConsentID, o.ExpiresAt, o.UsedAt, o.CreatedAt)
	return err
}

// ValidateOneTimeCode atomically checks and marks a code used (spec.md P2):
// the UPDATE's WHERE clause only matches an unused, unexpired row, so a
// concurrent second call for the same code affects zero rows and reports
// ErrNotFound, mirroring memory.Store's single-mutex guarantee.
func (s *Store) ValidateOneTimeCode(ctx context.Context, code string) (*domain.OneTimeCode, error) {
	now := time.Now().UTC()
	var o domain.OneTimeCode
	err := s.db.GetContext(ctx, &o, `
		UPDATE one_time_codes SET used_at = $2
		WHERE code = $1 AND used_at IS NULL AND expires_at > $2
		RETURNING code, consent_id, expires_at, used_at, created_at
	`, code, now)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &o, nil
}
