package postgres

import (
	"context"

	"github.com/nordicledger/accounting-gateway/internal/database"
	"github.com/nordicledger/accounting-gateway/internal/domain"
)

// UpsertEntities implements the content-hash delta of spec.md §4.10 as a
// single statement per record inside one transaction: INSERT ... ON CONFLICT
// DO UPDATE, but only when the incoming content_hash differs from the
// stored one. RETURNING a marker column tells us which branch fired so the
// per-row Inserted/Updated/Unchanged counters memory.Store tracks in Go can
// be tracked here in SQL instead.
func (s *Store) UpsertEntities(ctx context.Context, connectionID string, entityType domain.EntityType, entities []domain.CanonicalEntityRecord) (database.UpsertResult, error) {
	var result database.UpsertResult
	if len(entities) == 0 {
		return result, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return result, err
	}
	defer tx.Rollback()

	const stmt = `
		INSERT INTO canonical_entities (
			connection_id, external_id, entity_type, provider, fiscal_year, document_date, due_date,
			counterparty_number, counterparty_name, amount, currency, status, raw_data, last_modified,
			content_hash, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)
		ON CONFLICT (connection_id, entity_type, external_id) DO UPDATE SET
			provider = EXCLUDED.provider, fiscal_year = EXCLUDED.fiscal_year, document_date = EXCLUDED.document_date,
			due_date = EXCLUDED.due_date, counterparty_number = EXCLUDED.counterparty_number,
			counterparty_name = EXCLUDED.counterparty_name, amount = EXCLUDED.amount, currency = EXCLUDED.currency,
			status = EXCLUDED.status, raw_data = EXCLUDED.raw_data, last_modified = EXCLUDED.last_modified,
			content_hash = EXCLUDED.content_hash, updated_at = EXCLUDED.updated_at
		WHERE canonical_entities.content_hash IS DISTINCT FROM EXCLUDED.content_hash
		RETURNING (xmax = 0) AS inserted
	`

	now := nowUTC()
	for _, e := range entities {
		var inserted bool
		err := tx.QueryRowxContext(ctx, stmt,
			connectionID, e.ExternalID, entityType, e.Provider, e.FiscalYear, e.DocumentDate, e.DueDate,
			e.CounterpartyNumber, e.CounterpartyName, e.Amount, currencyOrDefault(e.Currency), e.Status,
			e.RawData, e.LastModified, e.ContentHash, now,
		).Scan(&inserted)
		switch {
		case err == nil && inserted:
			result.Inserted++
		case err == nil && !inserted:
			result.Updated++
		case isNoRows(err):
			// The WHERE guard suppressed the UPDATE: content hash unchanged.
			result.Unchanged++
		default:
			return result, err
		}
	}

	if err := tx.Commit(); err != nil {
		return database.UpsertResult{}, err
	}
	return result, nil
}

func (s *Store) GetEntities(ctx context.Context, connectionID string, entityType domain.EntityType, q database.EntityQuery) ([]domain.CanonicalEntityRecord, error) {
	page, pageSize := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	query := `
		SELECT connection_id, external_id, entity_type, provider, fiscal_year, document_date, due_date,
		       counterparty_number, counterparty_name, amount, currency, status, raw_data, last_modified,
		       content_hash, created_at, updated_at
		FROM canonical_entities WHERE connection_id = $1 AND entity_type = $2`
	args := []interface{}{connectionID, entityType}
	if q.FiscalYear != nil {
		args = append(args, *q.FiscalYear)
		query += ` AND fiscal_year = $3`
	}
	query += ` ORDER BY external_id ASC LIMIT $` + placeholder(len(args)+1) + ` OFFSET $` + placeholder(len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	var out []domain.CanonicalEntityRecord
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetEntityCount(ctx context.Context, connectionID string, entityType domain.EntityType, q database.EntityQuery) (int, error) {
	query := `SELECT count(*) FROM canonical_entities WHERE connection_id = $1 AND entity_type = $2`
	args := []interface{}{connectionID, entityType}
	if q.FiscalYear != nil {
		args = append(args, *q.FiscalYear)
		query += ` AND fiscal_year = $3`
	}
	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, err
	}
	return count, nil
}

func currencyOrDefault(c string) string {
	if c == "" {
		return domain.DefaultCurrency
	}
	return c
}
