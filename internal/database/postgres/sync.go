package postgres

import (
	"context"
	"encoding/json"

	"github.com/nordicledger/accounting-gateway/internal/database"
	"github.com/nordicledger/accounting-gateway/internal/domain"
)

func (s *Store) GetSyncState(ctx context.Context, connectionID string, entityType domain.EntityType) (*domain.SyncState, error) {
	var st domain.SyncState
	err := s.db.GetContext(ctx, &st, `
		SELECT connection_id, entity_type, last_sync_at, last_modified_cursor, total_inserted, total_updated, total_unchanged, last_error, updated_at
		FROM sync_states WHERE connection_id = $1 AND entity_type = $2
	`, connectionID, entityType)
	if err == nil {
		return &st, nil
	}
	if isNoRows(err) {
		// No row yet is not an error: a fresh (connection, entity type) pair
		// has a zero-value cursor, same as memory.Store.
		return &domain.SyncState{ConnectionID: connectionID, EntityType: entityType}, nil
	}
	return nil, err
}

// UpdateSyncState implements the partial merge memory.Store performs:
// non-nil fields overwrite, and the Inc* deltas add onto the running totals,
// all in one upsert statement.
func (s *Store) UpdateSyncState(ctx context.Context, connectionID string, entityType domain.EntityType, update database.SyncStateUpdate) error {
	now := nowUTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_states (connection_id, entity_type, last_sync_at, last_modified_cursor, total_inserted, total_updated, total_unchanged, last_error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (connection_id, entity_type) DO UPDATE SET
			last_sync_at = COALESCE($3, sync_states.last_sync_at),
			last_modified_cursor = COALESCE($4, sync_states.last_modified_cursor),
			total_inserted = sync_states.total_inserted + $5,
			total_updated = sync_states.total_updated + $6,
			total_unchanged = sync_states.total_unchanged + $7,
			last_error = COALESCE($8, sync_states.last_error),
			updated_at = $9
	`, connectionID, entityType, update.LastSyncAt, update.LastModifiedCursor,
		update.IncInserted, update.IncUpdated, update.IncUnchanged, update.LastError, now)
	return err
}

func (s *Store) UpsertSyncProgress(ctx context.Context, p *domain.SyncProgress) error {
	entityResults, err := json.Marshal(p.EntityResults)
	if err != nil {
		return err
	}
	sieResult, err := json.Marshal(p.SIEResult)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sync_progress (job_id, connection_id, provider, status, progress, entity_results, sie_result, started_at, finished_at, duration_millis)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (job_id) DO UPDATE SET
			status = EXCLUDED.status, progress = EXCLUDED.progress, entity_results = EXCLUDED.entity_results,
			sie_result = EXCLUDED.sie_result, finished_at = EXCLUDED.finished_at, duration_millis = EXCLUDED.duration_millis
	`, p.JobID, p.ConnectionID, p.Provider, p.Status, p.Progress, entityResults, sieResult, p.StartedAt, p.FinishedAt, p.DurationMillis)
	return err
}

type syncProgressRow struct {
	domain.SyncProgress
	EntityResultsRaw []byte `db:"entity_results"`
	SIEResultRaw     []byte `db:"sie_result"`
}

func scanSyncProgress(row syncProgressRow) domain.SyncProgress {
	p := row.SyncProgress
	if len(row.EntityResultsRaw) > 0 {
		_ = json.Unmarshal(row.EntityResultsRaw, &p.EntityResults)
	}
	if len(row.SIEResultRaw) > 0 && string(row.SIEResultRaw) != "null" {
		_ = json.Unmarshal(row.SIEResultRaw, &p.SIEResult)
	}
	return p
}

const syncProgressColumns = `job_id, connection_id, provider, status, progress, entity_results, sie_result, started_at, finished_at, duration_millis`

func (s *Store) GetSyncProgress(ctx context.Context, jobID string) (*domain.SyncProgress, error) {
	var row syncProgressRow
	err := s.db.GetContext(ctx, &row, `SELECT `+syncProgressColumns+` FROM sync_progress WHERE job_id = $1`, jobID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	p := scanSyncProgress(row)
	return &p, nil
}

func (s *Store) GetSyncHistory(ctx context.Context, connectionID string, limit int) ([]domain.SyncProgress, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []syncProgressRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+syncProgressColumns+` FROM sync_progress WHERE connection_id = $1 ORDER BY started_at DESC LIMIT $2
	`, connectionID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SyncProgress, 0, len(rows))
	for _, row := range rows {
		out = append(out, scanSyncProgress(row))
	}
	return out, nil
}
