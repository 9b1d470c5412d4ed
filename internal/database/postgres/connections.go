package postgres

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/nordicledger/accounting-gateway/internal/database"
	"github.com/nordicledger/accounting-gateway/internal/domain"
)

func (s *Store) UpsertConnection(ctx context.Context, c *domain.Connection) error {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO connections (connection_id, tenant_id, consent_id, provider, display_name, organization_number, last_sync_at, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (connection_id) DO UPDATE SET
			display_name = EXCLUDED.display_name, organization_number = EXCLUDED.organization_number,
			last_sync_at = EXCLUDED.last_sync_at, metadata = EXCLUDED.metadata, updated_at = EXCLUDED.updated_at
	`, c.ConnectionID, c.TenantID, c.ConsentID, c.Provider, c.DisplayName, c.OrganizationNumber, c.LastSyncAt, metadata, c.CreatedAt, c.UpdatedAt)
	return err
}

const connectionColumns = `connection_id, tenant_id, consent_id, provider, display_name, organization_number, last_sync_at, metadata, created_at, updated_at`

type connectionRow struct {
	domain.Connection
	MetadataRaw []byte `db:"metadata"`
}

func scanConnection(row connectionRow) domain.Connection {
	c := row.Connection
	if len(row.MetadataRaw) > 0 {
		_ = json.Unmarshal(row.MetadataRaw, &c.Metadata)
	}
	return c
}

func (s *Store) GetConnection(ctx context.Context, tenantID, connectionID string) (*domain.Connection, error) {
	var row connectionRow
	err := s.db.GetContext(ctx, &row, `SELECT `+connectionColumns+` FROM connections WHERE connection_id = $1 AND tenant_id = $2`, connectionID, tenantID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	c := scanConnection(row)
	return &c, nil
}

func (s *Store) GetConnections(ctx context.Context, tenantID string, filter database.ConnectionFilter) ([]domain.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if filter.Provider != nil {
		args = append(args, *filter.Provider)
		query += ` AND provider = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at ASC`

	var rows []connectionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]domain.Connection, 0, len(rows))
	for _, row := range rows {
		out = append(out, scanConnection(row))
	}
	return out, nil
}

// DeleteConnection relies on the foreign-key ON DELETE CASCADE from
// canonical_entities, sync_states, sync_progress, sie_uploads and sie_data
// onto connections, rather than memory.Store's manual per-map sweep.
func (s *Store) DeleteConnection(ctx context.Context, tenantID, connectionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE connection_id = $1 AND tenant_id = $2`, connectionID, tenantID)
	if err != nil {
		return err
	}
	return rowsAffectedOrNotFound(res)
}
