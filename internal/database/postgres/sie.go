package postgres

import (
	"context"
	"encoding/json"

	"github.com/nordicledger/accounting-gateway/internal/domain"
)

// StoreSIEData writes the full parsed payload and upserts the corresponding
// sie_uploads row, the Postgres equivalent of memory.Store's dual-write
// into sieData and the replace-or-append sieUploads list.
func (s *Store) StoreSIEData(ctx context.Context, d *domain.SIEData) error {
	parsed, err := json.Marshal(d.Parsed)
	if err != nil {
		return err
	}
	kpis, err := json.Marshal(d.KPIs)
	if err != nil {
		return err
	}
	validation, err := json.Marshal(d.Validation)
	if err != nil {
		return err
	}
	d.StoredAt = nowUTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sie_data (connection_id, fiscal_year, sie_type, parsed, kpis, validation, raw_text, stored_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (connection_id, fiscal_year, sie_type) DO UPDATE SET
			parsed = EXCLUDED.parsed, kpis = EXCLUDED.kpis, validation = EXCLUDED.validation,
			raw_text = EXCLUDED.raw_text, stored_at = EXCLUDED.stored_at
	`, d.ConnectionID, d.FiscalYear, d.SIEType, parsed, kpis, validation, d.RawText, d.StoredAt)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sie_uploads (connection_id, fiscal_year, sie_type, filename, uploaded_at)
		VALUES ($1, $2, $3, '', $4)
		ON CONFLICT (connection_id, fiscal_year, sie_type) DO UPDATE SET uploaded_at = EXCLUDED.uploaded_at
	`, d.ConnectionID, d.FiscalYear, d.SIEType, d.StoredAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) GetSIEUploads(ctx context.Context, connectionID string) ([]domain.SIEUpload, error) {
	var out []domain.SIEUpload
	err := s.db.SelectContext(ctx, &out, `
		SELECT connection_id, fiscal_year, sie_type, filename, uploaded_at
		FROM sie_uploads WHERE connection_id = $1 ORDER BY fiscal_year ASC, sie_type ASC
	`, connectionID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

type sieDataRow struct {
	domain.SIEData
	ParsedRaw     []byte `db:"parsed"`
	KPIsRaw       []byte `db:"kpis"`
	ValidationRaw []byte `db:"validation"`
}

func (s *Store) GetSIEData(ctx context.Context, connectionID string, fiscalYear int, sieType domain.SIEType) (*domain.SIEData, error) {
	var row sieDataRow
	err := s.db.GetContext(ctx, &row, `
		SELECT connection_id, fiscal_year, sie_type, parsed, kpis, validation, raw_text, stored_at
		FROM sie_data WHERE connection_id = $1 AND fiscal_year = $2 AND sie_type = $3
	`, connectionID, fiscalYear, sieType)
	if err != nil {
		return nil, mapNotFound(err)
	}
	d := row.SIEData
	if len(row.ParsedRaw) > 0 {
		_ = json.Unmarshal(row.ParsedRaw, &d.Parsed)
	}
	if len(row.KPIsRaw) > 0 && string(row.KPIsRaw) != "null" {
		_ = json.Unmarshal(row.KPIsRaw, &d.KPIs)
	}
	if len(row.ValidationRaw) > 0 {
		_ = json.Unmarshal(row.ValidationRaw, &d.Validation)
	}
	return &d, nil
}
