package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/nordicledger/accounting-gateway/internal/database"
	"github.com/nordicledger/accounting-gateway/internal/domain"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func TestGetTenantReturnsNotFoundOnNoRows(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, name, created_at, updated_at FROM tenants").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetTenant(context.Background(), "missing")
	if err != database.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetTenantFound(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}).
		AddRow("tenant-1", "Acme", now, now)
	mock.ExpectQuery("SELECT id, name, created_at, updated_at FROM tenants").
		WithArgs("tenant-1").
		WillReturnRows(rows)

	got, err := store.GetTenant(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Acme" {
		t.Fatalf("got name %q", got.Name)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestValidateOneTimeCodeConsumesOnce(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"code", "consent_id", "expires_at", "used_at", "created_at"}).
		AddRow("abc123", "consent-1", now.Add(time.Hour), now, now.Add(-time.Minute))
	mock.ExpectQuery("UPDATE one_time_codes SET used_at").
		WithArgs("abc123", sqlmock.AnyArg()).
		WillReturnRows(rows)

	otc, err := store.ValidateOneTimeCode(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if otc.ConsentID != "consent-1" {
		t.Fatalf("got consent id %q", otc.ConsentID)
	}
}

func TestValidateOneTimeCodeAlreadyUsedReturnsNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("UPDATE one_time_codes SET used_at").
		WithArgs("used-code", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"code", "consent_id", "expires_at", "used_at", "created_at"}))

	_, err := store.ValidateOneTimeCode(context.Background(), "used-code")
	if err != database.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertEntitiesCountsInsertUpdateUnchanged(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()

	// First row: brand new, INSERT branch fires (xmax = 0 -> true).
	mock.ExpectQuery("INSERT INTO canonical_entities").
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(true))
	// Second row: existing row, content hash changed, UPDATE branch fires.
	mock.ExpectQuery("INSERT INTO canonical_entities").
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(false))
	// Third row: existing row, same content hash, WHERE guard suppresses the
	// write and RETURNING yields no row.
	mock.ExpectQuery("INSERT INTO canonical_entities").
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}))
	mock.ExpectCommit()

	records := []domain.CanonicalEntityRecord{
		{ExternalID: "1", ContentHash: "h1"},
		{ExternalID: "2", ContentHash: "h2"},
		{ExternalID: "3", ContentHash: "h3"},
	}
	result, err := store.UpsertEntities(context.Background(), "conn-1", domain.EntityInvoice, records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Inserted != 1 || result.Updated != 1 || result.Unchanged != 1 {
		t.Fatalf("got %+v", result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsertEntitiesEmptyIsNoop(t *testing.T) {
	store, mock := newMockStore(t)
	result, err := store.UpsertEntities(context.Background(), "conn-1", domain.EntityInvoice, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != (database.UpsertResult{}) {
		t.Fatalf("expected zero result, got %+v", result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetSyncStateReturnsZeroValueWhenAbsent(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT connection_id, entity_type, last_sync_at").
		WithArgs("conn-1", domain.EntityInvoice).
		WillReturnError(sql.ErrNoRows)

	st, err := store.GetSyncState(context.Background(), "conn-1", domain.EntityInvoice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.ConnectionID != "conn-1" || st.TotalInserted != 0 {
		t.Fatalf("expected zero-value state, got %+v", st)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListConsentsNeedingRefreshFiltersByExpiry(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "tenant_id", "name", "provider", "org_number", "company_name", "status", "etag", "created_at", "updated_at", "expires_at"}).
		AddRow("consent-1", "tenant-1", "Acme Fortnox", domain.ProviderFortnox, nil, nil, domain.ConsentAccepted, "etag-1", now, now, nil)
	mock.ExpectQuery("FROM consents c").
		WithArgs(domain.ConsentAccepted, sqlmock.AnyArg()).
		WillReturnRows(rows)

	got, err := store.ListConsentsNeedingRefresh(context.Background(), now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "consent-1" {
		t.Fatalf("got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPurgeExpiredConsentsReturnsRowsAffected(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM consents").
		WithArgs(domain.ConsentCreated, 7, domain.ConsentRevoked, domain.ConsentInactive, 30).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.PurgeExpiredConsents(context.Background(), 7, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
