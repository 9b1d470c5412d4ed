package syncengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordicledger/accounting-gateway/internal/database"
	"github.com/nordicledger/accounting-gateway/internal/database/memory"
	"github.com/nordicledger/accounting-gateway/internal/domain"
	"github.com/nordicledger/accounting-gateway/internal/gateway"
	"github.com/nordicledger/accounting-gateway/internal/logging"
	"github.com/nordicledger/accounting-gateway/internal/mapper"
	"github.com/nordicledger/accounting-gateway/internal/ratelimit"
	"github.com/nordicledger/accounting-gateway/internal/vendorclient"
)

func fortnoxInvoicePage(docNumbers ...string) []byte {
	type invoice struct {
		DocumentNumber string `json:"DocumentNumber"`
		CustomerNumber string `json:"CustomerNumber"`
		Total          int    `json:"Total"`
		Currency       string `json:"Currency"`
	}
	invoices := make([]invoice, 0, len(docNumbers))
	for _, d := range docNumbers {
		invoices = append(invoices, invoice{DocumentNumber: d, CustomerNumber: "C1", Total: 100, Currency: "SEK"})
	}
	env := map[string]interface{}{
		"Invoices":        invoices,
		"MetaInformation": map[string]interface{}{"@TotalPages": 1, "@CurrentPage": 1},
	}
	b, _ := json.Marshal(env)
	return b
}

func newTestEngine(t *testing.T, handler http.Handler) (*Engine, *memory.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := vendorclient.NewFortnox(srv.Client(), ratelimit.New(ratelimit.Config{MaxRequests: 1000, WindowMs: 1000}))
	client.BaseURL = srv.URL

	registry := mapper.NewRegistry()
	gw := gateway.New(registry, map[domain.Provider]*vendorclient.Client{domain.ProviderFortnox: client})
	db := memory.New()
	log := logging.New("accounting-gateway-test", "error", "json")
	return New(db, gw, log), db
}

func TestEngine_Execute_InsertsThenDeduplicatesByContentHash(t *testing.T) {
	calls := 0
	engine, db := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Write(fortnoxInvoicePage("1001", "1002"))
	}))

	job := Job{
		JobID:        "job-1",
		ConnectionID: "conn-1",
		Provider:     domain.ProviderFortnox,
		Credentials:  gateway.Credentials{AccessToken: "tok"},
		EntityTypes:  []domain.EntityType{domain.EntityInvoice},
	}

	progress, err := engine.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncCompleted, progress.Status)
	require.Len(t, progress.EntityResults, 1)
	assert.True(t, progress.EntityResults[0].Success)
	assert.Equal(t, 2, progress.EntityResults[0].Inserted)
	assert.Equal(t, 0, progress.EntityResults[0].Unchanged)

	// Second run against the same unchanged payload: every record hashes
	// identically, so the delta counts them as unchanged, not re-inserted.
	progress2, err := engine.Execute(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, progress2.EntityResults, 1)
	assert.Equal(t, 0, progress2.EntityResults[0].Inserted)
	assert.Equal(t, 2, progress2.EntityResults[0].Unchanged)

	entities, err := db.GetEntities(context.Background(), "conn-1", domain.EntityInvoice, database.EntityQuery{})
	require.NoError(t, err)
	assert.Len(t, entities, 2)
}

func TestEngine_Execute_UnsupportedEntityTypeIsExcludedNotFailed(t *testing.T) {
	engine, _ := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(fortnoxInvoicePage())
	}))

	job := Job{
		JobID:        "job-2",
		ConnectionID: "conn-2",
		Provider:     domain.ProviderFortnox,
		Credentials:  gateway.Credentials{AccessToken: "tok"},
		EntityTypes:  []domain.EntityType{domain.EntityContract},
	}

	progress, err := engine.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Empty(t, progress.EntityResults)
	assert.Equal(t, domain.SyncCompleted, progress.Status)
}

func TestEngine_Execute_VendorErrorMarksEntityTypeFailedWithoutAbortingJob(t *testing.T) {
	engine, _ := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	job := Job{
		JobID:        "job-3",
		ConnectionID: "conn-3",
		Provider:     domain.ProviderFortnox,
		Credentials:  gateway.Credentials{AccessToken: "tok"},
		EntityTypes:  []domain.EntityType{domain.EntityInvoice, domain.EntityCustomer},
	}

	progress, err := engine.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncFailed, progress.Status)
	require.Len(t, progress.EntityResults, 2)
	for _, r := range progress.EntityResults {
		assert.False(t, r.Success)
		assert.NotEmpty(t, r.Error)
	}
}

func TestEffectiveEntityTypes_DefaultsToAllSupportedWhenUnrestricted(t *testing.T) {
	caps := capabilities{supportedEntityTypes: []domain.EntityType{domain.EntityInvoice, domain.EntityCustomer}}
	got := effectiveEntityTypes(nil, caps)
	assert.ElementsMatch(t, []domain.EntityType{domain.EntityInvoice, domain.EntityCustomer}, got)
}

func TestEffectiveEntityTypes_IntersectsRequestedWithSupported(t *testing.T) {
	caps := capabilities{supportedEntityTypes: []domain.EntityType{domain.EntityInvoice}}
	got := effectiveEntityTypes([]domain.EntityType{domain.EntityInvoice, domain.EntityContract}, caps)
	assert.Equal(t, []domain.EntityType{domain.EntityInvoice}, got)
}

func TestContentHash_StableAcrossKeyOrder(t *testing.T) {
	a := []byte(`{"b":1,"a":2}`)
	b := []byte(`{"a":2,"b":1}`)
	ha, err := contentHash(a)
	require.NoError(t, err)
	hb, err := contentHash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestContentHash_DiffersOnValueChange(t *testing.T) {
	ha, err := contentHash([]byte(`{"a":1}`))
	require.NoError(t, err)
	hb, err := contentHash([]byte(`{"a":2}`))
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}
