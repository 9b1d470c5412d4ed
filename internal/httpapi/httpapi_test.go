package httpapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordicledger/accounting-gateway/internal/consent"
	"github.com/nordicledger/accounting-gateway/internal/database/memory"
	"github.com/nordicledger/accounting-gateway/internal/domain"
	"github.com/nordicledger/accounting-gateway/internal/gateway"
	"github.com/nordicledger/accounting-gateway/internal/logging"
	"github.com/nordicledger/accounting-gateway/internal/mapper"
	"github.com/nordicledger/accounting-gateway/internal/middleware"
	"github.com/nordicledger/accounting-gateway/internal/ratelimit"
	"github.com/nordicledger/accounting-gateway/internal/syncengine"
	"github.com/nordicledger/accounting-gateway/internal/vault"
	"github.com/nordicledger/accounting-gateway/internal/vendorclient"
)

const testAPIKey = "test-api-key"

func newTestServer(t *testing.T, vendorHandler http.Handler) (*httptest.Server, *memory.Store) {
	t.Helper()
	db := memory.New()
	db.SeedTenant(domain.Tenant{ID: "tenant-1", Name: "Acme", CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()})
	sum := sha256.Sum256([]byte(testAPIKey))
	db.SeedAPIKey(domain.APIKey{ID: "key-1", TenantID: "tenant-1", KeyHash: hex.EncodeToString(sum[:]), Label: "test", CreatedAt: time.Now().UTC()})

	v := vault.New(db, nil)
	consents := consent.New(db, v)

	var gw *gateway.Gateway
	if vendorHandler != nil {
		srv := httptest.NewServer(vendorHandler)
		t.Cleanup(srv.Close)
		client := vendorclient.NewFortnox(srv.Client(), ratelimit.New(ratelimit.Config{MaxRequests: 1000, WindowMs: 1000}))
		client.BaseURL = srv.URL
		registry := mapper.NewRegistry()
		gw = gateway.New(registry, map[domain.Provider]*vendorclient.Client{domain.ProviderFortnox: client})
	} else {
		gw = gateway.New(mapper.NewRegistry(), map[domain.Provider]*vendorclient.Client{})
	}

	log := logging.New("accounting-gateway-test", "error", "json")
	engine := syncengine.New(db, gw, log)

	router := NewRouter(Dependencies{
		DB: db, Consents: consents, Gateway: gw, SyncEngine: engine, Vault: v,
		Refreshers: map[domain.Provider]vault.Refresher{},
		Vendors:    VendorConfig{Configured: map[domain.Provider]bool{domain.ProviderFortnox: true}},
		Mode:       middleware.ModeHosted,
		Logger:     log,
		CORS:       middleware.CORSConfig{},
		IngressRate: ratelimit.Config{MaxRequests: 1000, WindowMs: 1000},
		MaxBodyBytes: 16 << 20,
		Version:    "test",
		StartedAt:  time.Now().UTC(),
	})
	return httptest.NewServer(router), db
}

func authedRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealthz_ReturnsOKWithoutAuth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestConsentLifecycle_CreateGetPatchDelete(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	defer srv.Close()
	client := srv.Client()

	resp, err := client.Do(authedRequest(t, http.MethodPost, srv.URL+"/api/v1/consents", map[string]string{
		"name": "My Fortnox Account", "provider": "fortnox",
	}))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created domain.Consent
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, domain.ConsentCreated, created.Status)
	assert.NotEmpty(t, created.ETag)

	getResp, err := client.Do(authedRequest(t, http.MethodGet, srv.URL+"/api/v1/consents/"+created.ID, nil))
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)

	patchResp, err := client.Do(authedRequest(t, http.MethodPatch, srv.URL+"/api/v1/consents/"+created.ID, map[string]string{"name": "Renamed"}))
	require.NoError(t, err)
	defer patchResp.Body.Close()
	require.Equal(t, http.StatusOK, patchResp.StatusCode)
	var patched domain.Consent
	require.NoError(t, json.NewDecoder(patchResp.Body).Decode(&patched))
	assert.Equal(t, "Renamed", patched.Name)

	delResp, err := client.Do(authedRequest(t, http.MethodDelete, srv.URL+"/api/v1/consents/"+created.ID, nil))
	require.NoError(t, err)
	defer delResp.Body.Close()
	assert.Equal(t, http.StatusOK, delResp.StatusCode)

	missingResp, err := client.Do(authedRequest(t, http.MethodGet, srv.URL+"/api/v1/consents/"+created.ID, nil))
	require.NoError(t, err)
	defer missingResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, missingResp.StatusCode)
}

func TestConsentRoutes_MissingAPIKeyIsUnauthorized(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/consents")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestExchangeTokenThenDataPlaneList_ReturnsVendorData(t *testing.T) {
	vendor := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Invoices":[{"DocumentNumber":"1","CustomerNumber":"C1","Total":100,"Currency":"SEK"}],"MetaInformation":{"@TotalPages":1,"@CurrentPage":1}}`))
	})
	srv, db := newTestServer(t, vendor)
	defer srv.Close()
	client := srv.Client()

	resp, err := client.Do(authedRequest(t, http.MethodPost, srv.URL+"/api/v1/consents", map[string]string{
		"name": "Acme Fortnox", "provider": "fortnox",
	}))
	require.NoError(t, err)
	var created domain.Consent
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	otcResp, err := client.Do(authedRequest(t, http.MethodPost, srv.URL+"/api/v1/consents/"+created.ID+"/otc", nil))
	require.NoError(t, err)
	var otc struct {
		Code      string `json:"code"`
		ConsentID string `json:"consentId"`
	}
	require.NoError(t, json.NewDecoder(otcResp.Body).Decode(&otc))
	otcResp.Body.Close()

	exResp, err := client.Do(authedRequest(t, http.MethodPost, srv.URL+"/api/v1/consents/auth/token", map[string]interface{}{
		"code": otc.Code, "consentId": otc.ConsentID, "provider": "fortnox", "accessToken": "tok-1",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, exResp.StatusCode)
	exResp.Body.Close()

	listResp, err := client.Do(authedRequest(t, http.MethodGet, srv.URL+"/api/v1/consents/"+created.ID+"/sales-invoices", nil))
	require.NoError(t, err)
	defer listResp.Body.Close()
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	var page domain.PaginatedResponse[domain.SalesInvoice]
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&page))
	require.Len(t, page.Data, 1)
	assert.Equal(t, "1", page.Data[0].ExternalID)
	assert.Nil(t, page.Data[0].RawData) // StripAll must run before the HTTP boundary

	ctx := context.Background()
	tokens, err := db.GetConsentTokens(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderFortnox, tokens.Provider)
}

func TestDataPlaneRoutes_RejectConsentNotAccepted(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	defer srv.Close()
	client := srv.Client()

	resp, err := client.Do(authedRequest(t, http.MethodPost, srv.URL+"/api/v1/consents", map[string]string{
		"name": "Pending", "provider": "fortnox",
	}))
	require.NoError(t, err)
	var created domain.Consent
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	listResp, err := client.Do(authedRequest(t, http.MethodGet, srv.URL+"/api/v1/consents/"+created.ID+"/sales-invoices", nil))
	require.NoError(t, err)
	defer listResp.Body.Close()
	assert.Equal(t, http.StatusForbidden, listResp.StatusCode)
}

func TestOAuthURL_NotSupportedForStaticTokenVendor(t *testing.T) {
	db := memory.New()
	db.SeedTenant(domain.Tenant{ID: "tenant-1", Name: "Acme"})
	sum := sha256.Sum256([]byte(testAPIKey))
	db.SeedAPIKey(domain.APIKey{ID: "key-1", TenantID: "tenant-1", KeyHash: hex.EncodeToString(sum[:])})
	v := vault.New(db, nil)
	consents := consent.New(db, v)
	gw := gateway.New(mapper.NewRegistry(), map[domain.Provider]*vendorclient.Client{})
	log := logging.New("accounting-gateway-test", "error", "json")

	router := NewRouter(Dependencies{
		DB: db, Consents: consents, Gateway: gw, SyncEngine: syncengine.New(db, gw, log), Vault: v,
		Refreshers: map[domain.Provider]vault.Refresher{
			domain.ProviderBokio: bokioStaticDriver{},
		},
		Mode: middleware.ModeHosted, Logger: log,
		IngressRate: ratelimit.Config{MaxRequests: 1000, WindowMs: 1000}, MaxBodyBytes: 1 << 20,
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := srv.Client().Do(authedRequest(t, http.MethodGet, srv.URL+"/api/v1/auth/bokio/url?state=abc", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

type bokioStaticDriver struct{}

func (bokioStaticDriver) Refresh(ctx context.Context, provider domain.Provider, current vault.Tokens) (vault.Tokens, error) {
	return current, nil
}
