package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordicledger/accounting-gateway/internal/domain"
	gwerrors "github.com/nordicledger/accounting-gateway/internal/errors"
	"github.com/nordicledger/accounting-gateway/internal/mapper"
	"github.com/nordicledger/accounting-gateway/internal/vendorclient"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) (*Gateway, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client := vendorclient.New("fortnox", srv.URL, vendorclient.StyleFortnox, nil, srv.Client(), nil)
	g := New(mapper.NewRegistry(), map[domain.Provider]*vendorclient.Client{domain.ProviderFortnox: client})
	return g, srv.Close
}

func TestSupportsReportsRegistryCapabilityWithoutClient(t *testing.T) {
	g := New(mapper.NewRegistry(), map[domain.Provider]*vendorclient.Client{})
	assert.True(t, g.Supports(domain.ProviderFortnox, domain.ResourceCustomers))
	assert.False(t, g.Supports(domain.ProviderBokio, domain.ResourceAttachments))
}

func TestListReturnsNotConfiguredWhenNoClientForVendor(t *testing.T) {
	g := New(mapper.NewRegistry(), map[domain.Provider]*vendorclient.Client{})
	_, err := g.List(context.Background(), domain.ProviderFortnox, Credentials{}, domain.ResourceCustomers, domain.ListOptions{})
	require.Error(t, err)
	se, ok := gwerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, gwerrors.CodeNotConfigured, se.Code)
}

func TestListReturnsNotSupportedForUnknownResourceType(t *testing.T) {
	g, closeSrv := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})
	defer closeSrv()
	_, err := g.List(context.Background(), domain.ProviderBokio, Credentials{}, domain.ResourceAttachments, domain.ListOptions{})
	require.Error(t, err)
	se, ok := gwerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, gwerrors.CodeNotSupported, se.Code)
}

func TestListMapsEachItemAndCarriesPaginationMetadata(t *testing.T) {
	g, closeSrv := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"MetaInformation":{"@TotalPages":2,"@CurrentPage":1},"Customers":[
			{"CustomerNumber":"C1","Name":"Acme","Type":"COMPANY"},
			{"CustomerNumber":"C2","Name":"Beta","Type":"COMPANY"}
		]}`))
	})
	defer closeSrv()

	resp, err := g.List(context.Background(), domain.ProviderFortnox, Credentials{AccessToken: "tok"}, domain.ResourceCustomers, domain.ListOptions{Page: 1, PageSize: 50})
	require.NoError(t, err)
	require.Len(t, resp.Data, 2)
	assert.True(t, resp.HasMore)
	assert.Equal(t, 1, resp.Page)
}

func TestGetReturnsNilDTOOn404WithoutError(t *testing.T) {
	g, closeSrv := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	defer closeSrv()

	dto, err := g.Get(context.Background(), domain.ProviderFortnox, Credentials{AccessToken: "tok"}, domain.ResourceCustomers, "missing")
	require.NoError(t, err)
	assert.Nil(t, dto)
}

func TestGetTranslatesUnauthorizedUpstreamStatus(t *testing.T) {
	g, closeSrv := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	defer closeSrv()

	_, err := g.Get(context.Background(), domain.ProviderFortnox, Credentials{AccessToken: "tok"}, domain.ResourceCustomers, "C1")
	require.Error(t, err)
	se, ok := gwerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, gwerrors.CodeUnauthorized, se.Code)
}

func TestGetMapsSuccessfulResponseIntoCanonicalDTO(t *testing.T) {
	g, closeSrv := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Customer":{"CustomerNumber":"C1","Name":"Acme AB","Type":"COMPANY"}}`))
	})
	defer closeSrv()

	dto, err := g.Get(context.Background(), domain.ProviderFortnox, Credentials{AccessToken: "tok"}, domain.ResourceCustomers, "C1")
	require.NoError(t, err)
	require.NotNil(t, dto)
	c, ok := dto.(*domain.Customer)
	require.True(t, ok)
	assert.Equal(t, "C1", c.ExternalID)
}

func TestStripAllClearsRawPayloadOnEveryItem(t *testing.T) {
	g, closeSrv := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Customer":{"CustomerNumber":"C1","Name":"Acme AB","Type":"COMPANY"}}`))
	})
	defer closeSrv()

	dto, err := g.Get(context.Background(), domain.ProviderFortnox, Credentials{AccessToken: "tok"}, domain.ResourceCustomers, "C1")
	require.NoError(t, err)
	StripAll([]domain.DTO{dto})
	c := dto.(*domain.Customer)
	assert.Nil(t, c.RawData)
}

func TestFetchSIEFileReturnsRawBytesFromVendor(t *testing.T) {
	g, closeSrv := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#FLAGGA 0\n"))
	})
	defer closeSrv()

	b, err := g.FetchSIEFile(context.Background(), domain.ProviderFortnox, Credentials{AccessToken: "tok"}, "/sie/export")
	require.NoError(t, err)
	assert.Equal(t, "#FLAGGA 0\n", string(b))
}

func TestFetchSIEFileReturnsNotConfiguredForUnregisteredVendor(t *testing.T) {
	g := New(mapper.NewRegistry(), map[domain.Provider]*vendorclient.Client{})
	_, err := g.FetchSIEFile(context.Background(), domain.ProviderVisma, Credentials{}, "/sie")
	require.Error(t, err)
	se, ok := gwerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, gwerrors.CodeNotConfigured, se.Code)
}
