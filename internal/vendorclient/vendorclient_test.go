package vendorclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFortnoxSetsBearerAuthorizationHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"Customer":{}}`))
	}))
	defer srv.Close()

	c := NewFortnox(srv.Client(), nil)
	c.BaseURL = srv.URL
	var out map[string]interface{}
	require.NoError(t, c.Get(context.Background(), "/customers/1", "tok-123", nil, &out))
	assert.Equal(t, "Bearer tok-123", gotAuth)
}

func TestNewBrioxSendsClientIDHeaderWhenCompanyIDPresent(t *testing.T) {
	var gotClientID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClientID = r.Header.Get("clientId")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewBriox(srv.Client(), nil)
	c.BaseURL = srv.URL
	companyID := "co-9"
	var out map[string]interface{}
	require.NoError(t, c.Get(context.Background(), "/vouchers", "tok", &companyID, &out))
	assert.Equal(t, "co-9", gotClientID)
}

func TestNewBjornLundenSendsUserKeyInsteadOfBearer(t *testing.T) {
	var gotUserKey, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserKey = r.Header.Get("User-Key")
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewBjornLunden(srv.Client(), nil)
	c.BaseURL = srv.URL
	var out map[string]interface{}
	require.NoError(t, c.Get(context.Background(), "/vouchers", "user-key-1", nil, &out))
	assert.Equal(t, "user-key-1", gotUserKey)
	assert.Empty(t, gotAuth)
}

func TestDoReturnsHTTPStatusErrorOnNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`not found`))
	}))
	defer srv.Close()

	c := New("fortnox", srv.URL, StyleFortnox, nil, srv.Client(), nil)
	var out map[string]interface{}
	err := c.Get(context.Background(), "/missing", "tok", nil, &out)
	require.Error(t, err)
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 404, statusErr.StatusCode())
}

func TestBuildPagePathEncodesEachVendorDialect(t *testing.T) {
	cases := []struct {
		style PaginationStyle
		want  string
	}{
		{StyleFortnox, "/x?page=2&limit=50"},
		{StyleVisma, "/x?$top=50&$skip=50"},
		{StyleBriox, "/x?pageRequested=2&rowsRequested=50"},
		{StyleBjornLunden, "/x?pageRequested=2&rowsRequested=50"},
		{StyleBokio, "/x?page=2&pageSize=50"},
	}
	for _, c := range cases {
		client := &Client{Style: c.style}
		got := client.buildPagePath("/x", 2, 50, "")
		assert.Equal(t, c.want, got, "style=%s", c.style)
	}
}

func TestGetPageDecodesFortnoxEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"MetaInformation":{"@TotalPages":3,"@CurrentPage":1},"Invoices":[{"DocumentNumber":"1"}]}`))
	}))
	defer srv.Close()

	c := New("fortnox", srv.URL, StyleFortnox, nil, srv.Client(), nil)
	page, err := c.GetPage(context.Background(), "/invoices", "Invoices", "tok", nil, PageParams{Page: 1, PageSize: 50})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.True(t, page.HasMore)
	assert.Equal(t, 3, page.TotalPages)
}

func TestGetPageDecodesVismaEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Meta":{"CurrentPage":2,"TotalNumberOfPages":2},"Data":[{"Id":"a"},{"Id":"b"}]}`))
	}))
	defer srv.Close()

	c := New("visma", srv.URL, StyleVisma, nil, srv.Client(), nil)
	page, err := c.GetPage(context.Background(), "/customers", "", "tok", nil, PageParams{Page: 2, PageSize: 50})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.False(t, page.HasMore)
}

func TestGetPageDecodesBrioxNestedDataMap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pageRequested":1,"totalPages":1,"data":{"VoucherSeries":[{"Id":"1"}]}}`))
	}))
	defer srv.Close()

	c := New("briox", srv.URL, StyleBriox, nil, srv.Client(), nil)
	page, err := c.GetPage(context.Background(), "/vouchers", "VoucherSeries", "tok", nil, PageParams{Page: 1, PageSize: 50})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.False(t, page.HasMore)
}

func TestGetPageDecodesBjornLundenBareArrayFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"Id":"1"},{"Id":"2"}]`))
	}))
	defer srv.Close()

	c := New("bjornlunden", srv.URL, StyleBjornLunden, nil, srv.Client(), nil)
	page, err := c.GetPage(context.Background(), "/vouchers", "ignored", "tok", nil, PageParams{Page: 1, PageSize: 50})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.False(t, page.HasMore)
}

func TestGetPageDecodesBokioComputedTotalPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"page":1,"pageSize":10,"totalCount":25,"invoices":[{"id":"1"}]}`))
	}))
	defer srv.Close()

	c := New("bokio", srv.URL, StyleBokio, nil, srv.Client(), nil)
	page, err := c.GetPage(context.Background(), "/invoices", "invoices", "tok", nil, PageParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalPages) // ceil(25/10)
	assert.True(t, page.HasMore)
}

func TestGetAllLoopsUntilExhausted(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write([]byte(`{"Meta":{"CurrentPage":1,"TotalNumberOfPages":2},"Data":[{"Id":"a"}]}`))
			return
		}
		w.Write([]byte(`{"Meta":{"CurrentPage":2,"TotalNumberOfPages":2},"Data":[{"Id":"b"}]}`))
	}))
	defer srv.Close()

	c := New("visma", srv.URL, StyleVisma, nil, srv.Client(), nil)
	items, err := c.GetAll(context.Background(), "/customers", "", "tok", nil, "")
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 2, calls)
}

func TestPageParamsNormalizedAppliesDefaults(t *testing.T) {
	page, size := PageParams{Page: 0, PageSize: 0}.normalized()
	assert.Equal(t, 1, page)
	assert.Equal(t, 100, size)
}
