package oauthdriver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordicledger/accounting-gateway/internal/domain"
	gwerrors "github.com/nordicledger/accounting-gateway/internal/errors"
	"github.com/nordicledger/accounting-gateway/internal/vault"
)

func TestBuildAuthURLIncludesStateAndScopes(t *testing.T) {
	d := &AuthorizationCodeDriver{Vendor: domain.ProviderFortnox, Config: ClientConfig{
		ClientID: "client-1", AuthURL: "https://apps.fortnox.se/oauth-v1/auth", RedirectURI: "https://app/callback",
		Scopes: []string{"invoice", "customer"},
	}}
	u := d.BuildAuthURL("consent-1")
	assert.Contains(t, u, "client_id=client-1")
	assert.Contains(t, u, "state=consent-1")
	assert.Contains(t, u, "invoice+customer")
}

func TestExchangeCodeParsesTokenResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.FormValue("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","expires_in":3600,"scope":"invoice customer"}`))
	}))
	defer srv.Close()

	d := &AuthorizationCodeDriver{Vendor: domain.ProviderFortnox, Config: ClientConfig{TokenURL: srv.URL}, HTTP: srv.Client()}
	tokens, err := d.ExchangeCode(context.Background(), "auth-code-1")
	require.NoError(t, err)
	assert.Equal(t, "at-1", tokens.AccessToken)
	require.NotNil(t, tokens.RefreshToken)
	assert.Equal(t, "rt-1", *tokens.RefreshToken)
	assert.ElementsMatch(t, []string{"invoice", "customer"}, tokens.Scopes)
	require.NotNil(t, tokens.TokenExpiresAt)
}

func TestRefreshRequiresExistingRefreshToken(t *testing.T) {
	d := &AuthorizationCodeDriver{Vendor: domain.ProviderFortnox, Config: ClientConfig{TokenURL: "http://unused"}}
	_, err := d.Refresh(context.Background(), domain.ProviderFortnox, vault.Tokens{})
	require.Error(t, err)
	se, ok := gwerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, gwerrors.CodeUnauthorized, se.Code)
}

func TestRefreshDoesNotRetryNonRetryableStatus(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	rt := "rt-1"
	d := &AuthorizationCodeDriver{Vendor: domain.ProviderFortnox, Config: ClientConfig{TokenURL: srv.URL}, HTTP: srv.Client()}
	_, err := d.Refresh(context.Background(), domain.ProviderFortnox, vault.Tokens{RefreshToken: &rt})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "403 is not retryable, should not retry")
}

func TestClientCredentialsDriverObtainsFreshGrantEachRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.FormValue("grant_type"))
		w.Write([]byte(`{"access_token":"at-bl","expires_in":1800}`))
	}))
	defer srv.Close()

	d := &ClientCredentialsDriver{Vendor: domain.ProviderBjornLunden, Config: ClientConfig{TokenURL: srv.URL}, HTTP: srv.Client()}
	tokens, err := d.Refresh(context.Background(), domain.ProviderBjornLunden, vault.Tokens{})
	require.NoError(t, err)
	assert.Equal(t, "at-bl", tokens.AccessToken)
	assert.Nil(t, tokens.RefreshToken)
}

func TestStaticTokenDriverIsNoOp(t *testing.T) {
	d := StaticTokenDriver{}
	current := vault.Tokens{AccessToken: "static-token"}
	got, err := d.Refresh(context.Background(), domain.ProviderBokio, current)
	require.NoError(t, err)
	assert.Equal(t, current, got)
}
