// Package oauthdriver implements each vendor's credential grant flow:
// authorization-code + refresh-token for Fortnox/Visma/Briox, a
// client-credentials grant for Björn Lundén, and a static-token no-op for
// Bokio (spec.md §4.3). Every driver satisfies vault.Refresher so the vault
// can call back into it without depending on the vendor's wire format.
package oauthdriver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nordicledger/accounting-gateway/internal/domain"
	gwerrors "github.com/nordicledger/accounting-gateway/internal/errors"
	"github.com/nordicledger/accounting-gateway/internal/resilience"
	"github.com/nordicledger/accounting-gateway/internal/vault"
)

// ClientConfig is one vendor's OAuth client registration.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURI  string
	Scopes       []string
}

// AuthorizationCodeDriver implements the authorization-code grant with
// refresh-token renewal (Fortnox, Visma, Briox).
type AuthorizationCodeDriver struct {
	Vendor domain.Provider
	Config ClientConfig
	HTTP   *http.Client
}

func (d *AuthorizationCodeDriver) httpClient() *http.Client {
	if d.HTTP != nil {
		return d.HTTP
	}
	return http.DefaultClient
}

// BuildAuthURL returns the URL the caller redirects the end user to, with
// state carrying the consent id so the callback can correlate it.
func (d *AuthorizationCodeDriver) BuildAuthURL(state string) string {
	q := url.Values{}
	q.Set("client_id", d.Config.ClientID)
	q.Set("redirect_uri", d.Config.RedirectURI)
	q.Set("response_type", "code")
	q.Set("state", state)
	if len(d.Config.Scopes) > 0 {
		q.Set("scope", joinScopes(d.Config.Scopes))
	}
	return d.Config.AuthURL + "?" + q.Encode()
}

// ExchangeCode swaps an authorization code for an access/refresh token pair.
func (d *AuthorizationCodeDriver) ExchangeCode(ctx context.Context, code string) (vault.Tokens, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", d.Config.RedirectURI)
	return d.tokenRequest(ctx, form)
}

// Refresh implements vault.Refresher for the authorization-code flow.
func (d *AuthorizationCodeDriver) Refresh(ctx context.Context, provider domain.Provider, current vault.Tokens) (vault.Tokens, error) {
	if current.RefreshToken == nil {
		return vault.Tokens{}, gwerrors.Unauthorized(string(provider) + ": no refresh token on file, re-authorization required")
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", *current.RefreshToken)
	return d.tokenRequest(ctx, form)
}

func (d *AuthorizationCodeDriver) tokenRequest(ctx context.Context, form url.Values) (vault.Tokens, error) {
	var tokens vault.Tokens
	err := resilience.Do(ctx, resilience.DefaultConfig(), resilience.HTTPClassifier, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Config.TokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBasicAuth(d.Config.ClientID, d.Config.ClientSecret)
		resp, err := d.httpClient().Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return statusErr(string(d.Vendor), resp)
		}
		var body tokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return err
		}
		tokens = body.toTokens()
		return nil
	})
	return tokens, err
}

// ClientCredentialsDriver implements the client-credentials grant (Björn
// Lundén): every refresh is a fresh grant, there is no refresh token.
type ClientCredentialsDriver struct {
	Vendor domain.Provider
	Config ClientConfig
	HTTP   *http.Client
}

func (d *ClientCredentialsDriver) httpClient() *http.Client {
	if d.HTTP != nil {
		return d.HTTP
	}
	return http.DefaultClient
}

func (d *ClientCredentialsDriver) Refresh(ctx context.Context, provider domain.Provider, current vault.Tokens) (vault.Tokens, error) {
	var tokens vault.Tokens
	err := resilience.Do(ctx, resilience.DefaultConfig(), resilience.HTTPClassifier, func() error {
		form := url.Values{}
		form.Set("grant_type", "client_credentials")
		if len(d.Config.Scopes) > 0 {
			form.Set("scope", joinScopes(d.Config.Scopes))
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Config.TokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBasicAuth(d.Config.ClientID, d.Config.ClientSecret)
		resp, err := d.httpClient().Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return statusErr(string(d.Vendor), resp)
		}
		var body tokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return err
		}
		tokens = body.toTokens()
		return nil
	})
	return tokens, err
}

// StaticTokenDriver implements the Bokio no-op refresh: tokens are
// configured once and treated as non-expiring.
type StaticTokenDriver struct{}

func (StaticTokenDriver) Refresh(ctx context.Context, provider domain.Provider, current vault.Tokens) (vault.Tokens, error) {
	return current, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

func (t tokenResponse) toTokens() vault.Tokens {
	var expires *time.Time
	if t.ExpiresIn > 0 {
		e := time.Now().UTC().Add(time.Duration(t.ExpiresIn) * time.Second)
		expires = &e
	}
	var refresh *string
	if t.RefreshToken != "" {
		refresh = &t.RefreshToken
	}
	var scopes []string
	if t.Scope != "" {
		scopes = splitScopes(t.Scope)
	}
	return vault.Tokens{AccessToken: t.AccessToken, RefreshToken: refresh, TokenExpiresAt: expires, Scopes: scopes}
}

func joinScopes(s []string) string {
	out := ""
	for i, sc := range s {
		if i > 0 {
			out += " "
		}
		out += sc
	}
	return out
}

func splitScopes(s string) []string {
	var out []string
	cur := ""
	for _, r := range s {
		if r == ' ' {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

func statusErr(vendor string, resp *http.Response) error {
	return &oauthStatusError{vendor: vendor, status: resp.StatusCode}
}

type oauthStatusError struct {
	vendor string
	status int
}

func (e *oauthStatusError) Error() string {
	return fmt.Sprintf("%s: token endpoint returned %d", e.vendor, e.status)
}
func (e *oauthStatusError) StatusCode() int { return e.status }
