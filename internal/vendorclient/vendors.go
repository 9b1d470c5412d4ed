package vendorclient

import (
	"net/http"

	"github.com/nordicledger/accounting-gateway/internal/ratelimit"
)

// Endpoint holds the per-vendor configuration needed to construct a Client,
// grounded on spec.md §4.4's per-vendor table.
type Endpoint struct {
	BaseURL string
	Style   PaginationStyle
}

var endpoints = map[string]Endpoint{
	"fortnox":      {BaseURL: "https://api.fortnox.se/3", Style: StyleFortnox},
	"visma":        {BaseURL: "https://eaccountingapi.vismaonline.com/v2", Style: StyleVisma},
	"briox":        {BaseURL: "https://api.briox.se/api/v2", Style: StyleBriox},
	"bokio":        {BaseURL: "https://api.bokio.se/v2", Style: StyleBokio},
	"bjornlunden":  {BaseURL: "https://api.bjornlunden.se/v1", Style: StyleBjornLunden},
}

// NewFortnox builds a Fortnox client. Fortnox authorizes with a bearer
// access token plus a tenant-scoped Client-Secret-style header is not
// required post-OAuth migration; only Authorization is sent.
func NewFortnox(httpClient *http.Client, limiter *ratelimit.Limiter) *Client {
	ep := endpoints["fortnox"]
	return New("fortnox", ep.BaseURL, ep.Style, func(req *http.Request, token string, _ *string) {
		req.Header.Set("Authorization", "Bearer "+token)
	}, httpClient, limiter)
}

// NewVisma builds a Visma eAccounting client.
func NewVisma(httpClient *http.Client, limiter *ratelimit.Limiter) *Client {
	ep := endpoints["visma"]
	return New("visma", ep.BaseURL, ep.Style, func(req *http.Request, token string, _ *string) {
		req.Header.Set("Authorization", "Bearer "+token)
	}, httpClient, limiter)
}

// NewBriox builds a Briox client. Briox additionally requires a clientId
// header carrying the vendor-assigned company id captured at consent time.
func NewBriox(httpClient *http.Client, limiter *ratelimit.Limiter) *Client {
	ep := endpoints["briox"]
	return New("briox", ep.BaseURL, ep.Style, func(req *http.Request, token string, companyID *string) {
		req.Header.Set("Authorization", "Bearer "+token)
		if companyID != nil {
			req.Header.Set("clientId", *companyID)
		}
	}, httpClient, limiter)
}

// NewBokio builds a Bokio client. Bokio's company scope is embedded in the
// path rather than a header, so its AuthFunc only sets Authorization; path
// construction happens in the mapper's endpoint templates.
func NewBokio(httpClient *http.Client, limiter *ratelimit.Limiter) *Client {
	ep := endpoints["bokio"]
	return New("bokio", ep.BaseURL, ep.Style, func(req *http.Request, token string, _ *string) {
		req.Header.Set("Authorization", "Bearer "+token)
	}, httpClient, limiter)
}

// NewBjornLunden builds a Björn Lundén client. Authorizes with a User-Key
// header rather than a bearer token (client-credentials grant, §4.3).
// httpClient should wrap the Transport seam (see client.go's Transport
// interface) when the deployment needs the documented TLS-cipher exception
// for this vendor's servers.
func NewBjornLunden(httpClient *http.Client, limiter *ratelimit.Limiter) *Client {
	ep := endpoints["bjornlunden"]
	return New("bjornlunden", ep.BaseURL, ep.Style, func(req *http.Request, token string, companyID *string) {
		req.Header.Set("User-Key", token)
		if companyID != nil {
			req.Header.Set("clientId", *companyID)
		}
	}, httpClient, limiter)
}
