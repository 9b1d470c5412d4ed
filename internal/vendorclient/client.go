// Package vendorclient implements the low-level HTTP client shared by every
// bookkeeping vendor integration: pagination-dialect translation, binary
// passthrough fetches, auth-header composition, and the rate-limit/retry
// wrapper every outbound call is funneled through (spec.md §4.4).
package vendorclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/nordicledger/accounting-gateway/internal/ratelimit"
	"github.com/nordicledger/accounting-gateway/internal/resilience"
	"github.com/nordicledger/accounting-gateway/internal/version"
)

// PaginationStyle is the tagged variant spec.md §9 calls for: the client
// dispatches pagination encoding/decoding on this tag, no polymorphism
// beyond that is required.
type PaginationStyle string

const (
	StyleFortnox     PaginationStyle = "fortnox"
	StyleVisma       PaginationStyle = "visma"
	StyleBriox       PaginationStyle = "briox"
	StyleBokio       PaginationStyle = "bokio"
	StyleBjornLunden PaginationStyle = "bjornlunden"
)

// AuthHeaderFunc composes the vendor-specific authorization headers for a
// request given the (decrypted) access token and optional vendor-scoped
// company id.
type AuthHeaderFunc func(req *http.Request, accessToken string, vendorCompanyID *string)

// Transport is the interface point spec.md §4.4's "Björn Lundén TLS
// exception" requires: an alternate HTTP executor a deployment can swap in
// when the default TLS stack's cipher set doesn't match a vendor's servers
// (out-of-process, e.g. a libcurl/OpenSSL-backed executor). New with a nil
// httpClient uses http.DefaultClient; deployments that hit the Björn Lundén
// cipher mismatch provide their own Transport here.
type Transport interface {
	RoundTrip(req *http.Request) (*http.Response, error)
}

// HTTPStatusError carries the upstream status code and body, satisfying
// resilience.HTTPStatusError so the retry driver can classify it.
type HTTPStatusError struct {
	Vendor string
	Status int
	Body   string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s: upstream returned %d", e.Vendor, e.Status)
}

func (e *HTTPStatusError) StatusCode() int { return e.Status }

// Page is one fetched page of a list endpoint, normalized away from the
// vendor's envelope shape.
type Page struct {
	Items      []json.RawMessage
	Page       int
	TotalPages int
	HasMore    bool
}

// Client is one vendor's low-level HTTP client.
type Client struct {
	Vendor    string
	BaseURL   string
	Style     PaginationStyle
	AuthFunc  AuthHeaderFunc
	HTTP      *http.Client
	Limiter   *ratelimit.Limiter
	RetryCfg  resilience.Config
}

// New builds a Client. httpClient may be nil, in which case http.DefaultClient
// is used; pass a client wrapping a custom Transport to satisfy the Björn
// Lundén TLS exception.
func New(vendor, baseURL string, style PaginationStyle, authFn AuthHeaderFunc, httpClient *http.Client, limiter *ratelimit.Limiter) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		Vendor:   vendor,
		BaseURL:  baseURL,
		Style:    style,
		AuthFunc: authFn,
		HTTP:     httpClient,
		Limiter:  limiter,
		RetryCfg: resilience.DefaultConfig(),
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, accessToken string, vendorCompanyID *string) (*http.Response, error) {
	var resp *http.Response
	err := resilience.Do(ctx, c.RetryCfg, resilience.HTTPClassifier, func() error {
		if c.Limiter != nil {
			if err := c.Limiter.Acquire(ctx); err != nil {
				return err
			}
		}
		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
		if err != nil {
			return err
		}
		if c.AuthFunc != nil {
			c.AuthFunc(req, accessToken, vendorCompanyID)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", version.UserAgent())
		r, err := c.HTTP.Do(req)
		if err != nil {
			return err
		}
		if r.StatusCode < 200 || r.StatusCode >= 300 {
			defer r.Body.Close()
			b, _ := io.ReadAll(io.LimitReader(r.Body, 8192))
			return &HTTPStatusError{Vendor: c.Vendor, Status: r.StatusCode, Body: string(b)}
		}
		resp = r
		return nil
	})
	return resp, err
}

// Get issues a single GET and decodes the JSON body into out.
func (c *Client) Get(ctx context.Context, path, accessToken string, vendorCompanyID *string, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, accessToken, vendorCompanyID)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetBinary fetches a binary resource (used for SIE exports).
func (c *Client) GetBinary(ctx context.Context, path, accessToken string, vendorCompanyID *string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, path, nil, accessToken, vendorCompanyID)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Post issues a POST with a JSON-encoded body and decodes the JSON response
// into out (nil out skips decoding, for vendors that return 204).
func (c *Client) Post(ctx context.Context, path, accessToken string, vendorCompanyID *string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	resp, err := c.do(ctx, http.MethodPost, path, body, accessToken, vendorCompanyID)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// PageParams carries the caller-requested page window; pages are 1-indexed.
type PageParams struct {
	Page          int
	PageSize      int
	ModifiedSince string
}

func (p PageParams) normalized() (page, size int) {
	page, size = p.Page, p.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 100
	}
	return
}

// GetPage fetches one page of listPath, translating pagination parameters
// into the vendor's dialect and normalizing the response envelope, per
// spec.md §4.4's per-vendor pagination table.
func (c *Client) GetPage(ctx context.Context, listPath, listKey, accessToken string, vendorCompanyID *string, params PageParams) (Page, error) {
	page, size := params.normalized()
	path := c.buildPagePath(listPath, page, size, params.ModifiedSince)

	var raw json.RawMessage
	if err := c.Get(ctx, path, accessToken, vendorCompanyID, &raw); err != nil {
		return Page{}, err
	}
	return decodeEnvelope(c.Style, raw, listKey, page)
}

func (c *Client) buildPagePath(base string, page, size int, modifiedSince string) string {
	sep := "?"
	if bytes.ContainsRune([]byte(base), '?') {
		sep = "&"
	}
	var q string
	switch c.Style {
	case StyleFortnox:
		q = fmt.Sprintf("page=%d&limit=%d", page, size)
	case StyleVisma:
		q = fmt.Sprintf("$top=%d&$skip=%d", size, (page-1)*size)
	case StyleBriox, StyleBjornLunden:
		q = fmt.Sprintf("pageRequested=%d&rowsRequested=%d", page, size)
	case StyleBokio:
		q = fmt.Sprintf("page=%d&pageSize=%d", page, size)
	}
	if modifiedSince != "" {
		q += "&lastmodified=" + modifiedSince
	}
	return base + sep + q
}

func decodeEnvelope(style PaginationStyle, raw json.RawMessage, listKey string, requestedPage int) (Page, error) {
	switch style {
	case StyleFortnox:
		var env struct {
			MetaInformation struct {
				TotalPages   int `json:"@TotalPages"`
				CurrentPage  int `json:"@CurrentPage"`
			} `json:"MetaInformation"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return Page{}, err
		}
		items, err := extractList(raw, listKey)
		if err != nil {
			return Page{}, err
		}
		cur := env.MetaInformation.CurrentPage
		if cur == 0 {
			cur = requestedPage
		}
		return Page{Items: items, Page: cur, TotalPages: env.MetaInformation.TotalPages, HasMore: cur < env.MetaInformation.TotalPages}, nil

	case StyleVisma:
		var env struct {
			Meta struct {
				CurrentPage          int `json:"CurrentPage"`
				TotalNumberOfPages   int `json:"TotalNumberOfPages"`
				TotalNumberOfResults int `json:"TotalNumberOfResults"`
			} `json:"Meta"`
			Data []json.RawMessage `json:"Data"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return Page{}, err
		}
		cur := env.Meta.CurrentPage
		if cur == 0 {
			cur = requestedPage
		}
		return Page{Items: env.Data, Page: cur, TotalPages: env.Meta.TotalNumberOfPages, HasMore: cur < env.Meta.TotalNumberOfPages}, nil

	case StyleBriox:
		var env struct {
			PageRequested int                        `json:"pageRequested"`
			TotalPages    int                        `json:"totalPages"`
			TotalRows     int                        `json:"totalRows"`
			Data          map[string]json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return Page{}, err
		}
		items, err := extractFromMap(env.Data, listKey)
		if err != nil {
			return Page{}, err
		}
		cur := env.PageRequested
		if cur == 0 {
			cur = requestedPage
		}
		return Page{Items: items, Page: cur, TotalPages: env.TotalPages, HasMore: cur < env.TotalPages}, nil

	case StyleBjornLunden:
		// Accept the Briox-shaped envelope, a "rows" alias, or a bare array.
		var bare []json.RawMessage
		if err := json.Unmarshal(raw, &bare); err == nil {
			return Page{Items: bare, Page: requestedPage, TotalPages: requestedPage, HasMore: false}, nil
		}
		var env struct {
			PageRequested int                        `json:"pageRequested"`
			TotalPages    int                        `json:"totalPages"`
			Rows          int                        `json:"rows"`
			Data          map[string]json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return Page{}, err
		}
		items, err := extractFromMap(env.Data, listKey)
		if err != nil {
			return Page{}, err
		}
		total := env.TotalPages
		if total == 0 {
			total = env.Rows
		}
		cur := env.PageRequested
		if cur == 0 {
			cur = requestedPage
		}
		return Page{Items: items, Page: cur, TotalPages: total, HasMore: cur < total}, nil

	case StyleBokio:
		var env struct {
			Page       int                        `json:"page"`
			PageSize   int                        `json:"pageSize"`
			TotalCount int                        `json:"totalCount"`
			Data       map[string]json.RawMessage `json:"-"`
		}
		// Bokio nests the collection under the caller-supplied listKey
		// alongside flat pagination fields, so decode the envelope twice:
		// once for the flat fields, once for the list by key.
		if err := json.Unmarshal(raw, &env); err != nil {
			return Page{}, err
		}
		items, err := extractList(raw, listKey)
		if err != nil {
			return Page{}, err
		}
		cur := env.Page
		if cur == 0 {
			cur = requestedPage
		}
		totalPages := 1
		if env.PageSize > 0 {
			totalPages = (env.TotalCount + env.PageSize - 1) / env.PageSize
			if totalPages < 1 {
				totalPages = 1
			}
		}
		return Page{Items: items, Page: cur, TotalPages: totalPages, HasMore: cur < totalPages}, nil

	default:
		return Page{}, fmt.Errorf("vendorclient: unknown pagination style %q", style)
	}
}

func extractList(raw json.RawMessage, listKey string) ([]json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return extractFromMap(m, listKey)
}

func extractFromMap(m map[string]json.RawMessage, listKey string) ([]json.RawMessage, error) {
	val, ok := m[listKey]
	if !ok {
		return []json.RawMessage{}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(val, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetAll loops GetPage until exhausted and returns the concatenation.
func (c *Client) GetAll(ctx context.Context, listPath, listKey, accessToken string, vendorCompanyID *string, modifiedSince string) ([]json.RawMessage, error) {
	var all []json.RawMessage
	page := 1
	for {
		p, err := c.GetPage(ctx, listPath, listKey, accessToken, vendorCompanyID, PageParams{Page: page, PageSize: 100, ModifiedSince: modifiedSince})
		if err != nil {
			return nil, err
		}
		all = append(all, p.Items...)
		if !p.HasMore || len(p.Items) == 0 {
			break
		}
		page++
	}
	return all, nil
}

// FormatPageSize renders an int for query strings (helper kept small and
// local rather than pulling in strconv at every call site).
func FormatPageSize(n int) string { return strconv.Itoa(n) }
