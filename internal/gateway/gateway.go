// Package gateway implements the single dispatch entry point spec.md §4.6
// describes: (vendor, credentials, resourceType, op, args) -> canonical DTO
// or list of DTOs. It owns no HTTP or persistence concerns of its own; it
// wires the static mapper registry to the per-vendor HTTP clients.
package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nordicledger/accounting-gateway/internal/domain"
	gwerrors "github.com/nordicledger/accounting-gateway/internal/errors"
	"github.com/nordicledger/accounting-gateway/internal/mapper"
	"github.com/nordicledger/accounting-gateway/internal/metrics"
	"github.com/nordicledger/accounting-gateway/internal/resilience"
	"github.com/nordicledger/accounting-gateway/internal/vendorclient"
)

// Credentials is the per-call vendor credential bundle the caller (normally
// the consent-scoped middleware) has already resolved and refreshed.
type Credentials struct {
	AccessToken     string
	VendorCompanyID *string
}

// Gateway dispatches canonical operations to the right vendor client +
// mapper descriptor.
type Gateway struct {
	registry *mapper.Registry
	clients  map[domain.Provider]*vendorclient.Client
}

// New builds a Gateway over a fully populated mapper registry and one
// vendor client per provider.
func New(registry *mapper.Registry, clients map[domain.Provider]*vendorclient.Client) *Gateway {
	return &Gateway{registry: registry, clients: clients}
}

// Supports reports whether vendor exposes rt at all, without requiring a
// configured client. Used by the sync engine to resolve capabilities
// (spec.md §4.9 step 2).
func (g *Gateway) Supports(vendor domain.Provider, rt domain.ResourceType) bool {
	_, ok := g.registry.Lookup(vendor, rt)
	return ok
}

func (g *Gateway) lookup(vendor domain.Provider, rt domain.ResourceType) (mapper.Descriptor, *vendorclient.Client, error) {
	d, ok := g.registry.Lookup(vendor, rt)
	if !ok {
		return mapper.Descriptor{}, nil, gwerrors.NotSupported(string(vendor), string(rt))
	}
	client, ok := g.clients[vendor]
	if !ok {
		return mapper.Descriptor{}, nil, gwerrors.NotConfigured(string(vendor))
	}
	return d, client, nil
}

// List fetches one page of resourceType and maps every item to a canonical
// DTO, translating opts into the vendor's pagination/modified-since dialect
// (spec.md §4.6 step 3).
func (g *Gateway) List(ctx context.Context, vendor domain.Provider, creds Credentials, rt domain.ResourceType, opts domain.ListOptions) (*domain.PaginatedResponse[domain.DTO], error) {
	d, client, err := g.lookup(vendor, rt)
	if err != nil {
		return nil, err
	}
	if d.Singleton {
		item, err := g.Get(ctx, vendor, creds, rt, "")
		if err != nil {
			return nil, err
		}
		data := []domain.DTO{}
		if item != nil {
			data = append(data, item)
		}
		return &domain.PaginatedResponse[domain.DTO]{Data: data, Page: 1, PageSize: len(data), TotalCount: len(data)}, nil
	}

	modifiedSince := ""
	if d.SupportsLastModified && opts.ModifiedSince != nil {
		modifiedSince = *opts.ModifiedSince
	}
	listPath := d.ResolvedListPath(creds.VendorCompanyID, opts.FiscalYear, time.Now().Year())
	start := time.Now()
	page, err := client.GetPage(ctx, listPath, d.ListKey, creds.AccessToken, creds.VendorCompanyID, vendorclient.PageParams{
		Page: opts.Page, PageSize: opts.PageSize, ModifiedSince: modifiedSince,
	})
	recordVendorCall(vendor, rt, err, start)
	if err != nil {
		return nil, translateVendorErr(vendor, err)
	}

	items := make([]domain.DTO, 0, len(page.Items))
	for _, raw := range page.Items {
		dto, err := d.Map(raw)
		if err != nil {
			return nil, gwerrors.Internal("map "+string(rt)+" item", err)
		}
		items = append(items, dto)
	}
	totalPages := page.TotalPages
	return &domain.PaginatedResponse[domain.DTO]{
		Data: items, Page: page.Page, PageSize: len(items),
		TotalCount: totalPages * len(items), TotalPages: &totalPages, HasMore: page.HasMore,
	}, nil
}

// ListAll loops List internally via the vendor client's GetAll, used by the
// sync engine (spec.md §4.9) rather than interactive requests.
func (g *Gateway) ListAll(ctx context.Context, vendor domain.Provider, creds Credentials, rt domain.ResourceType, modifiedSince string) ([]domain.DTO, error) {
	d, client, err := g.lookup(vendor, rt)
	if err != nil {
		return nil, err
	}
	if d.Singleton {
		item, err := g.Get(ctx, vendor, creds, rt, "")
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, nil
		}
		return []domain.DTO{item}, nil
	}
	listPath := d.ResolvedListPath(creds.VendorCompanyID, nil, time.Now().Year())
	raws, err := client.GetAll(ctx, listPath, d.ListKey, creds.AccessToken, creds.VendorCompanyID, modifiedSince)
	if err != nil {
		return nil, translateVendorErr(vendor, err)
	}
	items := make([]domain.DTO, 0, len(raws))
	for _, raw := range raws {
		dto, err := d.Map(raw)
		if err != nil {
			return nil, gwerrors.Internal("map "+string(rt)+" item", err)
		}
		items = append(items, dto)
	}
	return items, nil
}

// Get fetches a single resource by id, applying resolveDetailPath for
// composite ids. A 404 from the vendor is swallowed and returned as a nil
// DTO (spec.md §4.6 step 5); the caller translates that into an HTTP 404.
func (g *Gateway) Get(ctx context.Context, vendor domain.Provider, creds Credentials, rt domain.ResourceType, id string) (domain.DTO, error) {
	d, client, err := g.lookup(vendor, rt)
	if err != nil {
		return nil, err
	}
	var path string
	if d.Singleton {
		path = substituteCompanyOnly(d.ListPath, creds.VendorCompanyID)
	} else {
		path = d.DetailPath(id, creds.VendorCompanyID)
	}

	var raw json.RawMessage
	start := time.Now()
	err = client.Get(ctx, path, creds.AccessToken, creds.VendorCompanyID, &raw)
	recordVendorCall(vendor, rt, err, start)
	if err != nil {
		if status, ok := resilience.StatusOf(err); ok && status == 404 {
			return nil, nil
		}
		return nil, translateVendorErr(vendor, err)
	}
	dto, err := d.Map(raw)
	if err != nil {
		return nil, gwerrors.Internal("map "+string(rt), err)
	}
	return dto, nil
}

// Create issues a vendor write, when the vendor/resource supports it.
func (g *Gateway) Create(ctx context.Context, vendor domain.Provider, creds Credentials, rt domain.ResourceType, payload interface{}) (domain.DTO, error) {
	d, client, err := g.lookup(vendor, rt)
	if err != nil {
		return nil, err
	}
	path := substituteCompanyOnly(d.ListPath, creds.VendorCompanyID)
	var raw json.RawMessage
	if err := client.Post(ctx, path, creds.AccessToken, creds.VendorCompanyID, payload, &raw); err != nil {
		return nil, translateVendorErr(vendor, err)
	}
	return d.Map(raw)
}

// FetchSIEFile fetches one vendor-hosted SIE export at path (spec.md §4.9
// step 4), for the vendors whose API serves SIE natively. The sync engine
// owns the per-vendor path template; this just dispatches through the same
// client + retry/rate-limit stack every other call uses.
func (g *Gateway) FetchSIEFile(ctx context.Context, vendor domain.Provider, creds Credentials, path string) ([]byte, error) {
	client, ok := g.clients[vendor]
	if !ok {
		return nil, gwerrors.NotConfigured(string(vendor))
	}
	b, err := client.GetBinary(ctx, path, creds.AccessToken, creds.VendorCompanyID)
	if err != nil {
		return nil, translateVendorErr(vendor, err)
	}
	return b, nil
}

// StripAll strips the embedded raw vendor payload from every DTO before the
// HTTP boundary (spec.md §4.6 step 6). Called exactly once per response.
func StripAll(items []domain.DTO) {
	for _, item := range items {
		if item != nil {
			item.StripRaw()
		}
	}
}

func substituteCompanyOnly(path string, companyID *string) string {
	if !strings.Contains(path, "{companyId}") {
		return path
	}
	id := ""
	if companyID != nil {
		id = *companyID
	}
	return strings.ReplaceAll(path, "{companyId}", id)
}

// recordVendorCall reports one outbound vendor call's outcome to
// internal/metrics. Status is coarse (ok/error) rather than the numeric HTTP
// code, since the code is already visible on the error path via
// translateVendorErr's gwerrors taxonomy.
func recordVendorCall(vendor domain.Provider, rt domain.ResourceType, err error, start time.Time) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordVendorCall(string(vendor), string(rt), status, time.Since(start))
}

// translateVendorErr wraps a vendor-client error carrying a status/body into
// the gateway error taxonomy; 401/403/404 pass through distinctly since
// those never retry and callers may branch on them.
func translateVendorErr(vendor domain.Provider, err error) error {
	status, ok := resilience.StatusOf(err)
	if !ok {
		return gwerrors.VendorUpstream(0, err.Error())
	}
	switch status {
	case 401:
		return gwerrors.Unauthorized(string(vendor) + ": upstream rejected credentials")
	case 403:
		return gwerrors.Forbidden(string(vendor) + ": upstream denied access")
	case 404:
		return gwerrors.NotFound(string(vendor), "")
	default:
		return gwerrors.VendorUpstream(status, err.Error())
	}
}
