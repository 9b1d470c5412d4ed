// Package mapper holds the static per-vendor resource descriptor registry
// (spec.md §4.5): for each (vendor, ResourceType) pair, the endpoint
// templates, the collection/identifier keys, pagination flags, and the
// function mapping one raw vendor payload into a canonical DTO.
//
// The registry is a plain map built once at init time and never mutated
// afterwards, per spec.md §9's "static table / function pointer, no
// polymorphism" redesign note.
package mapper

import (
	"fmt"
	"strings"

	"github.com/nordicledger/accounting-gateway/internal/domain"
)

// MapFn converts one raw vendor JSON payload into a canonical DTO.
type MapFn func(raw []byte) (domain.DTO, error)

// Descriptor is one (vendor, ResourceType) registry entry.
type Descriptor struct {
	ListPath               string
	DetailPathTemplate     string // "{id}" placeholder
	ListKey                string // JSON key the collection lives under
	IDField                string
	Map                    MapFn
	Singleton              bool
	SupportsLastModified   bool
	Paginated              bool
	YearScoped             bool
	SupportsEntryHydration bool
	// ResolveDetailPath overrides DetailPathTemplate for composite ids, e.g.
	// Fortnox vouchers addressed by "series/number" joined from "series-number".
	ResolveDetailPath func(id string) string
}

func (d Descriptor) DetailPath(id string, companyID *string) string {
	path := d.DetailPathTemplate
	if d.ResolveDetailPath != nil {
		path = d.ResolveDetailPath(id)
	} else {
		path = strings.Replace(path, "{id}", id, 1)
	}
	return substituteCompanyID(path, companyID)
}

// ResolvedListPath substitutes the {companyId} segment (Bokio) and the
// fiscal-year segment (Briox/Björn Lundén's "%d" YearScoped template) into
// the list endpoint, resolving the caller's fiscal year or defaulting to the
// current year when omitted (spec.md §4.5's yearScoped flag).
func (d Descriptor) ResolvedListPath(companyID *string, fiscalYear *int, currentYear int) string {
	path := d.ListPath
	if d.YearScoped {
		year := currentYear
		if fiscalYear != nil {
			year = *fiscalYear
		}
		path = fmt.Sprintf(path, year)
	}
	return substituteCompanyID(path, companyID)
}

func substituteCompanyID(path string, companyID *string) string {
	if !strings.Contains(path, "{companyId}") {
		return path
	}
	id := ""
	if companyID != nil {
		id = *companyID
	}
	return strings.ReplaceAll(path, "{companyId}", id)
}

// Registry is the static (vendor -> ResourceType -> Descriptor) table.
type Registry struct {
	entries map[domain.Provider]map[domain.ResourceType]Descriptor
}

// NewRegistry builds the fully populated, immutable registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[domain.Provider]map[domain.ResourceType]Descriptor{
		domain.ProviderFortnox:     fortnoxDescriptors(),
		domain.ProviderVisma:       vismaDescriptors(),
		domain.ProviderBriox:       brioxDescriptors(),
		domain.ProviderBokio:       bokioDescriptors(),
		domain.ProviderBjornLunden: bjornLundenDescriptors(),
	}}
}

// Lookup returns the descriptor for (vendor, resourceType). The bool is
// false when the vendor does not support that resource type at all, which
// the gateway handler maps to a "not supported" error (spec.md §4.6 step 1).
func (r *Registry) Lookup(vendor domain.Provider, rt domain.ResourceType) (Descriptor, bool) {
	vendorMap, ok := r.entries[vendor]
	if !ok {
		return Descriptor{}, false
	}
	d, ok := vendorMap[rt]
	return d, ok
}

