package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordicledger/accounting-gateway/internal/domain"
)

func TestLookupMissingResourceTypeReportsUnsupported(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup(domain.ProviderBokio, domain.ResourceAttachments)
	assert.False(t, ok, "Bokio should not support attachments")
}

func TestLookupUnknownVendorReportsUnsupported(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup(domain.Provider("unknown"), domain.ResourceCustomers)
	assert.False(t, ok)
}

func TestDetailPathSubstitutesID(t *testing.T) {
	r := NewRegistry()
	d, ok := r.Lookup(domain.ProviderFortnox, domain.ResourceCustomers)
	require.True(t, ok)
	assert.Equal(t, "/customers/123", d.DetailPath("123", nil))
}

func TestFortnoxVoucherDetailPathSplitsCompositeID(t *testing.T) {
	r := NewRegistry()
	d, ok := r.Lookup(domain.ProviderFortnox, domain.ResourceJournals)
	require.True(t, ok)
	assert.Equal(t, "/vouchers/A/123", d.DetailPath("A-123", nil))
}

func TestFortnoxVoucherDetailPathFallsBackWithoutSeparator(t *testing.T) {
	r := NewRegistry()
	d, ok := r.Lookup(domain.ProviderFortnox, domain.ResourceJournals)
	require.True(t, ok)
	assert.Equal(t, "/vouchers/123", d.DetailPath("123", nil))
}

func TestResolvedListPathSubstitutesCompanyID(t *testing.T) {
	r := NewRegistry()
	d, ok := r.Lookup(domain.ProviderBokio, domain.ResourceCustomers)
	require.True(t, ok)
	companyID := "co-42"
	path := d.ResolvedListPath(&companyID, nil, 2026)
	assert.Contains(t, path, "co-42")
	assert.NotContains(t, path, "{companyId}")
}

func TestResolvedListPathSubstitutesFiscalYear(t *testing.T) {
	r := NewRegistry()
	d, ok := r.Lookup(domain.ProviderBriox, domain.ResourceJournals)
	require.True(t, ok)

	withExplicitYear := 2024
	assert.Equal(t, "/vouchers/2024", d.ResolvedListPath(nil, &withExplicitYear, 2026))
	assert.Equal(t, "/vouchers/2026", d.ResolvedListPath(nil, nil, 2026))
}

func TestMapFortnoxSalesInvoiceExtractsCoreFields(t *testing.T) {
	raw := []byte(`{
		"Invoice": {
			"DocumentNumber": "123",
			"CustomerNumber": "C1",
			"CustomerName": "Acme AB",
			"InvoiceDate": "2026-01-15",
			"DueDate": "2026-02-15",
			"Total": 1000.50,
			"Balance": 0,
			"Currency": "SEK",
			"FullyPaid": true,
			"Booked": true,
			"Sent": true
		}
	}`)
	dto, err := mapFortnoxSalesInvoice(raw)
	require.NoError(t, err)
	inv, ok := dto.(*domain.SalesInvoice)
	require.True(t, ok)
	assert.Equal(t, "123", inv.ExternalID)
	assert.Equal(t, "Acme AB", inv.CustomerName)
	assert.Equal(t, "SEK", inv.Currency)
}

func TestMapFortnoxCustomerUnwrapsEnvelope(t *testing.T) {
	raw := []byte(`{"Customer": {"CustomerNumber": "C1", "Name": "Acme AB", "Type": "COMPANY", "Inactive": false}}`)
	dto, err := mapFortnoxCustomer(raw)
	require.NoError(t, err)
	c, ok := dto.(*domain.Customer)
	require.True(t, ok)
	assert.Equal(t, "C1", c.ExternalID)
	assert.True(t, c.Active)
}
