package mapper

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/nordicledger/accounting-gateway/internal/domain"
)

// bjornLundenDescriptors reuses Briox's mapping functions where the payload
// shape is identical (the vendor's API is Briox-derived); only the voucher
// mapper differs enough (bare-array / "rows" alias envelopes, handled in
// vendorclient's decodeEnvelope) to warrant its own entry point here.
func bjornLundenDescriptors() map[domain.ResourceType]Descriptor {
	return map[domain.ResourceType]Descriptor{
		domain.ResourceSalesInvoices: {
			ListPath: "/invoices", DetailPathTemplate: "/invoices/{id}",
			ListKey: "invoices", IDField: "invoiceNumber", Paginated: true, SupportsLastModified: true,
			Map: mapBrioxSalesInvoice,
		},
		domain.ResourceSupplierInvoices: {
			ListPath: "/supplierinvoices", DetailPathTemplate: "/supplierinvoices/{id}",
			ListKey: "supplierInvoices", IDField: "invoiceNumber", Paginated: true, SupportsLastModified: true,
			Map: mapBrioxSupplierInvoice,
		},
		domain.ResourceCustomers: {
			ListPath: "/customers", DetailPathTemplate: "/customers/{id}",
			ListKey: "customers", IDField: "customerNumber", Paginated: true, SupportsLastModified: true,
			Map: mapBrioxCustomer,
		},
		domain.ResourceSuppliers: {
			ListPath: "/suppliers", DetailPathTemplate: "/suppliers/{id}",
			ListKey: "suppliers", IDField: "supplierNumber", Paginated: true, SupportsLastModified: true,
			Map: mapBrioxSupplier,
		},
		domain.ResourceJournals: {
			ListPath:           "/vouchers/%d",
			DetailPathTemplate: "/vouchers/{id}",
			ListKey:            "rows", IDField: "voucherNumber", Paginated: true, YearScoped: true,
			Map: mapBjornLundenVoucher,
		},
		domain.ResourceAccountingAccounts: {
			ListPath: "/accounts", DetailPathTemplate: "/accounts/{id}",
			ListKey: "accounts", IDField: "number", Paginated: true,
			Map: mapBrioxAccount,
		},
		domain.ResourceCompanyInformation: {
			ListPath: "/company", Singleton: true,
			Map: mapBrioxCompanyInfo,
		},
		domain.ResourcePayments: {
			ListPath: "/payments", DetailPathTemplate: "/payments/{id}",
			ListKey: "payments", IDField: "id", Paginated: true,
			Map: mapBrioxPayment,
		},
	}
}

func mapBjornLundenVoucher(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	var entries []domain.JournalEntry
	for _, row := range r.Get("rows").Array() {
		entries = append(entries, domain.JournalEntry{
			AccountNumber:   row.Get("account").String(),
			Debit:           row.Get("debit").Float(),
			Credit:          row.Get("credit").Float(),
			TransactionDate: dateOnly(row.Get("transactionDate").String()),
			Description:     row.Get("description").String(),
		})
	}
	return &domain.Journal{
		Raw:        domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID: r.Get("voucherNumber").String(),
		Series:     r.Get("series").String(),
		Number:     r.Get("voucherNumber").String(),
		Date:       dateOnly(r.Get("date").String()),
		Text:       r.Get("description").String(),
		Entries:    entries,
	}, nil
}
