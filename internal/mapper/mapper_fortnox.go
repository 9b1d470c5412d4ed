package mapper

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/nordicledger/accounting-gateway/internal/domain"
)

func fortnoxDescriptors() map[domain.ResourceType]Descriptor {
	return map[domain.ResourceType]Descriptor{
		domain.ResourceSalesInvoices: {
			ListPath: "/invoices", DetailPathTemplate: "/invoices/{id}",
			ListKey: "Invoices", IDField: "DocumentNumber",
			Paginated: true, SupportsLastModified: true,
			Map: mapFortnoxSalesInvoice,
		},
		domain.ResourceSupplierInvoices: {
			ListPath: "/supplierinvoices", DetailPathTemplate: "/supplierinvoices/{id}",
			ListKey: "SupplierInvoices", IDField: "GivenNumber",
			Paginated: true, SupportsLastModified: true,
			Map: mapFortnoxSupplierInvoice,
		},
		domain.ResourceCustomers: {
			ListPath: "/customers", DetailPathTemplate: "/customers/{id}",
			ListKey: "Customers", IDField: "CustomerNumber",
			Paginated: true, SupportsLastModified: true,
			Map: mapFortnoxCustomer,
		},
		domain.ResourceSuppliers: {
			ListPath: "/suppliers", DetailPathTemplate: "/suppliers/{id}",
			ListKey: "Suppliers", IDField: "SupplierNumber",
			Paginated: true, SupportsLastModified: true,
			Map: mapFortnoxSupplier,
		},
		domain.ResourceJournals: {
			ListPath: "/vouchers", DetailPathTemplate: "/vouchers/{series}/{number}",
			ListKey: "Vouchers", IDField: "VoucherSeries",
			Paginated: true, SupportsEntryHydration: true,
			// Fortnox vouchers are addressed by series/number joined as a
			// dash-separated composite id ("A-123").
			ResolveDetailPath: func(id string) string {
				parts := strings.SplitN(id, "-", 2)
				if len(parts) != 2 {
					return "/vouchers/" + id
				}
				return fmt.Sprintf("/vouchers/%s/%s", parts[0], parts[1])
			},
			Map: mapFortnoxVoucher,
		},
		domain.ResourceAccountingAccounts: {
			ListPath: "/accounts", DetailPathTemplate: "/accounts/{id}",
			ListKey: "Accounts", IDField: "Number",
			Paginated: true,
			Map:       mapFortnoxAccount,
		},
		domain.ResourceCompanyInformation: {
			ListPath: "/companyinformation", Singleton: true,
			Map: mapFortnoxCompanyInfo,
		},
		domain.ResourcePayments: {
			ListPath: "/invoicepayments", DetailPathTemplate: "/invoicepayments/{id}",
			ListKey: "InvoicePayments", IDField: "Number",
			Paginated: true,
			Map:       mapFortnoxPayment,
		},
	}
}

func mapFortnoxSalesInvoice(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	if r.Get("Invoice").Exists() {
		r = r.Get("Invoice")
	}
	currency := r.Get("Currency").String()
	status := salesInvoiceStatus(r.Get("Cancelled").Bool(), r.Get("Credit").Bool(),
		r.Get("FullyPaid").Bool(), r.Get("Balance").Float(), r.Get("Booked").Bool(), r.Get("Sent").Bool())
	return &domain.SalesInvoice{
		Raw:            domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID:     r.Get("DocumentNumber").String(),
		InvoiceNumber:  r.Get("DocumentNumber").String(),
		CustomerNumber: r.Get("CustomerNumber").String(),
		CustomerName:   r.Get("CustomerName").String(),
		DocumentDate:   dateOnly(r.Get("InvoiceDate").String()),
		DueDate:        dateOnly(r.Get("DueDate").String()),
		Total:          moneyOf(r.Get("Total"), currency),
		Balance:        moneyOf(r.Get("Balance"), currency),
		Status:         status,
		Currency:       currency,
	}, nil
}

func mapFortnoxSupplierInvoice(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	if r.Get("SupplierInvoice").Exists() {
		r = r.Get("SupplierInvoice")
	}
	currency := r.Get("Currency").String()
	bal := r.Get("Balance")
	return &domain.SupplierInvoice{
		Raw:            domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID:     r.Get("GivenNumber").String(),
		InvoiceNumber:  r.Get("GivenNumber").String(),
		SupplierNumber: r.Get("SupplierNumber").String(),
		SupplierName:   r.Get("SupplierName").String(),
		DocumentDate:   dateOnly(r.Get("InvoiceDate").String()),
		DueDate:        dateOnly(r.Get("DueDate").String()),
		Total:          moneyOf(r.Get("Total"), currency),
		Remaining:      moneyOf(bal, currency),
		Status:         supplierInvoiceStatus(bal.Float(), bal.Exists()),
	}, nil
}

func mapFortnoxCustomer(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	if r.Get("Customer").Exists() {
		r = r.Get("Customer")
	}
	return &domain.Customer{
		Raw:        domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID: r.Get("CustomerNumber").String(),
		Name:       r.Get("Name").String(),
		Type:       customerType(r.Get("Type").String()),
		Email:      r.Get("Email").String(),
		OrgNumber:  r.Get("OrganisationNumber").String(),
		Active:     !r.Get("Inactive").Bool(),
	}, nil
}

func mapFortnoxSupplier(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	if r.Get("Supplier").Exists() {
		r = r.Get("Supplier")
	}
	return &domain.Supplier{
		Raw:        domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID: r.Get("SupplierNumber").String(),
		Name:       r.Get("Name").String(),
		Email:      r.Get("Email").String(),
		OrgNumber:  r.Get("OrganisationNumber").String(),
		Active:     !r.Get("Inactive").Bool(),
	}, nil
}

func mapFortnoxVoucher(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	if r.Get("Voucher").Exists() {
		r = r.Get("Voucher")
	}
	var entries []domain.JournalEntry
	for _, row := range r.Get("VoucherRows").Array() {
		entries = append(entries, domain.JournalEntry{
			AccountNumber:   row.Get("Account").String(),
			Debit:           row.Get("Debit").Float(),
			Credit:          row.Get("Credit").Float(),
			TransactionDate: dateOnly(row.Get("TransactionDate").String()),
			Description:     row.Get("Description").String(),
		})
	}
	series := r.Get("VoucherSeries").String()
	number := r.Get("VoucherNumber").String()
	return &domain.Journal{
		Raw:        domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID: series + "-" + number,
		Series:     series,
		Number:     number,
		Date:       dateOnly(r.Get("TransactionDate").String()),
		Text:       r.Get("Description").String(),
		Entries:    entries,
	}, nil
}

func mapFortnoxAccount(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	if r.Get("Account").Exists() {
		r = r.Get("Account")
	}
	number := r.Get("Number").String()
	return &domain.AccountingAccount{
		Raw:        domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID: number,
		Number:     number,
		Name:       r.Get("Description").String(),
		Type:       domain.DeriveAccountType(number),
		Active:     r.Get("Active").Bool(),
	}, nil
}

func mapFortnoxCompanyInfo(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	if r.Get("CompanyInformation").Exists() {
		r = r.Get("CompanyInformation")
	}
	return &domain.CompanyInformation{
		Raw:       domain.Raw{RawData: json.RawMessage(raw)},
		Name:      r.Get("CompanyName").String(),
		OrgNumber: r.Get("OrganizationNumber").String(),
		VATNumber: r.Get("VATNumber").String(),
		Address:   r.Get("Address").String(),
		City:      r.Get("City").String(),
	}, nil
}

func mapFortnoxPayment(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	if r.Get("InvoicePayment").Exists() {
		r = r.Get("InvoicePayment")
	}
	return &domain.Payment{
		Raw:           domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID:    r.Get("Number").String(),
		InvoiceNumber: r.Get("InvoiceNumber").String(),
		Amount:        moneyOf(r.Get("Amount"), r.Get("Currency").String()),
		PaymentDate:   dateOnly(r.Get("PaymentDate").String()),
	}, nil
}
