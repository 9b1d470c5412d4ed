package mapper

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/nordicledger/accounting-gateway/internal/domain"
)

func brioxDescriptors() map[domain.ResourceType]Descriptor {
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
			// Briox journals are scoped under a fiscal-year path segment;
			// the gateway resolves the current year if the caller omits it
			// (spec.md §4.5's yearScoped flag).
			ListPath:           "/vouchers/%d",
			DetailPathTemplate: "/vouchers/{id}",
			ListKey:            "vouchers", IDField: "voucherNumber", Paginated: true, YearScoped: true,
			Map: mapBrioxVoucher,
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

func mapBrioxSalesInvoice(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	currency := r.Get("currency").String()
	balance := r.Get("balance").Float()
	status := salesInvoiceStatus(r.Get("cancelled").Bool(), r.Get("credited").Bool(),
		r.Get("paid").Bool(), balance, r.Get("booked").Bool(), r.Get("sent").Bool())
	return &domain.SalesInvoice{
		Raw:            domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID:     r.Get("invoiceNumber").String(),
		InvoiceNumber:  r.Get("invoiceNumber").String(),
		CustomerNumber: r.Get("customerNumber").String(),
		CustomerName:   r.Get("customerName").String(),
		DocumentDate:   dateOnly(r.Get("invoiceDate").String()),
		DueDate:        dateOnly(r.Get("dueDate").String()),
		Total:          moneyOf(r.Get("total"), currency),
		Balance:        moneyOf(r.Get("balance"), currency),
		Status:         status,
		Currency:       currency,
	}, nil
}

func mapBrioxSupplierInvoice(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	currency := r.Get("currency").String()
	bal := r.Get("balance")
	return &domain.SupplierInvoice{
		Raw:            domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID:     r.Get("invoiceNumber").String(),
		InvoiceNumber:  r.Get("invoiceNumber").String(),
		SupplierNumber: r.Get("supplierNumber").String(),
		SupplierName:   r.Get("supplierName").String(),
		DocumentDate:   dateOnly(r.Get("invoiceDate").String()),
		DueDate:        dateOnly(r.Get("dueDate").String()),
		Total:          moneyOf(r.Get("total"), currency),
		Remaining:      moneyOf(bal, currency),
		Status:         supplierInvoiceStatus(bal.Float(), bal.Exists()),
	}, nil
}

func mapBrioxCustomer(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	return &domain.Customer{
		Raw:        domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID: r.Get("customerNumber").String(),
		Name:       r.Get("name").String(),
		Type:       customerType(r.Get("type").String()),
		Email:      r.Get("email").String(),
		OrgNumber:  r.Get("organisationNumber").String(),
		Active:     !r.Get("inactive").Bool(),
	}, nil
}

func mapBrioxSupplier(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	return &domain.Supplier{
		Raw:        domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID: r.Get("supplierNumber").String(),
		Name:       r.Get("name").String(),
		Email:      r.Get("email").String(),
		OrgNumber:  r.Get("organisationNumber").String(),
		Active:     !r.Get("inactive").Bool(),
	}, nil
}

func mapBrioxVoucher(raw []byte) (domain.DTO, error) {
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

func mapBrioxAccount(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	number := r.Get("number").String()
	return &domain.AccountingAccount{
		Raw:        domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID: number,
		Number:     number,
		Name:       r.Get("name").String(),
		Type:       domain.DeriveAccountType(number),
		Active:     !r.Get("inactive").Bool(),
	}, nil
}

func mapBrioxCompanyInfo(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	return &domain.CompanyInformation{
		Raw:       domain.Raw{RawData: json.RawMessage(raw)},
		Name:      r.Get("name").String(),
		OrgNumber: r.Get("organisationNumber").String(),
		VATNumber: r.Get("vatNumber").String(),
		Address:   r.Get("address").String(),
		City:      r.Get("city").String(),
	}, nil
}

func mapBrioxPayment(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	return &domain.Payment{
		Raw:           domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID:    r.Get("id").String(),
		InvoiceNumber: r.Get("invoiceNumber").String(),
		Amount:        moneyOf(r.Get("amount"), r.Get("currency").String()),
		PaymentDate:   dateOnly(r.Get("date").String()),
	}, nil
}
