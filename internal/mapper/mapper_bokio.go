package mapper

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/nordicledger/accounting-gateway/internal/domain"
)

// bokioDescriptors. Bokio paths are company-scoped ("/companies/{companyId}/...");
// the {companyId} segment is substituted by the gateway handler from the
// consent's vendorCompanyId before dispatch, same mechanism as Fortnox's
// {series}/{number} substitution.
func bokioDescriptors() map[domain.ResourceType]Descriptor {
	return map[domain.ResourceType]Descriptor{
		domain.ResourceSalesInvoices: {
			ListPath: "/companies/{companyId}/invoices", DetailPathTemplate: "/companies/{companyId}/invoices/{id}",
			ListKey: "items", IDField: "id", Paginated: true, SupportsLastModified: true,
			Map: mapBokioSalesInvoice,
		},
		domain.ResourceSupplierInvoices: {
			ListPath: "/companies/{companyId}/vendor-invoices", DetailPathTemplate: "/companies/{companyId}/vendor-invoices/{id}",
			ListKey: "items", IDField: "id", Paginated: true, SupportsLastModified: true,
			Map: mapBokioSupplierInvoice,
		},
		domain.ResourceCustomers: {
			ListPath: "/companies/{companyId}/customers", DetailPathTemplate: "/companies/{companyId}/customers/{id}",
			ListKey: "items", IDField: "id", Paginated: true,
			Map: mapBokioCustomer,
		},
		domain.ResourceSuppliers: {
			ListPath: "/companies/{companyId}/vendors", DetailPathTemplate: "/companies/{companyId}/vendors/{id}",
			ListKey: "items", IDField: "id", Paginated: true,
			Map: mapBokioSupplier,
		},
		domain.ResourceJournals: {
			ListPath: "/companies/{companyId}/journal-entries", DetailPathTemplate: "/companies/{companyId}/journal-entries/{id}",
			ListKey: "items", IDField: "id", Paginated: true,
			Map: mapBokioJournal,
		},
		domain.ResourceAccountingAccounts: {
			ListPath: "/companies/{companyId}/accounts", DetailPathTemplate: "/companies/{companyId}/accounts/{id}",
			ListKey: "items", IDField: "number", Paginated: true,
			Map: mapBokioAccount,
		},
		domain.ResourceCompanyInformation: {
			ListPath: "/companies/{companyId}", Singleton: true,
			Map: mapBokioCompanyInfo,
		},
		domain.ResourcePayments: {
			ListPath: "/companies/{companyId}/payments", DetailPathTemplate: "/companies/{companyId}/payments/{id}",
			ListKey: "items", IDField: "id", Paginated: true,
			Map: mapBokioPayment,
		},
	}
}

func mapBokioSalesInvoice(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	currency := r.Get("currency").String()
	due := r.Get("amountDue").Float()
	status := "draft"
	switch {
	case r.Get("cancelled").Bool():
		status = "cancelled"
	case r.Get("credited").Bool():
		status = "credited"
	case due == 0:
		status = "paid"
	case r.Get("sent").Bool():
		status = "sent"
	}
	return &domain.SalesInvoice{
		Raw:            domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID:     r.Get("id").String(),
		InvoiceNumber:  r.Get("invoiceNumber").String(),
		CustomerNumber: r.Get("customerId").String(),
		CustomerName:   r.Get("customerName").String(),
		DocumentDate:   dateOnly(r.Get("issueDate").String()),
		DueDate:        dateOnly(r.Get("dueDate").String()),
		Total:          moneyOf(r.Get("amount"), currency),
		Balance:        moneyOf(r.Get("amountDue"), currency),
		Status:         status,
		Currency:       currency,
	}, nil
}

func mapBokioSupplierInvoice(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	currency := r.Get("currency").String()
	bal := r.Get("amountDue")
	return &domain.SupplierInvoice{
		Raw:            domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID:     r.Get("id").String(),
		InvoiceNumber:  r.Get("invoiceNumber").String(),
		SupplierNumber: r.Get("vendorId").String(),
		SupplierName:   r.Get("vendorName").String(),
		DocumentDate:   dateOnly(r.Get("issueDate").String()),
		DueDate:        dateOnly(r.Get("dueDate").String()),
		Total:          moneyOf(r.Get("amount"), currency),
		Remaining:      moneyOf(bal, currency),
		Status:         supplierInvoiceStatus(bal.Float(), bal.Exists()),
	}, nil
}

func mapBokioCustomer(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	return &domain.Customer{
		Raw:        domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID: r.Get("id").String(),
		Name:       r.Get("name").String(),
		Type:       customerType(r.Get("type").String()),
		Email:      r.Get("email").String(),
		OrgNumber:  r.Get("orgNumber").String(),
		Active:     !r.Get("archived").Bool(),
	}, nil
}

func mapBokioSupplier(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	return &domain.Supplier{
		Raw:        domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID: r.Get("id").String(),
		Name:       r.Get("name").String(),
		Email:      r.Get("email").String(),
		OrgNumber:  r.Get("orgNumber").String(),
		Active:     !r.Get("archived").Bool(),
	}, nil
}

func mapBokioJournal(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	var entries []domain.JournalEntry
	for _, row := range r.Get("entries").Array() {
		entries = append(entries, domain.JournalEntry{
			AccountNumber:   row.Get("accountNumber").String(),
			Debit:           row.Get("debit").Float(),
			Credit:          row.Get("credit").Float(),
			TransactionDate: dateOnly(r.Get("date").String()),
			Description:     row.Get("description").String(),
		})
	}
	return &domain.Journal{
		Raw:        domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID: r.Get("id").String(),
		Number:     r.Get("number").String(),
		Date:       dateOnly(r.Get("date").String()),
		Text:       r.Get("description").String(),
		Entries:    entries,
	}, nil
}

func mapBokioAccount(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	number := r.Get("number").String()
	return &domain.AccountingAccount{
		Raw:        domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID: number,
		Number:     number,
		Name:       r.Get("name").String(),
		Type:       domain.DeriveAccountType(number),
		Active:     !r.Get("archived").Bool(),
	}, nil
}

func mapBokioCompanyInfo(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	return &domain.CompanyInformation{
		Raw:       domain.Raw{RawData: json.RawMessage(raw)},
		Name:      r.Get("name").String(),
		OrgNumber: r.Get("orgNumber").String(),
		VATNumber: r.Get("vatNumber").String(),
		Address:   r.Get("address").String(),
		City:      r.Get("city").String(),
	}, nil
}

func mapBokioPayment(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	return &domain.Payment{
		Raw:           domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID:    r.Get("id").String(),
		InvoiceNumber: r.Get("invoiceId").String(),
		Amount:        moneyOf(r.Get("amount"), r.Get("currency").String()),
		PaymentDate:   dateOnly(r.Get("date").String()),
	}, nil
}
