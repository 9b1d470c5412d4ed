package mapper

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/nordicledger/accounting-gateway/internal/domain"
)

func vismaDescriptors() map[domain.ResourceType]Descriptor {
	return map[domain.ResourceType]Descriptor{
		domain.ResourceSalesInvoices: {
			ListPath: "/customerinvoices", DetailPathTemplate: "/customerinvoices/{id}",
			ListKey: "Data", IDField: "Id", Paginated: true, SupportsLastModified: true,
			Map: mapVismaSalesInvoice,
		},
		domain.ResourceSupplierInvoices: {
			ListPath: "/supplierinvoices", DetailPathTemplate: "/supplierinvoices/{id}",
			ListKey: "Data", IDField: "Id", Paginated: true, SupportsLastModified: true,
			Map: mapVismaSupplierInvoice,
		},
		domain.ResourceCustomers: {
			ListPath: "/customers", DetailPathTemplate: "/customers/{id}",
			ListKey: "Data", IDField: "Id", Paginated: true, SupportsLastModified: true,
			Map: mapVismaCustomer,
		},
		domain.ResourceSuppliers: {
			ListPath: "/suppliers", DetailPathTemplate: "/suppliers/{id}",
			ListKey: "Data", IDField: "Id", Paginated: true, SupportsLastModified: true,
			Map: mapVismaSupplier,
		},
		domain.ResourceJournals: {
			ListPath: "/voucher", DetailPathTemplate: "/voucher/{id}",
			ListKey: "Data", IDField: "Id", Paginated: true,
			Map: mapVismaVoucher,
		},
		domain.ResourceAccountingAccounts: {
			ListPath: "/accounts", DetailPathTemplate: "/accounts/{id}",
			ListKey: "Data", IDField: "Id", Paginated: true,
			Map: mapVismaAccount,
		},
		domain.ResourceCompanyInformation: {
			ListPath: "/companysettings", Singleton: true,
			Map: mapVismaCompanyInfo,
		},
		domain.ResourcePayments: {
			ListPath: "/customerpayments", DetailPathTemplate: "/customerpayments/{id}",
			ListKey: "Data", IDField: "Id", Paginated: true,
			Map: mapVismaPayment,
		},
	}
}

func mapVismaSalesInvoice(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	currency := r.Get("CurrencyCode").String()
	status := salesInvoiceStatus(false, r.Get("RowType").String() == "Credit",
		r.Get("RestAmount").Float() == 0, r.Get("RestAmount").Float(), false, r.Get("InvoiceSentDate").Exists())
	return &domain.SalesInvoice{
		Raw:            domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID:     r.Get("Id").String(),
		InvoiceNumber:  r.Get("InvoiceNumber").String(),
		CustomerNumber: r.Get("CustomerNumber").String(),
		CustomerName:   r.Get("CustomerName").String(),
		DocumentDate:   dateOnly(r.Get("InvoiceDate").String()),
		DueDate:        dateOnly(r.Get("DueDate").String()),
		Total:          moneyOf(r.Get("TotalAmount"), currency),
		Balance:        moneyOf(r.Get("RestAmount"), currency),
		Status:         status,
		Currency:       currency,
	}, nil
}

func mapVismaSupplierInvoice(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	currency := r.Get("CurrencyCode").String()
	bal := r.Get("RestAmount")
	return &domain.SupplierInvoice{
		Raw:            domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID:     r.Get("Id").String(),
		InvoiceNumber:  r.Get("InvoiceNumber").String(),
		SupplierNumber: r.Get("SupplierNumber").String(),
		SupplierName:   r.Get("SupplierName").String(),
		DocumentDate:   dateOnly(r.Get("InvoiceDate").String()),
		DueDate:        dateOnly(r.Get("DueDate").String()),
		Total:          moneyOf(r.Get("TotalAmount"), currency),
		Remaining:      moneyOf(bal, currency),
		Status:         supplierInvoiceStatus(bal.Float(), bal.Exists()),
	}, nil
}

func mapVismaCustomer(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	return &domain.Customer{
		Raw:        domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID: r.Get("Id").String(),
		Name:       r.Get("Name").String(),
		Type:       customerType(r.Get("CustomerType").String()),
		Email:      r.Get("Email").String(),
		OrgNumber:  r.Get("CorporateIdentityNumber").String(),
		Active:     r.Get("IsActive").Bool(),
	}, nil
}

func mapVismaSupplier(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	return &domain.Supplier{
		Raw:        domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID: r.Get("Id").String(),
		Name:       r.Get("Name").String(),
		Email:      r.Get("Email").String(),
		OrgNumber:  r.Get("CorporateIdentityNumber").String(),
		Active:     r.Get("IsActive").Bool(),
	}, nil
}

func mapVismaVoucher(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	var entries []domain.JournalEntry
	for _, row := range r.Get("Rows").Array() {
		entries = append(entries, domain.JournalEntry{
			AccountNumber:   row.Get("AccountNumber").String(),
			Debit:           row.Get("DebitAmount").Float(),
			Credit:          row.Get("CreditAmount").Float(),
			TransactionDate: dateOnly(row.Get("TransactionDate").String()),
			Description:     row.Get("Text").String(),
		})
	}
	return &domain.Journal{
		Raw:        domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID: r.Get("Id").String(),
		Number:     r.Get("VoucherNumber").String(),
		Date:       dateOnly(r.Get("VoucherDate").String()),
		Text:       r.Get("Description").String(),
		Entries:    entries,
	}, nil
}

func mapVismaAccount(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	number := r.Get("Number").String()
	return &domain.AccountingAccount{
		Raw:        domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID: r.Get("Id").String(),
		Number:     number,
		Name:       r.Get("Name").String(),
		Type:       domain.DeriveAccountType(number),
		Active:     r.Get("IsActive").Bool(),
	}, nil
}

func mapVismaCompanyInfo(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	return &domain.CompanyInformation{
		Raw:       domain.Raw{RawData: json.RawMessage(raw)},
		Name:      r.Get("CompanyName").String(),
		OrgNumber: r.Get("CorporateIdentityNumber").String(),
		VATNumber: r.Get("VatNumber").String(),
		Address:   r.Get("Address.AddressLine1").String(),
		City:      r.Get("Address.City").String(),
	}, nil
}

func mapVismaPayment(raw []byte) (domain.DTO, error) {
	r := gjson.ParseBytes(raw)
	return &domain.Payment{
		Raw:           domain.Raw{RawData: json.RawMessage(raw)},
		ExternalID:    r.Get("Id").String(),
		InvoiceNumber: r.Get("InvoiceNumber").String(),
		Amount:        moneyOf(r.Get("Amount"), r.Get("CurrencyCode").String()),
		PaymentDate:   dateOnly(r.Get("PaymentDate").String()),
	}, nil
}
