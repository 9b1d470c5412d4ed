package domain

import (
	"encoding/json"
	"time"
)

// Money is the canonical monetary-amount shape: a value plus an ISO currency
// code, defaulting to SEK when a vendor omits it.
type Money struct {
	Value        float64 `json:"value"`
	CurrencyCode string  `json:"currencyCode"`
}

// NewMoney builds a Money value, defaulting an empty currency to SEK.
func NewMoney(value float64, currency string) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{Value: value, CurrencyCode: currency}
}

// Raw carries the opaque hook to the original vendor payload. The gateway
// strips it at the egress boundary (§4.6 step 6) so wire payloads stay small;
// embedding it lets every DTO share one strip helper via the DTO interface
// below.
type Raw struct {
	RawData json.RawMessage `json:"_raw,omitempty"`
}

// StripRaw clears the embedded vendor payload. Called once, at the HTTP
// boundary, on every DTO the gateway returns.
func (r *Raw) StripRaw() { r.RawData = nil }

// RawBytes returns the embedded vendor payload, used by the sync engine to
// compute the content hash (spec.md §4.10) before StripRaw is ever called.
func (r *Raw) RawBytes() json.RawMessage { return r.RawData }

// DTO is implemented by every canonical business shape so the gateway handler
// can strip `_raw` generically before a response leaves the process, and so
// the sync engine can recover the original payload for hashing.
type DTO interface {
	StripRaw()
	RawBytes() json.RawMessage
}

// SalesInvoice is the canonical shape for a vendor's customer-facing invoice.
type SalesInvoice struct {
	Raw
	ExternalID       string     `json:"externalId"`
	InvoiceNumber    string     `json:"invoiceNumber,omitempty"`
	CustomerNumber   string     `json:"customerNumber,omitempty"`
	CustomerName     string     `json:"customerName,omitempty"`
	DocumentDate     *time.Time `json:"documentDate,omitempty"`
	DueDate          *time.Time `json:"dueDate,omitempty"`
	Total            Money      `json:"total"`
	Balance          Money      `json:"balance"`
	Status           string     `json:"status"`
	Currency         string     `json:"currency"`
}

// SupplierInvoice is the canonical shape for an incoming (accounts-payable)
// invoice.
type SupplierInvoice struct {
	Raw
	ExternalID     string     `json:"externalId"`
	InvoiceNumber  string     `json:"invoiceNumber,omitempty"`
	SupplierNumber string     `json:"supplierNumber,omitempty"`
	SupplierName   string     `json:"supplierName,omitempty"`
	DocumentDate   *time.Time `json:"documentDate,omitempty"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	Total          Money      `json:"total"`
	Remaining      Money      `json:"remaining"`
	Status         string     `json:"status"`
}

// CustomerType distinguishes a company counterparty from a private person.
type CustomerType string

const (
	CustomerCompany CustomerType = "company"
	CustomerPrivate CustomerType = "private"
)

// Customer is the canonical shape for a sales-ledger counterparty.
type Customer struct {
	Raw
	ExternalID string       `json:"externalId"`
	Name       string       `json:"name"`
	Type       CustomerType `json:"type"`
	OrgNumber  string       `json:"orgNumber,omitempty"`
	Email      string       `json:"email,omitempty"`
	Active     bool         `json:"active"`
}

// Supplier is the canonical shape for a purchase-ledger counterparty.
type Supplier struct {
	Raw
	ExternalID string `json:"externalId"`
	Name       string `json:"name"`
	OrgNumber  string `json:"orgNumber,omitempty"`
	Email      string `json:"email,omitempty"`
	Active     bool   `json:"active"`
}

// JournalEntry is one debit/credit row of a Journal.
type JournalEntry struct {
	AccountNumber   string     `json:"accountNumber"`
	AccountName     string     `json:"accountName,omitempty"`
	Debit           float64    `json:"debit"`
	Credit          float64    `json:"credit"`
	TransactionDate *time.Time `json:"transactionDate,omitempty"`
	Description     string     `json:"description,omitempty"`
}

// Journal is the canonical shape for a posted voucher/verification: a header
// plus balanced entries. Mappers must preserve sum(debit) == sum(credit).
type Journal struct {
	Raw
	ExternalID string         `json:"externalId"`
	Series     string         `json:"series,omitempty"`
	Number     string         `json:"number,omitempty"`
	Date       *time.Time     `json:"date,omitempty"`
	Text       string         `json:"text,omitempty"`
	Entries    []JournalEntry `json:"entries"`
}

// DebitCreditBalanced reports whether the journal's entries sum to zero net
// (invariant P5 from spec.md §8).
func (j *Journal) DebitCreditBalanced() bool {
	var debit, credit float64
	for _, e := range j.Entries {
		debit += e.Debit
		credit += e.Credit
	}
	return roundsEqual(debit, credit)
}

func roundsEqual(a, b float64) bool {
	const epsilon = 0.005
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < epsilon
}

// AccountType is the BAS-derived classification of an accounting account.
type AccountType string

const (
	AccountAsset     AccountType = "asset"
	AccountLiability AccountType = "liability"
	AccountRevenue   AccountType = "revenue"
	AccountExpense   AccountType = "expense"
	AccountUnset     AccountType = ""
)

// AccountingAccount is the canonical shape for one row of the chart of
// accounts.
type AccountingAccount struct {
	Raw
	ExternalID string      `json:"externalId"`
	Number     string      `json:"number"`
	Name       string      `json:"name"`
	Type       AccountType `json:"type"`
	Active     bool        `json:"active"`
}

// DeriveAccountType implements spec.md §4.5: the account's type is derived
// from the first digit of its BAS number.
func DeriveAccountType(number string) AccountType {
	if number == "" {
		return AccountUnset
	}
	switch number[0] {
	case '1':
		return AccountAsset
	case '2':
		return AccountLiability
	case '3':
		return AccountRevenue
	case '4', '5', '6', '7':
		return AccountExpense
	default:
		return AccountUnset
	}
}

// CompanyInformation is the canonical shape for vendor-reported company
// metadata.
type CompanyInformation struct {
	Raw
	ExternalID   string `json:"externalId"`
	Name         string `json:"name"`
	OrgNumber    string `json:"orgNumber,omitempty"`
	VATNumber    string `json:"vatNumber,omitempty"`
	Address      string `json:"address,omitempty"`
	City         string `json:"city,omitempty"`
	PostalCode   string `json:"postalCode,omitempty"`
	Country      string `json:"country,omitempty"`
}

// Payment is the canonical shape for a settlement against an invoice.
type Payment struct {
	Raw
	ExternalID      string     `json:"externalId"`
	InvoiceNumber   string     `json:"invoiceNumber,omitempty"`
	Amount          Money      `json:"amount"`
	PaymentDate     *time.Time `json:"paymentDate,omitempty"`
	Method          string     `json:"method,omitempty"`
}
