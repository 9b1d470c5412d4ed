package mapper

import (
	"time"

	"github.com/tidwall/gjson"

	"github.com/nordicledger/accounting-gateway/internal/domain"
)

func moneyOf(result gjson.Result, currency string) domain.Money {
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	return domain.NewMoney(result.Float(), currency)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func timePtr(s string, layout string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return nil
	}
	return &t
}

// dateOnly parses YYYY-MM-DD, the date format every vendor in this pack uses
// for invoice/due/document dates.
func dateOnly(s string) *time.Time { return timePtr(s, "2006-01-02") }

// salesInvoiceStatus implements spec.md §4.5's fixed precedence:
// cancelled > credited > paid > booked > sent > draft.
func salesInvoiceStatus(cancelled, credited, fullyPaid bool, balance float64, booked, sent bool) string {
	switch {
	case cancelled:
		return "cancelled"
	case credited:
		return "credited"
	case fullyPaid || balance == 0:
		return "paid"
	case booked:
		return "booked"
	case sent:
		return "sent"
	default:
		return "draft"
	}
}

// supplierInvoiceStatus derives status from the remaining balance.
func supplierInvoiceStatus(balance float64, hasBalance bool) string {
	if !hasBalance {
		return "unknown"
	}
	if balance == 0 {
		return "paid"
	}
	if balance > 0 {
		return "unpaid"
	}
	return "unknown"
}

func customerType(raw string) domain.CustomerType {
	switch raw {
	case "PRIVATE", "private", "Person", "person":
		return domain.CustomerPrivate
	default:
		return domain.CustomerCompany
	}
}
