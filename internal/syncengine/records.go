package syncengine

import (
	"time"

	"github.com/tidwall/gjson"

	"github.com/nordicledger/accounting-gateway/internal/domain"
)

// lastModifiedKeys are the field names vendors use for a row's last-modified
// timestamp, tried in order. None of the five vendors use the same key.
var lastModifiedKeys = []string{
	"LastModified", "ModifiedUtc", "ModifiedDate", "modifiedDate", "updatedAt", "updated_at",
}

func extractLastModified(raw []byte) *time.Time {
	r := gjson.ParseBytes(raw)
	for _, key := range lastModifiedKeys {
		v := r.Get(key)
		if !v.Exists() || v.String() == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, v.String()); err == nil {
			return &t
		}
		if t, err := time.Parse("2006-01-02", v.String()); err == nil {
			return &t
		}
	}
	return nil
}

// toRecord flattens one fetched DTO into the canonical entity row the
// database adapter persists, filling in whatever fields the DTO's concrete
// type carries. Unknown DTO types map to a bare record (external id and raw
// payload only) rather than failing the sync.
func toRecord(connectionID string, provider domain.Provider, entityType domain.EntityType, item domain.DTO) domain.CanonicalEntityRecord {
	raw := item.RawBytes()
	rec := domain.CanonicalEntityRecord{
		ConnectionID: connectionID,
		Provider:     provider,
		EntityType:   entityType,
		Currency:     domain.DefaultCurrency,
		RawData:      append([]byte(nil), raw...),
		LastModified: extractLastModified(raw),
	}

	switch v := item.(type) {
	case *domain.SalesInvoice:
		rec.ExternalID = v.ExternalID
		rec.DocumentDate = v.DocumentDate
		rec.DueDate = v.DueDate
		rec.CounterpartyNumber = strPtr(v.CustomerNumber)
		rec.CounterpartyName = strPtr(v.CustomerName)
		amount := v.Total.Value
		rec.Amount = &amount
		rec.Currency = nonEmpty(v.Total.CurrencyCode, rec.Currency)
		rec.Status = strPtr(v.Status)
	case *domain.SupplierInvoice:
		rec.ExternalID = v.ExternalID
		rec.DocumentDate = v.DocumentDate
		rec.DueDate = v.DueDate
		rec.CounterpartyNumber = strPtr(v.SupplierNumber)
		rec.CounterpartyName = strPtr(v.SupplierName)
		amount := v.Total.Value
		rec.Amount = &amount
		rec.Currency = nonEmpty(v.Total.CurrencyCode, rec.Currency)
		rec.Status = strPtr(v.Status)
	case *domain.Customer:
		rec.ExternalID = v.ExternalID
		rec.CounterpartyNumber = strPtr(v.ExternalID)
		rec.CounterpartyName = strPtr(v.Name)
		rec.Status = statusOf(v.Active)
	case *domain.Supplier:
		rec.ExternalID = v.ExternalID
		rec.CounterpartyNumber = strPtr(v.ExternalID)
		rec.CounterpartyName = strPtr(v.Name)
		rec.Status = statusOf(v.Active)
	case *domain.Payment:
		rec.ExternalID = v.ExternalID
		rec.DocumentDate = v.PaymentDate
		amount := v.Amount.Value
		rec.Amount = &amount
		rec.Currency = nonEmpty(v.Amount.CurrencyCode, rec.Currency)
	case *domain.CompanyInformation:
		rec.ExternalID = v.ExternalID
		rec.CounterpartyName = strPtr(v.Name)
	}

	if rec.ExternalID == "" {
		rec.ExternalID = gjson.GetBytes(raw, "Id").String()
	}
	return rec
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func statusOf(active bool) *string {
	s := "inactive"
	if active {
		s = "active"
	}
	return &s
}
