package domain

import "time"

// Connection is a materialized, synced integration. Where a Consent owns
// authorization, a Connection owns the synced data produced from it.
type Connection struct {
	ConnectionID         string            `db:"connection_id" json:"connectionId"`
	TenantID             string            `db:"tenant_id" json:"tenantId"`
	ConsentID            string            `db:"consent_id" json:"consentId"`
	Provider             Provider          `db:"provider" json:"provider"`
	DisplayName          string            `db:"display_name" json:"displayName"`
	OrganizationNumber   *string           `db:"organization_number" json:"organizationNumber,omitempty"`
	LastSyncAt           *time.Time        `db:"last_sync_at" json:"lastSyncAt,omitempty"`
	CreatedAt            time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time         `db:"updated_at" json:"updatedAt"`
	Metadata             map[string]string `db:"-" json:"metadata,omitempty"`
}

// EntityType is the closed enum of canonical business entities the gateway
// can sync and expose.
type EntityType string

const (
	EntityInvoice                 EntityType = "invoice"
	EntityInvoicePayment          EntityType = "invoice_payment"
	EntityCustomer                EntityType = "customer"
	EntitySupplier                EntityType = "supplier"
	EntitySupplierInvoice         EntityType = "supplier_invoice"
	EntitySupplierInvoicePayment  EntityType = "supplier_invoice_payment"
	EntityContract                EntityType = "contract"
	EntityOrder                   EntityType = "order"
	EntityEmployee                EntityType = "employee"
	EntityAsset                   EntityType = "asset"
	EntityCompanyInfo             EntityType = "company_info"
)

// AllEntityTypes enumerates every canonical entity type, used when a sync job
// does not restrict its scope.
var AllEntityTypes = []EntityType{
	EntityInvoice, EntityInvoicePayment, EntityCustomer, EntitySupplier,
	EntitySupplierInvoice, EntitySupplierInvoicePayment, EntityContract,
	EntityOrder, EntityEmployee, EntityAsset, EntityCompanyInfo,
}

// CanonicalEntityRecord is a provider-agnostic normalized row persisted by the
// sync engine. Uniqueness is (ConnectionID, EntityType, ExternalID).
type CanonicalEntityRecord struct {
	ConnectionID       string     `db:"connection_id" json:"connectionId"`
	ExternalID         string     `db:"external_id" json:"externalId"`
	EntityType         EntityType `db:"entity_type" json:"entityType"`
	Provider           Provider   `db:"provider" json:"provider"`
	FiscalYear         *int       `db:"fiscal_year" json:"fiscalYear,omitempty"`
	DocumentDate       *time.Time `db:"document_date" json:"documentDate,omitempty"`
	DueDate            *time.Time `db:"due_date" json:"dueDate,omitempty"`
	CounterpartyNumber *string    `db:"counterparty_number" json:"counterpartyNumber,omitempty"`
	CounterpartyName   *string    `db:"counterparty_name" json:"counterpartyName,omitempty"`
	Amount             *float64   `db:"amount" json:"amount,omitempty"`
	Currency           string     `db:"currency" json:"currency"`
	Status             *string    `db:"status" json:"status,omitempty"`
	RawData            []byte     `db:"raw_data" json:"rawData,omitempty"`
	LastModified       *time.Time `db:"last_modified" json:"lastModified,omitempty"`
	ContentHash        string     `db:"content_hash" json:"contentHash"`
	CreatedAt          time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updatedAt"`
}

// DefaultCurrency is used whenever a vendor omits the currency on a monetary
// amount.
const DefaultCurrency = "SEK"

// SyncState tracks the incremental-pull cursor for one (connection, entity
// type) pair.
type SyncState struct {
	ConnectionID       string     `db:"connection_id" json:"connectionId"`
	EntityType         EntityType `db:"entity_type" json:"entityType"`
	LastSyncAt         *time.Time `db:"last_sync_at" json:"lastSyncAt,omitempty"`
	LastModifiedCursor *time.Time `db:"last_modified_cursor" json:"lastModifiedCursor,omitempty"`
	TotalInserted      int64      `db:"total_inserted" json:"totalInserted"`
	TotalUpdated       int64      `db:"total_updated" json:"totalUpdated"`
	TotalUnchanged     int64      `db:"total_unchanged" json:"totalUnchanged"`
	LastError          *string    `db:"last_error" json:"lastError,omitempty"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updatedAt"`
}

// SyncJobStatus is the lifecycle of one executeSync invocation.
type SyncJobStatus string

const (
	SyncPending   SyncJobStatus = "pending"
	SyncRunning   SyncJobStatus = "running"
	SyncCompleted SyncJobStatus = "completed"
	SyncFailed    SyncJobStatus = "failed"
)

// EntitySyncResult summarizes one entity type's pull within a sync job.
type EntitySyncResult struct {
	EntityType EntityType `json:"entityType"`
	Success    bool       `json:"success"`
	Inserted   int        `json:"inserted"`
	Updated    int        `json:"updated"`
	Unchanged  int        `json:"unchanged"`
	Error      string     `json:"error,omitempty"`
}

// SIEJobResult summarizes the SIE-fetch leg of a sync job, aggregated across
// all fiscal years attempted.
type SIEJobResult struct {
	Success       bool     `json:"success"`
	FiscalYears   []int    `json:"fiscalYears,omitempty"`
	FailedYears   []int    `json:"failedYears,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// SyncProgress is the append-only, last-write-wins progress record for one
// sync job.
type SyncProgress struct {
	JobID          string             `db:"job_id" json:"jobId"`
	ConnectionID   string             `db:"connection_id" json:"connectionId"`
	Provider       Provider           `db:"provider" json:"provider"`
	Status         SyncJobStatus      `db:"status" json:"status"`
	Progress       int                `db:"progress" json:"progress"`
	EntityResults  []EntitySyncResult `db:"-" json:"entityResults"`
	SIEResult      *SIEJobResult      `db:"-" json:"sieResult,omitempty"`
	StartedAt      time.Time          `db:"started_at" json:"startedAt"`
	FinishedAt     *time.Time         `db:"finished_at" json:"finishedAt,omitempty"`
	DurationMillis int64              `db:"duration_millis" json:"durationMillis,omitempty"`
}
