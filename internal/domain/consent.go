package domain

import "time"

// ConsentStatus is the consent lifecycle state.
type ConsentStatus int

const (
	ConsentCreated  ConsentStatus = 0
	ConsentAccepted ConsentStatus = 1
	ConsentRevoked  ConsentStatus = 2
	ConsentInactive ConsentStatus = 3
)

func (s ConsentStatus) String() string {
	switch s {
	case ConsentCreated:
		return "created"
	case ConsentAccepted:
		return "accepted"
	case ConsentRevoked:
		return "revoked"
	case ConsentInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// Provider is a recognized vendor tag, including the synthetic "sie-upload"
// provider used for manually-uploaded SIE files.
type Provider string

const (
	ProviderFortnox     Provider = "fortnox"
	ProviderVisma       Provider = "visma"
	ProviderBriox       Provider = "briox"
	ProviderBokio       Provider = "bokio"
	ProviderBjornLunden Provider = "bjornlunden"
	ProviderSIEUpload   Provider = "sie-upload"
)

// Consent is the central entity: a tenant's authorization for the gateway to
// access one vendor account.
type Consent struct {
	ID          string        `db:"id" json:"id"`
	TenantID    string        `db:"tenant_id" json:"tenantId"`
	Name        string        `db:"name" json:"name"`
	Provider    Provider      `db:"provider" json:"provider"`
	OrgNumber   *string       `db:"org_number" json:"orgNumber,omitempty"`
	CompanyName *string       `db:"company_name" json:"companyName,omitempty"`
	Status      ConsentStatus `db:"status" json:"status"`
	ETag        string        `db:"etag" json:"etag"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updatedAt"`
	ExpiresAt   *time.Time    `db:"expires_at" json:"expiresAt,omitempty"`
}

// CanTransact reports whether the consent currently permits data-plane
// access: only the Accepted state does.
func (c *Consent) CanTransact() bool {
	return c.Status == ConsentAccepted
}

// ConsentToken holds the credentials the gateway has stored for a consent.
// At most one exists per consent. Secret fields are opaque ciphertext at
// rest; callers receive plaintext only through the token vault's Load.
type ConsentToken struct {
	ConsentID          string     `db:"consent_id" json:"consentId"`
	Provider           Provider   `db:"provider" json:"provider"`
	AccessToken        string     `db:"access_token" json:"-"`
	RefreshToken       *string    `db:"refresh_token" json:"-"`
	TokenExpiresAt     *time.Time `db:"token_expires_at" json:"tokenExpiresAt,omitempty"`
	VendorCompanyID    *string    `db:"vendor_company_id" json:"vendorCompanyId,omitempty"`
	Scopes             []string   `db:"-" json:"scopes,omitempty"`
	EncryptedAt         time.Time `db:"encrypted_at" json:"-"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time `db:"updated_at" json:"updatedAt"`
}

// Expired reports whether the access token needs a refresh before use.
func (t *ConsentToken) Expired(now time.Time) bool {
	return t.TokenExpiresAt != nil && t.TokenExpiresAt.Before(now)
}

// OneTimeCode is a short-lived, single-use handoff token bound to exactly one
// consent, used to transfer authority from a creator flow to an acceptance
// flow without exposing long-lived credentials in a browser redirect.
type OneTimeCode struct {
	Code      string     `db:"code" json:"code"`
	ConsentID string     `db:"consent_id" json:"consentId"`
	ExpiresAt time.Time  `db:"expires_at" json:"expiresAt"`
	UsedAt    *time.Time `db:"used_at" json:"usedAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}

// Valid reports whether the code may still be validated: not expired and not
// already used.
func (o *OneTimeCode) Valid(now time.Time) bool {
	return o.UsedAt == nil && o.ExpiresAt.After(now)
}
