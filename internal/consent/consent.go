// Package consent implements the consent service (spec.md §4.7): the
// lifecycle of one tenant's authorization to access one vendor account,
// including the one-time-code handoff used by the acceptance flow and the
// SIE-upload variant that never talks to a vendor at all.
package consent

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nordicledger/accounting-gateway/internal/database"
	"github.com/nordicledger/accounting-gateway/internal/domain"
	gwerrors "github.com/nordicledger/accounting-gateway/internal/errors"
	"github.com/nordicledger/accounting-gateway/internal/sie"
	"github.com/nordicledger/accounting-gateway/internal/sie/kpi"
	"github.com/nordicledger/accounting-gateway/internal/vault"
)

// DefaultOTCValidity is the one-time-code lifetime when the caller doesn't
// override it.
const DefaultOTCValidity = 60 * time.Minute

type Service struct {
	db    database.Adapter
	vault *vault.Vault
}

func New(db database.Adapter, v *vault.Vault) *Service {
	return &Service{db: db, vault: v}
}

func newETag() string {
	return uuid.NewString()
}

// Create builds a new consent in the Created state.
func (s *Service) Create(ctx context.Context, tenantID, name string, provider domain.Provider) (*domain.Consent, error) {
	now := time.Now().UTC()
	c := &domain.Consent{
		ID: uuid.NewString(), TenantID: tenantID, Name: name, Provider: provider,
		Status: domain.ConsentCreated, ETag: newETag(), CreatedAt: now, UpdatedAt: now,
	}
	if err := s.db.UpsertConsent(ctx, c); err != nil {
		return nil, gwerrors.Internal("create consent", err)
	}
	return c, nil
}

// List scopes to the caller's tenant with optional provider/status filters.
func (s *Service) List(ctx context.Context, tenantID string, filter database.ConsentFilter) ([]domain.Consent, error) {
	return s.db.GetConsents(ctx, tenantID, filter)
}

// Get returns the consent, or a not-found error. Cross-tenant access (P9)
// returns the same not-found error as a missing id: GetConsent itself is
// scoped by tenantID, so a mismatched tenant never surfaces a distinct
// error path.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*domain.Consent, error) {
	c, err := s.db.GetConsent(ctx, tenantID, id)
	if err != nil {
		return nil, asNotFound(err, id)
	}
	return c, nil
}

func asNotFound(err error, id string) error {
	if err == database.ErrNotFound {
		return gwerrors.NotFound("consent", id)
	}
	return gwerrors.Internal("load consent", err)
}

// Patch applies a partial update; ifMatch, if non-empty, must equal the
// stored ETag or the update is rejected with 412.
func (s *Service) Patch(ctx context.Context, tenantID, id string, ifMatch string, name *string, expiresAt *time.Time) (*domain.Consent, error) {
	c, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != c.ETag {
		return nil, gwerrors.Conflict("etag mismatch")
	}
	if name != nil {
		c.Name = *name
	}
	if expiresAt != nil {
		c.ExpiresAt = expiresAt
	}
	c.ETag = newETag()
	c.UpdatedAt = time.Now().UTC()
	if err := s.db.UpsertConsent(ctx, c); err != nil {
		return nil, gwerrors.Internal("patch consent", err)
	}
	return c, nil
}

// Delete cascades to tokens and OTCs (enforced by the database adapter).
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	if _, err := s.Get(ctx, tenantID, id); err != nil {
		return err
	}
	if err := s.db.DeleteConsent(ctx, tenantID, id); err != nil {
		return gwerrors.Internal("delete consent", err)
	}
	return nil
}

// CreateOTC generates a 16-hex-char single-use code for the handoff flow.
func (s *Service) CreateOTC(ctx context.Context, tenantID, consentID string, validity time.Duration) (*domain.OneTimeCode, error) {
	if _, err := s.Get(ctx, tenantID, consentID); err != nil {
		return nil, err
	}
	if validity <= 0 {
		validity = DefaultOTCValidity
	}
	code, err := randomHex(8) // 8 bytes -> 16 hex chars
	if err != nil {
		return nil, gwerrors.Internal("generate otc", err)
	}
	now := time.Now().UTC()
	otc := &domain.OneTimeCode{Code: code, ConsentID: consentID, ExpiresAt: now.Add(validity), CreatedAt: now}
	if err := s.db.CreateOneTimeCode(ctx, otc); err != nil {
		return nil, gwerrors.Internal("persist otc", err)
	}
	return otc, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// ValidateOTC performs the atomic check-and-mark validation. A nil, nil
// return means the code was not found, already used, or expired.
func (s *Service) ValidateOTC(ctx context.Context, code string) (*domain.OneTimeCode, error) {
	otc, err := s.db.ValidateOneTimeCode(ctx, code)
	if err == database.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, gwerrors.Internal("validate otc", err)
	}
	return otc, nil
}

// ExchangeInput carries the payload the OAuth callback (or any credential
// handoff) submits once the end user has authorized the vendor.
type ExchangeInput struct {
	Code            string
	ConsentID       string
	Provider        domain.Provider
	AccessToken     string
	RefreshToken    *string
	ExpiresIn       *int
	Scopes          []string
	VendorCompanyID *string
}

// ExchangeToken validates the OTC, stores the vendor tokens, and transitions
// the consent to Accepted.
func (s *Service) ExchangeToken(ctx context.Context, in ExchangeInput) (*domain.Consent, error) {
	otc, err := s.ValidateOTC(ctx, in.Code)
	if err != nil {
		return nil, err
	}
	if otc == nil {
		return nil, gwerrors.Unauthorized("one-time code is invalid, expired, or already used")
	}
	if otc.ConsentID != in.ConsentID {
		return nil, gwerrors.Validation("one-time code does not belong to the stated consent", map[string]interface{}{
			"expectedConsentId": otc.ConsentID,
		})
	}

	var expiresAt *time.Time
	if in.ExpiresIn != nil {
		t := time.Now().UTC().Add(time.Duration(*in.ExpiresIn) * time.Second)
		expiresAt = &t
	}
	tokens := vault.Tokens{
		AccessToken: in.AccessToken, RefreshToken: in.RefreshToken,
		TokenExpiresAt: expiresAt, VendorCompanyID: in.VendorCompanyID, Scopes: in.Scopes,
	}
	if err := s.vault.Store(ctx, in.ConsentID, in.Provider, tokens); err != nil {
		return nil, err
	}

	c, err := s.db.GetConsentByIDAnyTenant(ctx, in.ConsentID)
	if err != nil {
		return nil, asNotFound(err, in.ConsentID)
	}
	c.Status = domain.ConsentAccepted
	c.ETag = newETag()
	c.UpdatedAt = time.Now().UTC()
	if err := s.db.UpsertConsent(ctx, c); err != nil {
		return nil, gwerrors.Internal("accept consent", err)
	}
	return c, nil
}

// Revoke transitions a consent to Revoked and drops any stored vendor
// tokens, so a subsequent request hitting the consent-scoped middleware
// finds no managed credentials rather than stale ones.
func (s *Service) Revoke(ctx context.Context, tenantID, id string) (*domain.Consent, error) {
	c, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	c.Status = domain.ConsentRevoked
	c.ETag = newETag()
	c.UpdatedAt = time.Now().UTC()
	if err := s.db.UpsertConsent(ctx, c); err != nil {
		return nil, gwerrors.Internal("revoke consent", err)
	}
	_ = s.db.DeleteConsentTokens(ctx, id)
	return c, nil
}

// AcceptTokens stores a freshly obtained vendor token bundle and transitions
// the consent to Accepted. Used by the OAuth callback route, which — like
// ExchangeToken — authenticates by the redirect's authorization code rather
// than a tenant-scoped API key, so the lookup is intentionally unscoped
// (spec.md §4.7).
func (s *Service) AcceptTokens(ctx context.Context, consentID string, provider domain.Provider, tokens vault.Tokens) (*domain.Consent, error) {
	if err := s.vault.Store(ctx, consentID, provider, tokens); err != nil {
		return nil, err
	}
	c, err := s.db.GetConsentByIDAnyTenant(ctx, consentID)
	if err != nil {
		return nil, asNotFound(err, consentID)
	}
	c.Status = domain.ConsentAccepted
	c.ETag = newETag()
	c.UpdatedAt = time.Now().UTC()
	if err := s.db.UpsertConsent(ctx, c); err != nil {
		return nil, gwerrors.Internal("accept consent", err)
	}
	return c, nil
}

// UploadSIE implements the sie-upload consent variant: decode, parse,
// compute KPIs, store, and transition the consent to Accepted. It never
// contacts a vendor.
func (s *Service) UploadSIE(ctx context.Context, tenantID, consentID string, fiscalYear int, filename string, raw []byte) (*domain.SIEData, error) {
	c, err := s.Get(ctx, tenantID, consentID)
	if err != nil {
		return nil, err
	}
	if c.Provider != domain.ProviderSIEUpload {
		return nil, gwerrors.Validation("SIE uploads are only accepted on sie-upload consents", nil)
	}

	text, err := sie.Decode(raw)
	if err != nil {
		return nil, gwerrors.Validation(fmt.Sprintf("could not decode SIE file: %v", err), nil)
	}
	parsed, err := sie.Parse(text)
	if err != nil {
		return nil, gwerrors.Validation(fmt.Sprintf("could not parse SIE file: %v", err), nil)
	}
	validation := sie.Validate(parsed)
	var vector *domain.KPIVector
	if validation.Valid() {
		vector = kpi.Compute(parsed)
	}

	data := &domain.SIEData{
		ConnectionID: consentID, FiscalYear: fiscalYear, SIEType: parsed.Metadata.SIEType,
		Parsed: parsed, KPIs: vector, Validation: validation, RawText: text, StoredAt: time.Now().UTC(),
	}
	if err := s.db.StoreSIEData(ctx, data); err != nil {
		return nil, gwerrors.Internal("store sie data", err)
	}

	changed := false
	if c.CompanyName == nil && parsed.Metadata.CompanyName != "" {
		c.CompanyName = &parsed.Metadata.CompanyName
		changed = true
	}
	if c.OrgNumber == nil && parsed.Metadata.OrgNumber != "" {
		c.OrgNumber = &parsed.Metadata.OrgNumber
		changed = true
	}
	if c.Status != domain.ConsentAccepted {
		c.Status = domain.ConsentAccepted
		changed = true
	}
	if changed {
		c.ETag = newETag()
		c.UpdatedAt = time.Now().UTC()
		if err := s.db.UpsertConsent(ctx, c); err != nil {
			return nil, gwerrors.Internal("update consent after sie upload", err)
		}
	}
	return data, nil
}
