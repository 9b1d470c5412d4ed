// Package vault implements the credential vault: encrypted at-rest storage
// and transparent refresh of vendor credentials (spec.md §4.3).
package vault

import (
	"context"
	"encoding/json"
	"time"

	gwcrypto "github.com/nordicledger/accounting-gateway/internal/crypto"
	"github.com/nordicledger/accounting-gateway/internal/database"
	"github.com/nordicledger/accounting-gateway/internal/domain"
	gwerrors "github.com/nordicledger/accounting-gateway/internal/errors"
)

// Tokens is the plaintext credential bundle callers work with; the vault
// encrypts/decrypts it transparently against domain.ConsentToken.
type Tokens struct {
	AccessToken     string
	RefreshToken    *string
	TokenExpiresAt  *time.Time
	VendorCompanyID *string
	Scopes          []string
}

type secretPayload struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken *string  `json:"refreshToken,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
}

// Refresher performs a vendor-specific credential refresh. Implemented by
// internal/oauthdriver for each vendor's flow (OAuth2 refresh grant,
// client-credentials grant, or a static-token no-op).
type Refresher interface {
	Refresh(ctx context.Context, provider domain.Provider, current Tokens) (Tokens, error)
}

// Vault is the token vault: store/load/refresh over a database.Adapter, with
// AES-256-GCM encryption keyed by a root key the operator configures.
// Absence of a root key is tolerated only so local development can run
// without one (spec.md §3); it must never be unset in a hosted deployment.
type Vault struct {
	db      database.Adapter
	rootKey []byte // nil in development mode
}

// New builds a Vault. rootKey may be nil only for development.
func New(db database.Adapter, rootKey []byte) *Vault {
	return &Vault{db: db, rootKey: rootKey}
}

func (v *Vault) vendorKey(provider domain.Provider) ([]byte, error) {
	if v.rootKey == nil {
		return nil, nil
	}
	return gwcrypto.DeriveVendorKey(v.rootKey, string(provider))
}

// Store upserts ciphered tokens for a consent, recording EncryptedAt.
func (v *Vault) Store(ctx context.Context, consentID string, provider domain.Provider, t Tokens) error {
	payload := secretPayload{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken, Scopes: t.Scopes}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return gwerrors.Internal("marshal tokens", err)
	}

	record := &domain.ConsentToken{
		ConsentID:       consentID,
		Provider:        provider,
		TokenExpiresAt:  t.TokenExpiresAt,
		VendorCompanyID: t.VendorCompanyID,
		Scopes:          t.Scopes,
		EncryptedAt:     time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}

	key, err := v.vendorKey(provider)
	if err != nil {
		return gwerrors.Internal("derive vendor key", err)
	}
	if key != nil {
		ciphertext, err := gwcrypto.Encrypt(key, plaintext)
		if err != nil {
			return gwerrors.Internal("encrypt tokens", err)
		}
		record.AccessToken = ciphertext
	} else {
		// Development mode only: no key configured, store plaintext JSON.
		record.AccessToken = string(plaintext)
	}

	return v.db.StoreConsentTokens(ctx, record)
}

// Load returns the plaintext tokens for a consent. On ciphertext-integrity
// failure it returns a DecryptFailed ServiceError and never falls back to
// treating the stored bytes as plaintext (spec.md §4.3, P8).
func (v *Vault) Load(ctx context.Context, consentID string, provider domain.Provider) (*Tokens, error) {
	record, err := v.db.GetConsentTokens(ctx, consentID)
	if err != nil {
		return nil, err
	}

	var plaintext []byte
	key, err := v.vendorKey(provider)
	if err != nil {
		return nil, gwerrors.Internal("derive vendor key", err)
	}
	if key != nil {
		plaintext, err = gwcrypto.Decrypt(key, record.AccessToken)
		if err != nil {
			return nil, gwerrors.DecryptFailed(err)
		}
	} else {
		plaintext = []byte(record.AccessToken)
	}

	var payload secretPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, gwerrors.DecryptFailed(err)
	}

	return &Tokens{
		AccessToken:     payload.AccessToken,
		RefreshToken:    payload.RefreshToken,
		TokenExpiresAt:  record.TokenExpiresAt,
		VendorCompanyID: record.VendorCompanyID,
		Scopes:          payload.Scopes,
	}, nil
}

// Refresh refreshes and persists new tokens when the stored access token is
// expired, delegating the vendor-specific grant to r. Vendors without a
// refresh token (client-credentials vendors) and vendors with non-expiring
// static tokens are expected to implement Refresher accordingly (a fresh
// grant, or a no-op).
func (v *Vault) Refresh(ctx context.Context, r Refresher, consentID string, provider domain.Provider, current Tokens) (*Tokens, error) {
	next, err := r.Refresh(ctx, provider, current)
	if err != nil {
		return nil, err
	}
	if err := v.Store(ctx, consentID, provider, next); err != nil {
		return nil, err
	}
	return &next, nil
}

// NeedsRefresh reports whether t's access token is expired (or about to
// expire within the given skew), per spec.md §4.8 step 4.
func NeedsRefresh(t *Tokens, now time.Time, skew time.Duration) bool {
	if t == nil || t.TokenExpiresAt == nil {
		return false
	}
	return t.TokenExpiresAt.Before(now.Add(skew))
}
