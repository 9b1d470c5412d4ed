// Package memory implements database.Adapter entirely in process memory.
// It backs the test suite and any deployment run without a configured DSN
// (spec.md §9: "an implementer should produce... at minimum an in-memory or
// SQLite variant for the test suite").
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nordicledger/accounting-gateway/internal/database"
	"github.com/nordicledger/accounting-gateway/internal/domain"
)

// Store is an in-memory, mutex-guarded implementation of database.Adapter.
type Store struct {
	mu sync.Mutex

	tenants     map[string]domain.Tenant
	apiKeys     map[string]domain.APIKey // keyed by hash
	consents    map[string]domain.Consent
	tokens      map[string]domain.ConsentToken // keyed by consentID
	otcs        map[string]domain.OneTimeCode
	connections map[string]domain.Connection
	entities    map[string]domain.CanonicalEntityRecord // keyed by connID/type/externalID
	syncStates  map[string]domain.SyncState
	progress    map[string]domain.SyncProgress
	sieUploads  map[string][]domain.SIEUpload
	sieData     map[string]domain.SIEData
}

// New builds an empty store. No tenant is seeded; callers install tenants
// and API keys with SeedTenant/SeedAPIKey.
func New() *Store {
	s := &Store{
		tenants:     make(map[string]domain.Tenant),
		apiKeys:     make(map[string]domain.APIKey),
		consents:    make(map[string]domain.Consent),
		tokens:      make(map[string]domain.ConsentToken),
		otcs:        make(map[string]domain.OneTimeCode),
		connections: make(map[string]domain.Connection),
		entities:    make(map[string]domain.CanonicalEntityRecord),
		syncStates:  make(map[string]domain.SyncState),
		progress:    make(map[string]domain.SyncProgress),
		sieUploads:  make(map[string][]domain.SIEUpload),
		sieData:     make(map[string]domain.SIEData),
	}
	return s
}

var _ database.Adapter = (*Store)(nil)

func entityKey(connID string, t domain.EntityType, externalID string) string {
	return connID + "|" + string(t) + "|" + externalID
}

func sieKey(connID string, fiscalYear int, sieType domain.SIEType) string {
	return connID + "|" + itoa(fiscalYear) + "|" + itoa(int(sieType))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// --- Tenants / API keys ---

// SeedTenant installs a tenant directly, for bootstrapping/tests.
func (s *Store) SeedTenant(t domain.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = t
}

// SeedAPIKey installs an API key directly, for bootstrapping/tests.
func (s *Store) SeedAPIKey(k domain.APIKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKeys[k.KeyHash] = k
}

func (s *Store) GetTenant(ctx context.Context, id string) (*domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &t, nil
}

func (s *Store) CreateAPIKey(ctx context.Context, k *domain.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}
	s.apiKeys[k.KeyHash] = *k
	return nil
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.apiKeys[keyHash]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &k, nil
}

func (s *Store) TouchAPIKeyLastUsed(ctx context.Context, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, k := range s.apiKeys {
		if k.ID == keyID {
			now := time.Now().UTC()
			k.LastUsedAt = &now
			s.apiKeys[hash] = k
			return nil
		}
	}
	return database.ErrNotFound
}

// --- Consents ---

func (s *Store) UpsertConsent(ctx context.Context, c *domain.Consent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consents[c.ID] = *c
	return nil
}

func (s *Store) GetConsent(ctx context.Context, tenantID, id string) (*domain.Consent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consents[id]
	if !ok || c.TenantID != tenantID {
		return nil, database.ErrNotFound
	}
	return &c, nil
}

// GetConsentByIDAnyTenant looks up a consent by id with no tenant check; see
// database.Adapter for why this exists alongside the scoped GetConsent.
func (s *Store) GetConsentByIDAnyTenant(ctx context.Context, id string) (*domain.Consent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consents[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &c, nil
}

func (s *Store) GetConsents(ctx context.Context, tenantID string, filter database.ConsentFilter) ([]domain.Consent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Consent
	for _, c := range s.consents {
		if c.TenantID != tenantID {
			continue
		}
		if filter.Provider != nil && c.Provider != *filter.Provider {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteConsent(ctx context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consents[id]
	if !ok || c.TenantID != tenantID {
		return database.ErrNotFound
	}
	delete(s.consents, id)
	delete(s.tokens, id)
	for code, o := range s.otcs {
		if o.ConsentID == id {
			delete(s.otcs, code)
		}
	}
	return nil
}

// --- Consent tokens ---

func (s *Store) StoreConsentTokens(ctx context.Context, t *domain.ConsentToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[t.ConsentID] = *t
	return nil
}

func (s *Store) GetConsentTokens(ctx context.Context, consentID string) (*domain.ConsentToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[consentID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &t, nil
}

func (s *Store) DeleteConsentTokens(ctx context.Context, consentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, consentID)
	return nil
}

// --- One-time codes ---

func (s *Store) CreateOneTimeCode(ctx context.Context, o *domain.OneTimeCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otcs[o.Code] = *o
	return nil
}

// ValidateOneTimeCode atomically checks and marks a code used (spec.md P2):
// first successful call sets UsedAt and returns the record; any later call
// for the same code returns ErrNotFound.
func (s *Store) ValidateOneTimeCode(ctx context.Context, code string) (*domain.OneTimeCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.otcs[code]
	if !ok {
		return nil, database.ErrNotFound
	}
	now := time.Now().UTC()
	if !o.Valid(now) {
		return nil, database.ErrNotFound
	}
	o.UsedAt = &now
	s.otcs[code] = o
	result := o
	return &result, nil
}

// --- Connections ---

func (s *Store) UpsertConnection(ctx context.Context, c *domain.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[c.ConnectionID] = *c
	return nil
}

func (s *Store) GetConnection(ctx context.Context, tenantID, connectionID string) (*domain.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connections[connectionID]
	if !ok || c.TenantID != tenantID {
		return nil, database.ErrNotFound
	}
	return &c, nil
}

func (s *Store) GetConnections(ctx context.Context, tenantID string, filter database.ConnectionFilter) ([]domain.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Connection
	for _, c := range s.connections {
		if c.TenantID != tenantID {
			continue
		}
		if filter.Provider != nil && c.Provider != *filter.Provider {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteConnection(ctx context.Context, tenantID, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.connections[connectionID]
	if !ok || c.TenantID != tenantID {
		return database.ErrNotFound
	}
	delete(s.connections, connectionID)
	for k, e := range s.entities {
		if e.ConnectionID == connectionID {
			delete(s.entities, k)
		}
	}
	for k, st := range s.syncStates {
		if st.ConnectionID == connectionID {
			delete(s.syncStates, k)
		}
	}
	for k, p := range s.progress {
		if p.ConnectionID == connectionID {
			delete(s.progress, k)
		}
	}
	delete(s.sieUploads, connectionID)
	for k, d := range s.sieData {
		if d.ConnectionID == connectionID {
			delete(s.sieData, k)
		}
	}
	return nil
}

// --- Entities ---

// UpsertEntities implements the content-hash delta of spec.md §4.10: a
// present row with an unchanged ContentHash is left untouched and counted as
// unchanged; anything else is written.
func (s *Store) UpsertEntities(ctx context.Context, connectionID string, entityType domain.EntityType, entities []domain.CanonicalEntityRecord) (database.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result database.UpsertResult
	now := time.Now().UTC()
	for _, e := range entities {
		e.ConnectionID = connectionID
		e.EntityType = entityType
		key := entityKey(connectionID, entityType, e.ExternalID)
		existing, ok := s.entities[key]
		switch {
		case !ok:
			e.CreatedAt = now
			e.UpdatedAt = now
			s.entities[key] = e
			result.Inserted++
		case existing.ContentHash == e.ContentHash:
			result.Unchanged++
		default:
			e.CreatedAt = existing.CreatedAt
			e.UpdatedAt = now
			s.entities[key] = e
			result.Updated++
		}
	}
	return result, nil
}

func (s *Store) GetEntities(ctx context.Context, connectionID string, entityType domain.EntityType, q database.EntityQuery) ([]domain.CanonicalEntityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []domain.CanonicalEntityRecord
	for _, e := range s.entities {
		if e.ConnectionID != connectionID || e.EntityType != entityType {
			continue
		}
		if q.FiscalYear != nil && (e.FiscalYear == nil || *e.FiscalYear != *q.FiscalYear) {
			continue
		}
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ExternalID < all[j].ExternalID })

	page, pageSize := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []domain.CanonicalEntityRecord{}, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (s *Store) GetEntityCount(ctx context.Context, connectionID string, entityType domain.EntityType, q database.EntityQuery) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, e := range s.entities {
		if e.ConnectionID != connectionID || e.EntityType != entityType {
			continue
		}
		if q.FiscalYear != nil && (e.FiscalYear == nil || *e.FiscalYear != *q.FiscalYear) {
			continue
		}
		count++
	}
	return count, nil
}

// --- Sync state / progress ---

func (s *Store) GetSyncState(ctx context.Context, connectionID string, entityType domain.EntityType) (*domain.SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := connectionID + "|" + string(entityType)
	st, ok := s.syncStates[key]
	if !ok {
		return &domain.SyncState{ConnectionID: connectionID, EntityType: entityType}, nil
	}
	return &st, nil
}

func (s *Store) UpdateSyncState(ctx context.Context, connectionID string, entityType domain.EntityType, update database.SyncStateUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := connectionID + "|" + string(entityType)
	st, ok := s.syncStates[key]
	if !ok {
		st = domain.SyncState{ConnectionID: connectionID, EntityType: entityType}
	}
	if update.LastSyncAt != nil {
		st.LastSyncAt = update.LastSyncAt
	}
	if update.LastModifiedCursor != nil {
		st.LastModifiedCursor = update.LastModifiedCursor
	}
	st.TotalInserted += update.IncInserted
	st.TotalUpdated += update.IncUpdated
	st.TotalUnchanged += update.IncUnchanged
	if update.LastError != nil {
		st.LastError = update.LastError
	}
	st.UpdatedAt = time.Now().UTC()
	s.syncStates[key] = st
	return nil
}

func (s *Store) UpsertSyncProgress(ctx context.Context, p *domain.SyncProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[p.JobID] = *p
	return nil
}

func (s *Store) GetSyncProgress(ctx context.Context, jobID string) (*domain.SyncProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[jobID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetSyncHistory(ctx context.Context, connectionID string, limit int) ([]domain.SyncProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.SyncProgress
	for _, p := range s.progress {
		if p.ConnectionID == connectionID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- SIE ---

func (s *Store) StoreSIEData(ctx context.Context, d *domain.SIEData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sieKey(d.ConnectionID, d.FiscalYear, d.SIEType)
	d.StoredAt = time.Now().UTC()
	s.sieData[key] = *d
	uploads := s.sieUploads[d.ConnectionID]
	replaced := false
	for i, u := range uploads {
		if u.FiscalYear == d.FiscalYear && u.SIEType == d.SIEType {
			uploads[i].UploadedAt = d.StoredAt
			replaced = true
			break
		}
	}
	if !replaced {
		uploads = append(uploads, domain.SIEUpload{
			ConnectionID: d.ConnectionID,
			FiscalYear:   d.FiscalYear,
			SIEType:      d.SIEType,
			UploadedAt:   d.StoredAt,
		})
	}
	s.sieUploads[d.ConnectionID] = uploads
	return nil
}

func (s *Store) GetSIEUploads(ctx context.Context, connectionID string) ([]domain.SIEUpload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SIEUpload(nil), s.sieUploads[connectionID]...), nil
}

func (s *Store) GetSIEData(ctx context.Context, connectionID string, fiscalYear int, sieType domain.SIEType) (*domain.SIEData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.sieData[sieKey(connectionID, fiscalYear, sieType)]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &d, nil
}

// --- Purge ---

func (s *Store) PurgeExpiredConsents(ctx context.Context, createdOlderThanDays, inactiveOlderThanDays int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	purged := 0
	for id, c := range s.consents {
		var cutoff time.Duration
		switch c.Status {
		case domain.ConsentCreated:
			cutoff = time.Duration(createdOlderThanDays) * 24 * time.Hour
		case domain.ConsentRevoked, domain.ConsentInactive:
			cutoff = time.Duration(inactiveOlderThanDays) * 24 * time.Hour
		default:
			continue
		}
		if now.Sub(c.UpdatedAt) >= cutoff {
			delete(s.consents, id)
			delete(s.tokens, id)
			for code, o := range s.otcs {
				if o.ConsentID == id {
					delete(s.otcs, code)
				}
			}
			purged++
		}
	}
	return purged, nil
}

func (s *Store) ListConsentsNeedingRefresh(ctx context.Context, cutoff time.Time) ([]domain.Consent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Consent
	for _, c := range s.consents {
		if c.Status != domain.ConsentAccepted {
			continue
		}
		tok, ok := s.tokens[c.ID]
		if !ok || tok.TokenExpiresAt == nil || tok.TokenExpiresAt.After(cutoff) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
