// Package syncengine implements executeSync (spec.md §4.9): the per-entity-
// type incremental pull with content-hash delta (§4.10), plus the optional
// per-fiscal-year SIE fetch (§4.11), both captured into an append-only
// SyncProgress record that survives partial failure.
package syncengine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nordicledger/accounting-gateway/internal/database"
	"github.com/nordicledger/accounting-gateway/internal/domain"
	"github.com/nordicledger/accounting-gateway/internal/gateway"
	"github.com/nordicledger/accounting-gateway/internal/logging"
	"github.com/nordicledger/accounting-gateway/internal/metrics"
	"github.com/nordicledger/accounting-gateway/internal/sie"
	"github.com/nordicledger/accounting-gateway/internal/sie/kpi"
)

// Job is one executeSync invocation's input.
type Job struct {
	JobID        string
	ConnectionID string
	Provider     domain.Provider
	Credentials  gateway.Credentials
	EntityTypes  []domain.EntityType
	IncludeSIE   bool
	FiscalYears  []int
}

// Engine runs sync jobs against a persistence adapter and the gateway
// dispatcher. It owns no scheduling of its own — cmd/gateway's cron sweep
// and the manual sync-trigger HTTP route both just call Execute.
type Engine struct {
	db  database.Adapter
	gw  *gateway.Gateway
	log *logging.Logger
}

// New builds an Engine.
func New(db database.Adapter, gw *gateway.Gateway, log *logging.Logger) *Engine {
	return &Engine{db: db, gw: gw, log: log}
}

// Execute runs the five-step algorithm and returns the finalized progress.
func (e *Engine) Execute(ctx context.Context, job Job) (*domain.SyncProgress, error) {
	start := time.Now().UTC()

	// Step 1.
	progress := &domain.SyncProgress{
		JobID:        job.JobID,
		ConnectionID: job.ConnectionID,
		Provider:     job.Provider,
		Status:       domain.SyncRunning,
		StartedAt:    start,
	}
	if err := e.db.UpsertSyncProgress(ctx, progress); err != nil {
		return nil, fmt.Errorf("syncengine: persist initial progress: %w", err)
	}

	log := e.log.WithContext(ctx).WithFields(logrus.Fields{"job_id": job.JobID, "connection_id": job.ConnectionID})

	// Step 2.
	caps := resolveCapabilities(e.gw, job.Provider)
	types := effectiveEntityTypes(job.EntityTypes, caps)

	// Step 3.
	results := make([]domain.EntitySyncResult, 0, len(types))
	for _, et := range types {
		result := e.syncEntityType(ctx, job, et)
		results = append(results, result)
		if result.Success {
			log.WithFields(logrus.Fields{
				"entity_type": result.EntityType, "inserted": result.Inserted,
				"updated": result.Updated, "unchanged": result.Unchanged,
			}).Info("entity type synced")
		} else {
			log.WithField("entity_type", result.EntityType).WithField("error", result.Error).Warn("entity type sync failed")
		}
	}
	progress.EntityResults = results

	// Step 4.
	if job.IncludeSIE {
		if caps.supportsSIE {
			progress.SIEResult = e.syncSIE(ctx, job, log)
		} else {
			progress.SIEResult = &domain.SIEJobResult{Success: false, Error: string(job.Provider) + " does not support SIE export"}
		}
	}

	// Step 5.
	progress.Status = finalStatus(results)
	progress.Progress = 100
	finished := time.Now().UTC()
	progress.FinishedAt = &finished
	progress.DurationMillis = finished.Sub(start).Milliseconds()

	if err := e.db.UpsertSyncProgress(ctx, progress); err != nil {
		return nil, fmt.Errorf("syncengine: persist final progress: %w", err)
	}
	metrics.RecordSyncJob(string(job.Provider), progress.Status == domain.SyncCompleted, finished.Sub(start))
	return progress, nil
}

// finalStatus implements step 5: failed iff every attempted entity type
// failed and at least one was attempted; completed otherwise (an entity
// type with no vendor mapping at all is simply absent from results, not a
// failure).
func finalStatus(results []domain.EntitySyncResult) domain.SyncJobStatus {
	if len(results) == 0 {
		return domain.SyncCompleted
	}
	for _, r := range results {
		if r.Success {
			return domain.SyncCompleted
		}
	}
	return domain.SyncFailed
}

func (e *Engine) syncEntityType(ctx context.Context, job Job, et domain.EntityType) domain.EntitySyncResult {
	result := domain.EntitySyncResult{EntityType: et}

	rt, ok := entityResource[et]
	if !ok {
		result.Error = "no vendor mapping for entity type " + string(et)
		return result
	}

	state, err := e.db.GetSyncState(ctx, job.ConnectionID, et)
	if err != nil && err != database.ErrNotFound {
		result.Error = err.Error()
		return result
	}

	var cursor *time.Time
	modifiedSince := ""
	if state != nil {
		cursor = state.LastModifiedCursor
		if cursor != nil {
			modifiedSince = cursor.Format(time.RFC3339)
		}
	}

	items, err := e.gw.ListAll(ctx, job.Provider, job.Credentials, rt, modifiedSince)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	records := make([]domain.CanonicalEntityRecord, 0, len(items))
	maxModified := cursor
	for _, item := range items {
		rec := toRecord(job.ConnectionID, job.Provider, et, item)
		hash, err := contentHash(rec.RawData)
		if err != nil {
			// A record the engine cannot hash is dropped rather than
			// failing the whole entity type; it will be retried next sync
			// since the cursor has not advanced past it.
			continue
		}
		rec.ContentHash = hash
		if rec.LastModified != nil && (maxModified == nil || rec.LastModified.After(*maxModified)) {
			maxModified = rec.LastModified
		}
		records = append(records, rec)
	}

	upserted, err := e.db.UpsertEntities(ctx, job.ConnectionID, et, records)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	now := time.Now().UTC()
	update := database.SyncStateUpdate{
		LastSyncAt:         &now,
		LastModifiedCursor: maxModified,
		IncInserted:        int64(upserted.Inserted),
		IncUpdated:         int64(upserted.Updated),
		IncUnchanged:       int64(upserted.Unchanged),
	}
	if err := e.db.UpdateSyncState(ctx, job.ConnectionID, et, update); err != nil {
		result.Error = err.Error()
		return result
	}

	result.Success = true
	result.Inserted = upserted.Inserted
	result.Updated = upserted.Updated
	result.Unchanged = upserted.Unchanged
	metrics.RecordSyncEntities(string(job.Provider), string(et), upserted.Inserted+upserted.Updated)
	return result
}

func (e *Engine) syncSIE(ctx context.Context, job Job, log *logrus.Entry) *domain.SIEJobResult {
	years := job.FiscalYears
	if len(years) == 0 {
		years = []int{time.Now().UTC().Year()}
	}
	tmpl, ok := siePathTemplates[job.Provider]
	if !ok {
		return &domain.SIEJobResult{Error: "no SIE export path configured for " + string(job.Provider)}
	}

	result := &domain.SIEJobResult{}
	var errs []string
	for _, year := range years {
		path := fmt.Sprintf(tmpl, year)
		if err := e.syncSIEYear(ctx, job, path, year); err != nil {
			result.FailedYears = append(result.FailedYears, year)
			errs = append(errs, fmt.Sprintf("%d: %v", year, err))
			log.WithField("fiscal_year", year).WithError(err).Warn("sie fetch failed")
			continue
		}
		result.FiscalYears = append(result.FiscalYears, year)
	}
	result.Success = len(result.FailedYears) == 0
	if len(errs) > 0 {
		result.Error = strings.Join(errs, "; ")
	}
	return result
}

func (e *Engine) syncSIEYear(ctx context.Context, job Job, path string, year int) error {
	raw, err := e.gw.FetchSIEFile(ctx, job.Provider, job.Credentials, path)
	if err != nil {
		return err
	}
	text, err := sie.Decode(raw)
	if err != nil {
		return err
	}
	parsed, err := sie.Parse(text)
	metrics.RecordSIEParse(err == nil)
	if err != nil {
		return err
	}

	data := &domain.SIEData{
		ConnectionID: job.ConnectionID,
		FiscalYear:   year,
		SIEType:      parsed.Metadata.SIEType,
		Parsed:       parsed,
		KPIs:         kpi.Compute(parsed),
		Validation:   sie.Validate(parsed),
		RawText:      text,
		StoredAt:     time.Now().UTC(),
	}
	return e.db.StoreSIEData(ctx, data)
}
