// Package ingest coordinates ingestion runs: one adapter fetch per
// (source, client, day), staged, loaded through the reconciler, and
// recorded in the append-only run log. At most one run per (source,
// client) pair is in flight at a time across all processes.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/paidmedia-monitor/internal/domain"
	"github.com/ignite/paidmedia-monitor/internal/pkg/distlock"
	"github.com/ignite/paidmedia-monitor/internal/pkg/logger"
	"github.com/ignite/paidmedia-monitor/internal/pkg/quota"
	"github.com/ignite/paidmedia-monitor/internal/reconciler"
)

// ErrRunInProgress means another run holds the (source, client) lock.
// The trigger is rejected, never queued.
var ErrRunInProgress = errors.New("ingest: run already in progress for this source and client")

// ErrUnknownSource means no adapter is registered for the source.
var ErrUnknownSource = errors.New("ingest: unknown source")

// Adapter fetches and normalizes one client-day of data from a source.
type Adapter interface {
	Source() domain.Source
	Fetch(ctx context.Context, client *domain.Client, date time.Time) ([]domain.NormalizedRecord, []RowError, error)
}

// FileNamer is implemented by adapters that read from named files.
// The resolved name is recorded on the run log for audit.
type FileNamer interface {
	FileName(ctx context.Context, client *domain.Client, date time.Time) string
}

// LockFactory builds a distributed lock for a key. Each run gets a fresh
// lock instance.
type LockFactory func(key string) distlock.DistLock

// RecordLoader applies one normalized record. Satisfied by
// reconciler.Reconciler.
type RecordLoader interface {
	Upsert(ctx context.Context, rec domain.NormalizedRecord) (reconciler.Result, error)
}

// runStore is the slice of the ingestion repository the orchestrator uses.
type runStore interface {
	CreateLog(ctx context.Context, l *domain.IngestionLog) error
	FinishLog(ctx context.Context, id string, status domain.RunStatus, message string, loaded, failed int) error
	InsertStaging(ctx context.Context, s *domain.StagingRow) error
}

// Alerter notifies admins about run outcomes. A no-op implementation is
// used when notifications are disabled.
type Alerter interface {
	RunFailed(ctx context.Context, log *domain.IngestionLog, reason string)
	ValidationErrors(ctx context.Context, log *domain.IngestionLog, errs []RowError)
}

// Orchestrator owns the run lifecycle.
type Orchestrator struct {
	adapters  map[domain.Source]Adapter
	store     runStore
	newLoader func() RecordLoader
	locks     LockFactory
	alerts    Alerter
	now       func() time.Time
}

// NewOrchestrator wires the orchestrator. newLoader is called once per
// run so per-run caches (CPM settings, client lookups) start fresh.
func NewOrchestrator(store runStore, newLoader func() RecordLoader, locks LockFactory, alerts Alerter) *Orchestrator {
	return &Orchestrator{
		adapters:  make(map[domain.Source]Adapter),
		store:     store,
		newLoader: newLoader,
		locks:     locks,
		alerts:    alerts,
		now:       time.Now,
	}
}

// Register adds a source adapter.
func (o *Orchestrator) Register(a Adapter) { o.adapters[a.Source()] = a }

// Run executes one adapter run for a client and target date. Returns the
// finished run log; ErrRunInProgress when the pair is already running.
func (o *Orchestrator) Run(ctx context.Context, source domain.Source, client *domain.Client, date time.Time) (*domain.IngestionLog, error) {
	adapter, ok := o.adapters[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}

	fileName := ""
	if fn, ok := adapter.(FileNamer); ok {
		fileName = fn.FileName(ctx, client, date)
	}

	return o.withRun(ctx, source, client.ID, date, fileName, func(ctx context.Context, log *domain.IngestionLog) ([]domain.NormalizedRecord, []RowError, error) {
		return adapter.Fetch(ctx, client, date)
	})
}

// LoadUpload runs the synchronous upload path: records were already
// parsed by the handler; the orchestrator still takes the run lock and
// writes the same audit trail as a scheduled run.
func (o *Orchestrator) LoadUpload(ctx context.Context, source domain.Source, clientID, fileName string, records []domain.NormalizedRecord, rowErrs []RowError) (*domain.IngestionLog, error) {
	return o.withRun(ctx, source, clientID, o.now().UTC(), fileName, func(context.Context, *domain.IngestionLog) ([]domain.NormalizedRecord, []RowError, error) {
		return records, rowErrs, nil
	})
}

type fetchFunc func(ctx context.Context, log *domain.IngestionLog) ([]domain.NormalizedRecord, []RowError, error)

func (o *Orchestrator) withRun(ctx context.Context, source domain.Source, clientID string, date time.Time, fileName string, fetch fetchFunc) (*domain.IngestionLog, error) {
	lock := o.locks(distlock.RunKey(string(source), clientID))
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		return nil, ErrRunInProgress
	}
	defer lock.Release(context.WithoutCancel(ctx))

	log := &domain.IngestionLog{
		ID:        uuid.NewString(),
		RunDate:   date,
		Source:    source,
		ClientID:  clientID,
		Status:    domain.StatusProcessing,
		FileName:  fileName,
		StartedAt: o.now().UTC(),
	}
	if err := o.store.CreateLog(ctx, log); err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}

	records, rowErrs, err := fetch(ctx, log)
	if err != nil {
		o.finish(ctx, log, domain.StatusFailed, err.Error(), 0, 0)
		o.alerts.RunFailed(ctx, log, err.Error())
		// Quota exhaustion stays distinguishable so the API can answer
		// 429 instead of a generic failure.
		if errors.Is(err, quota.ErrExhausted) {
			return log, err
		}
		return log, nil
	}

	loaded, rejected := o.load(ctx, log, records)
	failed := len(rowErrs) + rejected

	status := domain.StatusSuccess
	message := ""
	switch {
	case failed == 0:
	case loaded > 0:
		status = domain.StatusPartial
		message = fmt.Sprintf("%d records failed", failed)
	default:
		status = domain.StatusFailed
		message = "all records failed"
	}
	o.finish(ctx, log, status, message, loaded, failed)

	if len(rowErrs) > 0 {
		o.alerts.ValidationErrors(ctx, log, rowErrs)
	}
	if status == domain.StatusFailed {
		o.alerts.RunFailed(ctx, log, message)
	}
	return log, nil
}

// load stages and applies records one at a time. Staging faults are
// logged but do not fail the record; the staging table is an audit aid,
// not the source of truth.
func (o *Orchestrator) load(ctx context.Context, log *domain.IngestionLog, records []domain.NormalizedRecord) (loaded, rejected int) {
	loader := o.newLoader()
	for _, rec := range records {
		o.stage(ctx, log.ID, rec)

		res, err := loader.Upsert(ctx, rec)
		if err != nil {
			logger.Error("record load failed", "run_id", log.ID, "error", err.Error())
			rejected++
			continue
		}
		if !res.Applied {
			logger.Warn("record rejected", "run_id", log.ID, "reason", res.Reason)
			rejected++
			continue
		}
		loaded++
	}
	return loaded, rejected
}

func (o *Orchestrator) stage(ctx context.Context, runID string, rec domain.NormalizedRecord) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	row := &domain.StagingRow{
		ID:          uuid.NewString(),
		RunID:       runID,
		ClientID:    rec.ClientID,
		Source:      rec.Source,
		Date:        rec.Date,
		Key:         rec.Key,
		Impressions: rec.Impressions,
		Clicks:      rec.Clicks,
		Conversions: rec.Conversions,
		Revenue:     rec.Revenue,
		Raw:         raw,
	}
	if err := o.store.InsertStaging(ctx, row); err != nil {
		logger.Warn("staging insert failed", "run_id", runID, "error", err.Error())
	}
}

func (o *Orchestrator) finish(ctx context.Context, log *domain.IngestionLog, status domain.RunStatus, message string, loaded, failed int) {
	log.Status = status
	log.Message = message
	log.RecordsLoaded = loaded
	log.RecordsFailed = failed
	now := o.now().UTC()
	log.FinishedAt = &now

	if err := o.store.FinishLog(ctx, log.ID, status, message, loaded, failed); err != nil {
		logger.Error("close run log failed", "run_id", log.ID, "error", err.Error())
	}
	logger.Info("ingestion run finished",
		"run_id", log.ID, "source", string(log.Source), "client_id", log.ClientID,
		"status", string(status), "loaded", loaded, "failed", failed)
}
