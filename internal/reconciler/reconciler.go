// Package reconciler loads normalized records into the canonical
// daily_metrics table. It validates the record, imputes spend from the
// client's CPM settings when the source reported none, computes the
// derived ratios, and upserts so re-ingesting a day replaces its rows.
package reconciler

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/paidmedia-monitor/internal/domain"
	"github.com/ignite/paidmedia-monitor/internal/metrics"
	"github.com/ignite/paidmedia-monitor/internal/repository/postgres"
)

// Result of one record: applied, or rejected with a reason. A rejection
// counts against the run's failed total; it never aborts the run.
type Result struct {
	Applied bool
	Reason  string
}

type clientReader interface {
	Get(ctx context.Context, id string) (*domain.Client, error)
	CPMSettings(ctx context.Context, clientID string) ([]domain.CPMSetting, error)
}

type metricWriter interface {
	Upsert(ctx context.Context, m *domain.DailyMetric) error
}

// Reconciler applies normalized records. CPM settings are cached per
// client for the lifetime of one Reconciler, which matches one run.
type Reconciler struct {
	clients     clientReader
	writer      metricWriter
	defaultRate float64

	settingsCache map[string][]domain.CPMSetting
	knownClients  map[string]bool
}

// New creates a reconciler. defaultRate is the fallback CPM applied when
// a client has no setting for a source; zero disables the fallback.
func New(clients clientReader, writer metricWriter, defaultRate float64) *Reconciler {
	return &Reconciler{
		clients:       clients,
		writer:        writer,
		defaultRate:   defaultRate,
		settingsCache: make(map[string][]domain.CPMSetting),
		knownClients:  make(map[string]bool),
	}
}

// Upsert validates and loads one record.
func (r *Reconciler) Upsert(ctx context.Context, rec domain.NormalizedRecord) (Result, error) {
	if rec.ClientID == "" {
		return Result{Reason: "missing client"}, nil
	}
	if rec.Date.IsZero() {
		return Result{Reason: "missing date"}, nil
	}
	if rec.Key.Campaign == "" {
		return Result{Reason: "missing campaign"}, nil
	}

	ok, err := r.clientExists(ctx, rec.ClientID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Reason: fmt.Sprintf("unknown client %s", rec.ClientID)}, nil
	}

	rate := 0.0
	if rec.Spend == nil {
		settings, err := r.settings(ctx, rec.ClientID)
		if err != nil {
			return Result{}, err
		}
		if resolved, found := metrics.ResolveRate(settings, rec.Source, rec.Date); found {
			rate = resolved
		} else {
			rate = r.defaultRate
		}
	}

	d := metrics.Compute(rec.Impressions, rec.Clicks, rec.Conversions, rec.Revenue, rec.Spend, rate)

	m := &domain.DailyMetric{
		ID:          uuid.NewString(),
		ClientID:    rec.ClientID,
		Source:      rec.Source,
		Key:         rec.Key.Normalize(),
		Region:      rec.Region,
		Date:        rec.Date,
		Impressions: rec.Impressions,
		Clicks:      rec.Clicks,
		Conversions: rec.Conversions,
		Revenue:     rec.Revenue,
		CTR:         d.CTR,
		Spend:       d.Spend,
		CPC:         d.CPC,
		CPA:         d.CPA,
		ROAS:        d.ROAS,
	}
	if err := r.writer.Upsert(ctx, m); err != nil {
		return Result{}, fmt.Errorf("load metric: %w", err)
	}
	return Result{Applied: true}, nil
}

func (r *Reconciler) clientExists(ctx context.Context, id string) (bool, error) {
	if known, ok := r.knownClients[id]; ok {
		return known, nil
	}
	_, err := r.clients.Get(ctx, id)
	if errors.Is(err, postgres.ErrNotFound) {
		r.knownClients[id] = false
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup client: %w", err)
	}
	r.knownClients[id] = true
	return true, nil
}

func (r *Reconciler) settings(ctx context.Context, clientID string) ([]domain.CPMSetting, error) {
	if s, ok := r.settingsCache[clientID]; ok {
		return s, nil
	}
	s, err := r.clients.CPMSettings(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("load cpm settings: %w", err)
	}
	r.settingsCache[clientID] = s
	return s, nil
}
