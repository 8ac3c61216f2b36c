// Package surfside ingests the daily batch CSV a partner drops into the
// object store. One file per client per day, located by a small set of
// naming patterns under the client's configured prefix.
package surfside

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/paidmedia-monitor/internal/domain"
	"github.com/ignite/paidmedia-monitor/internal/ingest"
	"github.com/ignite/paidmedia-monitor/internal/pkg/logger"
	"github.com/ignite/paidmedia-monitor/internal/storage"
)

// ErrFileMissing is returned when no drop object exists for the target
// date. The run fails; a retry can pick the file up once it lands.
var ErrFileMissing = errors.New("surfside: no file found for date")

// Adapter reads and normalizes one client-day drop from the object store.
type Adapter struct {
	store storage.ObjectStore
}

// NewAdapter creates the surfside adapter over the given store.
func NewAdapter(store storage.ObjectStore) *Adapter {
	return &Adapter{store: store}
}

// Source identifies the feed this adapter serves.
func (a *Adapter) Source() domain.Source { return domain.SourceSurfside }

// filePatterns are the drop names seen in practice, tried in order.
func filePatterns(prefix string, date time.Time) []string {
	d := date.Format("2006-01-02")
	return []string{
		fmt.Sprintf("%ssurfside_%s.csv", prefix, d),
		fmt.Sprintf("%sSurfside_%s.csv", prefix, d),
		fmt.Sprintf("%s%s_surfside.csv", prefix, d),
	}
}

// Fetch locates the drop for the client and date, then parses it. A
// missing file is an adapter error and fails the run; malformed rows are
// skipped and counted.
func (a *Adapter) Fetch(ctx context.Context, client *domain.Client, date time.Time) ([]domain.NormalizedRecord, []ingest.RowError, error) {
	key, err := a.findFile(ctx, client.SurfsidePrefix, date)
	if err != nil {
		return nil, nil, err
	}

	data, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", key, err)
	}

	records, rowErrs, err := Parse(client.ID, data)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", key, err)
	}
	logger.Info("surfside file parsed",
		"client_id", client.ID, "key", key,
		"rows", len(records), "rejected", len(rowErrs))
	return records, rowErrs, nil
}

// FileName returns the drop object key Fetch would use, for run logging.
func (a *Adapter) FileName(ctx context.Context, client *domain.Client, date time.Time) string {
	key, err := a.findFile(ctx, client.SurfsidePrefix, date)
	if err != nil {
		return ""
	}
	return key
}

func (a *Adapter) findFile(ctx context.Context, prefix string, date time.Time) (string, error) {
	for _, key := range filePatterns(prefix, date) {
		ok, err := a.store.Exists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("check %s: %w", key, err)
		}
		if ok {
			return key, nil
		}
	}
	return "", fmt.Errorf("%w: %s (prefix %q)", ErrFileMissing, date.Format("2006-01-02"), prefix)
}
