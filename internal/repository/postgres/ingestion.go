package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/paidmedia-monitor/internal/domain"
)

// IngestionRepo records the append-only run audit log and the staging
// rows that back each run.
type IngestionRepo struct{ db *sql.DB }

// NewIngestionRepo creates a Postgres-backed ingestion repository.
func NewIngestionRepo(db *sql.DB) *IngestionRepo { return &IngestionRepo{db: db} }

// CreateLog opens a run in processing state.
func (r *IngestionRepo) CreateLog(ctx context.Context, l *domain.IngestionLog) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ingestion_logs
			(id, run_date, source, client_id, status, message, records_loaded, records_failed, file_name, started_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, l.ID, l.RunDate, l.Source, nullString(l.ClientID), l.Status,
		nullString(l.Message), l.RecordsLoaded, l.RecordsFailed, nullString(l.FileName), l.StartedAt)
	if err != nil {
		return fmt.Errorf("create ingestion log: %w", err)
	}
	return nil
}

// FinishLog moves a run to its terminal state. Only processing runs are
// updated; finishing an already terminal run is a no-op.
func (r *IngestionRepo) FinishLog(ctx context.Context, id string, status domain.RunStatus, message string, loaded, failed int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE ingestion_logs
		SET status = $2, message = $3, records_loaded = $4, records_failed = $5, finished_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`, id, status, nullString(message), loaded, failed)
	if err != nil {
		return fmt.Errorf("finish ingestion log: %w", err)
	}
	return nil
}

// LogFilter narrows ListLogs. Zero values mean no constraint.
type LogFilter struct {
	Source   domain.Source
	ClientID string
	Status   domain.RunStatus
}

// ListLogs returns run records newest first with offset pagination.
func (r *IngestionRepo) ListLogs(ctx context.Context, f LogFilter, limit, offset int) ([]domain.IngestionLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_date, source, COALESCE(client_id,''), status, COALESCE(message,''),
			records_loaded, records_failed, COALESCE(file_name,''), started_at, finished_at
		FROM ingestion_logs
		WHERE ($1 = '' OR source = $1)
		  AND ($2 = '' OR client_id = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY started_at DESC
		LIMIT $4 OFFSET $5
	`, string(f.Source), f.ClientID, string(f.Status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list ingestion logs: %w", err)
	}
	defer rows.Close()

	var out []domain.IngestionLog
	for rows.Next() {
		var l domain.IngestionLog
		if err := rows.Scan(&l.ID, &l.RunDate, &l.Source, &l.ClientID, &l.Status, &l.Message,
			&l.RecordsLoaded, &l.RecordsFailed, &l.FileName, &l.StartedAt, &l.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan ingestion log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CountLogs returns the number of runs matching the filter.
func (r *IngestionRepo) CountLogs(ctx context.Context, f LogFilter) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM ingestion_logs
		WHERE ($1 = '' OR source = $1)
		  AND ($2 = '' OR client_id = $2)
		  AND ($3 = '' OR status = $3)
	`, string(f.Source), f.ClientID, string(f.Status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count ingestion logs: %w", err)
	}
	return n, nil
}

// GetLog returns one run record by id.
func (r *IngestionRepo) GetLog(ctx context.Context, id string) (*domain.IngestionLog, error) {
	l := &domain.IngestionLog{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, run_date, source, COALESCE(client_id,''), status, COALESCE(message,''),
			records_loaded, records_failed, COALESCE(file_name,''), started_at, finished_at
		FROM ingestion_logs
		WHERE id = $1
	`, id).Scan(&l.ID, &l.RunDate, &l.Source, &l.ClientID, &l.Status, &l.Message,
		&l.RecordsLoaded, &l.RecordsFailed, &l.FileName, &l.StartedAt, &l.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ingestion log: %w", err)
	}
	return l, nil
}

// MarkStuck fails any run that has been processing longer than the
// threshold and returns the run ids it closed. The stuck-run monitor
// alerts on the returned ids.
func (r *IngestionRepo) MarkStuck(ctx context.Context, olderThan time.Duration) ([]string, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	rows, err := r.db.QueryContext(ctx, `
		UPDATE ingestion_logs
		SET status = 'failed', message = 'run exceeded processing deadline', finished_at = NOW()
		WHERE status = 'processing' AND started_at < $1
		RETURNING id
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("mark stuck runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stuck run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertStaging writes one transformed input row for a run.
func (r *IngestionRepo) InsertStaging(ctx context.Context, s *domain.StagingRow) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO staging_media_raw
			(id, run_id, client_id, source, date, campaign, strategy, placement, creative,
			 impressions, clicks, conversions, conversion_revenue, raw, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NOW())
	`, s.ID, s.RunID, s.ClientID, s.Source, s.Date,
		s.Key.Campaign, s.Key.Strategy, s.Key.Placement, s.Key.Creative,
		s.Impressions, s.Clicks, s.Conversions, s.Revenue, s.Raw)
	if err != nil {
		return fmt.Errorf("insert staging row: %w", err)
	}
	return nil
}

// SweepStaging deletes staging rows older than the retention window and
// returns how many were removed.
func (r *IngestionRepo) SweepStaging(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	res, err := r.db.ExecContext(ctx, `DELETE FROM staging_media_raw WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep staging: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep staging rows affected: %w", err)
	}
	return n, nil
}
