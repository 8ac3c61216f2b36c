package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/paidmedia-monitor/internal/domain"
)

// ReportRepo persists report generation requests and their artifact keys.
type ReportRepo struct{ db *sql.DB }

// NewReportRepo creates a Postgres-backed report repository.
func NewReportRepo(db *sql.DB) *ReportRepo { return &ReportRepo{db: db} }

// Create records a new report in generating state.
func (r *ReportRepo) Create(ctx context.Context, rep *domain.Report) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reports
			(id, client_id, type, source, period_start, period_end, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
	`, rep.ID, rep.ClientID, rep.Type, nullString(string(rep.Source)),
		rep.PeriodStart, rep.PeriodEnd, rep.Status)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

// Get returns one report by id.
func (r *ReportRepo) Get(ctx context.Context, id string) (*domain.Report, error) {
	rep := &domain.Report{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, client_id, type, COALESCE(source,''), period_start, period_end,
			status, COALESCE(csv_key,''), COALESCE(html_key,''), COALESCE(error_message,''),
			created_at, updated_at
		FROM reports
		WHERE id = $1
	`, id).Scan(&rep.ID, &rep.ClientID, &rep.Type, &rep.Source, &rep.PeriodStart, &rep.PeriodEnd,
		&rep.Status, &rep.CSVKey, &rep.HTMLKey, &rep.ErrorMessage, &rep.CreatedAt, &rep.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return rep, nil
}

// List returns a client's reports newest first. An empty clientID lists
// reports across all clients.
func (r *ReportRepo) List(ctx context.Context, clientID string, limit, offset int) ([]domain.Report, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client_id, type, COALESCE(source,''), period_start, period_end,
			status, COALESCE(csv_key,''), COALESCE(html_key,''), COALESCE(error_message,''),
			created_at, updated_at
		FROM reports
		WHERE ($1 = '' OR client_id = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, clientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []domain.Report
	for rows.Next() {
		var rep domain.Report
		if err := rows.Scan(&rep.ID, &rep.ClientID, &rep.Type, &rep.Source, &rep.PeriodStart, &rep.PeriodEnd,
			&rep.Status, &rep.CSVKey, &rep.HTMLKey, &rep.ErrorMessage, &rep.CreatedAt, &rep.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

// Count returns the number of reports for the client filter.
func (r *ReportRepo) Count(ctx context.Context, clientID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reports WHERE ($1 = '' OR client_id = $1)
	`, clientID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return n, nil
}

// MarkReady moves a generating report to ready with its artifact keys.
// Terminal reports are never rewritten.
func (r *ReportRepo) MarkReady(ctx context.Context, id, csvKey, htmlKey string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE reports
		SET status = 'ready', csv_key = $2, html_key = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'generating'
	`, id, csvKey, htmlKey)
	if err != nil {
		return fmt.Errorf("mark report ready: %w", err)
	}
	return nil
}

// MarkFailed moves a generating report to failed with a message.
func (r *ReportRepo) MarkFailed(ctx context.Context, id, message string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE reports
		SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'generating'
	`, id, message)
	if err != nil {
		return fmt.Errorf("mark report failed: %w", err)
	}
	return nil
}
