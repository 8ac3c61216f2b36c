package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/paidmedia-monitor/internal/domain"
)

// ClientRepo reads tenant records and their externally managed
// configuration (CPM settings, vibe credentials, surfside prefixes).
type ClientRepo struct{ db *sql.DB }

// NewClientRepo creates a Postgres-backed client repository.
func NewClientRepo(db *sql.DB) *ClientRepo { return &ClientRepo{db: db} }

func (r *ClientRepo) Get(ctx context.Context, id string) (*domain.Client, error) {
	c := &domain.Client{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, status, COALESCE(surfside_prefix,''), created_at, updated_at
		FROM clients
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Status, &c.SurfsidePrefix, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

// List returns all clients, active first then by name.
func (r *ClientRepo) List(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, status, COALESCE(surfside_prefix,''), created_at, updated_at
		FROM clients
		ORDER BY status, name
	`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Status, &c.SurfsidePrefix, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListActiveWithSurfside returns active clients that have a batch drop
// prefix configured; these are the scheduled surfside targets.
func (r *ClientRepo) ListActiveWithSurfside(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, status, surfside_prefix, created_at, updated_at
		FROM clients
		WHERE status = 'active' AND surfside_prefix IS NOT NULL
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list surfside clients: %w", err)
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Status, &c.SurfsidePrefix, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListActiveWithVibe returns active clients holding active vibe
// credentials; these are the scheduled vibe targets.
func (r *ClientRepo) ListActiveWithVibe(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.status, COALESCE(c.surfside_prefix,''), c.created_at, c.updated_at
		FROM clients c
		JOIN vibe_credentials v ON v.client_id = c.id AND v.active
		WHERE c.status = 'active'
		ORDER BY c.name
	`)
	if err != nil {
		return nil, fmt.Errorf("list vibe clients: %w", err)
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Status, &c.SurfsidePrefix, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CPMSettings returns every effective-dated CPM setting for a client,
// across all sources.
func (r *ClientRepo) CPMSettings(ctx context.Context, clientID string) ([]domain.CPMSetting, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, client_id, source, cpm, COALESCE(currency,'USD'), effective_date
		FROM cpm_settings
		WHERE client_id = $1
		ORDER BY source, effective_date
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list cpm settings: %w", err)
	}
	defer rows.Close()

	var out []domain.CPMSetting
	for rows.Next() {
		var s domain.CPMSetting
		if err := rows.Scan(&s.ID, &s.ClientID, &s.Source, &s.CPM, &s.Currency, &s.EffectiveDate); err != nil {
			return nil, fmt.Errorf("scan cpm setting: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// VibeCredentials returns the client's active vibe credentials, or
// ErrNotFound when none are configured.
func (r *ClientRepo) VibeCredentials(ctx context.Context, clientID string) (*domain.VibeCredentials, error) {
	c := &domain.VibeCredentials{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, client_id, api_key, COALESCE(advertiser_id,''), active
		FROM vibe_credentials
		WHERE client_id = $1 AND active
	`, clientID).Scan(&c.ID, &c.ClientID, &c.APIKey, &c.AdvertiserID, &c.Active)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get vibe credentials: %w", err)
	}
	return c, nil
}
