package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/paidmedia-monitor/internal/domain"
)

// MetricsRepo persists the canonical daily_metrics fact table. Rows are
// keyed by (client_id, source, campaign, strategy, placement, creative,
// date); re-ingesting a day replaces the row rather than duplicating it.
type MetricsRepo struct{ db *sql.DB }

// NewMetricsRepo creates a Postgres-backed metrics repository.
func NewMetricsRepo(db *sql.DB) *MetricsRepo { return &MetricsRepo{db: db} }

// Upsert writes one fully computed metric row, replacing any existing row
// for the same natural key. The derived ratio columns are always rewritten
// from the incoming row.
func (r *MetricsRepo) Upsert(ctx context.Context, m *domain.DailyMetric) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO daily_metrics
			(id, client_id, source, campaign, strategy, placement, creative, region, date,
			 impressions, clicks, conversions, conversion_revenue, ctr, spend, cpc, cpa, roas,
			 created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,NOW(),NOW())
		ON CONFLICT (client_id, source, campaign, strategy, placement, creative, date)
		DO UPDATE SET
			region = EXCLUDED.region,
			impressions = EXCLUDED.impressions,
			clicks = EXCLUDED.clicks,
			conversions = EXCLUDED.conversions,
			conversion_revenue = EXCLUDED.conversion_revenue,
			ctr = EXCLUDED.ctr,
			spend = EXCLUDED.spend,
			cpc = EXCLUDED.cpc,
			cpa = EXCLUDED.cpa,
			roas = EXCLUDED.roas,
			updated_at = NOW()
	`, m.ID, m.ClientID, m.Source, m.Key.Campaign, m.Key.Strategy, m.Key.Placement, m.Key.Creative,
		nullString(m.Region), m.Date,
		m.Impressions, m.Clicks, m.Conversions, m.Revenue,
		m.CTR, m.Spend, m.CPC, m.CPA, m.ROAS)
	if err != nil {
		return fmt.Errorf("upsert daily metric: %w", err)
	}
	return nil
}

// MetricFilter narrows List and Totals queries. Zero values mean
// "no constraint" for that dimension.
type MetricFilter struct {
	ClientID string
	Source   domain.Source
	Campaign string
	From     time.Time
	To       time.Time
}

func (f MetricFilter) where() (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ClientID != "" {
		add("client_id = $%d", f.ClientID)
	}
	if f.Source != "" {
		add("source = $%d", f.Source)
	}
	if f.Campaign != "" {
		add("campaign = $%d", f.Campaign)
	}
	if !f.From.IsZero() {
		add("date >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("date <= $%d", f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

const metricColumns = `id, client_id, source, campaign, strategy, placement, creative,
	COALESCE(region,''), date, impressions, clicks, conversions, conversion_revenue,
	ctr, spend, cpc, cpa, roas, created_at, updated_at`

func scanMetric(rows *sql.Rows) (domain.DailyMetric, error) {
	var m domain.DailyMetric
	err := rows.Scan(&m.ID, &m.ClientID, &m.Source,
		&m.Key.Campaign, &m.Key.Strategy, &m.Key.Placement, &m.Key.Creative,
		&m.Region, &m.Date, &m.Impressions, &m.Clicks, &m.Conversions, &m.Revenue,
		&m.CTR, &m.Spend, &m.CPC, &m.CPA, &m.ROAS, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// List returns metric rows matching the filter, newest date first, with
// offset pagination.
func (r *MetricsRepo) List(ctx context.Context, f MetricFilter, limit, offset int) ([]domain.DailyMetric, error) {
	where, args := f.where()
	args = append(args, limit, offset)
	q := fmt.Sprintf(`
		SELECT %s
		FROM daily_metrics
		%s
		ORDER BY date DESC, campaign, strategy, placement, creative
		LIMIT $%d OFFSET $%d
	`, metricColumns, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list daily metrics: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyMetric
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("scan daily metric: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Count returns the number of rows matching the filter, for pagination.
func (r *MetricsRepo) Count(ctx context.Context, f MetricFilter) (int, error) {
	where, args := f.where()
	var n int
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM daily_metrics %s`, where), args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count daily metrics: %w", err)
	}
	return n, nil
}

// Totals sums the base counters over the filter. Ratio fields are left
// zero; callers recompute them so period ratios are not sums of daily
// ratios.
func (r *MetricsRepo) Totals(ctx context.Context, f MetricFilter) (domain.MetricTotals, error) {
	where, args := f.where()
	var t domain.MetricTotals
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COALESCE(SUM(impressions),0), COALESCE(SUM(clicks),0),
			COALESCE(SUM(conversions),0), COALESCE(SUM(conversion_revenue),0), COALESCE(SUM(spend),0)
		FROM daily_metrics
		%s
	`, where), args...).Scan(&t.Impressions, &t.Clicks, &t.Conversions, &t.Revenue, &t.Spend)
	if err != nil {
		return t, fmt.Errorf("metric totals: %w", err)
	}
	return t, nil
}

// CampaignRollup is one campaign's aggregated counters within a period.
type CampaignRollup struct {
	Campaign    string
	Impressions int64
	Clicks      int64
	Conversions int64
	Revenue     float64
	Spend       float64
}

// CampaignBreakdown groups the filtered rows by campaign, highest spend
// first. Used by the report generator and the summary endpoint.
func (r *MetricsRepo) CampaignBreakdown(ctx context.Context, f MetricFilter) ([]CampaignRollup, error) {
	where, args := f.where()
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT campaign, COALESCE(SUM(impressions),0), COALESCE(SUM(clicks),0),
			COALESCE(SUM(conversions),0), COALESCE(SUM(conversion_revenue),0), COALESCE(SUM(spend),0)
		FROM daily_metrics
		%s
		GROUP BY campaign
		ORDER BY SUM(spend) DESC, campaign
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("campaign breakdown: %w", err)
	}
	defer rows.Close()

	var out []CampaignRollup
	for rows.Next() {
		var c CampaignRollup
		if err := rows.Scan(&c.Campaign, &c.Impressions, &c.Clicks, &c.Conversions, &c.Revenue, &c.Spend); err != nil {
			return nil, fmt.Errorf("scan campaign rollup: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RowsForPeriod streams every metric row for a report period ordered for
// CSV rendering: date ascending, then the campaign hierarchy.
func (r *MetricsRepo) RowsForPeriod(ctx context.Context, clientID string, source domain.Source, from, to time.Time) ([]domain.DailyMetric, error) {
	f := MetricFilter{ClientID: clientID, Source: source, From: from, To: to}
	where, args := f.where()
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM daily_metrics
		%s
		ORDER BY date, source, campaign, strategy, placement, creative
	`, metricColumns, where), args...)
	if err != nil {
		return nil, fmt.Errorf("rows for period: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyMetric
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("scan daily metric: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
