package domain

import (
	"strings"
	"time"
)

// CampaignKey identifies the campaign hierarchy a metric row belongs to.
// Strategy/Placement/Creative default to the "General" fillers when a
// source does not report that level, so the key is always fully populated.
type CampaignKey struct {
	Campaign  string
	Strategy  string
	Placement string
	Creative  string
}

// Default hierarchy fillers used when a source omits a level.
const (
	GeneralStrategy  = "General Strategy"
	GeneralPlacement = "General Placement"
	GeneralCreative  = "General Creative"
)

// Normalize fills empty hierarchy levels with the general defaults.
func (k CampaignKey) Normalize() CampaignKey {
	if strings.TrimSpace(k.Strategy) == "" {
		k.Strategy = GeneralStrategy
	}
	if strings.TrimSpace(k.Placement) == "" {
		k.Placement = GeneralPlacement
	}
	if strings.TrimSpace(k.Creative) == "" {
		k.Creative = GeneralCreative
	}
	return k
}

// NormalizedRecord is the common intermediate shape every adapter emits.
// Spend is nil for sources that report impressions but not cost; the
// reconciler imputes it from the client's CPM setting in that case.
type NormalizedRecord struct {
	Source      Source
	ClientID    string
	Key         CampaignKey
	Region      string
	Date        time.Time
	Impressions int64
	Clicks      int64
	Conversions int64
	Revenue     float64
	Spend       *float64
}

// DailyMetric is the canonical per-day fact row. The ratio columns are
// stored for query convenience but are always recomputable from the base
// counters; the reconciler rewrites them on every upsert.
type DailyMetric struct {
	ID          string
	ClientID    string
	Source      Source
	Key         CampaignKey
	Region      string
	Date        time.Time
	Impressions int64
	Clicks      int64
	Conversions int64
	Revenue     float64
	CTR         float64
	Spend       float64
	CPC         float64
	CPA         float64
	ROAS        float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MetricTotals holds aggregated counters for a period, with ratios
// computed at aggregation time rather than summed from stored columns.
type MetricTotals struct {
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`
	Revenue     float64 `json:"revenue"`
	Spend       float64 `json:"spend"`
	CTR         float64 `json:"ctr"`
	CPC         float64 `json:"cpc"`
	CPA         float64 `json:"cpa"`
	ROAS        float64 `json:"roas"`
}
