package api

import (
	"github.com/ignite/paidmedia-monitor/internal/domain"
)

// dailyMetricView is the wire shape of one canonical metric row.
type dailyMetricView struct {
	ID          string  `json:"id"`
	ClientID    string  `json:"client_id"`
	Source      string  `json:"source"`
	Campaign    string  `json:"campaign"`
	Strategy    string  `json:"strategy"`
	Placement   string  `json:"placement"`
	Creative    string  `json:"creative"`
	Region      string  `json:"region,omitempty"`
	Date        string  `json:"date"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`
	Revenue     float64 `json:"revenue"`
	CTR         float64 `json:"ctr"`
	Spend       float64 `json:"spend"`
	CPC         float64 `json:"cpc"`
	CPA         float64 `json:"cpa"`
	ROAS        float64 `json:"roas"`
}

func newDailyMetricView(m domain.DailyMetric) dailyMetricView {
	return dailyMetricView{
		ID:          m.ID,
		ClientID:    m.ClientID,
		Source:      string(m.Source),
		Campaign:    m.Key.Campaign,
		Strategy:    m.Key.Strategy,
		Placement:   m.Key.Placement,
		Creative:    m.Key.Creative,
		Region:      m.Region,
		Date:        m.Date.Format("2006-01-02"),
		Impressions: m.Impressions,
		Clicks:      m.Clicks,
		Conversions: m.Conversions,
		Revenue:     m.Revenue,
		CTR:         m.CTR,
		Spend:       m.Spend,
		CPC:         m.CPC,
		CPA:         m.CPA,
		ROAS:        m.ROAS,
	}
}
