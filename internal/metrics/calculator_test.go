package metrics

import (
	"testing"
	"time"

	"github.com/ignite/paidmedia-monitor/internal/domain"
)

func TestSpend(t *testing.T) {
	tests := []struct {
		name        string
		impressions int64
		rate        float64
		want        float64
	}{
		{"basic", 10000, 17.00, 170.00},
		{"rounds to cents", 1234, 17.00, 20.98},
		{"zero impressions", 0, 17.00, 0},
		{"zero rate", 10000, 0, 0},
		{"sub-thousand", 500, 10.00, 5.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Spend(tt.impressions, tt.rate); got != tt.want {
				t.Errorf("Spend(%d, %v) = %v, want %v", tt.impressions, tt.rate, got, tt.want)
			}
		})
	}
}

func TestRatios(t *testing.T) {
	if got := CTR(1000, 25); got != 0.025 {
		t.Errorf("CTR = %v, want 0.025", got)
	}
	if got := CTR(0, 25); got != 0 {
		t.Errorf("CTR with zero impressions = %v, want 0", got)
	}
	if got := CPC(100.00, 40); got != 2.50 {
		t.Errorf("CPC = %v, want 2.5", got)
	}
	if got := CPC(100.00, 0); got != 0 {
		t.Errorf("CPC with zero clicks = %v, want 0", got)
	}
	if got := CPA(100.00, 8); got != 12.50 {
		t.Errorf("CPA = %v, want 12.5", got)
	}
	if got := ROAS(300.00, 100.00); got != 3.0 {
		t.Errorf("ROAS = %v, want 3", got)
	}
	if got := ROAS(300.00, 0); got != 0 {
		t.Errorf("ROAS with zero spend = %v, want 0", got)
	}
}

func TestComputeImputesSpendWhenAbsent(t *testing.T) {
	d := Compute(10000, 100, 10, 500.00, nil, 17.00)

	if d.Spend != 170.00 {
		t.Errorf("Spend = %v, want 170", d.Spend)
	}
	if d.CTR != 0.01 {
		t.Errorf("CTR = %v, want 0.01", d.CTR)
	}
	if d.CPC != 1.70 {
		t.Errorf("CPC = %v, want 1.7", d.CPC)
	}
	if d.CPA != 17.00 {
		t.Errorf("CPA = %v, want 17", d.CPA)
	}
	if d.ROAS != 2.9412 {
		t.Errorf("ROAS = %v, want 2.9412", d.ROAS)
	}
}

func TestComputePrefersReportedSpend(t *testing.T) {
	reported := 99.99
	d := Compute(10000, 100, 10, 500.00, &reported, 17.00)
	if d.Spend != 99.99 {
		t.Errorf("Spend = %v, want reported 99.99", d.Spend)
	}
}

func TestComputeNoRateStillDerives(t *testing.T) {
	// No CPM setting: spend stays zero, ingestion is unaffected.
	d := Compute(10000, 100, 10, 500.00, nil, 0)
	if d.Spend != 0 {
		t.Errorf("Spend = %v, want 0", d.Spend)
	}
	if d.CTR != 0.01 {
		t.Errorf("CTR = %v, want 0.01", d.CTR)
	}
	if d.ROAS != 0 {
		t.Errorf("ROAS = %v, want 0 when spend is 0", d.ROAS)
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveRate(t *testing.T) {
	settings := []domain.CPMSetting{
		{Source: domain.SourceSurfside, CPM: 15.00, EffectiveDate: day(2026, 1, 1)},
		{Source: domain.SourceSurfside, CPM: 18.00, EffectiveDate: day(2026, 3, 1)},
		{Source: domain.SourceSurfside, CPM: 20.00, EffectiveDate: day(2026, 6, 1)},
		{Source: domain.SourceVibe, CPM: 9.00, EffectiveDate: day(2026, 1, 1)},
	}

	tests := []struct {
		name   string
		source domain.Source
		date   time.Time
		want   float64
		found  bool
	}{
		{"before any setting", domain.SourceSurfside, day(2025, 12, 31), 0, false},
		{"first window", domain.SourceSurfside, day(2026, 2, 15), 15.00, true},
		{"exact effective date", domain.SourceSurfside, day(2026, 3, 1), 18.00, true},
		{"latest window", domain.SourceSurfside, day(2026, 7, 4), 20.00, true},
		{"other source isolated", domain.SourceVibe, day(2026, 7, 4), 9.00, true},
		{"source without settings", domain.SourceFacebook, day(2026, 7, 4), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := ResolveRate(settings, tt.source, tt.date)
			if got != tt.want || found != tt.found {
				t.Errorf("ResolveRate = (%v, %v), want (%v, %v)", got, found, tt.want, tt.found)
			}
		})
	}
}

func TestRateHistoryNewestFirst(t *testing.T) {
	settings := []domain.CPMSetting{
		{Source: domain.SourceSurfside, CPM: 15.00, EffectiveDate: day(2026, 1, 1)},
		{Source: domain.SourceSurfside, CPM: 20.00, EffectiveDate: day(2026, 6, 1)},
		{Source: domain.SourceVibe, CPM: 9.00, EffectiveDate: day(2026, 2, 1)},
	}

	hist := RateHistory(settings, domain.SourceSurfside)
	if len(hist) != 2 {
		t.Fatalf("len = %d, want 2", len(hist))
	}
	if hist[0].CPM != 20.00 || hist[1].CPM != 15.00 {
		t.Errorf("history not newest-first: %v", hist)
	}
}
