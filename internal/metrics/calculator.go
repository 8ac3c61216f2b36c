// Package metrics computes derived paid-media metrics: CPM-based spend
// imputation and the ratio metrics (CTR, CPC, CPA, ROAS). Everything here
// is a pure function of its inputs; ratios are never stored as independent
// truth and can always be recomputed from the base counters.
package metrics

import "math"

// Derived bundles every computed metric for one row or aggregate.
type Derived struct {
	Spend float64
	CTR   float64
	CPC   float64
	CPA   float64
	ROAS  float64
}

// Spend computes CPM-imputed spend: impressions / 1000 * rate, rounded to
// cents. Zero impressions or a zero rate yield zero spend.
func Spend(impressions int64, cpmRate float64) float64 {
	if impressions == 0 || cpmRate == 0 {
		return 0
	}
	return round2(float64(impressions) / 1000 * cpmRate)
}

// CTR computes clicks / impressions, or 0 when there are no impressions.
func CTR(impressions, clicks int64) float64 {
	if impressions == 0 {
		return 0
	}
	return round6(float64(clicks) / float64(impressions))
}

// CPC computes spend / clicks, or 0 when there are no clicks.
func CPC(spend float64, clicks int64) float64 {
	if clicks == 0 {
		return 0
	}
	return round4(spend / float64(clicks))
}

// CPA computes spend / conversions, or 0 when there are no conversions.
func CPA(spend float64, conversions int64) float64 {
	if conversions == 0 {
		return 0
	}
	return round4(spend / float64(conversions))
}

// ROAS computes revenue / spend, or 0 when spend is zero.
func ROAS(revenue, spend float64) float64 {
	if spend == 0 {
		return 0
	}
	return round4(revenue / spend)
}

// Compute derives all metrics at once for the given base counters. When
// spend is nil it is imputed from the CPM rate; a rate of 0 (no setting)
// leaves spend at zero while still computing the remaining ratios.
func Compute(impressions, clicks, conversions int64, revenue float64, spend *float64, cpmRate float64) Derived {
	s := Spend(impressions, cpmRate)
	if spend != nil {
		s = round2(*spend)
	}
	return Derived{
		Spend: s,
		CTR:   CTR(impressions, clicks),
		CPC:   CPC(s, clicks),
		CPA:   CPA(s, conversions),
		ROAS:  ROAS(revenue, s),
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
func round6(v float64) float64 { return math.Round(v*1000000) / 1000000 }
