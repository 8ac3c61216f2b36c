package metrics

import (
	"sort"
	"time"

	"github.com/ignite/paidmedia-monitor/internal/domain"
)

// ResolveRate returns the CPM rate in force for the given source and date:
// the setting with the latest effective date on or before the metric date.
// Settings for other sources are ignored. Returns (0, false) when no
// setting applies — spend imputation is best-effort and the caller ingests
// the record regardless.
func ResolveRate(settings []domain.CPMSetting, source domain.Source, date time.Time) (float64, bool) {
	day := date.Truncate(24 * time.Hour)

	var best *domain.CPMSetting
	for i := range settings {
		s := &settings[i]
		if s.Source != source {
			continue
		}
		eff := s.EffectiveDate.Truncate(24 * time.Hour)
		if eff.After(day) {
			continue
		}
		if best == nil || eff.After(best.EffectiveDate.Truncate(24*time.Hour)) {
			best = s
		}
	}
	if best == nil {
		return 0, false
	}
	return best.CPM, true
}

// RateHistory returns the settings for one source ordered by effective
// date, newest first. Used by the read-only settings view.
func RateHistory(settings []domain.CPMSetting, source domain.Source) []domain.CPMSetting {
	var out []domain.CPMSetting
	for _, s := range settings {
		if s.Source == source {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EffectiveDate.After(out[j].EffectiveDate)
	})
	return out
}
