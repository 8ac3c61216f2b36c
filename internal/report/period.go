// Package report generates downloadable client reports: a CSV of raw
// daily rows and an HTML summary, built over fully elapsed weekly or
// monthly periods and stored as object-store artifacts.
package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/ignite/paidmedia-monitor/internal/domain"
)

// ErrPeriodOpen means the requested period has not fully elapsed yet.
// Reports are only generated over closed periods so their numbers never
// shift after the fact.
var ErrPeriodOpen = errors.New("report: period has not fully elapsed")

// PeriodFor resolves the reporting window containing the anchor date.
// Weekly periods run Monday through Sunday; monthly periods are calendar
// months. now supplies the current time for elapsed checks.
func PeriodFor(t domain.ReportType, anchor, now time.Time) (start, end time.Time, err error) {
	anchor = midnightUTC(anchor)
	today := midnightUTC(now)

	switch t {
	case domain.ReportWeekly:
		// time.Weekday puts Sunday at 0; shift so Monday starts the week.
		offset := (int(anchor.Weekday()) + 6) % 7
		start = anchor.AddDate(0, 0, -offset)
		end = start.AddDate(0, 0, 6)
	case domain.ReportMonthly:
		start = time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, -1)
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("report: unknown type %q", t)
	}

	if !end.Before(today) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s to %s", ErrPeriodOpen,
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return start, end, nil
}

func midnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
