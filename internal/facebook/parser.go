package facebook

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/ignite/paidmedia-monitor/internal/domain"
	"github.com/ignite/paidmedia-monitor/internal/ingest"
)

// Ads Manager exports vary; the date column is "Day" in current exports
// and "Date" in older ones, clicks come as "Link Clicks" or "Clicks".
var requiredColumns = []string{"campaign name", "ad set name", "ad name", "impressions"}

// Parse normalizes an Ads Manager CSV export. The ad set name becomes the
// strategy; the ad name supplies both placement (prefix before the first
// "-") and creative (the full name).
func Parse(clientID string, data []byte) ([]domain.NormalizedRecord, []ingest.RowError, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	idx := ingest.HeaderIndex(header)

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if _, ok := idx["day"]; !ok {
		if _, ok := idx["date"]; !ok {
			missing = append(missing, "day")
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	var (
		records []domain.NormalizedRecord
		rowErrs []ingest.RowError
	)
	line := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			rowErrs = append(rowErrs, ingest.RowError{Line: line, Reason: "malformed CSV row"})
			continue
		}

		campaign := ingest.CleanString(ingest.Field(row, idx, "campaign name"))
		if campaign == "" {
			// Ads Manager appends a totals row with no campaign; skip it
			// silently rather than reporting an error.
			continue
		}

		rec, reason := parseRow(clientID, campaign, row, idx)
		if reason != "" {
			rowErrs = append(rowErrs, ingest.RowError{Line: line, Reason: reason})
			continue
		}
		records = append(records, rec)
	}
	return records, rowErrs, nil
}

func parseRow(clientID, campaign string, row []string, idx map[string]int) (domain.NormalizedRecord, string) {
	dateStr := ingest.Field(row, idx, "day")
	if strings.TrimSpace(dateStr) == "" {
		dateStr = ingest.Field(row, idx, "date")
	}
	date, err := ingest.ParseDate(dateStr)
	if err != nil {
		return domain.NormalizedRecord{}, err.Error()
	}

	impressions, err := ingest.ParseCount(ingest.Field(row, idx, "impressions"))
	if err != nil {
		return domain.NormalizedRecord{}, err.Error()
	}

	clicksStr := ingest.Field(row, idx, "link clicks")
	if strings.TrimSpace(clicksStr) == "" {
		clicksStr = ingest.Field(row, idx, "clicks")
	}
	clicks, err := ingest.ParseCount(clicksStr)
	if err != nil {
		return domain.NormalizedRecord{}, err.Error()
	}
	conversions, err := ingest.ParseCount(ingest.Field(row, idx, "conversions"))
	if err != nil {
		return domain.NormalizedRecord{}, err.Error()
	}
	revenue, err := ingest.ParseMoney(ingest.Field(row, idx, "revenue"))
	if err != nil {
		return domain.NormalizedRecord{}, err.Error()
	}

	adName := ingest.CleanString(ingest.Field(row, idx, "ad name"))
	placement := adName
	if i := strings.Index(adName, "-"); i >= 0 {
		placement = strings.TrimSpace(adName[:i])
	}

	return domain.NormalizedRecord{
		Source:   domain.SourceFacebook,
		ClientID: clientID,
		Key: domain.CampaignKey{
			Campaign:  campaign,
			Strategy:  ingest.CleanString(ingest.Field(row, idx, "ad set name")),
			Placement: placement,
			Creative:  adName,
		}.Normalize(),
		Date:        date,
		Impressions: impressions,
		Clicks:      clicks,
		Conversions: conversions,
		Revenue:     revenue,
	}, ""
}
