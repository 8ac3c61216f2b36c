package surfside

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/ignite/paidmedia-monitor/internal/domain"
	"github.com/ignite/paidmedia-monitor/internal/ingest"
)

// requiredColumns must all be present in the file header; a file missing
// any of them is rejected whole.
var requiredColumns = []string{
	"date", "campaign", "strategy", "placement", "creative",
	"impressions", "clicks", "conversions", "conversion revenue",
}

// Parse normalizes a surfside CSV payload. Returns a file-level error
// when the header is unusable, otherwise per-row errors for skipped rows.
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

		rec, reason := parseRow(clientID, row, idx)
		if reason != "" {
			rowErrs = append(rowErrs, ingest.RowError{Line: line, Reason: reason})
			continue
		}
		records = append(records, rec)
	}
	return records, rowErrs, nil
}

func parseRow(clientID string, row []string, idx map[string]int) (domain.NormalizedRecord, string) {
	date, err := ingest.ParseDate(ingest.Field(row, idx, "date"))
	if err != nil {
		return domain.NormalizedRecord{}, err.Error()
	}
	campaign := ingest.CleanString(ingest.Field(row, idx, "campaign"))
	if campaign == "" {
		return domain.NormalizedRecord{}, "missing campaign"
	}

	impressions, err := ingest.ParseCount(ingest.Field(row, idx, "impressions"))
	if err != nil {
		return domain.NormalizedRecord{}, err.Error()
	}
	clicks, err := ingest.ParseCount(ingest.Field(row, idx, "clicks"))
	if err != nil {
		return domain.NormalizedRecord{}, err.Error()
	}
	conversions, err := ingest.ParseCount(ingest.Field(row, idx, "conversions"))
	if err != nil {
		return domain.NormalizedRecord{}, err.Error()
	}
	revenue, err := ingest.ParseMoney(ingest.Field(row, idx, "conversion revenue"))
	if err != nil {
		return domain.NormalizedRecord{}, err.Error()
	}

	return domain.NormalizedRecord{
		Source:   domain.SourceSurfside,
		ClientID: clientID,
		Key: domain.CampaignKey{
			Campaign:  campaign,
			Strategy:  ingest.CleanString(ingest.Field(row, idx, "strategy")),
			Placement: ingest.CleanString(ingest.Field(row, idx, "placement")),
			Creative:  ingest.CleanString(ingest.Field(row, idx, "creative")),
		}.Normalize(),
		Date:        date,
		Impressions: impressions,
		Clicks:      clicks,
		Conversions: conversions,
		Revenue:     revenue,
	}, ""
}
