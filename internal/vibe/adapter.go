package vibe

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/ignite/paidmedia-monitor/internal/domain"
	"github.com/ignite/paidmedia-monitor/internal/ingest"
	"github.com/ignite/paidmedia-monitor/internal/pkg/logger"
)

// CredentialSource looks up a client's vibe API credentials.
type CredentialSource interface {
	VibeCredentials(ctx context.Context, clientID string) (*domain.VibeCredentials, error)
}

// Adapter is the vibe source adapter: create a report for the target day,
// wait for it through the shared poller, download and normalize the CSV.
type Adapter struct {
	client *Client
	poller *Poller
	creds  CredentialSource
}

// NewAdapter wires the vibe adapter. The poller must already be running.
func NewAdapter(client *Client, poller *Poller, creds CredentialSource) *Adapter {
	return &Adapter{client: client, poller: poller, creds: creds}
}

// Source identifies the feed this adapter serves.
func (a *Adapter) Source() domain.Source { return domain.SourceVibe }

// Fetch runs the full async workflow for one client and day. Creation
// quota exhaustion surfaces as ErrRateLimited and fails the run; it is
// never silently deferred.
func (a *Adapter) Fetch(ctx context.Context, client *domain.Client, date time.Time) ([]domain.NormalizedRecord, []ingest.RowError, error) {
	cred, err := a.creds.VibeCredentials(ctx, client.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("vibe credentials for client %s: %w", client.ID, err)
	}

	reportID, err := a.client.CreateReport(ctx, cred.APIKey, ReportSpec{
		AdvertiserID: cred.AdvertiserID,
		StartDate:    date,
		EndDate:      date,
	})
	if err != nil {
		return nil, nil, err
	}

	var out Outcome
	select {
	case out = <-a.poller.Track(reportID, cred.APIKey):
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	if out.Err != nil {
		return nil, nil, out.Err
	}

	payload, err := a.client.DownloadReport(ctx, cred.APIKey, out.DownloadURL)
	if err != nil {
		return nil, nil, err
	}

	records, rowErrs := parsePayload(client.ID, payload)
	logger.Info("vibe report parsed",
		"client_id", client.ID, "report_id", reportID,
		"rows", len(records), "rejected", len(rowErrs))
	return records, rowErrs, nil
}

// parsePayload normalizes the downloaded report CSV. Headers are the
// lower-case dimension and metric names from the report request.
func parsePayload(clientID string, payload []byte) ([]domain.NormalizedRecord, []ingest.RowError) {
	r := csv.NewReader(bytes.NewReader(payload))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, []ingest.RowError{{Line: 1, Reason: "empty or unreadable payload"}}
	}
	idx := ingest.HeaderIndex(header)

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

		rec, rerr := normalizeRow(clientID, row, idx)
		if rerr != "" {
			rowErrs = append(rowErrs, ingest.RowError{Line: line, Reason: rerr})
			continue
		}
		records = append(records, rec)
	}
	return records, rowErrs
}

func normalizeRow(clientID string, row []string, idx map[string]int) (domain.NormalizedRecord, string) {
	date, err := ingest.ParseDate(ingest.Field(row, idx, "date"))
	if err != nil {
		return domain.NormalizedRecord{}, err.Error()
	}
	campaign := ingest.CleanString(ingest.Field(row, idx, "campaign_name"))
	if campaign == "" {
		return domain.NormalizedRecord{}, "missing campaign_name"
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
	revenue, err := ingest.ParseMoney(ingest.Field(row, idx, "revenue"))
	if err != nil {
		return domain.NormalizedRecord{}, err.Error()
	}

	return domain.NormalizedRecord{
		Source:   domain.SourceVibe,
		ClientID: clientID,
		Key: domain.CampaignKey{
			Campaign:  campaign,
			Strategy:  ingest.CleanString(ingest.Field(row, idx, "strategy_name")),
			Placement: ingest.CleanString(ingest.Field(row, idx, "placement_name")),
			Creative:  ingest.CleanString(ingest.Field(row, idx, "creative_name")),
		}.Normalize(),
		Date:        date,
		Impressions: impressions,
		Clicks:      clicks,
		Conversions: conversions,
		Revenue:     revenue,
	}, ""
}
