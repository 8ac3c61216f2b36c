// Package vibe talks to the vibe async reporting API: create a report,
// poll it to completion, download the CSV payload. Report creation is
// governed by a local hourly quota shared across processes; the remote
// limit is never probed.
package vibe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ignite/paidmedia-monitor/internal/config"
	"github.com/ignite/paidmedia-monitor/internal/pkg/httpretry"
	"github.com/ignite/paidmedia-monitor/internal/pkg/logger"
	"github.com/ignite/paidmedia-monitor/internal/pkg/quota"
)

var reportMetrics = []string{"impressions", "clicks", "conversions", "revenue"}

var reportDimensions = []string{"date", "campaign_name", "strategy_name", "placement_name", "creative_name"}

// Client is an HTTP client for the vibe reporting API. Safe for
// concurrent use.
type Client struct {
	baseURL string
	apiKey  string // configured default; per-request keys take precedence
	http    httpretry.HTTPDoer
	quota   quota.Quota
}

// NewClient creates a vibe API client with retrying transport. The quota
// gates CreateReport only; status checks and downloads are unmetered.
func NewClient(cfg config.VibeConfig, q quota.Quota) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    httpretry.NewRetryClient(&http.Client{Timeout: cfg.Timeout()}, 3),
		quota:   q,
	}
}

// SetHTTPClient replaces the transport. Used by tests.
func (c *Client) SetHTTPClient(doer httpretry.HTTPDoer) { c.http = doer }

// CreateReport requests a new async report under the given credentials
// and returns its remote id. An empty apiKey falls back to the
// configured service key. Returns ErrRateLimited when the hourly
// creation quota is exhausted.
func (c *Client) CreateReport(ctx context.Context, apiKey string, spec ReportSpec) (string, error) {
	ok, err := c.quota.TryAcquire(ctx)
	if err != nil {
		return "", fmt.Errorf("quota check: %w", err)
	}
	if !ok {
		return "", ErrRateLimited
	}

	body, err := json.Marshal(createRequest{
		AdvertiserID: spec.AdvertiserID,
		StartDate:    spec.StartDate.Format("2006-01-02"),
		EndDate:      spec.EndDate.Format("2006-01-02"),
		Metrics:      reportMetrics,
		Dimensions:   reportDimensions,
	})
	if err != nil {
		return "", fmt.Errorf("marshal create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/reporting/v1/std/reports", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build create request: %w", err)
	}
	c.setHeaders(req, apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.apiError("create report", resp)
	}

	var out createResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	logger.Info("created vibe report", "report_id", out.ReportID, "status", out.Status)
	return out.ReportID, nil
}

// CheckReport fetches the current state of a report.
func (c *Client) CheckReport(ctx context.Context, apiKey, reportID string) (StatusInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/reporting/v1/std/reports/"+reportID, nil)
	if err != nil {
		return StatusInfo{}, fmt.Errorf("build status request: %w", err)
	}
	c.setHeaders(req, apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return StatusInfo{}, fmt.Errorf("check report %s: %w", reportID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return StatusInfo{}, c.apiError("check report", resp)
	}

	var info StatusInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return StatusInfo{}, fmt.Errorf("decode status response: %w", err)
	}
	return info, nil
}

// DownloadReport fetches the finished CSV payload from its time-boxed URL.
func (c *Client) DownloadReport(ctx context.Context, apiKey, downloadURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.keyOrDefault(apiKey))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError("download report", resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read report payload: %w", err)
	}
	logger.Info("downloaded vibe report", "bytes", len(data))
	return data, nil
}

func (c *Client) setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+c.keyOrDefault(apiKey))
	req.Header.Set("Content-Type", "application/json")
}

func (c *Client) keyOrDefault(apiKey string) string {
	if apiKey == "" {
		return c.apiKey
	}
	return apiKey
}

func (c *Client) apiError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("vibe: %s returned %d: %s", op, resp.StatusCode, string(body))
}

// defaultPollInterval floors caller-configured intervals so a
// misconfigured deployment cannot hammer the status endpoint.
const defaultPollInterval = 30 * time.Second
