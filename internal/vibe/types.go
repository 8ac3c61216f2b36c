package vibe

import (
	"errors"
	"fmt"
	"time"

	"github.com/ignite/paidmedia-monitor/internal/pkg/quota"
)

// Sentinel errors surfaced to the orchestrator. ErrRateLimited means the
// local creation quota denied the request; the run fails visibly rather
// than queueing. ErrTimeout means a report exceeded its polling budget.
var (
	ErrRateLimited = fmt.Errorf("vibe: hourly report creation quota exhausted: %w", quota.ErrExhausted)
	ErrTimeout     = errors.New("vibe: report polling deadline exceeded")
)

// ReportSpec is a report creation request for one advertiser and date
// range. The metric and dimension sets are fixed by the ingestion schema.
type ReportSpec struct {
	AdvertiserID string
	StartDate    time.Time
	EndDate      time.Time
}

// ReportState is the remote lifecycle of an async report.
type ReportState string

const (
	StateCreated    ReportState = "created"
	StateProcessing ReportState = "processing"
	StateDone       ReportState = "done"
	StateFailed     ReportState = "failed"
)

// StatusInfo is one status check result. DownloadURL is set only when the
// state is done; the URL is time-boxed and should be fetched promptly.
type StatusInfo struct {
	State        ReportState `json:"status"`
	DownloadURL  string      `json:"download_url,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

type createRequest struct {
	AdvertiserID string   `json:"advertiser_id"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	Metrics      []string `json:"metrics"`
	Dimensions   []string `json:"dimensions"`
}

type createResponse struct {
	ReportID string `json:"report_id"`
	Status   string `json:"status"`
}
