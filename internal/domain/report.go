package domain

import "time"

// ReportType selects the aggregation period of a generated report.
type ReportType string

const (
	ReportWeekly  ReportType = "weekly"  // Monday–Sunday
	ReportMonthly ReportType = "monthly" // full calendar month
)

// ReportStatus is the generation state machine. A report transitions
// generating → ready|failed exactly once and is immutable afterwards.
type ReportStatus string

const (
	ReportGenerating ReportStatus = "generating"
	ReportReady      ReportStatus = "ready"
	ReportFailed     ReportStatus = "failed"
)

// Report tracks one asynchronous report generation request and its
// downloadable artifacts.
type Report struct {
	ID           string       `json:"id"`
	ClientID     string       `json:"client_id"`
	Type         ReportType   `json:"type"`
	Source       Source       `json:"source,omitempty"` // empty means all sources
	PeriodStart  time.Time    `json:"period_start"`
	PeriodEnd    time.Time    `json:"period_end"`
	Status       ReportStatus `json:"status"`
	CSVKey       string       `json:"-"`
	HTMLKey      string       `json:"-"`
	ErrorMessage string       `json:"error_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
