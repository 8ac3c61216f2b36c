package domain

import "time"

// RunStatus is the lifecycle state of an ingestion run. A run opens in
// StatusProcessing and transitions to exactly one terminal state.
type RunStatus string

const (
	StatusProcessing RunStatus = "processing"
	StatusSuccess    RunStatus = "success"
	StatusPartial    RunStatus = "partial"
	StatusFailed     RunStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s RunStatus) Terminal() bool { return s != StatusProcessing }

// IngestionLog is one append-only audit row per adapter run.
type IngestionLog struct {
	ID            string     `json:"id"`
	RunDate       time.Time  `json:"run_date"`
	Source        Source     `json:"source"`
	ClientID      string     `json:"client_id,omitempty"` // empty means "all"
	Status        RunStatus  `json:"status"`
	Message       string     `json:"message,omitempty"`
	RecordsLoaded int        `json:"records_loaded"`
	RecordsFailed int        `json:"records_failed"`
	FileName      string     `json:"file_name,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// StagingRow preserves the transformed input of a run before loading, for
// audit and replay. Swept after a retention window.
type StagingRow struct {
	ID       string
	RunID    string
	ClientID string
	Source   Source
	Date     time.Time
	Key      CampaignKey
	Impressions int64
	Clicks      int64
	Conversions int64
	Revenue     float64
	Raw         []byte // original record as JSON
}
