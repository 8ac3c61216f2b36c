package domain

import "time"

// Client is the tenant entity. Clients are soft-disabled, never deleted,
// while referenced metrics exist.
type Client struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Status         string    `json:"status"` // active | disabled
	SurfsidePrefix string    `json:"surfside_prefix,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Active reports whether the client participates in scheduled ingestion.
func (c Client) Active() bool { return c.Status == "active" }

// CPMSetting is an effective-dated cost-per-thousand-impressions rate for
// one (client, source). The rate in force for a metric dated D is the
// setting with the latest EffectiveDate <= D.
type CPMSetting struct {
	ID            string    `json:"id"`
	ClientID      string    `json:"client_id"`
	Source        Source    `json:"source"`
	CPM           float64   `json:"cpm"`
	Currency      string    `json:"currency"`
	EffectiveDate time.Time `json:"effective_date"`
}

// VibeCredentials holds a client's vibe API access. Credential lifecycle is
// managed outside this system; the ingestion core only reads them.
type VibeCredentials struct {
	ID           string
	ClientID     string
	APIKey       string
	AdvertiserID string
	Active       bool
}
