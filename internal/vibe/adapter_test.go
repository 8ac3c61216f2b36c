package vibe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/paidmedia-monitor/internal/domain"
)

func TestParsePayload(t *testing.T) {
	payload := []byte(`date,campaign_name,strategy_name,placement_name,creative_name,impressions,clicks,conversions,revenue
2025-03-10,Spring Launch,Prospecting,CTV,Hero 30s,"1,234",56,3,"$61.70"
2025-03-10,Spring Launch,,,,500,10,0,
not-a-date,Spring Launch,Prospecting,CTV,Hero 30s,100,1,0,0
2025-03-10,,Prospecting,CTV,Hero 30s,100,1,0,0
`)

	records, rowErrs := parsePayload("c-1", payload)
	require.Len(t, records, 2)
	require.Len(t, rowErrs, 2)

	first := records[0]
	assert.Equal(t, domain.SourceVibe, first.Source)
	assert.Equal(t, "c-1", first.ClientID)
	assert.Equal(t, int64(1234), first.Impressions)
	assert.Equal(t, 61.70, first.Revenue)
	assert.Nil(t, first.Spend)

	// Empty hierarchy levels pick up the general fillers.
	second := records[1]
	assert.Equal(t, domain.GeneralStrategy, second.Key.Strategy)
	assert.Equal(t, domain.GeneralPlacement, second.Key.Placement)
	assert.Equal(t, domain.GeneralCreative, second.Key.Creative)

	assert.Contains(t, rowErrs[0].Reason, "date")
	assert.Equal(t, "missing campaign_name", rowErrs[1].Reason)
}

func TestParsePayloadEmpty(t *testing.T) {
	records, rowErrs := parsePayload("c-1", nil)
	assert.Empty(t, records)
	require.Len(t, rowErrs, 1)
}
