package facebook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/paidmedia-monitor/internal/config"
	"github.com/ignite/paidmedia-monitor/internal/domain"
)

func uploadCfg() config.UploadConfig {
	return config.UploadConfig{
		MaxSizeBytes:      50 * 1024 * 1024,
		AllowedExtensions: []string{".csv"},
	}
}

func TestValidateFile(t *testing.T) {
	cfg := uploadCfg()

	assert.NoError(t, ValidateFile(cfg, "march.csv", 1024))
	assert.NoError(t, ValidateFile(cfg, "MARCH.CSV", 1024))

	err := ValidateFile(cfg, "march.xlsx", 1024)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")

	err = ValidateFile(cfg, "march.csv", cfg.MaxSizeBytes+1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestParse(t *testing.T) {
	data := []byte(`Day,Campaign name,Ad Set Name,Ad Name,Impressions,Link clicks,Conversions,Revenue
2025-03-10,Spring Launch,Lookalike 1%,Feed-Hero Video 30s,"8,200",150,6,"$180.00"
2025-03-10,Spring Launch,Lookalike 1%,StandaloneAd,400,5,0,
2025-03-10,,,,"8,600",155,6,180.00
bad-date,Spring Launch,Lookalike 1%,Feed-Hero,100,1,0,0
`)

	records, rowErrs, err := Parse("c-1", data)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Len(t, rowErrs, 1)

	first := records[0]
	assert.Equal(t, domain.SourceFacebook, first.Source)
	assert.Equal(t, "Lookalike 1%", first.Key.Strategy)
	assert.Equal(t, "Feed", first.Key.Placement)
	assert.Equal(t, "Feed-Hero Video 30s", first.Key.Creative)
	assert.Equal(t, int64(8200), first.Impressions)
	assert.Nil(t, first.Spend)

	// No dash: the full ad name serves as both placement and creative.
	second := records[1]
	assert.Equal(t, "StandaloneAd", second.Key.Placement)
	assert.Equal(t, "StandaloneAd", second.Key.Creative)

	// The totals row (empty campaign) is skipped without an error; the
	// bad date is reported.
	assert.Equal(t, 5, rowErrs[0].Line)
	assert.Contains(t, rowErrs[0].Reason, "date")
}

func TestParseMissingColumns(t *testing.T) {
	_, _, err := Parse("c-1", []byte("Campaign name,Impressions\nX,1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ad name")
	assert.Contains(t, err.Error(), "day")
}
