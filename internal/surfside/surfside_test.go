package surfside

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/paidmedia-monitor/internal/domain"
	"github.com/ignite/paidmedia-monitor/internal/storage"
)

const sampleCSV = `Date,Campaign,Strategy,Placement,Creative,Impressions,Clicks,Conversions,Conversion Revenue,CTR
2025-03-10,Spring Launch,Prospecting,CTV,Hero 30s,"12,500",320,14,"$420.50",2.56
03/10/2025,Spring Launch,Retargeting,Display,Banner A,3000,90,2,55.00,3.0
2025-03-10,Spring Launch,,,banner b,100,not-a-number,0,0,
`

func TestParse(t *testing.T) {
	records, rowErrs, err := Parse("c-1", []byte(sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Len(t, rowErrs, 1)

	first := records[0]
	assert.Equal(t, domain.SourceSurfside, first.Source)
	assert.Equal(t, int64(12500), first.Impressions)
	assert.Equal(t, 420.50, first.Revenue)
	assert.Nil(t, first.Spend)

	// Both date formats resolve to the same day.
	assert.Equal(t, records[0].Date, records[1].Date)

	assert.Equal(t, 3, rowErrs[0].Line)
	assert.Contains(t, rowErrs[0].Reason, "count")
}

func TestParseMissingColumns(t *testing.T) {
	_, _, err := Parse("c-1", []byte("Date,Campaign,Impressions\n2025-03-10,X,1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
	assert.Contains(t, err.Error(), "strategy")
}

func TestAdapterFindsPatternVariants(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	client := &domain.Client{ID: "c-1", SurfsidePrefix: "drops/acme/"}

	require.NoError(t, store.Put(ctx, "drops/acme/2025-03-10_surfside.csv", []byte(sampleCSV), "text/csv"))

	a := NewAdapter(store)
	records, rowErrs, err := a.Fetch(ctx, client, date)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Len(t, rowErrs, 1)
	assert.Equal(t, "drops/acme/2025-03-10_surfside.csv", a.FileName(ctx, client, date))
}

func TestAdapterMissingFile(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	a := NewAdapter(store)
	_, _, err = a.Fetch(context.Background(), &domain.Client{ID: "c-1", SurfsidePrefix: "drops/acme/"},
		time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrFileMissing)
}
