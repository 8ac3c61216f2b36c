package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/paidmedia-monitor/internal/domain"
	"github.com/ignite/paidmedia-monitor/internal/repository/postgres"
)

type fakeClients struct {
	clients  map[string]*domain.Client
	settings map[string][]domain.CPMSetting
	getCalls int
}

func (f *fakeClients) Get(_ context.Context, id string) (*domain.Client, error) {
	f.getCalls++
	c, ok := f.clients[id]
	if !ok {
		return nil, postgres.ErrNotFound
	}
	return c, nil
}

func (f *fakeClients) CPMSettings(_ context.Context, clientID string) ([]domain.CPMSetting, error) {
	return f.settings[clientID], nil
}

type fakeWriter struct {
	rows []*domain.DailyMetric
}

func (f *fakeWriter) Upsert(_ context.Context, m *domain.DailyMetric) error {
	f.rows = append(f.rows, m)
	return nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func record(clientID string) domain.NormalizedRecord {
	return domain.NormalizedRecord{
		Source:      domain.SourceSurfside,
		ClientID:    clientID,
		Key:         domain.CampaignKey{Campaign: "Spring Launch"}.Normalize(),
		Date:        day(2025, 3, 10),
		Impressions: 1234,
		Clicks:      56,
		Conversions: 3,
		Revenue:     61.70,
	}
}

func TestUpsertImputesSpendFromCPM(t *testing.T) {
	clients := &fakeClients{
		clients: map[string]*domain.Client{"c-1": {ID: "c-1", Status: "active"}},
		settings: map[string][]domain.CPMSetting{
			"c-1": {
				{ClientID: "c-1", Source: domain.SourceSurfside, CPM: 17.0, EffectiveDate: day(2025, 1, 1)},
				{ClientID: "c-1", Source: domain.SourceSurfside, CPM: 20.0, EffectiveDate: day(2025, 4, 1)},
			},
		},
	}
	writer := &fakeWriter{}
	r := New(clients, writer, 0)

	res, err := r.Upsert(context.Background(), record("c-1"))
	require.NoError(t, err)
	assert.True(t, res.Applied)

	require.Len(t, writer.rows, 1)
	m := writer.rows[0]
	// 1234/1000 * 17 = 20.978 -> 20.98; the April rate is not yet in force.
	assert.Equal(t, 20.98, m.Spend)
	assert.Equal(t, 0.045381, m.CTR)
	assert.Equal(t, 0.3746, m.CPC)
	assert.Equal(t, 2.9409, m.ROAS)
}

func TestUpsertNoSettingNoSpend(t *testing.T) {
	clients := &fakeClients{clients: map[string]*domain.Client{"c-1": {ID: "c-1"}}}
	writer := &fakeWriter{}
	r := New(clients, writer, 0)

	res, err := r.Upsert(context.Background(), record("c-1"))
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Zero(t, writer.rows[0].Spend)
	assert.Zero(t, writer.rows[0].ROAS)
	// CTR derives from counters even with no spend.
	assert.Equal(t, 0.045381, writer.rows[0].CTR)
}

func TestUpsertDefaultRateFallback(t *testing.T) {
	clients := &fakeClients{clients: map[string]*domain.Client{"c-1": {ID: "c-1"}}}
	writer := &fakeWriter{}
	r := New(clients, writer, 17.0)

	_, err := r.Upsert(context.Background(), record("c-1"))
	require.NoError(t, err)
	assert.Equal(t, 20.98, writer.rows[0].Spend)
}

func TestUpsertReportedSpendWins(t *testing.T) {
	clients := &fakeClients{
		clients: map[string]*domain.Client{"c-1": {ID: "c-1"}},
		settings: map[string][]domain.CPMSetting{
			"c-1": {{ClientID: "c-1", Source: domain.SourceSurfside, CPM: 17.0, EffectiveDate: day(2025, 1, 1)}},
		},
	}
	writer := &fakeWriter{}
	r := New(clients, writer, 0)

	rec := record("c-1")
	spend := 99.99
	rec.Spend = &spend

	_, err := r.Upsert(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, 99.99, writer.rows[0].Spend)
}

func TestUpsertRejections(t *testing.T) {
	clients := &fakeClients{clients: map[string]*domain.Client{"c-1": {ID: "c-1"}}}
	writer := &fakeWriter{}
	r := New(clients, writer, 0)
	ctx := context.Background()

	res, err := r.Upsert(ctx, domain.NormalizedRecord{})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, "missing client", res.Reason)

	rec := record("c-1")
	rec.Date = time.Time{}
	res, err = r.Upsert(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, "missing date", res.Reason)

	res, err = r.Upsert(ctx, record("ghost"))
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Contains(t, res.Reason, "unknown client")

	assert.Empty(t, writer.rows)
}

func TestClientLookupCached(t *testing.T) {
	clients := &fakeClients{clients: map[string]*domain.Client{"c-1": {ID: "c-1"}}}
	writer := &fakeWriter{}
	r := New(clients, writer, 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := r.Upsert(ctx, record("c-1"))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, clients.getCalls)
}
