package report

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/paidmedia-monitor/internal/domain"
	"github.com/ignite/paidmedia-monitor/internal/repository/postgres"
	"github.com/ignite/paidmedia-monitor/internal/storage"
)

type fakeReportStore struct {
	mu      sync.Mutex
	created []*domain.Report
	ready   map[string][2]string
	failed  map[string]string
	done    chan string
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{
		ready:  map[string][2]string{},
		failed: map[string]string{},
		done:   make(chan string, 8),
	}
}

func (s *fakeReportStore) Create(_ context.Context, rep *domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, rep)
	return nil
}

func (s *fakeReportStore) MarkReady(_ context.Context, id, csvKey, htmlKey string) error {
	s.mu.Lock()
	s.ready[id] = [2]string{csvKey, htmlKey}
	s.mu.Unlock()
	s.done <- id
	return nil
}

func (s *fakeReportStore) MarkFailed(_ context.Context, id, message string) error {
	s.mu.Lock()
	s.failed[id] = message
	s.mu.Unlock()
	s.done <- id
	return nil
}

type fakeMetrics struct {
	totals    domain.MetricTotals
	rollups   []postgres.CampaignRollup
	rows      []domain.DailyMetric
	totalsErr error

	block     chan struct{} // when set, Totals waits until closed
	started   chan struct{}
	startOnce sync.Once
}

func (f *fakeMetrics) Totals(context.Context, postgres.MetricFilter) (domain.MetricTotals, error) {
	if f.block != nil {
		f.startOnce.Do(func() { close(f.started) })
		<-f.block
	}
	return f.totals, f.totalsErr
}

func (f *fakeMetrics) CampaignBreakdown(context.Context, postgres.MetricFilter) ([]postgres.CampaignRollup, error) {
	return f.rollups, nil
}

func (f *fakeMetrics) RowsForPeriod(context.Context, string, domain.Source, time.Time, time.Time) ([]domain.DailyMetric, error) {
	return f.rows, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	ready []string
}

func (n *recordingNotifier) ReportReady(_ context.Context, rep *domain.Report) {
	n.mu.Lock()
	n.ready = append(n.ready, rep.ID)
	n.mu.Unlock()
}

func sampleMetrics() *fakeMetrics {
	return &fakeMetrics{
		totals: domain.MetricTotals{Impressions: 10000, Clicks: 400, Conversions: 20, Revenue: 500, Spend: 170},
		rollups: []postgres.CampaignRollup{
			{Campaign: "Spring Launch", Impressions: 10000, Clicks: 400, Conversions: 20, Revenue: 500, Spend: 170},
		},
		rows: []domain.DailyMetric{{
			ClientID: "c-1", Source: domain.SourceVibe,
			Key:  domain.CampaignKey{Campaign: "Spring Launch", Strategy: "P", Placement: "CTV", Creative: "Hero"},
			Date: time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC),
			Impressions: 10000, Clicks: 400, Conversions: 20, Revenue: 500, Spend: 170,
		}},
	}
}

func TestGeneratorRequestAndBuild(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	reports := newFakeReportStore()
	notify := &recordingNotifier{}

	g := NewGenerator(reports, sampleMetrics(), store, notify, 2)
	defer g.Stop()

	anchor := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	rep, err := g.Request(context.Background(), "c-1", domain.ReportMonthly, anchor, domain.SourceVibe)
	require.NoError(t, err)
	assert.Equal(t, domain.ReportGenerating, rep.Status)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), rep.PeriodStart)

	select {
	case <-reports.done:
	case <-time.After(5 * time.Second):
		t.Fatal("report never finished")
	}

	keys, ok := reports.ready[rep.ID]
	require.True(t, ok, "report should be ready, failures: %v", reports.failed)
	assert.Equal(t, "reports/c-1/"+rep.ID+"/report.csv", keys[0])
	assert.Equal(t, "reports/c-1/"+rep.ID+"/summary.html", keys[1])

	csvData, err := store.Get(context.Background(), keys[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[1], "Spring Launch")

	htmlData, err := store.Get(context.Background(), keys[1])
	require.NoError(t, err)
	html := string(htmlData)
	assert.Contains(t, html, "$170.00")
	assert.Contains(t, html, "4.00%") // CTR from summed counters
	assert.Contains(t, html, "Spring Launch")

	notify.mu.Lock()
	assert.Equal(t, []string{rep.ID}, notify.ready)
	notify.mu.Unlock()
}

func TestGeneratorOpenPeriodRejected(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	reports := newFakeReportStore()

	g := NewGenerator(reports, sampleMetrics(), store, &recordingNotifier{}, 1)
	defer g.Stop()

	_, err = g.Request(context.Background(), "c-1", domain.ReportMonthly, time.Now(), "")
	assert.ErrorIs(t, err, ErrPeriodOpen)
	assert.Empty(t, reports.created)
}

func TestGeneratorQueueFullFailsFast(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	reports := newFakeReportStore()
	reports.done = make(chan string, 128)

	m := sampleMetrics()
	m.block = make(chan struct{})
	m.started = make(chan struct{})

	g := NewGenerator(reports, m, store, &recordingNotifier{}, 1)
	defer g.Stop()
	defer close(m.block)

	anchor := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)

	// Occupy the only worker, then fill the queue to capacity.
	_, err = g.Request(context.Background(), "c-1", domain.ReportMonthly, anchor, "")
	require.NoError(t, err)
	<-m.started
	for i := 0; i < 64; i++ {
		_, err := g.Request(context.Background(), "c-1", domain.ReportMonthly, anchor, "")
		require.NoError(t, err)
	}

	// The next request is rejected immediately instead of blocking the
	// caller until a worker drains a slot.
	_, err = g.Request(context.Background(), "c-1", domain.ReportMonthly, anchor, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report queue full")

	rejected := reports.created[len(reports.created)-1]
	assert.Equal(t, "report queue full", reports.failed[rejected.ID])
}

func TestGeneratorMarksFailed(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	reports := newFakeReportStore()
	m := sampleMetrics()
	m.totalsErr = errors.New("db down")

	g := NewGenerator(reports, m, store, &recordingNotifier{}, 1)
	defer g.Stop()

	anchor := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	rep, err := g.Request(context.Background(), "c-1", domain.ReportMonthly, anchor, "")
	require.NoError(t, err)

	select {
	case <-reports.done:
	case <-time.After(5 * time.Second):
		t.Fatal("report never finished")
	}
	assert.Contains(t, reports.failed[rep.ID], "db down")
}
