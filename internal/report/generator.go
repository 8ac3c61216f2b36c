package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/osteele/liquid"

	"github.com/ignite/paidmedia-monitor/internal/domain"
	"github.com/ignite/paidmedia-monitor/internal/metrics"
	"github.com/ignite/paidmedia-monitor/internal/pkg/logger"
	"github.com/ignite/paidmedia-monitor/internal/repository/postgres"
	"github.com/ignite/paidmedia-monitor/internal/storage"
)

type reportStore interface {
	Create(ctx context.Context, rep *domain.Report) error
	MarkReady(ctx context.Context, id, csvKey, htmlKey string) error
	MarkFailed(ctx context.Context, id, message string) error
}

type metricsReader interface {
	Totals(ctx context.Context, f postgres.MetricFilter) (domain.MetricTotals, error)
	CampaignBreakdown(ctx context.Context, f postgres.MetricFilter) ([]postgres.CampaignRollup, error)
	RowsForPeriod(ctx context.Context, clientID string, source domain.Source, from, to time.Time) ([]domain.DailyMetric, error)
}

// Notifier announces a finished report. No-op when mail is disabled.
type Notifier interface {
	ReportReady(ctx context.Context, rep *domain.Report)
}

// Generator turns report requests into stored artifacts on a bounded
// worker pool. Requests are accepted immediately while queue capacity
// remains and rejected otherwise; generation is fire-and-forget with
// the outcome recorded on the report row.
type Generator struct {
	reports reportStore
	metrics metricsReader
	store   storage.ObjectStore
	notify  Notifier
	engine  *liquid.Engine

	jobs    chan *domain.Report
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewGenerator creates a generator with the given worker count.
func NewGenerator(reports reportStore, m metricsReader, store storage.ObjectStore, notify Notifier, workers int) *Generator {
	if workers <= 0 {
		workers = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	g := &Generator{
		reports: reports,
		metrics: m,
		store:   store,
		notify:  notify,
		engine:  newTemplateEngine(),
		jobs:    make(chan *domain.Report, 64),
		ctx:     ctx,
		cancel:  cancel,
	}
	g.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go g.worker()
	}
	return g
}

// Stop drains the pool. Queued reports still generate; new submissions
// after Stop fail the report row.
func (g *Generator) Stop() {
	g.mu.Lock()
	if !g.stopped {
		g.stopped = true
		g.cancel()
		close(g.jobs)
	}
	g.mu.Unlock()
	g.wg.Wait()
}

// Request validates the period, records the report in generating state
// and queues it. The returned report carries the resolved period.
func (g *Generator) Request(ctx context.Context, clientID string, t domain.ReportType, anchor time.Time, source domain.Source) (*domain.Report, error) {
	start, end, err := PeriodFor(t, anchor, time.Now())
	if err != nil {
		return nil, err
	}

	rep := &domain.Report{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		Type:        t,
		Source:      source,
		PeriodStart: start,
		PeriodEnd:   end,
		Status:      domain.ReportGenerating,
	}
	if err := g.reports.Create(ctx, rep); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}

	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		_ = g.reports.MarkFailed(ctx, rep.ID, "generator shutting down")
		return nil, fmt.Errorf("report generator stopped")
	}
	// Non-blocking while holding mu: a full queue must not wedge every
	// caller behind the lock until a worker drains a slot.
	select {
	case g.jobs <- rep:
	default:
		g.mu.Unlock()
		_ = g.reports.MarkFailed(ctx, rep.ID, "report queue full")
		return nil, fmt.Errorf("report queue full")
	}
	g.mu.Unlock()
	return rep, nil
}

func (g *Generator) worker() {
	defer g.wg.Done()
	for rep := range g.jobs {
		g.generate(rep)
	}
}

func (g *Generator) generate(rep *domain.Report) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := g.build(ctx, rep); err != nil {
		logger.Error("report generation failed", "report_id", rep.ID, "error", err.Error())
		if merr := g.reports.MarkFailed(ctx, rep.ID, err.Error()); merr != nil {
			logger.Error("mark report failed errored", "report_id", rep.ID, "error", merr.Error())
		}
		return
	}

	logger.Info("report ready", "report_id", rep.ID, "client_id", rep.ClientID)
	rep.Status = domain.ReportReady
	g.notify.ReportReady(ctx, rep)
}

func (g *Generator) build(ctx context.Context, rep *domain.Report) error {
	filter := postgres.MetricFilter{
		ClientID: rep.ClientID,
		Source:   rep.Source,
		From:     rep.PeriodStart,
		To:       rep.PeriodEnd,
	}

	totals, err := g.metrics.Totals(ctx, filter)
	if err != nil {
		return err
	}
	// Period ratios come from the summed counters, never from summing
	// daily ratio columns.
	d := metrics.Compute(totals.Impressions, totals.Clicks, totals.Conversions, totals.Revenue, &totals.Spend, 0)
	totals.CTR, totals.CPC, totals.CPA, totals.ROAS = d.CTR, d.CPC, d.CPA, d.ROAS

	campaigns, err := g.metrics.CampaignBreakdown(ctx, filter)
	if err != nil {
		return err
	}
	rows, err := g.metrics.RowsForPeriod(ctx, rep.ClientID, rep.Source, rep.PeriodStart, rep.PeriodEnd)
	if err != nil {
		return err
	}

	csvData, err := renderCSV(rows)
	if err != nil {
		return fmt.Errorf("render csv: %w", err)
	}
	htmlData, err := g.renderHTML(rep, totals, campaigns)
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}

	prefix := fmt.Sprintf("reports/%s/%s/", rep.ClientID, rep.ID)
	csvKey := prefix + "report.csv"
	htmlKey := prefix + "summary.html"

	if err := g.store.Put(ctx, csvKey, csvData, "text/csv"); err != nil {
		return fmt.Errorf("store csv: %w", err)
	}
	if err := g.store.Put(ctx, htmlKey, htmlData, "text/html"); err != nil {
		return fmt.Errorf("store html: %w", err)
	}

	if err := g.reports.MarkReady(ctx, rep.ID, csvKey, htmlKey); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	rep.CSVKey = csvKey
	rep.HTMLKey = htmlKey
	return nil
}

var csvHeader = []string{
	"date", "source", "campaign", "strategy", "placement", "creative",
	"impressions", "clicks", "conversions", "revenue", "ctr", "spend", "cpc", "cpa", "roas",
}

func renderCSV(rows []domain.DailyMetric) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, m := range rows {
		record := []string{
			m.Date.Format("2006-01-02"),
			string(m.Source),
			m.Key.Campaign, m.Key.Strategy, m.Key.Placement, m.Key.Creative,
			strconv.FormatInt(m.Impressions, 10),
			strconv.FormatInt(m.Clicks, 10),
			strconv.FormatInt(m.Conversions, 10),
			strconv.FormatFloat(m.Revenue, 'f', 2, 64),
			strconv.FormatFloat(m.CTR, 'f', 6, 64),
			strconv.FormatFloat(m.Spend, 'f', 2, 64),
			strconv.FormatFloat(m.CPC, 'f', 4, 64),
			strconv.FormatFloat(m.CPA, 'f', 4, 64),
			strconv.FormatFloat(m.ROAS, 'f', 4, 64),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func (g *Generator) renderHTML(rep *domain.Report, totals domain.MetricTotals, campaigns []postgres.CampaignRollup) ([]byte, error) {
	campaignRows := make([]map[string]interface{}, 0, len(campaigns))
	for _, c := range campaigns {
		campaignRows = append(campaignRows, map[string]interface{}{
			"campaign":    c.Campaign,
			"impressions": c.Impressions,
			"clicks":      c.Clicks,
			"conversions": c.Conversions,
			"revenue":     c.Revenue,
			"spend":       c.Spend,
		})
	}

	bindings := map[string]interface{}{
		"title":        fmt.Sprintf("%s paid media report", rep.Type),
		"period_start": rep.PeriodStart.Format("2006-01-02"),
		"period_end":   rep.PeriodEnd.Format("2006-01-02"),
		"source":       string(rep.Source),
		"totals": map[string]interface{}{
			"impressions": totals.Impressions,
			"clicks":      totals.Clicks,
			"conversions": totals.Conversions,
			"revenue":     totals.Revenue,
			"spend":       totals.Spend,
			"ctr":         totals.CTR,
			"cpc":         totals.CPC,
			"cpa":         totals.CPA,
			"roas":        totals.ROAS,
		},
		"campaigns": campaignRows,
	}

	out, err := g.engine.ParseAndRenderString(summaryTemplate, bindings)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}
