package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/paidmedia-monitor/internal/config"
	"github.com/ignite/paidmedia-monitor/internal/domain"
	"github.com/ignite/paidmedia-monitor/internal/facebook"
	"github.com/ignite/paidmedia-monitor/internal/ingest"
	"github.com/ignite/paidmedia-monitor/internal/metrics"
	"github.com/ignite/paidmedia-monitor/internal/pkg/httputil"
	"github.com/ignite/paidmedia-monitor/internal/pkg/quota"
	"github.com/ignite/paidmedia-monitor/internal/report"
	"github.com/ignite/paidmedia-monitor/internal/repository/postgres"
	"github.com/ignite/paidmedia-monitor/internal/storage"
)

type clientStore interface {
	Get(ctx context.Context, id string) (*domain.Client, error)
	List(ctx context.Context) ([]domain.Client, error)
	CPMSettings(ctx context.Context, clientID string) ([]domain.CPMSetting, error)
}

type metricsStore interface {
	List(ctx context.Context, f postgres.MetricFilter, limit, offset int) ([]domain.DailyMetric, error)
	Count(ctx context.Context, f postgres.MetricFilter) (int, error)
	Totals(ctx context.Context, f postgres.MetricFilter) (domain.MetricTotals, error)
}

type runLogStore interface {
	ListLogs(ctx context.Context, f postgres.LogFilter, limit, offset int) ([]domain.IngestionLog, error)
	CountLogs(ctx context.Context, f postgres.LogFilter) (int, error)
}

type reportReadStore interface {
	Get(ctx context.Context, id string) (*domain.Report, error)
	List(ctx context.Context, clientID string, limit, offset int) ([]domain.Report, error)
	Count(ctx context.Context, clientID string) (int, error)
}

type ingestRunner interface {
	Run(ctx context.Context, source domain.Source, client *domain.Client, date time.Time) (*domain.IngestionLog, error)
	LoadUpload(ctx context.Context, source domain.Source, clientID, fileName string, records []domain.NormalizedRecord, rowErrs []ingest.RowError) (*domain.IngestionLog, error)
}

type reportRequester interface {
	Request(ctx context.Context, clientID string, t domain.ReportType, anchor time.Time, source domain.Source) (*domain.Report, error)
}

// Handlers carries the API's dependencies.
type Handlers struct {
	clients   clientStore
	metrics   metricsStore
	runs      runLogStore
	reports   reportReadStore
	runner    ingestRunner
	generator reportRequester
	artifacts storage.ObjectStore
	uploadCfg config.UploadConfig
}

// NewHandlers wires the HTTP handlers.
func NewHandlers(clients clientStore, m metricsStore, runs runLogStore, reports reportReadStore,
	runner ingestRunner, generator reportRequester, artifacts storage.ObjectStore, uploadCfg config.UploadConfig) *Handlers {
	return &Handlers{
		clients:   clients,
		metrics:   m,
		runs:      runs,
		reports:   reports,
		runner:    runner,
		generator: generator,
		artifacts: artifacts,
		uploadCfg: uploadCfg,
	}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok"})
}

type triggerRequest struct {
	Source   string `json:"source"`
	ClientID string `json:"client_id"`
	Date     string `json:"date,omitempty"`
}

// TriggerIngestion starts one run for a (source, client). Facebook has
// no pull adapter; its data arrives through the upload endpoint.
func (h *Handlers) TriggerIngestion(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	source, err := domain.ParseSource(req.Source)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if !source.Scheduled() {
		httputil.BadRequest(w, "facebook data is ingested via upload, not trigger")
		return
	}
	if req.ClientID == "" {
		httputil.BadRequest(w, "client_id is required")
		return
	}

	p := PrincipalFrom(r.Context())
	if !p.CanAccessClient(req.ClientID) {
		httputil.Error(w, http.StatusForbidden, "principal not permitted for this client")
		return
	}

	client, err := h.clients.Get(r.Context(), req.ClientID)
	if errors.Is(err, postgres.ErrNotFound) {
		httputil.NotFound(w, "client not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	date := time.Now().UTC().AddDate(0, 0, -1)
	if req.Date != "" {
		date, err = ingest.ParseDate(req.Date)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
	}

	log, err := h.runner.Run(r.Context(), source, client, date)
	if errors.Is(err, ingest.ErrRunInProgress) {
		httputil.Conflict(w, "a run is already in progress for this source and client")
		return
	}
	if errors.Is(err, quota.ErrExhausted) {
		httputil.TooManyRequests(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, log)
}

// ListIngestionLogs returns the run audit trail, newest first.
func (h *Handlers) ListIngestionLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := postgres.LogFilter{
		Source:   domain.Source(q.Get("source")),
		ClientID: q.Get("client_id"),
		Status:   domain.RunStatus(q.Get("status")),
	}

	p := PrincipalFrom(r.Context())
	if p.Role == RoleClient {
		f.ClientID = p.ClientID
	}

	page := ParsePagination(r, 50, 200)
	logs, err := h.runs.ListLogs(r.Context(), f, page.Limit, page.Offset)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	total, err := h.runs.CountLogs(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, NewPaginatedResponse(logs, page, int64(total)))
}

// UploadFacebook accepts a multipart Ads Manager export and loads it
// synchronously. The response carries accepted/rejected counts and the
// resulting run status.
func (h *Handlers) UploadFacebook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.uploadCfg.MaxSizeBytes); err != nil {
		httputil.BadRequest(w, "invalid multipart form")
		return
	}

	clientID := r.FormValue("client_id")
	if clientID == "" {
		httputil.BadRequest(w, "client_id is required")
		return
	}
	p := PrincipalFrom(r.Context())
	if !p.CanAccessClient(clientID) {
		httputil.Error(w, http.StatusForbidden, "principal not permitted for this client")
		return
	}
	if _, err := h.clients.Get(r.Context(), clientID); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			httputil.NotFound(w, "client not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "file is required")
		return
	}
	defer file.Close()

	if err := facebook.ValidateFile(h.uploadCfg, header.Filename, header.Size); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.uploadCfg.MaxSizeBytes+1))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if int64(len(data)) > h.uploadCfg.MaxSizeBytes {
		httputil.BadRequest(w, "file too large")
		return
	}

	records, rowErrs, err := facebook.Parse(clientID, data)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	log, err := h.runner.LoadUpload(r.Context(), domain.SourceFacebook, clientID, header.Filename, records, rowErrs)
	if errors.Is(err, ingest.ErrRunInProgress) {
		httputil.Conflict(w, "an upload is already in progress for this client")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, map[string]interface{}{
		"run_id":   log.ID,
		"status":   log.Status,
		"accepted": log.RecordsLoaded,
		"rejected": log.RecordsFailed,
	})
}

func (h *Handlers) metricFilter(r *http.Request) (postgres.MetricFilter, bool) {
	q := r.URL.Query()
	f := postgres.MetricFilter{
		ClientID: q.Get("client_id"),
		Source:   domain.Source(q.Get("source")),
		Campaign: q.Get("campaign"),
	}
	if from := q.Get("from"); from != "" {
		t, err := ingest.ParseDate(from)
		if err != nil {
			return f, false
		}
		f.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := ingest.ParseDate(to)
		if err != nil {
			return f, false
		}
		f.To = t
	}

	p := PrincipalFrom(r.Context())
	if p.Role == RoleClient {
		f.ClientID = p.ClientID
	}
	return f, true
}

// MetricsDaily lists canonical daily rows with filters and pagination.
func (h *Handlers) MetricsDaily(w http.ResponseWriter, r *http.Request) {
	f, ok := h.metricFilter(r)
	if !ok {
		httputil.BadRequest(w, "invalid date filter")
		return
	}

	page := ParsePagination(r, 50, 500)
	rows, err := h.metrics.List(r.Context(), f, page.Limit, page.Offset)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	total, err := h.metrics.Count(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	out := make([]dailyMetricView, 0, len(rows))
	for _, m := range rows {
		out = append(out, newDailyMetricView(m))
	}
	httputil.OK(w, NewPaginatedResponse(out, page, int64(total)))
}

// MetricsSummary returns aggregated totals with ratios recomputed from
// the summed counters.
func (h *Handlers) MetricsSummary(w http.ResponseWriter, r *http.Request) {
	f, ok := h.metricFilter(r)
	if !ok {
		httputil.BadRequest(w, "invalid date filter")
		return
	}

	totals, err := h.metrics.Totals(r.Context(), f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	d := metrics.Compute(totals.Impressions, totals.Clicks, totals.Conversions, totals.Revenue, &totals.Spend, 0)
	totals.CTR, totals.CPC, totals.CPA, totals.ROAS = d.CTR, d.CPC, d.CPA, d.ROAS

	httputil.OK(w, totals)
}

type createReportRequest struct {
	ClientID   string `json:"client_id"`
	Type       string `json:"type"`
	AnchorDate string `json:"anchor_date"`
	Source     string `json:"source,omitempty"`
}

// CreateReport validates the request and queues generation.
func (h *Handlers) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	if req.ClientID == "" {
		httputil.BadRequest(w, "client_id is required")
		return
	}
	p := PrincipalFrom(r.Context())
	if !p.CanAccessClient(req.ClientID) {
		httputil.Error(w, http.StatusForbidden, "principal not permitted for this client")
		return
	}

	rtype := domain.ReportType(req.Type)
	if rtype != domain.ReportWeekly && rtype != domain.ReportMonthly {
		httputil.BadRequest(w, "type must be weekly or monthly")
		return
	}

	anchor, err := ingest.ParseDate(req.AnchorDate)
	if err != nil {
		httputil.BadRequest(w, "invalid anchor_date")
		return
	}

	var source domain.Source
	if req.Source != "" {
		source, err = domain.ParseSource(req.Source)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
	}

	if _, err := h.clients.Get(r.Context(), req.ClientID); err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			httputil.NotFound(w, "client not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}

	rep, err := h.generator.Request(r.Context(), req.ClientID, rtype, anchor, source)
	if errors.Is(err, report.ErrPeriodOpen) {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Accepted(w, map[string]interface{}{"id": rep.ID, "status": rep.Status})
}

// ListReports returns a client's reports newest first.
func (h *Handlers) ListReports(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	p := PrincipalFrom(r.Context())
	if p.Role == RoleClient {
		clientID = p.ClientID
	}

	page := ParsePagination(r, 20, 100)
	reports, err := h.reports.List(r.Context(), clientID, page.Limit, page.Offset)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	total, err := h.reports.Count(r.Context(), clientID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, NewPaginatedResponse(reports, page, int64(total)))
}

func (h *Handlers) reportForRequest(w http.ResponseWriter, r *http.Request) *domain.Report {
	rep, err := h.reports.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, postgres.ErrNotFound) {
		httputil.NotFound(w, "report not found")
		return nil
	}
	if err != nil {
		httputil.InternalError(w, err)
		return nil
	}
	if !PrincipalFrom(r.Context()).CanAccessClient(rep.ClientID) {
		// Hide the report's existence from other tenants.
		httputil.NotFound(w, "report not found")
		return nil
	}
	return rep
}

// GetReport returns one report's status and period.
func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	if rep := h.reportForRequest(w, r); rep != nil {
		httputil.OK(w, rep)
	}
}

// DownloadReport streams one artifact while the report is ready.
func (h *Handlers) DownloadReport(w http.ResponseWriter, r *http.Request) {
	rep := h.reportForRequest(w, r)
	if rep == nil {
		return
	}
	if rep.Status != domain.ReportReady {
		httputil.Conflict(w, "report is not ready")
		return
	}

	format := r.URL.Query().Get("format")
	var key, contentType, ext string
	switch format {
	case "", "csv":
		key, contentType, ext = rep.CSVKey, "text/csv", "csv"
	case "html":
		key, contentType, ext = rep.HTMLKey, "text/html", "html"
	default:
		httputil.BadRequest(w, "format must be csv or html")
		return
	}

	data, err := h.artifacts.Get(r.Context(), key)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="report-`+rep.ID+`.`+ext+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ListClients returns the client roster. Client principals see only
// themselves.
func (h *Handlers) ListClients(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFrom(r.Context())
	if p.Role == RoleClient {
		client, err := h.clients.Get(r.Context(), p.ClientID)
		if errors.Is(err, postgres.ErrNotFound) {
			httputil.OK(w, []domain.Client{})
			return
		}
		if err != nil {
			httputil.InternalError(w, err)
			return
		}
		httputil.OK(w, []domain.Client{*client})
		return
	}

	clients, err := h.clients.List(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, clients)
}

// GetClientCPMSettings returns a client's effective-dated CPM rates.
func (h *Handlers) GetClientCPMSettings(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "id")
	if !PrincipalFrom(r.Context()).CanAccessClient(clientID) {
		httputil.Error(w, http.StatusForbidden, "principal not permitted for this client")
		return
	}

	settings, err := h.clients.CPMSettings(r.Context(), clientID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, settings)
}
