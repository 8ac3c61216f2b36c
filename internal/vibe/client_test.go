package vibe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/paidmedia-monitor/internal/config"
	"github.com/ignite/paidmedia-monitor/internal/pkg/quota"
)

func newTestClient(t *testing.T, handler http.Handler, limit int) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.VibeConfig{BaseURL: srv.URL, APIKey: "test-key", TimeoutSeconds: 5}
	c := NewClient(cfg, quota.NewMemoryQuota(limit))
	c.SetHTTPClient(srv.Client())
	return c, srv
}

func TestCreateReport(t *testing.T) {
	var gotReq createRequest
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/reporting/v1/std/reports", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(createResponse{ReportID: "rep-123", Status: "created"})
	}), 10)

	// An empty key falls back to the configured service key.
	id, err := c.CreateReport(context.Background(), "", ReportSpec{
		AdvertiserID: "adv-1",
		StartDate:    time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "rep-123", id)
	assert.Equal(t, "2025-03-10", gotReq.StartDate)
	assert.Equal(t, reportDimensions, gotReq.Dimensions)
	assert.Equal(t, reportMetrics, gotReq.Metrics)
}

func TestCreateReportQuotaExhausted(t *testing.T) {
	calls := 0
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(createResponse{ReportID: "rep-1", Status: "created"})
	}), 1)

	spec := ReportSpec{AdvertiserID: "adv-1", StartDate: time.Now(), EndDate: time.Now()}

	_, err := c.CreateReport(context.Background(), "test-key", spec)
	require.NoError(t, err)

	_, err = c.CreateReport(context.Background(), "test-key", spec)
	assert.ErrorIs(t, err, ErrRateLimited)

	// A denied creation never reaches the remote API.
	assert.Equal(t, 1, calls)
}

func TestCheckReport(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reporting/v1/std/reports/rep-9", r.URL.Path)
		json.NewEncoder(w).Encode(StatusInfo{State: StateDone, DownloadURL: "https://cdn.example/rep-9.csv"})
	}), 10)

	info, err := c.CheckReport(context.Background(), "test-key", "rep-9")
	require.NoError(t, err)
	assert.Equal(t, StateDone, info.State)
	assert.Equal(t, "https://cdn.example/rep-9.csv", info.DownloadURL)
}

func TestDownloadReport(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("date,campaign_name\n2025-03-10,Spring Launch\n"))
	}), 10)

	data, err := c.DownloadReport(context.Background(), "test-key", srv.URL+"/download/rep-9")
	require.NoError(t, err)
	assert.Contains(t, string(data), "Spring Launch")
}

func TestClientSurfacesAPIError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad advertiser"}`, http.StatusBadRequest)
	}), 10)

	_, err := c.CreateReport(context.Background(), "test-key", ReportSpec{AdvertiserID: "nope", StartDate: time.Now(), EndDate: time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestConcurrentTenantsKeepOwnKeys(t *testing.T) {
	var mu sync.Mutex
	authByAdvertiser := map[string]string{}
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		authByAdvertiser[req.AdvertiserID] = r.Header.Get("Authorization")
		mu.Unlock()
		json.NewEncoder(w).Encode(createResponse{ReportID: "rep-" + req.AdvertiserID, Status: "created"})
	}), 100)

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			adv := fmt.Sprintf("adv-%d", n)
			_, err := c.CreateReport(context.Background(), "key-"+adv, ReportSpec{
				AdvertiserID: adv,
				StartDate:    day,
				EndDate:      day,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// Every tenant's request carried that tenant's own credentials.
	require.Len(t, authByAdvertiser, 8)
	for adv, auth := range authByAdvertiser {
		assert.Equal(t, "Bearer key-"+adv, auth)
	}
}
