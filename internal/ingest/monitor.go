package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/ignite/paidmedia-monitor/internal/domain"
	"github.com/ignite/paidmedia-monitor/internal/pkg/logger"
)

// stuckMarker fails abandoned processing runs.
type stuckMarker interface {
	MarkStuck(ctx context.Context, olderThan time.Duration) ([]string, error)
}

// Monitor periodically fails runs stuck in processing, recovering the
// audit log after a crash left runs open.
type Monitor struct {
	store     stuckMarker
	alerts    Alerter
	threshold time.Duration
	interval  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a stuck-run monitor with the given age threshold.
func NewMonitor(store stuckMarker, alerts Alerter, threshold time.Duration) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		store:     store,
		alerts:    alerts,
		threshold: threshold,
		interval:  10 * time.Minute,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the monitor loop.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.loop()
	logger.Info("stuck-run monitor started", "threshold", m.threshold.String())
}

// Stop cancels the loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

func (m *Monitor) loop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(m.ctx)
		}
	}
}

// Sweep runs one pass, failing abandoned runs and alerting on each.
func (m *Monitor) Sweep(ctx context.Context) {
	ids, err := m.store.MarkStuck(ctx, m.threshold)
	if err != nil {
		logger.Error("stuck-run sweep failed", "error", err.Error())
		return
	}
	for _, id := range ids {
		logger.Warn("abandoned run failed by monitor", "run_id", id)
		m.alerts.RunFailed(ctx, &domain.IngestionLog{ID: id, Status: domain.StatusFailed},
			"run exceeded processing deadline")
	}
}
