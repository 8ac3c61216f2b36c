package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ignite/paidmedia-monitor/internal/domain"
	"github.com/ignite/paidmedia-monitor/internal/pkg/logger"
)

// clientLister enumerates the clients each scheduled source covers.
type clientLister interface {
	ListActiveWithSurfside(ctx context.Context) ([]domain.Client, error)
	ListActiveWithVibe(ctx context.Context) ([]domain.Client, error)
}

// stagingSweeper removes expired staging rows.
type stagingSweeper interface {
	SweepStaging(ctx context.Context, retention time.Duration) (int64, error)
}

// Scheduler fires the daily ingestion cycle at a fixed UTC hour: every
// scheduled source runs for every eligible client, target date yesterday.
// It also sweeps expired staging rows once per cycle.
type Scheduler struct {
	orch      *Orchestrator
	clients   clientLister
	sweeper   stagingSweeper
	hourUTC   int
	retention time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates the daily scheduler.
func NewScheduler(orch *Orchestrator, clients clientLister, sweeper stagingSweeper, hourUTC int, retention time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		orch:      orch,
		clients:   clients,
		sweeper:   sweeper,
		hourUTC:   hourUTC,
		retention: retention,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the scheduling loop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.loop()
	logger.Info("ingestion scheduler started", "hour_utc", s.hourUTC)
}

// Stop cancels the loop and waits for any in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	logger.Info("ingestion scheduler stopped")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	for {
		next := nextFireTime(time.Now().UTC(), s.hourUTC)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-s.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.RunCycle(s.ctx, next.AddDate(0, 0, -1))
	}
}

// nextFireTime returns the next occurrence of hourUTC after now.
func nextFireTime(now time.Time, hourUTC int) time.Time {
	fire := time.Date(now.Year(), now.Month(), now.Day(), hourUTC, 0, 0, 0, time.UTC)
	if !fire.After(now) {
		fire = fire.AddDate(0, 0, 1)
	}
	return fire
}

// RunCycle executes one full daily cycle for the target date. Exposed so
// an operator can replay a day from the worker binary.
func (s *Scheduler) RunCycle(ctx context.Context, date time.Time) {
	logger.Info("daily ingestion cycle starting", "date", date.Format("2006-01-02"))

	s.runSource(ctx, domain.SourceSurfside, date, s.clients.ListActiveWithSurfside)
	s.runSource(ctx, domain.SourceVibe, date, s.clients.ListActiveWithVibe)

	if n, err := s.sweeper.SweepStaging(ctx, s.retention); err != nil {
		logger.Error("staging sweep failed", "error", err.Error())
	} else if n > 0 {
		logger.Info("staging rows swept", "count", n)
	}
}

func (s *Scheduler) runSource(ctx context.Context, source domain.Source, date time.Time, list func(context.Context) ([]domain.Client, error)) {
	clients, err := list(ctx)
	if err != nil {
		logger.Error("list clients failed", "source", string(source), "error", err.Error())
		return
	}
	for i := range clients {
		client := &clients[i]
		log, err := s.orch.Run(ctx, source, client, date)
		if errors.Is(err, ErrRunInProgress) {
			logger.Warn("scheduled run skipped, already in flight",
				"source", string(source), "client_id", client.ID)
			continue
		}
		if err != nil {
			logger.Error("scheduled run failed to start",
				"source", string(source), "client_id", client.ID, "error", err.Error())
			continue
		}
		logger.Info("scheduled run finished",
			"source", string(source), "client_id", client.ID, "status", string(log.Status))
	}
}
