package vibe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/paidmedia-monitor/internal/pkg/logger"
)

// statusChecker is the slice of Client the poller needs.
type statusChecker interface {
	CheckReport(ctx context.Context, apiKey, reportID string) (StatusInfo, error)
}

// Outcome is the terminal result of polling one report. Exactly one of
// DownloadURL or Err is set.
type Outcome struct {
	ReportID    string
	DownloadURL string
	Err         error
}

type tracked struct {
	id         string
	apiKey     string
	deadline   time.Time
	nextPollAt time.Time
	ch         chan Outcome
}

// Poller drives any number of in-flight reports from a single loop. Each
// tracked report is checked no more often than the poll interval and is
// abandoned with ErrTimeout once its wall-clock budget elapses; a timed
// out report never affects the others.
type Poller struct {
	checker  statusChecker
	interval time.Duration
	maxWait  time.Duration
	now      func() time.Time

	mu      sync.Mutex
	pending []*tracked
	wake    chan struct{}
}

// NewPoller creates a poller with the given minimum check interval and
// per-report wall budget. Intervals under 30s are raised to 30s.
func NewPoller(checker statusChecker, interval, maxWait time.Duration) *Poller {
	if interval < defaultPollInterval {
		interval = defaultPollInterval
	}
	return &Poller{
		checker:  checker,
		interval: interval,
		maxWait:  maxWait,
		now:      time.Now,
		wake:     make(chan struct{}, 1),
	}
}

// Track registers a report and returns a channel that receives exactly
// one Outcome. Status checks are made with the given credentials. The
// first check happens after one poll interval; reports are never ready
// immediately after creation.
func (p *Poller) Track(reportID, apiKey string) <-chan Outcome {
	now := p.now()
	t := &tracked{
		id:         reportID,
		apiKey:     apiKey,
		deadline:   now.Add(p.maxWait),
		nextPollAt: now.Add(p.interval),
		ch:         make(chan Outcome, 1),
	}
	p.mu.Lock()
	p.pending = append(p.pending, t)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return t.ch
}

// Run polls until the context is canceled. Pending reports at cancel time
// receive the context error.
func (p *Poller) Run(ctx context.Context) {
	for {
		sleep := p.nextSleep()

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.drain(ctx.Err())
			return
		case <-p.wake:
			timer.Stop()
		case <-timer.C:
		}

		p.pollDue(ctx)
	}
}

// nextSleep returns the time until the earliest due check, capped so an
// empty poller still wakes to observe new registrations promptly.
func (p *Poller) nextSleep() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	sleep := time.Minute
	now := p.now()
	for _, t := range p.pending {
		if d := t.nextPollAt.Sub(now); d < sleep {
			sleep = d
		}
	}
	if sleep < 0 {
		sleep = 0
	}
	return sleep
}

func (p *Poller) pollDue(ctx context.Context) {
	p.mu.Lock()
	now := p.now()
	var due []*tracked
	for _, t := range p.pending {
		if !t.nextPollAt.After(now) {
			due = append(due, t)
		}
	}
	p.mu.Unlock()

	for _, t := range due {
		if !p.now().Before(t.deadline) {
			p.finish(t, Outcome{ReportID: t.id, Err: ErrTimeout})
			continue
		}

		info, err := p.checker.CheckReport(ctx, t.apiKey, t.id)
		if err != nil {
			// Transient failure: the retrying transport already tried; wait
			// another interval and check again until the deadline.
			logger.Warn("vibe status check failed", "report_id", t.id, "error", err.Error())
			p.reschedule(t)
			continue
		}

		switch info.State {
		case StateDone:
			p.finish(t, Outcome{ReportID: t.id, DownloadURL: info.DownloadURL})
		case StateFailed:
			p.finish(t, Outcome{ReportID: t.id, Err: fmt.Errorf("vibe: report failed: %s", info.ErrorMessage)})
		case StateCreated, StateProcessing:
			p.reschedule(t)
		default:
			p.finish(t, Outcome{ReportID: t.id, Err: fmt.Errorf("vibe: unknown report status %q", info.State)})
		}
	}
}

func (p *Poller) reschedule(t *tracked) {
	p.mu.Lock()
	t.nextPollAt = p.now().Add(p.interval)
	p.mu.Unlock()
}

func (p *Poller) finish(t *tracked, out Outcome) {
	p.mu.Lock()
	for i, cur := range p.pending {
		if cur == t {
			p.pending = append(p.pending[:i], p.pending[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
	t.ch <- out
}

func (p *Poller) drain(err error) {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()
	for _, t := range pending {
		t.ch <- Outcome{ReportID: t.id, Err: err}
	}
}
