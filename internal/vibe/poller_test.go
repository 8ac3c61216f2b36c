package vibe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedChecker returns a fixed sequence of statuses per report id.
type scriptedChecker struct {
	script map[string][]StatusInfo
	calls  map[string]int
}

func newScriptedChecker() *scriptedChecker {
	return &scriptedChecker{script: map[string][]StatusInfo{}, calls: map[string]int{}}
}

func (c *scriptedChecker) CheckReport(_ context.Context, _ string, id string) (StatusInfo, error) {
	seq := c.script[id]
	i := c.calls[id]
	c.calls[id]++
	if i >= len(seq) {
		i = len(seq) - 1
	}
	return seq[i], nil
}

// advance moves the poller's clock and runs one poll pass.
func advance(p *Poller, clock *time.Time, d time.Duration) {
	*clock = clock.Add(d)
	p.pollDue(context.Background())
}

func newTestPoller(checker statusChecker, clock *time.Time) *Poller {
	p := NewPoller(checker, 30*time.Second, 600*time.Second)
	p.now = func() time.Time { return *clock }
	return p
}

func TestPollerProcessingThenDone(t *testing.T) {
	clock := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	checker := newScriptedChecker()
	checker.script["rep-1"] = []StatusInfo{
		{State: StateProcessing},
		{State: StateProcessing},
		{State: StateProcessing},
		{State: StateProcessing},
		{State: StateProcessing},
		{State: StateDone, DownloadURL: "https://cdn.example/rep-1.csv"},
	}

	p := newTestPoller(checker, &clock)
	ch := p.Track("rep-1", "test-key")

	for i := 0; i < 6; i++ {
		advance(p, &clock, 30*time.Second)
	}

	select {
	case out := <-ch:
		require.NoError(t, out.Err)
		assert.Equal(t, "https://cdn.example/rep-1.csv", out.DownloadURL)
	default:
		t.Fatal("expected outcome after sixth check")
	}
	assert.Equal(t, 6, checker.calls["rep-1"])
}

func TestPollerRespectsMinimumInterval(t *testing.T) {
	clock := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	checker := newScriptedChecker()
	checker.script["rep-1"] = []StatusInfo{{State: StateProcessing}}

	p := newTestPoller(checker, &clock)
	p.Track("rep-1", "test-key")

	// Repeated passes inside one interval trigger at most one check.
	for i := 0; i < 10; i++ {
		advance(p, &clock, time.Second)
	}
	assert.Equal(t, 0, checker.calls["rep-1"])

	advance(p, &clock, 30*time.Second)
	assert.Equal(t, 1, checker.calls["rep-1"])
}

func TestPollerTimeout(t *testing.T) {
	clock := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	checker := newScriptedChecker()
	checker.script["slow"] = []StatusInfo{{State: StateProcessing}}

	p := newTestPoller(checker, &clock)
	ch := p.Track("slow", "test-key")

	for i := 0; i < 21; i++ {
		advance(p, &clock, 30*time.Second)
	}

	select {
	case out := <-ch:
		assert.ErrorIs(t, out.Err, ErrTimeout)
	default:
		t.Fatal("expected timeout outcome")
	}
}

func TestPollerTimeoutIsolation(t *testing.T) {
	clock := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	checker := newScriptedChecker()
	checker.script["slow"] = []StatusInfo{{State: StateProcessing}}
	checker.script["ok"] = []StatusInfo{
		{State: StateProcessing},
		{State: StateProcessing},
		{State: StateDone, DownloadURL: "https://cdn.example/ok.csv"},
	}

	p := newTestPoller(checker, &clock)
	slowCh := p.Track("slow", "test-key")
	okCh := p.Track("ok", "test-key")

	for i := 0; i < 21; i++ {
		advance(p, &clock, 30*time.Second)
	}

	select {
	case out := <-slowCh:
		assert.ErrorIs(t, out.Err, ErrTimeout)
	default:
		t.Fatal("expected slow to time out")
	}
	select {
	case out := <-okCh:
		require.NoError(t, out.Err)
		assert.Equal(t, "https://cdn.example/ok.csv", out.DownloadURL)
	default:
		t.Fatal("expected ok to complete despite slow timing out")
	}
}

func TestPollerReportFailed(t *testing.T) {
	clock := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	checker := newScriptedChecker()
	checker.script["bad"] = []StatusInfo{{State: StateFailed, ErrorMessage: "advertiser suspended"}}

	p := newTestPoller(checker, &clock)
	ch := p.Track("bad", "test-key")
	advance(p, &clock, 30*time.Second)

	out := <-ch
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "advertiser suspended")
}
