package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seraphhq/seraph/pkg/breaker"
	"github.com/seraphhq/seraph/pkg/config"
	"github.com/seraphhq/seraph/pkg/dedup"
	"github.com/seraphhq/seraph/pkg/investigation"
	"github.com/seraphhq/seraph/pkg/priority"
	"github.com/seraphhq/seraph/pkg/reasoning"
)

// gatedClient blocks every Generate call until release is closed, then
// always reports FINISH — used to hold investigations open in REASONING
// so tests can observe the Scheduler's concurrency bound mid-flight.
type gatedClient struct {
	release chan struct{}
}

func newGatedClient() *gatedClient { return &gatedClient{release: make(chan struct{})} }

func (g *gatedClient) Generate(ctx context.Context, _ []reasoning.Message, _ []reasoning.ToolDefinition) (*reasoning.Response, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &reasoning.Response{ToolCalls: []reasoning.ToolCall{{Name: "FINISH"}}}, nil
}

func testBreaker() *breaker.Breaker {
	return breaker.New(breaker.Settings{
		Name:             "test",
		FailureThreshold: 1000,
		RecoveryTimeout:  time.Second,
		SuccessThreshold: 1,
		MonitoringPeriod: time.Minute,
	})
}

// testCalculator weights classification entirely on keyword content (zero
// weight for service/time/history) so a test's expected priority class is
// deterministic regardless of wall-clock time or business-hours windows.
func testCalculator(t *testing.T, hist *History) *priority.Calculator {
	t.Helper()
	cfg := config.Defaults().PriorityQueue
	cfg.PriorityWeights = config.PriorityWeights{Keywords: 1.0}
	cfg.CriticalKeywords = []string{"outage", "panic"}
	cfg.HighPriorityKeywords = []string{"latency", "degraded"}
	calc, err := priority.NewCalculator(cfg, hist.Frequency)
	require.NoError(t, err)
	return calc
}

func newTestScheduler(t *testing.T, cfg Config, client reasoning.Client) (*Scheduler, context.CancelFunc) {
	t.Helper()
	hist := NewHistory(time.Hour)
	calc := testCalculator(t, hist)
	dd := dedup.New(time.Minute, 0)
	worker := &investigation.Worker{Reasoning: client, Breaker: testBreaker()}

	s := New(cfg, calc, dd, hist, worker, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	return s, cancel
}

func waitForSnapshot(t *testing.T, s *Scheduler, timeout time.Duration, pred func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(timeout)
	var last Snapshot
	for time.Now().Before(deadline) {
		last = s.Snapshot()
		if pred(last) {
			return last
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met before timeout; last snapshot: %+v", last)
	return last
}

func TestScheduler_RespectsMaxConcurrentBound(t *testing.T) {
	client := newGatedClient()
	s, cancel := newTestScheduler(t, Config{MaxConcurrent: 2, MaxQueueSize: 10}, client)
	defer cancel()

	words := []string{"alpha", "bravo", "charlie", "delta", "echo"}
	for i, word := range words {
		res := s.Dispatch(context.Background(), "checkout-api: error spike variant "+word, "error rate above threshold", priority.Metadata{Service: "checkout-api", Severity: "critical"})
		require.True(t, res.Accepted, "dispatch %d should be accepted", i)
	}

	snap := waitForSnapshot(t, s, time.Second, func(sn Snapshot) bool { return sn.Running == 2 })
	assert.Equal(t, 2, snap.Running)
	assert.Equal(t, 3, snap.QueueSize)

	close(client.release)

	waitForSnapshot(t, s, time.Second, func(sn Snapshot) bool { return sn.Running == 0 && sn.QueueSize == 0 })
}

func TestScheduler_RejectsWhenQueueFull(t *testing.T) {
	client := newGatedClient()
	s, cancel := newTestScheduler(t, Config{MaxConcurrent: 1, MaxQueueSize: 2}, client)
	defer cancel()

	accept := func(log string) DispatchResult {
		return s.Dispatch(context.Background(), log, "error rate above threshold", priority.Metadata{Service: "checkout-api", Severity: "warning"})
	}

	r1 := accept("checkout-api: medium issue one")
	require.True(t, r1.Accepted)
	waitForSnapshot(t, s, time.Second, func(sn Snapshot) bool { return sn.Running == 1 })

	r2 := accept("checkout-api: medium issue two")
	require.True(t, r2.Accepted)
	r3 := accept("checkout-api: medium issue three")
	require.True(t, r3.Accepted)

	r4 := accept("checkout-api: medium issue four, queue should be full now")
	assert.False(t, r4.Accepted)
	assert.Equal(t, "queueFull", r4.Reason)

	close(client.release)
}

func TestScheduler_RejectsDuplicateWithinDedupWindow(t *testing.T) {
	client := newGatedClient()
	s, cancel := newTestScheduler(t, Config{MaxConcurrent: 1, MaxQueueSize: 10}, client)
	defer cancel()
	defer close(client.release)

	meta := priority.Metadata{Service: "checkout-api", Severity: "warning"}
	r1 := s.Dispatch(context.Background(), "checkout-api: duplicate log line", "reason", meta)
	require.True(t, r1.Accepted)

	r2 := s.Dispatch(context.Background(), "checkout-api: duplicate log line", "reason", meta)
	assert.False(t, r2.Accepted)
	assert.Equal(t, "duplicate", r2.Reason)
}

func TestScheduler_PreemptsLowerPriorityRunningInvestigation(t *testing.T) {
	client := newGatedClient()
	s, cancel := newTestScheduler(t, Config{
		MaxConcurrent:       1,
		MaxQueueSize:        10,
		PreemptionEnabled:   true,
		PreemptionThreshold: 0.3,
		MaxPreemptions:      2,
	}, client)
	defer cancel()
	defer close(client.release)

	low := s.Dispatch(context.Background(), "checkout-api: elevated response times noted", "response time above baseline",
		priority.Metadata{Service: "checkout-api", Severity: "warning", Source: "synthetic"})
	require.True(t, low.Accepted)
	waitForSnapshot(t, s, time.Second, func(sn Snapshot) bool { return sn.Running == 1 })

	critical := s.Dispatch(context.Background(), "checkout-api: total outage, panic: nil pointer dereference", "critical service outage",
		priority.Metadata{Service: "checkout-api", Severity: "critical"})
	require.True(t, critical.Accepted)

	// The medium investigation should be preempted (cancelled) and
	// re-enqueued; once its goroutine reports PREEMPTED, the critical
	// alert takes the freed slot.
	waitForSnapshot(t, s, 2*time.Second, func(sn Snapshot) bool { return sn.QueueSize >= 1 })
}

func TestScheduler_EntersAndExitsBurstMode(t *testing.T) {
	client := newGatedClient()
	s, cancel := newTestScheduler(t, Config{
		MaxConcurrent:    1,
		MaxQueueSize:     10,
		BurstModeEnabled: true,
		BurstConcurrent:  3,
		BurstMaxDuration: time.Minute,
	}, client)
	defer cancel()
	defer close(client.release)

	regions := []string{"us-east", "eu-west", "ap-south", "jp-north"}
	for _, region := range regions {
		res := s.Dispatch(context.Background(), "checkout-api: total outage in region "+region+", panic: nil pointer dereference", "critical service outage",
			priority.Metadata{Service: "checkout-api", Severity: "critical"})
		require.True(t, res.Accepted)
	}

	snap := waitForSnapshot(t, s, time.Second, func(sn Snapshot) bool { return sn.BurstActive })
	assert.True(t, snap.BurstActive)
	assert.LessOrEqual(t, snap.Running, 3)
}

func TestScheduler_ShutdownDrainsActiveInvestigationsWithinGrace(t *testing.T) {
	client := newGatedClient()
	s, cancel := newTestScheduler(t, Config{MaxConcurrent: 2, MaxQueueSize: 10, ShutdownGrace: 200 * time.Millisecond}, client)
	defer cancel()

	s.Dispatch(context.Background(), "checkout-api: error spike", "reason", priority.Metadata{Service: "checkout-api", Severity: "warning"})
	waitForSnapshot(t, s, time.Second, func(sn Snapshot) bool { return sn.Running == 1 })

	// Never releases the gate: Shutdown must cancel the still-running
	// investigation once its grace period elapses, rather than hang.
	start := time.Now()
	s.Shutdown(150 * time.Millisecond)
	assert.Less(t, time.Since(start), 2*time.Second)

	rejected := s.Dispatch(context.Background(), "checkout-api: after shutdown", "reason", priority.Metadata{Service: "checkout-api"})
	assert.False(t, rejected.Accepted)
	assert.Equal(t, "shuttingDown", rejected.Reason)
}
