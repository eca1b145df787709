// Package scheduler implements Seraph's Scheduler (C6): the single-owner
// task that holds the PriorityQueue, the active-investigation set, and
// burst/preemption state, per spec.md §4.6 and the concurrency model of
// §5 and §9 ("Centralise in a single-owner task and mutate only via a
// command channel; readers obtain snapshots").
//
// Grounded on the teacher's pkg/queue.WorkerPool (start/stop, per-session
// cancel-function registry, graceful drain-then-cancel shutdown),
// generalized from a Postgres-polled worker pool to an in-memory
// command-channel owner goroutine driving pkg/priority's heap directly —
// spec.md's Non-goals exclude durable/cross-process queueing.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/seraphhq/seraph/pkg/dedup"
	"github.com/seraphhq/seraph/pkg/investigation"
	"github.com/seraphhq/seraph/pkg/priority"
	"github.com/seraphhq/seraph/pkg/reasoning"
)

// Alerter is the subset of the Alerter (C9) the Scheduler depends on,
// kept local so this package doesn't import pkg/alerter directly.
type Alerter interface {
	Fire(ctx context.Context, alert *priority.Alert) error
	Enrich(ctx context.Context, incidentID string, report *investigation.Report) error
}

// Config parameters the Scheduler's concurrency, burst and preemption
// behavior (spec.md §4.6; defaults mirror the ones named in the spec).
type Config struct {
	MaxConcurrent       int
	MaxQueueSize        int
	PreemptionEnabled   bool
	PreemptionThreshold float64
	MaxPreemptions      int
	BurstModeEnabled    bool
	BurstConcurrent     int
	BurstMaxDuration    time.Duration
	ShutdownGrace       time.Duration
	AgingInterval       time.Duration
	HistoryWindow       time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 3
	}
	if c.BurstConcurrent <= 0 {
		c.BurstConcurrent = 8
	}
	if c.BurstMaxDuration <= 0 {
		c.BurstMaxDuration = 10 * time.Minute
	}
	if c.PreemptionThreshold <= 0 {
		c.PreemptionThreshold = 0.3
	}
	if c.MaxPreemptions <= 0 {
		c.MaxPreemptions = 2
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 5 * time.Second
	}
	if c.AgingInterval <= 0 {
		c.AgingInterval = 5 * time.Second
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 24 * time.Hour
	}
	return c
}

// DispatchResult is Dispatch's admission verdict (spec.md §4.6:
// "Returns {accepted, reason}").
type DispatchResult struct {
	Accepted bool
	Reason   string
}

// Snapshot is a lock-free, eventually-consistent view of Scheduler state
// for readers outside the owner goroutine (e.g. Ingress's GET /status).
type Snapshot struct {
	QueueSize   int
	Running     int
	BurstActive bool
}

type activeEntry struct {
	alert      *priority.Alert
	cancel     context.CancelFunc
	startedAt  time.Time
	preempting bool
}

type enqueueCmd struct {
	alert *priority.Alert
	reply chan DispatchResult
}

type doneMsg struct {
	alertID  string
	report   *investigation.Report
	err      error
	duration time.Duration
}

type shutdownCmd struct {
	timeout time.Duration
	reply   chan struct{}
}

// Scheduler is Seraph's Scheduler (C6). Queue, active-set and burst-state
// mutation happens only inside Run's owner goroutine; Dispatch and
// Snapshot are safe to call from any goroutine.
type Scheduler struct {
	cfg     Config
	queue   *priority.Queue
	calc    *priority.Calculator
	dedup   *dedup.Deduplicator
	history *History
	worker  *investigation.Worker
	tools   []reasoning.ToolDefinition
	alerter Alerter
	rec     Recorder

	active map[string]*activeEntry

	burstActive    bool
	burstEnteredAt time.Time

	admitting atomic.Bool

	enqueueCh  chan enqueueCmd
	doneCh     chan doneMsg
	shutdownCh chan shutdownCmd

	queueSizeGauge atomic.Int64
	runningGauge   atomic.Int64
	burstGauge     atomic.Bool
}

// New builds a Scheduler. rec and alerter may be nil (default to no-ops).
// hist may be nil (a fresh History is created) — pass the same *History
// used to build calc's HistoryLookup (via hist.Frequency) so Dispatch's
// recurrence bookkeeping and the Calculator's reads share state.
func New(cfg Config, calc *priority.Calculator, dd *dedup.Deduplicator, hist *History, worker *investigation.Worker, tools []reasoning.ToolDefinition, alerter Alerter, rec Recorder) *Scheduler {
	cfg = cfg.withDefaults()
	if rec == nil {
		rec = noopRecorder{}
	}
	if alerter == nil {
		alerter = noopAlerter{}
	}
	if hist == nil {
		hist = NewHistory(cfg.HistoryWindow)
	}
	s := &Scheduler{
		cfg:        cfg,
		queue:      priority.NewQueue(cfg.MaxQueueSize),
		calc:       calc,
		dedup:      dd,
		history:    hist,
		worker:     worker,
		tools:      tools,
		alerter:    alerter,
		rec:        rec,
		active:     make(map[string]*activeEntry),
		enqueueCh:  make(chan enqueueCmd),
		doneCh:     make(chan doneMsg, 256),
		shutdownCh: make(chan shutdownCmd, 1),
	}
	s.admitting.Store(true)
	return s
}

// History exposes the Scheduler's recurrence tracker so callers can wire
// it as the Calculator's HistoryLookup: calc, _ := priority.NewCalculator(cfg, sched.History().Frequency).
func (s *Scheduler) History() *History { return s.history }

// Run is the owner goroutine. It must be started (go sched.Run(ctx))
// before Dispatch is called, and returns once ctx is cancelled or
// Shutdown completes.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.AgingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.admitting.Store(false)
			return
		case cmd := <-s.enqueueCh:
			s.handleEnqueue(cmd)
			s.tick(ctx)
		case msg := <-s.doneCh:
			s.handleDone(msg)
			s.tick(ctx)
		case req := <-s.shutdownCh:
			s.handleShutdown(req)
			return
		case now := <-ticker.C:
			s.handleAging(now)
			s.tick(ctx)
		}
	}
}

// Dispatch performs triage/dedup/priority-compute and enqueues the alert
// (spec.md §4.6). Safe to call concurrently from any goroutine.
func (s *Scheduler) Dispatch(ctx context.Context, log, reason string, meta priority.Metadata) DispatchResult {
	if !s.admitting.Load() {
		return DispatchResult{Accepted: false, Reason: "shuttingDown"}
	}
	if isBlank(log) {
		s.rec.IncLogsDropped("invalid")
		return DispatchResult{Accepted: false, Reason: "invalid"}
	}

	now := time.Now()
	fp := priority.Fingerprint(log, meta.Service, meta.Severity)
	if s.dedup.Check(fp, now) {
		s.rec.IncLogsDropped("duplicate")
		return DispatchResult{Accepted: false, Reason: "duplicate"}
	}

	class, score := s.calc.Score(log, reason, meta, now)
	s.history.Record(fp, now)

	alert := &priority.Alert{
		ID:            uuid.NewString(),
		Log:           log,
		Reason:        reason,
		Metadata:      meta,
		PriorityClass: class,
		PriorityScore: score,
		EnqueuedAt:    now,
	}

	reply := make(chan DispatchResult, 1)
	select {
	case s.enqueueCh <- enqueueCmd{alert: alert, reply: reply}:
	case <-ctx.Done():
		return DispatchResult{Accepted: false, Reason: "cancelled"}
	}
	select {
	case res := <-reply:
		return res
	case <-ctx.Done():
		return DispatchResult{Accepted: false, Reason: "cancelled"}
	}
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

// Snapshot returns a point-in-time, lock-free view of Scheduler state.
func (s *Scheduler) Snapshot() Snapshot {
	return Snapshot{
		QueueSize:   int(s.queueSizeGauge.Load()),
		Running:     int(s.runningGauge.Load()),
		BurstActive: s.burstGauge.Load(),
	}
}

// Shutdown stops admission and waits (up to timeout) for active
// investigations to finish; anything still running past the deadline is
// cancelled, and any alerts still queued are discarded after logging
// their count (spec.md §4.6, §5 "Cancellation").
func (s *Scheduler) Shutdown(timeout time.Duration) {
	s.admitting.Store(false)
	if timeout <= 0 {
		timeout = s.cfg.ShutdownGrace
	}
	reply := make(chan struct{})
	select {
	case s.shutdownCh <- shutdownCmd{timeout: timeout, reply: reply}:
	default:
		return // Run isn't consuming (already stopped); nothing to drain
	}
	select {
	case <-reply:
	case <-time.After(timeout + time.Second):
	}
}

func (s *Scheduler) handleEnqueue(cmd enqueueCmd) {
	if !s.admitting.Load() {
		cmd.reply <- DispatchResult{Accepted: false, Reason: "shuttingDown"}
		return
	}
	if err := s.queue.Enqueue(cmd.alert); err != nil {
		s.rec.IncLogsDropped("queueFull")
		cmd.reply <- DispatchResult{Accepted: false, Reason: "queueFull"}
		return
	}
	s.syncGauges()
	if cmd.alert.Reason != "" {
		alert := cmd.alert
		go func() { _ = s.alerter.Fire(context.Background(), alert) }()
	}
	cmd.reply <- DispatchResult{Accepted: true}
}

func (s *Scheduler) handleDone(msg doneMsg) {
	entry, ok := s.active[msg.alertID]
	if !ok {
		return
	}
	delete(s.active, msg.alertID)

	if entry.preempting {
		entry.alert.Preemptions++
		if entry.alert.Preemptions >= s.cfg.MaxPreemptions {
			entry.alert.NonPreemptible = true
		}
		if err := s.queue.Enqueue(entry.alert); err != nil {
			s.rec.IncLogsDropped("queueFull")
		}
		s.rec.IncPreemptions()
	} else {
		outcome := "completed"
		if msg.err != nil {
			outcome = "failed"
		}
		s.rec.IncInvestigationsCompleted(outcome)
		s.rec.ObserveInvestigationDuration(entry.alert.PriorityClass.String(), msg.duration)
		if msg.report != nil {
			incidentID, report := entry.alert.ID, msg.report
			go func() { _ = s.alerter.Enrich(context.Background(), incidentID, report) }()
		}
	}
	s.syncGauges()
}

func (s *Scheduler) handleAging(now time.Time) {
	s.queue.AgePriorities(now)
	s.syncGauges()
}

// tick launches queued alerts while capacity allows, then, if at
// capacity, attempts one preemption (spec.md §4.6 "Tick()" and
// "Preemption").
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now()
	s.checkBurstMode(now)
	capacity := s.currentCap()

	for len(s.active) < capacity {
		alert, ok := s.queue.Dequeue()
		if !ok {
			break
		}
		s.launch(ctx, alert)
	}

	if len(s.active) >= capacity && s.cfg.PreemptionEnabled && !s.burstActive {
		s.tryPreempt(now)
	}
	s.syncGauges()
}

func (s *Scheduler) currentCap() int {
	if s.burstActive {
		return s.cfg.BurstConcurrent
	}
	return s.cfg.MaxConcurrent
}

func isUrgent(c priority.Class) bool {
	return c == priority.Critical || c == priority.High
}

// checkBurstMode enters burst mode when the queue's top entry is
// CRITICAL/HIGH, and exits it once BurstMaxDuration has elapsed or no
// CRITICAL/HIGH alert remains queued or active (spec.md §4.6).
func (s *Scheduler) checkBurstMode(now time.Time) {
	if !s.cfg.BurstModeEnabled {
		return
	}
	queueUrgent := false
	if peek, ok := s.queue.Peek(); ok && isUrgent(peek.PriorityClass) {
		queueUrgent = true
	}

	if !s.burstActive {
		if queueUrgent {
			s.burstActive = true
			s.burstEnteredAt = now
			s.rec.SetBurstModeActive(true)
		}
		return
	}

	activeUrgent := false
	for _, e := range s.active {
		if isUrgent(e.alert.PriorityClass) {
			activeUrgent = true
			break
		}
	}
	expired := now.Sub(s.burstEnteredAt) > s.cfg.BurstMaxDuration
	if expired || (!queueUrgent && !activeUrgent) {
		s.burstActive = false
		s.rec.SetBurstModeActive(false)
	}
}

// tryPreempt cancels the worst eligible running investigation when the
// queue's top entry clearly outranks it (spec.md §4.6 "Preemption").
func (s *Scheduler) tryPreempt(now time.Time) {
	_ = now
	peek, ok := s.queue.Peek()
	if !ok {
		return
	}
	victim := s.worstPreemptibleEntry(peek)
	if victim == nil {
		return
	}
	victim.preempting = true
	victim.cancel()
}

func (s *Scheduler) worstPreemptibleEntry(peek *priority.Alert) *activeEntry {
	var worst *activeEntry
	for _, e := range s.active {
		a := e.alert
		if a.NonPreemptible || e.preempting {
			continue
		}
		if a.PriorityClass != priority.Medium && a.PriorityClass != priority.Low {
			continue
		}
		if peek.PriorityClass >= a.PriorityClass {
			continue
		}
		if peek.PriorityScore-a.PriorityScore <= s.cfg.PreemptionThreshold {
			continue
		}
		if worst == nil || a.PriorityScore < worst.alert.PriorityScore {
			worst = e
		}
	}
	return worst
}

func (s *Scheduler) launch(parent context.Context, alert *priority.Alert) {
	ctx, cancel := context.WithCancel(parent)
	inv := investigation.NewInvestigation(investigation.AlertView{
		ID:       alert.ID,
		Log:      alert.Log,
		Reason:   alert.Reason,
		Service:  alert.Metadata.Service,
		Severity: alert.Metadata.Severity,
	}, 0)

	entry := &activeEntry{alert: alert, cancel: cancel, startedAt: time.Now()}
	s.active[alert.ID] = entry

	s.rec.IncInvestigationsStarted(alert.PriorityClass.String())
	s.rec.ObserveQueueWait(alert.PriorityClass.String(), time.Since(alert.EnqueuedAt))

	go func() {
		report, err := s.worker.Run(ctx, inv, s.tools)
		s.doneCh <- doneMsg{alertID: alert.ID, report: report, err: err, duration: time.Since(entry.startedAt)}
	}()
}

func (s *Scheduler) handleShutdown(cmd shutdownCmd) {
	s.admitting.Store(false)
	timer := time.NewTimer(cmd.timeout)
	defer timer.Stop()

drain:
	for len(s.active) > 0 {
		select {
		case msg := <-s.doneCh:
			s.handleDone(msg)
		case <-timer.C:
			for _, e := range s.active {
				e.cancel()
			}
			break drain
		}
	}

	if n := s.queue.Len(); n > 0 {
		s.rec.IncLogsDropped("shutdown")
	}
	s.syncGauges()
	close(cmd.reply)
}

func (s *Scheduler) syncGauges() {
	s.queueSizeGauge.Store(int64(s.queue.Len()))
	s.runningGauge.Store(int64(len(s.active)))
	s.burstGauge.Store(s.burstActive)
	s.rec.SetQueueSize(s.queue.Len())
	s.rec.SetRunningInvestigations(len(s.active))
}
