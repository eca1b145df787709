package scheduler

import (
	"context"
	"time"

	"github.com/seraphhq/seraph/pkg/investigation"
	"github.com/seraphhq/seraph/pkg/priority"
)

// noopAlerter is used when New is called with a nil Alerter (e.g. in unit
// tests that don't exercise the alert sink).
type noopAlerter struct{}

func (noopAlerter) Fire(context.Context, *priority.Alert) error                      { return nil }
func (noopAlerter) Enrich(context.Context, string, *investigation.Report) error { return nil }

// Recorder receives Scheduler lifecycle events for metrics export
// (spec.md §6's taxonomy). pkg/metrics implements this against Prometheus;
// a nil Recorder passed to NewScheduler is replaced with noopRecorder so
// the Scheduler never has to nil-check at each call site.
type Recorder interface {
	IncLogsDropped(reason string)
	IncInvestigationsStarted(priorityClass string)
	IncInvestigationsCompleted(outcome string)
	IncPreemptions()
	SetQueueSize(n int)
	SetRunningInvestigations(n int)
	SetBurstModeActive(active bool)
	ObserveQueueWait(priorityClass string, d time.Duration)
	ObserveInvestigationDuration(priorityClass string, d time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) IncLogsDropped(string)                       {}
func (noopRecorder) IncInvestigationsStarted(string)              {}
func (noopRecorder) IncInvestigationsCompleted(string)            {}
func (noopRecorder) IncPreemptions()                              {}
func (noopRecorder) SetQueueSize(int)                             {}
func (noopRecorder) SetRunningInvestigations(int)                 {}
func (noopRecorder) SetBurstModeActive(bool)                      {}
func (noopRecorder) ObserveQueueWait(string, time.Duration)       {}
func (noopRecorder) ObserveInvestigationDuration(string, time.Duration) {}
