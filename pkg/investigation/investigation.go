// Package investigation implements Seraph's InvestigationWorker (C7): the
// per-alert state machine IDLE→LOADED→REASONING→TOOL_WAIT→
// {REASONING|SYNTHESIS}→DONE that drives a ReAct-style reasoning loop
// against the reasoning service and the ToolDispatcher, per spec.md §4.7.
package investigation

import (
	"time"

	"github.com/google/uuid"
)

// State is one stage of the InvestigationWorker state machine.
type State int

const (
	Idle State = iota
	Loaded
	Reasoning
	ToolWait
	Synthesis
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Loaded:
		return "LOADED"
	case Reasoning:
		return "REASONING"
	case ToolWait:
		return "TOOL_WAIT"
	case Synthesis:
		return "SYNTHESIS"
	case Done:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// EntryKind classifies one scratchpad entry, per spec.md's Investigation
// data model ("observation | thought | toolCall | toolResult").
type EntryKind string

const (
	KindObservation EntryKind = "observation"
	KindThought     EntryKind = "thought"
	KindToolCall    EntryKind = "toolCall"
	KindToolResult  EntryKind = "toolResult"
)

// ScratchpadEntry is one ordered item in an Investigation's scratchpad.
type ScratchpadEntry struct {
	Kind    EntryKind
	Content string
	At      time.Time
}

// AlertView is the subset of alert content the worker needs, decoupled
// from pkg/priority.Alert so investigation doesn't import scheduling
// concerns it has no business with.
type AlertView struct {
	ID       string
	Log      string
	Reason   string
	Service  string
	Severity string
}

// Report is the SYNTHESIS phase's structured output (spec.md §4.7).
type Report struct {
	RootCauseAnalysis    string
	ImpactAssessment     string
	SuggestedRemediation []string
	Unstructured         bool // set when all JSON extraction fallbacks failed
}

// Status ∈ {RUNNING, PREEMPTED, COMPLETED, FAILED, TIMED_OUT}, per spec.md
// §3's Investigation data model.
type Status string

const (
	StatusRunning    Status = "RUNNING"
	StatusPreempted  Status = "PREEMPTED"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusTimedOut   Status = "TIMED_OUT"
)

// Investigation is the owned-by-one-worker record of one alert's
// investigation, created on dispatch and destroyed once terminal and
// handed to the Alerter.
type Investigation struct {
	ID         string
	Alert      AlertView
	Status     Status
	Scratchpad []ScratchpadEntry
	ToolUsage  []string
	Turn       int
	MaxTurns   int
	Report     *Report
}

// NewInvestigation constructs an Investigation in LOADED-ready state
// (spec.md §4.7 step 1: turn=0, maxTurns=5 by default).
func NewInvestigation(alert AlertView, maxTurns int) *Investigation {
	if maxTurns <= 0 {
		maxTurns = 5
	}
	return &Investigation{
		ID:       uuid.NewString(),
		Alert:    alert,
		Status:   StatusRunning,
		MaxTurns: maxTurns,
	}
}

func (inv *Investigation) observe(kind EntryKind, content string) {
	inv.Scratchpad = append(inv.Scratchpad, ScratchpadEntry{Kind: kind, Content: content, At: time.Now()})
}
