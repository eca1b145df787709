package tooldispatch

import (
	"context"
	"encoding/json"
	"sync"
)

// ExecuteToolMsg is a worker's request to invoke a tool, posted onto the
// Dispatcher's single inbound channel (spec.md §4.8). ReplyTo should be
// buffered (capacity >= 1) so the Dispatcher's single owner goroutine
// never blocks delivering a result.
type ExecuteToolMsg struct {
	InvestigationID string
	ToolName        string
	Args            json.RawMessage
	ReplyTo         chan ToolResultMsg
}

// ToolResultMsg is the Dispatcher's reply to one ExecuteToolMsg.
type ToolResultMsg struct {
	InvestigationID string
	ToolName        string
	Data            string
	Err             *ToolError
}

// Dispatcher is the single logical owner of every outbound tool
// connection (spec.md §4.8): workers never touch tools directly, they
// post ExecuteToolMsg and await a ToolResultMsg. Grounded on the
// teacher's ToolExecutor.Execute normalize→resolve→validate→execute→
// mask→return pipeline, generalized from MCP-only transport to any Tool.
type Dispatcher struct {
	tools map[string]Tool
	inbox chan ExecuteToolMsg

	mu     sync.Mutex
	active map[string]bool // investigationID -> still owed a reply
}

// NewDispatcher builds a Dispatcher over the given tools, keyed by name.
func NewDispatcher(tools []Tool, inboxSize int) *Dispatcher {
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}
	if inboxSize <= 0 {
		inboxSize = 64
	}
	return &Dispatcher{
		tools:  byName,
		inbox:  make(chan ExecuteToolMsg, inboxSize),
		active: make(map[string]bool),
	}
}

// Activate marks an investigation as eligible to receive tool results.
// Submit calls for investigations never activated, or already
// Deactivate'd, are executed but their reply is silently discarded as an
// orphan (spec.md §4.8: "Orphan replies... are discarded").
func (d *Dispatcher) Activate(investigationID string) {
	d.mu.Lock()
	d.active[investigationID] = true
	d.mu.Unlock()
}

// Deactivate stops future replies from being delivered for
// investigationID (e.g. on preemption, cancellation, or completion).
func (d *Dispatcher) Deactivate(investigationID string) {
	d.mu.Lock()
	delete(d.active, investigationID)
	d.mu.Unlock()
}

func (d *Dispatcher) isActive(investigationID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active[investigationID]
}

// Submit enqueues msg for processing. Blocks if the inbox is full.
func (d *Dispatcher) Submit(ctx context.Context, msg ExecuteToolMsg) error {
	select {
	case d.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes messages from the inbox one at a time until ctx is
// cancelled — the serialization spec.md §4.8 requires ("Serialises tool
// calls requested by workers back onto the main context that owns tool
// connections").
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-d.inbox:
			d.process(ctx, msg)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, msg ExecuteToolMsg) {
	result := d.execute(ctx, msg)

	if !d.isActive(msg.InvestigationID) {
		return // orphan reply, discarded
	}
	if msg.ReplyTo != nil {
		select {
		case msg.ReplyTo <- result:
		case <-ctx.Done():
		}
	}
}

func (d *Dispatcher) execute(ctx context.Context, msg ExecuteToolMsg) ToolResultMsg {
	tool, ok := d.tools[msg.ToolName]
	if !ok {
		return errResult(msg, &ToolError{Kind: KindValidation, Message: "unknown tool: " + Redact(msg.ToolName)})
	}

	if tool.InputSchema != nil {
		if len(msg.Args) == 0 || !json.Valid(msg.Args) {
			return errResult(msg, &ToolError{Kind: KindValidation, Message: "tool arguments are not valid JSON"})
		}
	}

	if te := checkSafety(tool.Kind, msg.Args); te != nil {
		return errResult(msg, te)
	}

	data, err := tool.Execute(ctx, msg.Args)
	if err != nil {
		kind := KindUpstream
		var te *ToolError
		if asToolError(err, &te) {
			kind = te.Kind
		}
		return errResult(msg, &ToolError{Kind: kind, Message: Redact(err.Error())})
	}

	return ToolResultMsg{
		InvestigationID: msg.InvestigationID,
		ToolName:        msg.ToolName,
		Data:            Redact(data),
	}
}

func asToolError(err error, out **ToolError) bool {
	te, ok := err.(*ToolError)
	if ok {
		*out = te
	}
	return ok
}

func errResult(msg ExecuteToolMsg, te *ToolError) ToolResultMsg {
	return ToolResultMsg{
		InvestigationID: msg.InvestigationID,
		ToolName:        msg.ToolName,
		Err:             te,
	}
}
