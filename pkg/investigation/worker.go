package investigation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/seraphhq/seraph/pkg/breaker"
	"github.com/seraphhq/seraph/pkg/cache"
	"github.com/seraphhq/seraph/pkg/reasoning"
	"github.com/seraphhq/seraph/pkg/tooldispatch"
)

const finishToolName = "FINISH"

var finishToolDef = reasoning.ToolDefinition{
	Name:             finishToolName,
	Description:      "Call when you have gathered enough evidence and are ready to synthesize the final root-cause report.",
	ParametersSchema: `{"type":"object","properties":{}}`,
}

const synthesisPrompt = `Provide your final analysis as a JSON object with exactly these fields: ` +
	`rootCauseAnalysis (string), impactAssessment (string), suggestedRemediation (array of strings). ` +
	`Return only the JSON object, no surrounding prose.`

const defaultToolTimeout = 10 * time.Second

// Worker runs one Investigation's ReAct-style reasoning loop (spec.md
// §4.7), grounded on the teacher's IteratingController.Run tool-calling
// loop (pkg/agent/controller/iterating.go): build messages → call
// reasoning service → branch tool-calls-vs-final → execute tools →
// loop → forced conclusion at maxTurns.
type Worker struct {
	Reasoning   reasoning.Client
	Cache       *cache.Cache // optional; nil disables similarity caching
	Dispatcher  *tooldispatch.Dispatcher
	Breaker     *breaker.Breaker
	Retry       *breaker.RetryManager
	ToolTimeout time.Duration
}

func (w *Worker) toolTimeout() time.Duration {
	if w.ToolTimeout > 0 {
		return w.ToolTimeout
	}
	return defaultToolTimeout
}

// Run drives inv through LOADED→REASONING→TOOL_WAIT→{REASONING|SYNTHESIS}→DONE,
// consulting tools (plus the synthetic FINISH tool) until the reasoning
// service signals FINISH or inv.MaxTurns is reached, then issues the
// SYNTHESIS prompt and extracts a structured Report.
//
// Cancellation: if ctx is done before the next reasoning call, Run stops
// and marks inv PREEMPTED without calling the reasoning service again. If
// cancellation lands mid TOOL_WAIT, callTool's own deadline handling
// detaches the dispatcher listener and the orphaned reply is dropped by
// the Dispatcher itself.
func (w *Worker) Run(ctx context.Context, inv *Investigation, tools []reasoning.ToolDefinition) (*Report, error) {
	allTools := append(append([]reasoning.ToolDefinition{}, tools...), finishToolDef)
	inv.observe(KindObservation, fmt.Sprintf("alert received: %s", inv.Alert.Log))

reasoningLoop:
	for {
		select {
		case <-ctx.Done():
			inv.Status = StatusPreempted
			return nil, ctx.Err()
		default:
		}

		inv.Turn++
		messages := w.buildMessages(inv, allTools)
		resp, err := w.generate(ctx, messages, allTools)
		if err != nil {
			if ctx.Err() != nil {
				inv.Status = StatusPreempted
				return nil, ctx.Err()
			}
			inv.Status = StatusFailed
			return nil, err
		}
		if resp.Text != "" {
			inv.observe(KindThought, resp.Text)
		}

		finish, call := classifyToolCalls(resp.ToolCalls)

		switch {
		case finish:
			break reasoningLoop
		case call != nil:
			inv.observe(KindToolCall, call.Name+"("+call.Arguments+")")
			result, terr := w.callTool(ctx, inv, *call)
			if terr != nil {
				inv.observe(KindObservation, "tool error: "+terr.Error())
			} else {
				inv.observe(KindToolResult, result)
				inv.ToolUsage = append(inv.ToolUsage, call.Name)
			}
		default:
			inv.observe(KindObservation, "no tool call or FINISH signalled; continuing investigation")
		}

		if inv.Turn >= inv.MaxTurns {
			break reasoningLoop
		}
	}

	report := w.synthesize(ctx, inv, tools)
	inv.Report = report
	inv.Status = StatusCompleted
	return report, nil
}

// classifyToolCalls implements spec.md §4.7 step 3/4: a FINISH call takes
// priority over any other concurrent tool call; otherwise the first
// non-FINISH call is handled (TOOL_WAIT admits probe calls serially, one
// at a time, matching the Dispatcher's own single-owner serialization).
func classifyToolCalls(calls []reasoning.ToolCall) (finish bool, call *reasoning.ToolCall) {
	for i := range calls {
		if calls[i].Name == finishToolName {
			return true, nil
		}
	}
	if len(calls) > 0 {
		c := calls[0]
		return false, &c
	}
	return false, nil
}

func (w *Worker) buildMessages(inv *Investigation, tools []reasoning.ToolDefinition) []reasoning.Message {
	msgs := []reasoning.Message{
		{Role: reasoning.RoleSystem, Content: systemPrompt(inv, tools)},
	}
	for _, e := range inv.Scratchpad {
		msgs = append(msgs, reasoning.Message{Role: reasoning.RoleUser, Content: string(e.Kind) + ": " + e.Content})
	}
	return msgs
}

func systemPrompt(inv *Investigation, tools []reasoning.ToolDefinition) string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	return fmt.Sprintf(
		"You are investigating an alert for service %q (severity %s). "+
			"Available tools: %s. Use them to gather evidence, then call FINISH when ready to synthesize a root-cause report.",
		inv.Alert.Service, inv.Alert.Severity, strings.Join(names, ", "),
	)
}

// generate consults the SimilarityCache before calling the reasoning
// service, wrapped in CircuitBreaker + RetryManager with the reasoning
// predicate (spec.md §4.1, §4.7). Only tool-call-free responses are
// cached: a cache hit replays text only, so a cached response carrying a
// tool call would silently lose that call on replay.
func (w *Worker) generate(ctx context.Context, messages []reasoning.Message, tools []reasoning.ToolDefinition) (*reasoning.Response, error) {
	promptKey := renderPromptKey(messages)

	var resp *reasoning.Response
	call := func() error {
		result, err := w.Breaker.Execute(func() (any, error) {
			return w.Reasoning.Generate(ctx, messages, tools)
		})
		if err != nil {
			return err
		}
		resp = result.(*reasoning.Response)
		return nil
	}
	compute := func() (string, int, bool, error) {
		var err error
		if w.Retry != nil {
			err = w.Retry.Do(ctx, call)
		} else {
			err = call()
		}
		if err != nil {
			return "", 0, false, err
		}
		return resp.Text, resp.Usage.TotalTokens, resp.Text != "" && len(resp.ToolCalls) == 0, nil
	}

	if w.Cache == nil {
		if _, _, _, err := compute(); err != nil {
			return nil, err
		}
		return resp, nil
	}

	text, err := w.Cache.Resolve(ctx, promptKey, compute)
	if err != nil {
		return nil, err
	}
	if resp != nil {
		return resp, nil
	}
	// resp is nil when Resolve answered from the cache — either the
	// fast-path Get hit, or another concurrent caller's compute ran and
	// this call only shared its singleflight result.
	return &reasoning.Response{Text: text}, nil
}

func renderPromptKey(messages []reasoning.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Role)
		b.WriteByte(':')
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	return b.String()
}

// callTool sends an ExecuteToolMsg and awaits a reply with a 10s timeout
// (spec.md §4.7 step 5). The Dispatcher listener is always detached
// (Deactivate) on both the success and error paths via defer, satisfying
// the "resource discipline requirement."
func (w *Worker) callTool(ctx context.Context, inv *Investigation, call reasoning.ToolCall) (string, error) {
	reply := make(chan tooldispatch.ToolResultMsg, 1)
	w.Dispatcher.Activate(inv.ID)
	defer w.Dispatcher.Deactivate(inv.ID)

	toolCtx, cancel := context.WithTimeout(ctx, w.toolTimeout())
	defer cancel()

	if err := w.Dispatcher.Submit(toolCtx, tooldispatch.ExecuteToolMsg{
		InvestigationID: inv.ID,
		ToolName:        call.Name,
		Args:            json.RawMessage(call.Arguments),
		ReplyTo:         reply,
	}); err != nil {
		return "", err
	}

	select {
	case res := <-reply:
		if res.Err != nil {
			return "", errors.New(res.Err.Message)
		}
		return res.Data, nil
	case <-toolCtx.Done():
		return "", errors.New("tool call timed out")
	}
}

// synthesize issues the final SYNTHESIS prompt and robustly extracts a
// structured Report from the reasoning service's reply.
func (w *Worker) synthesize(ctx context.Context, inv *Investigation, tools []reasoning.ToolDefinition) *Report {
	messages := w.buildMessages(inv, tools)
	messages = append(messages, reasoning.Message{Role: reasoning.RoleUser, Content: synthesisPrompt})

	resp, err := w.generate(ctx, messages, nil)
	if err != nil {
		return &Report{
			RootCauseAnalysis: "synthesis failed: " + err.Error(),
			Unstructured:      true,
		}
	}
	return ExtractReport(resp.Text)
}
