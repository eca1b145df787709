package alerter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/seraphhq/seraph/pkg/investigation"
	"github.com/seraphhq/seraph/pkg/priority"
)

// SlackNotifier posts human-readable investigation notifications to a
// single Slack channel, generalizing the teacher's pkg/slack.Service
// two-phase NotifySessionStarted/NotifySessionCompleted shape from
// session-lifecycle to investigation-lifecycle events. Nil-safe: a
// SlackNotifier built with NewSlackNotifier from an empty token/channel is
// never constructed — callers get a nil *SlackNotifier instead, and every
// method here treats a nil receiver as a no-op, matching the teacher's
// fail-open contract.
type SlackNotifier struct {
	api          *goslack.Client
	channel      string
	dashboardURL string
	logger       *slog.Logger
}

// NewSlackNotifier builds a SlackNotifier, or returns nil if token/channel
// is unset (Slack notification disabled).
func NewSlackNotifier(token, channel, dashboardURL string) *SlackNotifier {
	if token == "" || channel == "" {
		return nil
	}
	return &SlackNotifier{
		api:          goslack.New(token),
		channel:      channel,
		dashboardURL: dashboardURL,
		logger:       slog.Default().With("component", "alerter-slack"),
	}
}

// NotifyFired posts a "investigation started" message and returns its
// timestamp for threading by NotifyEnriched. Fail-open: errors are
// logged, never returned.
func (s *SlackNotifier) NotifyFired(ctx context.Context, alert *priority.Alert) string {
	if s == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	blocks := s.startedBlocks(alert)
	_, ts, err := s.api.PostMessageContext(ctx, s.channel, goslack.MsgOptionBlocks(blocks...))
	if err != nil {
		s.logger.Error("failed to post investigation-started message", "incident", alert.ID, "error", err)
		return ""
	}
	return ts
}

// NotifyEnriched posts a terminal status message, threaded under
// threadTS if non-empty. Fail-open: errors are logged, never returned.
func (s *SlackNotifier) NotifyEnriched(ctx context.Context, alert *priority.Alert, threadTS string, report *investigation.Report, failed bool, errMsg string) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := []goslack.MsgOption{goslack.MsgOptionBlocks(s.completedBlocks(alert, report, failed, errMsg)...)}
	if threadTS != "" {
		opts = append(opts, goslack.MsgOptionTS(threadTS))
	}
	if _, _, err := s.api.PostMessageContext(ctx, s.channel, opts...); err != nil {
		s.logger.Error("failed to post investigation-completed message", "incident", alert.ID, "error", err)
	}
}

func (s *SlackNotifier) startedBlocks(alert *priority.Alert) []goslack.Block {
	text := fmt.Sprintf("*Investigation started* for `%s` (%s priority)\n%s",
		alert.Metadata.Service, alert.PriorityClass.String(), alert.Reason)
	if s.dashboardURL != "" {
		text += fmt.Sprintf("\n<%s/incidents/%s|View details>", strings.TrimRight(s.dashboardURL, "/"), alert.ID)
	}
	return []goslack.Block{
		goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false), nil, nil),
	}
}

func (s *SlackNotifier) completedBlocks(alert *priority.Alert, report *investigation.Report, failed bool, errMsg string) []goslack.Block {
	if failed {
		text := fmt.Sprintf("*Investigation failed* for incident `%s`\n%s", alert.ID, errMsg)
		return []goslack.Block{goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false), nil, nil)}
	}
	remediation := "none suggested"
	if len(report.SuggestedRemediation) > 0 {
		remediation = strings.Join(report.SuggestedRemediation, "\n• ")
	}
	text := fmt.Sprintf("*Investigation complete* for incident `%s`\n*Root cause:* %s\n*Impact:* %s\n*Remediation:*\n• %s",
		alert.ID, report.RootCauseAnalysis, report.ImpactAssessment, remediation)
	return []goslack.Block{
		goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false), nil, nil),
	}
}
