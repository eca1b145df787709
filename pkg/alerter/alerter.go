// Package alerter implements Seraph's Alerter (C9): a two-phase outbound
// lifecycle that fires an Alertmanager-v2-shaped alert on admission (phase
// 1) and enriches it with the completed investigation's report once
// synthesis finishes (phase 2), per spec.md §4.9.
//
// Grounded on the teacher's pkg/slack.Service (nil-safe, fail-open
// notification wrapper with a two-call Notify{SessionStarted,Completed}
// shape) and pkg/mcp/transport.go's http.Client construction idiom; the
// sink delivery itself generalizes jordigilh-kubernaut's
// pkg/notification/delivery.Service (Deliver(ctx, notification) error,
// RetryableError) from file/webhook notification channels to a single
// Alertmanager-v2 HTTP sink.
package alerter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/seraphhq/seraph/pkg/breaker"
	"github.com/seraphhq/seraph/pkg/investigation"
	"github.com/seraphhq/seraph/pkg/priority"
)

// Config parameters the sink delivery and optional Slack notification.
type Config struct {
	// SinkURL is the base Alertmanager v2 URL; "/api/v2/alerts" is appended
	// if not already present (trailing slashes are trimmed first).
	SinkURL string
	// GeneratorURL is echoed into each posted alert's generatorURL field.
	GeneratorURL string
	Timeout      time.Duration
}

// Notifier is the optional secondary notification sink (Slack). A nil
// Notifier disables phase 1/2 notification without Alerter having to
// nil-check at every call site.
type Notifier interface {
	NotifyFired(ctx context.Context, alert *priority.Alert) string
	NotifyEnriched(ctx context.Context, alert *priority.Alert, threadTS string, report *investigation.Report, failed bool, errMsg string)
}

type noopNotifier struct{}

func (noopNotifier) NotifyFired(context.Context, *priority.Alert) string { return "" }
func (noopNotifier) NotifyEnriched(context.Context, *priority.Alert, string, *investigation.Report, bool, string) {
}

// ReportRef resolves a persisted report's external reference (e.g. a
// reportstore ID or URL) for phase 2's enrichment payload. A nil ReportRef
// omits the reference field.
type ReportRef func(ctx context.Context, incidentID string, report *investigation.Report) (string, error)

// Alerter satisfies the scheduler.Alerter interface: Fire on admission,
// Enrich once the investigation concludes.
type Alerter struct {
	cfg      Config
	client   *http.Client
	breaker  *breaker.Breaker
	retry    *breaker.RetryManager
	notifier Notifier
	reportRef ReportRef

	// threadTS remembers each incident's notification thread between Fire
	// and Enrich, so a threaded Slack reply can be posted on completion.
	threads *threadCache
}

// New builds an Alerter. br and rt may be nil, in which case sink delivery
// is attempted without a breaker/retry wrapper (only safe for tests).
// notifier and ref may be nil to disable their respective behavior.
func New(cfg Config, br *breaker.Breaker, rt *breaker.RetryManager, notifier Notifier, ref ReportRef) *Alerter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Alerter{
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.Timeout},
		breaker:   br,
		retry:     rt,
		notifier:  notifier,
		reportRef: ref,
		threads:   newThreadCache(),
	}
}

// Fire posts the phase-1 alert (admission) to the sink and, if a Notifier
// is configured, posts a "processing started" Slack message. Sink
// delivery errors are returned; notification failures are fail-open
// (logged by the Notifier itself, never surfaced here) matching the
// teacher's pkg/slack.Service fail-open contract.
func (a *Alerter) Fire(ctx context.Context, alert *priority.Alert) error {
	threadTS := a.notifier.NotifyFired(ctx, alert)
	a.threads.put(alert.ID, threadTS)

	payload := buildFiredPayload(alert, a.cfg.GeneratorURL)
	return a.post(ctx, payload)
}

// Enrich posts the phase-2 resolution update referencing the completed
// investigation, and if a Notifier is configured, posts a terminal Slack
// message threaded under the phase-1 notification.
func (a *Alerter) Enrich(ctx context.Context, incidentID string, report *investigation.Report) error {
	threadTS, _ := a.threads.get(incidentID)
	a.threads.delete(incidentID)

	var ref string
	if a.reportRef != nil {
		r, err := a.reportRef(ctx, incidentID, report)
		if err == nil {
			ref = r
		}
	}

	alert := &priority.Alert{ID: incidentID}
	a.notifier.NotifyEnriched(ctx, alert, threadTS, report, false, "")

	payload := buildEnrichedPayload(incidentID, report, ref, a.cfg.GeneratorURL)
	return a.post(ctx, payload)
}

func (a *Alerter) post(ctx context.Context, payload []byte) error {
	url := sinkURL(a.cfg.SinkURL)
	call := func() error {
		_, err := a.breakerExecute(func() (any, error) {
			return nil, a.doPost(ctx, url, payload)
		})
		return err
	}
	if a.retry != nil {
		return a.retry.Do(ctx, call)
	}
	return call()
}

func (a *Alerter) breakerExecute(fn func() (any, error)) (any, error) {
	if a.breaker == nil {
		return fn()
	}
	return a.breaker.Execute(fn)
}

func (a *Alerter) doPost(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return breaker.ErrUnauthorized
	}
	if resp.StatusCode >= 300 {
		return &breaker.HTTPStatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// sinkURL normalizes baseURL into an Alertmanager v2 alerts endpoint:
// trailing slashes are trimmed, then "/api/v2/alerts" is appended unless
// already present.
func sinkURL(base string) string {
	trimmed := strings.TrimRight(base, "/")
	if strings.HasSuffix(trimmed, "/api/v2/alerts") {
		return trimmed
	}
	return trimmed + "/api/v2/alerts"
}

// amAlert is one entry of the Alertmanager v2 POST /api/v2/alerts body.
type amAlert struct {
	Labels       map[string]string `json:"labels"`
	Annotations  map[string]string `json:"annotations"`
	GeneratorURL string            `json:"generatorURL,omitempty"`
}

func buildFiredPayload(alert *priority.Alert, generatorURL string) []byte {
	labels := map[string]string{
		"alertname": "seraph_investigation",
		"incident":  alert.ID,
		"severity":  alert.Metadata.Severity,
		"service":   alert.Metadata.Service,
		"priority":  alert.PriorityClass.String(),
	}
	for k, v := range alert.Metadata.Tags {
		labels[k] = v
	}
	annotations := map[string]string{
		"summary":     alert.Reason,
		"description": alert.Log,
		"status":      "investigating",
	}
	body, _ := json.Marshal([]amAlert{{Labels: labels, Annotations: annotations, GeneratorURL: generatorURL}})
	return body
}

func buildEnrichedPayload(incidentID string, report *investigation.Report, reportRef, generatorURL string) []byte {
	annotations := map[string]string{
		"status":             "resolved",
		"rootCauseAnalysis":  report.RootCauseAnalysis,
		"impactAssessment":   report.ImpactAssessment,
		"suggestedRemediation": strings.Join(report.SuggestedRemediation, "; "),
	}
	if reportRef != "" {
		annotations["reportRef"] = reportRef
	}
	if report.Unstructured {
		annotations["unstructured"] = "true"
	}
	labels := map[string]string{
		"alertname": "seraph_investigation",
		"incident":  incidentID,
	}
	body, _ := json.Marshal([]amAlert{{Labels: labels, Annotations: annotations, GeneratorURL: generatorURL}})
	return body
}
