package ingress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/seraphhq/seraph/pkg/breaker"
	"github.com/seraphhq/seraph/pkg/priority"
	"github.com/seraphhq/seraph/pkg/reasoning"
)

// logsRequest is the optional JSON shape of a POST /logs body (spec.md
// §6: "body: raw log or JSON with at least message"). A body that isn't
// a JSON object is treated as a raw log line instead.
type logsRequest struct {
	Message   string            `json:"message"`
	Level     string            `json:"level"`
	Timestamp string            `json:"timestamp"`
	Service   string            `json:"service"`
	Tags      map[string]string `json:"tags"`
}

// logsResponse is returned on successful admission.
type logsResponse struct {
	Status string `json:"status"`
}

// logsHandler handles POST /logs (spec.md §4.10). Admission is
// fire-and-forget: once the payload passes validation it is handed to
// the Scheduler and the HTTP response returns immediately.
func (s *Server) logsHandler(c *echo.Context) error {
	if !s.limiter.allow(clientKey(c)) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	}
	if !s.checkAuth(c) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing bearer token")
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxLogBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	if len(body) > maxLogBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("body exceeds %d bytes", maxLogBodyBytes))
	}

	message, meta, ok := parseLogBody(body)
	if !ok || message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "empty or invalid log body")
	}
	if containsInjectionSignature(message) {
		return echo.NewHTTPError(http.StatusBadRequest, "payload matches a known injection signature")
	}

	s.totalLogs.Add(1)
	s.metrics.IncLogsReceived()

	reason := triageReason(meta)

	// Dispatch runs triage/dedup/priority-compute synchronously (it's
	// cheap, in-memory work) but never blocks on investigation itself —
	// Scheduler.Dispatch enqueues and returns; the HTTP response never
	// waits for triage or investigation (spec.md §4.10).
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.scheduler.Dispatch(ctx, message, reason, meta)
	}()

	return c.JSON(http.StatusAccepted, &logsResponse{Status: "accepted"})
}

// parseLogBody extracts the log message and metadata from a /logs
// request body. A JSON object body supplies message/level/service/tags;
// any other body (plain text, a bare JSON string, malformed JSON) is
// treated as the raw log line itself.
func parseLogBody(body []byte) (message string, meta priority.Metadata, ok bool) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", meta, false
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		msg, isString := obj["message"].(string)
		if !isString || msg == "" {
			return "", meta, false
		}
		if level, ok := obj["level"].(string); ok {
			meta.Severity = level
		}
		if service, ok := obj["service"].(string); ok {
			meta.Service = service
		}
		if tags, ok := obj["tags"].(map[string]any); ok {
			meta.Tags = make(map[string]string, len(tags))
			for k, v := range tags {
				if sv, ok := v.(string); ok {
					meta.Tags[k] = sv
				}
			}
		}
		meta.Source = "logs"
		return msg, meta, true
	}

	meta.Source = "logs"
	return trimmed, meta, true
}

// triageReason produces the short descriptive string PriorityCalculator
// also scans for keyword matches alongside the raw log text (spec.md
// §4.6 data flow: "Ingress → triage → Deduplicator → PriorityCalculator").
func triageReason(meta priority.Metadata) string {
	if meta.Service != "" && meta.Severity != "" {
		return fmt.Sprintf("log ingested (service=%s, level=%s)", meta.Service, meta.Severity)
	}
	if meta.Service != "" {
		return fmt.Sprintf("log ingested (service=%s)", meta.Service)
	}
	return "log ingested"
}

// chatRequest is the POST /chat body (spec.md §6).
type chatRequest struct {
	Message string   `json:"message"`
	Logs    []string `json:"logs"`
}

// chatHandler handles POST /chat: an ad-hoc, synchronous reasoning call
// subject to the same rate limit and auth as /logs (spec.md §4.10).
func (s *Server) chatHandler(c *echo.Context) error {
	if !s.limiter.allow(clientKey(c)) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	}
	if !s.checkAuth(c) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing bearer token")
	}

	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message field is required")
	}
	if containsInjectionSignature(req.Message) {
		return echo.NewHTTPError(http.StatusBadRequest, "payload matches a known injection signature")
	}
	if s.reasoning == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "reasoning service not configured")
	}

	prompt := req.Message
	if len(req.Logs) > 0 {
		prompt = prompt + "\n\nRelevant logs:\n" + strings.Join(req.Logs, "\n")
	}
	messages := []reasoning.Message{{Role: reasoning.RoleUser, Content: prompt}}

	resp, err := s.generateChat(c.Request().Context(), messages)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.String(http.StatusOK, resp.Text)
}

// generateChat wraps a /chat Generate call in the same
// CircuitBreaker+RetryManager discipline every outbound reasoning-service
// call goes through (spec.md §4.1), keyed under the "chat" endpoint name
// so it trips independently of the investigation workers' breaker.
func (s *Server) generateChat(ctx context.Context, messages []reasoning.Message) (*reasoning.Response, error) {
	if s.cache != nil {
		if entry, ok := s.cache.Get(ctx, messages[0].Content, 0); ok {
			return &reasoning.Response{Text: entry.Response}, nil
		}
	}

	var resp *reasoning.Response
	call := func() error {
		br := s.breakers
		execute := func() (any, error) { return s.reasoning.Generate(ctx, messages, nil) }
		var result any
		var err error
		if br != nil {
			result, err = br.Get("chat").Execute(execute)
		} else {
			result, err = execute()
		}
		if err != nil {
			return err
		}
		resp = result.(*reasoning.Response)
		return nil
	}

	var err error
	if s.retry != nil {
		err = s.retry.Do(ctx, call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil && len(resp.ToolCalls) == 0 {
		s.cache.Set(ctx, messages[0].Content, resp.Text, resp.Usage.TotalTokens)
	}
	return resp, nil
}

// statusResponse is GET /status's JSON shape (spec.md §6).
type statusResponse struct {
	StartTime            time.Time         `json:"startTime"`
	MemoryUsage           uint64            `json:"memoryUsage"`
	TotalLogs             int64             `json:"totalLogs"`
	ActiveInvestigations  int               `json:"activeInvestigations"`
	CacheHitRate          float64           `json:"cacheHitRate"`
	Backends              map[string]string `json:"backends"`
}

// statusHandler handles GET /status: readiness plus runtime counters
// (spec.md §6).
func (s *Server) statusHandler(c *echo.Context) error {
	snap := s.scheduler.Snapshot()

	var hitRate float64
	if s.cache != nil {
		hitRate = s.cache.Stats(c.Request().Context()).HitRate
	}

	backends := map[string]string{}
	if s.breakers != nil {
		for endpoint, m := range s.breakers.Snapshot() {
			backends[endpoint] = breakerStateLabel(m.State)
		}
	}

	return c.JSON(http.StatusOK, &statusResponse{
		StartTime:           s.startTime,
		MemoryUsage:          memStats(),
		TotalLogs:            s.totalLogs.Load(),
		ActiveInvestigations: snap.Running,
		CacheHitRate:         hitRate,
		Backends:             backends,
	})
}

func breakerStateLabel(state breaker.State) string {
	switch state {
	case breaker.Open:
		return "open"
	case breaker.HalfOpen:
		return "halfOpen"
	default:
		return "closed"
	}
}

// metricsHandler handles GET /metrics: the Prometheus exposition format
// over the full §6 taxonomy.
func (s *Server) metricsHandler(c *echo.Context) error {
	s.metrics.Handler().ServeHTTP(c.Response(), c.Request())
	return nil
}
