// Package metrics implements Seraph's Prometheus registry (spec.md §6's
// metrics taxonomy), grounded on rcourtman-Pulse's
// cmd/pulse-sensor-proxy/metrics.go: a single struct of pre-registered
// CounterVec/GaugeVec/HistogramVec fields built against a private
// *prometheus.Registry, nil-receiver-safe Inc/Observe/Set helpers, and a
// dedicated /metrics HTTP handler served via promhttp.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every series named in spec.md §6.
type Metrics struct {
	logsReceived          prometheus.Counter
	logsDropped           *prometheus.CounterVec
	investigationsStarted *prometheus.CounterVec
	investigationsDone    *prometheus.CounterVec
	preemptions           prometheus.Counter
	cacheHits             prometheus.Counter
	cacheMisses           prometheus.Counter
	toolCalls             *prometheus.CounterVec

	queueSize            prometheus.Gauge
	runningInvestigations prometheus.Gauge
	burstModeActive      prometheus.Gauge
	circuitState         *prometheus.GaugeVec

	investigationDuration *prometheus.HistogramVec
	queueWait             *prometheus.HistogramVec
	toolDuration          *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New builds and registers every series against a fresh private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		logsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seraph_logs_received_total",
			Help: "Total log lines accepted by Ingress.",
		}),
		logsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seraph_logs_dropped_total",
			Help: "Log lines dropped, by reason (rateLimited, duplicate, queueFull, shuttingDown, invalid).",
		}, []string{"reason"}),
		investigationsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seraph_investigations_started_total",
			Help: "Investigations launched, by priority class.",
		}, []string{"priority"}),
		investigationsDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seraph_investigations_completed_total",
			Help: "Investigations concluded, by outcome (completed, failed, preempted).",
		}, []string{"outcome"}),
		preemptions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seraph_preemptions_total",
			Help: "Running investigations preempted by a higher-priority alert.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seraph_cache_hits_total",
			Help: "SimilarityCache lookups served from cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seraph_cache_misses_total",
			Help: "SimilarityCache lookups that fell through to the reasoning service.",
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seraph_tool_calls_total",
			Help: "Tool invocations, by tool name and outcome.",
		}, []string{"tool", "outcome"}),

		queueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "seraph_queue_size",
			Help: "Alerts currently queued awaiting investigation.",
		}),
		runningInvestigations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "seraph_running_investigations",
			Help: "Investigations currently in progress.",
		}),
		burstModeActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "seraph_burst_mode_active",
			Help: "1 if the Scheduler is currently in burst mode, else 0.",
		}),
		circuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "seraph_circuit_state",
			Help: "CircuitBreaker state per endpoint: 0=closed, 1=half-open, 2=open.",
		}, []string{"endpoint"}),

		investigationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "seraph_investigation_duration_seconds",
			Help:    "Wall-clock duration of a concluded investigation, by priority class.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"priority"}),
		queueWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "seraph_queue_wait_seconds",
			Help:    "Time an alert spent queued before launch, by priority class.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300},
		}, []string{"priority"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "seraph_tool_duration_seconds",
			Help:    "Tool call latency, by tool name.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"tool"}),

		registry: reg,
	}

	reg.MustRegister(
		m.logsReceived, m.logsDropped, m.investigationsStarted, m.investigationsDone,
		m.preemptions, m.cacheHits, m.cacheMisses, m.toolCalls,
		m.queueSize, m.runningInvestigations, m.burstModeActive, m.circuitState,
		m.investigationDuration, m.queueWait, m.toolDuration,
	)
	return m
}

// Handler serves the Prometheus exposition format for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncLogsReceived is called by Ingress on every accepted log line.
func (m *Metrics) IncLogsReceived() {
	if m == nil {
		return
	}
	m.logsReceived.Inc()
}

// IncToolCall records one tool invocation's outcome and latency.
func (m *Metrics) IncToolCall(tool, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(seconds)
}

// IncCacheHit/IncCacheMiss record SimilarityCache lookups.
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) IncCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// SetCircuitState records a named endpoint's CircuitBreaker state as
// 0 (closed), 1 (half-open) or 2 (open).
func (m *Metrics) SetCircuitState(endpoint string, state float64) {
	if m == nil {
		return
	}
	m.circuitState.WithLabelValues(endpoint).Set(state)
}
