// Seraph ingests log lines, triages them into priority-ranked alerts, and
// dispatches ReAct-style investigations against an external reasoning
// service, firing and enriching Alertmanager-v2 alerts as investigations
// progress.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/seraphhq/seraph/pkg/alerter"
	"github.com/seraphhq/seraph/pkg/breaker"
	"github.com/seraphhq/seraph/pkg/cache"
	"github.com/seraphhq/seraph/pkg/config"
	"github.com/seraphhq/seraph/pkg/dedup"
	"github.com/seraphhq/seraph/pkg/ingress"
	"github.com/seraphhq/seraph/pkg/investigation"
	"github.com/seraphhq/seraph/pkg/metrics"
	"github.com/seraphhq/seraph/pkg/priority"
	"github.com/seraphhq/seraph/pkg/reasoning"
	"github.com/seraphhq/seraph/pkg/reportstore"
	"github.com/seraphhq/seraph/pkg/scheduler"
	"github.com/seraphhq/seraph/pkg/tooldispatch"
)

// Default CircuitBreaker and RetryManager parameters (spec.md §4.1's
// named N/T/K/W and R/base/max/jitter); no config key names these, so
// they stay process-wide constants rather than per-endpoint YAML.
const (
	breakerFailureThreshold = 5
	breakerRecoveryTimeout  = 30 * time.Second
	breakerSuccessThreshold = 2
	breakerMonitoringPeriod = 60 * time.Second

	retryMaxRetries = 3
	retryBaseDelay  = 500 * time.Millisecond
	retryMaxDelay   = 10 * time.Second

	shutdownTimeout = 30 * time.Second
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("could not load %s: %v; continuing with existing environment", envPath, err)
	}

	setupLogging()

	cfg, err := config.Load(filepath.Join(*configDir, "config.yaml"))
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sched, ingressServer, reportStore := build(ctx, cfg)
	defer func() {
		if reportStore != nil {
			reportStore.Close()
		}
	}()

	go sched.Run(ctx)

	addr := ":" + itoaPort(cfg.Port)
	go func() {
		slog.Info("ingress listening", "addr", addr)
		if err := ingressServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("ingress server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received, draining")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := ingressServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("ingress shutdown error", "error", err)
	}
	sched.Shutdown(shutdownTimeout)
	slog.Info("shutdown complete")
}

// setupLogging selects a JSON handler in production and a text handler
// otherwise, the same production/development split cmd/tarsy/main.go
// draws from GIN_MODE, generalized to slog's handler choice.
func setupLogging() {
	var handler slog.Handler
	if getEnv("SERAPH_ENV", "development") == "production" {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	slog.SetDefault(slog.New(handler))
}

func itoaPort(port int) string {
	if port <= 0 {
		port = 8080
	}
	buf := [8]byte{}
	i := len(buf)
	for port > 0 {
		i--
		buf[i] = byte('0' + port%10)
		port /= 10
	}
	return string(buf[i:])
}

// build wires every component together in dependency order: breakers and
// retry before anything that calls out over a network, History before the
// Calculator that reads it, the Scheduler before Ingress (which only
// depends on the Scheduler's narrow interface).
func build(ctx context.Context, cfg *config.Config) (*scheduler.Scheduler, *ingress.Server, *reportstore.Store) {
	breakers := breaker.NewRegistry(breaker.Settings{
		FailureThreshold: breakerFailureThreshold,
		RecoveryTimeout:  breakerRecoveryTimeout,
		SuccessThreshold: breakerSuccessThreshold,
		MonitoringPeriod: breakerMonitoringPeriod,
	})
	retry := breaker.NewRetryManager(breaker.RetryConfig{
		MaxRetries: retryMaxRetries,
		BaseDelay:  retryBaseDelay,
		MaxDelay:   retryMaxDelay,
		Jitter:     true,
	}, breaker.ReasoningRetryable)

	hist := scheduler.NewHistory(24 * time.Hour)
	calc, err := priority.NewCalculator(cfg.PriorityQueue, hist.Frequency)
	if err != nil {
		log.Fatalf("failed to build priority calculator: %v", err)
	}

	dd := dedup.New(cfg.PriorityQueue.DedupWindow, cfg.PriorityQueue.MaxQueueSize*4)

	llmCache := cache.New(cache.Options{
		Store:               cacheStore(cfg.LLMCache.Backend),
		SimilarityThreshold: cfg.LLMCache.SimilarityThreshold,
		TTL:                 time.Duration(cfg.LLMCache.TTLSeconds) * time.Second,
		MaxEntries:          cfg.LLMCache.MaxEntries,
	})

	// The reasoning service itself is out of scope (spec.md §1): Seraph
	// only carries the abstract Client contract (pkg/reasoning). Operators
	// wishing to run against a real provider supply their own Client here;
	// the fake below keeps the wiring below it exercised end to end.
	reasoningClient := reasoning.NewFakeClient(reasoning.Response{
		Text: "no reasoning provider configured",
	})

	// Tool implementations themselves are out of scope (spec.md §1); an
	// operator wires concrete Tools (in-process or tooldispatch.NewMCPSessionTool)
	// before starting the Dispatcher.
	var tools []tooldispatch.Tool
	dispatcher := tooldispatch.NewDispatcher(tools, 64)
	go dispatcher.Run(ctx)

	worker := &investigation.Worker{
		Reasoning:  reasoningClient,
		Cache:      llmCache,
		Dispatcher: dispatcher,
		Breaker:    breakers.Get("reasoning"),
		Retry:      retry,
	}

	var reportStore *reportstore.Store
	var reportRef alerter.ReportRef
	if cfg.Database.DSN != "" {
		store, err := reportstore.New(ctx, reportstore.Config{DSN: cfg.Database.DSN})
		if err != nil {
			log.Fatalf("failed to open report store: %v", err)
		}
		reportStore = store
		reportRef = store.Put
	}

	var notifier alerter.Notifier
	if cfg.Slack.Token != "" && cfg.Slack.Channel != "" {
		notifier = alerter.NewSlackNotifier(cfg.Slack.Token, cfg.Slack.Channel, cfg.Slack.DashboardURL)
	}

	alerterSvc := alerter.New(alerter.Config{
		SinkURL:      cfg.AlertManager.URL,
		GeneratorURL: cfg.AlertManager.GeneratorURL,
		Timeout:      cfg.AlertManager.Timeout,
	}, breakers.Get("alertmanager"), retry, notifier, reportRef)

	m := metrics.New()

	toolDefs := make([]reasoning.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		toolDefs = append(toolDefs, reasoning.ToolDefinition{
			Name:             t.Name,
			Description:      t.Description,
			ParametersSchema: string(t.InputSchema),
		})
	}

	sched := scheduler.New(scheduler.Config{
		MaxConcurrent:       cfg.PriorityQueue.MaxConcurrent,
		MaxQueueSize:        cfg.PriorityQueue.MaxQueueSize,
		PreemptionEnabled:   cfg.PriorityQueue.PreemptionEnabled,
		PreemptionThreshold: cfg.PriorityQueue.PreemptionThreshold,
		MaxPreemptions:      cfg.PriorityQueue.MaxPreemptions,
		BurstModeEnabled:    cfg.PriorityQueue.BurstModeEnabled,
		BurstConcurrent:     cfg.PriorityQueue.BurstConcurrent,
		BurstMaxDuration:    cfg.PriorityQueue.BurstMaxDuration,
		AgingInterval:       cfg.PriorityQueue.AgingInterval,
		HistoryWindow:       24 * time.Hour,
	}, calc, dd, hist, worker, toolDefs, alerterSvc, m)

	ingressServer := ingress.NewServer(ingress.Config{
		APIKey:            cfg.ServerAPIKey,
		RateLimitRequests: cfg.RateLimit.Requests,
		RateLimitWindow:   cfg.RateLimit.Window,
	}, sched, reasoningClient, llmCache, breakers, retry, m)

	return sched, ingressServer, reportStore
}

func cacheStore(backend config.LLMCacheBackend) cache.Store {
	if backend.Kind == "redis" && backend.Addr != "" {
		return cache.NewRedisStore(cache.RedisOptions{Addr: backend.Addr})
	}
	return nil
}
