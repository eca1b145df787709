// Package ingress implements Seraph's Ingress (C10): the HTTP admission
// surface of spec.md §4.10 and §6. Grounded on the teacher's pkg/api
// (Server wrapping echo.Echo, NewServer, setupRoutes, Start/
// StartWithListener/Shutdown, healthHandler) and pkg/api/handler_alert.go
// (Bind → validate → size-check → transform → call-downstream →
// 202-Accepted handler shape), generalized from session submission to
// fire-and-forget log admission.
package ingress

import (
	"context"
	"net"
	"net/http"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/seraphhq/seraph/pkg/breaker"
	"github.com/seraphhq/seraph/pkg/cache"
	"github.com/seraphhq/seraph/pkg/metrics"
	"github.com/seraphhq/seraph/pkg/priority"
	"github.com/seraphhq/seraph/pkg/reasoning"
	"github.com/seraphhq/seraph/pkg/scheduler"
)

// maxLogBodyBytes is spec.md §4.10's "Reject bodies > 1 MiB with 413".
const maxLogBodyBytes = 1 << 20

// serverBodyLimit is set above maxLogBodyBytes so the HTTP layer never
// truncates a request before the handler can apply the precise,
// application-level 413 check — mirrors the teacher's setupRoutes
// comment on sizing BodyLimit above MaxAlertDataSize.
const serverBodyLimit = 2 << 20

// Scheduler is the subset of *scheduler.Scheduler Ingress depends on,
// kept as an interface so tests can substitute a fake.
type Scheduler interface {
	Dispatch(ctx context.Context, log, reason string, meta priority.Metadata) scheduler.DispatchResult
	Snapshot() scheduler.Snapshot
}

// Config configures the Ingress HTTP surface (spec.md §4.10, §6).
type Config struct {
	APIKey            string        // optional bearer token; auth disabled if empty
	RateLimitRequests int           // defaults to 100
	RateLimitWindow   time.Duration // defaults to 60s
}

// Server is Seraph's Ingress (C10): an echo/v5 HTTP server admitting log
// lines, handing them to the Scheduler asynchronously without the HTTP
// response ever waiting on triage or investigation.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server
	cfg        Config

	scheduler Scheduler
	reasoning reasoning.Client
	cache     *cache.Cache
	breakers  *breaker.Registry
	retry     *breaker.RetryManager
	metrics   *metrics.Metrics

	limiter   *rateLimiter
	startTime time.Time

	totalLogs atomic.Int64
}

// NewServer builds a Server with routes registered. sched, rc, ca, br,
// rt and m may each be nil; nil dependencies degrade gracefully (e.g. a
// nil cache disables chat response caching).
func NewServer(cfg Config, sched Scheduler, rc reasoning.Client, ca *cache.Cache, br *breaker.Registry, rt *breaker.RetryManager, m *metrics.Metrics) *Server {
	e := echo.New()
	s := &Server{
		echo:      e,
		cfg:       cfg,
		scheduler: sched,
		reasoning: rc,
		cache:     ca,
		breakers:  br,
		retry:     rt,
		metrics:   m,
		limiter:   newRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		startTime: time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes registers Ingress's four endpoints (spec.md §4.10).
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(serverBodyLimit))

	s.echo.POST("/logs", s.logsHandler)
	s.echo.POST("/chat", s.chatHandler)
	s.echo.GET("/status", s.statusHandler)
	s.echo.GET("/metrics", s.metricsHandler)
}

// Start starts the HTTP server on addr (non-blocking for the caller —
// ListenAndServe itself blocks until the server stops).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener,
// used by tests to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the HTTP server and the rate limiter's
// cleanup loop.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.shutdown()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// clientKey identifies the rate-limit bucket for a request: the bearer
// subject if authenticated, else the remote IP.
func clientKey(c *echo.Context) string {
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return "token:" + strings.TrimPrefix(auth, "Bearer ")
	}
	return "ip:" + c.RealIP()
}

// checkAuth enforces optional bearer authentication (spec.md §4.10).
// Returns true if the request may proceed.
func (s *Server) checkAuth(c *echo.Context) bool {
	if s.cfg.APIKey == "" {
		return true
	}
	auth := c.Request().Header.Get("Authorization")
	return auth == "Bearer "+s.cfg.APIKey
}

// memStats reduces runtime.MemStats to the single figure GET /status
// reports (spec.md §6: "memoryUsage").
func memStats() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc
}
