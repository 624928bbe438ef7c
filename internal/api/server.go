package api

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/burka/podpulse/internal/ai"
	"github.com/burka/podpulse/internal/auth"
	"github.com/burka/podpulse/internal/billing"
	"github.com/burka/podpulse/internal/metrics"
	"github.com/burka/podpulse/internal/quota"
	"github.com/burka/podpulse/static"
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Dependencies are the collaborators the server is built from. They are
// constructed in main so the store backend can be chosen at startup.
type Dependencies struct {
	// Store holds usage counters and plans.
	Store quota.Store
	// Marks holds the reset watermark.
	Marks quota.WatermarkStore
	// Content holds podcasts, chart positions and analyses.
	Content  ContentStore
	Verifier auth.Verifier
	Analyzer ai.Analyzer
	// Catalog backs podcast search; nil disables it.
	Catalog Catalog
	// Collector backs the chart collection cron; nil disables it.
	Collector ChartCollector
	// Billing is nil when Stripe is not configured.
	Billing *billing.Processor
	// Checks are probed by GET /health, keyed by dependency name.
	Checks map[string]HealthChecker
}

// Server represents the HTTP server with all dependencies.
type Server struct {
	router   *chi.Mux
	api      huma.API
	guard    *quota.Guard
	resetter *quota.Resetter
	deps     Dependencies
	config   *Config
}

// NewServer creates and configures a new server instance.
// It builds the quota guard and resetter on top of deps and sets up all routes.
func NewServer(cfg *Config, deps Dependencies) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Store == nil || deps.Marks == nil || deps.Content == nil || deps.Verifier == nil || deps.Analyzer == nil {
		return nil, fmt.Errorf("store, watermark store, content store, verifier and analyzer are required")
	}

	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(RecoveryMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(MetricsMiddleware)

	s := &Server{
		router:   router,
		guard:    quota.NewGuard(deps.Store),
		resetter: quota.NewResetter(deps.Store, deps.Marks, quota.WithInterval(cfg.ResetInterval)),
		deps:     deps,
		config:   cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	rateLimiter := NewRateLimiter(s.config.RateLimitRPS)

	services := &Services{
		Account:  NewAccountService(s.guard),
		Podcasts: NewPodcastService(s.guard, s.deps.Content),
		Analyses: NewAnalysisService(s.guard, s.deps.Content, s.deps.Analyzer),
		Charts:   NewChartService(s.guard, s.deps.Content),
		Export:   NewExportService(s.guard, s.deps.Content),
		Checks:   s.deps.Checks,
	}
	if s.deps.Catalog != nil {
		services.Search = NewSearchService(s.deps.Catalog)
	}
	if s.deps.Billing != nil {
		services.Billing = NewBillingService(s.deps.Billing, s.config.BillingReturnURL)
	}

	s.api = RegisterRoutes(s.router, services, s.deps.Verifier, rateLimiter)

	// WebSocket upgrades don't work well with huma's response handling,
	// so the live feed is registered on chi directly.
	s.router.With(AuthMiddleware(s.deps.Verifier), rateLimiter.Middleware()).
		Get("/v1/account/limits/live", LiveLimits(s.guard, s.config.LiveLimitsInterval))

	s.router.With(rateLimiter.IPMiddleware()).
		Post("/internal/cron/reset-counters", ResetCounters(s.resetter, s.config.CronSecret))
	if s.deps.Collector != nil {
		s.router.With(rateLimiter.IPMiddleware()).
			Post("/internal/cron/collect-charts", CollectCharts(s.deps.Collector, s.config.CronSecret))
	}

	if s.deps.Billing != nil {
		s.router.Post("/webhooks/stripe", StripeWebhook(s.deps.Billing))
	}

	s.router.Handle("/metrics", metrics.Handler(s.config.MetricsUsername, s.config.MetricsPassword))

	if dashboard := s.dashboardFS(); dashboard != nil {
		s.router.NotFound(NewSPAHandler(dashboard, "index.html", "/assets/").ServeHTTP)
	}
}

// dashboardFS prefers DASHBOARD_DIR over the build-embedded SPA.
func (s *Server) dashboardFS() fs.FS {
	if s.config.DashboardDir != "" {
		slog.Info("serving dashboard", "dir", s.config.DashboardDir)
		return os.DirFS(s.config.DashboardDir)
	}
	dashboard, err := static.DashboardFS()
	if err != nil {
		if !errors.Is(err, static.ErrNotEmbedded) {
			slog.Error("failed to load embedded dashboard", "error", err)
		}
		return nil
	}
	slog.Info("serving embedded dashboard")
	return dashboard
}

// Router returns the chi router instance for use with http.Server.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// API returns the huma API, e.g. to export the OpenAPI document.
func (s *Server) API() huma.API {
	return s.api
}

// Resetter returns the monthly counter resetter, for the in-process ticker.
func (s *Server) Resetter() *quota.Resetter {
	return s.resetter
}
