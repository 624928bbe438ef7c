package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/burka/podpulse/internal/ai"
	"github.com/burka/podpulse/internal/ai/anthropic"
	"github.com/burka/podpulse/internal/ai/mock"
	"github.com/burka/podpulse/internal/api"
	"github.com/burka/podpulse/internal/auth"
	"github.com/burka/podpulse/internal/billing"
	"github.com/burka/podpulse/internal/catalog"
	"github.com/burka/podpulse/internal/db"
	"github.com/burka/podpulse/internal/redisstore"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// resetTickEvery is how often the in-process ticker asks the resetter
// whether a monthly reset is due.
const resetTickEvery = 24 * time.Hour

func main() {
	// 1. Load configuration from .env (if present) and the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	var cfg api.Config
	if err := env.Parse(&cfg); err != nil {
		slog.Error("failed to parse configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// 2. Set up slog with configured log level
	setupLogging(cfg.LogLevel, cfg.IsDevelopment())

	slog.Info("starting podpulse server",
		"port", cfg.Port,
		"env", cfg.Env,
		"store_backend", cfg.StoreBackend,
		"ai_provider", cfg.AIProvider,
		"billing", cfg.BillingEnabled(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Connect to the database and migrate
	dbClient, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	if err := dbClient.RunMigrations(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// 4. Wire dependencies
	deps, cleanup, err := buildDependencies(ctx, &cfg, dbClient)
	if err != nil {
		slog.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	server, err := api.NewServer(&cfg, deps)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if cfg.ResetTickerEnabled {
		go server.Resetter().RunEvery(ctx, resetTickEvery)
	}

	// 5. Set up HTTP server
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// AI analyses can take a minute including retries.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 6. Handle graceful shutdown
	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", httpServer.Addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}

	case <-ctx.Done():
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			if err := httpServer.Close(); err != nil {
				slog.Error("server close failed", "error", err)
			}
			os.Exit(1)
		}

		slog.Info("server stopped gracefully")
	}
}

// buildDependencies selects the usage store, verifier, analyzer and billing
// processor from cfg and wires the Apple directory client used for search
// and chart collection. The returned cleanup closes what it opened.
func buildDependencies(ctx context.Context, cfg *api.Config, dbClient *db.Client) (api.Dependencies, func(), error) {
	cleanup := func() {}
	directory := catalog.New(cfg.Catalog)
	deps := api.Dependencies{
		Content:   dbClient,
		Catalog:   directory,
		Collector: catalog.NewCollector(directory, dbClient, cfg.Catalog),
		Checks:    map[string]api.HealthChecker{"database": dbClient},
	}

	var accounts billing.AccountStore
	switch cfg.StoreBackend {
	case api.BackendRedis:
		rdb, err := redisstore.Connect(ctx, cfg.Redis)
		if err != nil {
			return deps, cleanup, err
		}
		cleanup = func() { _ = rdb.Close() }

		store := redisstore.New(rdb)
		deps.Store, deps.Marks, accounts = store, store, store
		deps.Checks["redis"] = store
	default:
		deps.Store, deps.Marks, accounts = dbClient, dbClient, dbClient
	}

	verifier, err := auth.NewSupabaseVerifier(cfg.SupabaseURL, cfg.SupabaseAnonKey)
	if err != nil {
		return deps, cleanup, err
	}
	deps.Verifier = verifier

	analyzer, err := newAnalyzer(cfg)
	if err != nil {
		return deps, cleanup, err
	}
	deps.Analyzer = analyzer

	if cfg.BillingEnabled() {
		svc, err := billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.Prices)
		if err != nil {
			return deps, cleanup, err
		}
		deps.Billing = billing.NewProcessor(svc, accounts)
	} else {
		slog.Warn("stripe is not configured, billing endpoints are disabled")
	}

	return deps, cleanup, nil
}

func newAnalyzer(cfg *api.Config) (ai.Analyzer, error) {
	if cfg.AIProvider == "mock" {
		slog.Warn("using mock AI provider")
		return mock.New(), nil
	}
	return anthropic.New(anthropic.Config{
		APIKey: cfg.AnthropicAPIKey,
		Model:  cfg.AnthropicModel,
	})
}

// setupLogging configures the global slog logger with the specified level.
// Development mode logs human-readable text instead of JSON.
func setupLogging(level string, development bool) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn", "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if development {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
