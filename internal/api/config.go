package api

import (
	"fmt"
	"time"

	"github.com/burka/podpulse/internal/billing"
	"github.com/burka/podpulse/internal/catalog"
	"github.com/burka/podpulse/internal/redisstore"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all configuration for the server. It is populated from the
// environment by github.com/caarlos0/env.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	Env      string `env:"ENV" envDefault:"production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL  string `env:"DATABASE_URL,required"`
	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgres"`
	Redis        redisstore.Config

	SupabaseURL     string `env:"SUPABASE_URL"`
	SupabaseAnonKey string `env:"SUPABASE_ANON_KEY"`

	CronSecret         string        `env:"CRON_SECRET"`
	ResetInterval      time.Duration `env:"RESET_INTERVAL" envDefault:"720h"`
	ResetTickerEnabled bool          `env:"RESET_TICKER_ENABLED" envDefault:"false"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	Prices              billing.PriceConfig
	BillingReturnURL    string `env:"BILLING_RETURN_URL" envDefault:"http://localhost:5173/settings/billing"`

	Catalog catalog.Config

	AIProvider      string `env:"AI_PROVIDER" envDefault:"anthropic"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `env:"ANTHROPIC_MODEL"`

	MetricsUsername string `env:"METRICS_USERNAME"`
	MetricsPassword string `env:"METRICS_PASSWORD"`

	DashboardDir       string        `env:"DASHBOARD_DIR"`
	RateLimitRPS       float64       `env:"RATE_LIMIT_RPS" envDefault:"10"`
	LiveLimitsInterval time.Duration `env:"LIVE_LIMITS_INTERVAL" envDefault:"5s"`
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_BACKEND=%s", BackendRedis)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.AIProvider {
	case "mock":
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER=anthropic")
		}
	default:
		return fmt.Errorf("unknown AI_PROVIDER %q", c.AIProvider)
	}

	if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
		return fmt.Errorf("SUPABASE_URL and SUPABASE_ANON_KEY are required")
	}
	if c.ResetInterval <= 0 {
		return fmt.Errorf("RESET_INTERVAL must be positive")
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive")
	}
	if c.LiveLimitsInterval <= 0 {
		return fmt.Errorf("LIVE_LIMITS_INTERVAL must be positive")
	}
	return c.Catalog.Validate()
}

// BillingEnabled reports whether Stripe is configured.
func (c *Config) BillingEnabled() bool {
	return c.StripeSecretKey != "" && c.StripeWebhookSecret != ""
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
