// Package api provides the HTTP API of podpulse.
//
// Operations with typed input and output are registered on huma and appear
// in the OpenAPI document served at /openapi.json and /openapi.yaml. Plain
// chi handlers cover the endpoints huma does not fit:
//   - GET /v1/account/limits/live - WebSocket feed of the user's limits
//   - POST /webhooks/stripe - Stripe events, verified by signature
//   - POST /internal/cron/reset-counters - monthly reset for the scheduler
//   - GET /metrics - Prometheus metrics
//
// # Metered operations
//
// Tracking a podcast, running an AI analysis and listing charts each consume
// one unit of the matching plan limit through quota.Guard before doing any
// work. Denials map to:
//   - 403 {error, limits, upgradeRequired: true} when the limit is reached
//   - 503 {error, code: "STORE_UNAVAILABLE"} when usage cannot be verified
//
// # Error Handling
//
// Plain handlers use WriteError with the Code* constants. huma operations
// return huma errors or *QuotaError.
package api

import "github.com/danielgtaylor/huma/v2"

const (
	apiTitle   = "Podpulse API"
	apiVersion = "1.0.0"
)

// OpenAPIInfo returns the OpenAPI metadata for the API.
func OpenAPIInfo() huma.OpenAPI {
	return huma.OpenAPI{
		OpenAPI: "3.1.0",
		Info: &huma.Info{
			Title:       apiTitle,
			Version:     apiVersion,
			Description: "Podcast tracking, chart history and AI analysis.\n\nUsage of metered features is limited by the subscription plan; limit responses carry `upgradeRequired: true`.",
			Contact: &huma.Contact{
				Name: "Podpulse",
				URL:  "https://github.com/burka/podpulse",
			},
		},
		Servers: []*huma.Server{
			{
				URL:         "https://api.podpulse.app",
				Description: "Production server",
			},
			{
				URL:         "http://localhost:8080",
				Description: "Local development server",
			},
		},
		Tags: []*huma.Tag{
			{
				Name:        "Account",
				Description: "Plan limits and usage",
			},
			{
				Name:        "Podcasts",
				Description: "Track and untrack podcasts",
			},
			{
				Name:        "Charts",
				Description: "Chart position history",
			},
			{
				Name:        "AI",
				Description: "AI analyses of episodes, covers and trends",
			},
			{
				Name:        "Billing",
				Description: "Subscription checkout and management",
			},
			{
				Name:        "Health",
				Description: "Health check endpoints",
			},
		},
	}
}

// SecuritySchemes returns the security scheme definitions.
func SecuritySchemes() map[string]*huma.SecurityScheme {
	return map[string]*huma.SecurityScheme{
		"bearerAuth": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "Supabase access token of the signed-in user, sent as 'Bearer <token>'.",
		},
	}
}
