package api

import (
	gocontext "context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/burka/podpulse/internal/auth"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
)

// Services holds all the service instances used by the API.
// Billing is nil when Stripe is not configured, Search when no catalog is.
type Services struct {
	Account  *AccountService
	Podcasts *PodcastService
	Analyses *AnalysisService
	Charts   *ChartService
	Search   *SearchService
	Export   *ExportService
	Billing  *BillingService
	Checks   map[string]HealthChecker
}

// newHumaAPI creates the huma API with OpenAPI metadata and security schemes.
func newHumaAPI(router chi.Router) huma.API {
	config := huma.DefaultConfig(apiTitle, apiVersion)
	config.Info = OpenAPIInfo().Info
	config.Tags = OpenAPIInfo().Tags
	config.Servers = OpenAPIInfo().Servers

	humaAPI := humachi.New(router, config)

	if humaAPI.OpenAPI().Components.SecuritySchemes == nil {
		humaAPI.OpenAPI().Components.SecuritySchemes = make(map[string]*huma.SecurityScheme)
	}
	for name, scheme := range SecuritySchemes() {
		humaAPI.OpenAPI().Components.SecuritySchemes[name] = scheme
	}
	return humaAPI
}

// RegisterRoutes registers all huma routes with their service handlers.
// It sets up the huma API with OpenAPI documentation and security schemes,
// then registers all endpoints with auth and rate limiting.
func RegisterRoutes(router chi.Router, services *Services, verifier auth.Verifier, rateLimiter *RateLimiter) huma.API {
	humaAPI := newHumaAPI(router)

	// Register OpenAPI spec endpoints (unauthenticated)
	router.Get("/openapi.json", handleOpenAPIJSON(humaAPI))
	router.Get("/openapi.yaml", handleOpenAPIYAML(humaAPI))

	registerOperations(humaAPI, services, huma.Middlewares{
		humaAuthMiddleware(verifier),
		rateLimiter.HumaMiddleware(),
	})

	return humaAPI
}

// registerOperations registers every huma operation. authenticated is
// applied to all /v1 operations.
func registerOperations(humaAPI huma.API, services *Services, authenticated huma.Middlewares) {
	securityRequirement := []map[string][]string{{"bearerAuth": {}}}

	// Health check (no auth, no rate limit)
	huma.Register(humaAPI, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status. Does not require authentication.",
		Tags:        []string{"Health"},
	}, func(ctx gocontext.Context, input *HealthCheckInput) (*HealthCheckOutput, error) {
		for name, check := range services.Checks {
			if err := check.Health(ctx); err != nil {
				slog.Error("health check failed", "dependency", name, "error", err)
				return nil, huma.Error503ServiceUnavailable(fmt.Sprintf("%s health check failed", name))
			}
		}
		out := &HealthCheckOutput{}
		out.Body.Status = "ok"
		return out, nil
	})

	// Account
	huma.Register(humaAPI, huma.Operation{
		OperationID: "getLimits",
		Method:      http.MethodGet,
		Path:        "/v1/account/limits",
		Summary:     "Get plan limits and usage",
		Description: "Returns the current plan, usage counters, ceilings (null when unlimited) and UI meters. Creates a free account on first access.",
		Tags:        []string{"Account"},
		Security:    securityRequirement,
		Middlewares: authenticated,
	}, services.Account.GetLimits)

	// Podcasts
	huma.Register(humaAPI, huma.Operation{
		OperationID: "listTrackedPodcasts",
		Method:      http.MethodGet,
		Path:        "/v1/podcasts/tracked",
		Summary:     "List tracked podcasts",
		Tags:        []string{"Podcasts"},
		Security:    securityRequirement,
		Middlewares: authenticated,
	}, services.Podcasts.ListTracked)

	huma.Register(humaAPI, huma.Operation{
		OperationID:   "trackPodcast",
		Method:        http.MethodPost,
		Path:          "/v1/podcasts/tracked",
		Summary:       "Track a podcast",
		Description:   "Consumes one unit of the track_podcast limit. Returns 403 with upgradeRequired when the plan limit is reached and 409 when the podcast is already tracked.",
		Tags:          []string{"Podcasts"},
		Security:      securityRequirement,
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusConflict, http.StatusServiceUnavailable},
		Middlewares:   authenticated,
	}, services.Podcasts.Track)

	huma.Register(humaAPI, huma.Operation{
		OperationID: "untrackPodcast",
		Method:      http.MethodDelete,
		Path:        "/v1/podcasts/tracked/{podcastId}",
		Summary:     "Stop tracking a podcast",
		Description: "Removes the podcast and frees one unit of the track_podcast limit.",
		Tags:        []string{"Podcasts"},
		Security:    securityRequirement,
		Middlewares: authenticated,
	}, services.Podcasts.Untrack)

	if services.Search != nil {
		huma.Register(humaAPI, huma.Operation{
			OperationID: "searchPodcasts",
			Method:      http.MethodGet,
			Path:        "/v1/podcasts/search",
			Summary:     "Search the podcast directory",
			Description: "Looks podcasts up in Apple Podcasts. Not metered.",
			Tags:        []string{"Podcasts"},
			Security:    securityRequirement,
			Errors:      []int{http.StatusBadGateway},
			Middlewares: authenticated,
		}, services.Search.Search)
	}

	// Charts
	huma.Register(humaAPI, huma.Operation{
		OperationID: "listCharts",
		Method:      http.MethodGet,
		Path:        "/v1/charts",
		Summary:     "List chart positions",
		Description: "Consumes one unit of the access_charts limit. Page size is capped by the plan.",
		Tags:        []string{"Charts"},
		Security:    securityRequirement,
		Errors:      []int{http.StatusForbidden, http.StatusServiceUnavailable},
		Middlewares: authenticated,
	}, services.Charts.List)

	// AI
	huma.Register(humaAPI, huma.Operation{
		OperationID:   "createAnalysis",
		Method:        http.MethodPost,
		Path:          "/v1/ai/analyses",
		Summary:       "Run an AI analysis",
		Description:   "Consumes one unit of the ai_analysis limit. The unit is returned when the analysis fails.",
		Tags:          []string{"AI"},
		Security:      securityRequirement,
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusBadGateway, http.StatusServiceUnavailable},
		Middlewares:   authenticated,
	}, services.Analyses.Create)

	huma.Register(humaAPI, huma.Operation{
		OperationID: "listAnalyses",
		Method:      http.MethodGet,
		Path:        "/v1/ai/analyses",
		Summary:     "List past analyses",
		Tags:        []string{"AI"},
		Security:    securityRequirement,
		Middlewares: authenticated,
	}, services.Analyses.List)

	// Export
	huma.Register(humaAPI, huma.Operation{
		OperationID: "exportData",
		Method:      http.MethodGet,
		Path:        "/v1/export",
		Summary:     "Export data",
		Description: "Downloads tracked podcasts, their chart history or past analyses as CSV or JSON. Paid plans only; free plans get 403 with upgradeRequired.",
		Tags:        []string{"Account"},
		Security:    securityRequirement,
		Errors:      []int{http.StatusForbidden, http.StatusServiceUnavailable},
		Middlewares: authenticated,
	}, services.Export.Export)

	if services.Billing == nil {
		return
	}

	// Billing
	huma.Register(humaAPI, huma.Operation{
		OperationID: "createCheckout",
		Method:      http.MethodPost,
		Path:        "/v1/billing/checkout",
		Summary:     "Start a subscription checkout",
		Description: "Returns a Stripe Checkout URL for the requested plan.",
		Tags:        []string{"Billing"},
		Security:    securityRequirement,
		Middlewares: authenticated,
	}, services.Billing.Checkout)

	huma.Register(humaAPI, huma.Operation{
		OperationID: "createPortal",
		Method:      http.MethodPost,
		Path:        "/v1/billing/portal",
		Summary:     "Open the billing portal",
		Description: "Returns a Stripe Customer Portal URL. Fails with 400 before the first checkout.",
		Tags:        []string{"Billing"},
		Security:    securityRequirement,
		Middlewares: authenticated,
	}, services.Billing.Portal)

	huma.Register(humaAPI, huma.Operation{
		OperationID: "syncSubscription",
		Method:      http.MethodPost,
		Path:        "/v1/billing/sync",
		Summary:     "Sync subscription",
		Description: "Re-reads the active Stripe subscription and updates the plan.",
		Tags:        []string{"Billing"},
		Security:    securityRequirement,
		Middlewares: authenticated,
	}, services.Billing.Sync)
}

// humaAuthMiddleware creates a huma middleware that verifies the access
// token and sets the principal in the context.
func humaAuthMiddleware(verifier auth.Verifier) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		authHeader := ctx.Header("Authorization")
		if authHeader == "" {
			writeHumaError(ctx, http.StatusUnauthorized, "missing authorization header", CodeUnauthorized)
			return
		}

		token, ok := bearerToken(authHeader)
		if !ok {
			writeHumaError(ctx, http.StatusUnauthorized, "invalid authorization header format", CodeUnauthorized)
			return
		}

		principal, err := verifier.Verify(ctx.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrProviderUnavailable) {
				slog.Error("identity provider unavailable", "error", err)
				writeHumaError(ctx, http.StatusServiceUnavailable, "authentication temporarily unavailable", CodeUnavailable)
				return
			}
			writeHumaError(ctx, http.StatusUnauthorized, "invalid access token", CodeUnauthorized)
			return
		}

		newCtx := WithPrincipal(ctx.Context(), principal)
		next(&humaContextWrapper{inner: ctx, overrideCtx: newCtx})
	}
}

// writeHumaError writes a JSON error response from huma middleware.
func writeHumaError(ctx huma.Context, status int, msg, code string) {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.SetStatus(status)
	_, _ = fmt.Fprintf(ctx.BodyWriter(), `{"error":%q,"code":%q}`, msg, code)
}

// humaContextWrapper wraps a huma.Context with a custom gocontext.Context.
type humaContextWrapper struct {
	inner       huma.Context
	overrideCtx gocontext.Context //nolint:containedctx // Required to override embedded huma.Context
}

// Implement all huma.Context methods by delegating to inner, except Context()
func (c *humaContextWrapper) Context() gocontext.Context                 { return c.overrideCtx }
func (c *humaContextWrapper) Operation() *huma.Operation                 { return c.inner.Operation() }
func (c *humaContextWrapper) TLS() *tls.ConnectionState                  { return c.inner.TLS() }
func (c *humaContextWrapper) Version() huma.ProtoVersion                 { return c.inner.Version() }
func (c *humaContextWrapper) Method() string                             { return c.inner.Method() }
func (c *humaContextWrapper) Host() string                               { return c.inner.Host() }
func (c *humaContextWrapper) RemoteAddr() string                         { return c.inner.RemoteAddr() }
func (c *humaContextWrapper) URL() url.URL                               { return c.inner.URL() }
func (c *humaContextWrapper) Param(name string) string                   { return c.inner.Param(name) }
func (c *humaContextWrapper) Query(name string) string                   { return c.inner.Query(name) }
func (c *humaContextWrapper) Header(name string) string                  { return c.inner.Header(name) }
func (c *humaContextWrapper) EachHeader(cb func(name, value string))     { c.inner.EachHeader(cb) }
func (c *humaContextWrapper) BodyReader() io.Reader                      { return c.inner.BodyReader() }
func (c *humaContextWrapper) GetMultipartForm() (*multipart.Form, error) { return c.inner.GetMultipartForm() }
func (c *humaContextWrapper) SetReadDeadline(t time.Time) error          { return c.inner.SetReadDeadline(t) }
func (c *humaContextWrapper) SetStatus(code int)                         { c.inner.SetStatus(code) }
func (c *humaContextWrapper) Status() int                                { return c.inner.Status() }
func (c *humaContextWrapper) SetHeader(name, value string)               { c.inner.SetHeader(name, value) }
func (c *humaContextWrapper) AppendHeader(name, value string)            { c.inner.AppendHeader(name, value) }
func (c *humaContextWrapper) BodyWriter() io.Writer                      { return c.inner.BodyWriter() }
