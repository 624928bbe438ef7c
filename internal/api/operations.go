package api

// Huma input/output types for API operations.
// These wrap the core types with path parameters, query parameters, and body.

// --- Account ---

// GetLimitsInput is the input for GET /v1/account/limits.
type GetLimitsInput struct{}

// GetLimitsOutput is the output for GET /v1/account/limits.
type GetLimitsOutput struct {
	Body LimitsResponse
}

// --- Podcasts ---

// ListTrackedInput is the input for GET /v1/podcasts/tracked.
type ListTrackedInput struct{}

// ListTrackedOutput is the output for GET /v1/podcasts/tracked.
type ListTrackedOutput struct {
	Body ListTrackedResponse
}

// TrackPodcastInput is the input for POST /v1/podcasts/tracked.
type TrackPodcastInput struct {
	Body TrackPodcastRequest
}

// TrackPodcastOutput is the output for POST /v1/podcasts/tracked.
type TrackPodcastOutput struct {
	Body TrackPodcastResponse
}

// UntrackPodcastInput is the input for DELETE /v1/podcasts/tracked/{podcastId}.
type UntrackPodcastInput struct {
	PodcastID string `path:"podcastId" minLength:"1" doc:"Catalog id of the podcast"`
}

// UntrackPodcastOutput is the output for DELETE /v1/podcasts/tracked/{podcastId}.
type UntrackPodcastOutput struct {
	Body UntrackResponse
}

// SearchPodcastsInput is the input for GET /v1/podcasts/search.
type SearchPodcastsInput struct {
	Query string `query:"q" required:"true" minLength:"1" maxLength:"200" doc:"Title or author to search for"`
	Limit int    `query:"limit" minimum:"1" maximum:"50" default:"20"`
}

// SearchPodcastsOutput is the output for GET /v1/podcasts/search.
type SearchPodcastsOutput struct {
	Body SearchResponse
}

// --- Charts ---

// ListChartsInput is the input for GET /v1/charts.
type ListChartsInput struct {
	Source    string `query:"source" enum:"spotify,apple" doc:"Chart platform"`
	Country   string `query:"country" maxLength:"2" doc:"ISO country code"`
	Category  string `query:"category" doc:"Chart category"`
	PodcastID string `query:"podcastId" doc:"Only positions of this podcast"`
	Limit     int    `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Rows to return, capped by plan"`
}

// ListChartsOutput is the output for GET /v1/charts.
type ListChartsOutput struct {
	Body ChartsResponse
}

// --- AI ---

// CreateAnalysisInput is the input for POST /v1/ai/analyses.
type CreateAnalysisInput struct {
	Body AnalysisRequest
}

// CreateAnalysisOutput is the output for POST /v1/ai/analyses.
type CreateAnalysisOutput struct {
	Body AnalysisResponse
}

// ListAnalysesInput is the input for GET /v1/ai/analyses.
type ListAnalysesInput struct {
	Limit int `query:"limit" minimum:"1" maximum:"100" default:"20"`
}

// ListAnalysesOutput is the output for GET /v1/ai/analyses.
type ListAnalysesOutput struct {
	Body ListAnalysesResponse
}

// --- Export ---

// ExportInput is the input for GET /v1/export.
type ExportInput struct {
	Type   string `query:"type" enum:"podcasts,charts,analyses" default:"podcasts"`
	Format string `query:"format" enum:"csv,json" default:"csv"`
}

// ExportOutput is a file download.
type ExportOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

// --- Billing ---

// CheckoutInput is the input for POST /v1/billing/checkout.
type CheckoutInput struct {
	Body CheckoutRequest
}

// PortalInput is the input for POST /v1/billing/portal.
type PortalInput struct {
	Body *PortalRequest `required:"false"`
}

// RedirectOutput is the output of checkout and portal.
type RedirectOutput struct {
	Body RedirectResponse
}

// SyncInput is the input for POST /v1/billing/sync.
type SyncInput struct{}

// SyncOutput is the output for POST /v1/billing/sync.
type SyncOutput struct {
	Body SyncResponse
}

// --- Health ---

// HealthCheckInput is the input for GET /health.
type HealthCheckInput struct {
}

// HealthCheckOutput is the output for GET /health.
type HealthCheckOutput struct {
	Body struct {
		Status string `json:"status" doc:"Health status" example:"ok"`
	}
}
