package api

import (
	"time"

	"github.com/burka/podpulse/internal/db"
	"github.com/burka/podpulse/internal/quota"
)

// Limits is the wire form of a quota snapshot. Unbounded ceilings are null.
type Limits struct {
	Plan            string `json:"plan" doc:"Current plan" example:"free"`
	PodcastsTracked int64  `json:"podcastsTracked" doc:"Podcasts currently tracked"`
	AIAnalysesUsed  int64  `json:"aiAnalysesUsed" doc:"AI analyses used this period"`
	ChartsAccessed  int64  `json:"chartsAccessed" doc:"Chart pages accessed this period"`
	MaxPodcasts     *int64 `json:"maxPodcasts" nullable:"true" doc:"Podcast ceiling, null when unlimited"`
	MaxAIAnalyses   *int64 `json:"maxAiAnalyses" nullable:"true" doc:"AI analysis ceiling, null when unlimited"`
	MaxCharts       *int64 `json:"maxCharts" nullable:"true" doc:"Chart access ceiling, null when unlimited"`
}

func newLimits(s quota.Snapshot) Limits {
	return Limits{
		Plan:            string(s.Plan),
		PodcastsTracked: s.PodcastsTracked,
		AIAnalysesUsed:  s.AIAnalysesUsed,
		ChartsAccessed:  s.ChartsAccessed,
		MaxPodcasts:     s.MaxPodcasts.Ptr(),
		MaxAIAnalyses:   s.MaxAIAnalyses.Ptr(),
		MaxCharts:       s.MaxChartAccess.Ptr(),
	}
}

// Meter is the progress-bar view of one counter.
type Meter struct {
	Used      int64   `json:"used"`
	Max       *int64  `json:"max" nullable:"true"`
	Percent   float64 `json:"percent"`
	NearLimit bool    `json:"nearLimit"`
	AtLimit   bool    `json:"atLimit"`
}

func newMeters(s quota.Snapshot) map[string]Meter {
	meters := make(map[string]Meter)
	for action, m := range s.Meters() {
		meters[string(action)] = Meter{
			Used:      m.Used,
			Max:       m.Max.Ptr(),
			Percent:   m.Percent,
			NearLimit: m.NearLimit,
			AtLimit:   m.AtLimit,
		}
	}
	return meters
}

// LimitsResponse is the body of GET /v1/account/limits and of every frame
// pushed on the live limits feed.
type LimitsResponse struct {
	Limits Limits           `json:"limits"`
	Meters map[string]Meter `json:"meters" doc:"Meters keyed by action type"`
}

func newLimitsResponse(s quota.Snapshot) LimitsResponse {
	return LimitsResponse{Limits: newLimits(s), Meters: newMeters(s)}
}

// TrackedPodcast is a podcast followed by the user.
type TrackedPodcast struct {
	PodcastID string `json:"podcastId"`
	Source    string `json:"source" enum:"spotify,apple,other"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt"`
}

func newTrackedPodcast(p db.TrackedPodcast) TrackedPodcast {
	return TrackedPodcast{
		PodcastID: p.PodcastID,
		Source:    p.Source,
		Title:     p.Title,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

// TrackPodcastRequest is the body of POST /v1/podcasts/tracked.
type TrackPodcastRequest struct {
	PodcastID string `json:"podcastId" minLength:"1" maxLength:"200" doc:"Catalog id of the podcast"`
	Source    string `json:"source" enum:"spotify,apple,other" default:"other"`
	Title     string `json:"title" maxLength:"500"`
}

// TrackPodcastResponse is returned after a podcast is tracked.
type TrackPodcastResponse struct {
	Podcast TrackedPodcast `json:"podcast"`
	Limits  Limits         `json:"limits"`
}

// ListTrackedResponse is the body of GET /v1/podcasts/tracked.
type ListTrackedResponse struct {
	Podcasts []TrackedPodcast `json:"podcasts"`
}

// UntrackResponse is returned after a podcast is untracked.
type UntrackResponse struct {
	Status string `json:"status" example:"untracked"`
}

// CatalogPodcast is a podcast directory search result.
type CatalogPodcast struct {
	PodcastID string `json:"podcastId" doc:"Pass as podcastId to track the podcast"`
	Source    string `json:"source"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Category  string `json:"category"`
	ImageURL  string `json:"imageUrl,omitempty"`
	FeedURL   string `json:"feedUrl,omitempty"`
}

// SearchResponse is the body of GET /v1/podcasts/search.
type SearchResponse struct {
	Results []CatalogPodcast `json:"results"`
}

// ChartPosition is one observed rank in a platform chart.
type ChartPosition struct {
	PodcastID  string `json:"podcastId"`
	Source     string `json:"source"`
	Country    string `json:"country"`
	Category   string `json:"category"`
	Position   int    `json:"position"`
	CapturedAt string `json:"capturedAt"`
}

func newChartPosition(p db.ChartPosition) ChartPosition {
	return ChartPosition{
		PodcastID:  p.PodcastID,
		Source:     p.Source,
		Country:    p.Country,
		Category:   p.Category,
		Position:   p.Position,
		CapturedAt: p.CapturedAt.Format(time.RFC3339),
	}
}

// ChartsResponse is the body of GET /v1/charts.
type ChartsResponse struct {
	Charts []ChartPosition `json:"charts"`
	Limits Limits          `json:"limits"`
}

// AnalysisRequest is the body of POST /v1/ai/analyses.
type AnalysisRequest struct {
	Kind    string `json:"kind" enum:"episode,cover,trends"`
	Subject string `json:"subject" minLength:"1" maxLength:"2000" doc:"Podcast or episode title, or cover image URL"`
	Context string `json:"context,omitempty" maxLength:"8000" doc:"Optional extra context such as chart history"`
}

// Analysis is a stored AI analysis.
type Analysis struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Subject   string `json:"subject"`
	Result    string `json:"result"`
	CreatedAt string `json:"createdAt"`
}

func newAnalysis(a db.Analysis) Analysis {
	return Analysis{
		ID:        a.ID.String(),
		Kind:      a.Kind,
		Subject:   a.Subject,
		Result:    a.Result,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

// AnalysisResponse is returned after an analysis completes.
type AnalysisResponse struct {
	Analysis Analysis `json:"analysis"`
	Limits   Limits   `json:"limits"`
}

// ListAnalysesResponse is the body of GET /v1/ai/analyses.
type ListAnalysesResponse struct {
	Analyses []Analysis `json:"analyses"`
}

// CheckoutRequest is the body of POST /v1/billing/checkout.
type CheckoutRequest struct {
	PlanID    string `json:"planId" enum:"starter,pro,agency"`
	ReturnURL string `json:"returnUrl,omitempty" format:"uri" doc:"Page to return to; defaults to the billing settings page"`
}

// PortalRequest is the body of POST /v1/billing/portal.
type PortalRequest struct {
	ReturnURL string `json:"returnUrl,omitempty" format:"uri"`
}

// RedirectResponse carries a Stripe-hosted URL.
type RedirectResponse struct {
	URL string `json:"url" format:"uri"`
}

// SyncResponse is the body of POST /v1/billing/sync.
type SyncResponse struct {
	Plan string `json:"plan"`
}

// ResetResponse is the body of POST /internal/cron/reset-counters.
type ResetResponse struct {
	ResetCount int64 `json:"resetCount"`
	Ran        bool  `json:"ran"`
}

// CollectResponse is the body of POST /internal/cron/collect-charts.
type CollectResponse struct {
	Inserted int      `json:"inserted"`
	Genres   int      `json:"genres"`
	Failed   []string `json:"failed"`
}

// WebhookResponse acknowledges a Stripe webhook.
type WebhookResponse struct {
	Received bool `json:"received"`
}
