package api

import (
	"context"

	"github.com/burka/podpulse/internal/catalog"
	"github.com/burka/podpulse/internal/db"
	"github.com/google/uuid"
)

// ContentStore defines the database operations required by the API handlers
// beyond usage counters.
type ContentStore interface {
	IsTracked(ctx context.Context, userID uuid.UUID, podcastID string) (bool, error)
	TrackPodcast(ctx context.Context, p *db.TrackedPodcast) error
	UntrackPodcast(ctx context.Context, userID uuid.UUID, podcastID string) error
	ListTrackedPodcasts(ctx context.Context, userID uuid.UUID) ([]db.TrackedPodcast, error)
	ListChartPositions(ctx context.Context, f db.ChartFilter) ([]db.ChartPosition, error)
	ListTrackedChartPositions(ctx context.Context, userID uuid.UUID, limit int) ([]db.ChartPosition, error)
	CreateAnalysis(ctx context.Context, a *db.Analysis) error
	ListAnalyses(ctx context.Context, userID uuid.UUID, limit int) ([]db.Analysis, error)
}

// Catalog searches the public podcast directory.
type Catalog interface {
	Search(ctx context.Context, term string, limit int) ([]catalog.Podcast, error)
}

// ChartCollector snapshots platform charts into chart_positions.
type ChartCollector interface {
	Collect(ctx context.Context) (catalog.CollectResult, error)
}

// HealthChecker is a dependency probed by GET /health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

var (
	_ ContentStore   = (*db.Client)(nil)
	_ Catalog        = (*catalog.Client)(nil)
	_ ChartCollector = (*catalog.Collector)(nil)
)
