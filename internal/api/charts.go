package api

import (
	"context"

	"github.com/burka/podpulse/internal/db"
	"github.com/burka/podpulse/internal/quota"
	"github.com/danielgtaylor/huma/v2"
)

// maxChartRows caps chart pages for plans with unlimited chart access.
const maxChartRows = 200

// ChartService serves chart position history. Every page view consumes one
// access_charts unit.
type ChartService struct {
	guard   *quota.Guard
	content ContentStore
}

// NewChartService creates a new ChartService.
func NewChartService(guard *quota.Guard, content ContentStore) *ChartService {
	return &ChartService{guard: guard, content: content}
}

// List handles GET /v1/charts
// Free plans see the top 10 rows, starter the top 50.
func (s *ChartService) List(ctx context.Context, input *ListChartsInput) (*ListChartsOutput, error) {
	userID, ok := GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	snap, err := s.guard.Allow(ctx, userID, quota.ActionAccessCharts)
	if err != nil {
		return nil, quotaError(err)
	}

	positions, err := s.content.ListChartPositions(ctx, db.ChartFilter{
		Source:    input.Source,
		Country:   input.Country,
		Category:  input.Category,
		PodcastID: input.PodcastID,
		Limit:     chartRows(input.Limit, snap.MaxChartAccess),
	})
	if err != nil {
		_ = s.guard.Release(ctx, userID, quota.ActionAccessCharts)
		return nil, huma.Error500InternalServerError("failed to list charts", err)
	}

	resp := ChartsResponse{
		Charts: make([]ChartPosition, 0, len(positions)),
		Limits: newLimits(snap),
	}
	for _, p := range positions {
		resp.Charts = append(resp.Charts, newChartPosition(p))
	}
	return &ListChartsOutput{Body: resp}, nil
}

// chartRows caps the requested page size at the plan's chart ceiling.
func chartRows(requested int, ceiling quota.Ceiling) int {
	limit := maxChartRows
	if n, finite := ceiling.Max(); finite && n < int64(limit) {
		limit = int(n)
	}
	if requested > 0 && requested < limit {
		return requested
	}
	return limit
}
