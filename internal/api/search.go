package api

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"
)

// SearchService looks podcasts up in the public directory. Search is not
// metered; tracking a result is.
type SearchService struct {
	catalog Catalog
}

// NewSearchService creates a new SearchService.
func NewSearchService(catalog Catalog) *SearchService {
	return &SearchService{catalog: catalog}
}

// Search handles GET /v1/podcasts/search
func (s *SearchService) Search(ctx context.Context, input *SearchPodcastsInput) (*SearchPodcastsOutput, error) {
	if _, ok := GetUserID(ctx); !ok {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	podcasts, err := s.catalog.Search(ctx, input.Query, input.Limit)
	if err != nil {
		slog.Warn("catalog search failed", "query", input.Query, "error", err)
		return nil, huma.Error502BadGateway("podcast catalog unavailable")
	}

	resp := SearchResponse{Results: make([]CatalogPodcast, 0, len(podcasts))}
	for _, p := range podcasts {
		resp.Results = append(resp.Results, CatalogPodcast{
			PodcastID: p.ID,
			Source:    p.Source,
			Title:     p.Title,
			Author:    p.Author,
			Category:  p.Category,
			ImageURL:  p.ImageURL,
			FeedURL:   p.FeedURL,
		})
	}
	return &SearchPodcastsOutput{Body: resp}, nil
}
