package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/burka/podpulse/internal/db"
)

// defaultCategory labels feed entries that carry no category.
const defaultCategory = "General"

// ErrNothingCollected is returned when every genre failed to fetch.
var ErrNothingCollected = errors.New("no chart could be fetched")

// ChartFetcher returns the ranked entries of one genre chart.
type ChartFetcher interface {
	TopPodcasts(ctx context.Context, genre string) ([]ChartEntry, error)
}

// ChartSink stores chart observations.
type ChartSink interface {
	InsertChartPosition(ctx context.Context, p *db.ChartPosition) error
}

// CollectResult summarizes one collection run.
type CollectResult struct {
	Inserted int
	Genres   int
	Failed   []string
}

// Collector snapshots the configured genre charts into chart_positions.
type Collector struct {
	fetcher ChartFetcher
	sink    ChartSink
	country string
	genres  []string
	now     func() time.Time
}

// NewCollector creates a collector for the country and genres of cfg.
func NewCollector(fetcher ChartFetcher, sink ChartSink, cfg Config) *Collector {
	return &Collector{
		fetcher: fetcher,
		sink:    sink,
		country: cfg.Country,
		genres:  cfg.Genres,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Collect fetches every genre and records each entry with its rank. A genre
// whose feed fails is logged and skipped; a storage failure stops the run.
// All rows of one run share a capture time.
func (c *Collector) Collect(ctx context.Context) (CollectResult, error) {
	var result CollectResult
	capturedAt := c.now()

	for _, genre := range c.genres {
		entries, err := c.fetcher.TopPodcasts(ctx, genre)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			slog.Warn("chart fetch failed", "source", SourceApple, "genre", genre, "error", err)
			result.Failed = append(result.Failed, genre)
			continue
		}

		for i, e := range entries {
			category := e.Category
			if category == "" {
				category = defaultCategory
			}
			err := c.sink.InsertChartPosition(ctx, &db.ChartPosition{
				PodcastID:  e.ID,
				Source:     SourceApple,
				Country:    c.country,
				Category:   category,
				Position:   i + 1,
				CapturedAt: capturedAt,
			})
			if err != nil {
				return result, fmt.Errorf("genre %s: %w", genre, err)
			}
			result.Inserted++
		}
		result.Genres++
		slog.Info("chart collected", "source", SourceApple, "genre", genre, "entries", len(entries))
	}

	if len(c.genres) > 0 && result.Genres == 0 {
		return result, ErrNothingCollected
	}
	return result, nil
}
