package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrAlreadyTracked is returned when a user tracks a podcast twice.
var ErrAlreadyTracked = errors.New("podcast already tracked")

// ErrNotTracked is returned when untracking a podcast the user does not follow.
var ErrNotTracked = errors.New("podcast not tracked")

// IsTracked reports whether the user follows podcastID.
func (c *Client) IsTracked(ctx context.Context, userID uuid.UUID, podcastID string) (bool, error) {
	var exists bool
	err := c.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tracked_podcasts WHERE user_id = $1 AND podcast_id = $2)`,
		userID, podcastID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check tracked podcast: %w", err)
	}
	return exists, nil
}

// withAccount prefixes a content insert keyed by user $1 so the owning
// accounts row exists before the foreign key is checked. With the Redis
// counter store nothing else writes that row.
const withAccount = `
	WITH account AS (
		INSERT INTO accounts (id, plan, created_at, updated_at)
		VALUES ($1, 'free', NOW(), NOW())
		ON CONFLICT (id) DO NOTHING
	)
`

// TrackPodcast inserts a tracking relation. The usage counter is maintained
// by the quota layer, not here.
func (c *Client) TrackPodcast(ctx context.Context, p *TrackedPodcast) error {
	query := withAccount + `
		INSERT INTO tracked_podcasts (user_id, podcast_id, source, title, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, podcast_id) DO NOTHING
		RETURNING created_at
	`
	err := c.pool.QueryRow(ctx, query, p.UserID, p.PodcastID, p.Source, p.Title).Scan(&p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAlreadyTracked
		}
		return fmt.Errorf("failed to track podcast: %w", err)
	}
	return nil
}

// UntrackPodcast removes a tracking relation.
func (c *Client) UntrackPodcast(ctx context.Context, userID uuid.UUID, podcastID string) error {
	result, err := c.pool.Exec(ctx,
		`DELETE FROM tracked_podcasts WHERE user_id = $1 AND podcast_id = $2`,
		userID, podcastID,
	)
	if err != nil {
		return fmt.Errorf("failed to untrack podcast: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotTracked
	}
	return nil
}

// ListTrackedPodcasts returns the podcasts a user follows, newest first.
func (c *Client) ListTrackedPodcasts(ctx context.Context, userID uuid.UUID) ([]TrackedPodcast, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT user_id, podcast_id, source, title, created_at
		FROM tracked_podcasts
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked podcasts: %w", err)
	}

	podcasts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (TrackedPodcast, error) {
		var p TrackedPodcast
		err := row.Scan(&p.UserID, &p.PodcastID, &p.Source, &p.Title, &p.CreatedAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan tracked podcasts: %w", err)
	}
	return podcasts, nil
}

// ListChartPositions returns the latest chart observations matching f,
// ordered by capture time and then rank.
func (c *Client) ListChartPositions(ctx context.Context, f ChartFilter) ([]ChartPosition, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := c.pool.Query(ctx, `
		SELECT id, podcast_id, source, country, category, position, captured_at
		FROM chart_positions
		WHERE ($1 = '' OR source = $1)
		  AND ($2 = '' OR country = $2)
		  AND ($3 = '' OR category = $3)
		  AND ($4 = '' OR podcast_id = $4)
		ORDER BY captured_at DESC, position ASC
		LIMIT $5
	`, f.Source, f.Country, f.Category, f.PodcastID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chart positions: %w", err)
	}
	return collectChartPositions(rows)
}

// ListTrackedChartPositions returns the chart observations of the podcasts
// userID tracks, newest first.
func (c *Client) ListTrackedChartPositions(ctx context.Context, userID uuid.UUID, limit int) ([]ChartPosition, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := c.pool.Query(ctx, `
		SELECT cp.id, cp.podcast_id, cp.source, cp.country, cp.category, cp.position, cp.captured_at
		FROM chart_positions cp
		JOIN tracked_podcasts tp ON tp.podcast_id = cp.podcast_id AND tp.source = cp.source
		WHERE tp.user_id = $1
		ORDER BY cp.captured_at DESC, cp.position ASC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked chart positions: %w", err)
	}
	return collectChartPositions(rows)
}

func collectChartPositions(rows pgx.Rows) ([]ChartPosition, error) {
	positions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ChartPosition, error) {
		var p ChartPosition
		err := row.Scan(&p.ID, &p.PodcastID, &p.Source, &p.Country, &p.Category, &p.Position, &p.CapturedAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan chart positions: %w", err)
	}
	return positions, nil
}

// InsertChartPosition records one chart observation.
func (c *Client) InsertChartPosition(ctx context.Context, p *ChartPosition) error {
	if p.CapturedAt.IsZero() {
		p.CapturedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO chart_positions (podcast_id, source, country, category, position, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, captured_at
	`
	err := c.pool.QueryRow(ctx, query,
		p.PodcastID, p.Source, p.Country, p.Category, p.Position, p.CapturedAt,
	).Scan(&p.ID, &p.CapturedAt)
	if err != nil {
		return fmt.Errorf("failed to insert chart position: %w", err)
	}
	return nil
}

// CreateAnalysis persists the result of an AI analysis.
func (c *Client) CreateAnalysis(ctx context.Context, a *Analysis) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	query := withAccount + `
		INSERT INTO ai_analyses (id, user_id, kind, subject, result, created_at)
		VALUES ($2, $1, $3, $4, $5, NOW())
		RETURNING created_at
	`
	if err := c.pool.QueryRow(ctx, query, a.UserID, a.ID, a.Kind, a.Subject, a.Result).Scan(&a.CreatedAt); err != nil {
		return fmt.Errorf("failed to create analysis: %w", err)
	}
	return nil
}

// ListAnalyses returns a user's analyses, newest first.
func (c *Client) ListAnalyses(ctx context.Context, userID uuid.UUID, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := c.pool.Query(ctx, `
		SELECT id, user_id, kind, subject, result, created_at
		FROM ai_analyses
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	analyses, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Analysis, error) {
		var a Analysis
		err := row.Scan(&a.ID, &a.UserID, &a.Kind, &a.Subject, &a.Result, &a.CreatedAt)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan analyses: %w", err)
	}
	return analyses, nil
}
