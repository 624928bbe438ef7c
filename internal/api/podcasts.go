package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/burka/podpulse/internal/db"
	"github.com/burka/podpulse/internal/quota"
	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
)

// PodcastService handles podcast tracking. Tracking is metered by the
// track_podcast ceiling; untracking gives the unit back.
type PodcastService struct {
	guard   *quota.Guard
	content ContentStore
}

// NewPodcastService creates a new PodcastService.
func NewPodcastService(guard *quota.Guard, content ContentStore) *PodcastService {
	return &PodcastService{guard: guard, content: content}
}

// ListTracked handles GET /v1/podcasts/tracked
func (s *PodcastService) ListTracked(ctx context.Context, input *ListTrackedInput) (*ListTrackedOutput, error) {
	userID, ok := GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	podcasts, err := s.content.ListTrackedPodcasts(ctx, userID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list tracked podcasts", err)
	}

	resp := ListTrackedResponse{Podcasts: make([]TrackedPodcast, 0, len(podcasts))}
	for _, p := range podcasts {
		resp.Podcasts = append(resp.Podcasts, newTrackedPodcast(p))
	}
	return &ListTrackedOutput{Body: resp}, nil
}

// Track handles POST /v1/podcasts/tracked
// A podcast that is already tracked is rejected with 409 without consuming quota.
func (s *PodcastService) Track(ctx context.Context, input *TrackPodcastInput) (*TrackPodcastOutput, error) {
	userID, ok := GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("unauthorized")
	}
	req := input.Body

	tracked, err := s.content.IsTracked(ctx, userID, req.PodcastID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to check tracked podcasts", err)
	}
	if tracked {
		return nil, huma.Error409Conflict("podcast is already tracked")
	}

	snap, err := s.guard.Allow(ctx, userID, quota.ActionTrackPodcast)
	if err != nil {
		return nil, quotaError(err)
	}

	podcast := &db.TrackedPodcast{
		UserID:    userID,
		PodcastID: req.PodcastID,
		Source:    req.Source,
		Title:     req.Title,
	}
	if err := s.content.TrackPodcast(ctx, podcast); err != nil {
		s.release(ctx, userID)
		if errors.Is(err, db.ErrAlreadyTracked) {
			return nil, huma.Error409Conflict("podcast is already tracked")
		}
		return nil, huma.Error500InternalServerError("failed to track podcast", err)
	}

	slog.Info("podcast tracked", "user_id", userID, "podcast_id", req.PodcastID)
	return &TrackPodcastOutput{
		Body: TrackPodcastResponse{
			Podcast: newTrackedPodcast(*podcast),
			Limits:  newLimits(snap),
		},
	}, nil
}

// Untrack handles DELETE /v1/podcasts/tracked/{podcastId}
func (s *PodcastService) Untrack(ctx context.Context, input *UntrackPodcastInput) (*UntrackPodcastOutput, error) {
	userID, ok := GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	if err := s.content.UntrackPodcast(ctx, userID, input.PodcastID); err != nil {
		if errors.Is(err, db.ErrNotTracked) {
			return nil, huma.Error404NotFound("podcast is not tracked")
		}
		return nil, huma.Error500InternalServerError("failed to untrack podcast", err)
	}
	s.release(ctx, userID)

	return &UntrackPodcastOutput{Body: UntrackResponse{Status: "untracked"}}, nil
}

// release gives back a track_podcast unit. Failures are logged by the guard.
func (s *PodcastService) release(ctx context.Context, userID uuid.UUID) {
	_ = s.guard.Release(ctx, userID, quota.ActionTrackPodcast)
}
