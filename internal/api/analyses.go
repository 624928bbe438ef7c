package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/burka/podpulse/internal/ai"
	"github.com/burka/podpulse/internal/db"
	"github.com/burka/podpulse/internal/quota"
	"github.com/danielgtaylor/huma/v2"
)

// AnalysisService runs metered AI analyses.
type AnalysisService struct {
	guard    *quota.Guard
	content  ContentStore
	analyzer ai.Analyzer
}

// NewAnalysisService creates a new AnalysisService.
func NewAnalysisService(guard *quota.Guard, content ContentStore, analyzer ai.Analyzer) *AnalysisService {
	return &AnalysisService{guard: guard, content: content, analyzer: analyzer}
}

// Create handles POST /v1/ai/analyses
// One ai_analysis unit is consumed before the model is called and released
// again if the analysis cannot be produced or stored.
func (s *AnalysisService) Create(ctx context.Context, input *CreateAnalysisInput) (*CreateAnalysisOutput, error) {
	userID, ok := GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("unauthorized")
	}
	req := input.Body

	kind := ai.Kind(req.Kind)
	if !kind.Valid() {
		return nil, huma.Error400BadRequest("unsupported analysis kind")
	}

	snap, err := s.guard.Allow(ctx, userID, quota.ActionAIAnalysis)
	if err != nil {
		return nil, quotaError(err)
	}

	result, err := s.analyzer.Analyze(ctx, ai.AnalyzeParams{
		Kind:    kind,
		Subject: req.Subject,
		Context: req.Context,
		UserID:  userID,
	})
	if err != nil {
		_ = s.guard.Release(ctx, userID, quota.ActionAIAnalysis)
		slog.Error("analysis failed", "user_id", userID, "kind", kind, "error", err)
		return nil, analyzerError(err)
	}

	analysis := &db.Analysis{
		UserID:  userID,
		Kind:    string(kind),
		Subject: req.Subject,
		Result:  result.Text,
	}
	if err := s.content.CreateAnalysis(ctx, analysis); err != nil {
		_ = s.guard.Release(ctx, userID, quota.ActionAIAnalysis)
		return nil, huma.Error500InternalServerError("failed to store analysis", err)
	}

	slog.Info("analysis completed",
		"user_id", userID,
		"kind", kind,
		"model", result.Usage.Model,
		"input_tokens", result.Usage.InputTokens,
		"output_tokens", result.Usage.OutputTokens,
		"duration_ms", result.Usage.Duration.Milliseconds(),
	)

	return &CreateAnalysisOutput{
		Body: AnalysisResponse{
			Analysis: newAnalysis(*analysis),
			Limits:   newLimits(snap),
		},
	}, nil
}

// List handles GET /v1/ai/analyses
func (s *AnalysisService) List(ctx context.Context, input *ListAnalysesInput) (*ListAnalysesOutput, error) {
	userID, ok := GetUserID(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	analyses, err := s.content.ListAnalyses(ctx, userID, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list analyses", err)
	}

	resp := ListAnalysesResponse{Analyses: make([]Analysis, 0, len(analyses))}
	for _, a := range analyses {
		resp.Analyses = append(resp.Analyses, newAnalysis(a))
	}
	return &ListAnalysesOutput{Body: resp}, nil
}

func analyzerError(err error) error {
	switch {
	case errors.Is(err, ai.ErrInvalidInput):
		return huma.Error400BadRequest("analysis input rejected by the model provider")
	case errors.Is(err, ai.ErrRateLimit):
		return huma.Error429TooManyRequests("analysis provider is busy, try again shortly")
	case errors.Is(err, ai.ErrTimeout):
		return huma.Error504GatewayTimeout("analysis timed out")
	default:
		return huma.Error502BadGateway("analysis provider unavailable")
	}
}
