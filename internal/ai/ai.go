// Package ai defines the LLM collaborator behind metered podcast analyses.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Analyzer produces an analysis for a podcast subject.
type Analyzer interface {
	Analyze(ctx context.Context, params AnalyzeParams) (*AnalysisResult, error)
}

// Kind selects the analysis prompt.
type Kind string

const (
	KindEpisode Kind = "episode" // content of a single episode
	KindCover   Kind = "cover"   // cover artwork
	KindTrends  Kind = "trends"  // chart position history
)

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	switch k {
	case KindEpisode, KindCover, KindTrends:
		return true
	}
	return false
}

// AnalyzeParams contains the input of one analysis.
type AnalyzeParams struct {
	Kind    Kind
	Subject string // podcast or episode title, or image URL for covers
	Context string // optional free text from the user
	UserID  uuid.UUID
}

// AnalysisResult is the text output of an analysis plus usage.
type AnalysisResult struct {
	Text  string
	Usage UsageInfo
}

// UsageInfo tracks provider usage for monitoring.
type UsageInfo struct {
	Model        string
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
}

// ProviderConfig contains common configuration for AI providers.
type ProviderConfig struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
	RequestTimeout time.Duration
}

var (
	// ErrRateLimit indicates the provider rate limit has been exceeded.
	ErrRateLimit = errors.New("ai provider rate limit exceeded")
	// ErrTimeout indicates the request timed out.
	ErrTimeout = errors.New("ai request timed out")
	// ErrUnavailable indicates the provider is temporarily unavailable.
	ErrUnavailable = errors.New("ai service temporarily unavailable")
	// ErrUnauthorized indicates invalid provider credentials.
	ErrUnauthorized = errors.New("ai provider authentication failed")
	// ErrInvalidInput indicates the provider rejected the request.
	ErrInvalidInput = errors.New("invalid analysis input")
)

// IsRetryable reports whether err is transient.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUnavailable)
}

// WrapError wraps an error with the failed operation.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}
