// Package mock provides a canned ai.Analyzer for development and tests.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/burka/podpulse/internal/ai"
)

// Provider returns canned analyses.
type Provider struct {
	mu    sync.Mutex
	err   error
	calls int
}

var _ ai.Analyzer = (*Provider)(nil)

// New creates a mock provider.
func New() *Provider {
	return &Provider{}
}

// Analyze returns a fixed analysis for params.
func (p *Provider) Analyze(ctx context.Context, params ai.AnalyzeParams) (*ai.AnalysisResult, error) {
	p.mu.Lock()
	p.calls++
	err := p.err
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}

	var text string
	switch params.Kind {
	case ai.KindCover:
		text = fmt.Sprintf("Cover %s: dominant color #3b82f6, readable title, high contrast. "+
			"Try brighter accents, larger text and a simple gradient.", params.Subject)
	case ai.KindTrends:
		text = fmt.Sprintf("%s: stable chart position over the last 30 days with a small rise last week.", params.Subject)
	default:
		text = fmt.Sprintf("%s: conversational tone, broad audience. Tighten the intro and add chapter markers.", params.Subject)
	}

	return &ai.AnalysisResult{
		Text:  text,
		Usage: ai.UsageInfo{Model: "mock"},
	}, nil
}

// CallCount returns the number of Analyze calls so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Fail makes subsequent calls return err; nil restores canned answers.
func (p *Provider) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}
