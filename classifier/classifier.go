// Package classifier adapts an external trained request classifier into the
// WAF analyzer pipeline. The model itself is a black box consumed through the
// Client interface; this package owns only the request formatting and the
// result adaptation.
package classifier

import (
	"context"
	"fmt"

	"rampart/waf"
)

// Result is what the external classifier returns for one request.
type Result struct {
	// Score is the classifier's confidence in [0,1] that the request is an
	// attack.
	Score float64

	// Label is the classifier's free-form category label.
	Label string

	// Subscores are the raw per-head scores, e.g. binary and multi-class
	// confidences.
	Subscores map[string]float64
}

// Client scores a canonical HTTP-request-like text block.
type Client interface {
	Score(ctx context.Context, formattedRequest string) (Result, error)
}

type analyzerImpl struct {
	client Client
}

// NewAnalyzer wraps a classifier client as a waf.Analyzer.
func NewAnalyzer(client Client) waf.Analyzer {
	return &analyzerImpl{client: client}
}

func (a *analyzerImpl) Name() string { return "classifier" }

func (a *analyzerImpl) Analyze(ctx context.Context, req waf.HTTPRequest) (waf.AnalysisResult, error) {
	result, err := a.client.Score(ctx, FormatRequest(req))
	if err != nil {
		return waf.AnalysisResult{}, fmt.Errorf("classifier scoring failed: %w", err)
	}

	category := waf.NormalizeCategory(result.Label)
	if result.Score == 0 {
		category = waf.CategorySafe
	}

	r := waf.AnalysisResult{
		Score:    result.Score,
		Category: category,
		Analyzer: "classifier",
		Metadata: result.Subscores,
	}
	if result.Score > 0 {
		r.Findings = []waf.Finding{{
			Category:    category,
			Severity:    severityForScore(result.Score),
			Description: fmt.Sprintf("classifier detected %v with confidence %.2f", category, result.Score),
		}}
	}
	return r, nil
}

func severityForScore(score float64) waf.Severity {
	switch {
	case score >= 0.75:
		return waf.SeverityHigh
	case score >= 0.5:
		return waf.SeverityMedium
	}
	return waf.SeverityLow
}
