package threatintel

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"rampart/waf"
)

type analyzerImpl struct {
	logger     zerolog.Logger
	reputation *ReputationCache
	signatures SignatureMatcher
}

// NewAnalyzer creates the reputation/signature analyzer. Either collaborator
// may be nil, in which case its signal is skipped.
func NewAnalyzer(logger zerolog.Logger, reputation *ReputationCache, signatures SignatureMatcher) waf.Analyzer {
	return &analyzerImpl{logger: logger, reputation: reputation, signatures: signatures}
}

func (a *analyzerImpl) Name() string { return "reputation" }

func (a *analyzerImpl) Analyze(ctx context.Context, req waf.HTTPRequest) (waf.AnalysisResult, error) {
	total := 0
	var findings []waf.Finding

	if a.signatures != nil {
		matches, err := a.signatures.MatchSignatures(ctx, formatForSignatures(req))
		if err != nil {
			// Signature matching is one signal of several; keep going.
			a.logger.Warn().Err(err).Msg("signature matching failed")
		}
		for _, m := range matches {
			total += signatureScore(m.Severity)
			findings = append(findings, waf.Finding{
				Category:    waf.CategorySuspicious,
				Severity:    signatureSeverity(m.Severity),
				Description: fmt.Sprintf("signature rule %v matched", m.RuleName),
				MatchedText: m.MatchedText,
			})
		}
	}

	if a.reputation != nil {
		iocs := ExtractIOCs(req)
		total += a.checkIndicators(ctx, iocs.IPs, KindIP, &findings)
		total += a.checkIndicators(ctx, iocs.Domains, KindDomain, &findings)
		total += a.checkIndicators(ctx, iocs.URLs, KindURL, &findings)
		total += a.checkIndicators(ctx, iocs.Hashes, KindHash, &findings)
	}

	if total > 100 {
		total = 100
	}
	score := float64(total) / 100.0

	category := waf.CategorySafe
	if score >= 0.5 {
		category = waf.CategorySuspicious
	}
	return waf.AnalysisResult{
		Score:    score,
		Category: category,
		Findings: findings,
		Analyzer: "reputation",
	}, nil
}

// checkIndicators looks up each indicator and accumulates the confidence of
// malicious ones. A failed lookup drops that indicator's signal only.
func (a *analyzerImpl) checkIndicators(ctx context.Context, values []string, kind IndicatorKind, findings *[]waf.Finding) (score int) {
	for _, v := range values {
		if kind == KindIP && IsPrivateIP(v) {
			continue
		}
		rec, err := a.reputation.Lookup(ctx, v, kind)
		if err != nil {
			a.logger.Warn().Err(err).Str("indicator", v).Str("kind", string(kind)).Msg("reputation lookup failed")
			continue
		}
		if !rec.Malicious {
			continue
		}
		score += rec.Confidence
		*findings = append(*findings, waf.Finding{
			Category:    waf.CategorySuspicious,
			Severity:    waf.SeverityHigh,
			Description: fmt.Sprintf("malicious %v indicator %v (sources: %v)", kind, v, strings.Join(rec.Sources, ",")),
			MatchedText: v,
		})
	}
	return
}

func formatForSignatures(req waf.HTTPRequest) string {
	var b strings.Builder
	b.WriteString(req.Method())
	b.WriteString(" ")
	b.WriteString(req.Path())
	if qps := req.QueryParams(); len(qps) > 0 {
		b.WriteString("?")
		for i, qp := range qps {
			if i > 0 {
				b.WriteString("&")
			}
			b.WriteString(qp.Key)
			b.WriteString("=")
			b.WriteString(qp.Value)
		}
	}
	b.WriteString("\n")
	for _, h := range req.Headers() {
		b.WriteString(h.Key())
		b.WriteString(": ")
		b.WriteString(h.Value())
		b.WriteString("\n")
	}
	if body := req.Body(); body != "" {
		b.WriteString("\n")
		b.WriteString(body)
	}
	return b.String()
}

func signatureScore(severity string) int {
	switch strings.ToLower(severity) {
	case "critical":
		return 100
	case "high":
		return 75
	case "medium":
		return 50
	}
	return 25
}

func signatureSeverity(severity string) waf.Severity {
	switch strings.ToLower(severity) {
	case "critical", "high":
		return waf.SeverityHigh
	case "medium":
		return waf.SeverityMedium
	}
	return waf.SeverityLow
}
