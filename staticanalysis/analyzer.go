// Package staticanalysis implements the synchronous fast-path request
// analyzer: a pure regex/heuristic scan for known attack families. It holds
// no state and is safe for unbounded concurrent use.
package staticanalysis

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"rampart/waf"
)

type analyzerImpl struct{}

// NewAnalyzer creates the static pattern analyzer.
func NewAnalyzer() waf.Analyzer {
	return &analyzerImpl{}
}

func (a *analyzerImpl) Name() string { return "static" }

func (a *analyzerImpl) Analyze(ctx context.Context, req waf.HTTPRequest) (waf.AnalysisResult, error) {
	scanBuf := buildScanBuffer(req)

	total := 0
	var findings []waf.Finding
	matched := map[waf.ThreatCategory]bool{}

	for _, family := range attackFamilies {
		for _, p := range family.patterns {
			loc := p.re.FindStringIndex(scanBuf)
			if loc == nil {
				continue
			}
			total += p.score
			matched[family.category] = true
			findings = append(findings, waf.Finding{
				Category:    family.category,
				Severity:    patternSeverity(family.category, scanBuf[loc[0]:loc[1]]),
				Description: fmt.Sprintf("%v pattern detected", family.category),
				Location:    matchLocation(req, scanBuf[loc[0]:loc[1]]),
				MatchedText: scanBuf[loc[0]:loc[1]],
			})
			break // first match wins; a family contributes once per request
		}
	}

	traversalScoreTotal, traversalFindings := analyzeTraversal(scanBuf)
	if traversalScoreTotal > 0 {
		total += traversalScoreTotal
		matched[waf.CategoryPathTraversal] = true
		findings = append(findings, traversalFindings...)
	}

	headerScore, headerFindings := analyzeHeaders(req)
	total += headerScore
	findings = append(findings, headerFindings...)

	if total > 100 {
		total = 100
	}
	score := float64(total) / 100.0

	return waf.AnalysisResult{
		Score:    score,
		Category: primaryCategory(matched, score),
		Findings: findings,
		Analyzer: "static",
	}, nil
}

// buildScanBuffer concatenates the lowercased path, body and query into one
// string for family scanning. Headers are scanned separately.
func buildScanBuffer(req waf.HTTPRequest) string {
	var b strings.Builder
	b.WriteString(req.Path())
	b.WriteString(" ")
	b.WriteString(req.Body())
	b.WriteString(" ")
	for _, qp := range req.QueryParams() {
		b.WriteString(qp.Key)
		b.WriteString("=")
		b.WriteString(qp.Value)
		b.WriteString(" ")
	}
	return strings.ToLower(b.String())
}

// analyzeTraversal runs the traversal checks against a twice-URL-decoded copy
// of the scan buffer. Decoding twice defeats double percent-encoding. The
// three checks (pattern set, sensitive path list, repeated sequences) each
// contribute independently.
func analyzeTraversal(scanBuf string) (score int, findings []waf.Finding) {
	decoded := doubleDecode(scanBuf)

	for _, re := range traversalPatterns {
		if m := re.FindString(decoded); m != "" {
			score += traversalScore
			findings = append(findings, waf.Finding{
				Category:    waf.CategoryPathTraversal,
				Severity:    waf.SeverityHigh,
				Description: "path traversal pattern detected",
				Location:    waf.LocationPath,
				MatchedText: m,
			})
			break
		}
	}

	for _, p := range sensitivePaths {
		if strings.Contains(decoded, p) {
			score += traversalScore
			findings = append(findings, waf.Finding{
				Category:    waf.CategoryPathTraversal,
				Severity:    waf.SeverityHigh,
				Description: fmt.Sprintf("attempted access to sensitive path %q", p),
				Location:    waf.LocationPath,
				MatchedText: p,
			})
			break
		}
	}

	if strings.Count(decoded, "../")+strings.Count(decoded, "..\\") > 1 {
		score += traversalScore
		findings = append(findings, waf.Finding{
			Category:    waf.CategoryPathTraversal,
			Severity:    waf.SeverityHigh,
			Description: "multiple directory traversal sequences detected",
			Location:    waf.LocationPath,
		})
	}
	return
}

func doubleDecode(s string) string {
	once, err := url.QueryUnescape(s)
	if err != nil {
		once = s
	}
	twice, err := url.QueryUnescape(once)
	if err != nil {
		twice = once
	}
	return twice
}

// analyzeHeaders appends low-severity findings for header anomalies. These
// raise the running total without tying the request to an attack family.
func analyzeHeaders(req waf.HTTPRequest) (score int, findings []waf.Finding) {
	ua := strings.ToLower(strings.TrimSpace(waf.HeaderValue(req, "User-Agent")))
	if trivialUserAgents[ua] {
		score += 20
		findings = append(findings, waf.Finding{
			Category:    waf.CategorySuspicious,
			Severity:    waf.SeverityLow,
			Description: "missing or trivial User-Agent",
			Location:    waf.LocationHeader,
			HeaderName:  "User-Agent",
		})
	}

	if fwd := waf.HeaderValue(req, "X-Forwarded-For"); fwd != "" {
		if len(strings.Split(fwd, ",")) > 2 {
			score += 10
			findings = append(findings, waf.Finding{
				Category:    waf.CategorySuspicious,
				Severity:    waf.SeverityLow,
				Description: "proxy chain longer than two hops",
				Location:    waf.LocationHeader,
				HeaderName:  "X-Forwarded-For",
			})
		}
	}

	for _, name := range spoofHeaders {
		if waf.HasHeader(req, name) {
			score += 10
			findings = append(findings, waf.Finding{
				Category:    waf.CategorySuspicious,
				Severity:    waf.SeverityLow,
				Description: fmt.Sprintf("spoofing-associated header %v present", name),
				Location:    waf.LocationHeader,
				HeaderName:  name,
			})
		}
	}
	return
}

// primaryCategory picks the highest-severity matched family, or safe versus
// suspicious when nothing matched. The suspicious branch exists because
// header findings can raise the score without any family match.
func primaryCategory(matched map[waf.ThreatCategory]bool, score float64) waf.ThreatCategory {
	best := waf.CategorySafe
	for cat := range matched {
		if cat.SeverityRank() > best.SeverityRank() {
			best = cat
		}
	}
	if best != waf.CategorySafe {
		return best
	}
	if score >= 0.5 {
		return waf.CategorySuspicious
	}
	return waf.CategorySafe
}

func matchLocation(req waf.HTTPRequest, matchedText string) waf.Location {
	if strings.Contains(strings.ToLower(req.Path()), matchedText) {
		return waf.LocationPath
	}
	if strings.Contains(strings.ToLower(req.Body()), matchedText) {
		return waf.LocationBody
	}
	for _, qp := range req.QueryParams() {
		if strings.Contains(strings.ToLower(qp.Key+"="+qp.Value), matchedText) {
			return waf.LocationQuery
		}
	}
	return waf.LocationUnknown
}

func patternSeverity(cat waf.ThreatCategory, matchedText string) waf.Severity {
	indicators := map[waf.ThreatCategory][]string{
		waf.CategorySQLInjection:     {"union", "select", "drop", "delete"},
		waf.CategoryCommandInjection: {"bash", "sh", "wget", "curl"},
		waf.CategoryXSS:              {"script", "onerror", "onload"},
		waf.CategoryNoSQLInjection:   {"$where", "$ne", "$gt"},
	}
	for _, ind := range indicators[cat] {
		if strings.Contains(matchedText, ind) {
			return waf.SeverityHigh
		}
	}
	return waf.SeverityMedium
}
