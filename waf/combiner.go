package waf

// confidentThreshold is the score at or above which a single analyzer result
// is considered a confident threat.
const confidentThreshold = 0.75

// analyzer priority for finding concatenation order. Lower comes first.
var analyzerOrder = map[string]int{
	"static":     0,
	"classifier": 1,
	"reputation": 2,
}

// Combine merges results from multiple analyzers into one score, category and
// finding list.
//
// The combined score is the max of all input scores, not an average: any
// single high-confidence signal must be able to dominate. The category comes
// from the analyzer that supplied the maximal score; exact ties are broken by
// category severity rank. Findings are concatenated in analyzer priority
// order (static, classifier, reputation) without de-duplication so that
// downstream consumers keep full audit context.
//
// When two or more results are confident threats, the first confident one in
// priority order is returned as-is and the rest are ignored. This keeps the
// hot path cheap when the verdict is already certain.
func Combine(results []AnalysisResult) AnalysisResult {
	if len(results) == 0 {
		return AnalysisResult{Category: CategorySafe, Analyzer: "combined"}
	}
	if len(results) == 1 {
		return results[0]
	}

	ordered := make([]AnalysisResult, len(results))
	copy(ordered, results)
	sortByAnalyzerPriority(ordered)

	confident := 0
	for _, r := range ordered {
		if r.Score >= confidentThreshold {
			confident++
		}
	}
	if confident >= 2 {
		for _, r := range ordered {
			if r.Score >= confidentThreshold {
				return r
			}
		}
	}

	combined := AnalysisResult{Analyzer: "combined", Category: CategorySafe}
	for _, r := range ordered {
		if r.Score > combined.Score {
			combined.Score = r.Score
			combined.Category = r.Category
		} else if r.Score == combined.Score && r.Category.SeverityRank() > combined.Category.SeverityRank() {
			combined.Category = r.Category
		}
		combined.Findings = append(combined.Findings, r.Findings...)
	}
	return combined
}

// Insertion sort: the slice is at most a handful of entries.
func sortByAnalyzerPriority(rs []AnalysisResult) {
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && analyzerOrder[rs[j].Analyzer] < analyzerOrder[rs[j-1].Analyzer]; j-- {
			rs[j], rs[j-1] = rs[j-1], rs[j]
		}
	}
}
