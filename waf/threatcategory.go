package waf

// ThreatCategory classifies the kind of attack a request was found to carry.
type ThreatCategory int

const (
	// CategorySafe means no threat was detected.
	CategorySafe ThreatCategory = iota

	// CategorySuspicious means something was off but no specific attack
	// family matched.
	CategorySuspicious

	// CategoryXSS is cross-site scripting.
	CategoryXSS

	// CategoryNoSQLInjection is NoSQL operator injection.
	CategoryNoSQLInjection

	// CategoryPathTraversal is directory traversal / sensitive file access.
	CategoryPathTraversal

	// CategorySQLInjection is SQL injection.
	CategorySQLInjection

	// CategoryCommandInjection is OS command injection.
	CategoryCommandInjection

	// CategoryBlacklistedIP means the client IP was on the static blocklist.
	CategoryBlacklistedIP
)

func (c ThreatCategory) String() string {
	switch c {
	case CategorySafe:
		return "safe"
	case CategorySuspicious:
		return "suspicious"
	case CategoryXSS:
		return "xss"
	case CategoryNoSQLInjection:
		return "nosql_injection"
	case CategoryPathTraversal:
		return "path_traversal"
	case CategorySQLInjection:
		return "sql_injection"
	case CategoryCommandInjection:
		return "command_injection"
	case CategoryBlacklistedIP:
		return "blacklisted_ip"
	}
	return "suspicious"
}

// SeverityRank orders categories for tie-breaking when two analyzers report
// the same score. Higher means more severe.
func (c ThreatCategory) SeverityRank() int {
	switch c {
	case CategoryCommandInjection:
		return 5
	case CategorySQLInjection, CategoryPathTraversal:
		return 4
	case CategoryNoSQLInjection, CategoryXSS:
		return 3
	case CategoryBlacklistedIP:
		return 2
	case CategorySuspicious:
		return 1
	}
	return 0
}

var categoryLabels = map[string]ThreatCategory{
	"safe":                CategorySafe,
	"benign":              CategorySafe,
	"suspicious":          CategorySuspicious,
	"xss":                 CategoryXSS,
	"modern_xss":          CategoryXSS,
	"script_injection":    CategoryXSS,
	"nosql":               CategoryNoSQLInjection,
	"nosql_injection":     CategoryNoSQLInjection,
	"path_traversal":      CategoryPathTraversal,
	"directory_traversal": CategoryPathTraversal,
	"lfi":                 CategoryPathTraversal,
	"file_inclusion":      CategoryPathTraversal,
	"sql":                 CategorySQLInjection,
	"sqli":                CategorySQLInjection,
	"sql_injection":       CategorySQLInjection,
	"modern_sqli":         CategorySQLInjection,
	"injection":           CategorySQLInjection,
	"command_injection":   CategoryCommandInjection,
	"modern_cmdi":         CategoryCommandInjection,
	"code_injection":      CategoryCommandInjection,
	"blacklisted_ip":      CategoryBlacklistedIP,
}

// NormalizeCategory maps a free-form label (e.g. a classifier output label) to
// a ThreatCategory. Unmapped labels fall back to CategorySuspicious.
func NormalizeCategory(label string) ThreatCategory {
	normalized := make([]byte, 0, len(label))
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case 'A' <= c && c <= 'Z':
			normalized = append(normalized, c+'a'-'A')
		case c == ' ' || c == '-':
			normalized = append(normalized, '_')
		default:
			normalized = append(normalized, c)
		}
	}
	if cat, ok := categoryLabels[string(normalized)]; ok {
		return cat
	}
	return CategorySuspicious
}
