package staticanalysis

import (
	"regexp"

	"rampart/waf"
)

// familyPattern is one compiled pattern within an attack family, with the
// base score it contributes when it is the first of its family to match.
type familyPattern struct {
	re    *regexp.Regexp
	score int
}

type attackFamily struct {
	category waf.ThreatCategory
	patterns []familyPattern
}

// Families are scanned in this order. Within a family, the first matching
// pattern sets the family's contribution and ends that family's scan.
var attackFamilies = []attackFamily{
	{
		category: waf.CategorySQLInjection,
		patterns: []familyPattern{
			{regexp.MustCompile(`union\s+(all\s+)?select`), 85},
			{regexp.MustCompile(`insert\s+into`), 85},
			{regexp.MustCompile(`delete\s+from`), 85},
			{regexp.MustCompile(`drop\s+table`), 85},
			{regexp.MustCompile(`update\s+\w+\s+set`), 85},
			{regexp.MustCompile(`('|")\s*(or|and|not)\s*(\d|true|false|null)`), 80},
			{regexp.MustCompile(`('|")\s*or\s*1\s*=\s*1`), 80},
			{regexp.MustCompile(`(sleep\(|benchmark\(|waitfor\s+delay|pg_sleep)`), 80},
			{regexp.MustCompile(`('|")\s*(;|--|#|/\*)`), 80},
			{regexp.MustCompile(`(load_file|outfile|dumpfile)\s*\(`), 80},
		},
	},
	{
		category: waf.CategoryXSS,
		patterns: []familyPattern{
			{regexp.MustCompile(`<[^>]*script`), 80},
			{regexp.MustCompile(`<iframe[^>]*>`), 80},
			{regexp.MustCompile(`<img[^>]*onerror\s*=`), 80},
			{regexp.MustCompile(`(javascript|vbscript):`), 75},
			{regexp.MustCompile(`on\w+\s*=\s*['"]?[^'"]*\(`), 75},
			{regexp.MustCompile(`(eval|settimeout|setinterval)\s*\(`), 75},
			{regexp.MustCompile(`(alert|confirm|prompt)\s*\(`), 75},
			{regexp.MustCompile(`(src|href|data|action)\s*=\s*['"]?\s*(javascript|data):`), 75},
		},
	},
	{
		category: waf.CategoryCommandInjection,
		patterns: []familyPattern{
			{regexp.MustCompile(`[;&|]\s*(ping|nc|netcat|wget|curl|bash|sh|python|perl|ruby)\b`), 90},
			{regexp.MustCompile(`\$\([^)]*\)`), 90},
			{regexp.MustCompile("`[^`]+`"), 90},
			{regexp.MustCompile(`(^|\s)(wget|curl|nc|netcat)\s+-`), 90},
			{regexp.MustCompile(`(>|>>)\s*/(etc|tmp|var|dev)/`), 90},
			{regexp.MustCompile(`\|\s*(cat|ls|id|whoami|uname)\b`), 90},
		},
	},
	{
		category: waf.CategoryNoSQLInjection,
		patterns: []familyPattern{
			{regexp.MustCompile(`\$(ne|eq|gt|gte|lt|lte|in|nin|all|size|exists|type|not|mod|text|slice|or|and|nor|elemmatch|where|regex)\b`), 80},
			{regexp.MustCompile(`{\s*\$[a-z]+\s*:`), 80},
			{regexp.MustCompile(`db\.[a-z]+\.find`), 80},
		},
	},
}

// traversalPatterns are matched against a twice-URL-decoded copy of the
// request, so single and double percent-encoding do not hide the sequences.
var traversalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\.\./`),
	regexp.MustCompile(`\.\.\\`),
	regexp.MustCompile(`%2e%2e%2f`),
	regexp.MustCompile(`%2e%2e%5c`),
	regexp.MustCompile(`\.\.%2f`),
	regexp.MustCompile(`\.\.%5c`),
	regexp.MustCompile(`%u002e%u002e`),
	regexp.MustCompile(`\.{2,}[/\\]+(www|html|htdocs|public|web)`),
}

const traversalScore = 85

// sensitivePaths is the curated fixed-string list of OS locations whose
// presence anywhere in the decoded request counts as traversal.
var sensitivePaths = []string{
	"/etc/passwd",
	"/etc/shadow",
	"/etc/hosts",
	"/proc/self",
	"/var/log",
	"/root/",
	"boot.ini",
	"system.ini",
	"c:\\windows",
	"windows\\system32",
	"documents and settings",
}

// spoofHeaders are header names associated with client identity spoofing.
var spoofHeaders = []string{
	"x-originally-forwarded-for",
	"x-remote-addr",
	"x-remote-ip",
	"x-remote-user",
}

// trivialUserAgents are tool defaults that rarely belong to a browser.
var trivialUserAgents = map[string]bool{
	"":                true,
	"curl":            true,
	"wget":            true,
	"python-requests": true,
	"postman":         true,
}
