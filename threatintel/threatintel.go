// Package threatintel provides reputation lookups and signature matching for
// the WAF's slow analysis path. Feed refresh and rule compilation live behind
// collaborator interfaces; this package owns the TTL-bounded reputation cache
// and the extraction of indicators from requests.
package threatintel

import (
	"context"
	"time"
)

// IndicatorKind is the type of an indicator of compromise.
type IndicatorKind string

// Indicator kinds.
const (
	KindIP     IndicatorKind = "ip"
	KindDomain IndicatorKind = "domain"
	KindURL    IndicatorKind = "url"
	KindHash   IndicatorKind = "hash"
)

// Record is one cached reputation verdict. Records are replaced wholesale on
// refresh, never partially updated.
type Record struct {
	Indicator  string
	Kind       IndicatorKind
	Malicious  bool
	Confidence int // 0-100
	Categories []string
	Sources    []string
	CachedAt   time.Time
}

// Feed looks an indicator up in a refreshed local threat-feed data set.
// Network fetching and refresh cadence are the implementation's concern.
type Feed interface {
	LookupIndicator(ctx context.Context, value string, kind IndicatorKind) (Record, error)
}

// SignatureMatch is one rule hit from the signature matcher.
type SignatureMatch struct {
	RuleName    string
	Severity    string // critical, high, medium, low
	MatchedText string
}

// SignatureMatcher matches content against a compiled rule set, YARA-style.
type SignatureMatcher interface {
	MatchSignatures(ctx context.Context, content string) ([]SignatureMatch, error)
}
