package waf

import (
	"context"
	"time"
)

// Severity is the tier assigned to an individual finding.
type Severity int

const (
	// SeverityLow is informational.
	SeverityLow Severity = iota
	// SeverityMedium warrants review.
	SeverityMedium
	// SeverityHigh indicates a likely attack.
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	}
	return "low"
}

// Location tells where in the request a finding was matched.
type Location string

// Locations of findings within a request.
const (
	LocationPath    Location = "path"
	LocationBody    Location = "body"
	LocationQuery   Location = "query"
	LocationHeader  Location = "header"
	LocationUnknown Location = "unknown"
)

// Finding is one detected issue. Findings are created by analyzers and never
// mutated after creation.
type Finding struct {
	Category    ThreatCategory
	Severity    Severity
	Description string
	Location    Location
	// HeaderName is set when Location is LocationHeader.
	HeaderName string
	// MatchedText is the matched portion of the request, when available.
	MatchedText string
}

// AnalysisResult is the output of a single analyzer for one request.
type AnalysisResult struct {
	// Score is the normalized threat score in [0,1].
	Score float64

	Category ThreatCategory
	Findings []Finding

	// Analyzer identifies which analyzer produced this result, e.g. "static",
	// "classifier" or "reputation".
	Analyzer string

	// Metadata holds optional per-analyzer values such as raw classifier
	// sub-scores.
	Metadata map[string]float64
}

// Analyzer scores a single request for threats. Implementations must be safe
// for concurrent use.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, req HTTPRequest) (AnalysisResult, error)
}

// Action is what the WAF decided to do with a request.
type Action int

const (
	// ActionAllow passes the request through untouched.
	ActionAllow Action = iota
	// ActionLog passes the request through but records it.
	ActionLog
	// ActionChallenge short-circuits the request with a challenge response.
	ActionChallenge
	// ActionBlock short-circuits the request with a block response.
	ActionBlock
)

func (a Action) String() string {
	switch a {
	case ActionBlock:
		return "block"
	case ActionChallenge:
		return "challenge"
	case ActionLog:
		return "log"
	}
	return "allow"
}

// Response is the concrete HTTP answer rendered for a decision.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Decision is the engine's final verdict on a request.
type Decision struct {
	Action   Action
	Score    float64
	Category ThreatCategory
	Findings []Finding
	Response Response

	// AnalysisTime is how long the synchronous analysis path took.
	AnalysisTime time.Duration

	// CacheHit is true when this decision was served from the decision cache
	// rather than computed fresh.
	CacheHit bool
}

// ResponseRenderer turns a decision into a concrete HTTP response payload.
type ResponseRenderer interface {
	Render(d Decision) Response
}

// IncidentSink receives high-score events for persistence and notification.
// Implementations are fire-and-forget: errors must never affect the response
// already sent.
type IncidentSink interface {
	Record(req HTTPRequest, d Decision, backgroundSignals []AnalysisResult)
}

// MultiSink fans one event out to several sinks.
type MultiSink []IncidentSink

// Record forwards the event to every sink in order.
func (s MultiSink) Record(req HTTPRequest, d Decision, backgroundSignals []AnalysisResult) {
	for _, sink := range s {
		sink.Record(req, d, backgroundSignals)
	}
}

// MetricsSink observes finalized decisions for operational metrics.
type MetricsSink interface {
	ObserveDecision(action Action, cacheHit bool, elapsed time.Duration)
}
