package waf

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type mockHTTPRequest struct {
	method     string
	path       string
	query      []QueryParam
	headers    []HeaderPair
	body       string
	remoteAddr string
	apiKey     string
	txid       string
	oversized  bool
}

func (r *mockHTTPRequest) Method() string {
	if r.method == "" {
		return "GET"
	}
	return r.method
}
func (r *mockHTTPRequest) Path() string {
	if r.path == "" {
		return "/"
	}
	return r.path
}
func (r *mockHTTPRequest) QueryParams() []QueryParam { return r.query }
func (r *mockHTTPRequest) Headers() []HeaderPair     { return r.headers }
func (r *mockHTTPRequest) Body() string              { return r.body }
func (r *mockHTTPRequest) RemoteAddr() string        { return r.remoteAddr }
func (r *mockHTTPRequest) APIKey() string            { return r.apiKey }
func (r *mockHTTPRequest) TransactionID() string     { return r.txid }
func (r *mockHTTPRequest) BodyOversized() bool       { return r.oversized }

type mockHeaderPair struct {
	k string
	v string
}

func (h *mockHeaderPair) Key() string   { return h.k }
func (h *mockHeaderPair) Value() string { return h.v }

// mockAnalyzer returns a fixed result and counts its calls.
type mockAnalyzer struct {
	name   string
	result AnalysisResult
	err    error

	mu    sync.Mutex
	calls int
}

func (a *mockAnalyzer) Name() string { return a.name }

func (a *mockAnalyzer) Analyze(ctx context.Context, req HTTPRequest) (AnalysisResult, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	if a.err != nil {
		return AnalysisResult{}, a.err
	}
	r := a.result
	r.Analyzer = a.name
	return r, nil
}

func (a *mockAnalyzer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type panickingAnalyzer struct {
	name string
}

func (a *panickingAnalyzer) Name() string { return a.name }

func (a *panickingAnalyzer) Analyze(ctx context.Context, req HTTPRequest) (AnalysisResult, error) {
	panic("analyzer blew up")
}

// mockRenderer tags responses with the decided action so tests can tell which
// decision produced a response.
type mockRenderer struct{}

func (r *mockRenderer) Render(d Decision) Response {
	status := 200
	switch d.Action {
	case ActionBlock:
		status = 403
	case ActionChallenge:
		status = 429
	}
	return Response{
		StatusCode: status,
		Headers:    map[string]string{"X-Action": d.Action.String()},
		Body:       []byte(fmt.Sprintf("action=%v", d.Action)),
	}
}

type recordedIncident struct {
	req               HTTPRequest
	decision          Decision
	backgroundSignals []AnalysisResult
}

type mockIncidentSink struct {
	mu        sync.Mutex
	incidents []recordedIncident
}

func (s *mockIncidentSink) Record(req HTTPRequest, d Decision, backgroundSignals []AnalysisResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents = append(s.incidents, recordedIncident{req: req, decision: d, backgroundSignals: backgroundSignals})
}

func (s *mockIncidentSink) recorded() []recordedIncident {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]recordedIncident, len(s.incidents))
	copy(out, s.incidents)
	return out
}

type observedDecision struct {
	action   Action
	cacheHit bool
}

type mockMetricsSink struct {
	mu       sync.Mutex
	observed []observedDecision
}

func (s *mockMetricsSink) ObserveDecision(action Action, cacheHit bool, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observed = append(s.observed, observedDecision{action: action, cacheHit: cacheHit})
}
