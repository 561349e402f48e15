package incident

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"rampart/testutils"
	"rampart/waf"
)

func newTestStore(t *testing.T) *Store {
	s, err := Open(filepath.Join(t.TempDir(), "incidents.db"))
	if err != nil {
		t.Fatalf("opening incident store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func attackRequest() *mockHTTPRequest {
	return &mockHTTPRequest{
		method:     "GET",
		path:       "/api/users",
		remoteAddr: "203.0.113.7",
		headers:    []waf.HeaderPair{mockHeaderPair{key: "User-Agent", value: "sqlmap/1.7"}},
	}
}

func TestRecordEventCreatesIncidentForHighScore(t *testing.T) {
	assert := assert.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	d := waf.Decision{
		Action:   waf.ActionBlock,
		Score:    0.9,
		Category: waf.CategorySQLInjection,
		Findings: []waf.Finding{{Description: "SQL injection pattern in query parameter", Severity: waf.SeverityHigh}},
	}
	if err := s.RecordEvent(ctx, attackRequest(), d, nil); err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}

	incidents, err := s.RecentIncidents(ctx, 10)
	if err != nil {
		t.Fatalf("RecentIncidents failed: %v", err)
	}
	if len(incidents) != 1 {
		t.Fatalf("unexpected incident count %v", len(incidents))
	}
	inc := incidents[0]
	assert.Equal("Detected sql_injection attack", inc.Title)
	assert.Equal("high", inc.Severity)
	assert.Equal("waf", inc.DetectionSource)
	assert.Equal("203.0.113.7", inc.SourceIP)
	assert.Equal("sql_injection", inc.ThreatType)
	assert.Equal(0.9, inc.ThreatScore)
	assert.True(inc.Blocked)
	assert.Contains(inc.Description, "SQL injection pattern in query parameter")
}

func TestRecordEventMediumSeverity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := waf.Decision{Action: waf.ActionChallenge, Score: 0.6, Category: waf.CategoryXSS}
	if err := s.RecordEvent(ctx, attackRequest(), d, nil); err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}

	incidents, err := s.RecentIncidents(ctx, 10)
	if err != nil {
		t.Fatalf("RecentIncidents failed: %v", err)
	}
	assert.Equal(t, "medium", incidents[0].Severity)
	assert.False(t, incidents[0].Blocked)
}

func TestRecordEventLowScoreSkipsIncident(t *testing.T) {
	assert := assert.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	d := waf.Decision{Action: waf.ActionLog, Score: 0.3, Category: waf.CategorySuspicious}
	if err := s.RecordEvent(ctx, attackRequest(), d, nil); err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}

	incidents, err := s.RecentIncidents(ctx, 10)
	assert.Nil(err)
	assert.Empty(incidents)

	// The malicious request row is still written.
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM malicious_requests").Scan(&n); err != nil {
		t.Fatalf("counting malicious requests: %v", err)
	}
	assert.Equal(1, n)
}

func TestRecordEventStoresAnalyzerTrail(t *testing.T) {
	assert := assert.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	d := waf.Decision{Action: waf.ActionBlock, Score: 0.8, Category: waf.CategorySuspicious}
	signals := []waf.AnalysisResult{
		{Analyzer: "classifier", Score: 0.8},
		{Analyzer: "reputation", Score: 0.4},
	}
	if err := s.RecordEvent(ctx, attackRequest(), d, signals); err != nil {
		t.Fatalf("RecordEvent failed: %v", err)
	}

	var analyzers, userAgent string
	if err := s.db.QueryRow("SELECT analyzers, user_agent FROM malicious_requests").Scan(&analyzers, &userAgent); err != nil {
		t.Fatalf("reading malicious request row: %v", err)
	}
	assert.Equal("static,classifier,reputation", analyzers)
	assert.Equal("sqlmap/1.7", userAgent)
}

func TestRecentIncidentsHonorsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := waf.Decision{Action: waf.ActionBlock, Score: 0.9, Category: waf.CategoryXSS}
	for i := 0; i < 5; i++ {
		if err := s.RecordEvent(ctx, attackRequest(), d, nil); err != nil {
			t.Fatalf("RecordEvent failed: %v", err)
		}
	}

	incidents, err := s.RecentIncidents(ctx, 3)
	if err != nil {
		t.Fatalf("RecentIncidents failed: %v", err)
	}
	assert.Equal(t, 3, len(incidents))
}

func TestSinkPersistsThroughStore(t *testing.T) {
	s := newTestStore(t)
	sink := NewSink(testutils.NewTestLogger(t), s)

	d := waf.Decision{Action: waf.ActionBlock, Score: 0.9, Category: waf.CategoryCommandInjection}
	sink.Record(attackRequest(), d, nil)

	incidents, err := s.RecentIncidents(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentIncidents failed: %v", err)
	}
	assert.Equal(t, 1, len(incidents))
}

func TestSinkWithoutStoreOnlyLogs(t *testing.T) {
	sink := NewSink(testutils.NewTestLogger(t), nil)
	d := waf.Decision{Action: waf.ActionLog, Score: 0.3, Category: waf.CategorySuspicious}
	sink.Record(attackRequest(), d, nil)
}
