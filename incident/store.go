// Package incident receives high-score WAF events for persistence. The store
// is backed by SQLite; the sink in front of it is fire-and-forget so that a
// persistence failure can never affect a response already sent.
package incident

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"rampart/waf"
)

// Incident is one persisted security incident.
type Incident struct {
	ID              string
	Title           string
	Description     string
	Severity        string
	DetectionSource string
	SourceIP        string
	RequestMethod   string
	RequestPath     string
	ThreatType      string
	ThreatScore     float64
	Blocked         bool
	CreatedAt       time.Time
}

// Store persists incidents and malicious request records.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS incidents (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	severity TEXT NOT NULL,
	detection_source TEXT NOT NULL,
	source_ip TEXT NOT NULL,
	request_method TEXT NOT NULL,
	request_path TEXT NOT NULL,
	threat_type TEXT NOT NULL,
	threat_score REAL NOT NULL,
	blocked INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS malicious_requests (
	id TEXT PRIMARY KEY,
	incident_id TEXT,
	source_ip TEXT NOT NULL,
	request_method TEXT NOT NULL,
	request_path TEXT NOT NULL,
	user_agent TEXT,
	threat_type TEXT NOT NULL,
	threat_score REAL NOT NULL,
	findings TEXT,
	analyzers TEXT,
	blocked INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_incidents_created_at ON incidents(created_at);
CREATE INDEX IF NOT EXISTS idx_malicious_requests_source_ip ON malicious_requests(source_ip);
`

// Open creates or opens the incident database at path and runs migrations.
// WAL mode keeps concurrent background writers from blocking readers.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=synchronous(normal)")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite setup: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("incident schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordEvent persists one malicious request record and, for scores at or
// above incidentThreshold, a linked incident.
func (s *Store) RecordEvent(ctx context.Context, req waf.HTTPRequest, d waf.Decision, backgroundSignals []waf.AnalysisResult) error {
	now := time.Now()

	var incidentID sql.NullString
	if d.Score >= incidentThreshold {
		inc := Incident{
			ID:              uuid.NewString(),
			Title:           fmt.Sprintf("Detected %v attack", d.Category),
			Description:     describe(req, d),
			Severity:        severityForScore(d.Score),
			DetectionSource: "waf",
			SourceIP:        req.RemoteAddr(),
			RequestMethod:   req.Method(),
			RequestPath:     req.Path(),
			ThreatType:      d.Category.String(),
			ThreatScore:     d.Score,
			Blocked:         d.Action == waf.ActionBlock,
			CreatedAt:       now,
		}
		if err := s.insertIncident(ctx, inc); err != nil {
			return err
		}
		incidentID = sql.NullString{String: inc.ID, Valid: true}
	}

	analyzers := []string{"static"}
	for _, r := range backgroundSignals {
		analyzers = append(analyzers, r.Analyzer)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO malicious_requests
		(id, incident_id, source_ip, request_method, request_path, user_agent, threat_type, threat_score, findings, analyzers, blocked, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		incidentID,
		req.RemoteAddr(),
		req.Method(),
		req.Path(),
		waf.HeaderValue(req, "User-Agent"),
		d.Category.String(),
		d.Score,
		findingsSummary(d.Findings),
		strings.Join(analyzers, ","),
		boolToInt(d.Action == waf.ActionBlock),
		now.Unix(),
	)
	return err
}

// RecentIncidents returns up to limit incidents, newest first.
func (s *Store) RecentIncidents(ctx context.Context, limit int) ([]Incident, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, severity, detection_source, source_ip,
		       request_method, request_path, threat_type, threat_score, blocked, created_at
		FROM incidents ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var incidents []Incident
	for rows.Next() {
		var inc Incident
		var blocked int
		var createdAt int64
		if err := rows.Scan(&inc.ID, &inc.Title, &inc.Description, &inc.Severity, &inc.DetectionSource,
			&inc.SourceIP, &inc.RequestMethod, &inc.RequestPath, &inc.ThreatType, &inc.ThreatScore,
			&blocked, &createdAt); err != nil {
			return nil, err
		}
		inc.Blocked = blocked != 0
		inc.CreatedAt = time.Unix(createdAt, 0)
		incidents = append(incidents, inc)
	}
	return incidents, rows.Err()
}

func (s *Store) insertIncident(ctx context.Context, inc Incident) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO incidents
		(id, title, description, severity, detection_source, source_ip, request_method, request_path, threat_type, threat_score, blocked, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inc.ID, inc.Title, inc.Description, inc.Severity, inc.DetectionSource, inc.SourceIP,
		inc.RequestMethod, inc.RequestPath, inc.ThreatType, inc.ThreatScore,
		boolToInt(inc.Blocked), inc.CreatedAt.Unix(),
	)
	return err
}

// incidentThreshold is the score at or above which a full incident record is
// created in addition to the malicious request row.
const incidentThreshold = 0.5

func severityForScore(score float64) string {
	if score >= 0.75 {
		return "high"
	}
	return "medium"
}

func describe(req waf.HTTPRequest, d waf.Decision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Suspicious request from %v\n", req.RemoteAddr())
	fmt.Fprintf(&b, "Method: %v\nPath: %v\nThreat score: %.2f\n\nFindings:\n", req.Method(), req.Path(), d.Score)
	for _, f := range d.Findings {
		fmt.Fprintf(&b, "- [%v] %v\n", f.Severity, f.Description)
	}
	return b.String()
}

func findingsSummary(findings []waf.Finding) string {
	parts := make([]string, 0, len(findings))
	for _, f := range findings {
		parts = append(parts, f.Description)
	}
	return strings.Join(parts, "; ")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
