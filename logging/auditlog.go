// Package logging writes the firewall's audit trail.
package logging

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"rampart/waf"
)

// Path is the default audit log directory.
const Path = "/var/log/rampart/"

// FileName is the audit log file name.
const FileName = "waf_audit.log"

type auditLogEntry struct {
	Time          string           `json:"time"`
	TransactionID string           `json:"transactionId"`
	ClientIP      string           `json:"clientIp"`
	Method        string           `json:"method"`
	Path          string           `json:"path"`
	Action        string           `json:"action"`
	Score         float64          `json:"score"`
	Category      string           `json:"category"`
	CacheHit      bool             `json:"cacheHit"`
	Findings      []auditLogDetail `json:"findings,omitempty"`
}

type auditLogDetail struct {
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

type fileAuditSink struct {
	fileSystem   LogFileSystem
	file         LogFile
	logger       zerolog.Logger
	writelogline chan []byte
	writeDone    chan bool
	now          func() time.Time
}

// NewFileAuditSink creates an incident sink that appends one JSON line per
// recorded event to the audit log file.
func NewFileAuditSink(fileSystem LogFileSystem, logger zerolog.Logger) (waf.IncidentSink, error) {
	s := &fileAuditSink{fileSystem: fileSystem, logger: logger, now: time.Now}

	err := fileSystem.MkDir(Path)
	if err != nil {
		logger.Error().Err(err).Str("path", Path).Msg("Failed to create the audit log directory while initializing")
		return nil, err
	}

	s.file, err = fileSystem.Open(Path + FileName)
	if err != nil {
		logger.Error().Err(err).Str("file", Path+FileName).Msg("Failed to open the audit log file while initializing")
		return nil, err
	}

	s.writelogline = make(chan []byte)
	s.writeDone = make(chan bool)
	go func() {
		for v := range s.writelogline {
			s.file.Append(v)
			s.file.Append([]byte("\n"))
			s.writeDone <- true
		}
	}()

	return s, nil
}

func (s *fileAuditSink) Record(req waf.HTTPRequest, d waf.Decision, backgroundSignals []waf.AnalysisResult) {
	c := auditLogEntry{
		Time:          s.now().UTC().Format(time.RFC3339),
		TransactionID: req.TransactionID(),
		ClientIP:      req.RemoteAddr(),
		Method:        req.Method(),
		Path:          req.Path(),
		Action:        d.Action.String(),
		Score:         d.Score,
		Category:      d.Category.String(),
		CacheHit:      d.CacheHit,
	}

	findings := d.Findings
	for _, r := range backgroundSignals {
		findings = append(findings, r.Findings...)
	}
	for _, f := range findings {
		c.Findings = append(c.Findings, auditLogDetail{
			Category:    f.Category.String(),
			Severity:    f.Severity.String(),
			Location:    string(f.Location),
			Description: f.Description,
		})
	}

	bb, err := json.Marshal(c)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error while marshaling audit log entry")
		return
	}

	s.writelogline <- bb
	<-s.writeDone
}
