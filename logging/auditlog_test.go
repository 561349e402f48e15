package logging

import (
	"strings"
	"testing"
	"time"

	"rampart/testutils"
	"rampart/waf"
)

func TestFileAuditSinkRecord(t *testing.T) {
	logger := testutils.NewTestLogger(t)
	fileSystem := &mockFileSystem{fmap: make(map[string]LogFile)}
	sink, err := NewFileAuditSink(fileSystem, logger)
	if err != nil {
		t.Fatalf("NewFileAuditSink returned error: %v", err)
	}
	sink.(*fileAuditSink).now = func() time.Time {
		return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	}

	req := &mockHTTPRequest{
		method:     "GET",
		path:       "/a",
		remoteAddr: "10.0.0.9",
		txid:       "abc",
	}
	d := waf.Decision{
		Action:   waf.ActionBlock,
		Score:    0.9,
		Category: waf.CategorySQLInjection,
		Findings: []waf.Finding{
			{Category: waf.CategorySQLInjection, Severity: waf.SeverityHigh, Location: waf.LocationQuery, Description: "SQL injection pattern"},
		},
	}

	sink.Record(req, d, nil)
	log := fileSystem.Get(Path + FileName)

	expected := `{"time":"2025-03-01T12:00:00Z","transactionId":"abc","clientIp":"10.0.0.9","method":"GET","path":"/a","action":"block","score":0.9,"category":"sql_injection","cacheHit":false,"findings":[{"category":"sql_injection","severity":"high","location":"query","description":"SQL injection pattern"}]}`
	if log != expected+"\n" {
		t.Fatalf("Record wrote wrong log entry %v, expected %v", log, expected)
	}
}

func TestFileAuditSinkIncludesBackgroundFindings(t *testing.T) {
	logger := testutils.NewTestLogger(t)
	fileSystem := &mockFileSystem{fmap: make(map[string]LogFile)}
	sink, err := NewFileAuditSink(fileSystem, logger)
	if err != nil {
		t.Fatalf("NewFileAuditSink returned error: %v", err)
	}

	req := &mockHTTPRequest{method: "POST", path: "/b", txid: "def"}
	d := waf.Decision{Action: waf.ActionLog, Score: 0.3, Category: waf.CategorySuspicious}
	background := []waf.AnalysisResult{
		{
			Analyzer: "classifier",
			Findings: []waf.Finding{
				{Category: waf.CategoryXSS, Severity: waf.SeverityMedium, Location: waf.LocationBody, Description: "classifier verdict"},
			},
		},
	}

	sink.Record(req, d, background)
	log := fileSystem.Get(Path + FileName)

	if !strings.Contains(log, `"description":"classifier verdict"`) {
		t.Fatalf("Record did not include background findings: %v", log)
	}
}

type mockFile struct {
	Content string
}

func (fs *mockFile) Append(content []byte) (err error) {
	fs.Content = fs.Content + string(content)
	return nil
}

type mockFileSystem struct {
	fmap map[string]LogFile
}

func (fs *mockFileSystem) MkDir(name string) error {
	return nil
}

func (fs *mockFileSystem) Open(name string) (f LogFile, err error) {
	f = &mockFile{}
	fs.fmap[name] = f
	return f, nil
}

func (fs *mockFileSystem) Get(name string) (content string) {
	return fs.fmap[name].(*mockFile).Content
}

type mockHTTPRequest struct {
	method     string
	path       string
	query      []waf.QueryParam
	headers    []waf.HeaderPair
	body       string
	remoteAddr string
	apiKey     string
	txid       string
	oversized  bool
}

func (r *mockHTTPRequest) Method() string                { return r.method }
func (r *mockHTTPRequest) Path() string                  { return r.path }
func (r *mockHTTPRequest) QueryParams() []waf.QueryParam { return r.query }
func (r *mockHTTPRequest) Headers() []waf.HeaderPair     { return r.headers }
func (r *mockHTTPRequest) Body() string                  { return r.body }
func (r *mockHTTPRequest) RemoteAddr() string            { return r.remoteAddr }
func (r *mockHTTPRequest) APIKey() string                { return r.apiKey }
func (r *mockHTTPRequest) TransactionID() string         { return r.txid }
func (r *mockHTTPRequest) BodyOversized() bool           { return r.oversized }
