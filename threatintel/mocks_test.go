package threatintel

import (
	"context"
	"sync"

	"rampart/waf"
)

type mockHTTPRequest struct {
	method     string
	path       string
	query      []waf.QueryParam
	headers    []waf.HeaderPair
	body       string
	remoteAddr string
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
func (r *mockHTTPRequest) QueryParams() []waf.QueryParam { return r.query }
func (r *mockHTTPRequest) Headers() []waf.HeaderPair     { return r.headers }
func (r *mockHTTPRequest) Body() string                  { return r.body }
func (r *mockHTTPRequest) RemoteAddr() string            { return r.remoteAddr }
func (r *mockHTTPRequest) APIKey() string                { return "" }
func (r *mockHTTPRequest) TransactionID() string         { return "tx" }
func (r *mockHTTPRequest) BodyOversized() bool           { return false }

type mockHeaderPair struct {
	k string
	v string
}

func (h *mockHeaderPair) Key() string   { return h.k }
func (h *mockHeaderPair) Value() string { return h.v }

// mockFeed serves canned records and counts lookups per indicator.
type mockFeed struct {
	mu      sync.Mutex
	records map[string]Record
	err     error
	lookups map[string]int
}

func newMockFeed() *mockFeed {
	return &mockFeed{records: make(map[string]Record), lookups: make(map[string]int)}
}

func (f *mockFeed) LookupIndicator(ctx context.Context, value string, kind IndicatorKind) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups[string(kind)+":"+value]++
	if f.err != nil {
		return Record{}, f.err
	}
	return f.records[string(kind)+":"+value], nil
}

func (f *mockFeed) lookupCount(value string, kind IndicatorKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups[string(kind)+":"+value]
}
