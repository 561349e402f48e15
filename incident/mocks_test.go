package incident

import (
	"rampart/waf"
)

type mockHTTPRequest struct {
	method     string
	path       string
	remoteAddr string
	headers    []waf.HeaderPair
}

type mockHeaderPair struct {
	key   string
	value string
}

func (h mockHeaderPair) Key() string   { return h.key }
func (h mockHeaderPair) Value() string { return h.value }

func (r *mockHTTPRequest) Method() string                { return r.method }
func (r *mockHTTPRequest) Path() string                  { return r.path }
func (r *mockHTTPRequest) QueryParams() []waf.QueryParam { return nil }
func (r *mockHTTPRequest) Headers() []waf.HeaderPair     { return r.headers }
func (r *mockHTTPRequest) Body() string                  { return "" }
func (r *mockHTTPRequest) RemoteAddr() string            { return r.remoteAddr }
func (r *mockHTTPRequest) APIKey() string                { return "" }
func (r *mockHTTPRequest) TransactionID() string         { return "tx-incident-test" }
func (r *mockHTTPRequest) BodyOversized() bool           { return false }
