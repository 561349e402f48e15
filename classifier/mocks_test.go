package classifier

import (
	"rampart/waf"
)

type mockHTTPRequest struct {
	method  string
	path    string
	query   []waf.QueryParam
	headers []waf.HeaderPair
	body    string
}

func (r *mockHTTPRequest) Method() string {
	if r.method == "" {
		return "GET"
	}
	return r.method
}
func (r *mockHTTPRequest) Path() string                  { return r.path }
func (r *mockHTTPRequest) QueryParams() []waf.QueryParam { return r.query }
func (r *mockHTTPRequest) Headers() []waf.HeaderPair     { return r.headers }
func (r *mockHTTPRequest) Body() string                  { return r.body }
func (r *mockHTTPRequest) RemoteAddr() string            { return "192.0.2.1" }
func (r *mockHTTPRequest) APIKey() string                { return "" }
func (r *mockHTTPRequest) TransactionID() string         { return "tx" }
func (r *mockHTTPRequest) BodyOversized() bool           { return false }

type mockHeaderPair struct {
	k string
	v string
}

func (h *mockHeaderPair) Key() string   { return h.k }
func (h *mockHeaderPair) Value() string { return h.v }
