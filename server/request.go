package server

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"rampart/waf"
)

type headerPair struct {
	key   string
	value string
}

func (h headerPair) Key() string   { return h.key }
func (h headerPair) Value() string { return h.value }

type httpRequest struct {
	method      string
	path        string
	queryParams []waf.QueryParam
	headers     []waf.HeaderPair
	body        string
	remoteAddr  string
	apiKey      string
	txid        string
	oversized   bool
}

func (r *httpRequest) Method() string                { return r.method }
func (r *httpRequest) Path() string                  { return r.path }
func (r *httpRequest) QueryParams() []waf.QueryParam { return r.queryParams }
func (r *httpRequest) Headers() []waf.HeaderPair     { return r.headers }
func (r *httpRequest) Body() string                  { return r.body }
func (r *httpRequest) RemoteAddr() string            { return r.remoteAddr }
func (r *httpRequest) APIKey() string                { return r.apiKey }
func (r *httpRequest) TransactionID() string         { return r.txid }
func (r *httpRequest) BodyOversized() bool           { return r.oversized }

// newWafHTTPRequest adapts an inbound net/http request to the view the engine
// analyzes. The request body is read up to maxBodyBytes and then restored on
// req so the next handler can still consume it.
func newWafHTTPRequest(req *http.Request, maxBodyBytes int64, trustProxies bool) (*httpRequest, error) {
	r := &httpRequest{
		method:      req.Method,
		path:        req.URL.Path,
		queryParams: parseQueryParams(req.URL.RawQuery),
		remoteAddr:  clientIP(req, trustProxies),
		apiKey:      apiKey(req),
		txid:        uuid.NewString(),
	}

	for k, vv := range req.Header {
		for _, v := range vv {
			r.headers = append(r.headers, headerPair{key: k, value: v})
		}
	}

	if req.Body != nil && maxBodyBytes > 0 {
		bb, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes+1))
		if err != nil {
			return nil, err
		}
		if int64(len(bb)) > maxBodyBytes {
			r.oversized = true
			r.body = string(bb[:maxBodyBytes])
		} else {
			r.body = string(bb)
		}
		rest := req.Body
		req.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(bb), rest), rest}
	}

	return r, nil
}

// parseQueryParams splits a raw query string without collapsing duplicate keys
// or reordering pairs. Pairs that fail to unescape are kept raw; the analyzers
// see what the backend would.
func parseQueryParams(rawQuery string) (params []waf.QueryParam) {
	if rawQuery == "" {
		return
	}
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if v, err := url.QueryUnescape(value); err == nil {
			value = v
		}
		params = append(params, waf.QueryParam{Key: key, Value: value})
	}
	return
}

func clientIP(req *http.Request, trustProxies bool) string {
	if trustProxies {
		if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if ip := req.Header.Get("X-Real-IP"); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

func apiKey(req *http.Request) string {
	if k := req.Header.Get("X-API-Key"); k != "" {
		return k
	}
	auth := req.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
