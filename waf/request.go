package waf

import "strings"

// QueryParam is one query string key/value pair. Keys are not necessarily
// unique within a request.
type QueryParam struct {
	Key   string
	Value string
}

// HeaderPair represents a header line in an HTTP request.
type HeaderPair interface {
	Key() string
	Value() string
}

// HTTPRequest is the immutable view of an inbound request that the WAF
// analyzes. Implementations must not mutate any field after construction.
type HTTPRequest interface {
	Method() string
	Path() string
	QueryParams() []QueryParam
	Headers() []HeaderPair
	Body() string
	RemoteAddr() string
	APIKey() string
	TransactionID() string

	// BodyOversized reports whether the body was truncated at the configured
	// size limit before analysis.
	BodyOversized() bool
}

// HeaderValue returns the first value of the named header, case-insensitively.
func HeaderValue(req HTTPRequest, name string) string {
	for _, h := range req.Headers() {
		if strings.EqualFold(h.Key(), name) {
			return h.Value()
		}
	}
	return ""
}

// HasHeader reports whether the named header is present, case-insensitively.
func HasHeader(req HTTPRequest, name string) bool {
	for _, h := range req.Headers() {
		if strings.EqualFold(h.Key(), name) {
			return true
		}
	}
	return false
}
