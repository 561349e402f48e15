package server

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"rampart/testutils"
	"rampart/waf"
)

func TestParseQueryParamsKeepsOrderAndDuplicates(t *testing.T) {
	assert := assert.New(t)

	params := parseQueryParams("a=1&b=2&a=3")

	assert.Equal([]waf.QueryParam{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}, {Key: "a", Value: "3"}}, params)
}

func TestParseQueryParamsUnescapes(t *testing.T) {
	assert := assert.New(t)

	params := parseQueryParams("q=%27%20OR%201%3D1&flag")

	assert.Equal("' OR 1=1", params[0].Value)
	assert.Equal("flag", params[1].Key)
	assert.Equal("", params[1].Value)
}

func TestParseQueryParamsKeepsMalformedEscapesRaw(t *testing.T) {
	params := parseQueryParams("q=%zz")
	assert.Equal(t, "%zz", params[0].Value)
}

func TestParseQueryParamsEmpty(t *testing.T) {
	assert.Empty(t, parseQueryParams(""))
}

func TestClientIPFromRemoteAddr(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "203.0.113.7:4242"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")

	// Proxy headers are spoofable, only the socket address counts unless
	// proxies are trusted.
	assert.Equal(t, "203.0.113.7", clientIP(req, false))
}

func TestClientIPFromForwardedFor(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.2")

	assert.Equal(t, "198.51.100.1", clientIP(req, true))
}

func TestClientIPFromRealIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Real-IP", "198.51.100.9")

	assert.Equal(t, "198.51.100.9", clientIP(req, true))
}

func TestAPIKeySelection(t *testing.T) {
	assert := assert.New(t)

	req := httptest.NewRequest("GET", "/", nil)
	assert.Equal("", apiKey(req))

	req.Header.Set("Authorization", "Bearer token-123")
	assert.Equal("token-123", apiKey(req))

	// X-API-Key wins over the Authorization header.
	req.Header.Set("X-API-Key", "key-456")
	assert.Equal("key-456", apiKey(req))
}

func TestNewWafHTTPRequestAdaptsFields(t *testing.T) {
	assert := assert.New(t)
	src := httptest.NewRequest("POST", "/api/users?name=bob", strings.NewReader(`{"name":"bob"}`))
	src.Header.Set("User-Agent", "curl/8.0")
	src.Header.Set("Content-Type", "application/json")

	req, err := newWafHTTPRequest(src, 1024, false)
	if err != nil {
		t.Fatalf("newWafHTTPRequest failed: %v", err)
	}

	assert.Equal("POST", req.Method())
	assert.Equal("/api/users", req.Path())
	assert.Equal(`{"name":"bob"}`, req.Body())
	assert.False(req.BodyOversized())
	assert.NotEmpty(req.TransactionID())
	assert.Equal("curl/8.0", waf.HeaderValue(req, "user-agent"))
}

func TestNewWafHTTPRequestTruncatesAndRestoresBody(t *testing.T) {
	assert := assert.New(t)
	body := strings.Repeat("x", 100)
	src := httptest.NewRequest("POST", "/api/upload", strings.NewReader(body))

	req, err := newWafHTTPRequest(src, 10, false)
	if err != nil {
		t.Fatalf("newWafHTTPRequest failed: %v", err)
	}

	assert.Equal(strings.Repeat("x", 10), req.Body())
	assert.True(req.BodyOversized())

	restored, err := io.ReadAll(src.Body)
	assert.Nil(err)
	assert.Equal(body, string(restored))
}

func TestNewWafHTTPRequestLargeStreamingBody(t *testing.T) {
	assert := assert.New(t)
	src := httptest.NewRequest("POST", "/api/upload", &testutils.MockReader{Length: 1024 * 1024})

	req, err := newWafHTTPRequest(src, 4096, false)
	if err != nil {
		t.Fatalf("newWafHTTPRequest failed: %v", err)
	}

	assert.True(req.BodyOversized())
	assert.Equal(4096, len(req.Body()))
}
