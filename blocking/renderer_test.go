package blocking

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"rampart/ratelimit"
	"rampart/waf"
)

func decodeBody(t *testing.T, body []byte) map[string]string {
	var m map[string]string
	if err := json.Unmarshal(body, &m); err != nil {
		t.Fatalf("response body is not valid JSON: %v", err)
	}
	return m
}

func TestRenderBlock(t *testing.T) {
	assert := assert.New(t)
	r := NewRenderer()

	resp := r.Render(waf.Decision{
		Action:   waf.ActionBlock,
		Score:    0.9,
		Category: waf.CategorySQLInjection,
	})

	assert.Equal(403, resp.StatusCode)
	assert.Equal("application/json", resp.Headers["Content-Type"])
	assert.Equal("waf", resp.Headers["X-Blocked-By"])
	body := decodeBody(t, resp.Body)
	assert.Equal("Forbidden", body["error"])
	assert.Equal("Potential SQL injection attack detected", body["reason"])
	assert.Equal("sql_injection", body["threat_type"])
	assert.Equal(resp.Headers["X-Request-ID"], body["request_id"])
	assert.NotEmpty(body["request_id"])
}

func TestRenderBlockUnknownCategoryUsesGenericReason(t *testing.T) {
	r := NewRenderer()

	resp := r.Render(waf.Decision{Action: waf.ActionBlock, Category: waf.CategorySafe})

	body := decodeBody(t, resp.Body)
	assert.Equal(t, genericReason, body["reason"])
}

func TestRenderChallenge(t *testing.T) {
	assert := assert.New(t)
	r := NewRenderer()

	resp := r.Render(waf.Decision{Action: waf.ActionChallenge, Score: 0.6})

	assert.Equal(429, resp.StatusCode)
	body := decodeBody(t, resp.Body)
	assert.Equal("Too Many Requests", body["error"])
	assert.Equal(ChallengeURL, body["challenge_url"])
}

func TestRenderPassCarriesInformationalHeaders(t *testing.T) {
	assert := assert.New(t)
	r := NewRenderer()

	for _, action := range []waf.Action{waf.ActionAllow, waf.ActionLog} {
		resp := r.Render(waf.Decision{Action: action, Score: 0.25})
		assert.Equal(200, resp.StatusCode)
		assert.Equal(action.String(), resp.Headers["X-WAF-Action"])
		assert.Equal("0.25", resp.Headers["X-WAF-Score"])
		assert.Empty(resp.Body)
	}
}

func TestRateLimitResponse(t *testing.T) {
	assert := assert.New(t)

	resp := RateLimitResponse(ratelimit.Info{Limit: 100, Remaining: 0, Reset: 1700000060}, 42*time.Second)

	assert.Equal(429, resp.StatusCode)
	assert.Equal("100", resp.Headers["X-RateLimit-Limit"])
	assert.Equal("0", resp.Headers["X-RateLimit-Remaining"])
	assert.Equal("1700000060", resp.Headers["X-RateLimit-Reset"])
	assert.Equal("42", resp.Headers["Retry-After"])
	body := decodeBody(t, resp.Body)
	assert.Equal("Too Many Requests", body["error"])
}

func TestLockoutResponse(t *testing.T) {
	assert := assert.New(t)

	resp := LockoutResponse(15 * time.Minute)

	assert.Equal(429, resp.StatusCode)
	assert.Equal("900", resp.Headers["Retry-After"])
	body := decodeBody(t, resp.Body)
	assert.Contains(body["message"], "locked")
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(int64(1), retryAfterSeconds(0))
	assert.Equal(int64(1), retryAfterSeconds(10*time.Millisecond))
	assert.Equal(int64(2), retryAfterSeconds(time.Second+time.Millisecond))
	assert.Equal(int64(30), retryAfterSeconds(30*time.Second))
}
