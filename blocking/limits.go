package blocking

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rampart/ratelimit"
	"rampart/waf"
)

// RateLimitResponse renders the 429 answer for a caller that exceeded its
// sliding window, including the standard rate limit headers.
func RateLimitResponse(info ratelimit.Info, retryAfter time.Duration) waf.Response {
	requestID := uuid.NewString()
	body, _ := json.Marshal(map[string]string{
		"error":      "Too Many Requests",
		"message":    "Rate limit exceeded, please slow down",
		"request_id": requestID,
	})
	return waf.Response{
		StatusCode: 429,
		Headers: map[string]string{
			"Content-Type":          "application/json",
			"X-Request-ID":          requestID,
			"X-RateLimit-Limit":     fmt.Sprintf("%d", info.Limit),
			"X-RateLimit-Remaining": fmt.Sprintf("%d", info.Remaining),
			"X-RateLimit-Reset":     fmt.Sprintf("%d", info.Reset),
			"Retry-After":           fmt.Sprintf("%d", retryAfterSeconds(retryAfter)),
		},
		Body: body,
	}
}

// LockoutResponse renders the 429 answer for a locked-out authentication
// caller.
func LockoutResponse(retryAfter time.Duration) waf.Response {
	requestID := uuid.NewString()
	body, _ := json.Marshal(map[string]string{
		"error":      "Too Many Requests",
		"message":    "Too many failed authentication attempts, account temporarily locked",
		"request_id": requestID,
	})
	return waf.Response{
		StatusCode: 429,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"X-Request-ID": requestID,
			"Retry-After":  fmt.Sprintf("%d", retryAfterSeconds(retryAfter)),
		},
		Body: body,
	}
}

// retryAfterSeconds rounds up so a client that waits the advertised time is
// always past the window.
func retryAfterSeconds(d time.Duration) int64 {
	s := int64((d + time.Second - 1) / time.Second)
	if s < 1 {
		s = 1
	}
	return s
}
