// Package blocking turns WAF decisions into concrete HTTP response payloads.
// Bodies carry a tracking id and a user-facing reason, never internal finding
// detail; that level of detail belongs to the incident sink alone.
package blocking

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"rampart/waf"
)

// ChallengeURL is where challenged clients are pointed.
const ChallengeURL = "/challenge"

const genericReason = "Security policy violation detected"

var blockReasons = map[waf.ThreatCategory]string{
	waf.CategorySQLInjection:     "Potential SQL injection attack detected",
	waf.CategoryXSS:              "Potential cross-site scripting (XSS) attack detected",
	waf.CategoryPathTraversal:    "Potential path traversal attack detected",
	waf.CategoryCommandInjection: "Potential command injection attack detected",
	waf.CategoryNoSQLInjection:   "Potential NoSQL injection attack detected",
	waf.CategorySuspicious:       "Suspicious request pattern detected",
	waf.CategoryBlacklistedIP:    "Your IP address is on our security blocklist",
}

type rendererImpl struct{}

// NewRenderer creates the response renderer.
func NewRenderer() waf.ResponseRenderer {
	return &rendererImpl{}
}

func (r *rendererImpl) Render(d waf.Decision) waf.Response {
	switch d.Action {
	case waf.ActionBlock:
		return blockResponse(d)
	case waf.ActionChallenge:
		return challengeResponse(d)
	}
	return passResponse(d)
}

func blockResponse(d waf.Decision) waf.Response {
	requestID := uuid.NewString()
	reason, ok := blockReasons[d.Category]
	if !ok {
		reason = genericReason
	}
	body, _ := json.Marshal(map[string]string{
		"error":       "Forbidden",
		"message":     "Request blocked by security policy",
		"reason":      reason,
		"threat_type": d.Category.String(),
		"request_id":  requestID,
	})
	return waf.Response{
		StatusCode: 403,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"X-Request-ID": requestID,
			"X-Blocked-By": "waf",
		},
		Body: body,
	}
}

func challengeResponse(d waf.Decision) waf.Response {
	requestID := uuid.NewString()
	body, _ := json.Marshal(map[string]string{
		"error":         "Too Many Requests",
		"message":       "Please complete the security challenge",
		"challenge_url": ChallengeURL,
		"request_id":    requestID,
	})
	return waf.Response{
		StatusCode: 429,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"X-Request-ID": requestID,
		},
		Body: body,
	}
}

// passResponse carries informational headers only; allowed and logged
// requests flow through with their own downstream response body.
func passResponse(d waf.Decision) waf.Response {
	return waf.Response{
		StatusCode: 200,
		Headers: map[string]string{
			"X-WAF-Action": d.Action.String(),
			"X-WAF-Score":  fmt.Sprintf("%.2f", d.Score),
		},
	}
}
