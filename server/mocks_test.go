package server

import (
	"context"
	"fmt"
	"time"

	"rampart/waf"
)

type mockEngine struct {
	decision  waf.Decision
	err       error
	callCount int
	lastReq   waf.HTTPRequest
}

func (e *mockEngine) EvalRequest(ctx context.Context, req waf.HTTPRequest) (waf.Decision, error) {
	e.callCount++
	e.lastReq = req
	return e.decision, e.err
}

func (e *mockEngine) Close() {}

type mockMetrics struct {
	rateLimited int
	lockouts    int
}

func (m *mockMetrics) ObserveRateLimited() { m.rateLimited++ }
func (m *mockMetrics) ObserveLockout()     { m.lockouts++ }

// erroringStore simulates an unreachable rate limit backend.
type erroringStore struct{}

func (erroringStore) Prune(ctx context.Context, key string, cutoff time.Time) error {
	return fmt.Errorf("store unreachable")
}

func (erroringStore) Count(ctx context.Context, key string) (int, error) {
	return 0, fmt.Errorf("store unreachable")
}

func (erroringStore) Add(ctx context.Context, key string, at time.Time, expiry time.Duration) error {
	return fmt.Errorf("store unreachable")
}

func (erroringStore) Oldest(ctx context.Context, key string) (time.Time, bool, error) {
	return time.Time{}, false, fmt.Errorf("store unreachable")
}

func allowDecision() waf.Decision {
	return waf.Decision{
		Action: waf.ActionAllow,
		Response: waf.Response{
			StatusCode: 200,
			Headers: map[string]string{
				"X-WAF-Action": "allow",
				"X-WAF-Score":  "0.00",
			},
		},
	}
}

func blockDecision() waf.Decision {
	return waf.Decision{
		Action:   waf.ActionBlock,
		Score:    0.9,
		Category: waf.CategorySQLInjection,
		Response: waf.Response{
			StatusCode: 403,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       []byte(`{"error":"Forbidden"}`),
		},
	}
}
