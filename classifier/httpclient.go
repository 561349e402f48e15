package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultScoreTimeout = 2 * time.Second

type scoreRequest struct {
	Request string `json:"request"`
}

type scoreResponse struct {
	Score     float64            `json:"score"`
	Label     string             `json:"label"`
	Subscores map[string]float64 `json:"subscores"`
}

type httpClient struct {
	endpoint string
	client   *http.Client
}

// NewHTTPClient creates a Client that scores requests against a remote
// classifier service speaking the JSON score protocol.
func NewHTTPClient(endpoint string, timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = defaultScoreTimeout
	}
	return &httpClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *httpClient) Score(ctx context.Context, formattedRequest string) (Result, error) {
	bb, err := json.Marshal(scoreRequest{Request: formattedRequest})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bb))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("calling classifier service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Result{}, fmt.Errorf("classifier service returned status %v", resp.StatusCode)
	}

	var sr scoreResponse
	if err = json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return Result{}, fmt.Errorf("decoding classifier response: %w", err)
	}

	return Result{Score: sr.Score, Label: sr.Label, Subscores: sr.Subscores}, nil
}
