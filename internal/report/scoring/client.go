// Package scoring calls the external risk scoring service that turns a
// batch's evaluation responses into the report's findings.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Result is the scored outcome for one batch.
type Result struct {
	BatchID    uuid.UUID       `json:"batchId"`
	RiskLevel  string          `json:"riskLevel"`
	Dimensions json.RawMessage `json:"dimensions"`
	ScoredAt   time.Time       `json:"scoredAt"`
}

// Client talks to the scoring service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Score requests scoring for a batch. The scoring service reads the
// evaluation responses itself; only the batch id crosses the wire.
func (c *Client) Score(ctx context.Context, batchID uuid.UUID) (Result, error) {
	body, err := json.Marshal(map[string]string{"batchId": batchID.String()})
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/score", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("scoring request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("scoring service returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("failed to decode scoring response: %w", err)
	}
	return result, nil
}
