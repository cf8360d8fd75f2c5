// Package engine provides the HTTP client for the downstream workflow
// execution engine.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/icclab/loadshift/internal/dtw"
	"github.com/icclab/loadshift/internal/dtw/ports"
)

var _ ports.WorkflowEngine = (*Client)(nil)

// Client starts workflow executions against the engine's REST endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the engine at baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

type executionRequest struct {
	WorkflowName string         `json:"workflow_name"`
	Input        map[string]any `json:"input,omitempty"`
	Params       map[string]any `json:"params,omitempty"`
	Description  string         `json:"description,omitempty"`
}

// StartWorkflow posts a new execution of workflowName. The identity in ctx is
// forwarded through headers so the engine runs the execution under the
// delegated credentials.
func (c *Client) StartWorkflow(ctx context.Context, workflowName string, input, params map[string]any, description string) error {
	body, err := json.Marshal(executionRequest{
		WorkflowName: workflowName,
		Input:        input,
		Params:       params,
		Description:  description,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := c.baseURL + "/v2/executions"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if ident, ok := dtw.IdentityFrom(ctx); ok {
		if ident.TrustID != "" {
			httpReq.Header.Set("X-Auth-Trust-ID", ident.TrustID)
		}
		if ident.ProjectID != "" {
			httpReq.Header.Set("X-Project-ID", ident.ProjectID)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("engine returned %s: %s", resp.Status, bytes.TrimSpace(detail))
	}
	return nil
}
