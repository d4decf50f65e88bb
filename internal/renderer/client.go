// Package renderer wraps the external video-render vendor API: create render,
// poll render status, and verify inbound webhook signatures.
package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is the vendor API surface the dispatcher depends on.
type Client interface {
	CreateRender(ctx context.Context, req CreateRenderRequest) (*Render, error)
	GetRenderStatus(ctx context.Context, renderID string) (*Render, error)
}

// CreateRenderRequest is the payload for an asynchronous render.
// Modifications carries the template variable values; Metadata is an opaque
// string echoed back in the completion webhook.
type CreateRenderRequest struct {
	TemplateID    string            `json:"template_id"`
	Modifications map[string]string `json:"modifications"`
	Metadata      string            `json:"metadata,omitempty"`
	WebhookURL    string            `json:"webhook_url,omitempty"`
}

// Render is the vendor's view of one render.
type Render struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	URL          string `json:"url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Vendor render statuses seen in responses and webhooks.
const (
	StatusPlanned   = "planned"
	StatusRendering = "rendering"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// HTTPClient implements Client against the vendor's REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// Options configures the HTTP client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewHTTPClient(opts Options) *HTTPClient {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// CreateRender submits a render. The vendor answers 200 or 202 with a
// one-element array describing the queued render.
func (c *HTTPClient) CreateRender(ctx context.Context, req CreateRenderRequest) (*Render, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal render request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/renders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	respBody, status, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusAccepted {
		return nil, fmt.Errorf("renderer api status %d: %s", status, truncate(respBody, 500))
	}

	var renders []Render
	if err := json.Unmarshal(respBody, &renders); err != nil {
		return nil, fmt.Errorf("decode render response: %w", err)
	}
	if len(renders) == 0 {
		return nil, fmt.Errorf("renderer api returned empty response")
	}
	return &renders[0], nil
}

// GetRenderStatus fetches the current state of a render.
func (c *HTTPClient) GetRenderStatus(ctx context.Context, renderID string) (*Render, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/renders/"+renderID, nil)
	if err != nil {
		return nil, err
	}

	respBody, status, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("renderer api status %d: %s", status, truncate(respBody, 500))
	}

	var r Render
	if err := json.Unmarshal(respBody, &r); err != nil {
		return nil, fmt.Errorf("decode render status: %w", err)
	}
	return &r, nil
}

func (c *HTTPClient) do(req *http.Request) ([]byte, int, error) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("renderer api request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read renderer response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
