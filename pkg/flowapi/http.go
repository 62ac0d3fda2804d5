package flowapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// HTTPClient implements Client over the remote API's REST surface.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// HTTPClientConfig configures an HTTPClient.
type HTTPClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewHTTPClient creates a flow API client.
func NewHTTPClient(config HTTPClientConfig) *HTTPClient {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &HTTPClient{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// CreateFlow submits a document and returns the remote-assigned flow.
func (c *HTTPClient) CreateFlow(ctx context.Context, doc *Document) (*Flow, error) {
	return c.send(ctx, http.MethodPost, "/api/v1/flows", doc)
}

// GetFlow fetches a flow by id.
func (c *HTTPClient) GetFlow(ctx context.Context, id string) (*Flow, error) {
	return c.send(ctx, http.MethodGet, "/api/v1/flows/"+id, nil)
}

// UpdateFlow resubmits a corrected document for an existing flow.
func (c *HTTPClient) UpdateFlow(ctx context.Context, id string, doc *Document) (*Flow, error) {
	return c.send(ctx, http.MethodPut, "/api/v1/flows/"+id, doc)
}

type flowResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

func (c *HTTPClient) send(ctx context.Context, method, path string, doc *Document) (*Flow, error) {
	var reqBody io.Reader

	if doc != nil {
		payload, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode flow document: %w", err)
		}

		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var parsed flowResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode flow response: %w", err)
	}

	return &Flow{
		ID: parsed.ID,
		Document: Document{
			Name:  parsed.Name,
			Nodes: parsed.Nodes,
			Edges: parsed.Edges,
		},
	}, nil
}
