// Package gemini talks to the Google Generative Language API over plain
// HTTP: embedContent for vectors, generateContent for text, and the models
// listing used for per-session model selection.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"kb/internal/domain"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client holds the HTTP plumbing shared by the embedding and generation
// adapters. The API key is read from the environment and kept only in
// process memory.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type apiErrorBody struct {
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// NewClient creates a client using the API key from the named environment
// variable.
func NewClient(apiKeyEnv string) (*Client, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key not found in environment variable %s", domain.ErrConfiguration, apiKeyEnv)
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

// NewClientWithBaseURL creates a client against a custom endpoint (tests).
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// post sends a JSON request to {baseURL}{path} and decodes the response
// into out. API-level errors and non-200 statuses are wrapped as provider
// errors.
func (c *Client) post(ctx context.Context, path string, reqBody, out any) error {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("%w: marshal request: %v", domain.ErrProvider, err)
	}

	url := c.baseURL + path + "?key=" + c.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("%w: create request: %v", domain.ErrProvider, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", domain.ErrProvider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domain.ErrProvider, err)
	}

	if resp.StatusCode != http.StatusOK {
		var errBody apiErrorBody
		if json.Unmarshal(body, &errBody) == nil && errBody.Error != nil {
			return fmt.Errorf("%w: API error %s: %s", domain.ErrProvider, errBody.Error.Status, errBody.Error.Message)
		}
		return fmt.Errorf("%w: API returned status %d: %s", domain.ErrProvider, resp.StatusCode, preview(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: parse response (body: %s): %v", domain.ErrProvider, preview(body), err)
	}
	return nil
}

// get sends a GET request to {baseURL}{path} and decodes the response.
func (c *Client) get(ctx context.Context, path string, out any) error {
	url := c.baseURL + path + "?key=" + c.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", domain.ErrProvider, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", domain.ErrProvider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domain.ErrProvider, err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: API returned status %d: %s", domain.ErrProvider, resp.StatusCode, preview(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: parse response (body: %s): %v", domain.ErrProvider, preview(body), err)
	}
	return nil
}

func preview(body []byte) string {
	if len(body) > 200 {
		return string(body[:200])
	}
	return string(body)
}
