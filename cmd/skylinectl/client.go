package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AskRequest matches the body accepted by POST /api/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse matches a successful /api/ask response.
type AskResponse struct {
	Answer   string `json:"answer"`
	Metadata struct {
		Model          string    `json:"model"`
		DocumentsFound int       `json:"documentsFound"`
		Timestamp      time.Time `json:"timestamp"`
	} `json:"metadata"`
}

// ErrorResponse matches the body of a failed request.
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
}

// HealthResponse matches the /api/health body.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks"`
	Error     string            `json:"error"`
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Body       ErrorResponse
	Raw        string
}

func (e *APIError) Error() string {
	switch {
	case e.Body.Error != "" && e.Body.Message != "":
		return fmt.Sprintf("server returned status %d: %s: %s", e.StatusCode, e.Body.Error, e.Body.Message)
	case e.Body.Error != "":
		return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body.Error)
	default:
		return fmt.Sprintf("server returned status %d: %s", e.StatusCode, strings.TrimSpace(e.Raw))
	}
}

// client talks to a skyline server.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// ask posts question to /api/ask.
func (c *client) ask(ctx context.Context, question string) (*AskResponse, error) {
	reqJSON, err := json.Marshal(AskRequest{Question: question})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/api/ask"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}

	var out AskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

// health fetches /api/health. A degraded server answers 503 with a full
// report, which is returned without error.
func (c *client) health(ctx context.Context) (*HealthResponse, int, error) {
	url := c.baseURL + "/api/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	var out HealthResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Raw: string(body)}
	}
	return &out, resp.StatusCode, nil
}

func readAPIError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, err)
	}
	apiErr := &APIError{StatusCode: resp.StatusCode, Raw: string(body)}
	_ = json.Unmarshal(body, &apiErr.Body)
	return apiErr
}
