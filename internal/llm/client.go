// Package llm calls an OpenRouter-compatible chat completions endpoint to
// answer a question from retrieved context.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/skyline/internal/secrets"
)

const (
	instrumentationName = "github.com/fyrsmithlabs/skyline/internal/llm"

	// SystemPrompt frames every completion.
	SystemPrompt = "You are an AI assistant knowledgeable about the company. Provide accurate, helpful, and concise answers based only on the provided context. If the context doesn't contain enough information to answer the question, say so clearly."

	defaultTimeout = 25 * time.Second
	maxBodyLog     = 2 << 10
	maxResponse    = 4 << 20
)

// ErrInvalidConfig indicates invalid client configuration.
var ErrInvalidConfig = errors.New("llm: invalid configuration")

// Config configures the client.
type Config struct {
	BaseURL     string
	Model       string
	APIKey      string `json:"-"`
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64

	// Referer and Title are sent as HTTP-Referer and X-Title for
	// OpenRouter attribution.
	Referer string
	Title   string

	// RequestsPerSecond paces outgoing calls. Zero disables pacing.
	RequestsPerSecond float64
}

// UpstreamError is a failed completion call. Status is the HTTP status,
// or 0 when no response was received.
type UpstreamError struct {
	Status int
	// Body is the response body with secrets scrubbed, truncated.
	Body string
	Err  error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("completion request failed: %v", e.Err)
	case e.Err != nil:
		return fmt.Sprintf("completion request failed with status %d: %v", e.Status, e.Err)
	default:
		return fmt.Sprintf("completion request failed with status %d", e.Status)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// StatusOf returns the HTTP status carried by an *UpstreamError in err's
// chain, or 0.
func StatusOf(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Status
	}
	return 0
}

// Client is a chat completions client. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	scrubber   secrets.Scrubber
	logger     *zap.Logger
	metrics    *metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its timeout is left unchanged.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithScrubber sets the scrubber applied to upstream bodies.
func WithScrubber(s secrets.Scrubber) Option {
	return func(c *Client) { c.scrubber = s }
}

// New creates a client. The API key may be empty; callers check for it
// before each request.
func New(cfg Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		metrics:    newMetrics(logger),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.scrubber == nil {
		c.scrubber = secrets.MustNew(nil)
	}
	return c, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.cfg.Model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// UserPrompt formats the question with its supporting context.
func UserPrompt(contextText, question string) string {
	return "Answer the following question using this context:\n\n" + contextText + "\n\nQuestion: " + question
}

// Complete makes one completion call. Every failure other than a
// cancelled ctx is an *UpstreamError.
func (c *Client) Complete(ctx context.Context, contextText, question string) (answer string, err error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "llm.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", c.cfg.Model))

	start := time.Now()
	status := 0
	defer func() {
		c.metrics.record(ctx, c.cfg.Model, status, time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "completion failed")
		}
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: UserPrompt(contextText, question)},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &UpstreamError{Err: err}
	}
	defer resp.Body.Close()
	status = resp.StatusCode
	span.SetAttributes(attribute.Int("http.response.status_code", status))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return "", &UpstreamError{Status: status, Err: fmt.Errorf("reading response: %w", err)}
	}

	if status < 200 || status > 299 {
		return "", &UpstreamError{Status: status, Body: c.scrub(raw)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &UpstreamError{Status: status, Body: c.scrub(raw), Err: fmt.Errorf("parsing response: %w", err)}
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", &UpstreamError{Status: status, Body: c.scrub(raw), Err: errors.New("invalid response from AI model")}
	}
	return parsed.Choices[0].Message.Content, nil
}

func (c *Client) scrub(raw []byte) string {
	s := c.scrubber.Scrub(string(raw)).Scrubbed
	if len(s) > maxBodyLog {
		s = s[:maxBodyLog] + "..."
	}
	return s
}
