package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/skyline/internal/apperrors"
	"github.com/fyrsmithlabs/skyline/internal/document"
	"github.com/fyrsmithlabs/skyline/internal/health"
	"github.com/fyrsmithlabs/skyline/internal/llm"
	"github.com/fyrsmithlabs/skyline/internal/logging"
	"github.com/fyrsmithlabs/skyline/internal/rag"
	"github.com/fyrsmithlabs/skyline/internal/ratelimit"
	"github.com/fyrsmithlabs/skyline/internal/retry"
	"github.com/fyrsmithlabs/skyline/internal/vectorstore"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type askFunc func(ctx context.Context, question string) (*rag.Answer, error)

func (f askFunc) Ask(ctx context.Context, question string) (*rag.Answer, error) {
	return f(ctx, question)
}

type reportFunc func() (health.Report, error)

func (f reportFunc) Report() (health.Report, error) {
	return f()
}

// recordingLimiter admits everything and remembers client ids.
type recordingLimiter struct {
	mu  sync.Mutex
	ids []string
}

func (l *recordingLimiter) CheckAndRecord(clientID string) ratelimit.Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ids = append(l.ids, clientID)
	return ratelimit.Decision{Allowed: true, Limit: 10, Remaining: 9}
}

func (l *recordingLimiter) Window() time.Duration { return time.Minute }

func okAnswer(question string) *rag.Answer {
	return &rag.Answer{
		Answer: "answer to " + question,
		Metadata: rag.Metadata{
			Model:          "deepseek/deepseek-r1-0528:free",
			DocumentsFound: 4,
			Timestamp:      fixedNow,
		},
	}
}

type serverOptions struct {
	cfg      *Config
	asker    Asker
	reporter HealthReporter
	limiter  RateLimiter
	logger   *logging.Logger
}

func newTestServer(t *testing.T, opts serverOptions) *Server {
	t.Helper()
	if opts.asker == nil {
		opts.asker = askFunc(func(_ context.Context, q string) (*rag.Answer, error) { return okAnswer(q), nil })
	}
	if opts.reporter == nil {
		opts.reporter = reportFunc(func() (health.Report, error) {
			return health.Report{Status: health.StatusHealthy}, nil
		})
	}
	if opts.limiter == nil {
		limiter, err := ratelimit.New(ratelimit.Config{Window: time.Minute, MaxRequests: 10, MaxClients: 100})
		require.NoError(t, err)
		opts.limiter = limiter
	}
	if opts.logger == nil {
		opts.logger = logging.NewNop()
	}
	if opts.cfg == nil {
		opts.cfg = &Config{TrustProxy: true}
	}

	s, err := NewServer(opts.cfg, opts.asker, opts.reporter, opts.limiter, opts.logger)
	require.NoError(t, err)
	s.now = func() time.Time { return fixedNow }
	return s
}

func do(s *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	asker := askFunc(func(context.Context, string) (*rag.Answer, error) { return nil, nil })
	reporter := reportFunc(func() (health.Report, error) { return health.Report{}, nil })
	limiter := &recordingLimiter{}
	logger := logging.NewNop()

	_, err := NewServer(nil, nil, reporter, limiter, logger)
	assert.Error(t, err)
	_, err = NewServer(nil, asker, nil, limiter, logger)
	assert.Error(t, err)
	_, err = NewServer(nil, asker, reporter, nil, logger)
	assert.Error(t, err)
	_, err = NewServer(nil, asker, reporter, limiter, nil)
	assert.Error(t, err)

	s, err := NewServer(nil, asker, reporter, limiter, logger)
	require.NoError(t, err)
	assert.Equal(t, 3000, s.config.Port)
}

func TestAsk_Preflight(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	for _, path := range []string{"/ask", "/api/ask"} {
		t.Run(path, func(t *testing.T) {
			rec := do(s, http.MethodOptions, path, "")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Empty(t, rec.Body.String())
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
			assert.Equal(t, "Content-Type, Authorization", rec.Header().Get("Access-Control-Allow-Headers"))
			assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
		})
	}
}

func TestAsk_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := do(s, method, "/api/ask", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, ErrorResponse{Error: "Method not allowed", Message: "Only POST requests are accepted"}, decodeError(t, rec))
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestAsk_Success(t *testing.T) {
	var got string
	s := newTestServer(t, serverOptions{
		asker: askFunc(func(ctx context.Context, q string) (*rag.Answer, error) {
			got = q
			assert.Equal(t, "203.0.113.7", logging.ClientIDFromContext(ctx))
			assert.NotEmpty(t, logging.RequestIDFromContext(ctx))
			return okAnswer(q), nil
		}),
	})

	rec := do(s, http.MethodPost, "/api/ask", `{"question":"What does Skyline do?"}`, "X-Forwarded-For", "203.0.113.7")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "What does Skyline do?", got)
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body struct {
		Answer   string `json:"answer"`
		Metadata struct {
			Model          string `json:"model"`
			DocumentsFound int    `json:"documentsFound"`
			Timestamp      string `json:"timestamp"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "answer to What does Skyline do?", body.Answer)
	assert.Equal(t, "deepseek/deepseek-r1-0528:free", body.Metadata.Model)
	assert.Equal(t, 4, body.Metadata.DocumentsFound)
	assert.Equal(t, "2025-06-01T12:00:00Z", body.Metadata.Timestamp)
}

func TestAsk_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "not json", body: `question=hi`, message: MsgInvalidBody},
		{name: "empty body", body: ``, message: MsgInvalidBody},
		{name: "array", body: `["hi"]`, message: MsgInvalidBody},
		{name: "null", body: `null`, message: MsgInvalidBody},
		{name: "string", body: `"hi"`, message: MsgInvalidBody},
		{name: "missing question", body: `{}`, message: MsgQuestionType},
		{name: "number question", body: `{"question":42}`, message: MsgQuestionType},
		{name: "null question", body: `{"question":null}`, message: MsgQuestionType},
		{name: "empty question", body: `{"question":""}`, message: MsgQuestionEmpty},
		{name: "blank question", body: `{"question":" \n\t "}`, message: MsgQuestionEmpty},
		{name: "too long", body: `{"question":"` + strings.Repeat("a", 1001) + `"}`, message: MsgQuestionTooLong},
		{name: "too long multibyte", body: `{"question":"` + strings.Repeat("é", 1001) + `"}`, message: MsgQuestionTooLong},
		{name: "oversized body", body: `{"question":"` + strings.Repeat("a", maxBodyBytes) + `"}`, message: MsgQuestionTooLong},
		{name: "very long question", body: `{"question":"` + strings.Repeat("a", 70000) + `"}`, message: MsgQuestionTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			s := newTestServer(t, serverOptions{
				asker: askFunc(func(context.Context, string) (*rag.Answer, error) {
					called = true
					return nil, nil
				}),
			})

			rec := do(s, http.MethodPost, "/ask", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, ErrorResponse{Error: "Invalid input", Message: tt.message}, decodeError(t, rec))
			assert.False(t, called)
		})
	}
}

func TestAsk_LengthCountsCharacters(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec := do(s, http.MethodPost, "/ask", `{"question":"`+strings.Repeat("é", MaxQuestionLength)+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAsk_RateLimit(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	for i := range 10 {
		rec := do(s, http.MethodPost, "/api/ask", `{"question":"hi"}`, "X-Forwarded-For", "198.51.100.1, 10.0.0.1")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 9-i, atoi(t, rec.Header().Get("X-RateLimit-Remaining")))
	}

	rec := do(s, http.MethodPost, "/api/ask", `{"question":"hi"}`, "X-Forwarded-For", "198.51.100.1, 10.0.0.2")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, ErrorResponse{
		Error:      "Rate limit exceeded",
		Message:    "Too many requests. Please try again later.",
		RetryAfter: 60,
	}, decodeError(t, rec))

	// Other clients keep their own budget.
	rec = do(s, http.MethodPost, "/api/ask", `{"question":"hi"}`, "X-Forwarded-For", "198.51.100.2")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAsk_RateLimitBeforeValidation(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	for range 10 {
		do(s, http.MethodPost, "/ask", `{}`, "X-Forwarded-For", "198.51.100.9")
	}
	rec := do(s, http.MethodPost, "/ask", `{}`, "X-Forwarded-For", "198.51.100.9")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func atoi(t *testing.T, s string) int {
	t.Helper()
	var n int
	require.NoError(t, json.Unmarshal([]byte(s), &n))
	return n
}

func TestAsk_ClientIdentity(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		xff        string
		want       string
	}{
		{name: "first forwarded entry", trustProxy: true, xff: "203.0.113.5, 10.0.0.1", want: "203.0.113.5"},
		{name: "no header falls back to socket", trustProxy: true, want: "192.0.2.1"},
		{name: "blank header falls back to socket", trustProxy: true, xff: " , 10.0.0.1", want: "192.0.2.1"},
		{name: "header ignored without trust", trustProxy: false, xff: "203.0.113.5", want: "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := &recordingLimiter{}
			s := newTestServer(t, serverOptions{cfg: &Config{TrustProxy: tt.trustProxy}, limiter: limiter})

			req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"hi"}`))
			req.RemoteAddr = "192.0.2.1:51234"
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			s.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, []string{tt.want}, limiter.ids)
		})
	}
}

func exhausted(status int) error {
	return apperrors.Wrap(apperrors.KindUpstream, "rag.Ask",
		&retry.ExhaustedError{Attempts: 3, Err: &llm.UpstreamError{Status: status, Body: "sk-or-v1-secret"}},
		rag.MsgGeneration)
}

func TestAsk_ErrorMapping(t *testing.T) {
	ts := fixedNow
	generic := ErrorResponse{
		Error:     "Internal server error",
		Message:   "An unexpected error occurred. Please try again later.",
		Timestamp: &ts,
	}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   ErrorResponse
	}{
		{
			name:       "missing keys",
			err:        apperrors.Wrap(apperrors.KindConfiguration, "rag.Ask", rag.ErrMissingKeys, rag.MsgMissingConfig),
			wantStatus: http.StatusInternalServerError,
			wantBody:   ErrorResponse{Error: "Server configuration error", Message: "Missing required API configuration"},
		},
		{
			name:       "no results",
			err:        apperrors.New(apperrors.KindNotFound, "rag.Ask", rag.MsgNoResults),
			wantStatus: http.StatusNotFound,
			wantBody: ErrorResponse{
				Error:   "No relevant information found",
				Message: "I couldn't find any relevant information to answer your question.",
			},
		},
		{
			name:       "upstream rate limited",
			err:        exhausted(429),
			wantStatus: http.StatusTooManyRequests,
			wantBody: ErrorResponse{
				Error:   "AI service rate limit",
				Message: "The AI service is currently rate limited. Please try again later.",
			},
		},
		{
			name:       "upstream payment required",
			err:        exhausted(402),
			wantStatus: http.StatusServiceUnavailable,
			wantBody: ErrorResponse{
				Error:   "AI service unavailable",
				Message: "The AI service is temporarily unavailable. Please try again later.",
			},
		},
		{
			name:       "upstream server error",
			err:        exhausted(502),
			wantStatus: http.StatusInternalServerError,
			wantBody:   ErrorResponse{Error: "AI processing failed", Message: "Failed to generate response after multiple attempts."},
		},
		{
			name:       "upstream timeout",
			err:        exhausted(0),
			wantStatus: http.StatusInternalServerError,
			wantBody:   ErrorResponse{Error: "AI processing failed", Message: "Failed to generate response after multiple attempts."},
		},
		{
			name:       "missing document",
			err:        apperrors.New(apperrors.KindConfiguration, "document.Load", "source document not found: /srv/company_profile.pdf"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   generic,
		},
		{
			name:       "embedding failure",
			err:        apperrors.Wrap(apperrors.KindUpstream, "embeddings.Embed", errors.New("503"), "embedding request failed"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   generic,
		},
		{
			name:       "unclassified",
			err:        errors.New("dial tcp 10.0.0.3:443: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   generic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := logging.NewTestLogger()
			s := newTestServer(t, serverOptions{
				asker: askFunc(func(context.Context, string) (*rag.Answer, error) {
					return nil, tt.err
				}),
				logger: logger.Logger,
			})

			rec := do(s, http.MethodPost, "/api/ask", `{"question":"hi"}`)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, decodeError(t, rec))
			assert.NotContains(t, rec.Body.String(), "sk-or-v1")
			assert.NotContains(t, rec.Body.String(), "/srv/")
			assert.NotContains(t, rec.Body.String(), "10.0.0.3")
			if tt.wantStatus >= http.StatusInternalServerError {
				logger.AssertLogged(t, zapcore.ErrorLevel, "request failed")
			}
		})
	}
}

func TestAsk_PanicRecovered(t *testing.T) {
	logger := logging.NewTestLogger()
	s := newTestServer(t, serverOptions{
		asker: askFunc(func(context.Context, string) (*rag.Answer, error) {
			panic("index out of range")
		}),
		logger: logger.Logger,
	})

	rec := do(s, http.MethodPost, "/api/ask", `{"question":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "Internal server error", body.Error)
	require.NotNil(t, body.Timestamp)
	assert.NotContains(t, rec.Body.String(), "index out of range")
	logger.AssertLogged(t, zapcore.ErrorLevel, "panic in handler")
}

// scriptedCompleter always fails with status.
type scriptedCompleter struct {
	mu     sync.Mutex
	status int
	calls  int
}

func (c *scriptedCompleter) Complete(context.Context, string, string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return "", &llm.UpstreamError{Status: c.status}
}

func (c *scriptedCompleter) Model() string { return "deepseek/deepseek-r1-0528:free" }

type staticRetriever struct{}

func (staticRetriever) Search(context.Context, string, int) ([]vectorstore.SearchResult, error) {
	return []vectorstore.SearchResult{{Chunk: document.Chunk{Text: "Skyline builds bridges."}, Score: 0.9}}, nil
}

func TestAsk_UpstreamRateLimitAfterRetries(t *testing.T) {
	completer := &scriptedCompleter{status: http.StatusTooManyRequests}
	var waits []time.Duration
	svc := rag.NewService(rag.Config{
		TopK: 4,
		Retry: retry.Policy{
			MaxAttempts: 3,
			Backoff:     retry.Exponential(time.Second),
			Sleep: func(_ context.Context, d time.Duration) error {
				waits = append(waits, d)
				return nil
			},
		},
	}, staticRetriever{}, completer, nil)
	s := newTestServer(t, serverOptions{asker: svc})

	rec := do(s, http.MethodPost, "/api/ask", `{"question":"What does Skyline build?"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "AI service rate limit", decodeError(t, rec).Error)
	assert.Equal(t, 3, completer.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)
}

func TestHealth(t *testing.T) {
	healthy := health.Report{
		Status:    health.StatusHealthy,
		Timestamp: fixedNow,
		Version:   "1.0.0",
		Checks:    health.Checks{PDFFile: "OK", HuggingFaceKey: "OK", OpenRouterKey: "OK"},
		Endpoints: health.Endpoints{Ask: "/api/ask", Health: "/api/health"},
	}
	degraded := healthy
	degraded.Status = health.StatusDegraded
	degraded.Checks.PDFFile = "MISSING"

	tests := []struct {
		name       string
		report     health.Report
		err        error
		wantStatus int
		wantJSON   string
	}{
		{
			name:       "healthy",
			report:     healthy,
			wantStatus: http.StatusOK,
			wantJSON: `{"status":"healthy","timestamp":"2025-06-01T12:00:00Z","version":"1.0.0",
				"checks":{"pdfFile":"OK","huggingfaceKey":"OK","openrouterKey":"OK"},
				"endpoints":{"ask":"/api/ask","health":"/api/health"}}`,
		},
		{
			name:       "degraded",
			report:     degraded,
			wantStatus: http.StatusServiceUnavailable,
			wantJSON: `{"status":"degraded","timestamp":"2025-06-01T12:00:00Z","version":"1.0.0",
				"checks":{"pdfFile":"MISSING","huggingfaceKey":"OK","openrouterKey":"OK"},
				"endpoints":{"ask":"/api/ask","health":"/api/health"}}`,
		},
		{
			name:       "check failure",
			err:        errors.New("permission denied"),
			wantStatus: http.StatusInternalServerError,
			wantJSON:   `{"status":"unhealthy","timestamp":"2025-06-01T12:00:00Z","error":"Health check failed"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, serverOptions{
				reporter: reportFunc(func() (health.Report, error) { return tt.report, tt.err }),
			})

			for _, path := range []string{"/health", "/api/health"} {
				rec := do(s, http.MethodGet, path, "")
				assert.Equal(t, tt.wantStatus, rec.Code)
				assert.JSONEq(t, tt.wantJSON, rec.Body.String())
				assert.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
			}
		})
	}
}

func TestHealth_PreflightAndMethods(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec := do(s, http.MethodOptions, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))

	rec = do(s, http.MethodPost, "/health", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, ErrorResponse{Error: "Method not allowed", Message: "Only GET requests are accepted"}, decodeError(t, rec))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, serverOptions{cfg: &Config{Metrics: true}})
	do(s, http.MethodPost, "/ask", `{"question":"hi"}`)

	rec := do(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "skyline_ratelimit_decisions_total")

	rec = do(s, http.MethodOptions, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))

	s = newTestServer(t, serverOptions{cfg: &Config{Metrics: false}})
	rec = do(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, serverOptions{})

	rec := do(s, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not Found", decodeError(t, rec).Error)
}

func TestErrorHandler_ClassifiedErrors(t *testing.T) {
	s := newTestServer(t, serverOptions{})
	s.echo.GET("/test/not-found", func(echo.Context) error {
		return apperrors.New(apperrors.KindNotFound, "test", "nothing matched")
	})
	s.echo.GET("/test/validation", func(echo.Context) error {
		return fmt.Errorf("decode: %w", apperrors.New(apperrors.KindValidation, "test", "bad input"))
	})
	s.echo.GET("/test/data", func(echo.Context) error {
		return apperrors.New(apperrors.KindData, "test", "/srv/data/company_profile.pdf has no text")
	})

	tests := []struct {
		path   string
		status int
		body   ErrorResponse
	}{
		{path: "/test/not-found", status: http.StatusNotFound, body: ErrorResponse{Error: "Not Found", Message: "nothing matched"}},
		{path: "/test/validation", status: http.StatusBadRequest, body: ErrorResponse{Error: "Bad Request", Message: "bad input"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(s, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.body, decodeError(t, rec))
		})
	}

	rec := do(s, http.MethodGet, "/test/data", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decodeError(t, rec).Error)
	assert.NotContains(t, rec.Body.String(), "company_profile.pdf")
}
