// Package http provides the HTTP API for skyline.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/skyline/internal/health"
	"github.com/fyrsmithlabs/skyline/internal/logging"
	"github.com/fyrsmithlabs/skyline/internal/rag"
	"github.com/fyrsmithlabs/skyline/internal/ratelimit"
)

// Asker answers a validated question.
type Asker interface {
	Ask(ctx context.Context, question string) (*rag.Answer, error)
}

// HealthReporter produces the health report.
type HealthReporter interface {
	Report() (health.Report, error)
}

// RateLimiter admits or rejects a request per client.
type RateLimiter interface {
	CheckAndRecord(clientID string) ratelimit.Decision
	Window() time.Duration
}

// Server provides HTTP endpoints for skyline.
type Server struct {
	echo    *echo.Echo
	asker   Asker
	health  HealthReporter
	limiter RateLimiter
	logger  *logging.Logger
	config  *Config
	now     func() time.Time
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// TrustProxy keys clients on the first X-Forwarded-For entry instead
	// of the socket address.
	TrustProxy bool

	// Metrics registers GET /metrics.
	Metrics bool
}

// NewServer creates a new HTTP server.
func NewServer(cfg *Config, asker Asker, reporter HealthReporter, limiter RateLimiter, logger *logging.Logger) (*Server, error) {
	if asker == nil {
		return nil, errors.New("asker cannot be nil")
	}
	if reporter == nil {
		return nil, errors.New("health reporter cannot be nil")
	}
	if limiter == nil {
		return nil, errors.New("rate limiter cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 3000,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = echo.ExtractIPDirect()

	s := &Server{
		echo:    e,
		asker:   asker,
		health:  reporter,
		limiter: limiter,
		logger:  logger.Named("http"),
		config:  cfg,
		now:     time.Now,
	}

	e.HTTPErrorHandler = s.handleError
	s.useMiddleware()
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints. Method checks are done by
// the handlers so that every method gets a JSON answer.
func (s *Server) registerRoutes() {
	for _, path := range []string{"/ask", "/api/ask"} {
		s.echo.Any(path, s.handleAsk)
	}
	for _, path := range []string{"/health", "/api/health"} {
		s.echo.Any(path, s.handleHealth)
	}

	if s.config.Metrics {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
		s.echo.OPTIONS("/metrics", func(c echo.Context) error {
			healthCORS.apply(c)
			return c.NoContent(http.StatusOK)
		})
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start starts the HTTP server. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
