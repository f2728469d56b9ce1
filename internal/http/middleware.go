package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/skyline/internal/apperrors"
	"github.com/fyrsmithlabs/skyline/internal/logging"
)

// corsHeaders is the header set written on every response of a route,
// preflight included.
type corsHeaders map[string]string

var (
	askCORS = corsHeaders{
		echo.HeaderAccessControlAllowOrigin:  "*",
		echo.HeaderAccessControlAllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
		echo.HeaderAccessControlAllowHeaders: "Content-Type, Authorization",
		echo.HeaderAccessControlMaxAge:       "86400",
	}
	healthCORS = corsHeaders{
		echo.HeaderAccessControlAllowOrigin:  "*",
		echo.HeaderAccessControlAllowMethods: "GET, OPTIONS",
		echo.HeaderAccessControlAllowHeaders: "Content-Type",
	}
)

func (h corsHeaders) apply(c echo.Context) {
	header := c.Response().Header()
	for k, v := range h {
		header.Set(k, v)
	}
}

func (s *Server) useMiddleware() {
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		},
	}))
	s.echo.Use(s.requestLogger)
	s.echo.Use(NewHTTPMetrics(s.logger.Underlying()).MetricsMiddleware())
	s.echo.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			s.logger.Error(c.Request().Context(), "panic in handler",
				zap.Error(err),
				zap.ByteString("stack", stack),
			)
			return err
		},
	}))
}

// requestLogger logs one line per request, after any handler error has
// been written.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		if err := next(c); err != nil {
			c.Error(err)
		}

		req := c.Request()
		status := c.Response().Status
		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		}
		if status >= http.StatusInternalServerError {
			s.logger.Warn(req.Context(), "http request", fields...)
		} else {
			s.logger.Info(req.Context(), "http request", fields...)
		}
		return nil
	}
}

// ErrorResponse is the JSON body of a failed request.
type ErrorResponse struct {
	Error      string     `json:"error"`
	Message    string     `json:"message,omitempty"`
	RetryAfter int        `json:"retryAfter,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// apiError is a handler failure with its client-facing response. cause
// is logged only.
type apiError struct {
	status int
	body   ErrorResponse
	cause  error
}

func (e *apiError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%d %s: %v", e.status, e.body.Error, e.cause)
	}
	return fmt.Sprintf("%d %s", e.status, e.body.Error)
}

func (e *apiError) Unwrap() error {
	return e.cause
}

func newAPIError(status int, title, message string) *apiError {
	return &apiError{status: status, body: ErrorResponse{Error: title, Message: message}}
}

func (s *Server) internalError(cause error) *apiError {
	ts := s.now().UTC()
	return &apiError{
		status: http.StatusInternalServerError,
		body: ErrorResponse{
			Error:     "Internal server error",
			Message:   "An unexpected error occurred. Please try again later.",
			Timestamp: &ts,
		},
		cause: cause,
	}
}

// handleError is the echo HTTPErrorHandler. Classified client errors keep
// their kind's status and message. Anything else becomes the generic
// internal error, and its text never reaches the client.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var ae *apiError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &ae):
	case errors.As(err, &he) && he.Code < http.StatusInternalServerError:
		ae = newAPIError(he.Code, http.StatusText(he.Code), "")
	default:
		if status := apperrors.KindOf(err).Status(); status < http.StatusInternalServerError {
			ae = newAPIError(status, http.StatusText(status), apperrors.MessageOf(err))
		} else {
			ae = s.internalError(err)
		}
	}

	ctx := c.Request().Context()
	if ae.status >= http.StatusInternalServerError {
		s.logger.Error(ctx, "request failed",
			zap.Int("status", ae.status),
			zap.String("error_title", ae.body.Error),
			zap.Error(err),
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(ae.status)
	} else {
		err = c.JSON(ae.status, ae.body)
	}
	if err != nil {
		s.logger.Error(ctx, "failed to write error response", zap.Error(err))
	}
}
