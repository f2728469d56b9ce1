package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/skyline/internal/health"
)

// HealthFailure is the response body when the checks could not run.
type HealthFailure struct {
	Status    health.Status `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Error     string        `json:"error"`
}

// handleHealth reports 200 when healthy and 503 when degraded.
func (s *Server) handleHealth(c echo.Context) error {
	healthCORS.apply(c)

	switch c.Request().Method {
	case http.MethodOptions:
		return c.NoContent(http.StatusOK)
	case http.MethodGet:
	default:
		return newAPIError(http.StatusMethodNotAllowed, "Method not allowed", "Only GET requests are accepted")
	}

	report, err := s.health.Report()
	if err != nil {
		s.logger.Error(c.Request().Context(), "health check failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, HealthFailure{
			Status:    health.StatusUnhealthy,
			Timestamp: s.now().UTC(),
			Error:     "Health check failed",
		})
	}

	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, report)
}
