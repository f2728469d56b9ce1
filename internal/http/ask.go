package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/skyline/internal/apperrors"
	"github.com/fyrsmithlabs/skyline/internal/llm"
	"github.com/fyrsmithlabs/skyline/internal/logging"
	"github.com/fyrsmithlabs/skyline/internal/rag"
	"github.com/fyrsmithlabs/skyline/internal/retry"
)

const (
	// MaxQuestionLength is counted in characters, not bytes.
	MaxQuestionLength = 1000

	// maxBodyBytes is well above the largest body a valid question can
	// produce, even with every character escaped. A body past it can only
	// carry an over-long question.
	maxBodyBytes = 64 << 10

	// rootField is how gojsonschema names the document itself.
	rootField = "(root)"
)

// Validation messages.
const (
	MsgInvalidBody     = "Invalid request body"
	MsgQuestionType    = "Question is required and must be a string"
	MsgQuestionEmpty   = "Question cannot be empty"
	MsgQuestionTooLong = "Question is too long (max 1000 characters)"
)

// questionSchema checks the body shape. Content rules are applied after
// decoding.
var questionSchema = mustSchema(`{
	"type": "object",
	"required": ["question"],
	"properties": {
		"question": {"type": "string"}
	}
}`)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(err)
	}
	return schema
}

// AskRequest is the request body for POST /ask.
type AskRequest struct {
	Question string `json:"question"`
}

// handleAsk answers a question about the company document.
func (s *Server) handleAsk(c echo.Context) error {
	askCORS.apply(c)

	switch c.Request().Method {
	case http.MethodOptions:
		return c.NoContent(http.StatusOK)
	case http.MethodPost:
	default:
		return newAPIError(http.StatusMethodNotAllowed, "Method not allowed", "Only POST requests are accepted")
	}

	clientID := s.clientID(c)
	ctx := logging.WithClientID(c.Request().Context(), clientID)
	c.SetRequest(c.Request().WithContext(ctx))

	decision := s.limiter.CheckAndRecord(clientID)
	if !decision.Allowed {
		retryAfter := int(math.Ceil(s.limiter.Window().Seconds()))
		s.logger.Warn(ctx, "rate limit exceeded", zap.Duration("oldest_expires_in", decision.RetryAfter))
		c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
		return &apiError{
			status: apperrors.KindRateLimit.Status(),
			body: ErrorResponse{
				Error:      "Rate limit exceeded",
				Message:    "Too many requests. Please try again later.",
				RetryAfter: retryAfter,
			},
			cause: apperrors.New(apperrors.KindRateLimit, "http.ask", "client over request budget"),
		}
	}
	header := c.Response().Header()
	header.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	header.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

	question, err := readQuestion(c.Request().Body)
	if err != nil {
		return err
	}

	answer, err := s.asker.Ask(ctx, question)
	if err != nil {
		return s.askError(ctx, err)
	}
	return c.JSON(http.StatusOK, answer)
}

// clientID identifies the caller for rate limiting.
func (s *Server) clientID(c echo.Context) string {
	if s.config.TrustProxy {
		if xff := c.Request().Header.Get(echo.HeaderXForwardedFor); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	if ip := c.RealIP(); ip != "" {
		return ip
	}
	return "unknown"
}

func invalidInput(message string) *apiError {
	ae := newAPIError(apperrors.KindValidation.Status(), "Invalid input", message)
	ae.cause = apperrors.New(apperrors.KindValidation, "http.ask", message)
	return ae
}

// readQuestion decodes and validates the request body.
func readQuestion(body io.Reader) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxBodyBytes+1))
	if err != nil {
		return "", invalidInput(MsgInvalidBody)
	}
	if len(raw) > maxBodyBytes {
		return "", invalidInput(MsgQuestionTooLong)
	}

	result, err := questionSchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		// Not JSON at all.
		return "", invalidInput(MsgInvalidBody)
	}
	if !result.Valid() {
		for _, re := range result.Errors() {
			if re.Type() == "invalid_type" && re.Field() == rootField {
				return "", invalidInput(MsgInvalidBody)
			}
		}
		return "", invalidInput(MsgQuestionType)
	}

	var req AskRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return "", invalidInput(MsgInvalidBody)
	}

	switch {
	case strings.TrimSpace(req.Question) == "":
		return "", invalidInput(MsgQuestionEmpty)
	case utf8.RuneCountInString(req.Question) > MaxQuestionLength:
		return "", invalidInput(MsgQuestionTooLong)
	}
	return req.Question, nil
}

// askError maps a rag.Service failure onto a response.
func (s *Server) askError(ctx context.Context, err error) error {
	if errors.Is(err, rag.ErrMissingKeys) {
		return &apiError{
			status: http.StatusInternalServerError,
			body:   ErrorResponse{Error: "Server configuration error", Message: rag.MsgMissingConfig},
			cause:  err,
		}
	}

	if apperrors.Is(err, apperrors.KindNotFound) {
		return newAPIError(apperrors.KindNotFound.Status(), "No relevant information found", rag.MsgNoResults)
	}

	var exhausted *retry.ExhaustedError
	if apperrors.Is(err, apperrors.KindUpstream) && errors.As(err, &exhausted) {
		var ae *apiError
		switch llm.StatusOf(err) {
		case http.StatusTooManyRequests:
			ae = newAPIError(http.StatusTooManyRequests, "AI service rate limit",
				"The AI service is currently rate limited. Please try again later.")
		case http.StatusPaymentRequired:
			ae = newAPIError(http.StatusServiceUnavailable, "AI service unavailable",
				"The AI service is temporarily unavailable. Please try again later.")
		default:
			ae = newAPIError(http.StatusInternalServerError, "AI processing failed", rag.MsgGeneration)
		}
		ae.cause = err
		if ae.status < http.StatusInternalServerError {
			s.logger.Warn(ctx, "completion failed", zap.Int("status", ae.status), zap.Error(err))
		}
		return ae
	}

	return s.internalError(err)
}
