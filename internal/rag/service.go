// Package rag answers questions about the company document: it retrieves
// the most relevant chunks and asks the language model to answer from
// them.
package rag

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/skyline/internal/apperrors"
	"github.com/fyrsmithlabs/skyline/internal/llm"
	"github.com/fyrsmithlabs/skyline/internal/logging"
	"github.com/fyrsmithlabs/skyline/internal/retry"
	"github.com/fyrsmithlabs/skyline/internal/vectorstore"
)

// Client-safe messages.
const (
	MsgMissingConfig = "Missing required API configuration"
	MsgNoResults     = "I couldn't find any relevant information to answer your question."
	MsgGeneration    = "Failed to generate response after multiple attempts."
)

// ErrMissingKeys is returned by Ask when a provider key is not configured.
var ErrMissingKeys = errors.New("rag: provider API key not configured")

// Retriever returns the chunks nearest to a question.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]vectorstore.SearchResult, error)
}

// Completer answers a question from context in a single call.
type Completer interface {
	Complete(ctx context.Context, contextText, question string) (string, error)
	Model() string
}

// Metadata describes how an answer was produced.
type Metadata struct {
	Model          string    `json:"model"`
	DocumentsFound int       `json:"documentsFound"`
	Timestamp      time.Time `json:"timestamp"`
}

// Answer is a successful response.
type Answer struct {
	Answer   string   `json:"answer"`
	Metadata Metadata `json:"metadata"`
}

// Config configures a Service.
type Config struct {
	TopK int

	// Retry governs completion attempts. Retryable is ignored; only
	// upstream failures are retried.
	Retry retry.Policy

	// MissingKeys returns the names of unset provider keys.
	MissingKeys func() []string

	// Now defaults to time.Now.
	Now func() time.Time
}

// Service orchestrates retrieval and generation.
type Service struct {
	cfg       Config
	retriever Retriever
	llm       Completer
	logger    *logging.Logger
}

// NewService creates a service.
func NewService(cfg Config, retriever Retriever, completer Completer, logger *logging.Logger) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
	if cfg.MissingKeys == nil {
		cfg.MissingKeys = func() []string { return nil }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	cfg.Retry.Retryable = isUpstream
	return &Service{cfg: cfg, retriever: retriever, llm: completer, logger: logger}
}

func isUpstream(err error) bool {
	var ue *llm.UpstreamError
	return errors.As(err, &ue)
}

// Ask answers question, which must already be validated.
//
// Errors are *apperrors.Error: KindConfiguration for missing keys,
// KindNotFound when retrieval finds nothing and KindUpstream once every
// completion attempt failed. Store initialization errors keep their kind.
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	const op = "rag.Ask"

	if missing := s.cfg.MissingKeys(); len(missing) > 0 {
		s.logger.Error(ctx, "required API key is not set", zap.Strings("missing", missing))
		return nil, apperrors.Wrap(apperrors.KindConfiguration, op, ErrMissingKeys, MsgMissingConfig)
	}

	s.logger.Info(ctx, "performing similarity search", logging.Truncate("question", question, 100))
	results, err := s.retriever.Search(ctx, question, s.cfg.TopK)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, apperrors.New(apperrors.KindNotFound, op, MsgNoResults)
	}

	contextText := joinChunks(results)

	policy := s.cfg.Retry
	onRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		s.logger.Warn(ctx, "completion attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("status", llm.StatusOf(err)),
			zap.String("body", upstreamBody(err)),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if onRetry != nil {
			onRetry(attempt, err, wait)
		}
	}

	answer, err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) (string, error) {
		s.logger.Debug(ctx, "calling language model", zap.Int("attempt", attempt))
		return s.llm.Complete(ctx, contextText, question)
	})
	if err != nil {
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			s.logger.Error(ctx, "completion failed after retries",
				zap.Int("attempts", exhausted.Attempts),
				zap.Int("status", llm.StatusOf(err)),
				zap.String("body", upstreamBody(err)),
				zap.Error(err),
			)
			return nil, apperrors.Wrap(apperrors.KindUpstream, op, err, MsgGeneration)
		}
		// Cancelled while waiting, or a failure that is not worth retrying.
		return nil, err
	}

	return &Answer{
		Answer: answer,
		Metadata: Metadata{
			Model:          s.llm.Model(),
			DocumentsFound: len(results),
			Timestamp:      s.cfg.Now().UTC(),
		},
	}, nil
}

func joinChunks(results []vectorstore.SearchResult) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Chunk.Text
	}
	return strings.Join(texts, "\n\n")
}

func upstreamBody(err error) string {
	var ue *llm.UpstreamError
	if errors.As(err, &ue) {
		return ue.Body
	}
	return ""
}
