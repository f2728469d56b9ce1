// Package embeddings turns text into vectors, either through the Hugging
// Face Inference API or a local FastEmbed ONNX model.
package embeddings

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

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/skyline/internal/apperrors"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

const (
	defaultBatchSize = 32
	maxErrorBody     = 4 << 10
)

// Config holds configuration for the Hugging Face embedding service.
type Config struct {
	// BaseURL is the feature-extraction pipeline root; the model id is
	// appended as a path.
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
	// BatchSize caps the inputs sent per request.
	BatchSize int
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// Service calls the Hugging Face feature-extraction pipeline.
type Service struct {
	config  Config
	client  *http.Client
	metrics *Metrics
}

// NewService creates a new embedding service.
func NewService(config Config, logger *zap.Logger) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		metrics: NewMetrics(logger),
	}, nil
}

type featureRequest struct {
	Inputs  []string       `json:"inputs"`
	Options featureOptions `json:"options"`
}

type featureOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

// EmbedDocuments embeds texts in batches, preserving order.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		s.metrics.RecordGeneration(ctx, s.config.Model, "embed_documents", time.Since(start), len(texts), genErr)
	}()

	if len(texts) == 0 {
		genErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += s.config.BatchSize {
		end := min(i+s.config.BatchSize, len(texts))
		vectors, err := s.embed(ctx, texts[i:end])
		if err != nil {
			genErr = err
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// EmbedQuery embeds a single query.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		s.metrics.RecordGeneration(ctx, s.config.Model, "embed_query", time.Since(start), 1, genErr)
	}()

	if strings.TrimSpace(text) == "" {
		genErr = fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	vectors, err := s.embed(ctx, []string{text})
	if err != nil {
		genErr = err
		return nil, err
	}
	return vectors[0], nil
}

func (s *Service) embed(ctx context.Context, texts []string) ([][]float32, error) {
	const op = "embeddings.huggingface"

	body, err := json.Marshal(featureRequest{
		Inputs:  texts,
		Options: featureOptions{WaitForModel: true},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := strings.TrimRight(s.config.BaseURL, "/") + "/" + s.config.Model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, op,
			fmt.Errorf("%w: %v", ErrEmbeddingFailed, err), "embedding service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, apperrors.Wrap(apperrors.KindUpstream, op,
			fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody)),
			"embedding service error")
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, op,
			fmt.Errorf("%w: decoding response: %v", ErrEmbeddingFailed, err), "embedding service error")
	}
	if len(vectors) != len(texts) {
		return nil, apperrors.Wrap(apperrors.KindUpstream, op,
			fmt.Errorf("%w: got %d vectors for %d inputs", ErrEmbeddingFailed, len(vectors), len(texts)),
			"embedding service error")
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, apperrors.Wrap(apperrors.KindUpstream, op,
				fmt.Errorf("%w: empty vector at %d", ErrEmbeddingFailed, i), "embedding service error")
		}
	}
	return vectors, nil
}
