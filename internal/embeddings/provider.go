package embeddings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Provider is an embedding backend.
type Provider interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the vector length for the configured model, or 0
	// when it is not known up front.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig selects and configures a provider.
type ProviderConfig struct {
	// Provider is "huggingface" or "fastembed".
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	// CacheDir holds downloaded FastEmbed models.
	CacheDir string
}

// NewProvider creates the configured provider.
func NewProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Provider {
	case "huggingface", "":
		svc, err := NewService(Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &hfProvider{Service: svc, dimension: dimensionForModel(cfg.Model)}, nil
	case "fastembed":
		return NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

type hfProvider struct {
	*Service
	dimension int
}

func (p *hfProvider) Dimension() int { return p.dimension }

func (p *hfProvider) Close() error { return nil }

// dimensionForModel returns the known output size of common sentence
// embedding models, or 0.
func dimensionForModel(model string) int {
	if dim, ok := fastEmbedModelDimension(model); ok {
		return dim
	}
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "minilm"), strings.Contains(m, "small"):
		return 384
	case strings.Contains(m, "mpnet"), strings.Contains(m, "base"):
		return 768
	case strings.Contains(m, "large"):
		return 1024
	default:
		return 0
	}
}
