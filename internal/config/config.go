// Package config provides configuration loading for skyline.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variables holding the provider credentials. They are read
// verbatim, without the SKYLINE_ prefix, so existing deployments keep working.
const (
	EnvHuggingFaceKey = "HUGGINGFACE_API_KEY"
	EnvOpenRouterKey  = "OPENROUTER_API_KEY"
)

// Embedding providers.
const (
	ProviderHuggingFace = "huggingface"
	ProviderFastEmbed   = "fastembed"
)

// Config holds the daemon configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Document   DocumentConfig   `koanf:"document"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	LLM        LLMConfig        `koanf:"llm"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	Retry      RetryConfig      `koanf:"retry"`
	RateLimit  RateLimitConfig  `koanf:"ratelimit"`
	Store      StoreConfig      `koanf:"store"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// TrustProxy keys rate limiting on the first X-Forwarded-For entry.
	TrustProxy bool   `koanf:"trust_proxy"`
	Metrics    bool   `koanf:"metrics"`
	Version    string `koanf:"version"`
}

// DocumentConfig locates the source PDF and controls chunking.
type DocumentConfig struct {
	Path         string `koanf:"path"`
	ChunkSize    int    `koanf:"chunk_size"`
	ChunkOverlap int    `koanf:"chunk_overlap"`
}

// EmbeddingsConfig holds embedding provider configuration.
type EmbeddingsConfig struct {
	Provider string   `koanf:"provider"`
	BaseURL  string   `koanf:"base_url"`
	Model    string   `koanf:"model"`
	Timeout  Duration `koanf:"timeout"`
	CacheDir string   `koanf:"cache_dir"`
	APIKey   Secret   `koanf:"api_key"`
}

// LLMConfig holds chat completion configuration.
type LLMConfig struct {
	BaseURL           string   `koanf:"base_url"`
	Model             string   `koanf:"model"`
	Timeout           Duration `koanf:"timeout"`
	MaxTokens         int      `koanf:"max_tokens"`
	Temperature       float64  `koanf:"temperature"`
	Referer           string   `koanf:"referer"`
	Title             string   `koanf:"title"`
	RequestsPerSecond float64  `koanf:"requests_per_second"`
	APIKey            Secret   `koanf:"api_key"`
}

// RetrievalConfig controls similarity search.
type RetrievalConfig struct {
	TopK int `koanf:"top_k"`
}

// RetryConfig controls LLM retries.
type RetryConfig struct {
	MaxAttempts int      `koanf:"max_attempts"`
	BaseBackoff Duration `koanf:"base_backoff"`
}

// RateLimitConfig controls the per-client fixed window limiter.
type RateLimitConfig struct {
	Window      Duration `koanf:"window"`
	MaxRequests int      `koanf:"max_requests"`
	MaxClients  int      `koanf:"max_clients"`
}

// StoreConfig controls vector store initialization.
type StoreConfig struct {
	Warmup bool `koanf:"warmup"`
}

// LoggingConfig selects log level and encoding.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig mirrors the OTEL exporter settings.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Endpoint    string `koanf:"endpoint"`
	Protocol    string `koanf:"protocol"`
	Insecure    bool   `koanf:"insecure"`
	ServiceName string `koanf:"service_name"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MissingKeys returns the environment variable names of unset provider
// keys, in a fixed order.
func (c *Config) MissingKeys() []string {
	var missing []string
	if !c.Embeddings.APIKey.IsSet() {
		missing = append(missing, EnvHuggingFaceKey)
	}
	if !c.LLM.APIKey.IsSet() {
		missing = append(missing, EnvOpenRouterKey)
	}
	return missing
}

// Validate validates the configuration.
//
// Missing provider keys are not an error here; the daemon must start and
// report them through the health endpoint.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Document.Path == "" {
		return fmt.Errorf("document.path is required")
	}
	if c.Document.ChunkSize <= 0 {
		return fmt.Errorf("document.chunk_size must be positive, got %d", c.Document.ChunkSize)
	}
	if c.Document.ChunkOverlap < 0 || c.Document.ChunkOverlap >= c.Document.ChunkSize {
		return fmt.Errorf("document.chunk_overlap must be in [0, chunk_size), got %d", c.Document.ChunkOverlap)
	}
	switch c.Embeddings.Provider {
	case ProviderHuggingFace, ProviderFastEmbed:
	default:
		return fmt.Errorf("unsupported embeddings.provider: %q", c.Embeddings.Provider)
	}
	if c.LLM.Timeout.Duration() <= 0 {
		return fmt.Errorf("llm.timeout must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %v", c.LLM.Temperature)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.RateLimit.Window.Duration() <= 0 {
		return fmt.Errorf("ratelimit.window must be positive")
	}
	if c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("ratelimit.max_requests must be positive, got %d", c.RateLimit.MaxRequests)
	}
	if c.RateLimit.MaxClients <= 0 {
		return fmt.Errorf("ratelimit.max_clients must be positive, got %d", c.RateLimit.MaxClients)
	}
	return nil
}

// getEnvString returns environment variable value or default.
func getEnvString(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
