package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	envPrefix = "SKYLINE_"
)

// Default values. The retrieval and rate limit figures are part of the
// public contract of the /ask endpoint.
const (
	DefaultPort            = 3000
	DefaultDocumentPath    = "company_profile.pdf"
	DefaultChunkSize       = 800
	DefaultChunkOverlap    = 100
	DefaultEmbeddingModel  = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultEmbeddingURL    = "https://api-inference.huggingface.co/pipeline/feature-extraction"
	DefaultLLMURL          = "https://openrouter.ai/api/v1"
	DefaultLLMModel        = "deepseek/deepseek-r1-0528:free"
	DefaultLLMTimeout      = 25 * time.Second
	DefaultMaxTokens       = 1000
	DefaultTemperature     = 0.7
	DefaultTopK            = 4
	DefaultMaxAttempts     = 3
	DefaultBaseBackoff     = time.Second
	DefaultRateLimitWindow = 60 * time.Second
	DefaultRateLimitMax    = 10
	DefaultMaxClients      = 10000
	DefaultVersion         = "1.0.0"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none
// are given) into the process environment. Variables that are already set
// are left untouched and missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load loads configuration from an optional YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. SKYLINE_* environment variables (SKYLINE_SERVER_PORT, SKYLINE_LLM_MODEL, ...)
//  2. YAML config file at configPath, when non-empty
//  3. PORT environment variable (server.port only)
//  4. Hardcoded defaults
//
// Provider credentials are read from HUGGINGFACE_API_KEY and
// OPENROUTER_API_KEY and take precedence over the file.
//
// # Environment Variable Mapping
//
// The prefix is stripped and the first underscore becomes the section
// separator:
//
//	SKYLINE_SERVER_PORT        -> server.port
//	SKYLINE_LLM_MAX_TOKENS     -> llm.max_tokens
//	SKYLINE_RATELIMIT_MAX_REQUESTS -> ratelimit.max_requests
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if key := getEnvString(EnvHuggingFaceKey, ""); key != "" {
		cfg.Embeddings.APIKey = Secret(key)
	}
	if key := getEnvString(EnvOpenRouterKey, ""); key != "" {
		cfg.LLM.APIKey = Secret(key)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envKey maps SKYLINE_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// readConfigFile reads the file through a single descriptor so the size
// check and the read see the same file.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// applyDefaults sets default values. It runs before unmarshaling so that
// explicit false/zero values from the file or environment still win.
func applyDefaults(cfg *Config) {
	cfg.Server = ServerConfig{
		Host:            "",
		Port:            DefaultPort,
		ShutdownTimeout: Duration(10 * time.Second),
		TrustProxy:      true,
		Metrics:         true,
		Version:         DefaultVersion,
	}
	cfg.Document = DocumentConfig{
		Path:         DefaultDocumentPath,
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
	}
	cfg.Embeddings = EmbeddingsConfig{
		Provider: ProviderHuggingFace,
		BaseURL:  DefaultEmbeddingURL,
		Model:    DefaultEmbeddingModel,
		Timeout:  Duration(30 * time.Second),
	}
	cfg.LLM = LLMConfig{
		BaseURL:           DefaultLLMURL,
		Model:             DefaultLLMModel,
		Timeout:           Duration(DefaultLLMTimeout),
		MaxTokens:         DefaultMaxTokens,
		Temperature:       DefaultTemperature,
		Referer:           "http://localhost:3000",
		Title:             "Skyline Chat Bot",
		RequestsPerSecond: 2,
	}
	cfg.Retrieval = RetrievalConfig{TopK: DefaultTopK}
	cfg.Retry = RetryConfig{
		MaxAttempts: DefaultMaxAttempts,
		BaseBackoff: Duration(DefaultBaseBackoff),
	}
	cfg.RateLimit = RateLimitConfig{
		Window:      Duration(DefaultRateLimitWindow),
		MaxRequests: DefaultRateLimitMax,
		MaxClients:  DefaultMaxClients,
	}
	cfg.Logging = LoggingConfig{Level: "info", Format: "json"}
	cfg.Telemetry = TelemetryConfig{
		Endpoint:    "localhost:4317",
		Protocol:    "grpc",
		Insecure:    true,
		ServiceName: "skyline",
	}
}
