package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, envPrefix) || key == "PORT" || key == EnvHuggingFaceKey || key == EnvOpenRouterKey {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		validate func(*testing.T, *Config)
	}{
		{
			name: "default values",
			env:  map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Server.Port != DefaultPort {
					t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, DefaultPort)
				}
				if cfg.Document.ChunkSize != 800 || cfg.Document.ChunkOverlap != 100 {
					t.Errorf("chunking = %d/%d, want 800/100", cfg.Document.ChunkSize, cfg.Document.ChunkOverlap)
				}
				if cfg.Retrieval.TopK != 4 {
					t.Errorf("Retrieval.TopK = %d, want 4", cfg.Retrieval.TopK)
				}
				if cfg.RateLimit.MaxRequests != 10 || cfg.RateLimit.Window.Duration() != time.Minute {
					t.Errorf("rate limit = %d/%v, want 10/1m", cfg.RateLimit.MaxRequests, cfg.RateLimit.Window.Duration())
				}
				if cfg.LLM.Timeout.Duration() != 25*time.Second {
					t.Errorf("LLM.Timeout = %v, want 25s", cfg.LLM.Timeout.Duration())
				}
				if cfg.Retry.MaxAttempts != 3 {
					t.Errorf("Retry.MaxAttempts = %d, want 3", cfg.Retry.MaxAttempts)
				}
				if cfg.LLM.APIKey.IsSet() || cfg.Embeddings.APIKey.IsSet() {
					t.Error("API keys should be unset by default")
				}
				if !cfg.Server.TrustProxy {
					t.Error("Server.TrustProxy = false, want true")
				}
			},
		},
		{
			name: "environment variable overrides",
			env: map[string]string{
				"SKYLINE_SERVER_PORT":            "8081",
				"SKYLINE_SERVER_TRUST_PROXY":     "false",
				"SKYLINE_LLM_MAX_TOKENS":         "256",
				"SKYLINE_RATELIMIT_MAX_REQUESTS": "5",
				"SKYLINE_RATELIMIT_WINDOW":       "30s",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Server.Port != 8081 {
					t.Errorf("Server.Port = %d, want 8081", cfg.Server.Port)
				}
				if cfg.Server.TrustProxy {
					t.Error("Server.TrustProxy = true, want false")
				}
				if cfg.LLM.MaxTokens != 256 {
					t.Errorf("LLM.MaxTokens = %d, want 256", cfg.LLM.MaxTokens)
				}
				if cfg.RateLimit.MaxRequests != 5 {
					t.Errorf("RateLimit.MaxRequests = %d, want 5", cfg.RateLimit.MaxRequests)
				}
				if cfg.RateLimit.Window.Duration() != 30*time.Second {
					t.Errorf("RateLimit.Window = %v, want 30s", cfg.RateLimit.Window.Duration())
				}
			},
		},
		{
			name: "provider keys",
			env: map[string]string{
				EnvHuggingFaceKey: "hf_test",
				EnvOpenRouterKey:  "sk-or-test",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Embeddings.APIKey.Value() != "hf_test" {
					t.Errorf("Embeddings.APIKey not loaded")
				}
				if cfg.LLM.APIKey.Value() != "sk-or-test" {
					t.Errorf("LLM.APIKey not loaded")
				}
			},
		},
		{
			name: "PORT fallback",
			env:  map[string]string{"PORT": "4000"},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Server.Port != 4000 {
					t.Errorf("Server.Port = %d, want 4000", cfg.Server.Port)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.validate(t, cfg)
		})
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "skyline.yaml")
	content := `server:
  port: 9191
document:
  path: /data/profile.pdf
  chunk_size: 500
  chunk_overlap: 50
llm:
  temperature: 0.2
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("SKYLINE_SERVER_PORT", "9292")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9292 {
		t.Errorf("env should override file: Server.Port = %d, want 9292", cfg.Server.Port)
	}
	if cfg.Document.Path != "/data/profile.pdf" {
		t.Errorf("Document.Path = %q", cfg.Document.Path)
	}
	if cfg.Document.ChunkSize != 500 || cfg.Document.ChunkOverlap != 50 {
		t.Errorf("chunking = %d/%d, want 500/50", cfg.Document.ChunkSize, cfg.Document.ChunkOverlap)
	}
	if cfg.LLM.Temperature != 0.2 {
		t.Errorf("LLM.Temperature = %v, want 0.2", cfg.LLM.Temperature)
	}
	if cfg.LLM.Model != DefaultLLMModel {
		t.Errorf("unset fields should keep defaults, LLM.Model = %q", cfg.LLM.Model)
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "big.yaml")
	big := strings.Repeat("#", maxConfigFileSize+1)
	if err := os.WriteFile(path, []byte(big), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for oversized config file")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
		{name: "overlap not below size", mutate: func(c *Config) { c.Document.ChunkOverlap = 800 }, wantErr: true},
		{name: "unknown provider", mutate: func(c *Config) { c.Embeddings.Provider = "openai" }, wantErr: true},
		{name: "zero top k", mutate: func(c *Config) { c.Retrieval.TopK = 0 }, wantErr: true},
		{name: "zero attempts", mutate: func(c *Config) { c.Retry.MaxAttempts = 0 }, wantErr: true},
		{name: "temperature", mutate: func(c *Config) { c.LLM.Temperature = 3 }, wantErr: true},
		{name: "zero window", mutate: func(c *Config) { c.RateLimit.Window = 0 }, wantErr: true},
		{name: "fastembed provider", mutate: func(c *Config) { c.Embeddings.Provider = ProviderFastEmbed }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			applyDefaults(cfg)
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("OPENROUTER_API_KEY=from-file\nHUGGINGFACE_API_KEY=from-file\n"), 0600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv(EnvHuggingFaceKey, "from-env")
	t.Cleanup(func() { os.Unsetenv(EnvOpenRouterKey) })

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv(EnvOpenRouterKey); got != "from-file" {
		t.Errorf("OPENROUTER_API_KEY = %q, want from-file", got)
	}
	if got := os.Getenv(EnvHuggingFaceKey); got != "from-env" {
		t.Errorf("existing variable overridden: %q", got)
	}

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing file should be ignored, got %v", err)
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("sk-or-v1-abcdef")

	if got := fmt.Sprintf("%s %v %#v", s, s, s); strings.Contains(got, "abcdef") {
		t.Errorf("secret leaked through formatting: %s", got)
	}
	data, err := json.Marshal(struct{ Key Secret }{s})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "abcdef") {
		t.Errorf("secret leaked through JSON: %s", data)
	}
	if s.Value() != "sk-or-v1-abcdef" {
		t.Errorf("Value() = %q", s.Value())
	}
	if Secret("").String() != "" {
		t.Error("empty secret should print empty")
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("25s")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if d.Duration() != 25*time.Second {
		t.Errorf("Duration = %v, want 25s", d.Duration())
	}
	if err := d.UnmarshalText([]byte("-1s")); err == nil {
		t.Error("negative duration should be rejected")
	}
	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Error("garbage should be rejected")
	}
}

func TestMissingKeys(t *testing.T) {
	cfg := &Config{}
	got := cfg.MissingKeys()
	if len(got) != 2 || got[0] != EnvHuggingFaceKey || got[1] != EnvOpenRouterKey {
		t.Errorf("MissingKeys() = %v", got)
	}

	cfg.Embeddings.APIKey = "hf_x"
	if got := cfg.MissingKeys(); len(got) != 1 || got[0] != EnvOpenRouterKey {
		t.Errorf("MissingKeys() = %v, want [%s]", got, EnvOpenRouterKey)
	}

	cfg.LLM.APIKey = "sk-or-x"
	if got := cfg.MissingKeys(); len(got) != 0 {
		t.Errorf("MissingKeys() = %v, want none", got)
	}
}
