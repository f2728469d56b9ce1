package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/skyline/internal/config"
	"github.com/fyrsmithlabs/skyline/internal/document"
	"github.com/fyrsmithlabs/skyline/internal/embeddings"
	"github.com/fyrsmithlabs/skyline/internal/health"
	skyhttp "github.com/fyrsmithlabs/skyline/internal/http"
	"github.com/fyrsmithlabs/skyline/internal/llm"
	"github.com/fyrsmithlabs/skyline/internal/logging"
	"github.com/fyrsmithlabs/skyline/internal/rag"
	"github.com/fyrsmithlabs/skyline/internal/ratelimit"
	"github.com/fyrsmithlabs/skyline/internal/retry"
	"github.com/fyrsmithlabs/skyline/internal/secrets"
	"github.com/fyrsmithlabs/skyline/internal/telemetry"
	"github.com/fyrsmithlabs/skyline/internal/vectorstore"
)

// app holds every long-lived component of the daemon.
type app struct {
	cfg         *config.Config
	logger      *logging.Logger
	telemetry   *telemetry.Telemetry
	embedder    embeddings.Provider
	initializer *vectorstore.Initializer
	limiter     *ratelimit.Limiter
	rag         *rag.Service
	server      *skyhttp.Server
}

// newApp wires the components:
//  1. Telemetry and logger
//  2. Embedding provider, document loader and chunker
//  3. Vector store initializer (built lazily, or at startup with store.warmup)
//  4. Rate limiter, LLM client and question answering service
//  5. Health reporter and HTTP server
//
// Missing provider keys do not fail startup; they surface through the
// health endpoint and as configuration errors on /ask.
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.close(context.WithoutCancel(ctx))
		}
	}()

	a.telemetry, err = telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, cfg.Server.Version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("invalid logging configuration: %w", err)
	}
	logCfg.Output.OTEL = a.telemetry.IsEnabled()
	a.logger, err = logging.NewLogger(logCfg, a.telemetry.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if degraded, reason := a.telemetry.Degraded(); degraded {
		a.logger.Warn(ctx, "telemetry exporters unavailable", zap.String("reason", reason))
	}

	a.logger.Info(ctx, "starting skyline",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("document", cfg.Document.Path),
		zap.String("embeddings_provider", cfg.Embeddings.Provider),
		zap.String("llm_model", cfg.LLM.Model),
	)
	if missing := cfg.MissingKeys(); len(missing) > 0 {
		a.logger.Warn(ctx, "provider API keys not set; questions will fail until they are", zap.Strings("missing", missing))
	}

	zl := a.logger.Underlying()

	a.embedder, err = embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: cfg.Embeddings.Provider,
		Model:    cfg.Embeddings.Model,
		BaseURL:  cfg.Embeddings.BaseURL,
		APIKey:   cfg.Embeddings.APIKey.Value(),
		Timeout:  cfg.Embeddings.Timeout.Duration(),
		CacheDir: cfg.Embeddings.CacheDir,
	}, zl.Named("embeddings"))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}

	chunker, err := document.NewChunker(cfg.Document.ChunkSize, cfg.Document.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunker: %w", err)
	}
	a.initializer = vectorstore.NewInitializer(
		cfg.Document.Path,
		document.NewLoader(nil),
		chunker,
		a.embedder,
		zl.Named("vectorstore"),
	)

	a.limiter, err = ratelimit.New(ratelimit.Config{
		Window:      cfg.RateLimit.Window.Duration(),
		MaxRequests: cfg.RateLimit.MaxRequests,
		MaxClients:  cfg.RateLimit.MaxClients,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}

	scrubber, err := secrets.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create scrubber: %w", err)
	}
	completer, err := llm.New(llm.Config{
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		APIKey:            cfg.LLM.APIKey.Value(),
		Timeout:           cfg.LLM.Timeout.Duration(),
		MaxTokens:         cfg.LLM.MaxTokens,
		Temperature:       cfg.LLM.Temperature,
		Referer:           cfg.LLM.Referer,
		Title:             cfg.LLM.Title,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
	}, zl.Named("llm"), llm.WithScrubber(scrubber))
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}

	a.rag = rag.NewService(rag.Config{
		TopK: cfg.Retrieval.TopK,
		Retry: retry.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff:     retry.Exponential(cfg.Retry.BaseBackoff.Duration()),
		},
		MissingKeys: cfg.MissingKeys,
	}, a.initializer, completer, a.logger.Named("rag"))

	reporter := health.NewReporter(health.Options{
		DocumentPath:   cfg.Document.Path,
		HuggingFaceKey: cfg.Embeddings.APIKey.IsSet,
		OpenRouterKey:  cfg.LLM.APIKey.IsSet,
		Version:        cfg.Server.Version,
	})

	a.server, err = skyhttp.NewServer(&skyhttp.Config{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		TrustProxy: cfg.Server.TrustProxy,
		Metrics:    cfg.Server.Metrics,
	}, a.rag, reporter, a.limiter, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create http server: %w", err)
	}

	return a, nil
}

// run serves HTTP until ctx is cancelled or the listener fails, then shuts
// the server down within server.shutdown_timeout.
func (a *app) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.limiter.Run(ctx)
	if a.cfg.Store.Warmup {
		go a.warmup(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout.Duration())
	defer stop()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	a.logger.Info(shutdownCtx, "server shutdown complete")
	return nil
}

// warmup builds the vector store before the first question. Failures are
// logged only; the next request retries the build.
func (a *app) warmup(ctx context.Context) {
	if len(a.cfg.MissingKeys()) > 0 || !document.Exists(a.cfg.Document.Path) {
		a.logger.Info(ctx, "skipping vector store warmup; configuration incomplete")
		return
	}

	start := time.Now()
	store, err := a.initializer.Initialize(ctx)
	if err != nil {
		a.logger.Warn(ctx, "vector store warmup failed", zap.Error(err))
		return
	}
	a.logger.Info(ctx, "vector store warmed up",
		zap.Int("chunks", store.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// close releases resources. It is safe on a partially built app.
func (a *app) close(ctx context.Context) {
	if a.embedder != nil {
		if err := a.embedder.Close(); err != nil && a.logger != nil {
			a.logger.Warn(ctx, "failed to close embedding provider", zap.Error(err))
		}
	}
	if err := a.telemetry.Shutdown(ctx); err != nil && a.logger != nil {
		a.logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
	}
	if a.logger != nil {
		_ = a.logger.Sync() // Best-effort sync on shutdown
	}
}
