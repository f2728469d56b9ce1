package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fyrsmithlabs/skyline/internal/apperrors"
	"github.com/fyrsmithlabs/skyline/internal/document"
)

// TextLoader extracts the source document's text.
type TextLoader interface {
	Load(ctx context.Context, path string) (string, error)
}

// Splitter divides text into chunks.
type Splitter interface {
	Split(text string) ([]document.Chunk, error)
}

// Initializer builds the store once and hands the same instance to every
// caller for the rest of the process lifetime. Concurrent first callers
// share one build. A failed build is not cached.
type Initializer struct {
	path     string
	loader   TextLoader
	splitter Splitter
	embedder Embedder
	logger   *zap.Logger

	group singleflight.Group
	mu    sync.RWMutex
	store *Store
}

// NewInitializer creates an initializer for the document at path.
func NewInitializer(path string, loader TextLoader, splitter Splitter, embedder Embedder, logger *zap.Logger) *Initializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Initializer{
		path:     path,
		loader:   loader,
		splitter: splitter,
		embedder: embedder,
		logger:   logger,
	}
}

// Initialize returns the built store, building it on first use.
//
// The build runs detached from ctx so that one caller going away does not
// fail the others waiting on it; ctx only bounds how long this caller waits.
func (i *Initializer) Initialize(ctx context.Context) (*Store, error) {
	if s := i.cached(); s != nil {
		return s, nil
	}

	ch := i.group.DoChan("store", func() (interface{}, error) {
		if s := i.cached(); s != nil {
			return s, nil
		}
		s, err := i.build(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		i.mu.Lock()
		i.store = s
		i.mu.Unlock()
		return s, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Store), nil
	}
}

// Search initializes the store if needed and runs a similarity search.
func (i *Initializer) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	store, err := i.Initialize(ctx)
	if err != nil {
		return nil, err
	}
	return store.SimilaritySearch(ctx, query, k)
}

// Ready reports whether the store has been built.
func (i *Initializer) Ready() bool {
	return i.cached() != nil
}

// Path returns the source document path.
func (i *Initializer) Path() string {
	return i.path
}

func (i *Initializer) cached() *Store {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.store
}

func (i *Initializer) build(ctx context.Context) (store *Store, err error) {
	ctx, span := tracer().Start(ctx, "vectorstore.Initialize")
	defer span.End()
	span.SetAttributes(attribute.String("document.path", i.path))

	start := time.Now()
	defer func() {
		// A panic must not escape: singleflight rethrows it on a fresh
		// goroutine where nothing can recover it.
		if p := recover(); p != nil {
			store = nil
			err = apperrors.New(apperrors.KindInternal, "vectorstore.Initialize", fmt.Sprintf("build panicked: %v", p))
		}
		BuildDuration.Observe(time.Since(start).Seconds())
		RecordBuildResult(err == nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "initialization failed")
			i.logger.Error("vector store initialization failed",
				zap.String("path", i.path),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
		}
	}()

	i.logger.Info("initializing vector store", zap.String("path", i.path))

	text, err := i.loader.Load(ctx, i.path)
	if err != nil {
		return nil, err
	}

	chunks, err := i.splitter.Split(text)
	if err != nil {
		return nil, err
	}

	store, err = Build(ctx, chunks, i.embedder, i.logger)
	if err != nil {
		return nil, err
	}

	ChunksStored.Set(float64(store.Len()))
	i.logger.Info("vector store ready",
		zap.Int("chunks", store.Len()),
		zap.Int("text_length", len(text)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return store, nil
}
