// Package vectorstore holds the embedded document chunks in memory and
// answers nearest-neighbour queries over them.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/skyline/internal/apperrors"
	"github.com/fyrsmithlabs/skyline/internal/document"
)

const (
	instrumentationName = "github.com/fyrsmithlabs/skyline/internal/vectorstore"
	collectionName      = "document"
	metaIndex           = "index"
)

var (
	// ErrDimensionMismatch indicates vectors of differing length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrZeroVector indicates an embedding with zero magnitude, for which
	// cosine similarity is undefined.
	ErrZeroVector = errors.New("zero-magnitude embedding")
)

// Embedder turns text into vectors. Documents and queries must be
// embedded by the same model.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SearchResult is a chunk and its cosine similarity to the query.
type SearchResult struct {
	Chunk document.Chunk
	Score float32
}

// Store is an immutable in-memory index of document chunks.
type Store struct {
	collection *chromem.Collection
	embedder   Embedder
	chunks     []document.Chunk
	dimension  int
	logger     *zap.Logger
}

func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Build embeds chunks and indexes them. Chunks keep their slice position
// as corpus order. An empty chunk list yields an empty store.
func Build(ctx context.Context, chunks []document.Chunk, embedder Embedder, logger *zap.Logger) (*Store, error) {
	const op = "vectorstore.Build"

	ctx, span := tracer().Start(ctx, "vectorstore.Build")
	defer span.End()
	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))

	if embedder == nil {
		return nil, apperrors.New(apperrors.KindInternal, op, "embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection(collectionName, nil, func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, op, err, "creating collection")
	}

	s := &Store{
		collection: collection,
		embedder:   embedder,
		chunks:     append([]document.Chunk(nil), chunks...),
		logger:     logger,
	}
	if len(chunks) == 0 {
		return s, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding failed")
		return nil, apperrors.Wrap(apperrors.KindUpstream, op, err, "embedding document chunks")
	}
	if len(vectors) != len(chunks) {
		return nil, apperrors.New(apperrors.KindUpstream, op,
			fmt.Sprintf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks)))
	}

	s.dimension = len(vectors[0])
	docs := make([]chromem.Document, len(chunks))
	for i, v := range vectors {
		if err := s.checkVector(v); err != nil {
			span.RecordError(err)
			return nil, apperrors.Wrap(apperrors.KindData, op, fmt.Errorf("chunk %d: %w", i, err), "invalid chunk embedding")
		}
		docs[i] = chromem.Document{
			ID:        "chunk-" + strconv.Itoa(i),
			Content:   chunks[i].Text,
			Metadata:  map[string]string{metaIndex: strconv.Itoa(i)},
			Embedding: v,
		}
	}

	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, apperrors.Wrap(apperrors.KindInternal, op, err, "indexing chunks")
	}

	span.SetAttributes(attribute.Int("dimension", s.dimension))
	span.SetStatus(codes.Ok, "success")
	logger.Debug("indexed document chunks",
		zap.Int("count", len(docs)),
		zap.Int("dimension", s.dimension),
	)
	return s, nil
}

func (s *Store) checkVector(v []float32) error {
	if len(v) != s.dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), s.dimension)
	}
	for _, x := range v {
		if x != 0 {
			return nil
		}
	}
	return ErrZeroVector
}

// SimilaritySearch returns up to k chunks most similar to query, best
// first. Equal scores keep corpus order. An empty store returns an empty
// result.
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int) (results []SearchResult, err error) {
	const op = "vectorstore.SimilaritySearch"

	ctx, span := tracer().Start(ctx, "vectorstore.SimilaritySearch")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))

	start := time.Now()
	defer func() {
		SearchDuration.Observe(time.Since(start).Seconds())
		recordSearch(len(results), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "search failed")
		}
	}()

	if k <= 0 {
		return nil, apperrors.New(apperrors.KindValidation, op, fmt.Sprintf("k must be positive, got %d", k))
	}

	n := s.collection.Count()
	if n == 0 {
		return []SearchResult{}, nil
	}

	qv, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstream, op, err, "embedding query")
	}
	if err := s.checkVector(qv); err != nil {
		return nil, apperrors.Wrap(apperrors.KindData, op, err, "invalid query embedding")
	}

	// Score every chunk so ties can be ordered deterministically.
	matches, err := s.collection.QueryEmbedding(ctx, qv, n, nil, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, op, err, "querying collection")
	}

	type ranked struct {
		pos int
		res SearchResult
	}
	all := make([]ranked, 0, len(matches))
	for _, m := range matches {
		pos, convErr := strconv.Atoi(m.Metadata[metaIndex])
		if convErr != nil || pos < 0 || pos >= len(s.chunks) {
			return nil, apperrors.New(apperrors.KindInternal, op, "unknown chunk "+m.ID)
		}
		all = append(all, ranked{pos: pos, res: SearchResult{Chunk: s.chunks[pos], Score: m.Similarity}})
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].res.Score != all[j].res.Score {
			return all[i].res.Score > all[j].res.Score
		}
		return all[i].pos < all[j].pos
	})

	results = make([]SearchResult, 0, min(k, len(all)))
	for _, r := range all[:min(k, len(all))] {
		results = append(results, r.res)
	}

	span.SetAttributes(attribute.Int("results", len(results)))
	return results, nil
}

// Len returns the number of indexed chunks.
func (s *Store) Len() int {
	return len(s.chunks)
}

// Dimension returns the vector length, or 0 for an empty store.
func (s *Store) Dimension() int {
	return s.dimension
}
