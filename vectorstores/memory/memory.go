// Package memory implements a vectorstores.VectorStore that keeps vectors in
// process and ranks them by cosine similarity. It suits tests, demos and
// corpora small enough for a linear scan.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sevigo/sourceqa/embeddings"
	"github.com/sevigo/sourceqa/schema"
	"github.com/sevigo/sourceqa/vectorstores"
)

const defaultNamespace = "default"

var (
	ErrMissingEmbedder     = errors.New("memory: embedder is required but not provided")
	ErrInvalidNumDocuments = errors.New("memory: number of documents must be positive")
	ErrDimensionMismatch   = errors.New("memory: vector dimension mismatch")
)

type entry struct {
	id     string
	doc    schema.Document
	vector []float32
	norm   float64
}

type Store struct {
	embedder embeddings.Embedder
	logger   *slog.Logger

	mu          sync.RWMutex
	collections map[string][]entry
}

var (
	_ vectorstores.VectorStore       = (*Store)(nil)
	_ vectorstores.CollectionManager = (*Store)(nil)
)

type Option func(*Store)

func WithEmbedder(e embeddings.Embedder) Option {
	return func(s *Store) {
		s.embedder = e
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		logger:      slog.Default(),
		collections: make(map[string][]entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "memory_store")
	return s
}

func (s *Store) embedderFor(opts vectorstores.Options) (embeddings.Embedder, error) {
	if opts.Embedder != nil {
		return opts.Embedder, nil
	}
	if s.embedder != nil {
		return s.embedder, nil
	}
	return nil, ErrMissingEmbedder
}

func namespace(opts vectorstores.Options) string {
	if opts.NameSpace != "" {
		return opts.NameSpace
	}
	return defaultNamespace
}

func (s *Store) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	if len(docs) == 0 {
		return []string{}, nil
	}
	opts := vectorstores.ParseOptions(options...)
	embedder, err := s.embedderFor(opts)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.PageContent
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("document embedding failed: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	ns := namespace(opts)
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.collections[ns]
	ids := make([]string, len(docs))
	for i, doc := range docs {
		if len(existing) > 0 && len(existing[0].vector) != len(vectors[i]) {
			return nil, fmt.Errorf("%w: collection %q has %d, got %d",
				ErrDimensionMismatch, ns, len(existing[0].vector), len(vectors[i]))
		}
		id := documentID(doc)
		ids[i] = id
		existing = append(existing, entry{
			id:     id,
			doc:    doc,
			vector: vectors[i],
			norm:   norm(vectors[i]),
		})
	}
	s.collections[ns] = existing

	s.logger.DebugContext(ctx, "Documents added", "namespace", ns, "count", len(docs))
	return ids, nil
}

func documentID(doc schema.Document) string {
	if id, ok := doc.Metadata["id"].(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

func (s *Store) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	scored, err := s.SimilaritySearchWithScores(ctx, query, numDocuments, options...)
	if err != nil {
		return nil, err
	}
	docs := make([]schema.Document, len(scored))
	for i, sd := range scored {
		docs[i] = sd.Document
	}
	return docs, nil
}

// SimilaritySearchWithScores ranks by descending cosine similarity. Equal
// scores keep insertion order.
func (s *Store) SimilaritySearchWithScores(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]vectorstores.DocumentWithScore, error) {
	if numDocuments <= 0 {
		return nil, ErrInvalidNumDocuments
	}
	if strings.TrimSpace(query) == "" {
		return []vectorstores.DocumentWithScore{}, nil
	}

	opts := vectorstores.ParseOptions(options...)
	embedder, err := s.embedderFor(opts)
	if err != nil {
		return nil, err
	}
	qv, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	qn := norm(qv)

	ns := namespace(opts)
	s.mu.RLock()
	entries := s.collections[ns]
	results := make([]vectorstores.DocumentWithScore, 0, len(entries))
	for _, e := range entries {
		if !matches(e.doc.Metadata, opts.Filters) {
			continue
		}
		if len(e.vector) != len(qv) {
			s.mu.RUnlock()
			return nil, fmt.Errorf("%w: query has %d, stored %d", ErrDimensionMismatch, len(qv), len(e.vector))
		}
		score := cosine(qv, qn, e.vector, e.norm)
		if opts.ScoreThreshold > 0 && score < opts.ScoreThreshold {
			continue
		}
		results = append(results, vectorstores.DocumentWithScore{Document: e.doc, Score: score})
	}
	s.mu.RUnlock()

	slices.SortStableFunc(results, func(a, b vectorstores.DocumentWithScore) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	if len(results) > numDocuments {
		results = results[:numDocuments]
	}
	return results, nil
}

func (s *Store) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		return vectorstores.ErrCollectionNotFound
	}
	delete(s.collections, name)
	return nil
}

func (s *Store) ListCollections(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// matches reports whether metadata contains every filter pair. A slice filter
// value matches when the metadata value equals any element.
func matches(metadata, filters map[string]any) bool {
	for key, want := range filters {
		got, ok := metadata[key]
		if !ok {
			return false
		}
		if !valueMatches(got, want) {
			return false
		}
	}
	return true
}

func valueMatches(got, want any) bool {
	rv := reflect.ValueOf(want)
	if rv.Kind() == reflect.Slice {
		for i := range rv.Len() {
			if reflect.DeepEqual(got, rv.Index(i).Interface()) {
				return true
			}
		}
		return false
	}
	return reflect.DeepEqual(got, want)
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, an float64, b []float32, bn float64) float32 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (an * bn))
}
