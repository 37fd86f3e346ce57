package vectorstores

import (
	"context"
	"errors"
	"maps"

	"github.com/sevigo/sourceqa/embeddings"
	"github.com/sevigo/sourceqa/schema"
)

var ErrCollectionNotFound = errors.New("vectorstores: collection not found")

// Search kwargs keys with a dedicated meaning. Any other key is kept in
// Options.Extra for the store implementation to interpret.
const (
	SearchKwargScoreThreshold = "score_threshold"
	SearchKwargNamespace      = "namespace"
	SearchKwargFilter         = "filter"
)

// VectorStore returns documents in the store's own relevance order.
type VectorStore interface {
	AddDocuments(ctx context.Context, docs []schema.Document, options ...Option) ([]string, error)
	SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...Option) ([]schema.Document, error)
	SimilaritySearchWithScores(ctx context.Context, query string, numDocuments int, options ...Option) ([]DocumentWithScore, error)
}

type CollectionManager interface {
	DeleteCollection(ctx context.Context, collectionName string) error
	ListCollections(ctx context.Context) ([]string, error)
}

type DocumentWithScore struct {
	Document schema.Document
	Score    float32
}

type Option func(*Options)

type Options struct {
	Embedder       embeddings.Embedder
	NameSpace      string
	ScoreThreshold float32
	Filters        map[string]any
	Extra          map[string]any
}

func WithEmbedder(embedder embeddings.Embedder) Option {
	return func(opts *Options) {
		opts.Embedder = embedder
	}
}

func WithNameSpace(namespace string) Option {
	return func(opts *Options) {
		opts.NameSpace = namespace
	}
}

func WithScoreThreshold(threshold float32) Option {
	return func(opts *Options) {
		opts.ScoreThreshold = threshold
	}
}

func WithFilters(filters map[string]any) Option {
	return func(opts *Options) {
		if opts.Filters == nil {
			opts.Filters = make(map[string]any)
		}
		maps.Copy(opts.Filters, filters)
	}
}

func WithFilter(key string, value any) Option {
	return func(opts *Options) {
		if opts.Filters == nil {
			opts.Filters = make(map[string]any)
		}
		opts.Filters[key] = value
	}
}

// WithSearchKwargs applies an opaque map of search parameters. Recognised
// keys are mapped onto the typed options; values of the wrong type for a
// recognised key are kept in Extra instead of being dropped.
func WithSearchKwargs(kwargs map[string]any) Option {
	return func(opts *Options) {
		for key, value := range kwargs {
			switch key {
			case SearchKwargScoreThreshold:
				if f, ok := toFloat32(value); ok {
					opts.ScoreThreshold = f
					continue
				}
			case SearchKwargNamespace:
				if ns, ok := value.(string); ok {
					opts.NameSpace = ns
					continue
				}
			case SearchKwargFilter:
				if filter, ok := value.(map[string]any); ok {
					WithFilters(filter)(opts)
					continue
				}
			}
			if opts.Extra == nil {
				opts.Extra = make(map[string]any)
			}
			opts.Extra[key] = value
		}
	}
}

func toFloat32(v any) (float32, bool) {
	switch n := v.(type) {
	case float32:
		return n, true
	case float64:
		return float32(n), true
	case int:
		return float32(n), true
	case int64:
		return float32(n), true
	default:
		return 0, false
	}
}

func ParseOptions(options ...Option) Options {
	opts := Options{
		Filters: make(map[string]any),
		Extra:   make(map[string]any),
	}
	for _, option := range options {
		option(&opts)
	}
	return opts
}
