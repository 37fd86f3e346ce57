package chains

import (
	"log/slog"
	"maps"
)

const (
	defaultK              = 4
	defaultMaxTokensLimit = 3375
)

type qaOptions struct {
	k                     int
	reduceKBelowMaxTokens bool
	maxTokensLimit        int
	searchKwargs          map[string]any
	questionKey           string
	returnSourceDocuments bool
	logger                *slog.Logger
}

// Option configures the QA-with-sources chains.
type Option func(*qaOptions)

func applyOptions(opts ...Option) qaOptions {
	o := qaOptions{
		k:              defaultK,
		maxTokensLimit: defaultMaxTokensLimit,
		searchKwargs:   make(map[string]any),
		questionKey:    defaultQuestionKey,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithK sets how many documents are requested from the vector store.
func WithK(k int) Option {
	return func(o *qaOptions) {
		o.k = k
	}
}

// WithReduceKBelowMaxTokens enables dropping trailing documents until the
// rest fit in the token limit. It only has an effect with the stuff strategy.
func WithReduceKBelowMaxTokens(reduce bool) Option {
	return func(o *qaOptions) {
		o.reduceKBelowMaxTokens = reduce
	}
}

func WithMaxTokensLimit(limit int) Option {
	return func(o *qaOptions) {
		o.maxTokensLimit = limit
	}
}

// WithSearchKwargs sets extra parameters passed to every similarity search.
// The map is copied.
func WithSearchKwargs(kwargs map[string]any) Option {
	return func(o *qaOptions) {
		o.searchKwargs = make(map[string]any, len(kwargs))
		maps.Copy(o.searchKwargs, kwargs)
	}
}

func WithQuestionKey(key string) Option {
	return func(o *qaOptions) {
		if key != "" {
			o.questionKey = key
		}
	}
}

// WithReturnSourceDocuments adds the documents the answer was built from to
// the outputs under "source_documents".
func WithReturnSourceDocuments(ret bool) Option {
	return func(o *qaOptions) {
		o.returnSourceDocuments = ret
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *qaOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
