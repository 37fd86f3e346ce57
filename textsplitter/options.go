package textsplitter

import "unicode/utf8"

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

type options struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
	lengthFunc   func(string) int
}

type Option func(*options)

func applyOptions(opts ...Option) options {
	o := options{
		chunkSize:    defaultChunkSize,
		chunkOverlap: defaultChunkOverlap,
		separators:   defaultSeparators,
		lengthFunc:   utf8.RuneCountInString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithChunkSize sets the maximum chunk length as measured by the length function.
func WithChunkSize(size int) Option {
	return func(o *options) {
		o.chunkSize = size
	}
}

func WithChunkOverlap(overlap int) Option {
	return func(o *options) {
		o.chunkOverlap = overlap
	}
}

// WithSeparators sets the separators to try, coarsest first. An empty string
// separator splits between characters.
func WithSeparators(separators []string) Option {
	return func(o *options) {
		if len(separators) > 0 {
			o.separators = separators
		}
	}
}

// WithLengthFunction measures chunks with fn instead of counting runes, for
// example llms.EstimateTokens to size chunks in tokens.
func WithLengthFunction(fn func(string) int) Option {
	return func(o *options) {
		if fn != nil {
			o.lengthFunc = fn
		}
	}
}
