package qdrant

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sevigo/sourceqa/embeddings"
)

const (
	defaultContentKey = "page_content"
	defaultHost       = "localhost"
	defaultPort       = 6334
)

var ErrInvalidOptions = errors.New("qdrant: invalid options provided")

type options struct {
	collectionName string
	qdrantURL      url.URL
	embedder       embeddings.Embedder
	apiKey         string
	contentKey     string
	logger         *slog.Logger
	useTLS         bool
	batchSize      int
	maxConcurrency int
	retryAttempts  int
	retryDelay     time.Duration
}

type Option func(*options)

func WithCollectionName(name string) Option {
	return func(opts *options) {
		opts.collectionName = strings.TrimSpace(name)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) {
		if logger != nil {
			opts.logger = logger
		}
	}
}

func WithURL(qdrantURL url.URL) Option {
	return func(opts *options) {
		opts.qdrantURL = qdrantURL
	}
}

// WithRawURL parses rawURL; an unparsable value leaves the default in place
// and is reported by New.
func WithRawURL(rawURL string) Option {
	return func(opts *options) {
		if rawURL == "" {
			return
		}
		u, err := url.Parse(rawURL)
		if err != nil || u.Host == "" {
			opts.qdrantURL = url.URL{Scheme: "invalid", Host: rawURL}
			return
		}
		opts.qdrantURL = *u
	}
}

func WithEmbedder(embedder embeddings.Embedder) Option {
	return func(opts *options) {
		opts.embedder = embedder
	}
}

func WithAPIKey(apiKey string) Option {
	return func(opts *options) {
		opts.apiKey = strings.TrimSpace(apiKey)
	}
}

// WithContentKey sets the payload key holding the document text.
func WithContentKey(contentKey string) Option {
	return func(opts *options) {
		if contentKey != "" {
			opts.contentKey = strings.TrimSpace(contentKey)
		}
	}
}

func WithTLS(useTLS bool) Option {
	return func(opts *options) {
		opts.useTLS = useTLS
	}
}

func WithBatchSize(size int) Option {
	return func(opts *options) {
		if size > 0 {
			opts.batchSize = min(size, MaxBatchSize)
		}
	}
}

func WithMaxConcurrency(n int) Option {
	return func(opts *options) {
		if n > 0 {
			opts.maxConcurrency = n
		}
	}
}

func WithRetryAttempts(attempts int) Option {
	return func(opts *options) {
		if attempts >= 0 {
			opts.retryAttempts = attempts
		}
	}
}

func WithRetryDelay(d time.Duration) Option {
	return func(opts *options) {
		if d > 0 {
			opts.retryDelay = d
		}
	}
}

func parseOptions(opts ...Option) (options, error) {
	o := options{
		logger:         slog.Default(),
		contentKey:     defaultContentKey,
		batchSize:      DefaultBatchSize,
		maxConcurrency: DefaultMaxConcurrency,
		retryAttempts:  DefaultRetryAttempts,
		retryDelay:     DefaultRetryDelay,
		qdrantURL: url.URL{
			Scheme: "http",
			Host:   fmt.Sprintf("%s:%d", defaultHost, defaultPort),
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.useTLS {
		o.qdrantURL.Scheme = "https"
	}
	if err := o.validate(); err != nil {
		return o, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return o, nil
}

func (opts *options) validate() error {
	if opts.collectionName == "" {
		return ErrMissingCollectionName
	}
	if opts.qdrantURL.Scheme != "http" && opts.qdrantURL.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if _, err := opts.port(); err != nil {
		return err
	}
	return nil
}

// port returns the gRPC port, defaulting to 6334 when the URL has none.
func (opts *options) port() (int, error) {
	p := opts.qdrantURL.Port()
	if p == "" {
		return defaultPort, nil
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid port %q: %w", ErrInvalidURL, p, err)
	}
	return n, nil
}

// String omits the API key.
func (opts *options) String() string {
	parts := []string{
		"collection=" + opts.collectionName,
		"host=" + opts.qdrantURL.Host,
		"content_key=" + opts.contentKey,
	}
	if opts.apiKey != "" {
		parts = append(parts, "has_api_key=true")
	}
	if opts.embedder != nil {
		parts = append(parts, "has_embedder=true")
	}
	return "QdrantOptions{" + strings.Join(parts, ", ") + "}"
}
