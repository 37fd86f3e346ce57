package openai

import (
	"log/slog"
	"net/http"
)

// options holds configuration for the OpenAI client.
type options struct {
	model          string
	embeddingModel string
	apiKey         string
	baseURL        string
	maxRetries     int
	httpClient     *http.Client
	logger         *slog.Logger
}

type Option func(*options)

// applyOptions creates a new options instance with defaults and applies the provided options.
func applyOptions(opts ...Option) options {
	o := options{
		model:          "gpt-4o-mini",
		embeddingModel: "text-embedding-3-small",
		maxRetries:     2,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithModel(model string) Option {
	return func(o *options) {
		if model != "" {
			o.model = model
		}
	}
}

func WithEmbeddingModel(model string) Option {
	return func(o *options) {
		if model != "" {
			o.embeddingModel = model
		}
	}
}

func WithAPIKey(key string) Option {
	return func(o *options) {
		o.apiKey = key
	}
}

// WithBaseURL targets an OpenAI compatible endpoint.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = baseURL
	}
}

func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
