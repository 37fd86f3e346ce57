package embeddings

const (
	defaultBatchSize      = 32
	defaultMaxConcurrency = 8
)

type options struct {
	StripNewLines  bool
	BatchSize      int
	MaxConcurrency int
}

type Option func(*options)

func applyOptions(opts ...Option) options {
	o := options{
		StripNewLines:  true,
		BatchSize:      defaultBatchSize,
		MaxConcurrency: defaultMaxConcurrency,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = defaultMaxConcurrency
	}
	return o
}

func WithBatchSize(size int) Option {
	return func(opts *options) {
		opts.BatchSize = size
	}
}

func WithStripNewLines(strip bool) Option {
	return func(opts *options) {
		opts.StripNewLines = strip
	}
}

// WithMaxConcurrency bounds the number of batches embedded at once.
func WithMaxConcurrency(n int) Option {
	return func(opts *options) {
		opts.MaxConcurrency = n
	}
}
