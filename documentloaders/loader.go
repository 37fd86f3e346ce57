// Package documentloaders reads files into schema.Document values. Every
// loader sets the "source" metadata key to the path the content came from,
// which is what answers cite.
package documentloaders

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sevigo/sourceqa/schema"
)

var (
	ErrUnsupportedFormat = errors.New("documentloaders: unsupported file format")
	ErrEmptyPath         = errors.New("documentloaders: path is required")
)

type Loader interface {
	Load(ctx context.Context) ([]schema.Document, error)
}

type options struct {
	logger *slog.Logger
	source string
	branch string
}

type Option func(*options)

func applyOptions(opts ...Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSource overrides the value stored under the "source" metadata key,
// which otherwise is the file path.
func WithSource(source string) Option {
	return func(o *options) {
		o.source = source
	}
}

// WithBranch selects the branch a Git loader clones. The remote's default
// branch is used otherwise.
func WithBranch(branch string) Option {
	return func(o *options) {
		o.branch = branch
	}
}

func (o options) sourceFor(path string) string {
	if o.source != "" {
		return o.source
	}
	return path
}

// normalizeText converts to NFC, drops a leading byte order mark and uses
// "\n" line endings, so equal text embeds and tokenizes the same way.
func normalizeText(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return norm.NFC.String(s)
}
