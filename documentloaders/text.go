package documentloaders

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sevigo/sourceqa/schema"
)

// Text loads a plain text file as a single document.
type Text struct {
	path string
	opts options
}

var _ Loader = (*Text)(nil)

func NewText(path string, opts ...Option) *Text {
	return &Text{path: path, opts: applyOptions(opts...)}
}

// Load returns no documents for a file with only whitespace.
func (l *Text) Load(ctx context.Context) ([]schema.Document, error) {
	if l.path == "" {
		return nil, ErrEmptyPath
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.path, err)
	}
	content := normalizeText(string(raw))
	if strings.TrimSpace(content) == "" {
		l.opts.logger.DebugContext(ctx, "Skipping empty text file", "path", l.path)
		return []schema.Document{}, nil
	}

	return []schema.Document{
		schema.NewDocument(content, map[string]any{schema.SourceKey: l.opts.sourceFor(l.path)}),
	}, nil
}
