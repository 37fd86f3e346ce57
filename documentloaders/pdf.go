package documentloaders

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/sevigo/sourceqa/schema"
)

// PageKey is the metadata key holding the 1-based PDF page number.
const PageKey = "page"

// PDF loads a PDF file as one document per page with extractable text.
type PDF struct {
	path string
	opts options
}

var _ Loader = (*PDF)(nil)

func NewPDF(path string, opts ...Option) *PDF {
	return &PDF{path: path, opts: applyOptions(opts...)}
}

func (l *PDF) Load(ctx context.Context) ([]schema.Document, error) {
	if l.path == "" {
		return nil, ErrEmptyPath
	}

	f, r, err := pdf.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", l.path, err)
	}
	defer f.Close()

	pages := make([]string, r.NumPage())
	for i := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			l.opts.logger.WarnContext(ctx, "Skipping unreadable PDF page", "path", l.path, "page", i+1, "error", err)
			continue
		}
		pages[i] = content
	}

	docs := pagesToDocuments(pages, l.opts.sourceFor(l.path))
	l.opts.logger.DebugContext(ctx, "PDF loaded", "path", l.path, "pages", len(pages), "documents", len(docs))
	return docs, nil
}

// pagesToDocuments builds one document per non-blank page. Page numbers are
// 1-based and keep their position even when earlier pages are skipped.
func pagesToDocuments(pages []string, source string) []schema.Document {
	docs := make([]schema.Document, 0, len(pages))
	for i, content := range pages {
		content = normalizeText(content)
		if strings.TrimSpace(content) == "" {
			continue
		}
		docs = append(docs, schema.NewDocument(content, map[string]any{
			schema.SourceKey: source,
			PageKey:          i + 1,
		}))
	}
	return docs
}
